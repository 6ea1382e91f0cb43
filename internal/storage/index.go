/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "pagebuilder/internal/log"
	"pagebuilder/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-page derived data under the page root.
	IndexDirName  = ".pb"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2

	metaPageID = "page_id"
)

// IndexPath returns the full path to the page's embedded index database file.
func IndexPath(pageRoot string) string {
	return filepath.Join(pageRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-page SQLite index exists at .pb/index.sqlite,
// opens the database, enables WAL mode, and ensures the meta/version tables exist.
// Callers close the returned *sql.DB.
func InitOrOpenIndex(pageRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", pageRoot),
	)
	if strings.TrimSpace(pageRoot) == "" {
		return nil, errors.New("page root is required")
	}
	if err := os.MkdirAll(filepath.Join(pageRoot, IndexDirName), 0o755); err != nil {
		l.Error("create .pb dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .pb dir: %w", err)
	}

	path := IndexPath(pageRoot)
	// SQLite URIs want forward slashes.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so migrations can run
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureIndexSchema creates the snapshot table if it does not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id      INTEGER PRIMARY KEY,
			page_id TEXT    NOT NULL,
			ts      TEXT    NOT NULL,
			label   TEXT    NOT NULL DEFAULT 'autosave',
			blocks  INTEGER NOT NULL DEFAULT 0,
			data    BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_page_ts ON snapshots(page_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// v1 snapshots had no label column
			if err := migrateAddLabel(ctx, db); err != nil {
				return fmt.Errorf("migration %d: %w", next, err)
			}
		}
		if _, err := db.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		cur = next
	}
	return nil
}

func migrateAddLabel(ctx context.Context, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info('snapshots') WHERE name='label'`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `ALTER TABLE snapshots ADD COLUMN label TEXT NOT NULL DEFAULT 'autosave'`)
	return err
}

// PageID returns the page identifier stored in the index, creating one on first use.
func PageID(ctx context.Context, db *sql.DB) (string, error) {
	var id string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, metaPageID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read page id: %w", err)
	}
	id = uuid.NewString()
	if _, err := db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)`, metaPageID, id); err != nil {
		return "", fmt.Errorf("store page id: %w", err)
	}
	return id, nil
}

// DetectAndRebuildIndex checks for corruption or a missing schema and recreates
// the index if needed, keeping a backup of the broken file. Snapshots are lost
// on rebuild; the page id is preserved when given.
func DetectAndRebuildIndex(ctx context.Context, pageRoot, pageID string) (bool, error) {
	path := IndexPath(pageRoot)
	db, err := InitOrOpenIndex(pageRoot)
	if err == nil {
		needs := false
		var chk string
		if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
			needs = true
		}
		if !needs {
			if _, err := db.ExecContext(ctx, `SELECT 1 FROM snapshots LIMIT 1;`); err != nil {
				needs = true
			}
		}
		_ = db.Close()
		if !needs {
			return false, nil
		}
	}
	backupIndexFile(path)
	_ = os.Remove(path)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	db, rerr := InitOrOpenIndex(pageRoot)
	if rerr != nil {
		return false, fmt.Errorf("rebuild index: %w (open err: %v)", rerr, err)
	}
	defer db.Close()
	if pageID != "" {
		if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key, value) VALUES(?, ?)`, metaPageID, pageID); err != nil {
			return true, fmt.Errorf("restore page id: %w", err)
		}
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .pb/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}
