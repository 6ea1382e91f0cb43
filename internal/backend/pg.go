/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore keeps pages in Postgres through the pgx database/sql driver.
type PGStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenPG connects to dsn, checks the connection and applies migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &PGStore{db: db, log: applog.WithComponent("pgstore")}
	if err := s.applyMigrations(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle for tests and maintenance.
func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// language=SQL
// dialect=PostgreSQL
const listPagesSQL = `SELECT id, name, owner, version, updated_at, COALESCE(jsonb_array_length(document->'blocks'), 0)
FROM pages ORDER BY updated_at DESC, id`

func (s *PGStore) ListPages(ctx context.Context) ([]PageMeta, error) {
	rows, err := s.db.QueryContext(ctx, listPagesSQL)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer func() { _ = rows.Close() }()
	list := []PageMeta{}
	for rows.Next() {
		var p PageMeta
		if err := rows.Scan(&p.ID, &p.Name, &p.Owner, &p.Version, &p.UpdatedAt, &p.Blocks); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// language=SQL
// dialect=PostgreSQL
const getPageSQL = `SELECT id, name, owner, version, updated_at, document FROM pages WHERE id = $1`

func (s *PGStore) GetPage(ctx context.Context, id string) (Page, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Page{}, ErrNotFound
	}
	var (
		p   Page
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, getPageSQL, id).Scan(&p.ID, &p.Name, &p.Owner, &p.Version, &p.UpdatedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, fmt.Errorf("get page: %w", err)
	}
	if p.Document, err = domain.Unmarshal(raw); err != nil {
		return Page{}, fmt.Errorf("page %s: %w", id, err)
	}
	return p, nil
}

// language=SQL
// dialect=PostgreSQL
const insertPageSQL = `INSERT INTO pages(id, name, owner, document) VALUES($1, $2, $3, $4) RETURNING version, updated_at`

func (s *PGStore) CreatePage(ctx context.Context, np NewPage) (Page, error) {
	data, err := domain.Marshal(np.Document)
	if err != nil {
		return Page{}, err
	}
	p := Page{ID: uuid.NewString(), Name: np.Name, Owner: np.Owner, Document: np.Document.Clone()}
	if err := s.db.QueryRowContext(ctx, insertPageSQL, p.ID, p.Name, p.Owner, string(data)).Scan(&p.Version, &p.UpdatedAt); err != nil {
		return Page{}, fmt.Errorf("insert page: %w", err)
	}
	s.log.Debug("page created", slog.String("id", p.ID))
	return p, nil
}

// language=SQL
// dialect=PostgreSQL
const updatePageSQL = `UPDATE pages SET document = $2, version = version + 1, updated_at = now()
WHERE id = $1 AND ($3::bigint = 0 OR version = $3::bigint)
RETURNING name, owner, version, updated_at`

func (s *PGStore) UpdatePage(ctx context.Context, id string, doc domain.Document, ifVersion int64) (Page, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Page{}, ErrNotFound
	}
	data, err := domain.Marshal(doc)
	if err != nil {
		return Page{}, err
	}
	p := Page{ID: id, Document: doc.Clone()}
	err = s.db.QueryRowContext(ctx, updatePageSQL, id, string(data), ifVersion).Scan(&p.Name, &p.Owner, &p.Version, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// either gone or stale
		var n int
		if qerr := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE id = $1`, id).Scan(&n); qerr != nil {
			return Page{}, fmt.Errorf("update page: %w", qerr)
		}
		if n == 0 {
			return Page{}, ErrNotFound
		}
		return Page{}, ErrConflict
	}
	if err != nil {
		return Page{}, fmt.Errorf("update page: %w", err)
	}
	return p, nil
}

func (s *PGStore) DeletePage(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// applyMigrations applies embedded SQL migrations in filename order.
func (s *PGStore) applyMigrations(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		sqlText := string(b)
		if strings.TrimSpace(sqlText) == "" {
			continue
		}
		s.log.Info("applying migration", slog.String("file", fname))
		if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			return fmt.Errorf("record %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
