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
	"time"

	"pagebuilder/internal/domain"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(page_id, ts, label, blocks, data) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT id, ts, label, blocks, data FROM snapshots WHERE page_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectSnapshotSQL = `SELECT id, ts, label, blocks, data FROM snapshots WHERE page_id = ? AND id = ?`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT id, ts, label, blocks, data FROM snapshots WHERE page_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE page_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE page_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// tsLayout is fixed width so ORDER BY ts sorts chronologically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Snapshot labels.
const (
	LabelAutosave = "autosave"
	LabelManual   = "manual"
	LabelCrash    = "crash"
)

// Snapshot is one stored copy of the page document.
type Snapshot struct {
	ID     int64
	TS     time.Time
	Label  string
	Blocks int
	Data   []byte
}

// Document decodes the stored page.
func (s Snapshot) Document() (domain.Document, error) { return domain.Unmarshal(s.Data) }

// ErrSnapshotNotFound is returned by LoadSnapshot for an unknown id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SaveSnapshot stores doc in the page's index under label.
func SaveSnapshot(ctx context.Context, ph *PageHandle, label string, doc domain.Document, ts time.Time) error {
	if ph == nil {
		return errors.New("nil PageHandle")
	}
	data, err := domain.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if label == "" {
		label = LabelAutosave
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertSnapshotSQL, ph.ID, ts.UTC().Format(tsLayout), label, len(doc.Blocks), data)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the newest snapshot; ok is false when there is none.
func GetLatestSnapshot(ctx context.Context, ph *PageHandle) (s Snapshot, ok bool, err error) {
	if ph == nil {
		return Snapshot{}, false, errors.New("nil PageHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer func() { _ = db.Close() }()
	s, err = scanSnapshot(db.QueryRowContext(ctx, selectLatestSnapshotSQL, ph.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

// LoadSnapshot returns the snapshot with the given id.
func LoadSnapshot(ctx context.Context, ph *PageHandle, id int64) (Snapshot, error) {
	if ph == nil {
		return Snapshot{}, errors.New("nil PageHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = db.Close() }()
	s, err := scanSnapshot(db.QueryRowContext(ctx, selectSnapshotSQL, ph.ID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot %d: %w", id, ErrSnapshotNotFound)
	}
	return s, err
}

// ListSnapshots returns up to limit most recent snapshots, newest first.
func ListSnapshots(ctx context.Context, ph *PageHandle, limit int) ([]Snapshot, error) {
	if ph == nil {
		return nil, errors.New("nil PageHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSnapshotsSQL, ph.ID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps at most keepLast snapshots and deletes older ones.
func PruneOldSnapshots(ctx context.Context, ph *PageHandle, keepLast int) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil PageHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldSnapshotsSQL, ph.ID, ph.ID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanSnapshot(r rowScanner) (Snapshot, error) {
	var s Snapshot
	var tsStr string
	if err := r.Scan(&s.ID, &tsStr, &s.Label, &s.Blocks, &s.Data); err != nil {
		return Snapshot{}, err
	}
	// a bad timestamp still returns the data
	s.TS, _ = time.Parse(tsLayout, tsStr)
	return s, nil
}
