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
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pagebuilder/internal/domain"
)

const (
	PageFileName   = "page.json"
	BackupsDirName = "backups"
	ExportsDirName = "exports"
)

var standardSubDirs = []string{
	BackupsDirName,
	ExportsDirName,
}

// PageHandle keeps track of a page directory loaded/saved from disk.
// Root is the directory containing page.json; ID is the page's stable
// identifier kept in the index and used by the backend.
type PageHandle struct {
	Root     string
	PagePath string
	ID       string
	Document domain.Document
}

// InitPage creates a new page directory at root (creating it if needed),
// scaffolds the standard subfolders, and writes doc transactionally.
func InitPage(root string, doc domain.Document) (*PageHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create page root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	ph := &PageHandle{
		Root:     root,
		PagePath: filepath.Join(root, PageFileName),
		Document: doc,
	}
	if err := Save(ph); err != nil {
		return nil, err
	}
	if err := ph.loadID(); err != nil {
		return nil, err
	}
	return ph, nil
}

// Open loads an existing page from root. If page.json cannot be read or does
// not validate, the latest backup is used instead.
func Open(root string) (*PageHandle, error) {
	ppath := filepath.Join(root, PageFileName)
	ph := &PageHandle{Root: root, PagePath: ppath}
	b, err := os.ReadFile(ppath)
	if err != nil {
		doc, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open page: %w; backup attempt: %v", err, berr)
		}
		ph.Document = doc
	} else if doc, perr := ParseDocument(b); perr != nil {
		doc, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse page: %w; backup attempt: %v", perr, berr)
		}
		ph.Document = doc
	} else {
		ph.Document = doc
	}
	if err := ph.loadID(); err != nil {
		return nil, err
	}
	return ph, nil
}

func (ph *PageHandle) loadID() error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := PageID(ctx, db)
	if err != nil {
		return err
	}
	ph.ID = id
	return nil
}

// Save writes ph.Document to disk with transactional semantics and a
// timestamped backup of the previous page file (if present).
func Save(ph *PageHandle) error {
	if ph == nil {
		return errors.New("nil PageHandle")
	}
	if ph.Root == "" || ph.PagePath == "" {
		return errors.New("invalid PageHandle: missing paths")
	}
	data, err := domain.Marshal(ph.Document)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	// copy the current page to a timestamped backup before replacing it
	if _, statErr := os.Stat(ph.PagePath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", PageFileName, stamp))
		if cerr := copyFile(ph.PagePath, bpath); cerr != nil {
			return fmt.Errorf("backup current page: %w", cerr)
		}
	}

	// write to a temp file in the same directory, then rename over the target
	dir := filepath.Dir(ph.PagePath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", PageFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp page: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(ph.PagePath); err == nil {
		_ = os.Remove(ph.PagePath)
	}
	if rerr := os.Rename(temp, ph.PagePath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace page: %w", rerr)
	}
	return nil
}

// AutosaveCrashSnapshot writes the in-memory document next to the backups
// without touching page.json. It returns the path written.
func AutosaveCrashSnapshot(ph *PageHandle) (string, error) {
	if ph == nil {
		return "", errors.New("nil PageHandle")
	}
	data, err := domain.Marshal(ph.Document)
	if err != nil {
		return "", fmt.Errorf("marshal page: %w", err)
	}
	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", PageFileName, time.Now().Format("20060102-150405")))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// ExportPath returns a path inside the page's exports folder.
func (ph *PageHandle) ExportPath(name string) string {
	return filepath.Join(ph.Root, ExportsDirName, name)
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup tries to open the latest timestamped backup.
func openFromLatestBackup(root string) (domain.Document, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, PageFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return domain.Document{}, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	latest := candidates[len(candidates)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read latest backup: %w", err)
	}
	doc, err := ParseDocument(b)
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse latest backup: %w", err)
	}
	return doc, nil
}
