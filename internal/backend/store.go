/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the thin page API: an HTTP server keeping page documents
// in Postgres with an optional Redis read cache, and a client for it.
package backend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagebuilder/internal/domain"
)

var (
	ErrNotFound = errors.New("page not found")
	// ErrConflict is returned when an update names a version that is no longer current.
	ErrConflict = errors.New("page version conflict")
)

// Page is a stored page document.
type Page struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Owner     string          `json:"owner,omitempty"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Document  domain.Document `json:"document"`
}

// PageMeta is the listing projection of a page.
type PageMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner,omitempty"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Blocks    int       `json:"blocks"`
}

// NewPage describes a page to create.
type NewPage struct {
	Name     string
	Owner    string
	Document domain.Document
}

// Store persists pages. Versions start at 1 and grow by one per update.
type Store interface {
	ListPages(ctx context.Context) ([]PageMeta, error)
	GetPage(ctx context.Context, id string) (Page, error)
	CreatePage(ctx context.Context, p NewPage) (Page, error)
	// UpdatePage replaces the document. A non-zero ifVersion must match the
	// stored version or ErrConflict is returned.
	UpdatePage(ctx context.Context, id string, doc domain.Document, ifVersion int64) (Page, error)
	DeletePage(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// MemStore keeps pages in memory. It backs tests and `serve --memory`.
type MemStore struct {
	mu    sync.Mutex
	pages map[string]Page
	now   func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{pages: make(map[string]Page), now: time.Now}
}

func (m *MemStore) ListPages(context.Context) ([]PageMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PageMeta, 0, len(m.pages))
	for _, p := range m.pages {
		out = append(out, PageMeta{ID: p.ID, Name: p.Name, Owner: p.Owner, Version: p.Version, UpdatedAt: p.UpdatedAt, Blocks: len(p.Document.Blocks)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemStore) GetPage(_ context.Context, id string) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	if !ok {
		return Page{}, ErrNotFound
	}
	p.Document = p.Document.Clone()
	return p, nil
}

func (m *MemStore) CreatePage(_ context.Context, np NewPage) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Page{
		ID:        uuid.NewString(),
		Name:      np.Name,
		Owner:     np.Owner,
		Version:   1,
		UpdatedAt: m.now().UTC(),
		Document:  np.Document.Clone(),
	}
	m.pages[p.ID] = p
	p.Document = p.Document.Clone()
	return p, nil
}

func (m *MemStore) UpdatePage(_ context.Context, id string, doc domain.Document, ifVersion int64) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	if !ok {
		return Page{}, ErrNotFound
	}
	if ifVersion != 0 && ifVersion != p.Version {
		return Page{}, ErrConflict
	}
	p.Version++
	p.UpdatedAt = m.now().UTC()
	p.Document = doc.Clone()
	m.pages[id] = p
	p.Document = p.Document.Clone()
	return p, nil
}

func (m *MemStore) DeletePage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[id]; !ok {
		return ErrNotFound
	}
	delete(m.pages, id)
	return nil
}

func (m *MemStore) Ping(context.Context) error { return nil }
