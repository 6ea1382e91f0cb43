/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
)

// reloadDelay coalesces the burst of events one save produces into a single reload.
const reloadDelay = 100 * time.Millisecond

// Watcher reports edits made to page.json by other programs.
// Changes equal to the last document passed to SetKnown are not reported,
// so the editor's own saves do not echo back.
type Watcher struct {
	fw      *fsnotify.Watcher
	path    string
	changes chan domain.Document
	errs    chan error
	log     *slog.Logger

	mu    sync.Mutex
	known []byte
}

// NewWatcher starts watching the page file of ph.
func NewWatcher(ph *PageHandle) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(ph.PagePath)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	// fsnotify watches directories; renames over the file would drop a file watch
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{
		fw:      fw,
		path:    abs,
		changes: make(chan domain.Document, 1),
		errs:    make(chan error, 1),
		log:     applog.WithComponent("watcher").With(slog.String("path", abs)),
	}
	w.SetKnown(ph.Document)
	go w.loop()
	return w, nil
}

// Changes delivers externally edited documents. Only the newest pending change is kept.
func (w *Watcher) Changes() <-chan domain.Document { return w.changes }

// Errors delivers read or parse failures of the page file.
func (w *Watcher) Errors() <-chan error { return w.errs }

// SetKnown records doc as the current state of the file.
func (w *Watcher) SetKnown(doc domain.Document) {
	data, err := domain.Marshal(doc)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.known = data
	w.mu.Unlock()
}

// Close stops the watcher and closes both channels.
func (w *Watcher) Close() error { return w.fw.Close() }

func (w *Watcher) loop() {
	defer close(w.changes)
	defer close(w.errs)
	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if abs, _ := filepath.Abs(ev.Name); abs != w.path {
				continue
			}
			timer.Reset(reloadDelay)
		case <-timer.C:
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.sendErr(err)
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.sendErr(fmt.Errorf("read page: %w", err))
		return
	}
	doc, err := ParseDocument(data)
	if err != nil {
		// editors often write in several steps; the final write will parse
		w.log.Debug("page not parseable yet", slog.Any("err", err))
		w.sendErr(err)
		return
	}
	norm, err := domain.Marshal(doc)
	if err != nil {
		return
	}
	w.mu.Lock()
	same := bytes.Equal(norm, w.known)
	if !same {
		w.known = norm
	}
	w.mu.Unlock()
	if same {
		return
	}
	w.log.Info("page changed on disk", slog.Int("blocks", len(doc.Blocks)))
	// keep only the newest change
	select {
	case <-w.changes:
	default:
	}
	w.changes <- doc
}

func (w *Watcher) sendErr(err error) {
	select {
	case w.errs <- err:
	default:
	}
}
