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
	"context"
	"log/slog"
	"time"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
)

// AutosaveOptions controls how often snapshots are written and how many are kept.
type AutosaveOptions struct {
	// MinInterval coalesces changes arriving faster than this into one snapshot.
	MinInterval time.Duration
	// Keep is the number of snapshots retained per page (0 keeps all).
	Keep   int
	Logger *slog.Logger
}

// Autosaver writes throttled snapshots of the edited document into the page index.
// It is not safe for concurrent use.
type Autosaver struct {
	ph       *PageHandle
	opts     AutosaveOptions
	last     time.Time
	lastData []byte
	now      func() time.Time
}

func NewAutosaver(ph *PageHandle, opts AutosaveOptions) *Autosaver {
	if opts.MinInterval <= 0 {
		opts.MinInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("autosave")
	}
	return &Autosaver{ph: ph, opts: opts, now: time.Now}
}

// Maybe stores doc unless the last snapshot is younger than MinInterval or
// identical. It reports whether a snapshot was written.
func (a *Autosaver) Maybe(ctx context.Context, doc domain.Document) (bool, error) {
	now := a.now()
	if !a.last.IsZero() && now.Sub(a.last) < a.opts.MinInterval {
		return false, nil
	}
	return a.save(ctx, doc, now)
}

// Flush stores doc regardless of the interval, unless it is unchanged.
func (a *Autosaver) Flush(ctx context.Context, doc domain.Document) (bool, error) {
	return a.save(ctx, doc, a.now())
}

func (a *Autosaver) save(ctx context.Context, doc domain.Document, now time.Time) (bool, error) {
	data, err := domain.Marshal(doc)
	if err != nil {
		return false, err
	}
	if a.lastData != nil && bytes.Equal(data, a.lastData) {
		return false, nil
	}
	if err := SaveSnapshot(ctx, a.ph, LabelAutosave, doc, now); err != nil {
		a.opts.Logger.Warn("autosave failed", slog.Any("err", err))
		return false, err
	}
	a.last = now
	a.lastData = data
	if a.opts.Keep > 0 {
		if n, err := PruneOldSnapshots(ctx, a.ph, a.opts.Keep); err != nil {
			a.opts.Logger.Warn("prune snapshots failed", slog.Any("err", err))
		} else if n > 0 {
			a.opts.Logger.Debug("pruned snapshots", slog.Int64("deleted", n))
		}
	}
	return true, nil
}
