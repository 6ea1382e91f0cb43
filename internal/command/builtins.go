/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import (
	"fmt"
	"log/slog"
	"math"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	"pagebuilder/internal/selection"
)

// Built-in command names.
const (
	Undo            = "undo"
	Redo            = "redo"
	Drag            = "drag"
	UpdateContainer = "updateContainer"
	UpdateBlock     = "updateBlock"
	PlaceTop        = "placeTop"
	PlaceBottom     = "placeBottom"
	Delete          = "delete"
)

// Store is the live document the built-in commands read and replace.
type Store interface {
	Document() domain.Document
	SetDocument(domain.Document)
}

// RegisterBuiltins registers the editor's standard commands on r.
//
// Records keep deep snapshots of the blocks on both sides, so redoing an old
// entry never resurrects blocks that a later drag mutated in place. Applying a
// snapshot keeps every live block whose value it already matches; only the
// blocks a command changed are replaced.
func RegisterBuiltins(r *Registry, store Store, bus *events.Bus) {
	r.Register(Command{
		Name:     Undo,
		Keyboard: "ctrl+z",
		Execute: func(...any) (Record, error) {
			return Record{Redo: func() { r.history.Undo() }}, nil
		},
	})
	r.Register(Command{
		Name:     Redo,
		Keyboard: "ctrl+y",
		Execute: func(...any) (Record, error) {
			return Record{Redo: func() { r.history.Redo() }}, nil
		},
	})

	var before []*domain.Block
	r.Register(Command{
		Name:      Drag,
		PushQueue: true,
		Init: func() func() {
			offStart := bus.On(events.TopicStart, func() {
				before = domain.CloneBlocks(store.Document().Blocks)
			})
			offEnd := bus.On(events.TopicEnd, func() {
				if err := r.Invoke(Drag); err != nil {
					r.log.Warn("drag commit failed", slog.Any("err", err))
				}
			})
			return func() {
				offStart()
				offEnd()
			}
		},
		Execute: func(...any) (Record, error) {
			after := domain.CloneBlocks(store.Document().Blocks)
			prev := before
			if prev == nil {
				prev = after
			}
			before = nil
			return blocksRecord(store, prev, after), nil
		},
	})

	r.Register(Command{
		Name:      UpdateContainer,
		PushQueue: true,
		Execute: func(args ...any) (Record, error) {
			next, err := documentArg(args, 0)
			if err != nil {
				return Record{}, err
			}
			prev := store.Document().Clone()
			next = next.Clone()
			apply := func(d domain.Document) {
				store.SetDocument(d.WithBlocks(patch(store.Document().Blocks, d.Blocks)))
			}
			return Record{
				Redo: func() { apply(next) },
				Undo: func() { apply(prev) },
			}, nil
		},
	})

	r.Register(Command{
		Name:      UpdateBlock,
		PushQueue: true,
		Execute: func(args ...any) (Record, error) {
			nb, err := blockArg(args, 0)
			if err != nil {
				return Record{}, err
			}
			old, err := blockArg(args, 1)
			if err != nil {
				return Record{}, err
			}
			cur := store.Document()
			after := domain.CloneBlocks(cur.Blocks)
			// identity lookup; a block that is no longer in the document is left alone
			if i := cur.IndexOf(old); i >= 0 {
				after[i] = nb.Clone()
			}
			return blocksRecord(store, domain.CloneBlocks(cur.Blocks), after), nil
		},
	})

	r.Register(Command{
		Name:      PlaceTop,
		PushQueue: true,
		Execute: func(...any) (Record, error) {
			cur := store.Document().Blocks
			after := domain.CloneBlocks(cur)
			s := selection.Compute(after)
			z := 1
			if len(s.Unfocused) > 0 {
				maxZ := math.MinInt
				for _, b := range s.Unfocused {
					maxZ = max(maxZ, b.ZIndex)
				}
				z = maxZ + 1
			}
			for _, b := range s.Focused {
				b.ZIndex = z
			}
			return blocksRecord(store, domain.CloneBlocks(cur), after), nil
		},
	})

	r.Register(Command{
		Name:      PlaceBottom,
		PushQueue: true,
		Execute: func(...any) (Record, error) {
			cur := store.Document().Blocks
			after := domain.CloneBlocks(cur)
			s := selection.Compute(after)
			z := 0
			if len(s.Unfocused) > 0 {
				minZ := math.MaxInt
				for _, b := range s.Unfocused {
					minZ = min(minZ, b.ZIndex)
				}
				z = minZ - 1
			}
			if z < 0 {
				// keep every index non-negative by lifting the others instead
				shift := -z
				for _, b := range s.Unfocused {
					b.ZIndex += shift
				}
				z = 0
			}
			for _, b := range s.Focused {
				b.ZIndex = z
			}
			return blocksRecord(store, domain.CloneBlocks(cur), after), nil
		},
	})

	r.Register(Command{
		Name:      Delete,
		PushQueue: true,
		Execute: func(...any) (Record, error) {
			cur := store.Document().Blocks
			after := domain.CloneBlocks(selection.Compute(cur).Unfocused)
			return blocksRecord(store, domain.CloneBlocks(cur), after), nil
		},
	})
}

// blocksRecord swaps between two block snapshots. Neither snapshot is ever
// installed itself, so later in-place edits of live blocks cannot reach them.
func blocksRecord(store Store, before, after []*domain.Block) Record {
	return Record{
		Redo: func() { store.SetDocument(store.Document().WithBlocks(patch(store.Document().Blocks, after))) },
		Undo: func() { store.SetDocument(store.Document().WithBlocks(patch(store.Document().Blocks, before))) },
	}
}

// patch returns a new block list with the values of snap. Each entry reuses a
// live block that already holds the same value, preferring the one at the same
// index; every other entry is a fresh copy. A live block is reused at most once.
func patch(live, snap []*domain.Block) []*domain.Block {
	used := make([]bool, len(live))
	take := func(i int, s *domain.Block) bool {
		if i < 0 || i >= len(live) || used[i] || !live[i].Equal(s) {
			return false
		}
		used[i] = true
		return true
	}
	out := make([]*domain.Block, len(snap))
	for i, s := range snap {
		if take(i, s) {
			out[i] = live[i]
			continue
		}
		for j := range live {
			if take(j, s) {
				out[i] = live[j]
				break
			}
		}
		if out[i] == nil {
			out[i] = s.Clone()
		}
	}
	return out
}

func documentArg(args []any, i int) (domain.Document, error) {
	if i >= len(args) {
		return domain.Document{}, fmt.Errorf("argument %d missing: %w", i, ErrInvalidArgs)
	}
	switch v := args[i].(type) {
	case domain.Document:
		return v, nil
	case *domain.Document:
		if v != nil {
			return *v, nil
		}
	}
	return domain.Document{}, fmt.Errorf("argument %d is %T, want domain.Document: %w", i, args[i], ErrInvalidArgs)
}

func blockArg(args []any, i int) (*domain.Block, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("argument %d missing: %w", i, ErrInvalidArgs)
	}
	b, ok := args[i].(*domain.Block)
	if !ok || b == nil {
		return nil, fmt.Errorf("argument %d is %T, want *domain.Block: %w", i, args[i], ErrInvalidArgs)
	}
	return b, nil
}
