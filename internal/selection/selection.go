/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package selection tracks which blocks are focused and which block was selected last.
package selection

import (
	"log/slog"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
)

// Snapshot partitions blocks into focused and unfocused, both in document order.
type Snapshot struct {
	Focused   []*domain.Block
	Unfocused []*domain.Block
}

// Compute derives the focus partition. It is a pure function of blocks.
func Compute(blocks []*domain.Block) Snapshot {
	var s Snapshot
	for _, b := range blocks {
		if b.Focus {
			s.Focused = append(s.Focused, b)
		} else {
			s.Unfocused = append(s.Unfocused, b)
		}
	}
	return s
}

// BlockSource yields the live block list of the document being edited.
type BlockSource interface {
	Blocks() []*domain.Block
}

// Model applies selection gestures to the live blocks.
// It is not safe for concurrent use; hosts call it from their event loop.
type Model struct {
	src     BlockSource
	anchor  int
	preview bool
	log     *slog.Logger
}

func NewModel(src BlockSource, log *slog.Logger) *Model {
	if log == nil {
		log = slog.Default()
	}
	return &Model{src: src, anchor: -1, log: log}
}

// Snapshot recomputes the partition from the current blocks.
func (m *Model) Snapshot() Snapshot { return Compute(m.src.Blocks()) }

// SetFocus focuses block. If exclusive, every other block loses focus first.
func (m *Model) SetFocus(block *domain.Block, exclusive bool) {
	if exclusive {
		m.ClearAllFocus()
	}
	block.Focus = true
}

// ClearAllFocus unfocuses every block.
func (m *Model) ClearAllFocus() {
	for _, b := range m.src.Blocks() {
		b.Focus = false
	}
}

// SelectAll focuses every block and anchors on the last one.
func (m *Model) SelectAll() {
	if m.preview {
		return
	}
	blocks := m.src.Blocks()
	for _, b := range blocks {
		b.Focus = true
	}
	m.anchor = len(blocks) - 1
}

// OnBlockPointerDown applies a pointer-down on the block at index and then
// calls then with the same event before returning. In preview mode it does nothing.
//
// With Shift held the block's focus toggles, except that while at most one
// block is focused the target is forced to focused, so a lone selection cannot
// be cleared by a modifier click. Without Shift an unfocused target becomes the
// only focused block; clicking an already focused block leaves the selection alone.
func (m *Model) OnBlockPointerDown(ev events.Pointer, block *domain.Block, index int, then func(events.Pointer)) {
	if m.preview {
		return
	}
	if ev.Shift {
		if len(m.Snapshot().Focused) <= 1 {
			block.Focus = true
		} else {
			block.Focus = !block.Focus
		}
	} else if !block.Focus {
		m.SetFocus(block, true)
	}
	m.anchor = index
	m.log.Debug("block pointer down", slog.Int("index", index), slog.Bool("shift", ev.Shift), slog.Bool("focus", block.Focus))
	if then != nil {
		then(ev)
	}
}

// OnContainerPointerDown clears the selection unless preview mode is active.
func (m *Model) OnContainerPointerDown() {
	if m.preview {
		return
	}
	m.ClearAllFocus()
	m.anchor = -1
}

// Anchor returns the last selected block and its index, or (nil, -1).
func (m *Model) Anchor() (*domain.Block, int) {
	blocks := m.src.Blocks()
	if m.anchor < 0 || m.anchor >= len(blocks) {
		return nil, -1
	}
	return blocks[m.anchor], m.anchor
}

// ResetAnchor forgets the last selected block.
func (m *Model) ResetAnchor() { m.anchor = -1 }

// SetPreview switches read-only viewing on or off. Entering preview clears focus.
func (m *Model) SetPreview(on bool) {
	if on {
		m.ClearAllFocus()
		m.anchor = -1
	}
	m.preview = on
}

// Preview reports whether read-only viewing is active.
func (m *Model) Preview() bool { return m.preview }
