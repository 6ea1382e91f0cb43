/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

// Record is the reversible result of one command execution.
type Record struct {
	Redo func()
	Undo func()
}

// History is a linear undo queue with a cursor.
//
// queue[0..current] have been applied in order; entries after current were
// undone and are discarded as soon as a new record is pushed.
type History struct {
	queue    []Record
	current  int
	maxDepth int
}

// NewHistory returns an empty history. maxDepth limits the number of kept
// records (0 means unlimited); the oldest records are dropped first.
func NewHistory(maxDepth int) *History {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &History{current: -1, maxDepth: maxDepth}
}

// Push appends r after the cursor and returns how many undone records were discarded.
func (h *History) Push(r Record) (discarded int) {
	discarded = len(h.queue) - (h.current + 1)
	h.queue = append(h.queue[:h.current+1], r)
	h.current++
	h.enforceCap()
	return discarded
}

// Undo reverts the record at the cursor. It reports false at the start of history.
func (h *History) Undo() bool {
	if h.current == -1 {
		return false
	}
	if r := h.queue[h.current]; r.Undo != nil {
		r.Undo()
	}
	h.current--
	return true
}

// Redo re-applies the record after the cursor. It reports false when there is none.
func (h *History) Redo() bool {
	next := h.current + 1
	if next >= len(h.queue) {
		return false
	}
	if r := h.queue[next]; r.Redo != nil {
		r.Redo()
	}
	h.current = next
	return true
}

func (h *History) CanUndo() bool { return h.current >= 0 }
func (h *History) CanRedo() bool { return h.current+1 < len(h.queue) }

// Len returns the number of records, including undone ones not yet discarded.
func (h *History) Len() int { return len(h.queue) }

// Current returns the cursor, -1 when nothing is applied.
func (h *History) Current() int { return h.current }

// Clear drops every record.
func (h *History) Clear() {
	h.queue = nil
	h.current = -1
}

func (h *History) enforceCap() {
	if h.maxDepth == 0 || len(h.queue) <= h.maxDepth {
		return
	}
	// drop the oldest extras
	toDrop := len(h.queue) - h.maxDepth
	h.queue = append([]Record{}, h.queue[toDrop:]...)
	h.current -= toDrop
	if h.current < -1 {
		h.current = -1
	}
}
