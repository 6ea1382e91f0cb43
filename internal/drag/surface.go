/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package drag implements the two pointer-driven drag controllers: dragging a
// new block from the palette onto the canvas, and moving placed blocks with
// alignment snapping.
package drag

import (
	"slices"
	"sync"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
)

// Store gives controllers access to the live document.
type Store interface {
	Document() domain.Document
	SetDocument(domain.Document)
}

// DropSurface is where palette drags are released: the canvas element.
type DropSurface interface {
	OnDrag(kind events.DragKind, fn func(*events.Drag)) (off func())
}

// PointerSurface delivers document level pointer events during a canvas drag.
type PointerSurface interface {
	OnPointer(kind events.PointerKind, fn func(events.Pointer)) (off func())
}

// Surface is an in-memory listener table implementing both DropSurface and
// PointerSurface. Hosts forward their native events through Dispatch*.
type Surface struct {
	mu      sync.Mutex
	next    int
	pointer map[events.PointerKind]map[int]func(events.Pointer)
	drag    map[events.DragKind]map[int]func(*events.Drag)
}

func NewSurface() *Surface {
	return &Surface{
		pointer: make(map[events.PointerKind]map[int]func(events.Pointer)),
		drag:    make(map[events.DragKind]map[int]func(*events.Drag)),
	}
}

func (s *Surface) OnPointer(kind events.PointerKind, fn func(events.Pointer)) (off func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	if s.pointer[kind] == nil {
		s.pointer[kind] = make(map[int]func(events.Pointer))
	}
	s.pointer[kind][id] = fn
	return func() {
		s.mu.Lock()
		delete(s.pointer[kind], id)
		s.mu.Unlock()
	}
}

func (s *Surface) OnDrag(kind events.DragKind, fn func(*events.Drag)) (off func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	if s.drag[kind] == nil {
		s.drag[kind] = make(map[int]func(*events.Drag))
	}
	s.drag[kind][id] = fn
	return func() {
		s.mu.Lock()
		delete(s.drag[kind], id)
		s.mu.Unlock()
	}
}

// DispatchPointer delivers ev to every listener bound for kind and reports
// whether any listener was bound.
func (s *Surface) DispatchPointer(kind events.PointerKind, ev events.Pointer) bool {
	s.mu.Lock()
	fns := make([]func(events.Pointer), 0, len(s.pointer[kind]))
	for _, id := range sortedKeys(s.pointer[kind]) {
		fns = append(fns, s.pointer[kind][id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
	return len(fns) > 0
}

// DispatchDrag delivers ev to every listener bound for kind and reports
// whether any listener was bound.
func (s *Surface) DispatchDrag(kind events.DragKind, ev *events.Drag) bool {
	s.mu.Lock()
	fns := make([]func(*events.Drag), 0, len(s.drag[kind]))
	for _, id := range sortedKeys(s.drag[kind]) {
		fns = append(fns, s.drag[kind][id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
	return len(fns) > 0
}

// PointerListeners returns the number of listeners bound for kind.
func (s *Surface) PointerListeners(kind events.PointerKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pointer[kind])
}

// DragListeners returns the number of listeners bound for kind.
func (s *Surface) DragListeners(kind events.DragKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drag[kind])
}

// sortedKeys keeps dispatch in registration order.
func sortedKeys[F any](m map[int]F) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
