/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package events

import "strings"

// Pointer is a pointer (mouse) event in client coordinates.
// Shift is the multi-select modifier.
type Pointer struct {
	X     float64
	Y     float64
	Shift bool
}

// PointerKind names the document level pointer listeners a canvas drag binds.
type PointerKind string

const (
	PointerMove PointerKind = "mousemove"
	PointerUp   PointerKind = "mouseup"
)

// DragKind names the native drag callbacks registered on the drop surface.
type DragKind string

const (
	DragEnter DragKind = "dragenter"
	DragOver  DragKind = "dragover"
	DragLeave DragKind = "dragleave"
	Drop      DragKind = "drop"
)

// Drop effects.
const (
	EffectMove = "move"
	EffectNone = "none"
)

// Drag is a palette drag event over the canvas surface. OffsetX/OffsetY are
// relative to the surface's top-left corner.
type Drag struct {
	OffsetX    float64
	OffsetY    float64
	DropEffect string

	defaultPrevented bool
}

// PreventDefault marks the event as handled. On dragover this is what lets
// the surface accept a drop.
func (d *Drag) PreventDefault() { d.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (d *Drag) DefaultPrevented() bool { return d.defaultPrevented }

// Key is a key-down event.
type Key struct {
	Ctrl bool
	Key  string
}

// String renders the key the way shortcuts are written, e.g. "ctrl+z".
func (k Key) String() string {
	var parts []string
	if k.Ctrl {
		parts = append(parts, "ctrl")
	}
	parts = append(parts, strings.ToLower(k.Key))
	return strings.Join(parts, "+")
}
