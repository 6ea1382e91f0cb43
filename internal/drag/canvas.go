/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package drag

import (
	"log/slog"

	"pagebuilder/internal/align"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	"pagebuilder/internal/selection"
)

type position struct {
	top  float64
	left float64
}

// session is the state of one canvas drag, from pointer-down to pointer-up.
type session struct {
	startX, startY      float64
	startLeft, startTop float64
	focused             []*domain.Block
	startPos            []position
	lines               align.Lines
	dragging            bool
	offs                []func()
}

// Canvas moves the focused blocks with the pointer, snapping the anchor
// (last selected block) to alignment lines of the other blocks and the container.
type Canvas struct {
	store     Store
	sel       *selection.Model
	bus       *events.Bus
	surface   PointerSurface
	threshold float64
	log       *slog.Logger

	guides   align.Guides
	onGuides func(align.Guides)
	s        *session
}

// CanvasOptions configures a Canvas controller.
type CanvasOptions struct {
	// Threshold is the snap distance in pixels; zero means align.DefaultThreshold.
	Threshold float64
	// OnGuides is called whenever the displayed guides change.
	OnGuides func(align.Guides)
	Logger   *slog.Logger
}

func NewCanvas(store Store, sel *selection.Model, bus *events.Bus, surface PointerSurface, opts CanvasOptions) *Canvas {
	if opts.Threshold <= 0 {
		opts.Threshold = align.DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Canvas{
		store:     store,
		sel:       sel,
		bus:       bus,
		surface:   surface,
		threshold: opts.Threshold,
		onGuides:  opts.OnGuides,
		log:       opts.Logger,
	}
}

// PointerDown starts a drag session for the current selection. It captures the
// start positions, builds the alignment candidates once, and binds move/up on
// the pointer surface. Without an anchor or focused blocks nothing happens.
func (c *Canvas) PointerDown(ev events.Pointer) {
	anchor, _ := c.sel.Anchor()
	snap := c.sel.Snapshot()
	if anchor == nil || len(snap.Focused) == 0 {
		return
	}
	c.Cancel()

	s := &session{
		startX:    ev.X,
		startY:    ev.Y,
		startLeft: anchor.Left,
		startTop:  anchor.Top,
		focused:   snap.Focused,
		startPos:  make([]position, len(snap.Focused)),
		lines:     align.ForBlocks(anchor, snap.Unfocused, c.store.Document().Container),
	}
	for i, b := range snap.Focused {
		s.startPos[i] = position{top: b.Top, left: b.Left}
	}
	s.offs = []func(){
		c.surface.OnPointer(events.PointerMove, c.PointerMove),
		c.surface.OnPointer(events.PointerUp, c.PointerUp),
	}
	c.s = s
	c.log.Debug("canvas drag armed", slog.Int("focused", len(s.focused)), slog.Int("candidates", len(s.lines.X)+len(s.lines.Y)))
}

// PointerMove moves every focused block by the pointer delta, snapping the
// anchor independently on each axis to the first candidate within the threshold.
func (c *Canvas) PointerMove(ev events.Pointer) {
	s := c.s
	if s == nil {
		return
	}
	if !s.dragging {
		// a click without movement never reaches history
		s.dragging = true
		c.bus.Emit(events.TopicStart)
	}

	moveX, moveY := ev.X, ev.Y
	left := moveX - s.startX + s.startLeft
	top := moveY - s.startY + s.startTop

	var g align.Guides
	if l, ok := align.First(s.lines.Y, top, c.threshold); ok {
		moveY = s.startY - s.startTop + l.SnapAt
		show := l.ShowAt
		g.Y = &show
	}
	if l, ok := align.First(s.lines.X, left, c.threshold); ok {
		moveX = s.startX - s.startLeft + l.SnapAt
		show := l.ShowAt
		g.X = &show
	}
	c.setGuides(g)

	dx, dy := moveX-s.startX, moveY-s.startY
	for i, b := range s.focused {
		b.Top = s.startPos[i].top + dy
		b.Left = s.startPos[i].left + dx
	}
}

// PointerUp ends the session. TopicEnd is published only if the pointer moved.
func (c *Canvas) PointerUp(events.Pointer) {
	s := c.s
	if s == nil {
		return
	}
	c.end()
	if s.dragging {
		c.log.Debug("canvas drag end")
		c.bus.Emit(events.TopicEnd)
	}
}

// Cancel ends a session without a pointer-up, e.g. when the host window loses
// focus. A drag that already moved still publishes TopicEnd so history stays paired.
func (c *Canvas) Cancel() {
	s := c.s
	if s == nil {
		return
	}
	c.end()
	if s.dragging {
		c.bus.Emit(events.TopicEnd)
	}
}

func (c *Canvas) end() {
	for _, off := range c.s.offs {
		off()
	}
	c.s = nil
	c.setGuides(align.Guides{})
}

// Active reports whether a drag session is open.
func (c *Canvas) Active() bool { return c.s != nil }

// Guides returns the guides currently displayed.
func (c *Canvas) Guides() align.Guides { return c.guides }

func (c *Canvas) setGuides(g align.Guides) {
	if sameGuide(c.guides.X, g.X) && sameGuide(c.guides.Y, g.Y) {
		return
	}
	c.guides = g
	if c.onGuides != nil {
		c.onGuides(g)
	}
}

func sameGuide(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
