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

	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	"pagebuilder/internal/registry"
)

// Palette drags a component from the palette onto the canvas.
//
// DragStart arms it and binds four callbacks on the drop surface. A drop adds
// one block at the drop point. DragEnd unbinds the callbacks and always
// publishes TopicEnd, so every TopicStart has a matching end even when the
// pointer was released outside the canvas.
type Palette struct {
	store   Store
	bus     *events.Bus
	log     *slog.Logger
	pending *registry.Component
	offs    []func()
}

func NewPalette(store Store, bus *events.Bus, log *slog.Logger) *Palette {
	if log == nil {
		log = slog.Default()
	}
	return &Palette{store: store, bus: bus, log: log}
}

// DragStart records comp as pending and listens for drag callbacks on surface.
func (p *Palette) DragStart(surface DropSurface, comp registry.Component) {
	p.unbind()
	c := comp
	p.pending = &c
	p.offs = append(p.offs,
		surface.OnDrag(events.DragEnter, p.onEnter),
		surface.OnDrag(events.DragOver, p.onOver),
		surface.OnDrag(events.DragLeave, p.onLeave),
		surface.OnDrag(events.Drop, p.onDrop),
	)
	p.log.Debug("palette drag start", slog.String("key", comp.Key))
	p.bus.Emit(events.TopicStart)
}

// DragEnd unbinds the surface callbacks and publishes TopicEnd.
func (p *Palette) DragEnd() {
	p.unbind()
	p.pending = nil
	p.log.Debug("palette drag end")
	p.bus.Emit(events.TopicEnd)
}

// Armed reports whether a component is waiting to be dropped.
func (p *Palette) Armed() bool { return p.pending != nil }

func (p *Palette) unbind() {
	for _, off := range p.offs {
		off()
	}
	p.offs = nil
}

func (p *Palette) onEnter(ev *events.Drag) { ev.DropEffect = events.EffectMove }

// Without PreventDefault on dragover the surface never receives the drop.
func (p *Palette) onOver(ev *events.Drag) { ev.PreventDefault() }

func (p *Palette) onLeave(ev *events.Drag) { ev.DropEffect = events.EffectNone }

func (p *Palette) onDrop(ev *events.Drag) {
	if p.pending == nil {
		return
	}
	doc := p.store.Document()
	blocks := make([]*domain.Block, 0, len(doc.Blocks)+1)
	blocks = append(blocks, doc.Blocks...)
	blocks = append(blocks, &domain.Block{
		Key:         p.pending.Key,
		Top:         ev.OffsetY,
		Left:        ev.OffsetX,
		ZIndex:      1,
		AlignCenter: true,
	})
	p.store.SetDocument(doc.WithBlocks(blocks))
	p.log.Debug("palette drop", slog.String("key", p.pending.Key), slog.Float64("left", ev.OffsetX), slog.Float64("top", ev.OffsetY))
	p.pending = nil
}
