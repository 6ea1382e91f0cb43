/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package drag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/align"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/selection"
)

type memStore struct{ doc domain.Document }

func (m *memStore) Document() domain.Document     { return m.doc }
func (m *memStore) SetDocument(d domain.Document) { m.doc = d }
func (m *memStore) Blocks() []*domain.Block       { return m.doc.Blocks }

type rig struct {
	store   *memStore
	bus     *events.Bus
	sel     *selection.Model
	surface *Surface
	canvas  *Canvas
	starts  int
	ends    int
}

func newRig(doc domain.Document) *rig {
	r := &rig{store: &memStore{doc: doc}, bus: events.NewBus(), surface: NewSurface()}
	r.sel = selection.NewModel(r.store, nil)
	r.canvas = NewCanvas(r.store, r.sel, r.bus, r.surface, CanvasOptions{})
	r.bus.On(events.TopicStart, func() { r.starts++ })
	r.bus.On(events.TopicEnd, func() { r.ends++ })
	return r
}

// press mirrors how the editor chains selection into the drag controller.
func (r *rig) press(index int, ev events.Pointer) {
	r.sel.OnBlockPointerDown(ev, r.store.doc.Blocks[index], index, r.canvas.PointerDown)
}

func (r *rig) move(x, y float64) { r.surface.DispatchPointer(events.PointerMove, events.Pointer{X: x, Y: y}) }
func (r *rig) up(x, y float64)   { r.surface.DispatchPointer(events.PointerUp, events.Pointer{X: x, Y: y}) }

func sized(key string, left, top, w, h float64) *domain.Block {
	return &domain.Block{Key: key, Left: left, Top: top, ZIndex: 1, Width: domain.Float(w), Height: domain.Float(h)}
}

func TestCanvasSnapsBottomOfAnchorToTopOfReference(t *testing.T) {
	doc := domain.NewDocument(1000, 1000)
	doc.Blocks = append(doc.Blocks,
		sized("text", 200, 200, 100, 50), // anchor
		sized("text", 200, 100, 100, 50), // reference
	)
	r := newRig(doc)
	r.press(0, events.Pointer{X: 250, Y: 225})
	r.move(250, 77) // naive top 52

	anchor := r.store.doc.Blocks[0]
	assert.Equal(t, 50.0, anchor.Top)
	g := r.canvas.Guides()
	require.NotNil(t, g.Y)
	assert.Equal(t, 100.0, *g.Y)
	// left stays on the reference's left edge
	require.NotNil(t, g.X)
	assert.Equal(t, 200.0, *g.X)
	assert.Equal(t, 200.0, anchor.Left)

	r.up(250, 77)
	g = r.canvas.Guides()
	assert.Nil(t, g.X)
	assert.Nil(t, g.Y)
	assert.Equal(t, 1, r.starts)
	assert.Equal(t, 1, r.ends)
}

func TestCanvasNoSnapOutsideThreshold(t *testing.T) {
	doc := domain.NewDocument(1000, 1000)
	doc.Blocks = append(doc.Blocks,
		sized("text", 400, 400, 100, 50),
		sized("text", 200, 100, 100, 50),
	)
	r := newRig(doc)
	r.press(0, events.Pointer{X: 450, Y: 425})
	r.move(470, 335) // naive left 420, top 310
	anchor := r.store.doc.Blocks[0]
	assert.Equal(t, 420.0, anchor.Left)
	assert.Equal(t, 310.0, anchor.Top)
	assert.Nil(t, r.canvas.Guides().X)
	assert.Nil(t, r.canvas.Guides().Y)
}

func TestCanvasClickWithoutMoveNeverStartsHistory(t *testing.T) {
	doc := domain.NewDocument(500, 500)
	doc.Blocks = append(doc.Blocks, sized("text", 10, 10, 20, 20))
	r := newRig(doc)
	r.press(0, events.Pointer{X: 15, Y: 15})
	assert.True(t, r.canvas.Active())
	assert.Equal(t, 1, r.surface.PointerListeners(events.PointerMove))
	r.up(15, 15)
	assert.False(t, r.canvas.Active())
	assert.Equal(t, 0, r.surface.PointerListeners(events.PointerMove))
	assert.Equal(t, 0, r.surface.PointerListeners(events.PointerUp))
	assert.Zero(t, r.starts)
	assert.Zero(t, r.ends)
}

func TestCanvasMultiSelectMovesInLockstep(t *testing.T) {
	doc := domain.NewDocument(5000, 5000)
	doc.Blocks = append(doc.Blocks,
		&domain.Block{Key: "text", Left: 1000, Top: 1000},
		&domain.Block{Key: "button", Left: 1500, Top: 1300},
		&domain.Block{Key: "input", Left: 3000, Top: 3000},
	)
	r := newRig(doc)
	r.press(0, events.Pointer{X: 1000, Y: 1000})
	r.press(1, events.Pointer{X: 1500, Y: 1300, Shift: true})
	start := []position{{top: 1000, left: 1000}, {top: 1300, left: 1500}}

	r.move(1537, 1288)
	r.move(1561, 1222)
	dx, dy := 61.0, -78.0
	for i, b := range r.store.doc.Blocks[:2] {
		assert.Equal(t, start[i].left+dx, b.Left, "block %d left", i)
		assert.Equal(t, start[i].top+dy, b.Top, "block %d top", i)
	}
	third := r.store.doc.Blocks[2]
	assert.Equal(t, 3000.0, third.Left)
	assert.Equal(t, 3000.0, third.Top)
	r.up(1561, 1222)
	assert.Equal(t, 1, r.starts)
	assert.Equal(t, 1, r.ends)
}

func TestCanvasSnapsToContainer(t *testing.T) {
	doc := domain.NewDocument(600, 400)
	doc.Blocks = append(doc.Blocks, sized("text", 100, 100, 50, 20))
	r := newRig(doc)
	r.press(0, events.Pointer{X: 110, Y: 110})
	r.move(13, 12) // naive left 3, top 2
	b := r.store.doc.Blocks[0]
	assert.Equal(t, 0.0, b.Left)
	assert.Equal(t, 0.0, b.Top)
}

func TestCanvasCancelUnbindsAndPairsEnd(t *testing.T) {
	doc := domain.NewDocument(600, 400)
	doc.Blocks = append(doc.Blocks, sized("text", 100, 100, 50, 20))
	r := newRig(doc)
	r.press(0, events.Pointer{X: 110, Y: 110})
	r.move(200, 200)
	r.canvas.Cancel()
	assert.Equal(t, 0, r.surface.PointerListeners(events.PointerMove))
	assert.Equal(t, 1, r.ends)
	r.move(300, 300)
	assert.Equal(t, 1, r.starts, "moves after cancel are ignored")
}

func TestCanvasGuideCallback(t *testing.T) {
	doc := domain.NewDocument(600, 400)
	doc.Blocks = append(doc.Blocks, sized("text", 100, 100, 50, 20))
	store := &memStore{doc: doc}
	bus := events.NewBus()
	sel := selection.NewModel(store, nil)
	surface := NewSurface()
	var seen []align.Guides
	c := NewCanvas(store, sel, bus, surface, CanvasOptions{OnGuides: func(g align.Guides) { seen = append(seen, g) }})
	sel.OnBlockPointerDown(events.Pointer{X: 110, Y: 110}, doc.Blocks[0], 0, c.PointerDown)
	surface.DispatchPointer(events.PointerMove, events.Pointer{X: 12, Y: 150})
	surface.DispatchPointer(events.PointerUp, events.Pointer{})
	require.Len(t, seen, 2)
	require.NotNil(t, seen[0].X)
	assert.Equal(t, 0.0, *seen[0].X)
	assert.Nil(t, seen[1].X)
}

func TestPaletteDropAppendsCenteredBlock(t *testing.T) {
	doc := domain.NewDocument(550, 550)
	doc.Blocks = append(doc.Blocks, &domain.Block{Key: "text"})
	store := &memStore{doc: doc}
	bus := events.NewBus()
	var signals []events.Topic
	bus.On(events.TopicStart, func() { signals = append(signals, events.TopicStart) })
	bus.On(events.TopicEnd, func() { signals = append(signals, events.TopicEnd) })
	surface := NewSurface()
	p := NewPalette(store, bus, nil)

	comp, _ := registry.Default().Lookup("button")
	p.DragStart(surface, comp)
	assert.True(t, p.Armed())
	for _, k := range []events.DragKind{events.DragEnter, events.DragOver, events.DragLeave, events.Drop} {
		assert.Equal(t, 1, surface.DragListeners(k), "listener %s", k)
	}

	enter := &events.Drag{}
	surface.DispatchDrag(events.DragEnter, enter)
	assert.Equal(t, events.EffectMove, enter.DropEffect)
	over := &events.Drag{}
	surface.DispatchDrag(events.DragOver, over)
	assert.True(t, over.DefaultPrevented(), "dragover must accept the drop")

	before := store.doc.Blocks
	surface.DispatchDrag(events.Drop, &events.Drag{OffsetX: 40, OffsetY: 60})
	p.DragEnd()

	require.Len(t, store.doc.Blocks, 2)
	nb := store.doc.Blocks[1]
	assert.Equal(t, "button", nb.Key)
	assert.Equal(t, 40.0, nb.Left)
	assert.Equal(t, 60.0, nb.Top)
	assert.Equal(t, 1, nb.ZIndex)
	assert.True(t, nb.AlignCenter)
	assert.Len(t, before, 1, "drop must not modify the previous block slice")
	assert.Equal(t, []events.Topic{events.TopicStart, events.TopicEnd}, signals)
	for _, k := range []events.DragKind{events.DragEnter, events.DragOver, events.DragLeave, events.Drop} {
		assert.Equal(t, 0, surface.DragListeners(k), "listener %s", k)
	}
	assert.False(t, p.Armed())
}

func TestPaletteDragEndWithoutDropStillSignals(t *testing.T) {
	store := &memStore{doc: domain.NewDocument(100, 100)}
	bus := events.NewBus()
	ends := 0
	bus.On(events.TopicEnd, func() { ends++ })
	surface := NewSurface()
	p := NewPalette(store, bus, nil)
	p.DragStart(surface, registry.Component{Key: "text"})
	leave := &events.Drag{}
	surface.DispatchDrag(events.DragLeave, leave)
	assert.Equal(t, events.EffectNone, leave.DropEffect)
	p.DragEnd()
	assert.Equal(t, 1, ends)
	assert.Empty(t, store.doc.Blocks)
	// a late drop after DragEnd reaches no listener
	assert.False(t, surface.DispatchDrag(events.Drop, &events.Drag{}))
}
