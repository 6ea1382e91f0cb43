/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/command"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	"pagebuilder/internal/overlay"
	"pagebuilder/internal/storage"
)

func page() domain.Document {
	doc := domain.NewDocument(800, 600)
	doc.Blocks = []*domain.Block{
		{Key: "text", Left: 100, Top: 100, ZIndex: 1, Width: domain.Float(50), Height: domain.Float(50)},
		{Key: "button", Left: 600, Top: 500, ZIndex: 2, Width: domain.Float(40), Height: domain.Float(40)},
	}
	return doc
}

type recorder struct{ docs []domain.Document }

func (r *recorder) onChange(d domain.Document) { r.docs = append(r.docs, d) }

func TestNewCopiesDocument(t *testing.T) {
	doc := page()
	e := New(doc, Options{})
	defer e.Close()

	doc.Blocks[0].Left = 1
	got := e.Document()
	assert.Equal(t, 100.0, got.Blocks[0].Left)

	got.Blocks[0].Left = 2
	assert.Equal(t, 100.0, e.Document().Blocks[0].Left, "Document must return a copy")
}

func TestPaletteDropCentersOnGeometry(t *testing.T) {
	rec := &recorder{}
	e := New(domain.NewDocument(800, 600), Options{OnChange: rec.onChange})
	defer e.Close()

	require.NoError(t, e.PaletteDragStart(nil, "button"))
	assert.True(t, e.Dragging())
	e.Surface().DispatchDrag(events.Drop, &events.Drag{OffsetX: 40, OffsetY: 60})
	assert.Empty(t, rec.docs, "no change is reported while the drag is open")
	e.PaletteDragEnd()

	require.Len(t, rec.docs, 1)
	require.Len(t, rec.docs[0].Blocks, 1)
	assert.Equal(t, 1, e.History().Len())

	require.NoError(t, e.ReportGeometry(0, 20, 10))
	b, err := e.Block(0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, b.Left)
	assert.Equal(t, 55.0, b.Top)
	assert.False(t, b.AlignCenter)

	// a second report must not shift again
	require.NoError(t, e.ReportGeometry(0, 20, 10))
	b, _ = e.Block(0)
	assert.Equal(t, 30.0, b.Left)
}

func TestPaletteDragUnknownComponent(t *testing.T) {
	e := New(domain.NewDocument(10, 10), Options{})
	defer e.Close()
	err := e.PaletteDragStart(nil, "video")
	assert.ErrorIs(t, err, ErrUnknownComponent)
	assert.False(t, e.Dragging())
}

func TestCanvasDragCommitsAndUndoes(t *testing.T) {
	rec := &recorder{}
	e := New(page(), Options{OnChange: rec.onChange})
	defer e.Close()

	require.NoError(t, e.BlockPointerDown(events.Pointer{X: 120, Y: 120}, 0))
	assert.Equal(t, 0, e.Anchor())
	e.PointerMove(events.Pointer{X: 170, Y: 220})
	assert.True(t, e.Dragging())
	e.PointerUp(events.Pointer{X: 170, Y: 220})
	assert.False(t, e.Dragging())
	assert.True(t, e.Guides().X == nil && e.Guides().Y == nil)

	require.Len(t, rec.docs, 1)
	assert.Equal(t, 150.0, rec.docs[0].Blocks[0].Left)
	assert.Equal(t, 200.0, rec.docs[0].Blocks[0].Top)

	assert.True(t, e.HandleKey(events.Key{Ctrl: true, Key: "z"}))
	b, _ := e.Block(0)
	assert.Equal(t, 100.0, b.Left)
	assert.Equal(t, 100.0, b.Top)
	assert.Equal(t, -1, e.Anchor(), "undo resets the anchor")

	assert.True(t, e.HandleKey(events.Key{Ctrl: true, Key: "y"}))
	b, _ = e.Block(0)
	assert.Equal(t, 150.0, b.Left)
}

func TestBlockPointerDownOutOfRange(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()
	assert.ErrorIs(t, e.BlockPointerDown(events.Pointer{}, 5), ErrNoBlock)
	assert.ErrorIs(t, e.ReportGeometry(-1, 1, 1), ErrNoBlock)
}

func TestImportDocument(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()

	e.ImportDocument()
	require.Equal(t, overlay.DialogKind, e.Overlay().Current())

	err := e.Overlay().Confirm(`{"container":`)
	assert.ErrorIs(t, err, storage.ErrInvalidDocument)
	assert.Equal(t, overlay.DialogKind, e.Overlay().Current(), "rejected import keeps the dialog open")
	assert.Error(t, e.Overlay().Dialog().Err())
	assert.Equal(t, 0, e.History().Len())

	err = e.Overlay().Confirm(`{"container":{"width":10,"height":20},"blocks":[{"key":"text","top":1,"left":2,"zIndex":1}]}`)
	require.NoError(t, err)
	assert.Equal(t, overlay.None, e.Overlay().Current())
	assert.Equal(t, 1, e.Len())
	assert.Equal(t, 20.0, e.Document().Container.Height)
	assert.Equal(t, 1, e.History().Len())

	require.NoError(t, e.Invoke(command.Undo))
	assert.Equal(t, 2, e.Len())
}

func TestExportDocumentShowsJSON(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()
	require.NoError(t, e.ExportDocument())
	d := e.Overlay().Dialog()
	require.NotNil(t, d)
	assert.False(t, d.Options().Footer)
	doc, err := storage.ParseDocument([]byte(d.Content()))
	require.NoError(t, err)
	assert.Len(t, doc.Blocks, 2)
}

func TestImportBlock(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()

	require.NoError(t, e.ImportBlock(0))
	require.NoError(t, e.Overlay().Confirm(`{"key":"input","top":9,"left":8,"zIndex":4}`))
	b, _ := e.Block(0)
	assert.Equal(t, "input", b.Key)
	assert.Equal(t, 9.0, b.Top)
	assert.Equal(t, 1, e.History().Len())
}

func TestImportBlockAfterUnrelatedCommit(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()

	require.NoError(t, e.ImportBlock(1))
	// nothing is focused, so no block changes
	require.NoError(t, e.Invoke(command.PlaceTop))
	require.NoError(t, e.Overlay().Confirm(`{"key":"input","top":9,"left":8,"zIndex":4}`))

	b, _ := e.Block(1)
	assert.Equal(t, "input", b.Key)
	assert.Equal(t, 8.0, b.Left)
	assert.Equal(t, 2, e.History().Len())

	require.NoError(t, e.Invoke(command.Undo))
	b, _ = e.Block(1)
	assert.Equal(t, "button", b.Key)
}

func TestImportBlockAfterDelete(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()

	require.NoError(t, e.ImportBlock(0))
	require.NoError(t, e.BlockPointerDown(events.Pointer{X: 110, Y: 110}, 0))
	e.PointerUp(events.Pointer{X: 110, Y: 110})
	require.NoError(t, e.Invoke(command.Delete))
	require.Equal(t, 1, e.Len())

	n := e.History().Len()
	require.NoError(t, e.Overlay().Confirm(`{"key":"input","top":9,"left":8,"zIndex":4}`))

	require.Equal(t, 1, e.Len())
	b, _ := e.Block(0)
	assert.Equal(t, "button", b.Key, "the dialog's block is gone, nothing is replaced")
	assert.Equal(t, n+1, e.History().Len(), "the no-op is still recorded")
}

func TestContextMenuDelete(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()

	require.NoError(t, e.BlockPointerDown(events.Pointer{X: 610, Y: 510}, 1))
	e.PointerUp(events.Pointer{X: 610, Y: 510})
	require.NoError(t, e.ContextMenu(1))
	require.Equal(t, overlay.DropdownKind, e.Overlay().Current())

	items := e.Overlay().Dropdown().Options().Items
	require.Len(t, items, 5)
	assert.Equal(t, "Delete", items[2].Label)
	assert.Equal(t, 600.0, e.Overlay().Dropdown().Options().X)

	require.NoError(t, e.Overlay().Select(2))
	assert.Equal(t, 1, e.Len())
	assert.Equal(t, "text", e.Document().Blocks[0].Key)
	assert.Equal(t, -1, e.Anchor())
}

func TestKeysSelectAllAndEscape(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()

	assert.True(t, e.HandleKey(events.Key{Ctrl: true, Key: "A"}))
	assert.Len(t, e.Selection().Focused, 2)

	e.ImportDocument()
	assert.True(t, e.HandleKey(events.Key{Key: "Escape"}))
	assert.Equal(t, overlay.None, e.Overlay().Current())

	assert.False(t, e.HandleKey(events.Key{Key: "q"}))
}

func TestPreviewIgnoresSelection(t *testing.T) {
	e := New(page(), Options{})
	defer e.Close()

	e.SetPreview(true)
	require.NoError(t, e.BlockPointerDown(events.Pointer{X: 110, Y: 110}, 0))
	assert.Empty(t, e.Selection().Focused)
	e.SelectAll()
	assert.Empty(t, e.Selection().Focused)

	var labels []string
	for _, b := range e.Toolbar() {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"Undo", "Redo", "Import", "Export", "Place top", "Place bottom", "Delete", "Edit", "Close"}, labels)
}

func TestToolbarCloseAndCommandHook(t *testing.T) {
	var names []string
	closed := false
	e := New(page(), Options{
		OnCommand: func(n string) { names = append(names, n) },
		OnClose:   func() { closed = true },
	})
	defer e.Close()

	bar := e.Toolbar()
	require.NoError(t, bar[4].Action()) // place top
	require.NoError(t, bar[0].Action()) // undo
	assert.Equal(t, []string{command.PlaceTop, command.Undo}, names)

	require.NoError(t, bar[len(bar)-1].Action())
	assert.True(t, closed)
}

func TestCloseStopsCommands(t *testing.T) {
	e := New(page(), Options{})
	e.Close()
	e.Close()
	assert.ErrorIs(t, e.Invoke(command.Delete), ErrClosed)
	assert.False(t, e.HandleKey(events.Key{Ctrl: true, Key: "z"}))
	assert.ErrorIs(t, e.PaletteDragStart(nil, "text"), ErrClosed)
}

func TestSetDocumentClearsHistory(t *testing.T) {
	rec := &recorder{}
	e := New(page(), Options{OnChange: rec.onChange})
	defer e.Close()

	require.NoError(t, e.Invoke(command.PlaceTop))
	e.SetDocument(domain.NewDocument(1, 1))
	assert.Equal(t, 0, e.History().Len())
	assert.Equal(t, 0, e.Len())
	assert.Len(t, rec.docs, 2)
}
