/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tui

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/overlay"
	"pagebuilder/internal/storage"
)

type fakeClipboard struct{ text string }

func (f *fakeClipboard) ReadAll() (string, error)   { return f.text, nil }
func (f *fakeClipboard) WriteAll(text string) error { f.text = text; return nil }

// testDoc has a text block at cells (12,6) and a button far away.
func testDoc() domain.Document {
	doc := domain.NewDocument(800, 600)
	doc.Blocks = []*domain.Block{
		{Key: "text", Left: 96, Top: 96, ZIndex: 1, Width: domain.Float(48), Height: domain.Float(16)},
		{Key: "button", Left: 400, Top: 300, ZIndex: 2, Width: domain.Float(80), Height: domain.Float(16)},
	}
	return doc
}

func newModel(t *testing.T, doc domain.Document, opts Options) (*Model, *fakeClipboard) {
	t.Helper()
	clip := &fakeClipboard{}
	opts.Clipboard = clip
	opts.Logger = applog.Discard()
	m := New(doc, opts)
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 60})
	return m, clip
}

func mouse(action tea.MouseAction, button tea.MouseButton, col, row int) tea.MouseMsg {
	return tea.MouseMsg{X: col, Y: row, Action: action, Button: button}
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestPaletteDropCentersNewBlock(t *testing.T) {
	m, _ := newModel(t, testDoc(), Options{})

	// "Text" is the first palette row
	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, 2, canvasTop))
	require.Equal(t, "text", m.paletteKey)
	m.Update(mouse(tea.MouseActionMotion, tea.MouseButtonLeft, canvasLeft+10, canvasTop+5))
	require.True(t, m.overCanvas)
	m.Update(mouse(tea.MouseActionRelease, tea.MouseButtonLeft, canvasLeft+10, canvasTop+5))

	require.Equal(t, 3, m.ed.Len())
	b, err := m.ed.Block(2)
	require.NoError(t, err)
	// dropped at (84, 88), measured 48x16 and centred
	assert.Equal(t, 60.0, b.Left)
	assert.Equal(t, 80.0, b.Top)
	assert.False(t, b.AlignCenter)
	assert.Equal(t, 1, m.ed.History().Len())
	assert.True(t, m.Dirty())
	assert.Empty(t, m.paletteKey)
}

func TestPaletteReleaseOutsideCanvasDropsNothing(t *testing.T) {
	m, _ := newModel(t, testDoc(), Options{})
	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, 2, canvasTop+1))
	m.Update(mouse(tea.MouseActionMotion, tea.MouseButtonLeft, canvasLeft+10, canvasTop+5))
	m.Update(mouse(tea.MouseActionMotion, tea.MouseButtonLeft, 3, canvasTop+5))
	require.False(t, m.overCanvas)
	m.Update(mouse(tea.MouseActionRelease, tea.MouseButtonLeft, 3, canvasTop+5))
	assert.Equal(t, 2, m.ed.Len())
	assert.False(t, m.ed.Dragging())
}

func TestCanvasDragAndUndo(t *testing.T) {
	m, _ := newModel(t, testDoc(), Options{})

	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, canvasLeft+13, canvasTop+6))
	require.True(t, m.pressing)
	require.Equal(t, 0, m.ed.Anchor())
	m.Update(mouse(tea.MouseActionMotion, tea.MouseButtonLeft, canvasLeft+23, canvasTop+6))
	require.True(t, m.ed.Dragging())
	m.Update(mouse(tea.MouseActionRelease, tea.MouseButtonLeft, canvasLeft+23, canvasTop+6))

	b, _ := m.ed.Block(0)
	assert.Equal(t, 176.0, b.Left)
	assert.Equal(t, 96.0, b.Top)
	assert.Equal(t, 1, m.ed.History().Len())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlZ})
	b, _ = m.ed.Block(0)
	assert.Equal(t, 96.0, b.Left)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	b, _ = m.ed.Block(0)
	assert.Equal(t, 176.0, b.Left)
}

func TestBlurEndsCanvasDrag(t *testing.T) {
	m, _ := newModel(t, testDoc(), Options{})

	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, canvasLeft+13, canvasTop+6))
	m.Update(mouse(tea.MouseActionMotion, tea.MouseButtonLeft, canvasLeft+23, canvasTop+6))
	require.True(t, m.ed.Dragging())

	// the release happens outside the terminal
	m.Update(tea.BlurMsg{})
	assert.False(t, m.ed.Dragging())
	assert.False(t, m.pressing)
	assert.Equal(t, 1, m.ed.History().Len())
	b, _ := m.ed.Block(0)
	assert.Equal(t, 176.0, b.Left)

	m.Update(mouse(tea.MouseActionMotion, tea.MouseButtonLeft, canvasLeft+40, canvasTop+6))
	b, _ = m.ed.Block(0)
	assert.Equal(t, 176.0, b.Left, "later motion no longer moves the block")
	assert.Equal(t, 1, m.ed.History().Len())
}

func TestBlurEndsPaletteDrag(t *testing.T) {
	m, _ := newModel(t, testDoc(), Options{})
	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, 2, canvasTop+1))
	m.Update(mouse(tea.MouseActionMotion, tea.MouseButtonLeft, canvasLeft+10, canvasTop+5))
	require.True(t, m.ed.Dragging())

	m.Update(tea.BlurMsg{})
	assert.False(t, m.ed.Dragging())
	assert.Empty(t, m.paletteKey)
	assert.Equal(t, 2, m.ed.Len())
}

func TestClickEmptyCanvasClearsSelection(t *testing.T) {
	doc := testDoc()
	doc.Blocks[0].Focus = true
	m, _ := newModel(t, doc, Options{})
	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, canvasLeft+2, canvasTop+2))
	assert.Empty(t, m.ed.Selection().Focused)
}

func TestExportCopiesJSON(t *testing.T) {
	m, clip := newModel(t, testDoc(), Options{})
	m.Update(runes("e"))
	require.Equal(t, overlay.DialogKind, m.ed.Overlay().Current())
	assert.Contains(t, m.View(), "Export JSON")

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	doc, err := storage.ParseDocument([]byte(clip.text))
	require.NoError(t, err)
	assert.Len(t, doc.Blocks, 2)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, overlay.None, m.ed.Overlay().Current())
}

func TestImportFromClipboard(t *testing.T) {
	m, clip := newModel(t, testDoc(), Options{})
	m.Update(runes("i"))
	require.Equal(t, overlay.DialogKind, m.ed.Overlay().Current())

	clip.text = "{broken"
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlV})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, overlay.DialogKind, m.ed.Overlay().Current(), "invalid JSON keeps the dialog open")
	assert.True(t, m.statusErr)

	data, err := domain.Marshal(domain.NewDocument(320, 240))
	require.NoError(t, err)
	clip.text = string(data)
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlV})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, overlay.None, m.ed.Overlay().Current())
	assert.Equal(t, 0, m.ed.Len())
	assert.Equal(t, 320.0, m.ed.Document().Container.Width)
}

func TestContextMenuDeletesSelection(t *testing.T) {
	m, _ := newModel(t, testDoc(), Options{})
	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, canvasLeft+13, canvasTop+6))
	m.Update(mouse(tea.MouseActionRelease, tea.MouseButtonLeft, canvasLeft+13, canvasTop+6))
	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonRight, canvasLeft+13, canvasTop+6))
	require.Equal(t, overlay.DropdownKind, m.ed.Overlay().Current())
	assert.Contains(t, m.View(), "3 Delete")

	m.Update(runes("3"))
	assert.Equal(t, 1, m.ed.Len())
	b, _ := m.ed.Block(0)
	assert.Equal(t, "button", b.Key)
}

func TestPreviewToggleAndToolbarClick(t *testing.T) {
	m, _ := newModel(t, testDoc(), Options{})
	m.Update(runes("p"))
	require.True(t, m.ed.Preview())
	assert.Contains(t, m.View(), "Edit")

	// the first toolbar button is Undo; clicking it with empty history is harmless
	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, 1, toolbarRow))
	assert.Equal(t, 0, m.ed.History().Len())

	// palette is inert in preview
	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, 2, canvasTop))
	assert.Empty(t, m.paletteKey)
}

func TestQuitClosesEditor(t *testing.T) {
	m, _ := newModel(t, testDoc(), Options{})
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, "", m.View())
}

func TestSaveAndExternalReload(t *testing.T) {
	root := t.TempDir()
	ph, err := storage.InitPage(root, testDoc())
	require.NoError(t, err)
	w, err := storage.NewWatcher(ph)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	auto := storage.NewAutosaver(ph, storage.AutosaveOptions{MinInterval: time.Millisecond, Keep: 3})

	m, _ := newModel(t, ph.Document, Options{Handle: ph, Watcher: w, Autosave: auto})
	require.NotNil(t, m.Init())

	m.Update(mouse(tea.MouseActionPress, tea.MouseButtonLeft, canvasLeft+13, canvasTop+6))
	m.Update(mouse(tea.MouseActionRelease, tea.MouseButtonLeft, canvasLeft+13, canvasTop+6))
	m.Update(runes("x"))
	require.Equal(t, 1, m.ed.Len())
	require.True(t, m.Dirty())
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.False(t, m.Dirty())
	data, err := os.ReadFile(ph.PagePath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"blocks"`))

	// an edit made by another program arrives as an undoable replacement
	ext := domain.NewDocument(500, 500)
	m.Update(externalChangeMsg{doc: ext})
	assert.Equal(t, 500.0, m.ed.Document().Container.Width)
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlZ})
	assert.Equal(t, 800.0, m.ed.Document().Container.Width)

	snaps, err := storage.ListSnapshots(context.Background(), ph, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, snaps)
}

func TestEngineKey(t *testing.T) {
	k, ok := engineKey("ctrl+z")
	require.True(t, ok)
	assert.Equal(t, "ctrl+z", k.String())
	k, ok = engineKey("esc")
	require.True(t, ok)
	assert.Equal(t, "escape", k.String())
	_, ok = engineKey("a")
	assert.False(t, ok)
}

func TestHitBlockPrefersTopmost(t *testing.T) {
	blocks := []*domain.Block{
		{Key: "a", Left: 0, Top: 0, ZIndex: 5, Width: domain.Float(80), Height: domain.Float(32)},
		{Key: "b", Left: 0, Top: 0, ZIndex: 1, Width: domain.Float(80), Height: domain.Float(32)},
	}
	assert.Equal(t, 0, hitBlock(blocks, canvasLeft+1, canvasTop+1))
	assert.Equal(t, -1, hitBlock(blocks, canvasLeft+20, canvasTop+1))
	assert.Equal(t, 1, toolbarHit([]string{"Undo", "Redo"}, 7))
}
