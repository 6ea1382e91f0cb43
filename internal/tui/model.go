/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tui is a terminal host for the page editor. It turns bubbletea
// mouse and key messages into editor calls and draws the canvas with lipgloss.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"pagebuilder/internal/align"
	"pagebuilder/internal/command"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/events"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/overlay"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/telemetry"
)

// Clipboard is the system clipboard as used by the import and export dialogs.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Options configures the terminal host. Only the document is required.
type Options struct {
	// Handle is the page on disk. Without it ctrl+s is unavailable.
	Handle    *storage.PageHandle
	Registry  *registry.Registry
	Autosave  *storage.Autosaver
	Watcher   *storage.Watcher
	Telemetry *telemetry.Client
	Clipboard Clipboard

	SnapThreshold float64
	HistoryLimit  int
	Preview       bool
	Logger        *slog.Logger
}

// externalChangeMsg carries a page edited outside the editor.
type externalChangeMsg struct{ doc domain.Document }

type watchErrMsg struct{ err error }

// Model is the bubbletea model. It is also the overlay presenter.
type Model struct {
	ed   *editor.Editor
	opts Options
	reg  *registry.Registry
	clip Clipboard
	log  *slog.Logger

	width, height int
	status        string
	statusErr     bool
	dirty         bool
	changed       bool
	quitting      bool

	paletteKey string
	overCanvas bool
	pressing   bool
	guides     align.Guides

	dialog   *overlay.Dialog
	dropdown *overlay.Dropdown
}

// New builds the host around doc.
func New(doc domain.Document, opts Options) *Model {
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = systemClipboard{}
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("tui")
	}
	m := &Model{opts: opts, reg: opts.Registry, clip: opts.Clipboard, log: opts.Logger, width: 100, height: 40}
	var onCommand func(string)
	if opts.Telemetry != nil {
		onCommand = opts.Telemetry.Command
	}
	m.ed = editor.New(doc, editor.Options{
		Registry:      opts.Registry,
		Overlay:       overlay.NewManager(m),
		OnChange:      func(domain.Document) { m.changed = true },
		OnGuides:      func(g align.Guides) { m.guides = g },
		OnCommand:     onCommand,
		OnClose:       func() { m.quitting = true },
		SnapThreshold: opts.SnapThreshold,
		HistoryLimit:  opts.HistoryLimit,
		Logger:        opts.Logger,
	})
	if opts.Preview {
		m.ed.SetPreview(true)
	}
	m.measureAll()
	return m
}

// Editor exposes the engine the model drives.
func (m *Model) Editor() *editor.Editor { return m.ed }

// PresentDialog implements overlay.Presenter.
func (m *Model) PresentDialog(d *overlay.Dialog) { m.dialog, m.dropdown = d, nil }

// PresentDropdown implements overlay.Presenter.
func (m *Model) PresentDropdown(d *overlay.Dropdown) { m.dropdown, m.dialog = d, nil }

// Dismiss implements overlay.Presenter.
func (m *Model) Dismiss() { m.dialog, m.dropdown = nil, nil }

func (m *Model) Init() tea.Cmd { return m.waitForChange() }

// waitForChange blocks on the page watcher and delivers one change or error.
func (m *Model) waitForChange() tea.Cmd {
	w := m.opts.Watcher
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case doc := <-w.Changes():
			return externalChangeMsg{doc: doc}
		case err := <-w.Errors():
			return watchErrMsg{err: err}
		}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case externalChangeMsg:
		if err := m.ed.Invoke(command.UpdateContainer, msg.doc); err != nil {
			m.setErr(err)
		} else {
			m.setStatus("page changed on disk; reloaded (ctrl+z to revert)")
		}
		cmd = m.waitForChange()
	case watchErrMsg:
		m.setErr(fmt.Errorf("page on disk: %w", msg.err))
		cmd = m.waitForChange()
	case tea.KeyMsg:
		m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
	case tea.BlurMsg:
		// the release may happen outside the terminal and never arrive
		m.ed.CancelDrag()
		m.paletteKey, m.overCanvas = "", false
		m.pressing = false
		m.guides = align.Guides{}
	}
	m.afterUpdate()
	if m.quitting {
		m.shutdown()
		return m, tea.Quit
	}
	return m, cmd
}

// afterUpdate sizes newly placed blocks and autosaves committed changes.
func (m *Model) afterUpdate() {
	m.measureAll()
	if !m.changed {
		return
	}
	m.changed = false
	m.dirty = true
	if m.opts.Autosave == nil || m.ed.Dragging() {
		return
	}
	if _, err := m.opts.Autosave.Maybe(context.Background(), m.ed.Document()); err != nil {
		m.setErr(fmt.Errorf("autosave: %w", err))
	}
}

// measureAll reports the rendered size of every block that has none yet.
func (m *Model) measureAll() {
	for i := 0; i < m.ed.Len(); i++ {
		b, err := m.ed.Block(i)
		if err != nil || b.HasGeometry() {
			continue
		}
		w, h := measure(m.reg, b.Key)
		_ = m.ed.ReportGeometry(i, w, h)
	}
}

func (m *Model) setStatus(s string) { m.status, m.statusErr = s, false }

func (m *Model) setErr(err error) {
	m.status, m.statusErr = err.Error(), true
	m.log.Debug("tui error", slog.Any("err", err))
}

func (m *Model) save() {
	ph := m.opts.Handle
	if ph == nil {
		m.setErr(fmt.Errorf("no page file; start with `pagebuilder open <dir>`"))
		return
	}
	doc := m.ed.Document()
	ph.Document = doc
	if m.opts.Watcher != nil {
		m.opts.Watcher.SetKnown(doc)
	}
	if err := storage.Save(ph); err != nil {
		m.setErr(err)
		return
	}
	m.dirty = false
	m.setStatus("saved " + ph.PagePath)
}

func (m *Model) shutdown() {
	if m.opts.Autosave != nil && m.dirty {
		if _, err := m.opts.Autosave.Flush(context.Background(), m.ed.Document()); err != nil {
			m.log.Warn("final autosave failed", slog.Any("err", err))
		}
	}
	m.ed.Close()
}

// Dirty reports whether there are changes not written to page.json.
func (m *Model) Dirty() bool { return m.dirty }

func (m *Model) handleKey(msg tea.KeyMsg) {
	s := msg.String()
	if s == "ctrl+c" {
		m.quitting = true
		return
	}
	switch m.ed.Overlay().Current() {
	case overlay.DialogKind:
		m.handleDialogKey(msg)
		return
	case overlay.DropdownKind:
		if s == "esc" {
			m.ed.Overlay().Hide()
			return
		}
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if err := m.ed.Overlay().Select(int(s[0] - '1')); err != nil {
				m.setErr(err)
			}
		}
		return
	}

	var err error
	switch s {
	case "q":
		m.quitting = true
	case "ctrl+s":
		m.save()
	case "p":
		m.ed.SetPreview(!m.ed.Preview())
	case "e":
		err = m.ed.ExportDocument()
	case "i":
		m.ed.ImportDocument()
	case "t":
		err = m.ed.Invoke(command.PlaceTop)
	case "b":
		err = m.ed.Invoke(command.PlaceBottom)
	case "delete", "x":
		err = m.ed.Invoke(command.Delete)
	case "m":
		if a := m.ed.Anchor(); a >= 0 {
			err = m.ed.ContextMenu(a)
		}
	default:
		if k, ok := engineKey(s); ok {
			m.ed.HandleKey(k)
		}
	}
	if err != nil {
		m.setErr(err)
	}
}

// engineKey maps bubbletea key names to editor keys: "ctrl+z" stays, "esc"
// becomes "escape".
func engineKey(s string) (events.Key, bool) {
	switch {
	case s == "esc":
		return events.Key{Key: "escape"}, true
	case strings.HasPrefix(s, "ctrl+") && len(s) > len("ctrl+"):
		return events.Key{Ctrl: true, Key: strings.TrimPrefix(s, "ctrl+")}, true
	}
	return events.Key{}, false
}

func (m *Model) handleDialogKey(msg tea.KeyMsg) {
	d := m.ed.Overlay().Dialog()
	editable := d.Options().Footer
	switch msg.String() {
	case "esc":
		m.ed.Overlay().Hide()
	case "enter":
		if !editable {
			m.ed.Overlay().Hide()
			return
		}
		if err := m.ed.Overlay().Confirm(d.Content()); err != nil {
			m.setErr(err)
			return
		}
		m.setStatus("imported")
	case "ctrl+y":
		if err := m.clip.WriteAll(d.Content()); err != nil {
			m.setErr(fmt.Errorf("copy: %w", err))
			return
		}
		m.setStatus("copied to clipboard")
	case "ctrl+v":
		if !editable {
			return
		}
		text, err := m.clip.ReadAll()
		if err != nil {
			m.setErr(fmt.Errorf("paste: %w", err))
			return
		}
		d.SetContent(text)
	case "ctrl+u":
		if editable {
			d.SetContent("")
		}
	case "backspace":
		if r := []rune(d.Content()); editable && len(r) > 0 {
			d.SetContent(string(r[:len(r)-1]))
		}
	default:
		if editable && (msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace) {
			d.SetContent(d.Content() + string(msg.Runes))
		}
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	col, row := msg.X, msg.Y
	x, y := toPixels(col, row)
	ptr := events.Pointer{X: x, Y: y, Shift: msg.Shift}
	doc := m.ed.Document()

	switch msg.Action {
	case tea.MouseActionPress:
		if m.ed.Overlay().Current() == overlay.DialogKind {
			return
		}
		if m.ed.Overlay().Current() == overlay.DropdownKind {
			m.ed.Overlay().Hide()
			return
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			m.leftPress(col, row, ptr, doc)
		case tea.MouseButtonRight:
			if inCanvas(col, row, doc) {
				if i := hitBlock(doc.Blocks, col, row); i >= 0 {
					if err := m.ed.ContextMenu(i); err != nil {
						m.setErr(err)
					}
				}
			}
		}
	case tea.MouseActionMotion:
		switch {
		case m.paletteKey != "":
			m.paletteMotion(col, row, doc)
		case m.pressing:
			m.ed.PointerMove(ptr)
		}
	case tea.MouseActionRelease:
		switch {
		case m.paletteKey != "":
			if m.overCanvas && inCanvas(col, row, doc) {
				ev := &events.Drag{OffsetX: x, OffsetY: y}
				m.ed.Surface().DispatchDrag(events.DragOver, ev)
				if ev.DefaultPrevented() {
					m.ed.Surface().DispatchDrag(events.Drop, ev)
				}
			}
			m.ed.PaletteDragEnd()
			m.paletteKey, m.overCanvas = "", false
		case m.pressing:
			m.ed.PointerUp(ptr)
			m.pressing = false
			m.guides = align.Guides{}
		}
	}
}

func (m *Model) leftPress(col, row int, ptr events.Pointer, doc domain.Document) {
	switch {
	case row == toolbarRow:
		buttons := m.ed.Toolbar()
		labels := make([]string, len(buttons))
		for i, b := range buttons {
			labels[i] = b.Label
		}
		if i := toolbarHit(labels, col); i >= 0 {
			if err := buttons[i].Action(); err != nil {
				m.setErr(err)
			}
		}
	case col < paletteWidth && row >= canvasTop:
		if m.ed.Preview() {
			return
		}
		comps := m.reg.List()
		if i := row - canvasTop; i < len(comps) {
			if err := m.ed.PaletteDragStart(nil, comps[i].Key); err != nil {
				m.setErr(err)
				return
			}
			m.paletteKey, m.overCanvas = comps[i].Key, false
		}
	case inCanvas(col, row, doc):
		if i := hitBlock(doc.Blocks, col, row); i >= 0 {
			if err := m.ed.BlockPointerDown(ptr, i); err != nil {
				m.setErr(err)
				return
			}
			m.pressing = !m.ed.Preview()
			return
		}
		m.ed.ContainerPointerDown()
	}
}

func (m *Model) paletteMotion(col, row int, doc domain.Document) {
	x, y := toPixels(col, row)
	ev := &events.Drag{OffsetX: x, OffsetY: y}
	if inCanvas(col, row, doc) {
		if !m.overCanvas {
			m.ed.Surface().DispatchDrag(events.DragEnter, ev)
			m.overCanvas = true
		}
		m.ed.Surface().DispatchDrag(events.DragOver, ev)
		return
	}
	if m.overCanvas {
		m.ed.Surface().DispatchDrag(events.DragLeave, ev)
		m.overCanvas = false
	}
}
