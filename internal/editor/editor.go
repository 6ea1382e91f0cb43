/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor wires the selection model, drag controllers, command
// registry and overlays around one live document. Hosts feed it input events
// and render from Document, Guides and the overlay presenter.
//
// An Editor is not safe for concurrent use.
package editor

import (
	"errors"
	"fmt"
	"log/slog"

	"pagebuilder/internal/align"
	"pagebuilder/internal/command"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/drag"
	"pagebuilder/internal/events"
	"pagebuilder/internal/overlay"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/selection"
)

var (
	// ErrNoBlock is returned for a block index outside the document.
	ErrNoBlock = errors.New("no such block")
	// ErrUnknownComponent is returned when a palette drag names an unregistered key.
	ErrUnknownComponent = errors.New("unknown component")
	// ErrClosed is returned by operations on a closed editor.
	ErrClosed = errors.New("editor closed")
)

// Options configures an Editor. All fields are optional.
type Options struct {
	// Registry lists the components offered by the palette. Defaults to registry.Default().
	Registry *registry.Registry
	// Overlay shows dialogs and menus. A presenter-less manager is created when nil.
	Overlay *overlay.Manager
	// OnChange receives a deep copy of the document after every committed change.
	OnChange func(domain.Document)
	// OnGuides is called when the alignment guides shown during a drag change.
	OnGuides func(align.Guides)
	// OnCommand is called with the name of every invoked command.
	OnCommand func(name string)
	// OnClose runs when the toolbar's close button is used. Defaults to Close.
	OnClose       func()
	SnapThreshold float64
	HistoryLimit  int
	Logger        *slog.Logger
}

// live is the document store shared by the controllers and commands.
// Blocks are handed out by pointer so drags can move them in place.
type live struct {
	doc   domain.Document
	onSet func()
}

func (l *live) Document() domain.Document { return l.doc }
func (l *live) Blocks() []*domain.Block   { return l.doc.Blocks }
func (l *live) SetDocument(d domain.Document) {
	if d.Blocks == nil {
		d.Blocks = []*domain.Block{}
	}
	l.doc = d
	if l.onSet != nil {
		l.onSet()
	}
}

// Editor is the host-facing facade of the canvas engine.
type Editor struct {
	store    *live
	reg      *registry.Registry
	overlay  *overlay.Manager
	bus      *events.Bus
	surface  *drag.Surface
	sel      *selection.Model
	palette  *drag.Palette
	canvas   *drag.Canvas
	cmds     *command.Registry
	onChange func(domain.Document)
	onClose  func()
	log      *slog.Logger

	dragging bool
	closed   bool
	offs     []func()
}

// New builds an editor around a deep copy of doc and starts its commands.
func New(doc domain.Document, opts Options) *Editor {
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.Overlay == nil {
		opts.Overlay = overlay.NewManager(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Editor{
		store:    &live{doc: doc.Clone()},
		reg:      opts.Registry,
		overlay:  opts.Overlay,
		bus:      events.NewBus(),
		surface:  drag.NewSurface(),
		onChange: opts.OnChange,
		onClose:  opts.OnClose,
		log:      opts.Logger.With(slog.String("component", "editor")),
	}
	e.store.onSet = e.changed
	e.sel = selection.NewModel(e.store, e.log)
	e.palette = drag.NewPalette(e.store, e.bus, e.log)
	e.canvas = drag.NewCanvas(e.store, e.sel, e.bus, e.surface, drag.CanvasOptions{
		Threshold: opts.SnapThreshold,
		OnGuides:  opts.OnGuides,
		Logger:    e.log,
	})

	onCommand := opts.OnCommand
	e.cmds = command.NewRegistry(command.Options{
		HistoryLimit: opts.HistoryLimit,
		Logger:       e.log,
		OnInvoke: func(name string) {
			switch name {
			case command.Delete, command.UpdateContainer, command.Undo, command.Redo:
				// block indices may have shifted
				e.sel.ResetAnchor()
			}
			if onCommand != nil {
				onCommand(name)
			}
		},
	})
	command.RegisterBuiltins(e.cmds, e.store, e.bus)

	// subscribed before the drag command so the commit at end is reported
	e.offs = append(e.offs,
		e.bus.On(events.TopicStart, func() { e.dragging = true }),
		e.bus.On(events.TopicEnd, func() { e.dragging = false }),
	)
	e.cmds.Start()
	return e
}

// changed reports a replaced document unless a drag is still in progress.
func (e *Editor) changed() {
	if e.dragging || e.onChange == nil {
		return
	}
	e.onChange(e.store.doc.Clone())
}

// Document returns a deep copy of the current document.
func (e *Editor) Document() domain.Document { return e.store.doc.Clone() }

// SetDocument replaces the document without recording history, as when a
// host loads another page.
func (e *Editor) SetDocument(doc domain.Document) {
	e.canvas.Cancel()
	e.sel.ResetAnchor()
	e.cmds.History().Clear()
	e.store.SetDocument(doc.Clone())
}

// Len returns the number of blocks.
func (e *Editor) Len() int { return len(e.store.doc.Blocks) }

// Block returns a copy of the block at index.
func (e *Editor) Block(index int) (*domain.Block, error) {
	b, err := e.block(index)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

func (e *Editor) block(index int) (*domain.Block, error) {
	if index < 0 || index >= len(e.store.doc.Blocks) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNoBlock, index, len(e.store.doc.Blocks))
	}
	return e.store.doc.Blocks[index], nil
}

// Selection returns the current focus partition.
func (e *Editor) Selection() selection.Snapshot { return e.sel.Snapshot() }

// Anchor returns the index of the last selected block, or -1.
func (e *Editor) Anchor() int {
	_, i := e.sel.Anchor()
	return i
}

// Registry returns the component registry offered by the palette.
func (e *Editor) Registry() *registry.Registry { return e.reg }

// Overlay returns the overlay manager.
func (e *Editor) Overlay() *overlay.Manager { return e.overlay }

// History returns the command history.
func (e *Editor) History() *command.History { return e.cmds.History() }

// Surface is the editor's own pointer and drop surface. Hosts without native
// drag and drop dispatch their events here.
func (e *Editor) Surface() *drag.Surface { return e.surface }

// Guides returns the guide lines currently shown.
func (e *Editor) Guides() align.Guides { return e.canvas.Guides() }

// Dragging reports whether a palette or canvas drag is in progress.
func (e *Editor) Dragging() bool { return e.dragging || e.canvas.Active() }

// CancelDrag ends any open palette or canvas drag. Moves made so far are
// committed; an armed palette component is dropped nowhere.
func (e *Editor) CancelDrag() {
	e.canvas.Cancel()
	if e.palette.Armed() {
		e.palette.DragEnd()
	}
}

// Invoke runs a registered command by name.
func (e *Editor) Invoke(name string, args ...any) error {
	if e.closed {
		return ErrClosed
	}
	return e.cmds.Invoke(name, args...)
}

// HandleKey dispatches a key-down event. Besides the command shortcuts,
// ctrl+a selects every block and escape cancels a drag and hides overlays.
// It reports whether the key was handled.
func (e *Editor) HandleKey(k events.Key) bool {
	if e.closed {
		return false
	}
	switch k.String() {
	case "ctrl+a":
		e.SelectAll()
		return true
	case "escape":
		e.canvas.Cancel()
		e.overlay.Hide()
		return true
	}
	return e.cmds.HandleKey(k)
}

// BlockPointerDown applies the selection rules for a press on the block at
// index and arms a canvas drag of the focused blocks.
func (e *Editor) BlockPointerDown(ev events.Pointer, index int) error {
	b, err := e.block(index)
	if err != nil {
		return err
	}
	e.sel.OnBlockPointerDown(ev, b, index, e.canvas.PointerDown)
	return nil
}

// PointerMove forwards a pointer move to the editor's surface.
func (e *Editor) PointerMove(ev events.Pointer) {
	e.surface.DispatchPointer(events.PointerMove, ev)
}

// PointerUp forwards a pointer release to the editor's surface.
func (e *Editor) PointerUp(ev events.Pointer) {
	e.surface.DispatchPointer(events.PointerUp, ev)
}

// ContainerPointerDown clears the selection.
func (e *Editor) ContainerPointerDown() { e.sel.OnContainerPointerDown() }

// SelectAll focuses every block.
func (e *Editor) SelectAll() {
	if e.sel.Preview() {
		return
	}
	e.sel.SelectAll()
}

// PaletteDragStart begins dragging the component registered under key onto
// surface. A nil surface uses the editor's own.
func (e *Editor) PaletteDragStart(surface drag.DropSurface, key string) error {
	if e.closed {
		return ErrClosed
	}
	comp, ok := e.reg.Lookup(key)
	if !ok {
		e.log.Warn("palette drag of unknown component", slog.String("key", key))
		return fmt.Errorf("%w: %q", ErrUnknownComponent, key)
	}
	if surface == nil {
		surface = e.surface
	}
	e.palette.DragStart(surface, comp)
	return nil
}

// PaletteDragEnd finishes a palette drag, dropped or not.
func (e *Editor) PaletteDragEnd() { e.palette.DragEnd() }

// ReportGeometry records the rendered size of the block at index. A block
// dropped from the palette is centered on its drop point the first time its
// size is known.
func (e *Editor) ReportGeometry(index int, w, h float64) error {
	b, err := e.block(index)
	if err != nil {
		return err
	}
	b.SetSize(w, h)
	if b.AlignCenter {
		b.Left -= w / 2
		b.Top -= h / 2
		b.AlignCenter = false
	}
	return nil
}

// SetPreview switches read-only viewing on or off.
func (e *Editor) SetPreview(on bool) {
	if on {
		e.canvas.Cancel()
	}
	e.sel.SetPreview(on)
}

// Preview reports whether read-only viewing is active.
func (e *Editor) Preview() bool { return e.sel.Preview() }

// Close ends any drag, hides overlays and tears the commands down.
// It is safe to call more than once.
func (e *Editor) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.canvas.Cancel()
	if e.palette.Armed() {
		e.palette.DragEnd()
	}
	e.overlay.Hide()
	e.cmds.Close()
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
}
