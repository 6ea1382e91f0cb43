/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"log/slog"

	"pagebuilder/internal/command"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/overlay"
	"pagebuilder/internal/storage"
)

// ExportDocument shows the document JSON in a read-only dialog.
func (e *Editor) ExportDocument() error {
	data, err := domain.Marshal(e.store.doc)
	if err != nil {
		return fmt.Errorf("export document: %w", err)
	}
	e.overlay.ShowDialog(overlay.DialogOptions{Title: "Export JSON", Content: string(data)})
	return nil
}

// ImportDocument shows an empty dialog whose confirmed text replaces the
// whole document as one undoable step. Text that does not validate is
// rejected and the dialog stays open.
func (e *Editor) ImportDocument() {
	e.overlay.ShowDialog(overlay.DialogOptions{
		Title:  "Import JSON",
		Footer: true,
		OnConfirm: func(text string) error {
			doc, err := storage.ParseDocument([]byte(text))
			if err != nil {
				e.log.Info("import rejected", slog.Any("err", err))
				return err
			}
			return e.Invoke(command.UpdateContainer, doc)
		},
	})
}

// ExportBlock shows the JSON of the block at index in a read-only dialog.
func (e *Editor) ExportBlock(index int) error {
	b, err := e.block(index)
	if err != nil {
		return err
	}
	data, err := domain.MarshalBlock(b)
	if err != nil {
		return fmt.Errorf("export block: %w", err)
	}
	e.overlay.ShowDialog(overlay.DialogOptions{Title: "Block JSON", Content: string(data)})
	return nil
}

// ImportBlock shows the block's JSON for editing. The confirmed text replaces
// the block that was at index when the dialog opened; if that block has been
// replaced since, the step is recorded but changes nothing.
func (e *Editor) ImportBlock(index int) error {
	old, err := e.block(index)
	if err != nil {
		return err
	}
	data, err := domain.MarshalBlock(old)
	if err != nil {
		return fmt.Errorf("import block: %w", err)
	}
	e.overlay.ShowDialog(overlay.DialogOptions{
		Title:   "Import block JSON",
		Content: string(data),
		Footer:  true,
		OnConfirm: func(text string) error {
			nb, err := storage.ParseBlock([]byte(text))
			if err != nil {
				return err
			}
			return e.Invoke(command.UpdateBlock, nb, old)
		},
	})
	return nil
}

// ContextMenu opens the block menu at the block's position.
func (e *Editor) ContextMenu(index int) error {
	b, err := e.block(index)
	if err != nil {
		return err
	}
	run := func(name string) func() {
		return func() {
			if err := e.Invoke(name); err != nil {
				e.log.Warn("menu command failed", slog.String("command", name), slog.Any("err", err))
			}
		}
	}
	e.overlay.ShowDropdown(overlay.DropdownOptions{
		X: b.Left,
		Y: b.Top,
		Items: []overlay.Item{
			{Label: "Place top", Icon: "▲", OnSelect: run(command.PlaceTop)},
			{Label: "Place bottom", Icon: "▼", OnSelect: run(command.PlaceBottom)},
			{Label: "Delete", Icon: "✕", OnSelect: run(command.Delete)},
			{Label: "View block", Icon: "◎", OnSelect: func() { _ = e.ExportBlock(index) }},
			{Label: "Import block", Icon: "⇩", OnSelect: func() { _ = e.ImportBlock(index) }},
		},
	})
	return nil
}

// Button is one toolbar entry.
type Button struct {
	Label  string
	Action func() error
}

// Toolbar lists the toolbar buttons in display order. The preview button's
// label reflects the current mode.
func (e *Editor) Toolbar() []Button {
	invoke := func(name string) func() error { return func() error { return e.Invoke(name) } }
	preview := "Preview"
	if e.Preview() {
		preview = "Edit"
	}
	return []Button{
		{Label: "Undo", Action: invoke(command.Undo)},
		{Label: "Redo", Action: invoke(command.Redo)},
		{Label: "Import", Action: func() error { e.ImportDocument(); return nil }},
		{Label: "Export", Action: e.ExportDocument},
		{Label: "Place top", Action: invoke(command.PlaceTop)},
		{Label: "Place bottom", Action: invoke(command.PlaceBottom)},
		{Label: "Delete", Action: invoke(command.Delete)},
		{Label: preview, Action: func() error { e.SetPreview(!e.Preview()); return nil }},
		{Label: "Close", Action: func() error {
			if e.onClose != nil {
				e.onClose()
			} else {
				e.Close()
			}
			return nil
		}},
	}
}
