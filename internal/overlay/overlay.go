/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package overlay owns the single dialog and dropdown used by the editor for
// JSON import/export and the block context menu. Both widgets are created on
// first use and reused afterwards; a Presenter draws them.
package overlay

import (
	"errors"
	"fmt"
)

// ErrNoDialog is returned when confirming while no dialog is shown.
var ErrNoDialog = errors.New("no dialog shown")

// Kind names the widget currently shown.
type Kind int

const (
	None Kind = iota
	DialogKind
	DropdownKind
)

func (k Kind) String() string {
	switch k {
	case DialogKind:
		return "dialog"
	case DropdownKind:
		return "dropdown"
	default:
		return "none"
	}
}

// DialogOptions describes a modal with an editable text area.
type DialogOptions struct {
	Title   string
	Content string
	// Footer shows the cancel/confirm buttons. Without it the dialog is read only.
	Footer bool
	// OnConfirm receives the edited text. A returned error keeps the dialog open.
	OnConfirm func(text string) error
}

// Item is one dropdown entry.
type Item struct {
	Label    string
	Icon     string
	OnSelect func()
}

// DropdownOptions positions a context menu at X/Y in canvas pixels.
type DropdownOptions struct {
	X, Y  float64
	Items []Item
}

// Presenter draws the widgets. Hosts without a UI may pass nil to NewManager.
type Presenter interface {
	PresentDialog(d *Dialog)
	PresentDropdown(d *Dropdown)
	Dismiss()
}

// Dialog is the reusable modal.
type Dialog struct {
	opts  DialogOptions
	shown bool
	err   error
}

func (d *Dialog) Options() DialogOptions { return d.opts }
func (d *Dialog) Shown() bool            { return d.shown }

// Content returns the current text of the text area.
func (d *Dialog) Content() string { return d.opts.Content }

// SetContent replaces the text area content, as typing would.
func (d *Dialog) SetContent(text string) { d.opts.Content = text }

// Err returns the error of the last rejected confirm.
func (d *Dialog) Err() error { return d.err }

// Dropdown is the reusable context menu.
type Dropdown struct {
	opts  DropdownOptions
	shown bool
}

func (d *Dropdown) Options() DropdownOptions { return d.opts }
func (d *Dropdown) Shown() bool              { return d.shown }

// Manager is created once by the host and passed to whoever shows overlays.
// It is not safe for concurrent use.
type Manager struct {
	p        Presenter
	dialog   *Dialog
	dropdown *Dropdown
}

func NewManager(p Presenter) *Manager { return &Manager{p: p} }

// ShowDialog shows the dialog with opts, creating it on first use.
func (m *Manager) ShowDialog(opts DialogOptions) *Dialog {
	if m.dialog == nil {
		m.dialog = &Dialog{}
	}
	if m.dropdown != nil {
		m.dropdown.shown = false
	}
	m.dialog.opts = opts
	m.dialog.err = nil
	m.dialog.shown = true
	if m.p != nil {
		m.p.PresentDialog(m.dialog)
	}
	return m.dialog
}

// ShowDropdown shows the context menu with opts, creating it on first use.
func (m *Manager) ShowDropdown(opts DropdownOptions) *Dropdown {
	if m.dropdown == nil {
		m.dropdown = &Dropdown{}
	}
	if m.dialog != nil {
		m.dialog.shown = false
	}
	m.dropdown.opts = opts
	m.dropdown.shown = true
	if m.p != nil {
		m.p.PresentDropdown(m.dropdown)
	}
	return m.dropdown
}

// Hide closes whatever is shown. Cancelling a dialog is a Hide.
func (m *Manager) Hide() {
	if m.Current() == None {
		return
	}
	if m.dialog != nil {
		m.dialog.shown = false
	}
	if m.dropdown != nil {
		m.dropdown.shown = false
	}
	if m.p != nil {
		m.p.Dismiss()
	}
}

// Current reports which widget is shown.
func (m *Manager) Current() Kind {
	switch {
	case m.dialog != nil && m.dialog.shown:
		return DialogKind
	case m.dropdown != nil && m.dropdown.shown:
		return DropdownKind
	}
	return None
}

// Dialog returns the dialog instance, nil before the first ShowDialog.
func (m *Manager) Dialog() *Dialog { return m.dialog }

// Dropdown returns the dropdown instance, nil before the first ShowDropdown.
func (m *Manager) Dropdown() *Dropdown { return m.dropdown }

// Confirm submits text through the shown dialog's OnConfirm. On success the
// dialog closes; on error it stays open and keeps the error for display.
func (m *Manager) Confirm(text string) error {
	d := m.dialog
	if d == nil || !d.shown {
		return ErrNoDialog
	}
	d.opts.Content = text
	if d.opts.OnConfirm != nil {
		if err := d.opts.OnConfirm(text); err != nil {
			d.err = err
			if m.p != nil {
				m.p.PresentDialog(d)
			}
			return err
		}
	}
	d.err = nil
	m.Hide()
	return nil
}

// Select runs the i-th dropdown item and closes the menu.
func (m *Manager) Select(i int) error {
	d := m.dropdown
	if d == nil || !d.shown {
		return fmt.Errorf("select item %d: no dropdown shown", i)
	}
	if i < 0 || i >= len(d.opts.Items) {
		return fmt.Errorf("select item %d: out of range (%d items)", i, len(d.opts.Items))
	}
	item := d.opts.Items[i]
	m.Hide()
	if item.OnSelect != nil {
		item.OnSelect()
	}
	return nil
}
