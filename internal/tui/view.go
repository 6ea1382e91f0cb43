/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pagebuilder/internal/domain"
)

var (
	colorAccent = lipgloss.Color("39")
	colorDim    = lipgloss.Color("241")
	colorGuide  = lipgloss.Color("205")
	colorError  = lipgloss.Color("196")

	toolbarStyle  = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("236"))
	paletteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	draggingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	statusStyle   = lipgloss.NewStyle().Foreground(colorDim)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError)
	dialogStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
	titleStyle    = lipgloss.NewStyle().Bold(true)
)

// cell styles of the canvas grid
type cellStyle uint8

const (
	styleEmpty cellStyle = iota
	styleGuide
	styleBlock
	styleFocus
)

var cellStyles = map[cellStyle]lipgloss.Style{
	styleEmpty: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	styleGuide: lipgloss.NewStyle().Foreground(colorGuide),
	styleBlock: lipgloss.NewStyle().Background(lipgloss.Color("24")).Foreground(lipgloss.Color("255")),
	styleFocus: lipgloss.NewStyle().Background(colorAccent).Foreground(lipgloss.Color("16")).Bold(true),
}

type cell struct {
	r  rune
	st cellStyle
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.toolbarView())
	b.WriteByte('\n')
	b.WriteString(dimStyle.Render(strings.Repeat("─", max(m.width, canvasLeft))))
	b.WriteByte('\n')

	if d := m.dialog; d != nil && d.Shown() {
		b.WriteString(m.dialogView())
		b.WriteByte('\n')
		b.WriteString(m.statusView())
		return b.String()
	}

	doc := m.ed.Document()
	grid := m.canvasGrid(doc)
	comps := m.reg.List()
	for r := range len(grid) {
		label := ""
		if r < len(comps) {
			label = comps[r].Label
		}
		label = padRight(label, paletteWidth)
		switch {
		case r < len(comps) && comps[r].Key == m.paletteKey:
			label = draggingStyle.Render(label)
		case m.ed.Preview():
			label = dimStyle.Render(label)
		default:
			label = paletteStyle.Render(label)
		}
		b.WriteString(label)
		b.WriteString(dimStyle.Render("│"))
		b.WriteString(renderRow(grid[r]))
		b.WriteByte('\n')
	}
	if dd := m.dropdown; dd != nil && dd.Shown() {
		items := make([]string, len(dd.Options().Items))
		for i, it := range dd.Options().Items {
			items[i] = fmt.Sprintf("%d %s", i+1, it.Label)
		}
		b.WriteString(dialogStyle.Render(strings.Join(items, "\n")))
		b.WriteByte('\n')
	}
	b.WriteString(m.statusView())
	return b.String()
}

func (m *Model) toolbarView() string {
	buttons := m.ed.Toolbar()
	parts := make([]string, len(buttons))
	for i, btn := range buttons {
		parts[i] = toolbarStyle.Render(btn.Label)
	}
	return strings.Join(parts, " ")
}

// canvasGrid paints guides and blocks into a cell grid clipped to the terminal.
func (m *Model) canvasGrid(doc domain.Document) [][]cell {
	cols, rows := canvasCells(doc.Container)
	if m.width > 0 {
		cols = min(cols, m.width-canvasLeft)
	}
	if m.height > 0 {
		rows = min(rows, m.height-canvasTop-1)
	}
	cols, rows = max(cols, 0), max(rows, 0)
	grid := make([][]cell, rows)
	for r := range grid {
		grid[r] = make([]cell, cols)
		for c := range grid[r] {
			grid[r][c] = cell{r: ' ', st: styleEmpty}
			if r%4 == 0 && c%8 == 0 {
				grid[r][c].r = '·'
			}
		}
	}
	set := func(c, r int, ch rune, st cellStyle) {
		if r >= 0 && r < rows && c >= 0 && c < cols {
			grid[r][c] = cell{r: ch, st: st}
		}
	}

	if g := m.guides; g.X != nil {
		c := int(*g.X / cellW)
		for r := range rows {
			set(c, r, '│', styleGuide)
		}
	}
	if g := m.guides; g.Y != nil {
		r := int(*g.Y / cellH)
		for c := range cols {
			set(c, r, '─', styleGuide)
		}
	}

	preview := m.ed.Preview()
	for _, i := range paintOrder(doc.Blocks) {
		blk := doc.Blocks[i]
		if !blk.HasGeometry() {
			continue
		}
		st := styleBlock
		if blk.Focus && !preview {
			st = styleFocus
		}
		rect := blockCells(blk)
		for r := rect.row; r < rect.row+rect.h; r++ {
			for c := rect.col; c < rect.col+rect.w; c++ {
				set(c, r, ' ', st)
			}
		}
		text := []rune(blk.Key)
		if comp, ok := m.reg.Lookup(blk.Key); ok && comp.Render != "" {
			text = []rune(comp.Render)
		}
		start := rect.col + max(0, (rect.w-len(text))/2)
		for k, ch := range text {
			if start+k >= rect.col+rect.w {
				break
			}
			set(start+k, rect.row, ch, st)
		}
	}
	return grid
}

// renderRow styles runs of equally styled cells.
func renderRow(row []cell) string {
	var b strings.Builder
	var run []rune
	cur := styleEmpty
	flush := func() {
		if len(run) > 0 {
			b.WriteString(cellStyles[cur].Render(string(run)))
			run = run[:0]
		}
	}
	for _, c := range row {
		if c.st != cur {
			flush()
			cur = c.st
		}
		run = append(run, c.r)
	}
	flush()
	return b.String()
}

func (m *Model) dialogView() string {
	d := m.dialog
	opts := d.Options()
	var hint string
	if opts.Footer {
		hint = "enter import · ctrl+v paste · ctrl+u clear · esc cancel"
	} else {
		hint = "ctrl+y copy · esc close"
	}
	body := d.Content()
	if lines := strings.Split(body, "\n"); m.height > 0 && len(lines) > m.height-8 {
		body = strings.Join(lines[:max(1, m.height-9)], "\n") + "\n…"
	}
	parts := []string{titleStyle.Render(opts.Title), body}
	if err := d.Err(); err != nil {
		parts = append(parts, errorStyle.Render(err.Error()))
	}
	parts = append(parts, dimStyle.Render(hint))
	return dialogStyle.Render(strings.Join(parts, "\n"))
}

func (m *Model) statusView() string {
	h := m.ed.History()
	mode := "edit"
	if m.ed.Preview() {
		mode = "preview"
	}
	dirty := ""
	if m.dirty {
		dirty = " *"
	}
	left := fmt.Sprintf("%s%s  blocks:%d  selected:%d  history:%d/%d", mode, dirty, m.ed.Len(), len(m.ed.Selection().Focused), h.Current()+1, h.Len())
	if m.status == "" {
		return statusStyle.Render(left + "  ·  q quit  ctrl+s save  e export  i import  m menu")
	}
	msg := statusStyle.Render(m.status)
	if m.statusErr {
		msg = errorStyle.Render(m.status)
	}
	return statusStyle.Render(left+"  ·  ") + msg
}

func padRight(s string, w int) string {
	r := []rune(s)
	if len(r) >= w {
		return string(r[:w])
	}
	return s + strings.Repeat(" ", w-len(r))
}
