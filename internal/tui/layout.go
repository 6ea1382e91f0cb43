/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tui

import (
	"math"
	"sort"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/registry"
)

// One terminal cell stands for cellW x cellH canvas pixels.
const (
	cellW = 8.0
	cellH = 16.0
)

// Screen layout: toolbar on row 0, a rule on row 1, then the palette column
// and the canvas side by side. The last row is the status line.
const (
	toolbarRow   = 0
	canvasTop    = 2
	paletteWidth = 16
	canvasLeft   = paletteWidth + 1
)

// cellRect is a block's footprint in canvas cells.
type cellRect struct {
	col, row, w, h int
}

func (r cellRect) contains(col, row int) bool {
	return col >= r.col && col < r.col+r.w && row >= r.row && row < r.row+r.h
}

// toPixels converts a screen cell to canvas pixel coordinates, using the
// cell's centre.
func toPixels(col, row int) (x, y float64) {
	return (float64(col-canvasLeft) + 0.5) * cellW, (float64(row-canvasTop) + 0.5) * cellH
}

func inCanvas(col, row int, doc domain.Document) bool {
	cols, rows := canvasCells(doc.Container)
	return col >= canvasLeft && col < canvasLeft+cols && row >= canvasTop && row < canvasTop+rows
}

func canvasCells(c domain.Container) (cols, rows int) {
	return int(math.Ceil(c.Width / cellW)), int(math.Ceil(c.Height / cellH))
}

func blockCells(b *domain.Block) cellRect {
	w, h := b.Size()
	return cellRect{
		col: int(math.Round(b.Left / cellW)),
		row: int(math.Round(b.Top / cellH)),
		w:   max(1, int(math.Ceil(w/cellW))),
		h:   max(1, int(math.Ceil(h/cellH))),
	}
}

// measure is the rendered size of a block of the given component: its render
// text framed by one cell on each side, one row high.
func measure(reg *registry.Registry, key string) (w, h float64) {
	text := key
	if c, ok := reg.Lookup(key); ok && c.Render != "" {
		text = c.Render
	}
	return float64(len([]rune(text))+2) * cellW, cellH
}

// paintOrder returns block indices bottom to top: ascending zIndex, then
// insertion order.
func paintOrder(blocks []*domain.Block) []int {
	idx := make([]int, len(blocks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return blocks[idx[a]].ZIndex < blocks[idx[b]].ZIndex })
	return idx
}

// hitBlock returns the index of the topmost block under the screen cell, or -1.
func hitBlock(blocks []*domain.Block, col, row int) int {
	order := paintOrder(blocks)
	for i := len(order) - 1; i >= 0; i-- {
		b := blocks[order[i]]
		if !b.HasGeometry() {
			continue
		}
		r := blockCells(b)
		if r.contains(col-canvasLeft, row-canvasTop) {
			return order[i]
		}
	}
	return -1
}

// toolbarHit returns the toolbar button under col, or -1.
func toolbarHit(labels []string, col int) int {
	x := 0
	for i, l := range labels {
		w := len([]rune(l)) + 2
		if col >= x && col < x+w {
			return i
		}
		x += w + 1
	}
	return -1
}
