/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package align computes alignment guide candidates and snapping for canvas drags.
// These utilities are UI-agnostic and deterministic to enable unit testing and
// reuse across different hosts.
package align

import (
	"math"

	"pagebuilder/internal/domain"
)

// DefaultThreshold is the snap distance in pixels.
const DefaultThreshold = 5.0

// Line is one alignment candidate on a single axis.
// SnapAt is the anchor position (top or left) that produces the alignment;
// ShowAt is where the guide is drawn.
type Line struct {
	ShowAt float64
	SnapAt float64
}

// Lines holds the candidates of a drag session in generation order.
// Y candidates are matched against the anchor's top, X candidates against its left.
type Lines struct {
	X []Line
	Y []Line
}

// Empty reports whether there is nothing to snap to.
func (l Lines) Empty() bool { return len(l.X) == 0 && len(l.Y) == 0 }

// Guides are the guide positions to display; nil means no guide on that axis.
type Guides struct {
	X *float64
	Y *float64
}

// Candidates builds the alignment lines for an anchor of size bw x bh against
// each reference rectangle, references first to last. Each reference yields five
// candidates per axis:
//
//	top-top, top-bottom, center-center, bottom-top, bottom-bottom
//	left-left, right-left, center-center, right-right, left-right
func Candidates(bw, bh float64, refs []domain.Rect) Lines {
	lines := Lines{
		X: make([]Line, 0, len(refs)*5),
		Y: make([]Line, 0, len(refs)*5),
	}
	for _, a := range refs {
		at, al, ah, aw := a.Y, a.X, a.Height, a.Width

		lines.Y = append(lines.Y,
			Line{ShowAt: at, SnapAt: at},                      // anchor top on reference top
			Line{ShowAt: at, SnapAt: at - bh},                 // anchor bottom on reference top
			Line{ShowAt: at + ah/2, SnapAt: at + ah/2 - bh/2}, // centers
			Line{ShowAt: at + ah, SnapAt: at + ah},            // anchor top on reference bottom
			Line{ShowAt: at + ah, SnapAt: at + ah - bh},       // bottoms
		)
		lines.X = append(lines.X,
			Line{ShowAt: al, SnapAt: al},
			Line{ShowAt: al + aw, SnapAt: al + aw},
			Line{ShowAt: al + aw/2, SnapAt: al + aw/2 - bw/2},
			Line{ShowAt: al + aw, SnapAt: al + aw - bw},
			Line{ShowAt: al, SnapAt: al - bw},
		)
	}
	return lines
}

// ForBlocks builds the candidate set for dragging anchor against the unfocused
// blocks and the container itself. References without reported geometry are
// skipped; an anchor without geometry yields no candidates.
func ForBlocks(anchor *domain.Block, unfocused []*domain.Block, c domain.Container) Lines {
	if !anchor.HasGeometry() {
		return Lines{}
	}
	refs := make([]domain.Rect, 0, len(unfocused)+1)
	for _, b := range unfocused {
		if !b.HasGeometry() {
			continue
		}
		refs = append(refs, b.Rect())
	}
	refs = append(refs, domain.Rect{X: 0, Y: 0, Width: c.Width, Height: c.Height})
	bw, bh := anchor.Size()
	return Candidates(bw, bh, refs)
}

// First returns the first candidate whose SnapAt lies strictly within threshold of v.
// Scanning stops at the first hit; candidates are not ranked by distance.
func First(lines []Line, v, threshold float64) (Line, bool) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	for _, l := range lines {
		if math.Abs(l.SnapAt-v) < threshold {
			return l, true
		}
	}
	return Line{}, false
}
