/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"strings"

	"golang.org/x/image/font"
)

const ellipsis = "…"

// wrapLabel breaks label on spaces into lines no wider than maxWidth pixels
// and keeps at most maxLines of them. A word wider than maxWidth gets a line
// of its own; a cut last line ends in an ellipsis.
func wrapLabel(face font.Face, label string, maxWidth float64, maxLines int) []string {
	d := &font.Drawer{Face: face}
	width := func(s string) float64 { return float64(d.MeasureString(s) >> 6) }

	var lines []string
	cur := ""
	for _, word := range strings.Fields(label) {
		next := word
		if cur != "" {
			next = cur + " " + word
		}
		if cur != "" && maxWidth > 0 && width(next) > maxWidth {
			lines = append(lines, cur)
			cur = word
			continue
		}
		cur = next
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, cur)
	}

	if maxLines < 1 {
		maxLines = 1
	}
	if len(lines) <= maxLines {
		return lines
	}
	lines = lines[:maxLines]
	last := []rune(lines[maxLines-1])
	for len(last) > 0 && maxWidth > 0 && width(string(last)+ellipsis) > maxWidth {
		last = last[:len(last)-1]
	}
	lines[maxLines-1] = string(last) + ellipsis
	return lines
}

// lineHeight is the distance between baselines of face in pixels.
func lineHeight(face font.Face) float64 {
	return float64(face.Metrics().Height.Round())
}
