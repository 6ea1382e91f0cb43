/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders wireframes of a page document: the container outline
// and one labelled box per block, stacked by zIndex.
package export

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/storage"
)

// Placeholder size for blocks whose rendered size was never reported.
const (
	placeholderW = 80.0
	placeholderH = 24.0
)

// Options controls both exporters. Zero values get reasonable defaults.
type Options struct {
	// Registry resolves block keys to display labels; nil prints the key.
	Registry *registry.Registry
	// IncludeGuides draws the container outline.
	IncludeGuides bool
	// Scale multiplies canvas pixels into output units (pt for PDF, px for PNG).
	Scale       float64
	GuideColor  color.RGBA
	BlockStroke color.RGBA
	BlockFill   color.RGBA
	FocusStroke color.RGBA
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.GuideColor == (color.RGBA{}) {
		o.GuideColor = color.RGBA{R: 255, A: 255}
	}
	if o.BlockStroke == (color.RGBA{}) {
		o.BlockStroke = color.RGBA{A: 255}
	}
	if o.BlockFill == (color.RGBA{}) {
		o.BlockFill = color.RGBA{R: 245, G: 245, B: 245, A: 255}
	}
	if o.FocusStroke == (color.RGBA{}) {
		o.FocusStroke = color.RGBA{R: 30, G: 120, B: 255, A: 255}
	}
	return o
}

// box is one block prepared for drawing, in canvas pixels.
type box struct {
	rect        domain.Rect
	label       string
	focus       bool
	placeholder bool
}

// layout returns the blocks bottom-most first. Blocks with equal zIndex keep document order.
func layout(doc domain.Document, reg *registry.Registry) []box {
	idx := make([]int, len(doc.Blocks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return doc.Blocks[idx[a]].ZIndex < doc.Blocks[idx[b]].ZIndex
	})
	out := make([]box, 0, len(idx))
	for _, i := range idx {
		b := doc.Blocks[i]
		r := b.Rect()
		ph := !b.HasGeometry()
		if ph {
			r.Width, r.Height = placeholderW, placeholderH
		}
		label := b.Key
		if reg != nil {
			if c, ok := reg.Lookup(b.Key); ok {
				label = c.Label
			}
		}
		out = append(out, box{rect: r, label: label, focus: b.Focus, placeholder: ph})
	}
	return out
}

// resolveOut maps relative output paths into the page's exports folder.
func resolveOut(ph *storage.PageHandle, outPath string) (string, error) {
	if !filepath.IsAbs(outPath) {
		if ph == nil {
			return "", fmt.Errorf("relative output path %q needs a page", outPath)
		}
		outPath = ph.ExportPath(outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	return outPath, nil
}

func writeTo(outPath string, write func(f *os.File) error) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(outPath), err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
