/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/storage"
)

// maxPNGSide bounds the output so a bogus container cannot allocate gigabytes.
const maxPNGSide = 16384

// RenderPNG draws doc into an image sized to the container times Scale.
func RenderPNG(doc domain.Document, opt Options) (image.Image, error) {
	opt = opt.withDefaults()
	pixW := int(math.Round(doc.Container.Width * opt.Scale))
	pixH := int(math.Round(doc.Container.Height * opt.Scale))
	if pixW <= 0 || pixH <= 0 {
		return nil, fmt.Errorf("container has no area (%gx%g)", doc.Container.Width, doc.Container.Height)
	}
	if pixW > maxPNGSide || pixH > maxPNGSide {
		return nil, fmt.Errorf("image too large: %dx%d", pixW, pixH)
	}

	dc := gg.NewContext(pixW, pixH)
	dc.SetColor(color.White)
	dc.Clear()
	face := basicfont.Face7x13
	dc.SetFontFace(face)
	lh := lineHeight(face)

	if opt.IncludeGuides {
		dc.SetColor(opt.GuideColor)
		dc.SetLineWidth(1)
		dc.DrawRectangle(0.5, 0.5, float64(pixW)-1, float64(pixH)-1)
		dc.Stroke()
	}

	for _, b := range layout(doc, opt.Registry) {
		x, y := b.rect.X*opt.Scale, b.rect.Y*opt.Scale
		bw, bh := b.rect.Width*opt.Scale, b.rect.Height*opt.Scale

		dc.SetColor(opt.BlockFill)
		dc.DrawRectangle(x, y, bw, bh)
		dc.Fill()

		stroke := opt.BlockStroke
		if b.focus {
			stroke = opt.FocusStroke
		}
		dc.SetColor(stroke)
		dc.SetLineWidth(1)
		if b.placeholder {
			dc.SetDash(4, 3)
		}
		dc.DrawRectangle(x, y, bw, bh)
		dc.Stroke()
		dc.SetDash()

		dc.SetColor(color.Black)
		lines := wrapLabel(face, b.label, bw-4, int(bh/lh))
		top := y + bh/2 - lh*float64(len(lines)-1)/2
		for i, line := range lines {
			dc.DrawStringAnchored(line, x+bw/2, top+lh*float64(i), 0.5, 0.5)
		}
	}
	return dc.Image(), nil
}

// WritePNG encodes the wireframe of doc as PNG.
func WritePNG(w io.Writer, doc domain.Document, opt Options) error {
	img, err := RenderPNG(doc, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ExportPNG writes the page's document to outPath. Relative paths land in the
// page's exports folder.
func ExportPNG(ph *storage.PageHandle, outPath string, opt Options) error {
	if ph == nil {
		return fmt.Errorf("page handle is nil")
	}
	out, err := resolveOut(ph, outPath)
	if err != nil {
		return err
	}
	return writeTo(out, func(f *os.File) error { return WritePNG(f, ph.Document, opt) })
}
