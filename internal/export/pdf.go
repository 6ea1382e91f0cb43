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
	"image/color"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/storage"
)

// WritePDF renders doc as a single page PDF sized to the container.
//
// Coordinates:
// - Page origin is top-left, one canvas pixel maps to Scale points.
// - Blocks outside the container are clipped by the page edge.
func WritePDF(w io.Writer, doc domain.Document, opt Options) error {
	opt = opt.withDefaults()
	pageW := doc.Container.Width * opt.Scale
	pageH := doc.Container.Height * opt.Scale
	if pageW <= 0 || pageH <= 0 {
		return fmt.Errorf("container has no area (%gx%g)", doc.Container.Width, doc.Container.Height)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetTitle("Page wireframe", false)
	pdf.SetCreator("pagebuilder", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	// Built-in Helvetica keeps text vector without embedding
	pdf.SetFont("Helvetica", "", 9*opt.Scale)

	if opt.IncludeGuides {
		setDrawColor(pdf, opt.GuideColor)
		pdf.SetLineWidth(0.5)
		pdf.Rect(0, 0, pageW, pageH, "D")
	}

	for _, b := range layout(doc, opt.Registry) {
		x, y := b.rect.X*opt.Scale, b.rect.Y*opt.Scale
		bw, bh := b.rect.Width*opt.Scale, b.rect.Height*opt.Scale
		stroke := opt.BlockStroke
		if b.focus {
			stroke = opt.FocusStroke
		}
		setDrawColor(pdf, stroke)
		setFillColor(pdf, opt.BlockFill)
		pdf.SetLineWidth(1)
		if b.placeholder {
			pdf.SetDashPattern([]float64{3, 2}, 0)
		}
		pdf.Rect(x, y, bw, bh, "FD")
		pdf.SetDashPattern([]float64{}, 0)

		pdf.SetTextColor(0, 0, 0)
		pdf.SetXY(x, y)
		pdf.CellFormat(bw, bh, b.label, "", 0, "CM", false, 0, "")
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportPDF writes the page's document to outPath. Relative paths land in the
// page's exports folder.
func ExportPDF(ph *storage.PageHandle, outPath string, opt Options) error {
	if ph == nil {
		return fmt.Errorf("page handle is nil")
	}
	out, err := resolveOut(ph, outPath)
	if err != nil {
		return err
	}
	return writeTo(out, func(f *os.File) error { return WritePDF(f, ph.Document, opt) })
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
