/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/storage"
)

func TestRenderPNG_SizeAndFill(t *testing.T) {
	img, err := RenderPNG(testPage(), Options{Scale: 2})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Fatalf("unexpected size %v", b)
	}
	// background stays white outside blocks
	if r, g, b, _ := img.At(2, 598).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Fatalf("expected white background, got %d %d %d", r>>8, g>>8, b>>8)
	}
	// inside the button (left 30, top 20) away from its label
	want := color.RGBA{R: 245, G: 245, B: 245, A: 255}
	if got := color.RGBAModel.Convert(img.At(2*30+6, 2*20+6)).(color.RGBA); got != want {
		t.Fatalf("expected block fill %v, got %v", want, got)
	}
}

func TestExportPNG_CreatesFile(t *testing.T) {
	root := t.TempDir()
	ph, err := storage.InitPage(root, testPage())
	if err != nil {
		t.Fatalf("init page: %v", err)
	}
	out := filepath.Join(root, "nested", "page.png")
	if err := ExportPNG(ph, out, Options{IncludeGuides: true}); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 400 || cfg.Height != 300 {
		t.Fatalf("unexpected size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRenderPNG_RejectsHugeContainer(t *testing.T) {
	if _, err := RenderPNG(domain.NewDocument(1e6, 10), Options{}); err == nil {
		t.Fatalf("expected size error")
	}
}
