/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/storage"
)

func testPage() domain.Document {
	doc := domain.NewDocument(400, 300)
	doc.Blocks = []*domain.Block{
		{Key: "button", Top: 20, Left: 30, ZIndex: 2, Width: domain.Float(100), Height: domain.Float(40)},
		{Key: "text", Top: 120, Left: 60, ZIndex: 1, Focus: true},
		{Key: "unknown", Top: 200, Left: 200, ZIndex: 3, Width: domain.Float(50), Height: domain.Float(20)},
	}
	return doc
}

func TestExportPDF_CreatesFile(t *testing.T) {
	root := t.TempDir()
	ph, err := storage.InitPage(root, testPage())
	if err != nil {
		t.Fatalf("init page: %v", err)
	}
	if err := ExportPDF(ph, "page.pdf", Options{IncludeGuides: true, Registry: registry.Default()}); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := filepath.Join(root, storage.ExportsDirName, "page.pdf")
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:8])
	}
}

func TestWritePDF_RejectsEmptyContainer(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, domain.NewDocument(0, 100), Options{}); err == nil {
		t.Fatalf("expected error for zero width container")
	}
}

func TestExportPDF_NilHandle(t *testing.T) {
	if err := ExportPDF(nil, "x.pdf", Options{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLayout_OrdersByZIndexAndLabels(t *testing.T) {
	boxes := layout(testPage(), registry.Default())
	if len(boxes) != 3 {
		t.Fatalf("expected 3 boxes, got %d", len(boxes))
	}
	if boxes[0].label != "Text" || !boxes[0].placeholder || boxes[0].rect.Width != placeholderW {
		t.Fatalf("bottom box should be the text placeholder, got %+v", boxes[0])
	}
	if boxes[1].label != "Button" || boxes[1].placeholder {
		t.Fatalf("middle box should be the button, got %+v", boxes[1])
	}
	if boxes[2].label != "unknown" {
		t.Fatalf("unregistered keys fall back to the key, got %q", boxes[2].label)
	}
}
