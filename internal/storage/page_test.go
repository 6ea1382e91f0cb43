/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pagebuilder/internal/domain"
)

func samplePage() domain.Document {
	doc := domain.NewDocument(640, 480)
	doc.Blocks = []*domain.Block{
		{Key: "input", Top: 10, Left: 20, ZIndex: 1},
		{Key: "button", Top: 100, Left: 50, ZIndex: 2, Width: domain.Float(80), Height: domain.Float(30)},
	}
	return doc
}

func TestInitPageCreatesStructure(t *testing.T) {
	root := t.TempDir()
	ph, err := InitPage(root, samplePage())
	if err != nil {
		t.Fatalf("InitPage error: %v", err)
	}
	if ph.ID == "" {
		t.Fatalf("expected page id to be assigned")
	}
	for _, d := range []string{BackupsDirName, ExportsDirName, IndexDirName} {
		p := filepath.Join(root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
	b, err := os.ReadFile(ph.PagePath)
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	got, err := ParseDocument(b)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if len(got.Blocks) != 2 || got.Blocks[1].Key != "button" || *got.Blocks[1].Width != 80 {
		t.Fatalf("unexpected blocks on disk: %+v", got.Blocks)
	}
}

func TestInitPageRequiresRoot(t *testing.T) {
	if _, err := InitPage("  ", samplePage()); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestOpenKeepsPageID(t *testing.T) {
	root := t.TempDir()
	ph, err := InitPage(root, samplePage())
	if err != nil {
		t.Fatalf("InitPage error: %v", err)
	}
	again, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if again.ID != ph.ID {
		t.Fatalf("page id changed across opens: %q vs %q", again.ID, ph.ID)
	}
	if again.Document.Container.Width != 640 {
		t.Fatalf("container not loaded: %+v", again.Document.Container)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitPage(root, samplePage())
	if err != nil {
		t.Fatalf("InitPage error: %v", err)
	}
	ph.Document.Blocks[0].Top = 99
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups: %v", err)
	}
	found := false
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), PageFileName+".") && strings.HasSuffix(e.Name(), ".bak") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a page backup, got %d entries", len(ents))
	}
	// no temp files left behind
	tmp, _ := filepath.Glob(filepath.Join(root, "."+PageFileName+".tmp-*"))
	if len(tmp) != 0 {
		t.Fatalf("temp files left: %v", tmp)
	}
}

func TestOpenFallsBackToLatestBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitPage(root, samplePage())
	if err != nil {
		t.Fatalf("InitPage error: %v", err)
	}
	// second save backs up the first version
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ph.PagePath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt page: %v", err)
	}
	again, err := Open(root)
	if err != nil {
		t.Fatalf("Open should recover from backup: %v", err)
	}
	if len(again.Document.Blocks) != 2 {
		t.Fatalf("expected recovered blocks, got %d", len(again.Document.Blocks))
	}
}

func TestOpenFailsWithoutPageOrBackup(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

func TestAutosaveCrashSnapshotLeavesPageUntouched(t *testing.T) {
	root := t.TempDir()
	ph, err := InitPage(root, samplePage())
	if err != nil {
		t.Fatalf("InitPage error: %v", err)
	}
	before, _ := os.ReadFile(ph.PagePath)
	ph.Document.Blocks = ph.Document.Blocks[:1]
	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot: %v", err)
	}
	if !strings.Contains(filepath.Base(path), ".crash-") {
		t.Fatalf("unexpected crash snapshot name %s", path)
	}
	after, _ := os.ReadFile(ph.PagePath)
	if string(before) != string(after) {
		t.Fatalf("page.json must not change")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read crash snapshot: %v", err)
	}
	doc, err := ParseDocument(data)
	if err != nil || len(doc.Blocks) != 1 {
		t.Fatalf("crash snapshot content: %v blocks=%d", err, len(doc.Blocks))
	}
}

func TestExportPath(t *testing.T) {
	ph := &PageHandle{Root: "/tmp/p"}
	if got := ph.ExportPath("a.pdf"); got != filepath.Join("/tmp/p", ExportsDirName, "a.pdf") {
		t.Fatalf("ExportPath = %s", got)
	}
}

func TestSaveNilHandle(t *testing.T) {
	if err := Save(nil); err == nil {
		t.Fatalf("expected error for nil handle")
	}
	if err := Save(&PageHandle{}); err == nil {
		t.Fatalf("expected error for missing paths")
	}
}
