/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDetectAndRebuildIndex_OnCorruption(t *testing.T) {
	root := t.TempDir()
	ph, err := InitPage(root, samplePage())
	if err != nil {
		t.Fatalf("InitPage error: %v", err)
	}
	idx := IndexPath(root)
	_ = os.Remove(idx + "-wal")
	_ = os.Remove(idx + "-shm")
	if err := os.WriteFile(idx, []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rebuilt, err := DetectAndRebuildIndex(ctx, root, ph.ID)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	st, err := os.Stat(idx)
	if err != nil || st.Size() == 0 {
		t.Fatalf("rebuilt index missing or empty: %v", err)
	}
	bdir := filepath.Join(root, IndexDirName, "backups")
	entries, _ := os.ReadDir(bdir)
	if len(entries) == 0 {
		t.Fatalf("expected backup file in %s", bdir)
	}
	again, err := Open(root)
	if err != nil {
		t.Fatalf("Open after rebuild: %v", err)
	}
	if again.ID != ph.ID {
		t.Fatalf("page id not restored: %q vs %q", again.ID, ph.ID)
	}
}

func TestDetectAndRebuildIndex_HealthyIsUntouched(t *testing.T) {
	root := t.TempDir()
	ph, err := InitPage(root, samplePage())
	if err != nil {
		t.Fatalf("InitPage error: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(context.Background(), root, ph.ID)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if rebuilt {
		t.Fatalf("healthy index must not be rebuilt")
	}
}
