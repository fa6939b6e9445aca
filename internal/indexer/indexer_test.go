// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bartolli/codanna/internal/config"
	"github.com/bartolli/codanna/internal/storage"
)

func newTestIndexer(t *testing.T, settings config.Settings) (*Indexer, string) {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "index.bleve")
	idx, err := storage.Open(dataDir)
	if err != nil {
		t.Fatalf("storage.Open() = %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return New(idx, nil, nil, settings, nil), dataDir
}

func writeRustFn(t *testing.T, root, rel, fnName string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	src := "pub fn " + fnName + "() -> i32 {\n    42\n}\n"
	if err := os.WriteFile(full, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestIndexParallelParseMatchesFileCount exercises the multi-worker parse
// stage (settings.Indexing.ParallelThreads > 1, fewer workers than files)
// and checks every file is still accounted for exactly once, in workers
// racing over a shared counter rather than one per file.
func TestIndexParallelParseMatchesFileCount(t *testing.T) {
	settings := config.Defaults()
	settings.Indexing.ParallelThreads = 3
	ix, _ := newTestIndexer(t, settings)

	root := t.TempDir()
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for _, name := range names {
		writeRustFn(t, root, "src/"+name+".rs", name+"_fn")
	}

	result, err := ix.Index(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Index() = %v", err)
	}
	if len(result.Files) != len(names) {
		t.Fatalf("len(Files) = %d, want %d", len(result.Files), len(names))
	}
	for _, f := range result.Files {
		if f.Outcome != OutcomeIndexed {
			t.Errorf("file %s outcome = %v, want OutcomeIndexed", f.Path, f.Outcome)
		}
	}
	if result.SymbolsIndexed != len(names) {
		t.Errorf("SymbolsIndexed = %d, want %d", result.SymbolsIndexed, len(names))
	}
}

// TestIndexThreadsOptionOverridesSettings checks Options.Threads beats
// settings.Indexing.ParallelThreads, matching the CLI's --threads flag.
func TestIndexThreadsOptionOverridesSettings(t *testing.T) {
	settings := config.Defaults()
	settings.Indexing.ParallelThreads = 1
	ix, _ := newTestIndexer(t, settings)

	root := t.TempDir()
	writeRustFn(t, root, "src/one.rs", "one_fn")
	writeRustFn(t, root, "src/two.rs", "two_fn")

	result, err := ix.Index(context.Background(), root, Options{Threads: 8})
	if err != nil {
		t.Fatalf("Index() = %v", err)
	}
	if result.SymbolsIndexed != 2 {
		t.Errorf("SymbolsIndexed = %d, want 2", result.SymbolsIndexed)
	}
}

// TestIndexSecondRunCachesUnchangedFiles confirms the parallel parse stage
// still honors the content-hash cache: a second run with no edits reports
// every file Cached rather than re-parsing.
func TestIndexSecondRunCachesUnchangedFiles(t *testing.T) {
	settings := config.Defaults()
	ix, _ := newTestIndexer(t, settings)

	root := t.TempDir()
	writeRustFn(t, root, "src/one.rs", "one_fn")

	if _, err := ix.Index(context.Background(), root, Options{}); err != nil {
		t.Fatalf("first Index() = %v", err)
	}
	result, err := ix.Index(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("second Index() = %v", err)
	}
	if len(result.Files) != 1 || result.Files[0].Outcome != OutcomeCached {
		t.Fatalf("second run files = %+v, want one OutcomeCached entry", result.Files)
	}
}
