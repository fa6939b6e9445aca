// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"path/filepath"
	"testing"

	"github.com/bartolli/codanna/internal/types"
)

func openTestIndex(t *testing.T) *DocumentIndex {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "index.bleve")
	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() = %v, want nil", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestBeginBatchStoreSymbolAndFind(t *testing.T) {
	idx := openTestIndex(t)

	bw, err := idx.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() = %v, want nil", err)
	}
	fileID := idx.NextFileID()
	if err := bw.StoreFileInfo(types.FileRecord{ID: fileID, Path: "src/lib.rs", Language: "rust"}); err != nil {
		t.Fatalf("StoreFileInfo() = %v, want nil", err)
	}

	sym := &types.Symbol{
		Name:       "lookup",
		Kind:       types.KindFunction,
		FileID:     fileID,
		ModulePath: "crate::store::lookup",
		Signature:  "fn lookup(key: &str) -> Option<Entry>",
		DocComment: "Looks up an entry by key.",
	}
	if err := bw.StoreSymbol(sym); err != nil {
		t.Fatalf("StoreSymbol() = %v, want nil", err)
	}
	if sym.ID == 0 {
		t.Fatalf("StoreSymbol() left sym.ID = 0, want an allocated ID")
	}

	if _, err := bw.Commit(); err != nil {
		t.Fatalf("Commit() = %v, want nil", err)
	}

	got, ok := idx.FindSymbol(sym.ID)
	if !ok {
		t.Fatalf("FindSymbol(%d) not found", sym.ID)
	}
	if got.Name != "lookup" || got.Kind != types.KindFunction {
		t.Errorf("FindSymbol(%d) = %+v, want Name=lookup Kind=function", sym.ID, got)
	}

	byName, err := idx.FindSymbolsByName("lookup")
	if err != nil || len(byName) != 1 {
		t.Fatalf("FindSymbolsByName(lookup) = %v, %v; want 1 result", byName, err)
	}

	stats := idx.Stats()
	if stats.SymbolCount != 1 || stats.FileCount != 1 {
		t.Errorf("Stats() = %+v, want SymbolCount=1 FileCount=1", stats)
	}
}

func TestWriterSlotRejectsConcurrentBatch(t *testing.T) {
	idx := openTestIndex(t)

	bw, err := idx.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() = %v, want nil", err)
	}
	defer bw.Discard()

	if _, err := idx.BeginBatch(); err == nil {
		t.Fatalf("second BeginBatch() = nil error, want a StorageConflict")
	}
}

func TestCallsOfAndCallersOfRoundTrip(t *testing.T) {
	idx := openTestIndex(t)

	bw, err := idx.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() = %v, want nil", err)
	}
	fileID := idx.NextFileID()
	caller := &types.Symbol{Name: "caller", Kind: types.KindFunction, FileID: fileID}
	callee := &types.Symbol{Name: "callee", Kind: types.KindFunction, FileID: fileID}
	if err := bw.StoreSymbol(caller); err != nil {
		t.Fatal(err)
	}
	if err := bw.StoreSymbol(callee); err != nil {
		t.Fatal(err)
	}
	rel := types.Relationship{From: caller.ID, To: callee.ID, Kind: types.RelCalls}
	if err := bw.StoreRelationship(rel); err != nil {
		t.Fatalf("StoreRelationship() = %v, want nil", err)
	}
	if _, err := bw.Commit(); err != nil {
		t.Fatalf("Commit() = %v, want nil", err)
	}

	calls := idx.CallsOf(caller.ID)
	if len(calls) != 1 || calls[0].To != callee.ID {
		t.Errorf("CallsOf(caller) = %+v, want one edge to callee", calls)
	}
	callers := idx.CallersOf(callee.ID)
	if len(callers) != 1 || callers[0].From != caller.ID {
		t.Errorf("CallersOf(callee) = %+v, want one edge from caller", callers)
	}
}

func TestSearchFiltersByKind(t *testing.T) {
	idx := openTestIndex(t)

	bw, err := idx.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() = %v, want nil", err)
	}
	fileID := idx.NextFileID()
	fn := &types.Symbol{Name: "parse_entry", Kind: types.KindFunction, FileID: fileID, DocComment: "parse entry"}
	st := &types.Symbol{Name: "EntryParser", Kind: types.KindStruct, FileID: fileID, ModulePath: "crate::EntryParser", DocComment: "parse entry holder"}
	if err := bw.StoreSymbol(fn); err != nil {
		t.Fatal(err)
	}
	if err := bw.StoreSymbol(st); err != nil {
		t.Fatal(err)
	}
	if _, err := bw.Commit(); err != nil {
		t.Fatalf("Commit() = %v, want nil", err)
	}

	hits, err := idx.Search("parse", SearchOptions{Kind: types.KindStruct, KindSet: true})
	if err != nil {
		t.Fatalf("Search() = %v, want nil", err)
	}
	if len(hits) != 1 || hits[0].Symbol.Name != "EntryParser" {
		t.Errorf("Search(kind=struct) = %+v, want one hit for EntryParser", hits)
	}
}
