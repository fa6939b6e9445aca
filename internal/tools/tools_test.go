// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bartolli/codanna/internal/storage"
	"github.com/bartolli/codanna/internal/types"
)

// seedChain builds root -> mid -> leaf calls edges in a fresh index and
// returns the engine plus each symbol's name for lookups.
func seedChain(t *testing.T) *Engine {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "index.bleve")
	idx, err := storage.Open(dir)
	if err != nil {
		t.Fatalf("storage.Open() = %v, want nil", err)
	}
	t.Cleanup(func() { idx.Close() })

	bw, err := idx.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() = %v, want nil", err)
	}
	fileID := idx.NextFileID()
	root := &types.Symbol{Name: "root", Kind: types.KindFunction, FileID: fileID}
	mid := &types.Symbol{Name: "mid", Kind: types.KindFunction, FileID: fileID}
	leaf := &types.Symbol{Name: "leaf", Kind: types.KindFunction, FileID: fileID}
	for _, s := range []*types.Symbol{root, mid, leaf} {
		if err := bw.StoreSymbol(s); err != nil {
			t.Fatal(err)
		}
	}
	for _, rel := range []types.Relationship{
		{From: root.ID, To: mid.ID, Kind: types.RelCalls},
		{From: mid.ID, To: leaf.ID, Kind: types.RelCalls},
	} {
		if err := bw.StoreRelationship(rel); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := bw.Commit(); err != nil {
		t.Fatalf("Commit() = %v, want nil", err)
	}

	return New(idx, nil, nil)
}

func TestFindSymbolRejectsEmptyName(t *testing.T) {
	e := seedChain(t)
	if _, err := e.FindSymbol(""); err == nil {
		t.Fatalf("FindSymbol(\"\") = nil error, want ValidationError")
	}
}

func TestGetCallsAndFindCallers(t *testing.T) {
	e := seedChain(t)

	calls, err := e.GetCalls("root")
	if err != nil {
		t.Fatalf("GetCalls(root) = %v, want nil", err)
	}
	if len(calls) != 1 || calls[0].Name != "mid" {
		t.Errorf("GetCalls(root) = %+v, want [mid]", calls)
	}

	callers, err := e.FindCallers("leaf")
	if err != nil {
		t.Fatalf("FindCallers(leaf) = %v, want nil", err)
	}
	if len(callers) != 1 || callers[0].Name != "mid" {
		t.Errorf("FindCallers(leaf) = %+v, want [mid]", callers)
	}
}

func TestFindCallersUnknownSymbolIsValidationError(t *testing.T) {
	e := seedChain(t)
	if _, err := e.FindCallers("does_not_exist"); err == nil {
		t.Fatalf("FindCallers(unknown) = nil error, want ValidationError")
	}
}

func TestAnalyzeImpactDepthZeroReturnsRootOnly(t *testing.T) {
	e := seedChain(t)
	node, err := e.AnalyzeImpact("leaf", 0)
	if err != nil {
		t.Fatalf("AnalyzeImpact(leaf, 0) = %v, want nil", err)
	}
	if node.Symbol.Name != "leaf" || len(node.Children) != 0 {
		t.Errorf("AnalyzeImpact(leaf, 0) = %+v, want just the leaf node", node)
	}
}

func TestAnalyzeImpactUnboundedWalksWholeChain(t *testing.T) {
	e := seedChain(t)
	node, err := e.AnalyzeImpact("leaf", -1)
	if err != nil {
		t.Fatalf("AnalyzeImpact(leaf, -1) = %v, want nil", err)
	}
	if len(node.Children) != 1 || node.Children[0].Symbol.Name != "mid" {
		t.Fatalf("AnalyzeImpact(leaf, -1) children = %+v, want [mid]", node.Children)
	}
	grandchildren := node.Children[0].Children
	if len(grandchildren) != 1 || grandchildren[0].Symbol.Name != "root" {
		t.Errorf("AnalyzeImpact(leaf, -1) grandchildren = %+v, want [root]", grandchildren)
	}
}

func TestSemanticSearchDocsDisabledWithoutVectorStore(t *testing.T) {
	e := seedChain(t)
	if _, err := e.SemanticSearchDocs(context.Background(), "lookup", 10, 0); err == nil {
		t.Fatalf("SemanticSearchDocs() with no vector store = nil error, want EmbeddingUnavailable")
	}
}

func TestGetIndexInfoReportsCounts(t *testing.T) {
	e := seedChain(t)
	stats := e.GetIndexInfo()
	if stats.SymbolCount != 3 {
		t.Errorf("GetIndexInfo().SymbolCount = %d, want 3", stats.SymbolCount)
	}
}

func TestSearchSymbolsRejectsEmptyQuery(t *testing.T) {
	e := seedChain(t)
	if _, err := e.SearchSymbols("", 10, nil, ""); err == nil {
		t.Fatalf("SearchSymbols(\"\") = nil error, want ValidationError")
	}
}
