// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bartolli/codanna/internal/storage"
	"github.com/bartolli/codanna/internal/tools"
	"github.com/bartolli/codanna/internal/types"
)

// seedServer builds a Server over a single "root" function symbol in a
// fresh on-disk index, grounded on the teacher's CallTool in-process test
// helper (internal/mcp/test_helpers.go), adapted here to call the handler
// methods directly rather than routing through a tool-name switch.
func seedServer(t *testing.T) *Server {
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
	root := &types.Symbol{Name: "root", Kind: types.KindFunction, FileID: idx.NextFileID()}
	if err := bw.StoreSymbol(root); err != nil {
		t.Fatal(err)
	}
	if _, err := bw.Commit(); err != nil {
		t.Fatalf("Commit() = %v, want nil", err)
	}

	engine := tools.New(idx, nil, nil)
	return New(engine, "test")
}

func requestWith(t *testing.T, params map[string]any) *mcp.CallToolRequest {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("json.Marshal(%+v) = %v, want nil", params, err)
	}
	return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}}
}

func decodeText(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("result.Content has %d entries, want 1", len(result.Content))
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("result.Content[0] = %T, want *mcp.TextContent", result.Content[0])
	}
	var out any
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("json.Unmarshal(%q) = %v, want nil", text.Text, err)
	}
	if m, ok := out.(map[string]any); ok {
		return m
	}
	return nil
}

func TestHandleFindSymbolReturnsMatch(t *testing.T) {
	s := seedServer(t)
	req := requestWith(t, map[string]any{"name": "root"})

	result, err := s.handleFindSymbol(context.Background(), req)
	if err != nil {
		t.Fatalf("handleFindSymbol() = %v, want nil", err)
	}
	if result.IsError {
		t.Fatalf("handleFindSymbol() result.IsError = true, content = %+v", result.Content)
	}

	var syms []types.Symbol
	text := result.Content[0].(*mcp.TextContent).Text
	if err := json.Unmarshal([]byte(text), &syms); err != nil {
		t.Fatalf("json.Unmarshal() = %v, want nil", err)
	}
	if len(syms) != 1 || syms[0].Name != "root" {
		t.Errorf("handleFindSymbol(root) = %+v, want one symbol named root", syms)
	}
}

func TestHandleFindSymbolRejectsEmptyName(t *testing.T) {
	s := seedServer(t)
	req := requestWith(t, map[string]any{"name": ""})

	result, err := s.handleFindSymbol(context.Background(), req)
	if err != nil {
		t.Fatalf("handleFindSymbol() = %v, want nil", err)
	}
	if !result.IsError {
		t.Fatalf("handleFindSymbol(\"\") result.IsError = false, want true")
	}
	payload := decodeText(t, result)
	if payload["success"] != false {
		t.Errorf("error payload = %+v, want success=false", payload)
	}
}

func TestHandleAnalyzeImpactUnknownSymbolIsError(t *testing.T) {
	s := seedServer(t)
	req := requestWith(t, map[string]any{"symbol_name": "does_not_exist", "max_depth": 0})

	result, err := s.handleAnalyzeImpact(context.Background(), req)
	if err != nil {
		t.Fatalf("handleAnalyzeImpact() = %v, want nil", err)
	}
	if !result.IsError {
		t.Fatalf("handleAnalyzeImpact(does_not_exist) result.IsError = false, want true")
	}
}

func TestHandleSearchSymbolsRejectsUnknownKind(t *testing.T) {
	s := seedServer(t)
	req := requestWith(t, map[string]any{"query": "root", "kind": "not_a_real_kind"})

	result, err := s.handleSearchSymbols(context.Background(), req)
	if err != nil {
		t.Fatalf("handleSearchSymbols() = %v, want nil", err)
	}
	if !result.IsError {
		t.Fatalf("handleSearchSymbols() with bad kind result.IsError = false, want true")
	}
}

func TestHandleGetIndexInfoReportsSymbolCount(t *testing.T) {
	s := seedServer(t)
	req := requestWith(t, map[string]any{})

	result, err := s.handleGetIndexInfo(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetIndexInfo() = %v, want nil", err)
	}
	payload := decodeText(t, result)
	count, ok := payload["SymbolCount"].(float64)
	if !ok || count != 1 {
		t.Errorf("get_index_info payload = %+v, want SymbolCount=1", payload)
	}
}

func TestParseSymbolKindRoundTrips(t *testing.T) {
	k, ok := parseSymbolKind(types.KindFunction.String())
	if !ok || k != types.KindFunction {
		t.Errorf("parseSymbolKind(%q) = (%v, %v), want (KindFunction, true)", types.KindFunction.String(), k, ok)
	}
	if _, ok := parseSymbolKind("not_a_kind"); ok {
		t.Errorf("parseSymbolKind(not_a_kind) = ok, want false")
	}
}
