// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mcpserver exposes internal/tools.Engine's eight operations over
// the Model Context Protocol, grounded on the teacher's internal/mcp
// (server.go's mcp.NewServer/AddTool/Run wiring and response.go's
// createJSONResponse/createErrorResponse helpers). Unlike the teacher, which
// layers auto-indexing, a semantic scorer, predictive context, and
// markdown-formatted "compact" responses on top of the protocol, this
// package registers exactly the eight tools spec.md §6 names and returns
// the plain structs internal/tools already produces: formatting is the
// collaborator's concern, not the server's.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/tools"
	"github.com/bartolli/codanna/internal/types"
)

// Server wraps the protocol transport around a tools.Engine.
type Server struct {
	engine *tools.Engine
	server *mcp.Server
}

// New constructs a Server with all eight tools registered, ready for Start.
func New(engine *tools.Engine, version string) *Server {
	s := &Server{
		engine: engine,
		server: mcp.NewServer(&mcp.Implementation{Name: "codanna", Version: version}, nil),
	}
	s.registerTools()
	return s
}

// Start runs the server over stdio until ctx is cancelled, mirroring the
// teacher's (*Server).Start.
func (s *Server) Start(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "find_symbol",
		Description: "Find every symbol with an exact name match.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {Type: "string", Description: "Exact symbol name"},
			},
			Required: []string{"name"},
		},
	}, s.handleFindSymbol)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_calls",
		Description: "List the symbols a function calls.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string", Description: "Name of the calling function"},
			},
			Required: []string{"function_name"},
		},
	}, s.handleGetCalls)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_callers",
		Description: "List the symbols that call a function.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"function_name": {Type: "string", Description: "Name of the called function"},
			},
			Required: []string{"function_name"},
		},
	}, s.handleFindCallers)

	s.server.AddTool(&mcp.Tool{
		Name:        "analyze_impact",
		Description: "Walk the incoming call/implements/uses graph from a symbol up to max_depth hops (0 = the symbol itself, negative = unbounded transitive closure).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"symbol_name": {Type: "string", Description: "Root symbol name"},
				"max_depth":   {Type: "integer", Description: "Hop limit; 0 returns the root only, negative is unbounded"},
			},
			Required: []string{"symbol_name"},
		},
	}, s.handleAnalyzeImpact)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_index_info",
		Description: "Report symbol count, file count, and last-indexed time for the engine's index.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleGetIndexInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Full-text search over symbol name, doc comment, and signature, optionally narrowed by kind and/or module path prefix.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":  {Type: "string", Description: "Query string"},
				"limit":  {Type: "integer", Description: "Maximum results (default 50)"},
				"kind":   {Type: "string", Description: "Restrict to one symbol kind, e.g. function, struct, trait"},
				"module": {Type: "string", Description: "Restrict to a module path prefix"},
			},
			Required: []string{"query"},
		},
	}, s.handleSearchSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "semantic_search_docs",
		Description: "Embed a query and return the top symbols by cosine similarity over their doc-comment embeddings.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":     {Type: "string", Description: "Natural-language query"},
				"limit":     {Type: "integer", Description: "Maximum results (default 10)"},
				"threshold": {Type: "number", Description: "Minimum similarity score (default 0)"},
			},
			Required: []string{"query"},
		},
	}, s.handleSemanticSearchDocs)

	s.server.AddTool(&mcp.Tool{
		Name:        "semantic_search_with_context",
		Description: "Fuse full-text and semantic search rankings with Reciprocal Rank Fusion, then enrich each result with one hop of dependency/caller/impact context.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Natural-language query"},
				"limit": {Type: "integer", Description: "Maximum results (default 10)"},
			},
			Required: []string{"query"},
		},
	}, s.handleSemanticSearchWithContext)
}

type findSymbolParams struct {
	Name string `json:"name"`
}

func (s *Server) handleFindSymbol(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p findSymbolParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("find_symbol", coderr.NewValidationError("arguments", err.Error()))
	}
	syms, err := s.engine.FindSymbol(p.Name)
	if err != nil {
		return createErrorResponse("find_symbol", err)
	}
	return createJSONResponse(syms)
}

type functionNameParams struct {
	FunctionName string `json:"function_name"`
}

func (s *Server) handleGetCalls(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p functionNameParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("get_calls", coderr.NewValidationError("arguments", err.Error()))
	}
	syms, err := s.engine.GetCalls(p.FunctionName)
	if err != nil {
		return createErrorResponse("get_calls", err)
	}
	return createJSONResponse(syms)
}

func (s *Server) handleFindCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p functionNameParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("find_callers", coderr.NewValidationError("arguments", err.Error()))
	}
	syms, err := s.engine.FindCallers(p.FunctionName)
	if err != nil {
		return createErrorResponse("find_callers", err)
	}
	return createJSONResponse(syms)
}

type analyzeImpactParams struct {
	SymbolName string `json:"symbol_name"`
	MaxDepth   int    `json:"max_depth"`
}

func (s *Server) handleAnalyzeImpact(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p analyzeImpactParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("analyze_impact", coderr.NewValidationError("arguments", err.Error()))
	}
	tree, err := s.engine.AnalyzeImpact(p.SymbolName, p.MaxDepth)
	if err != nil {
		return createErrorResponse("analyze_impact", err)
	}
	return createJSONResponse(tree)
}

func (s *Server) handleGetIndexInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(s.engine.GetIndexInfo())
}

type searchSymbolsParams struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Kind   string `json:"kind"`
	Module string `json:"module"`
}

func (s *Server) handleSearchSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p searchSymbolsParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("search_symbols", coderr.NewValidationError("arguments", err.Error()))
	}
	var kind *types.SymbolKind
	if p.Kind != "" {
		k, ok := parseSymbolKind(p.Kind)
		if !ok {
			return createErrorResponse("search_symbols", coderr.NewValidationError("kind", "unrecognized symbol kind "+p.Kind))
		}
		kind = &k
	}
	syms, err := s.engine.SearchSymbols(p.Query, p.Limit, kind, p.Module)
	if err != nil {
		return createErrorResponse("search_symbols", err)
	}
	return createJSONResponse(syms)
}

type semanticSearchDocsParams struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

func (s *Server) handleSemanticSearchDocs(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p semanticSearchDocsParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("semantic_search_docs", coderr.NewValidationError("arguments", err.Error()))
	}
	hits, err := s.engine.SemanticSearchDocs(ctx, p.Query, p.Limit, p.Threshold)
	if err != nil {
		return createErrorResponse("semantic_search_docs", err)
	}
	return createJSONResponse(hits)
}

type semanticSearchWithContextParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSemanticSearchWithContext(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p semanticSearchWithContextParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("semantic_search_with_context", coderr.NewValidationError("arguments", err.Error()))
	}
	results, err := s.engine.SemanticSearchWithContext(ctx, p.Query, p.Limit)
	if err != nil {
		return createErrorResponse("semantic_search_with_context", err)
	}
	return createJSONResponse(results)
}

func parseSymbolKind(s string) (types.SymbolKind, bool) {
	for k := types.KindFunction; k <= types.KindOther; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// createJSONResponse wraps data as the tool result's sole text content.
// Unlike the teacher's version, there is no markdown/"compact" formatting
// branch: spec.md §6 treats the object graph itself as the output.
func createJSONResponse(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// createErrorResponse reports a tool-level failure inside the result object
// with IsError set, per the MCP SDK spec, so the calling model can see the
// error and self-correct instead of receiving an opaque protocol failure.
// A *coderr.CodeError's Suggestion is surfaced alongside the message.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	payload := map[string]any{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if ce, ok := err.(*coderr.CodeError); ok {
		payload["kind"] = ce.Kind.String()
		payload["suggestion"] = ce.Suggestion
	}
	resp, marshalErr := createJSONResponse(payload)
	if marshalErr != nil {
		return nil, marshalErr
	}
	resp.IsError = true
	return resp, nil
}
