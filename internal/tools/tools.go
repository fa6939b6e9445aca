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

// Package tools implements the eight tool-protocol operations (spec.md §6)
// as plain Go functions over the core engine's public interfaces, so the
// same implementation backs both cmd/codanna's `retrieve` subcommand and
// the MCP server (internal/mcpserver) — mirroring how the teacher's
// pkg/tools/*.go is shared between cmd/cie/query.go and cmd/cie/mcp.go.
// Unlike the teacher, whose tools render markdown for a chat surface, these
// return plain structs: spec.md §6 makes formatting the collaborator's
// concern.
package tools

import (
	"context"
	"errors"
	"sort"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/storage"
	"github.com/bartolli/codanna/internal/types"
	"github.com/bartolli/codanna/internal/vector"
)

// errSemanticSearchDisabled is the cause reported when semantic search was
// never enabled for this engine (no vector store or embedder configured),
// as opposed to an embedder call failing at query time.
var errSemanticSearchDisabled = errors.New("semantic search is disabled for this index")

// Engine is the shared collaborator boundary every tool function operates
// against: a storage reader plus the optional vector subsystem.
type Engine struct {
	idx      *storage.DocumentIndex
	vec      *vector.Store
	embedder vector.Embedder
}

// New constructs an Engine. vec and embedder may be nil, in which case
// SemanticSearchDocs and SemanticSearchWithContext return
// coderr.KindEmbeddingUnavailable.
func New(idx *storage.DocumentIndex, vec *vector.Store, embedder vector.Embedder) *Engine {
	return &Engine{idx: idx, vec: vec, embedder: embedder}
}

// FindSymbol returns every symbol with an exact name match (spec.md §6
// find_symbol).
func (e *Engine) FindSymbol(name string) ([]*types.Symbol, error) {
	if name == "" {
		return nil, coderr.NewValidationError("name", "non-empty symbol name")
	}
	return e.idx.FindSymbolsByName(name)
}

// GetCalls returns the symbols functionName calls (spec.md §6 get_calls).
func (e *Engine) GetCalls(functionName string) ([]*types.Symbol, error) {
	sym, err := e.requireOneByName(functionName)
	if err != nil {
		return nil, err
	}
	return e.symbolsFromEdges(e.idx.CallsOf(sym.ID), edgeTo)
}

// FindCallers returns the symbols that call functionName (spec.md §6
// find_callers).
func (e *Engine) FindCallers(functionName string) ([]*types.Symbol, error) {
	sym, err := e.requireOneByName(functionName)
	if err != nil {
		return nil, err
	}
	return e.symbolsFromEdges(e.idx.CallersOf(sym.ID), edgeFrom)
}

// FindImplementations returns the symbols that implement traitName
// (spec.md §6 find_implementations; §8 scenario S3).
func (e *Engine) FindImplementations(traitName string) ([]*types.Symbol, error) {
	sym, err := e.requireOneByName(traitName)
	if err != nil {
		return nil, err
	}
	return e.symbolsFromEdges(e.idx.ImplementorsOf(sym.ID), edgeFrom)
}

// FindUses returns the symbols that reference typeName as a field,
// parameter, or return type (spec.md §6 find_uses).
func (e *Engine) FindUses(typeName string) ([]*types.Symbol, error) {
	sym, err := e.requireOneByName(typeName)
	if err != nil {
		return nil, err
	}
	return e.symbolsFromEdges(e.idx.UsersOf(sym.ID), edgeFrom)
}

// FindDefines returns the members (methods, trait signatures, enum
// variants) containerName defines (spec.md §6 find_defines).
func (e *Engine) FindDefines(containerName string) ([]*types.Symbol, error) {
	sym, err := e.requireOneByName(containerName)
	if err != nil {
		return nil, err
	}
	return e.symbolsFromEdges(e.idx.DefinesOf(sym.ID), edgeTo)
}

// GetDependencies returns what symbolName directly calls, references as a
// type, or implements: the forward one-hop complement to AnalyzeImpact's
// incoming-edge closure (spec.md §6 retrieve dependencies).
func (e *Engine) GetDependencies(symbolName string) ([]*types.Symbol, error) {
	sym, err := e.requireOneByName(symbolName)
	if err != nil {
		return nil, err
	}
	return e.symbolsFromEdges(e.idx.DependenciesOf(sym.ID), edgeTo)
}

// ImpactNode is one symbol in an impact tree, with the edges that reached
// it from the root.
type ImpactNode struct {
	Symbol   *types.Symbol
	Depth    int
	Via      types.RelationshipKind
	Children []*ImpactNode
}

// AnalyzeImpact walks the incoming call/implements/uses graph from
// symbolName outward up to maxDepth hops, returning the transitive closure
// as a tree (spec.md §6 analyze_impact; §8 invariant 8: depth=0 returns the
// symbol itself only, depth<0 means unbounded/transitive closure).
// Self-recursive edges are terminal per spec.md §9 and never revisit a
// node already on the current path. Grounded on the teacher's BFS-based
// traceWithWaypoints/searchFromSource (pkg/tools/trace.go), adapted from a
// path-finding search between two named functions into a single-root
// breadth-first fan-out.
func (e *Engine) AnalyzeImpact(symbolName string, maxDepth int) (*ImpactNode, error) {
	sym, err := e.requireOneByName(symbolName)
	if err != nil {
		return nil, err
	}

	root := &ImpactNode{Symbol: sym, Depth: 0}
	if maxDepth == 0 {
		return root, nil
	}

	visited := map[types.SymbolID]bool{sym.ID: true}
	queue := []*ImpactNode{root}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && current.Depth >= maxDepth {
			continue
		}

		edges := append(
			append(e.idx.CallersOf(current.Symbol.ID), e.idx.ImplementorsOf(current.Symbol.ID)...),
			e.idx.UsersOf(current.Symbol.ID)...,
		)
		for _, rel := range edges {
			if rel.IsSelfEdge() || visited[rel.From] {
				continue
			}
			callerSym, ok := e.idx.FindSymbol(rel.From)
			if !ok {
				continue
			}
			visited[rel.From] = true
			child := &ImpactNode{Symbol: callerSym, Depth: current.Depth + 1, Via: rel.Kind}
			current.Children = append(current.Children, child)
			queue = append(queue, child)
		}
	}
	return root, nil
}

// GetIndexInfo returns engine-wide statistics (spec.md §6 get_index_info).
func (e *Engine) GetIndexInfo() storage.Stats {
	return e.idx.Stats()
}

// SearchSymbols runs a full-text query over name/doc_comment/signature,
// optionally narrowed by kind and/or module path prefix (spec.md §6
// search_symbols).
func (e *Engine) SearchSymbols(query string, limit int, kind *types.SymbolKind, module string) ([]*types.Symbol, error) {
	if query == "" {
		return nil, coderr.NewValidationError("query", "non-empty search string")
	}
	opts := storage.SearchOptions{ModulePath: module, Limit: limit}
	if kind != nil {
		opts.Kind = *kind
		opts.KindSet = true
	}
	hits, err := e.idx.Search(query, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Symbol, len(hits))
	for i, h := range hits {
		out[i] = h.Symbol
	}
	return out, nil
}

// ScoredSymbol pairs a symbol with a similarity or fusion score.
type ScoredSymbol struct {
	Symbol *types.Symbol
	Score  float64
}

// SemanticSearchDocs embeds query and returns the top-K symbols by cosine
// similarity over their doc-comment embeddings, filtered to threshold
// (spec.md §6 semantic_search_docs).
func (e *Engine) SemanticSearchDocs(ctx context.Context, query string, limit int, threshold float64) ([]ScoredSymbol, error) {
	if e.vec == nil || e.embedder == nil {
		return nil, coderr.NewEmbeddingUnavailable(errSemanticSearchDisabled)
	}
	if query == "" {
		return nil, coderr.NewValidationError("query", "non-empty search string")
	}
	qVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, coderr.NewEmbeddingUnavailable(err)
	}
	hits := e.vec.Query(qVec, vector.QueryOptions{TopK: limit})

	out := make([]ScoredSymbol, 0, len(hits))
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		sym, ok := e.idx.FindSymbol(h.SymbolID)
		if !ok {
			continue
		}
		out = append(out, ScoredSymbol{Symbol: sym, Score: h.Score})
	}
	return out, nil
}

// ContextResult bundles a symbol with its immediate dependencies, callers,
// and one-hop impact, for an at-a-glance view of a semantic search result
// (spec.md §6 semantic_search_with_context).
type ContextResult struct {
	Symbol       *types.Symbol
	Score        float64
	Dependencies []*types.Symbol
	Callers      []*types.Symbol
	Impact       *ImpactNode
}

// SemanticSearchWithContext runs both a full-text and a semantic query for
// the same string and fuses their rankings with Reciprocal Rank Fusion
// (k=60, spec.md §4.5/§8 scenario S6), then enriches each of the top
// results with one hop of dependency/caller/impact context.
func (e *Engine) SemanticSearchWithContext(ctx context.Context, query string, limit int) ([]ContextResult, error) {
	if e.vec == nil || e.embedder == nil {
		return nil, coderr.NewEmbeddingUnavailable(errSemanticSearchDisabled)
	}
	if query == "" {
		return nil, coderr.NewValidationError("query", "non-empty search string")
	}

	textHits, err := e.idx.Search(query, storage.SearchOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	textRanked := make(vector.RankedList, len(textHits))
	for i, h := range textHits {
		textRanked[i] = h.Symbol.ID
	}

	qVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, coderr.NewEmbeddingUnavailable(err)
	}
	semHits := e.vec.Query(qVec, vector.QueryOptions{TopK: limit})
	semRanked := make(vector.RankedList, len(semHits))
	for i, h := range semHits {
		semRanked[i] = h.SymbolID
	}

	fused := vector.FuseRRF(textRanked, semRanked)
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	out := make([]ContextResult, 0, len(fused))
	for _, hit := range fused {
		sym, ok := e.idx.FindSymbol(hit.SymbolID)
		if !ok {
			continue
		}
		deps, _ := e.symbolsFromEdges(e.idx.CallsOf(sym.ID), edgeTo)
		callers, _ := e.symbolsFromEdges(e.idx.CallersOf(sym.ID), edgeFrom)
		impact, _ := e.AnalyzeImpact(sym.Name, 1)
		out = append(out, ContextResult{
			Symbol:       sym,
			Score:        hit.Score,
			Dependencies: deps,
			Callers:      callers,
			Impact:       impact,
		})
	}
	return out, nil
}

// requireOneByName resolves a single symbol by name. An ambiguous name
// picks the lowest SymbolID deterministically (first-defined wins); an
// unknown name is a caller mistake and reports coderr.KindValidation, not
// the resolver's KindResolutionMissing, which spec.md §7 reserves for
// silently-dropped relationships during indexing and never surfaces to a
// CLI or MCP caller.
func (e *Engine) requireOneByName(name string) (*types.Symbol, error) {
	if name == "" {
		return nil, coderr.NewValidationError("name", "non-empty symbol name")
	}
	syms, err := e.idx.FindSymbolsByName(name)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		return nil, coderr.NewValidationError("name", "no symbol named "+name+" in the index")
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].ID < syms[j].ID })
	return syms[0], nil
}

type edgeEnd int

const (
	edgeFrom edgeEnd = iota
	edgeTo
)

// symbolsFromEdges resolves each relationship's From or To endpoint into
// its symbol, dropping any edge whose endpoint no longer resolves rather
// than erroring (spec.md §8 invariant 1 guarantees this never happens for
// a healthy index, but a tool must still degrade gracefully).
func (e *Engine) symbolsFromEdges(rels []types.Relationship, end edgeEnd) ([]*types.Symbol, error) {
	out := make([]*types.Symbol, 0, len(rels))
	for _, rel := range rels {
		id := rel.To
		if end == edgeFrom {
			id = rel.From
		}
		if sym, ok := e.idx.FindSymbol(id); ok {
			out = append(out, sym)
		}
	}
	return out, nil
}
