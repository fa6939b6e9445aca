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

package storage

import (
	"sort"

	"github.com/blevesearch/bleve/v2"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/types"
)

// symbolFromDoc converts the stored-field view of a symbol document back
// into the domain type.
func symbolFromDoc(d *symbolDoc) *types.Symbol {
	sym := &types.Symbol{
		ID:           types.SymbolID(d.SymbolID),
		Name:         d.Name,
		DocComment:   d.DocComment,
		Signature:    d.Signature,
		ModulePath:   d.ModulePath,
		ReceiverType: d.ReceiverType,
		ClusterID:    types.ClusterID(d.ClusterID),
		VectorID:     types.VectorID(d.VectorID),
		HasVector:    d.HasVector,
		Range:        types.Range{StartLine: d.Line},
	}
	sym.Kind = symbolKindFromString(d.Kind)
	sym.Visibility = visibilityFromString(d.Visibility)
	return sym
}

func symbolKindFromString(s string) types.SymbolKind {
	for k := types.KindFunction; k <= types.KindOther; k++ {
		if k.String() == s {
			return k
		}
	}
	return types.KindOther
}

func visibilityFromString(s string) types.Visibility {
	kind := types.VisPrivate
	switch s {
	case "public":
		kind = types.VisPublic
	case "pub(crate)":
		kind = types.VisPubCrate
	case "pub(super)":
		kind = types.VisPubSuper
	}
	return types.Visibility{Kind: kind}
}

// FindSymbol returns the symbol with the given ID, or ok=false if absent.
func (idx *DocumentIndex) FindSymbol(id types.SymbolID) (*types.Symbol, bool) {
	doc, err := idx.rawSymbolDoc(uint32(id))
	if err != nil {
		return nil, false
	}
	return symbolFromDoc(doc), true
}

// FindSymbolsByName returns every symbol with an exact name match,
// ordered by symbol_id for deterministic output.
func (idx *DocumentIndex) FindSymbolsByName(name string) ([]*types.Symbol, error) {
	// "name" is an analyzed text field, so match on its analyzed terms and
	// keep only the hits whose stored name equals the query exactly.
	nameQuery := bleve.NewMatchQuery(name)
	nameQuery.SetField("name")
	q := bleve.NewConjunctionQuery(
		termQuery(docTypeSymbol, "type"),
		nameQuery,
	)
	syms, err := idx.searchSymbolDocs(q, 1<<16)
	if err != nil {
		return nil, err
	}
	exact := syms[:0]
	for _, s := range syms {
		if s.Name == name {
			exact = append(exact, s)
		}
	}
	sort.Slice(exact, func(i, j int) bool { return exact[i].ID < exact[j].ID })
	return exact, nil
}

// FindSymbolByModulePath returns the symbol whose module_path exactly
// matches path, used by the resolver's module-local/sibling-module/global
// scope layers (spec.md §4.3).
func (idx *DocumentIndex) FindSymbolByModulePath(path string) (*types.Symbol, bool) {
	q := bleve.NewConjunctionQuery(
		termQuery(docTypeSymbol, "type"),
		termQuery(path, "module_path"),
	)
	syms, err := idx.searchSymbolDocs(q, 1)
	if err != nil || len(syms) == 0 {
		return nil, false
	}
	return syms[0], true
}

// FindSymbolsByFile returns every symbol recorded against path.
func (idx *DocumentIndex) FindSymbolsByFile(path string) ([]*types.Symbol, error) {
	q := bleve.NewConjunctionQuery(
		termQuery(docTypeSymbol, "type"),
		termQuery(path, "file_path"),
	)
	return idx.searchSymbolDocs(q, 1<<16)
}

func (idx *DocumentIndex) searchSymbolDocs(q bleve.Query, size int) ([]*types.Symbol, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	req.Fields = []string{"*"}
	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, coderr.NewIOError(err, "searching symbols")
	}
	out := make([]*types.Symbol, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, symbolFromDoc(symbolDocFromFields(hit.Fields)))
	}
	return out, nil
}

// CallsOf returns the outgoing RelCalls edges from id (spec.md §4.2
// get_calls).
func (idx *DocumentIndex) CallsOf(id types.SymbolID) []types.Relationship {
	return idx.graph.outgoingOf(id, types.RelCalls)
}

// CallersOf returns the incoming RelCalls edges into id (spec.md §4.2
// find_callers).
func (idx *DocumentIndex) CallersOf(id types.SymbolID) []types.Relationship {
	return idx.graph.incomingOf(id, types.RelCalls)
}

// ImplementorsOf returns the incoming RelImplements edges into a trait
// symbol.
func (idx *DocumentIndex) ImplementorsOf(id types.SymbolID) []types.Relationship {
	return idx.graph.incomingOf(id, types.RelImplements)
}

// UsersOf returns the incoming RelUses edges into id: every symbol that
// references id as a type (a field, parameter, or return type), used by
// impact analysis alongside CallersOf and ImplementorsOf.
func (idx *DocumentIndex) UsersOf(id types.SymbolID) []types.Relationship {
	return idx.graph.incomingOf(id, types.RelUses)
}

// DefinesOf returns the outgoing RelDefines edges from id: the trait
// method signatures, struct methods, or enum variants a container
// defines (spec.md §4.2 find_defines).
func (idx *DocumentIndex) DefinesOf(id types.SymbolID) []types.Relationship {
	return idx.graph.outgoingOf(id, types.RelDefines)
}

// DependenciesOf returns the outgoing RelCalls, RelUses, and RelImplements
// edges from id: everything id directly calls, references as a type, or
// implements, as opposed to AnalyzeImpact's incoming-edge closure of
// everything that depends on id.
func (idx *DocumentIndex) DependenciesOf(id types.SymbolID) []types.Relationship {
	return idx.graph.outgoingOf(id, types.RelCalls, types.RelUses, types.RelImplements)
}

// SearchHit is one fielded full-text result (spec.md §4.2 search).
type SearchHit struct {
	Symbol *types.Symbol
	Score  float64
}

// SearchOptions narrows a text search to specific symbol kinds or a module
// path prefix; zero value searches everything.
type SearchOptions struct {
	Kind       types.SymbolKind
	KindSet    bool
	ModulePath string
	Limit      int
}

// Search runs a full-text query across name/doc_comment/signature,
// optionally filtered by kind and/or module_path prefix.
func (idx *DocumentIndex) Search(query string, opts SearchOptions) ([]SearchHit, error) {
	textQuery := bleve.NewQueryStringQuery(query)
	conjuncts := []bleve.Query{termQuery(docTypeSymbol, "type"), textQuery}
	if opts.KindSet {
		conjuncts = append(conjuncts, termQuery(opts.Kind.String(), "kind"))
	}
	if opts.ModulePath != "" {
		prefix := bleve.NewPrefixQuery(opts.ModulePath)
		prefix.SetField("module_path")
		conjuncts = append(conjuncts, prefix)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = limit
	req.Fields = []string{"*"}
	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, coderr.NewIOError(err, "full-text search")
	}
	hits := make([]SearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, SearchHit{
			Symbol: symbolFromDoc(symbolDocFromFields(hit.Fields)),
			Score:  hit.Score,
		})
	}
	return hits, nil
}
