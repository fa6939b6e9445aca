// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import (
	"testing"

	"github.com/bartolli/codanna/internal/types"
)

// fakeLookup is a minimal symbolLookup for exercising ResolutionContext's
// five scope layers without standing up a real bleve index.
type fakeLookup struct {
	byID         map[types.SymbolID]*types.Symbol
	byModulePath map[string]*types.Symbol
	byName       map[string][]*types.Symbol
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		byID:         make(map[types.SymbolID]*types.Symbol),
		byModulePath: make(map[string]*types.Symbol),
		byName:       make(map[string][]*types.Symbol),
	}
}

func (f *fakeLookup) add(sym *types.Symbol) {
	f.byID[sym.ID] = sym
	if sym.ModulePath != "" {
		f.byModulePath[sym.ModulePath] = sym
	}
	f.byName[sym.Name] = append(f.byName[sym.Name], sym)
}

func (f *fakeLookup) FindSymbol(id types.SymbolID) (*types.Symbol, bool) {
	sym, ok := f.byID[id]
	return sym, ok
}

func (f *fakeLookup) FindSymbolsByName(name string) ([]*types.Symbol, error) {
	return f.byName[name], nil
}

func (f *fakeLookup) FindSymbolByModulePath(path string) (*types.Symbol, bool) {
	sym, ok := f.byModulePath[path]
	return sym, ok
}

func TestResolveLocalScopeBeatsGlobal(t *testing.T) {
	lookup := newFakeLookup()
	local := &types.Symbol{ID: 1, Name: "helper", Visibility: types.Visibility{Kind: types.VisPublic}}
	global := &types.Symbol{ID: 2, Name: "helper", Visibility: types.Visibility{Kind: types.VisPublic}}
	lookup.add(local)
	lookup.add(global)

	registry := NewImportRegistry()
	registry.SetFile(1, "crate::mod_a", nil)

	ctx := NewResolutionContext(lookup, registry, 1, map[string]types.SymbolID{"helper": 1})
	sym, ok := ctx.Resolve("helper")
	if !ok || sym.ID != 1 {
		t.Fatalf("Resolve(helper) = %+v, ok=%v; want local scope symbol ID 1", sym, ok)
	}
}

func TestResolveModuleLocalBeforeGlobal(t *testing.T) {
	lookup := newFakeLookup()
	moduleLocal := &types.Symbol{ID: 1, Name: "parse", ModulePath: "crate::mod_a::parse", Visibility: types.Visibility{Kind: types.VisPublic}}
	lookup.add(moduleLocal)

	registry := NewImportRegistry()
	registry.SetFile(1, "crate::mod_a", nil)

	ctx := NewResolutionContext(lookup, registry, 1, nil)
	sym, ok := ctx.Resolve("parse")
	if !ok || sym.ID != 1 {
		t.Fatalf("Resolve(parse) = %+v, ok=%v; want module-local symbol", sym, ok)
	}
}

func TestResolveGlobalAmbiguousReturnsFalse(t *testing.T) {
	lookup := newFakeLookup()
	lookup.add(&types.Symbol{ID: 1, Name: "run", Visibility: types.Visibility{Kind: types.VisPublic}})
	lookup.add(&types.Symbol{ID: 2, Name: "run", Visibility: types.Visibility{Kind: types.VisPublic}})

	registry := NewImportRegistry()
	registry.SetFile(1, "crate::mod_a", nil)

	ctx := NewResolutionContext(lookup, registry, 1, nil)
	if _, ok := ctx.Resolve("run"); ok {
		t.Fatalf("Resolve(run) with two public candidates = ok, want unresolved (ambiguous)")
	}
}

func TestResolveGlobalSkipsPrivateCandidates(t *testing.T) {
	lookup := newFakeLookup()
	lookup.add(&types.Symbol{ID: 1, Name: "run", Visibility: types.Visibility{Kind: types.VisPrivate}})
	lookup.add(&types.Symbol{ID: 2, Name: "run", Visibility: types.Visibility{Kind: types.VisPublic}})

	registry := NewImportRegistry()
	registry.SetFile(1, "crate::mod_a", nil)

	ctx := NewResolutionContext(lookup, registry, 1, nil)
	sym, ok := ctx.Resolve("run")
	if !ok || sym.ID != 2 {
		t.Fatalf("Resolve(run) = %+v, ok=%v; want the single public candidate (ID 2)", sym, ok)
	}
}

func TestResolveQualifiedPathViaCrate(t *testing.T) {
	lookup := newFakeLookup()
	lookup.add(&types.Symbol{ID: 1, Name: "Store", ModulePath: "crate::storage::Store"})

	registry := NewImportRegistry()
	registry.SetFile(1, "crate::app", nil)

	ctx := NewResolutionContext(lookup, registry, 1, nil)
	sym, ok := ctx.Resolve("crate::storage::Store")
	if !ok || sym.ID != 1 {
		t.Fatalf("Resolve(crate::storage::Store) = %+v, ok=%v; want symbol ID 1", sym, ok)
	}
}

func TestResolveImportedAlias(t *testing.T) {
	lookup := newFakeLookup()
	lookup.add(&types.Symbol{ID: 1, Name: "Store", ModulePath: "crate::storage::Store"})

	registry := NewImportRegistry()
	registry.SetFile(1, "crate::app", []types.Import{
		{Path: "crate::storage::Store", Alias: "S", FileID: 1},
	})

	ctx := NewResolutionContext(lookup, registry, 1, nil)
	sym, ok := ctx.Resolve("S")
	if !ok || sym.ID != 1 {
		t.Fatalf("Resolve(S) via alias = %+v, ok=%v; want symbol ID 1", sym, ok)
	}
}
