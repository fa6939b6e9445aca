// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import (
	"path/filepath"
	"testing"

	"github.com/bartolli/codanna/internal/parser"
	"github.com/bartolli/codanna/internal/storage"
	"github.com/bartolli/codanna/internal/types"
)

// seedTraitIndex builds a storage.DocumentIndex containing a Greeter trait
// with a greet method, a Bot struct implementing Greeter that also defines
// its own inherent greet, and a run function holding a Bot-typed variable
// that calls bot.greet(). Inherent methods must win dispatch over trait
// methods of the same name (spec.md §4.3).
func seedTraitIndex(t *testing.T) (*storage.DocumentIndex, types.FileID, types.SymbolID, types.SymbolID, types.SymbolID, types.SymbolID) {
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

	greeterTrait := &types.Symbol{Name: "Greeter", Kind: types.KindTrait, FileID: fileID, ModulePath: "Greeter", Visibility: types.Visibility{Kind: types.VisPublic}}
	traitGreet := &types.Symbol{Name: "greet", Kind: types.KindFunction, FileID: fileID, ModulePath: "Greeter::greet", Visibility: types.Visibility{Kind: types.VisPublic}}
	botType := &types.Symbol{Name: "Bot", Kind: types.KindStruct, FileID: fileID, ModulePath: "Bot", Visibility: types.Visibility{Kind: types.VisPublic}}
	botGreet := &types.Symbol{Name: "greet", Kind: types.KindFunction, FileID: fileID, ModulePath: "Bot::greet", Visibility: types.Visibility{Kind: types.VisPublic}, ReceiverType: "Bot"}
	runFn := &types.Symbol{Name: "run", Kind: types.KindFunction, FileID: fileID, ModulePath: "run", Visibility: types.Visibility{Kind: types.VisPublic}}

	for _, s := range []*types.Symbol{greeterTrait, traitGreet, botType, botGreet, runFn} {
		if err := bw.StoreSymbol(s); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := bw.Commit(); err != nil {
		t.Fatalf("Commit() = %v, want nil", err)
	}

	return idx, fileID, greeterTrait.ID, botType.ID, botGreet.ID, runFn.ID
}

func TestResolverResolveInherentBeatsTraitDispatch(t *testing.T) {
	idx, fileID, _, _, botGreetID, runID := seedTraitIndex(t)

	fp := FileParse{
		FileID:     fileID,
		ModulePath: "",
		Result: &parser.ParseResult{
			Defines: []types.DefinesEdge{
				{Container: "Greeter", MemberName: "greet"},
				{Container: "Bot", MemberName: "greet"},
			},
			Implements: []types.ImplementsEdge{
				{ImplType: "Bot", TraitName: "Greeter"},
			},
			VariableTypes: []types.VariableType{
				{VariableName: "bot", TypeName: "Bot"},
			},
			Calls: []types.CallSite{
				{CallerName: "run", CalleeExpr: "bot.greet", Line: 10},
			},
		},
	}

	r := New(idx)
	rels := r.Resolve([]FileParse{fp})

	var callEdge *types.Relationship
	for i := range rels {
		if rels[i].Kind == types.RelCalls {
			callEdge = &rels[i]
		}
	}
	if callEdge == nil {
		t.Fatalf("Resolve() produced no RelCalls edge, rels=%+v", rels)
	}
	if callEdge.From != runID {
		t.Errorf("call edge From = %v, want run (%v)", callEdge.From, runID)
	}
	if callEdge.To != botGreetID {
		t.Errorf("call edge To = %v, want Bot's inherent greet (%v), not the trait's", callEdge.To, botGreetID)
	}
}

func TestResolverResolveDropsUnresolvableCallsSilently(t *testing.T) {
	idx, fileID, _, _, _, _ := seedTraitIndex(t)

	fp := FileParse{
		FileID: fileID,
		Result: &parser.ParseResult{
			Calls: []types.CallSite{
				{CallerName: "run", CalleeExpr: "ghost.vanish", Line: 1},
			},
		},
	}

	r := New(idx)
	rels := r.Resolve([]FileParse{fp})
	for _, rel := range rels {
		if rel.Kind == types.RelCalls {
			t.Errorf("Resolve() produced a RelCalls edge for an unresolvable callee: %+v", rel)
		}
	}
}
