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

package resolver

import (
	"strings"

	"github.com/bartolli/codanna/internal/parser"
	"github.com/bartolli/codanna/internal/storage"
	"github.com/bartolli/codanna/internal/types"
)

// FileParse bundles one file's parse output with the identity the resolver
// needs to place it in module-path scope.
type FileParse struct {
	FileID     types.FileID
	ModulePath string
	Result     *parser.ParseResult
}

// Resolver runs the second pass of the two-phase commit (spec.md §9):
// symbols for every file in a batch are already durable by the time
// Resolve runs, so cross-file references always see their targets.
type Resolver struct {
	idx        *storage.DocumentIndex
	registry   *ImportRegistry
	dispatcher *TraitDispatcher
}

func New(idx *storage.DocumentIndex) *Resolver {
	return &Resolver{
		idx:        idx,
		registry:   NewImportRegistry(),
		dispatcher: NewTraitDispatcher(),
	}
}

// Resolve turns every file's raw parser output into committed-ready
// Relationships. Unresolvable references are dropped, never errored,
// matching spec.md §4.3's failure semantics.
func (r *Resolver) Resolve(batch []FileParse) []types.Relationship {
	for _, fp := range batch {
		r.registry.SetFile(fp.FileID, fp.ModulePath, fp.Result.Imports)
	}

	var rels []types.Relationship
	for _, fp := range batch {
		ctx := NewResolutionContext(r.idx, r.registry, fp.FileID, nil)
		rels = append(rels, r.resolveDefines(ctx, fp)...)
		rels = append(rels, r.resolveImplements(ctx, fp)...)
	}
	// Implements/Defines must be fully indexed into the dispatcher before
	// any file's calls are resolved, since a call in file A may dispatch
	// through a trait implemented in file B.
	for _, fp := range batch {
		ctx := NewResolutionContext(r.idx, r.registry, fp.FileID, nil)
		rels = append(rels, r.resolveUses(ctx, fp)...)
		rels = append(rels, r.resolveCalls(ctx, fp)...)
	}
	return rels
}

func (r *Resolver) resolveDefines(ctx *ResolutionContext, fp FileParse) []types.Relationship {
	var rels []types.Relationship
	for _, d := range fp.Result.Defines {
		containerSym, ok := ctx.Resolve(d.Container)
		if !ok {
			continue
		}
		memberSym, ok := r.idx.FindSymbolByModulePath(joinModule(containerSym.ModulePath, d.MemberName))
		if !ok {
			continue
		}
		rels = append(rels, types.Relationship{
			From: containerSym.ID, To: memberSym.ID, Kind: types.RelDefines, Weight: types.DefaultWeight,
		})
		if containerSym.Kind == types.KindTrait {
			r.dispatcher.AddTraitMethod(containerSym.Name, d.MemberName, memberSym.ID)
		} else {
			r.dispatcher.AddInherentMethod(containerSym.Name, d.MemberName, memberSym.ID)
		}
	}
	return rels
}

func (r *Resolver) resolveImplements(ctx *ResolutionContext, fp FileParse) []types.Relationship {
	var rels []types.Relationship
	for _, impl := range fp.Result.Implements {
		implSym, ok1 := ctx.Resolve(impl.ImplType)
		traitSym, ok2 := ctx.Resolve(impl.TraitName)
		if !ok1 || !ok2 {
			continue
		}
		rels = append(rels, types.Relationship{
			From: implSym.ID, To: traitSym.ID, Kind: types.RelImplements, Weight: types.DefaultWeight,
		})
		r.dispatcher.AddImplementation(implSym.Name, traitSym.Name)
	}
	return rels
}

func (r *Resolver) resolveUses(ctx *ResolutionContext, fp FileParse) []types.Relationship {
	var rels []types.Relationship
	for _, u := range fp.Result.Uses {
		containerSym, ok1 := ctx.Resolve(u.Container)
		usedSym, ok2 := ctx.Resolve(u.UsedType)
		if !ok1 || !ok2 || containerSym.ID == usedSym.ID {
			continue
		}
		rels = append(rels, types.Relationship{
			From: containerSym.ID, To: usedSym.ID, Kind: types.RelUses, Weight: types.DefaultWeight,
		})
	}
	return rels
}

func (r *Resolver) resolveCalls(ctx *ResolutionContext, fp FileParse) []types.Relationship {
	varTypes := make(map[string]string, len(fp.Result.VariableTypes))
	for _, vt := range fp.Result.VariableTypes {
		varTypes[vt.VariableName] = vt.TypeName
	}

	var rels []types.Relationship
	for _, call := range fp.Result.Calls {
		callerSym, ok := ctx.Resolve(call.CallerName)
		if !ok {
			continue
		}
		if callerSym.ReceiverType != "" {
			varTypes["self"] = callerSym.ReceiverType
		}

		calleeSym, hint, ok := r.resolveCallee(ctx, call.CalleeExpr, varTypes)
		if !ok {
			continue
		}
		// Self-recursive calls are valid edges: spec.md §9 requires impact
		// analysis to treat them as terminal, not for the resolver to drop
		// them.
		rels = append(rels, types.Relationship{
			From:   callerSym.ID,
			To:     calleeSym.ID,
			Kind:   types.RelCalls,
			Weight: types.DefaultWeight,
			Metadata: types.RelationshipMetadata{
				CallSiteLine: call.Line,
				ReceiverHint: hint,
			},
		})
	}
	return rels
}

// resolveCallee implements spec.md §4.3's per-call algorithm: receiver
// lookup + trait dispatch first, scope-stack fallback second, qualified
// path descent third.
func (r *Resolver) resolveCallee(ctx *ResolutionContext, calleeExpr string, varTypes map[string]string) (*types.Symbol, string, bool) {
	if strings.Contains(calleeExpr, ".") {
		parts := strings.Split(calleeExpr, ".")
		receiverVar := parts[0]
		method := parts[len(parts)-1]
		if typeName, ok := varTypes[receiverVar]; ok {
			typeName = baseTypeName(typeName)
			if id, ok := r.dispatcher.Dispatch(typeName, method); ok {
				if sym, found := r.idx.FindSymbol(id); found {
					return sym, typeName, true
				}
			}
		}
		// No known receiver type: fall back to resolving the bare method
		// name through the scope stack rather than guessing.
		if sym, ok := ctx.Resolve(method); ok {
			return sym, "", true
		}
		return nil, "", false
	}

	if strings.Contains(calleeExpr, "::") {
		if sym, ok := ctx.Resolve(calleeExpr); ok {
			return sym, "", true
		}
		return nil, "", false
	}

	if sym, ok := ctx.Resolve(calleeExpr); ok {
		return sym, "", true
	}
	return nil, "", false
}

func baseTypeName(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, "&")
	t = strings.TrimPrefix(t, "mut ")
	t = strings.TrimSpace(t)
	if idx := strings.IndexAny(t, "<("); idx != -1 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}
