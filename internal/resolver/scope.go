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

	"github.com/bartolli/codanna/internal/storage"
	"github.com/bartolli/codanna/internal/types"
)

// symbolLookup is the subset of *storage.DocumentIndex the scope stack
// needs; kept as an interface so tests can substitute an in-memory fake
// instead of standing up a real bleve index.
type symbolLookup interface {
	FindSymbol(id types.SymbolID) (*types.Symbol, bool)
	FindSymbolsByName(name string) ([]*types.Symbol, error)
	FindSymbolByModulePath(path string) (*types.Symbol, bool)
}

var _ symbolLookup = (*storage.DocumentIndex)(nil)

// ResolutionContext is built fresh per file and searches its five layers
// in order (spec.md §4.3): local scope, imports, module-local symbols,
// sibling-module symbols, then the global prelude.
type ResolutionContext struct {
	idx        symbolLookup
	registry   *ImportRegistry
	fileID     types.FileID
	modulePath string
	localScope map[string]types.SymbolID
}

func NewResolutionContext(idx symbolLookup, registry *ImportRegistry, fileID types.FileID, localScope map[string]types.SymbolID) *ResolutionContext {
	return &ResolutionContext{
		idx:        idx,
		registry:   registry,
		fileID:     fileID,
		modulePath: registry.ModulePath(fileID),
		localScope: localScope,
	}
}

// Resolve looks up a bare or qualified name through the five scope layers,
// in priority order, returning the first match. A qualified path
// ("A::B::C") is resolved by descending module_path matches (spec.md §4.3
// step 5).
func (rc *ResolutionContext) Resolve(name string) (*types.Symbol, bool) {
	if strings.Contains(name, "::") {
		return rc.resolveQualified(name)
	}

	// 1. Local scope.
	if id, ok := rc.localScope[name]; ok {
		if sym, found := rc.idx.FindSymbol(id); found {
			return sym, true
		}
	}

	// 2. Imported names.
	if qualified, ok := rc.registry.resolveImportedPath(rc.fileID, name); ok {
		if sym, found := rc.idx.FindSymbolByModulePath(qualified); found {
			return sym, true
		}
	}

	// 3. Module-local symbols (same module_path as the calling file).
	if rc.modulePath != "" {
		if sym, found := rc.idx.FindSymbolByModulePath(joinModule(rc.modulePath, name)); found {
			return sym, true
		}
	}

	// 4. Sibling-module symbols via super::/self:: — try the parent module;
	// the current module's children are not searched.
	if parent := parentModule(rc.modulePath); parent != "" {
		if sym, found := rc.idx.FindSymbolByModulePath(joinModule(parent, name)); found {
			return sym, true
		}
	}

	// 5. Global prelude: search by bare name across the whole index and
	// keep only public candidates, tie-broken same-module > imported > global
	// (imported/module cases already returned above, so anything reaching
	// here is a last-resort global lookup).
	candidates, err := rc.idx.FindSymbolsByName(name)
	if err != nil || len(candidates) == 0 {
		return nil, false
	}
	var public []*types.Symbol
	for _, c := range candidates {
		if c.Visibility.Exported() {
			public = append(public, c)
		}
	}
	if len(public) == 1 {
		return public[0], true
	}
	// Ambiguous or zero exported candidates: spec.md §4.3 says leave
	// unresolved rather than guess.
	return nil, false
}

func (rc *ResolutionContext) resolveQualified(path string) (*types.Symbol, bool) {
	head, rest, hasRest := strings.Cut(path, "::")
	switch head {
	case "self":
		if hasRest {
			return rc.Resolve(joinModule(rc.modulePath, rest))
		}
	case "super":
		if hasRest {
			return rc.Resolve(joinModule(parentModule(rc.modulePath), rest))
		}
	case "crate":
		if hasRest {
			if sym, ok := rc.idx.FindSymbolByModulePath(rest); ok {
				return sym, true
			}
		}
	}
	if sym, ok := rc.idx.FindSymbolByModulePath(path); ok {
		return sym, true
	}
	if qualified, ok := rc.registry.resolveImportedPath(rc.fileID, path); ok {
		if sym, ok := rc.idx.FindSymbolByModulePath(qualified); ok {
			return sym, true
		}
	}
	return nil, false
}

func joinModule(modulePath, name string) string {
	if modulePath == "" {
		return name
	}
	return modulePath + "::" + name
}
