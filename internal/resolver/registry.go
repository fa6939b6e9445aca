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

// Package resolver maps textual references observed by the parsing layer
// to concrete SymbolIDs, respecting Rust's scoping and visibility rules
// (spec.md §4.3). It composes an import registry, a per-file scope stack,
// and a trait dispatcher, generalizing the teacher's CallResolver
// (pkg/ingestion/resolver.go) — built for Go's import-path packages and
// structural interfaces — to Rust's module-path crate layout and explicit
// `impl Trait for Type` relationships.
package resolver

import (
	"strings"

	"github.com/bartolli/codanna/internal/types"
)

// ImportRegistry stores, per file, the list of imports and the file's own
// module path (the crate-relative path its symbols are nested under).
type ImportRegistry struct {
	importsByFile     map[types.FileID][]types.Import
	modulePathByFile   map[types.FileID]string
}

func NewImportRegistry() *ImportRegistry {
	return &ImportRegistry{
		importsByFile:    make(map[types.FileID][]types.Import),
		modulePathByFile: make(map[types.FileID]string),
	}
}

func (r *ImportRegistry) SetFile(fileID types.FileID, modulePath string, imports []types.Import) {
	r.modulePathByFile[fileID] = modulePath
	r.importsByFile[fileID] = imports
}

func (r *ImportRegistry) ModulePath(fileID types.FileID) string {
	return r.modulePathByFile[fileID]
}

func (r *ImportRegistry) Imports(fileID types.FileID) []types.Import {
	return r.importsByFile[fileID]
}

// resolveImportedPath finds the fully-qualified path a bare name refers to
// via this file's imports — either an exact alias/name match, or (for a
// qualified reference "name::rest") a match on the import's leading
// segment, with the remainder appended back on.
func (r *ImportRegistry) resolveImportedPath(fileID types.FileID, ref string) (string, bool) {
	head, rest, hasRest := strings.Cut(ref, "::")
	for _, imp := range r.importsByFile[fileID] {
		name := imp.Alias
		if name == "" {
			name = lastSegment(imp.Path)
		}
		if name == head {
			if hasRest {
				return imp.Path + "::" + rest, true
			}
			return imp.Path, true
		}
	}
	// Glob imports: "use foo::*" makes every name under foo::* resolvable
	// without individual entries. Only the file's first glob import is used
	// as the prefix; later glob imports are not tried.
	for _, imp := range r.importsByFile[fileID] {
		if imp.IsGlob {
			return imp.Path + "::" + ref, true
		}
	}
	return "", false
}

func lastSegment(path string) string {
	if idx := strings.LastIndex(path, "::"); idx != -1 {
		return path[idx+2:]
	}
	return path
}

// parentModule returns the module path one level up, used for `super::`
// sibling-module resolution. Returns "" at the crate root.
func parentModule(modulePath string) string {
	idx := strings.LastIndex(modulePath, "::")
	if idx == -1 {
		return ""
	}
	return modulePath[:idx]
}
