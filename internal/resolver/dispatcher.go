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

import "github.com/bartolli/codanna/internal/types"

// TraitDispatcher maps (receiver_type_name, method_name) to a SymbolID by
// consulting recorded Implements/Defines relationships. Inherent methods
// (defined directly on the type via an `impl Type` block) outrank trait
// methods reached through `impl Trait for Type`, generalizing the
// teacher's field/param interface dispatch (resolveInterfaceCallViaFields,
// resolveInterfaceCallViaParams in pkg/ingestion/resolver.go) from Go's
// structural interfaces to Rust's explicit trait implementations.
type TraitDispatcher struct {
	// inherent[typeName][method] = method symbol, from `impl Type { fn method(...) }`.
	inherent map[string]map[string]types.SymbolID
	// traitMethods[traitName][method] = method symbol, from the trait's own
	// default implementation or signature.
	traitMethods map[string]map[string]types.SymbolID
	// implementedBy[typeName] = set of trait names the type implements.
	implementedBy map[string]map[string]bool
}

func NewTraitDispatcher() *TraitDispatcher {
	return &TraitDispatcher{
		inherent:      make(map[string]map[string]types.SymbolID),
		traitMethods:  make(map[string]map[string]types.SymbolID),
		implementedBy: make(map[string]map[string]bool),
	}
}

// AddInherentMethod records a method defined directly on a type (an
// `impl Type` block without a trait).
func (d *TraitDispatcher) AddInherentMethod(typeName, method string, id types.SymbolID) {
	if d.inherent[typeName] == nil {
		d.inherent[typeName] = make(map[string]types.SymbolID)
	}
	d.inherent[typeName][method] = id
}

// AddTraitMethod records a method belonging to a trait's definition
// (default body or bare signature).
func (d *TraitDispatcher) AddTraitMethod(traitName, method string, id types.SymbolID) {
	if d.traitMethods[traitName] == nil {
		d.traitMethods[traitName] = make(map[string]types.SymbolID)
	}
	d.traitMethods[traitName][method] = id
}

// AddImplementation records that typeName implements traitName.
func (d *TraitDispatcher) AddImplementation(typeName, traitName string) {
	if d.implementedBy[typeName] == nil {
		d.implementedBy[typeName] = make(map[string]bool)
	}
	d.implementedBy[typeName][traitName] = true
}

// Dispatch resolves (receiverType, method). Per spec.md §4.3: inherent
// wins outright; otherwise, if exactly one implemented trait defines the
// method, that trait's definition is used; if more than one trait defines
// the same method name and the receiver type alone cannot disambiguate,
// resolution is left unresolved.
func (d *TraitDispatcher) Dispatch(receiverType, method string) (types.SymbolID, bool) {
	if methods, ok := d.inherent[receiverType]; ok {
		if id, ok := methods[method]; ok {
			return id, true
		}
	}

	traits := d.implementedBy[receiverType]
	if len(traits) == 0 {
		return 0, false
	}
	var found types.SymbolID
	matches := 0
	for traitName := range traits {
		if methods, ok := d.traitMethods[traitName]; ok {
			if id, ok := methods[method]; ok {
				found = id
				matches++
			}
		}
	}
	if matches == 1 {
		return found, true
	}
	return 0, false
}
