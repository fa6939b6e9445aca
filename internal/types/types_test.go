// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package types

import "testing"

func TestIDAllocatorNeverIssuesZero(t *testing.T) {
	a := NewIDAllocator(0)
	first := a.Next()
	if first == 0 {
		t.Fatalf("Next() = 0, want a non-zero first ID")
	}
	second := a.Next()
	if second != first+1 {
		t.Errorf("Next() = %d, want %d", second, first+1)
	}
	if a.Last() != second {
		t.Errorf("Last() = %d, want %d", a.Last(), second)
	}
}

func TestIDAllocatorResumesFromStartAt(t *testing.T) {
	a := NewIDAllocator(100)
	if got := a.Next(); got != 101 {
		t.Errorf("Next() = %d, want 101", got)
	}
}

func TestSymbolKindStringCoversAllKinds(t *testing.T) {
	tests := map[SymbolKind]string{
		KindFunction:  "function",
		KindMethod:    "method",
		KindStruct:    "struct",
		KindEnum:      "enum",
		KindTrait:     "trait",
		KindInterface: "interface",
		KindClass:     "class",
		KindModule:    "module",
		KindField:     "field",
		KindConstant:  "constant",
		KindVariable:  "variable",
		KindTypeAlias: "type_alias",
		KindParameter: "parameter",
		KindMacro:     "macro",
		SymbolKind(99): "other",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("SymbolKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestSymbolKindIsTypeLike(t *testing.T) {
	typeLike := []SymbolKind{KindStruct, KindEnum, KindTrait, KindInterface, KindClass, KindTypeAlias, KindModule}
	for _, k := range typeLike {
		if !k.IsTypeLike() {
			t.Errorf("%v.IsTypeLike() = false, want true", k)
		}
	}
	notTypeLike := []SymbolKind{KindFunction, KindMethod, KindField, KindConstant, KindVariable, KindParameter, KindMacro}
	for _, k := range notTypeLike {
		if k.IsTypeLike() {
			t.Errorf("%v.IsTypeLike() = true, want false", k)
		}
	}
}

func TestVisibilityStringAndExported(t *testing.T) {
	tests := []struct {
		v        Visibility
		wantStr  string
		wantExp  bool
	}{
		{Visibility{Kind: VisPrivate}, "private", false},
		{Visibility{Kind: VisPublic}, "public", true},
		{Visibility{Kind: VisPubCrate}, "pub(crate)", true},
		{Visibility{Kind: VisPubSuper}, "pub(super)", true},
		{Visibility{Kind: VisPubIn, Path: "crate::storage"}, "pub(in crate::storage)", true},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.wantStr {
			t.Errorf("%+v.String() = %q, want %q", tt.v, got, tt.wantStr)
		}
		if got := tt.v.Exported(); got != tt.wantExp {
			t.Errorf("%+v.Exported() = %v, want %v", tt.v, got, tt.wantExp)
		}
	}
}

func TestSymbolValidModulePath(t *testing.T) {
	tests := []struct {
		name string
		sym  Symbol
		want bool
	}{
		{"empty module path always valid", Symbol{Kind: KindStruct, Name: "Foo"}, true},
		{"non-type-like kind always valid", Symbol{Kind: KindFunction, Name: "foo", ModulePath: "crate::bar"}, true},
		{"type-like path ending in name", Symbol{Kind: KindStruct, Name: "Foo", ModulePath: "crate::storage::Foo"}, true},
		{"type-like path not ending in name", Symbol{Kind: KindStruct, Name: "Foo", ModulePath: "crate::storage::Bar"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sym.ValidModulePath(); got != tt.want {
				t.Errorf("ValidModulePath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRelationshipKindString(t *testing.T) {
	tests := map[RelationshipKind]string{
		RelCalls:            "calls",
		RelImplements:       "implements",
		RelUses:             "uses",
		RelDefines:          "defines",
		RelReferences:       "references",
		RelExtends:          "extends",
		RelationshipKind(99): "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("RelationshipKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestRelationshipIsSelfEdge(t *testing.T) {
	self := Relationship{From: 1, To: 1, Kind: RelCalls}
	if !self.IsSelfEdge() {
		t.Errorf("IsSelfEdge() = false, want true for From==To")
	}
	other := Relationship{From: 1, To: 2, Kind: RelCalls}
	if other.IsSelfEdge() {
		t.Errorf("IsSelfEdge() = true, want false for From!=To")
	}
}
