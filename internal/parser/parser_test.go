// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"testing"

	"github.com/bartolli/codanna/internal/types"
)

func symbolNamed(t *testing.T, result *ParseResult, name string) *types.Symbol {
	t.Helper()
	for i := range result.Symbols {
		if result.Symbols[i].Name == name {
			return &result.Symbols[i]
		}
	}
	t.Fatalf("no symbol named %q in %+v", name, result.Symbols)
	return nil
}

func TestParseFunctionSignatureExcludesBody(t *testing.T) {
	src := []byte(`
/// Adds two numbers.
pub fn add(a: i32, b: i32) -> i32 {
    a + b
}
`)
	p := NewRustParser()
	result, err := p.Parse(src, 1, "src/lib.rs", "")
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}

	sym := symbolNamed(t, result, "add")
	if sym.Kind != types.KindFunction {
		t.Errorf("Kind = %v, want KindFunction", sym.Kind)
	}
	if sym.Visibility.Kind != types.VisPublic {
		t.Errorf("Visibility = %v, want VisPublic", sym.Visibility)
	}
	if sym.DocComment != "Adds two numbers." {
		t.Errorf("DocComment = %q, want %q", sym.DocComment, "Adds two numbers.")
	}
	if sym.Signature != "pub fn add(a: i32, b: i32) -> i32" {
		t.Errorf("Signature = %q, want the declaration without the body", sym.Signature)
	}

	var usesReturn bool
	for _, u := range result.Uses {
		if u.Container == "add" && u.UsedType == "i32" {
			usesReturn = true
		}
	}
	if !usesReturn {
		t.Errorf("Uses = %+v, want an i32 return-type edge for add", result.Uses)
	}
}

func TestParseStructFieldsYieldDefinesAndUses(t *testing.T) {
	src := []byte(`
pub struct Widget {
    pub name: String,
    count: i32,
}
`)
	p := NewRustParser()
	result, err := p.Parse(src, 1, "src/widget.rs", "")
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}

	symbolNamed(t, result, "Widget")
	nameField := symbolNamed(t, result, "name")
	if nameField.Kind != types.KindField {
		t.Errorf("name field Kind = %v, want KindField", nameField.Kind)
	}

	wantDefines := map[string]bool{"name": false, "count": false}
	for _, d := range result.Defines {
		if d.Container == "Widget" {
			if _, ok := wantDefines[d.MemberName]; ok {
				wantDefines[d.MemberName] = true
			}
		}
	}
	for member, found := range wantDefines {
		if !found {
			t.Errorf("Defines missing Widget -> %s", member)
		}
	}
}

func TestParseImplAndTraitProducesDefinesAndMethodSymbol(t *testing.T) {
	src := []byte(`
trait Greeter {
    fn greet(&self) -> String;
}

struct Bot;

impl Greeter for Bot {
    fn greet(&self) -> String {
        String::from("hi")
    }
}
`)
	p := NewRustParser()
	result, err := p.Parse(src, 1, "src/bot.rs", "")
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}

	symbolNamed(t, result, "Greeter")
	symbolNamed(t, result, "Bot")
	greetMethod := symbolNamed(t, result, "greet")
	if greetMethod.Kind != types.KindMethod {
		t.Errorf("greet Kind = %v, want KindMethod", greetMethod.Kind)
	}
	if greetMethod.ReceiverType != "Bot" {
		t.Errorf("greet ReceiverType = %q, want %q", greetMethod.ReceiverType, "Bot")
	}

	var implemented bool
	for _, impl := range result.Implements {
		if impl.ImplType == "Bot" && impl.TraitName == "Greeter" {
			implemented = true
		}
	}
	if !implemented {
		t.Errorf("Implements = %+v, want Bot implements Greeter", result.Implements)
	}

	var defined bool
	for _, d := range result.Defines {
		if d.Container == "Bot" && d.MemberName == "greet" {
			defined = true
		}
	}
	if !defined {
		t.Errorf("Defines = %+v, want Bot -> greet", result.Defines)
	}
}

func TestParseCallSiteRecordsCallerAndCallee(t *testing.T) {
	src := []byte(`
fn helper() {}

fn run() {
    helper();
}
`)
	p := NewRustParser()
	result, err := p.Parse(src, 1, "src/lib.rs", "")
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}

	var found bool
	for _, c := range result.Calls {
		if c.CallerName == "run" && c.CalleeExpr == "helper" {
			found = true
		}
	}
	if !found {
		t.Errorf("Calls = %+v, want run -> helper", result.Calls)
	}
}

func TestSymbolContentHashStableUnderBodyEdit(t *testing.T) {
	p := NewRustParser()
	a, err := p.Parse([]byte("fn f() -> i32 { 1 }"), 1, "src/lib.rs", "")
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}
	b, err := p.Parse([]byte("fn f() -> i32 { 2 + 2 }"), 1, "src/lib.rs", "")
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}

	symA := symbolNamed(t, a, "f")
	symB := symbolNamed(t, b, "f")
	if symA.ContentHash != symB.ContentHash {
		t.Errorf("ContentHash differs across a body-only edit: %x vs %x", symA.ContentHash, symB.ContentHash)
	}
}
