// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package sigparse

import "testing"

func TestParseRustParams_Basic(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		want      []ParamInfo
	}{
		{
			name:      "simple params",
			signature: "fn lookup(key: &str, count: usize) -> bool",
			want: []ParamInfo{
				{Name: "key", Type: "str"},
				{Name: "count", Type: "usize"},
			},
		},
		{
			name:      "mutable reference",
			signature: "fn push(&mut self, item: &mut Cache) -> ()",
			want: []ParamInfo{
				{Name: "item", Type: "Cache"},
			},
		},
		{
			name:      "lifetime",
			signature: "fn parse(input: &'a str) -> Option<Token>",
			want: []ParamInfo{
				{Name: "input", Type: "str"},
			},
		},
		{
			name:      "generic wrapper",
			signature: "fn wrap(entry: Vec<Entry>) -> Option<Box<T>>",
			want: []ParamInfo{
				{Name: "entry", Type: "Vec"},
			},
		},
		{
			name:      "qualified path",
			signature: "fn open(err: std::io::Error) -> ()",
			want: []ParamInfo{
				{Name: "err", Type: "Error"},
			},
		},
		{
			name:      "self receiver excluded",
			signature: "fn lookup(&self, key: &str) -> Option<Entry>",
			want: []ParamInfo{
				{Name: "key", Type: "str"},
			},
		},
		{
			name:      "self by value excluded",
			signature: "fn into_inner(self: Rc<Self>) -> Inner",
			want:      nil,
		},
		{
			name:      "dyn trait",
			signature: "fn handle(h: dyn Trait + Send) -> ()",
			want: []ParamInfo{
				{Name: "h", Type: "Trait"},
			},
		},
		{
			name:      "empty signature",
			signature: "",
			want:      nil,
		},
		{
			name:      "no params",
			signature: "fn ping() -> ()",
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRustParams(tt.signature)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseRustParams(%q) returned %d params, want %d: %+v", tt.signature, len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseRustParams(%q)[%d] = %+v, want %+v", tt.signature, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractReturnType(t *testing.T) {
	tests := []struct {
		signature string
		want      string
	}{
		{"fn ping() -> ()", "()"},
		{"fn lookup(&self, key: &str) -> Option<Entry>", "Option<Entry>"},
		{"fn noop()", ""},
		{"fn bounded<T>(v: T) -> T where T: Clone", "T"},
		{"fn body() -> i32 { 0 }", "i32"},
	}

	for _, tt := range tests {
		t.Run(tt.signature, func(t *testing.T) {
			got := ExtractReturnType(tt.signature)
			if got != tt.want {
				t.Errorf("ExtractReturnType(%q) = %q, want %q", tt.signature, got, tt.want)
			}
		})
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"&Cache", "Cache"},
		{"&mut Cache", "Cache"},
		{"&'a str", "str"},
		{"Vec<Entry>", "Vec"},
		{"Option<Box<T>>", "Option"},
		{"std::io::Error", "Error"},
		{"dyn Trait + Send", "Trait"},
		{"impl Iterator<Item = T>", "Iterator"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeType(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
