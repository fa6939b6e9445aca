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

// Package sigparse provides Rust function signature parsing utilities. It
// is a dependency-free package importable by both internal/indexer (for
// trait-object parameter dispatch at index time) and internal/tools (for
// find_by_signature-style query-time filtering), mirroring the teacher's
// pkg/sigparse, rewritten for Rust's "name: Type" parameter syntax, "&self"
// receivers, and generic/lifetime type annotations instead of Go's.
package sigparse

import "strings"

// ParamInfo holds a parsed parameter's name and base type.
type ParamInfo struct {
	Name string // parameter name (e.g., "handle")
	Type string // base type name without references, lifetimes, or generic args
}

// ParseRustParams parses a Rust function signature string and returns each
// non-receiver parameter's name and base type.
//
// It handles:
//   - Simple params: "name: &str, count: usize"
//   - Reference types: "&Cache" → "Cache", "&mut Cache" → "Cache"
//   - Lifetimes: "&'a str" → "str"
//   - Generic wrappers: "Vec<Entry>" → "Vec", "Option<Box<T>>" → "Option"
//   - Qualified paths: "std::io::Error" → "Error"
//   - Receivers: "&self", "&mut self", "self", "self: Rc<Self>" → excluded
//
// The signature should be a full function signature string, e.g.
// "fn lookup(&self, key: &str, hint: Option<&Entry>) -> Option<Entry>".
func ParseRustParams(signature string) []ParamInfo {
	if signature == "" {
		return nil
	}
	paramStr := ExtractParamString(signature)
	if paramStr == "" {
		return nil
	}

	var params []ParamInfo
	for _, part := range splitAtTopLevelCommas(paramStr) {
		p := strings.TrimSpace(part)
		if p == "" || isSelfParam(p) {
			continue
		}
		colon := strings.IndexByte(p, ':')
		if colon == -1 {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p[:colon]), "mut "))
		typ := NormalizeType(p[colon+1:])
		if name == "" || typ == "" {
			continue
		}
		params = append(params, ParamInfo{Name: name, Type: typ})
	}
	return params
}

// ExtractParamString extracts the parameter list from a Rust function
// signature. Given "fn lookup<T>(&self, key: &str) -> T", returns
// "&self, key: &str".
func ExtractParamString(sig string) string {
	idx := strings.Index(sig, "fn ")
	nameStart := idx + 2
	if idx == -1 {
		idx = strings.Index(sig, "fn(")
		if idx == -1 {
			return ""
		}
		nameStart = idx + 2 // lands directly on '(': no name to skip past
	}
	pos := skipSpace(sig, nameStart)

	for pos < len(sig) && sig[pos] != '(' && sig[pos] != '<' {
		pos++
	}
	if pos < len(sig) && sig[pos] == '<' {
		end := findMatching(sig, pos, '<', '>')
		if end == -1 {
			return ""
		}
		pos = skipSpace(sig, end+1)
	}
	if pos >= len(sig) || sig[pos] != '(' {
		return ""
	}
	end := findMatching(sig, pos, '(', ')')
	if end == -1 {
		return ""
	}
	return sig[pos+1 : end]
}

// ExtractReturnType extracts the "-> Type" tail of a Rust function
// signature, or "" for a unit-returning (no "->") function. Kept in
// sigparse rather than the tools layer (unlike the teacher's
// extractReturnPart in pkg/tools/search.go) since a Rust return clause has
// no receiver-paren ambiguity to resolve, making it a pure string op.
func ExtractReturnType(sig string) string {
	paramStr := ExtractParamString(sig)
	afterParams := sig
	if paramStr != "" {
		if idx := strings.Index(sig, paramStr); idx != -1 {
			afterParams = sig[idx+len(paramStr):]
		}
	}
	arrow := strings.Index(afterParams, "->")
	if arrow == -1 {
		return ""
	}
	ret := strings.TrimSpace(afterParams[arrow+2:])
	if brace := strings.IndexByte(ret, '{'); brace != -1 {
		ret = strings.TrimSpace(ret[:brace])
	}
	if where := strings.Index(ret, "where "); where != -1 {
		ret = strings.TrimSpace(ret[:where])
	}
	return ret
}

// NormalizeType extracts the base type name from a Rust type expression.
//
//	"&Cache"            → "Cache"
//	"&mut Cache"         → "Cache"
//	"&'a str"            → "str"
//	"Vec<Entry>"         → "Vec"
//	"Option<Box<T>>"     → "Option"
//	"std::io::Error"     → "Error"
//	"dyn Trait + Send"   → "Trait"
func NormalizeType(t string) string {
	t = strings.TrimSpace(t)
	for {
		switch {
		case strings.HasPrefix(t, "&"):
			t = strings.TrimSpace(t[1:])
		case strings.HasPrefix(t, "mut "):
			t = strings.TrimSpace(t[4:])
		case strings.HasPrefix(t, "dyn "):
			t = strings.TrimSpace(t[4:])
		case strings.HasPrefix(t, "impl "):
			t = strings.TrimSpace(t[5:])
		case strings.HasPrefix(t, "'"):
			sp := strings.IndexByte(t, ' ')
			if sp == -1 {
				return t
			}
			t = strings.TrimSpace(t[sp+1:])
		default:
			goto done
		}
	}
done:
	if plus := strings.IndexByte(t, '+'); plus != -1 {
		t = strings.TrimSpace(t[:plus])
	}
	if lt := strings.IndexByte(t, '<'); lt != -1 {
		t = t[:lt]
	}
	if dot := strings.LastIndex(t, "::"); dot != -1 {
		t = t[dot+2:]
	}
	return strings.TrimSpace(t)
}

func isSelfParam(p string) bool {
	p = NormalizeType(p)
	return p == "self" || strings.HasPrefix(p, "self:") || strings.HasPrefix(p, "self ")
}

func findMatching(s string, pos int, open, close byte) int {
	depth := 0
	for i := pos; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '<', '[':
			depth++
		case ')', '>', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t' || s[pos] == '\n') {
		pos++
	}
	return pos
}
