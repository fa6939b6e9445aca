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

// Package parser converts source text into symbols, relationships, imports,
// and variable types without touching storage (spec.md §4.1). Rust is the
// reference language, parsed via go-tree-sitter's rust grammar; the pooling
// discipline (one sync.Pool per language, since sitter.Parser is not
// thread-safe) is grounded on the teacher's TreeSitterParser in
// parser_treesitter.go.
package parser

import (
	"context"
	"crypto/sha256"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/types"
)

// ParseResult is everything one file's parse pass yields, matching the
// four outputs the parsing layer's responsibility names: symbols,
// relationships (calls/implements/uses/defines, staged for the resolver),
// imports, and variable types.
type ParseResult struct {
	Symbols       []types.Symbol
	Calls         []types.CallSite
	Implements    []types.ImplementsEdge
	Uses          []types.UsesEdge
	Defines       []types.DefinesEdge
	Imports       []types.Import
	VariableTypes []types.VariableType
}

// RustParser parses Rust source via tree-sitter. Safe for concurrent use:
// each call borrows a *sitter.Parser from the pool and returns it when done.
type RustParser struct {
	pool sync.Pool
}

// NewRustParser constructs a parser with its own per-language parser pool.
func NewRustParser() *RustParser {
	p := &RustParser{}
	p.pool.New = func() any {
		sp := sitter.NewParser()
		sp.SetLanguage(rust.GetLanguage())
		return sp
	}
	return p
}

// Parse runs the full contract (parse_symbols + find_calls +
// find_implementations + find_uses + find_defines + find_imports +
// find_variable_types) over one file's source in a single AST walk, since
// all of them need the same parse tree. basePath is the file's own
// crate-relative module path (e.g. "storage::memory" for src/storage/memory.rs,
// "" for the crate root), computed by the indexer from the file's location
// and threaded through so every symbol's ModulePath is fully qualified.
func (p *RustParser) Parse(source []byte, fileID types.FileID, path string, basePath string) (*ParseResult, error) {
	sp, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		sp = sitter.NewParser()
		sp.SetLanguage(rust.GetLanguage())
	}
	defer p.pool.Put(sp)

	tree, err := sp.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, coderr.NewParseError(path, 0, err.Error())
	}
	defer tree.Close()

	root := tree.RootNode()
	w := &walker{source: source, fileID: fileID, path: path}
	w.walkModule(root, basePath)

	return &ParseResult{
		Symbols:       w.symbols,
		Calls:         w.calls,
		Implements:    w.implements,
		Uses:          w.uses,
		Defines:       w.defines,
		Imports:       w.imports,
		VariableTypes: w.variableTypes,
	}, nil
}

// SymbolContentHash produces the stable 32-byte digest spec.md §4.1
// requires: stable under whitespace/comment edits that do not touch the
// signature. Hashing name+kind+signature (rather than the raw byte range)
// gives that stability for free, since those three fields only change when
// the signature itself changes.
func SymbolContentHash(sym types.Symbol) [32]byte {
	h := sha256.New()
	h.Write([]byte(sym.Kind.String()))
	h.Write([]byte{0})
	h.Write([]byte(sym.Name))
	h.Write([]byte{0})
	h.Write([]byte(sym.Signature))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func nodeText(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(source)
}
