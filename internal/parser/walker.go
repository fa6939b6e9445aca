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

package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/bartolli/codanna/internal/types"
)

// walker performs one depth-first pass over a Rust parse tree, in the
// tree's natural left-to-right order, so every output slice comes out in
// file order per spec.md §4.1's invariant.
type walker struct {
	source []byte
	fileID types.FileID
	path   string

	symbols       []types.Symbol
	calls         []types.CallSite
	implements    []types.ImplementsEdge
	uses          []types.UsesEdge
	defines       []types.DefinesEdge
	imports       []types.Import
	variableTypes []types.VariableType
}

func (w *walker) text(n *sitter.Node) string { return nodeText(n, w.source) }

// walkModule walks one module body (the file root, or a `mod { ... }`
// block), threading modulePath down so nested items get a fully-qualified
// ModulePath (spec.md §3's module_path invariant).
func (w *walker) walkModule(node *sitter.Node, modulePath string) {
	if node == nil {
		return
	}
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		w.walkItem(node.Child(i), modulePath)
	}
}

func (w *walker) walkItem(node *sitter.Node, modulePath string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "function_item":
		w.handleFunction(node, modulePath, "")
	case "struct_item":
		w.handleStruct(node, modulePath)
	case "enum_item":
		w.handleEnum(node, modulePath)
	case "trait_item":
		w.handleTrait(node, modulePath)
	case "impl_item":
		w.handleImpl(node, modulePath)
	case "mod_item":
		w.handleMod(node, modulePath)
	case "use_declaration":
		w.handleUse(node)
	case "const_item", "static_item":
		w.handleConstOrStatic(node, modulePath)
	case "type_item":
		w.handleTypeAlias(node, modulePath)
	default:
		// Recurse into generic wrappers (e.g. attribute_item, source_file)
		// that hold items as children without being items themselves.
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if isItemLike(child) {
				w.walkItem(child, modulePath)
			}
		}
	}
}

func isItemLike(n *sitter.Node) bool {
	switch n.Type() {
	case "function_item", "struct_item", "enum_item", "trait_item", "impl_item",
		"mod_item", "use_declaration", "const_item", "static_item", "type_item",
		"attribute_item", "source_file":
		return true
	default:
		return false
	}
}

func joinPath(modulePath, name string) string {
	if modulePath == "" {
		return name
	}
	return modulePath + "::" + name
}

func (w *walker) visibilityOf(node *sitter.Node) types.Visibility {
	vis := node.ChildByFieldName("visibility")
	if vis == nil {
		// visibility_modifier isn't always a named field in the grammar;
		// fall back to scanning the first child.
		if node.ChildCount() > 0 && node.Child(0).Type() == "visibility_modifier" {
			vis = node.Child(0)
		}
	}
	if vis == nil {
		return types.Visibility{Kind: types.VisPrivate}
	}
	text := w.text(vis)
	switch {
	case text == "pub":
		return types.Visibility{Kind: types.VisPublic}
	case strings.HasPrefix(text, "pub(crate)"):
		return types.Visibility{Kind: types.VisPubCrate}
	case strings.HasPrefix(text, "pub(super)"):
		return types.Visibility{Kind: types.VisPubSuper}
	case strings.HasPrefix(text, "pub(in "):
		path := strings.TrimSuffix(strings.TrimPrefix(text, "pub(in "), ")")
		return types.Visibility{Kind: types.VisPubIn, Path: strings.TrimSpace(path)}
	default:
		return types.Visibility{Kind: types.VisPrivate}
	}
}

// docCommentAbove walks immediately preceding comment siblings and stops at
// the first non-comment sibling, per spec.md §4.1's invariant. Only
// `///`- and `/**`-style doc comments are collected; plain `//` / `/*` are
// ignored, matching rustdoc convention.
func (w *walker) docCommentAbove(node *sitter.Node) string {
	var lines []string
	sib := node.PrevSibling()
	for sib != nil && (sib.Type() == "line_comment" || sib.Type() == "block_comment") {
		text := w.text(sib)
		if trimmed, ok := stripDocMarker(text); ok {
			lines = append([]string{trimmed}, lines...)
		} else {
			break
		}
		sib = sib.PrevSibling()
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripDocMarker(comment string) (string, bool) {
	switch {
	case strings.HasPrefix(comment, "///"):
		return strings.TrimPrefix(comment, "///"), true
	case strings.HasPrefix(comment, "//!"):
		return strings.TrimPrefix(comment, "//!"), true
	case strings.HasPrefix(comment, "/**"):
		return strings.TrimSuffix(strings.TrimPrefix(comment, "/**"), "*/"), true
	case strings.HasPrefix(comment, "/*!"):
		return strings.TrimSuffix(strings.TrimPrefix(comment, "/*!"), "*/"), true
	default:
		return "", false
	}
}

func rangeOf(node *sitter.Node) types.Range {
	start := node.StartPoint()
	end := node.EndPoint()
	return types.Range{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column),
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column),
	}
}

func (w *walker) handleFunction(node *sitter.Node, modulePath, receiverType string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	kind := types.KindFunction
	if receiverType != "" {
		kind = types.KindMethod
	}

	sig := w.functionSignature(node)
	sym := types.Symbol{
		Name:         name,
		Kind:         kind,
		FileID:       w.fileID,
		Range:        rangeOf(node),
		Signature:    sig,
		DocComment:   w.docCommentAbove(node),
		ModulePath:   joinPath(modulePath, name),
		ReceiverType: receiverType,
		Visibility:   w.visibilityOf(node),
	}
	sym.ContentHash = SymbolContentHash(sym)
	w.symbols = append(w.symbols, sym)

	if receiverType != "" {
		w.defines = append(w.defines, types.DefinesEdge{Container: receiverType, MemberName: name})
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		w.collectParamTypes(params, name)
	}
	if retType := node.ChildByFieldName("return_type"); retType != nil {
		w.uses = append(w.uses, types.UsesEdge{Container: name, UsedType: baseTypeName(w.text(retType))})
	}

	if body := node.ChildByFieldName("body"); body != nil {
		w.walkFunctionBody(body, name)
	}
}

// functionSignature reconstructs the declaration up to (but excluding) the
// body, so edits inside the body never change symbol_content_hash.
func (w *walker) functionSignature(node *sitter.Node) string {
	body := node.ChildByFieldName("body")
	start := node.StartByte()
	var end uint32
	if body != nil {
		end = body.StartByte()
	} else {
		end = node.EndByte()
	}
	if int(end) > len(w.source) {
		end = uint32(len(w.source))
	}
	return strings.TrimSpace(string(w.source[start:end]))
}

func (w *walker) collectParamTypes(params *sitter.Node, funcName string) {
	for i := 0; i < int(params.ChildCount()); i++ {
		p := params.Child(i)
		switch p.Type() {
		case "self_parameter":
			continue
		case "parameter":
			patternNode := p.ChildByFieldName("pattern")
			typeNode := p.ChildByFieldName("type")
			if patternNode == nil || typeNode == nil {
				continue
			}
			typeName := w.text(typeNode)
			w.variableTypes = append(w.variableTypes, types.VariableType{
				VariableName: w.text(patternNode),
				TypeName:     typeName,
			})
			w.uses = append(w.uses, types.UsesEdge{Container: funcName, UsedType: baseTypeName(typeName)})
		}
	}
}

// baseTypeName strips references/generics to the root type name, e.g.
// "&mut Vec<String>" → "Vec", "Option<Foo>" → "Option".
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

func (w *walker) handleStruct(node *sitter.Node, modulePath string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	sym := types.Symbol{
		Name:       name,
		Kind:       types.KindStruct,
		FileID:     w.fileID,
		Range:      rangeOf(node),
		DocComment: w.docCommentAbove(node),
		ModulePath: joinPath(modulePath, name),
		Visibility: w.visibilityOf(node),
	}
	sym.ContentHash = SymbolContentHash(sym)
	w.symbols = append(w.symbols, sym)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		field := body.Child(i)
		if field.Type() != "field_declaration" {
			continue
		}
		fieldName := field.ChildByFieldName("name")
		fieldType := field.ChildByFieldName("type")
		if fieldName == nil || fieldType == nil {
			continue
		}
		w.defines = append(w.defines, types.DefinesEdge{Container: name, MemberName: w.text(fieldName)})
		w.uses = append(w.uses, types.UsesEdge{Container: name, UsedType: baseTypeName(w.text(fieldType))})
		w.symbols = append(w.symbols, types.Symbol{
			Name:       w.text(fieldName),
			Kind:       types.KindField,
			FileID:     w.fileID,
			Range:      rangeOf(field),
			Signature:  w.text(field),
			ModulePath: joinPath(joinPath(modulePath, name), w.text(fieldName)),
			Visibility: w.visibilityOf(field),
		})
	}
}

func (w *walker) handleEnum(node *sitter.Node, modulePath string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	sym := types.Symbol{
		Name:       name,
		Kind:       types.KindEnum,
		FileID:     w.fileID,
		Range:      rangeOf(node),
		DocComment: w.docCommentAbove(node),
		ModulePath: joinPath(modulePath, name),
		Visibility: w.visibilityOf(node),
	}
	sym.ContentHash = SymbolContentHash(sym)
	w.symbols = append(w.symbols, sym)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		variant := body.Child(i)
		if variant.Type() != "enum_variant" {
			continue
		}
		variantName := variant.ChildByFieldName("name")
		if variantName == nil {
			continue
		}
		w.defines = append(w.defines, types.DefinesEdge{Container: name, MemberName: w.text(variantName)})
	}
}

func (w *walker) handleTrait(node *sitter.Node, modulePath string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	sym := types.Symbol{
		Name:       name,
		Kind:       types.KindTrait,
		FileID:     w.fileID,
		Range:      rangeOf(node),
		DocComment: w.docCommentAbove(node),
		ModulePath: joinPath(modulePath, name),
		Visibility: w.visibilityOf(node),
	}
	sym.ContentHash = SymbolContentHash(sym)
	w.symbols = append(w.symbols, sym)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		switch member.Type() {
		case "function_signature_item":
			if memberName := member.ChildByFieldName("name"); memberName != nil {
				w.defines = append(w.defines, types.DefinesEdge{Container: name, MemberName: w.text(memberName)})
			}
		case "function_item":
			// Default trait method body: record both a define edge and a
			// full method symbol, mirroring handleFunction's treatment of
			// inherent methods.
			w.handleFunction(member, joinPath(modulePath, name), name)
		}
	}
}

func (w *walker) handleImpl(node *sitter.Node, modulePath string) {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	implType := baseTypeName(w.text(typeNode))

	if traitNode := node.ChildByFieldName("trait"); traitNode != nil {
		traitName := baseTypeName(w.text(traitNode))
		w.implements = append(w.implements, types.ImplementsEdge{ImplType: implType, TraitName: traitName})
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		if member.Type() == "function_item" {
			w.handleFunction(member, joinPath(modulePath, implType), implType)
		}
	}
}

func (w *walker) handleMod(node *sitter.Node, modulePath string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	sym := types.Symbol{
		Name:       name,
		Kind:       types.KindModule,
		FileID:     w.fileID,
		Range:      rangeOf(node),
		DocComment: w.docCommentAbove(node),
		ModulePath: joinPath(modulePath, name),
		Visibility: w.visibilityOf(node),
	}
	sym.ContentHash = SymbolContentHash(sym)
	w.symbols = append(w.symbols, sym)

	if body := node.ChildByFieldName("body"); body != nil {
		w.walkModule(body, joinPath(modulePath, name))
	}
}

func (w *walker) handleConstOrStatic(node *sitter.Node, modulePath string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	kind := types.KindConstant
	if node.Type() == "static_item" {
		kind = types.KindVariable
	}
	sym := types.Symbol{
		Name:       name,
		Kind:       kind,
		FileID:     w.fileID,
		Range:      rangeOf(node),
		Signature:  w.text(node),
		DocComment: w.docCommentAbove(node),
		ModulePath: joinPath(modulePath, name),
		Visibility: w.visibilityOf(node),
	}
	sym.ContentHash = SymbolContentHash(sym)
	w.symbols = append(w.symbols, sym)
}

func (w *walker) handleTypeAlias(node *sitter.Node, modulePath string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	sym := types.Symbol{
		Name:       name,
		Kind:       types.KindTypeAlias,
		FileID:     w.fileID,
		Range:      rangeOf(node),
		Signature:  w.text(node),
		DocComment: w.docCommentAbove(node),
		ModulePath: joinPath(modulePath, name),
		Visibility: w.visibilityOf(node),
	}
	sym.ContentHash = SymbolContentHash(sym)
	w.symbols = append(w.symbols, sym)
}

func (w *walker) handleUse(node *sitter.Node) {
	arg := node.ChildByFieldName("argument")
	if arg == nil {
		return
	}
	w.collectUseTree(arg, "")
}

// collectUseTree recurses through `use a::b::{c, d as e, *}` trees,
// producing one Import per leaf.
func (w *walker) collectUseTree(node *sitter.Node, prefix string) {
	switch node.Type() {
	case "scoped_use_list":
		pathNode := node.ChildByFieldName("path")
		listNode := node.ChildByFieldName("list")
		newPrefix := prefix
		if pathNode != nil {
			newPrefix = joinUsePath(prefix, w.text(pathNode))
		}
		if listNode != nil {
			for i := 0; i < int(listNode.ChildCount()); i++ {
				w.collectUseTree(listNode.Child(i), newPrefix)
			}
		}
	case "use_list":
		for i := 0; i < int(node.ChildCount()); i++ {
			w.collectUseTree(node.Child(i), prefix)
		}
	case "use_as_clause":
		pathNode := node.ChildByFieldName("path")
		aliasNode := node.ChildByFieldName("alias")
		if pathNode == nil {
			return
		}
		alias := ""
		if aliasNode != nil {
			alias = w.text(aliasNode)
		}
		w.imports = append(w.imports, types.Import{
			Path:   joinUsePath(prefix, w.text(pathNode)),
			Alias:  alias,
			FileID: w.fileID,
		})
	case "use_wildcard":
		inner := node.Child(0)
		p := prefix
		if inner != nil && inner.Type() != "*" {
			p = joinUsePath(prefix, w.text(inner))
		}
		w.imports = append(w.imports, types.Import{Path: p, IsGlob: true, FileID: w.fileID})
	case "scoped_identifier", "identifier", "crate", "self", "super":
		w.imports = append(w.imports, types.Import{Path: joinUsePath(prefix, w.text(node)), FileID: w.fileID})
	default:
		for i := 0; i < int(node.ChildCount()); i++ {
			w.collectUseTree(node.Child(i), prefix)
		}
	}
}

func joinUsePath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return prefix + "::" + path
}

// walkFunctionBody walks a function body looking for call expressions and
// let-bindings, recursing into nested blocks and closure bodies. Calls inside
// closures are attributed to the enclosing named function, since Rust
// closures have no name of their own. The walk stops at nested
// function_item nodes: a nested named function yields no symbol and its
// calls are not recorded.
func (w *walker) walkFunctionBody(node *sitter.Node, callerName string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil {
			w.calls = append(w.calls, types.CallSite{
				CallerName: callerName,
				CalleeExpr: w.text(fn),
				Line:       int(node.StartPoint().Row) + 1,
			})
		}
	case "let_declaration":
		pattern := node.ChildByFieldName("pattern")
		declaredType := node.ChildByFieldName("type")
		if pattern != nil && declaredType != nil {
			w.variableTypes = append(w.variableTypes, types.VariableType{
				VariableName: w.text(pattern),
				TypeName:     baseTypeName(w.text(declaredType)),
			})
		} else if pattern != nil {
			if value := node.ChildByFieldName("value"); value != nil {
				if typeName, ok := w.constructedType(value); ok {
					w.variableTypes = append(w.variableTypes, types.VariableType{
						VariableName: w.text(pattern),
						TypeName:     typeName,
					})
				}
			}
		}
	case "function_item":
		// Nested named function: skipped, so its body is not counted under
		// the enclosing caller_name; it is not emitted as a symbol either.
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		w.walkFunctionBody(node.Child(i), callerName)
	}
}

// constructedType infers a binding's type from `let x = Foo::new(...)` /
// `let x = Foo { .. }` style initializers, per spec.md §4.1's
// "assignment from construction" clause.
func (w *walker) constructedType(value *sitter.Node) (string, bool) {
	switch value.Type() {
	case "struct_expression":
		if n := value.ChildByFieldName("name"); n != nil {
			return baseTypeName(w.text(n)), true
		}
	case "call_expression":
		if fn := value.ChildByFieldName("function"); fn != nil && fn.Type() == "scoped_identifier" {
			path := w.text(fn)
			if idx := strings.LastIndex(path, "::"); idx != -1 {
				return path[:idx], true
			}
		}
	}
	return "", false
}
