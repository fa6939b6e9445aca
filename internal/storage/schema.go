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

// Package storage is the engine's persistence/search-index layer
// (spec.md §4.2): a durable, crash-safe DocumentIndex built on bleve, the
// Go ecosystem's closest analogue to the Rust tantivy library the original
// engine names in its on-disk layout (see DESIGN.md for why bleve was
// chosen over hand-rolling a columnar index on the standard library).
package storage

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// docType distinguishes a symbol document from a metadata row within the
// same bleve index, since bleve indexes are single-namespace.
const (
	docTypeSymbol = "symbol"
	docTypeMeta   = "meta"
)

// symbolDoc is the schema for one stored/indexed symbol (spec.md §4.2):
//
//	symbol_id (indexed+stored), name (tokenized+fast), doc_comment
//	(tokenized), signature (tokenized), kind (string), module_path
//	(faceted), file_path (stored), line (stored numeric), visibility
//	(stored), symbol_content_hash (stored), cluster_id (fast u64),
//	vector_id (fast u64), has_vector (fast bool)
type symbolDoc struct {
	Type string `json:"type"`

	SymbolID   uint32 `json:"symbol_id"`
	Name       string `json:"name"`
	DocComment string `json:"doc_comment"`
	Signature  string `json:"signature"`
	Kind       string `json:"kind"`
	ModulePath string `json:"module_path"`
	FilePath   string `json:"file_path"`
	Line       int    `json:"line"`
	Visibility string `json:"visibility"`
	ContentHash string `json:"symbol_content_hash"`

	ClusterID uint32 `json:"cluster_id"`
	VectorID  uint32 `json:"vector_id"`
	HasVector bool   `json:"has_vector"`

	ReceiverType string `json:"receiver_type"`
}

// metaDoc is a dedicated row for a typed metadata key (SymbolCounter,
// FileCounter, SchemaVersion, …), avoiding raw string-keyed lookups mixed
// into the symbol namespace.
type metaDoc struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value uint64 `json:"value"`
}

// MetaKey is the typed enum spec.md §4.2 asks for instead of raw strings.
type MetaKey int

const (
	MetaSymbolCounter MetaKey = iota
	MetaFileCounter
	MetaSchemaVersion
	MetaLastIndexedAt
)

func (k MetaKey) String() string {
	switch k {
	case MetaSymbolCounter:
		return "SymbolCounter"
	case MetaFileCounter:
		return "FileCounter"
	case MetaSchemaVersion:
		return "SchemaVersion"
	case MetaLastIndexedAt:
		return "LastIndexedAt"
	default:
		return "Unknown"
	}
}

func metaDocID(k MetaKey) string { return "meta:" + k.String() }

func symbolDocID(id uint32) string {
	// "sym:" prefix keeps the document ID namespace distinct from meta
	// rows sharing one bleve index.
	return "sym:" + itoa(id)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	buf := [10]byte{}
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// buildMapping constructs the bleve index mapping for symbolDoc and metaDoc.
// Fields that must support fast/columnar numeric reads at query time
// (cluster_id, vector_id, has_vector, line) are stored so BatchWriter can
// read them back for the read-modify-write pattern vector-field updates
// require (bleve has no partial-document update).
func buildMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Store = true
	textField.Index = true

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = "keyword"
	keywordField.Store = true
	keywordField.Index = true

	numericField := bleve.NewNumericFieldMapping()
	numericField.Store = true
	numericField.Index = true

	boolField := bleve.NewBooleanFieldMapping()
	boolField.Store = true
	boolField.Index = true

	symbol := bleve.NewDocumentMapping()
	symbol.AddFieldMappingsAt("type", keywordField)
	symbol.AddFieldMappingsAt("symbol_id", numericField)
	symbol.AddFieldMappingsAt("name", textField)
	symbol.AddFieldMappingsAt("doc_comment", textField)
	symbol.AddFieldMappingsAt("signature", textField)
	symbol.AddFieldMappingsAt("kind", keywordField)
	symbol.AddFieldMappingsAt("module_path", keywordField)
	symbol.AddFieldMappingsAt("file_path", keywordField)
	symbol.AddFieldMappingsAt("line", numericField)
	symbol.AddFieldMappingsAt("visibility", keywordField)
	symbol.AddFieldMappingsAt("symbol_content_hash", keywordField)
	symbol.AddFieldMappingsAt("cluster_id", numericField)
	symbol.AddFieldMappingsAt("vector_id", numericField)
	symbol.AddFieldMappingsAt("has_vector", boolField)
	symbol.AddFieldMappingsAt("receiver_type", keywordField)

	meta := bleve.NewDocumentMapping()
	meta.AddFieldMappingsAt("type", keywordField)
	meta.AddFieldMappingsAt("key", keywordField)
	meta.AddFieldMappingsAt("value", numericField)

	im := bleve.NewIndexMapping()
	im.AddDocumentMapping(docTypeSymbol, symbol)
	im.AddDocumentMapping(docTypeMeta, meta)
	im.TypeField = "type"
	im.DefaultAnalyzer = "en"
	return im
}
