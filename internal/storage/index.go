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

package storage

import (
	"os"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/types"
)

// DocumentIndex is the engine's single durable store: one bleve index holds
// symbol, file, edge, and metadata documents together, so there is never a
// parallel canonical store to keep in sync (spec.md §4.2).
type DocumentIndex struct {
	bleve bleve.Index
	files *fileStore
	graph *graphStore
	slot  *writerSlot

	opstampCounter atomic.Uint64
	symbolCounter  atomic.Uint32
}

// Open opens an existing index at dir, or creates one if dir does not
// exist. Callers should keep exactly one *DocumentIndex per process per
// dir, matching spec.md §9's single-writer-slot invariant.
func Open(dir string) (*DocumentIndex, error) {
	var idx bleve.Index
	var err error

	if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
		idx, err = bleve.New(dir, buildMapping())
	} else {
		idx, err = bleve.Open(dir)
	}
	if err != nil {
		return nil, coderr.NewIOError(err, "opening index at "+dir)
	}

	di := &DocumentIndex{
		bleve: idx,
		files: newFileStore(),
		graph: newGraphStore(),
		slot:  &writerSlot{},
	}
	if err := di.files.load(idx); err != nil {
		return nil, coderr.NewIOError(err, "loading file records")
	}
	if err := di.graph.load(idx, di.pathForSymbol); err != nil {
		return nil, coderr.NewIOError(err, "loading relationship graph")
	}
	di.symbolCounter.Store(di.scanMaxSymbolID())
	if v, err := di.readMeta(MetaLastIndexedAt); err == nil {
		di.opstampCounter.Store(v)
	}
	return di, nil
}

// Close releases the underlying bleve index.
func (idx *DocumentIndex) Close() error {
	return idx.bleve.Close()
}

// BeginBatch acquires the single writer slot for a new batch (spec.md §9).
// Returns a StorageConflict CodeError if a writer is already active or the
// slot is poisoned from a prior panic.
func (idx *DocumentIndex) BeginBatch() (*BatchWriter, error) {
	return idx.slot.begin(idx)
}

func (idx *DocumentIndex) lastSymbolID() uint32 {
	return idx.symbolCounter.Load()
}

func (idx *DocumentIndex) bumpOpstamp() {
	idx.opstampCounter.Add(1)
}

func (idx *DocumentIndex) opstamp() uint64 {
	return idx.opstampCounter.Load()
}

// FileByPath returns the last-indexed record for path, used by the indexer
// to decide whether a file's content hash changed since the last run
// (spec.md §4.4 step 2).
func (idx *DocumentIndex) FileByPath(path string) (types.FileRecord, bool) {
	return idx.files.byPathLookup(path)
}

// NextFileID allocates a fresh FileID for a file seen for the first time.
func (idx *DocumentIndex) NextFileID() types.FileID {
	return idx.files.nextID()
}

// Stats reports the coarse counters get_index_info surfaces (spec.md §4.2).
type Stats struct {
	SymbolCount   int
	FileCount     int
	LastIndexedAt uint64
}

// Stats scans the index for current counts. It is O(1) round trips against
// bleve's doc-count API, not a full document scan.
func (idx *DocumentIndex) Stats() Stats {
	return Stats{
		SymbolCount:   int(idx.countByType(docTypeSymbol)),
		FileCount:     idx.files.count(),
		LastIndexedAt: idx.opstamp(),
	}
}

func (idx *DocumentIndex) countByType(t string) uint64 {
	req := bleve.NewSearchRequest(termQuery(t, "type"))
	req.Size = 0
	res, err := idx.bleve.Search(req)
	if err != nil {
		return 0
	}
	return res.Total
}

func (idx *DocumentIndex) pathForSymbol(id types.SymbolID) string {
	doc, err := idx.rawSymbolDoc(uint32(id))
	if err != nil {
		return ""
	}
	return doc.FilePath
}

// rawSymbolDoc loads the current stored fields for a symbol document, used
// by BatchWriter.StoreVectorMetadata's read-modify-write (bleve has no
// partial-document update).
func (idx *DocumentIndex) rawSymbolDoc(id uint32) (*symbolDoc, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{symbolDocID(id)}))
	req.Size = 1
	req.Fields = []string{"*"}
	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, coderr.NewIOError(err, "loading symbol document")
	}
	if len(res.Hits) == 0 {
		return nil, coderr.NewStorageConflict("symbol document not found")
	}
	return symbolDocFromFields(res.Hits[0].Fields), nil
}

// symbolIDsForFile lists the symbol IDs currently stored for path, used by
// RemoveFileDocuments to stage deletions ahead of a reindex.
func (idx *DocumentIndex) symbolIDsForFile(path string) ([]uint32, error) {
	q := bleve.NewConjunctionQuery(
		termQuery(docTypeSymbol, "type"),
		termQuery(path, "file_path"),
	)
	req := bleve.NewSearchRequest(q)
	req.Size = 1 << 20
	req.Fields = []string{"symbol_id"}
	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if v, ok := hit.Fields["symbol_id"].(float64); ok {
			ids = append(ids, uint32(v))
		}
	}
	return ids, nil
}

func (idx *DocumentIndex) scanMaxSymbolID() uint32 {
	q := termQuery(docTypeSymbol, "type")
	req := bleve.NewSearchRequest(q)
	req.Size = 1
	req.SortBy([]string{"-symbol_id"})
	req.Fields = []string{"symbol_id"}
	res, err := idx.bleve.Search(req)
	if err != nil || len(res.Hits) == 0 {
		return 0
	}
	if v, ok := res.Hits[0].Fields["symbol_id"].(float64); ok {
		return uint32(v)
	}
	return 0
}

func (idx *DocumentIndex) readMeta(key MetaKey) (uint64, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{metaDocID(key)}))
	req.Size = 1
	req.Fields = []string{"value"}
	res, err := idx.bleve.Search(req)
	if err != nil {
		return 0, err
	}
	if len(res.Hits) == 0 {
		return 0, coderr.NewStorageConflict("metadata row not found")
	}
	if v, ok := res.Hits[0].Fields["value"].(float64); ok {
		return uint64(v), nil
	}
	return 0, coderr.NewStorageConflict("metadata row malformed")
}

func termQuery(term, field string) *bleve.TermQuery {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}

func symbolDocFromFields(fields map[string]any) *symbolDoc {
	doc := &symbolDoc{Type: docTypeSymbol}
	if v, ok := fields["symbol_id"].(float64); ok {
		doc.SymbolID = uint32(v)
	}
	if v, ok := fields["name"].(string); ok {
		doc.Name = v
	}
	if v, ok := fields["doc_comment"].(string); ok {
		doc.DocComment = v
	}
	if v, ok := fields["signature"].(string); ok {
		doc.Signature = v
	}
	if v, ok := fields["kind"].(string); ok {
		doc.Kind = v
	}
	if v, ok := fields["module_path"].(string); ok {
		doc.ModulePath = v
	}
	if v, ok := fields["file_path"].(string); ok {
		doc.FilePath = v
	}
	if v, ok := fields["line"].(float64); ok {
		doc.Line = int(v)
	}
	if v, ok := fields["visibility"].(string); ok {
		doc.Visibility = v
	}
	if v, ok := fields["symbol_content_hash"].(string); ok {
		doc.ContentHash = v
	}
	if v, ok := fields["cluster_id"].(float64); ok {
		doc.ClusterID = uint32(v)
	}
	if v, ok := fields["vector_id"].(float64); ok {
		doc.VectorID = uint32(v)
	}
	if v, ok := fields["has_vector"].(bool); ok {
		doc.HasVector = v
	}
	if v, ok := fields["receiver_type"].(string); ok {
		doc.ReceiverType = v
	}
	return doc
}
