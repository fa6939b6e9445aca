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
	"encoding/hex"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/types"
)

// writerSlot is the single-writer-mutex-optional-holder pattern spec.md §9
// requires: at most one active BatchWriter, readers never block on it, and
// a panic mid-batch must be reported distinctly from "no writer active".
type writerSlot struct {
	mu       sync.Mutex
	active   *BatchWriter
	poisoned bool
}

func (w *writerSlot) begin(idx *DocumentIndex) (*BatchWriter, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.poisoned {
		return nil, coderr.NewStorageConflict("writer lock poisoned by a prior panic; reinitialize the index")
	}
	if w.active != nil {
		return nil, coderr.NewStorageConflict("a batch writer is already active")
	}
	bw := &BatchWriter{
		index: idx,
		slot:  w,
		batch: idx.bleve.NewBatch(),
		ids:   types.NewIDAllocator(idx.lastSymbolID()),
	}
	w.active = bw
	return bw, nil
}

func (w *writerSlot) release(bw *BatchWriter, panicked bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if panicked {
		w.poisoned = true
	}
	if w.active == bw {
		w.active = nil
	}
}

// CommitResult is returned by BatchWriter.Commit.
type CommitResult struct {
	Opstamp uint64
}

// BatchWriter buffers symbol, relationship, file-info, and metadata
// operations until Commit, at which point they all become visible
// atomically (spec.md §4.2, §5).
type BatchWriter struct {
	index *DocumentIndex
	slot  *writerSlot
	batch *bleve.Batch
	ids   *types.IDAllocator

	// BatchWriter keeps no staging area for relationships: one cannot be
	// committed to the index until both endpoints resolve, so BatchWriter
	// only buffers ones the caller has already resolved; internal/resolver
	// drops references it cannot resolve.
	committed bool
}

// StoreSymbol buffers a symbol document for the next commit. If sym.ID is
// zero, a fresh ID is allocated and written back into sym.ID.
func (bw *BatchWriter) StoreSymbol(sym *types.Symbol) error {
	if sym.ID == 0 {
		sym.ID = types.SymbolID(bw.ids.Next())
	}
	doc := symbolDoc{
		Type:         docTypeSymbol,
		SymbolID:     uint32(sym.ID),
		Name:         sym.Name,
		DocComment:   sym.DocComment,
		Signature:    sym.Signature,
		Kind:         sym.Kind.String(),
		ModulePath:   sym.ModulePath,
		FilePath:     pathForFile(bw.index, sym.FileID),
		Line:         sym.Range.StartLine,
		Visibility:   sym.Visibility.String(),
		ContentHash:  hex.EncodeToString(sym.ContentHash[:]),
		ClusterID:    uint32(sym.ClusterID),
		VectorID:     uint32(sym.VectorID),
		HasVector:    sym.HasVector,
		ReceiverType: sym.ReceiverType,
	}
	return bw.batch.Index(symbolDocID(uint32(sym.ID)), doc)
}

// StoreRelationship buffers a resolved relationship. Both endpoints must
// already resolve; unresolved references are dropped by internal/resolver
// and never reach the batch.
func (bw *BatchWriter) StoreRelationship(rel types.Relationship) error {
	return bw.index.graph.add(bw.batch, rel)
}

// StoreFileInfo buffers a FileRecord update.
func (bw *BatchWriter) StoreFileInfo(f types.FileRecord) error {
	return bw.index.files.put(bw.batch, f)
}

// SetMetadata buffers a typed metadata row update.
func (bw *BatchWriter) SetMetadata(key MetaKey, value uint64) error {
	doc := metaDoc{Type: docTypeMeta, Key: key.String(), Value: value}
	return bw.batch.Index(metaDocID(key), doc)
}

// RemoveFileDocuments deletes all documents whose file_path equals path.
// Semantically atomic with subsequent StoreSymbol calls issued in the same
// batch, since nothing is visible until Commit.
func (bw *BatchWriter) RemoveFileDocuments(path string) error {
	ids, err := bw.index.symbolIDsForFile(path)
	if err != nil {
		return coderr.NewIOError(err, "listing symbols for "+path)
	}
	for _, id := range ids {
		bw.batch.Delete(symbolDocID(id))
	}
	bw.index.graph.removeForFile(bw.batch, path)
	return nil
}

// StoreVectorMetadata associates cluster/vector fast fields on an existing
// symbol document. Because bleve has no partial-document update, this is a
// read-modify-write: it loads the current stored fields and re-indexes them
// with the vector fields set. Per spec.md §5, readers may observe
// has_vector=false for one extra commit after the symbol itself appears.
func (bw *BatchWriter) StoreVectorMetadata(id types.SymbolID, cluster types.ClusterID, vector types.VectorID) error {
	doc, err := bw.index.rawSymbolDoc(uint32(id))
	if err != nil {
		return err
	}
	doc.ClusterID = uint32(cluster)
	doc.VectorID = uint32(vector)
	doc.HasVector = vector != 0
	return bw.batch.Index(symbolDocID(uint32(id)), *doc)
}

// Commit fsyncs the batch and triggers a reader reload. All operations
// within the batch become visible together; a failed commit leaves the
// index in its pre-batch state (bleve's underlying scorch segment commit
// is itself atomic, which is what gives us this guarantee for free).
func (bw *BatchWriter) Commit() (result CommitResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			bw.slot.release(bw, true)
			err = coderr.NewStorageConflict("writer panicked mid-commit")
		}
	}()
	if bw.committed {
		return CommitResult{}, coderr.NewStorageConflict("batch already committed")
	}
	if err := bw.index.bleve.Batch(bw.batch); err != nil {
		return CommitResult{}, coderr.NewIOError(err, "commit batch")
	}
	bw.committed = true
	bw.index.bumpOpstamp()
	op := bw.index.opstamp()
	bw.slot.release(bw, false)
	return CommitResult{Opstamp: op}, nil
}

// Discard abandons the batch without committing (used on cancellation,
// spec.md §5: "A committed batch is not rolled back on cancellation — only
// the in-flight batch is discarded").
func (bw *BatchWriter) Discard() {
	bw.slot.release(bw, false)
}

func pathForFile(idx *DocumentIndex, id types.FileID) string {
	if rec, ok := idx.files.get(id); ok {
		return rec.Path
	}
	return ""
}
