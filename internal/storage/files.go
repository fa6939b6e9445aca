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

	"github.com/bartolli/codanna/internal/types"
)

const docTypeFile = "file"

// fileDoc is the persisted form of types.FileRecord.
type fileDoc struct {
	Type        string `json:"type"`
	FileID      uint32 `json:"file_id"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	IndexedAt   int64  `json:"indexed_at"`
	Language    string `json:"language"`
}

func fileDocID(id uint32) string { return "file:" + itoa(id) }

// fileStore keeps an in-memory path→record and id→record cache backed by
// bleve documents, so change detection (spec.md §4.4 step 2) never needs a
// full index scan. It is rebuilt from the index on open.
type fileStore struct {
	mu      sync.RWMutex
	byPath  map[string]types.FileRecord
	byID    map[types.FileID]types.FileRecord
	lastID  uint32
}

func newFileStore() *fileStore {
	return &fileStore{
		byPath: make(map[string]types.FileRecord),
		byID:   make(map[types.FileID]types.FileRecord),
	}
}

func (s *fileStore) load(idx bleve.Index) error {
	q := bleve.NewTermQuery(docTypeFile)
	q.SetField("type")
	req := bleve.NewSearchRequest(q)
	req.Size = 1 << 20
	req.Fields = []string{"*"}
	res, err := idx.Search(req)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, hit := range res.Hits {
		rec := fileRecordFromFields(hit.Fields)
		s.byPath[rec.Path] = rec
		s.byID[rec.ID] = rec
		if uint32(rec.ID) > s.lastID {
			s.lastID = uint32(rec.ID)
		}
	}
	return nil
}

func fileRecordFromFields(fields map[string]any) types.FileRecord {
	rec := types.FileRecord{}
	if v, ok := fields["file_id"].(float64); ok {
		rec.ID = types.FileID(uint32(v))
	}
	if v, ok := fields["path"].(string); ok {
		rec.Path = v
	}
	if v, ok := fields["content_hash"].(string); ok {
		if b, err := hex.DecodeString(v); err == nil && len(b) == 32 {
			copy(rec.ContentHash[:], b)
		}
	}
	if v, ok := fields["indexed_at"].(float64); ok {
		rec.IndexedAt = int64(v)
	}
	if v, ok := fields["language"].(string); ok {
		rec.Language = v
	}
	return rec
}

func (s *fileStore) get(id types.FileID) (types.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	return rec, ok
}

func (s *fileStore) byPathLookup(path string) (types.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byPath[path]
	return rec, ok
}

func (s *fileStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *fileStore) nextID() types.FileID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return types.FileID(s.lastID)
}

func (s *fileStore) put(batch *bleve.Batch, rec types.FileRecord) error {
	s.mu.Lock()
	s.byPath[rec.Path] = rec
	s.byID[rec.ID] = rec
	if uint32(rec.ID) > s.lastID {
		s.lastID = uint32(rec.ID)
	}
	s.mu.Unlock()

	doc := fileDoc{
		Type:        docTypeFile,
		FileID:      uint32(rec.ID),
		Path:        rec.Path,
		ContentHash: hex.EncodeToString(rec.ContentHash[:]),
		IndexedAt:   rec.IndexedAt,
		Language:    rec.Language,
	}
	return batch.Index(fileDocID(uint32(rec.ID)), doc)
}
