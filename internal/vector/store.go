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

package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/types"
)

// Metadata is the contents of semantic/metadata.json (spec.md §6).
type Metadata struct {
	ModelName     string    `json:"model_name"`
	Dimension     int       `json:"dimension"`
	SegmentCount  int       `json:"segment_count"`
	TotalVectors  int       `json:"total_vectors"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is the vector subsystem's durable handle: the live segment set,
// cluster state, and dead-entry bookkeeping for one index directory. All
// mutation goes through a single mutex, matching spec.md §5's "guards its
// cluster-state rebuild under a lock but serves queries lock-free once a
// generation is published" — reads here take the read half of the lock,
// which is cheap enough at this scale that a true lock-free snapshot
// publish (as bleve does for text) is not worth the extra complexity.
type Store struct {
	dir   string
	mu    sync.RWMutex
	meta  Metadata
	segs  []*segment
	dead  map[types.SymbolID]bool
	state *clusterState

	bySymbol map[types.SymbolID]vectorLocation
}

type vectorLocation struct {
	segIndex int
	recIndex int
}

// Open opens or initializes the vector subsystem rooted at dir (the
// "semantic/" directory under the index root, spec.md §6).
func Open(dir string, modelName string, dimension int, bootstrapN int, rebalanceThreshold float64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, coderr.NewIOError(err, "creating semantic directory")
	}
	s := &Store{
		dir:      dir,
		dead:     make(map[types.SymbolID]bool),
		state:    newClusterState(bootstrapN, rebalanceThreshold),
		bySymbol: make(map[types.SymbolID]vectorLocation),
	}

	metaPath := filepath.Join(dir, "metadata.json")
	if data, err := os.ReadFile(metaPath); err == nil {
		if err := json.Unmarshal(data, &s.meta); err != nil {
			return nil, coderr.NewVectorCorruption(metaPath, err)
		}
	} else {
		s.meta = Metadata{ModelName: modelName, Dimension: dimension, CreatedAt: timeNow()}
	}

	for i := 0; ; i++ {
		path := filepath.Join(dir, fmt.Sprintf("segment_%d.vec", i))
		if _, err := os.Stat(path); err != nil {
			break
		}
		seg, err := openSegment(path)
		if err != nil {
			// spec.md §4.5: a corrupt/truncated segment is ignored (treated
			// as absent), not fatal to opening the store.
			continue
		}
		for j := 0; j < int(seg.header.VectorCount); j++ {
			seg.live[j] = true
		}
		s.segs = append(s.segs, seg)
		for j := 0; j < int(seg.header.VectorCount); j++ {
			rec, err := seg.recordAt(j)
			if err != nil {
				continue
			}
			s.bySymbol[rec.SymbolID] = vectorLocation{segIndex: len(s.segs) - 1, recIndex: j}
		}
	}
	return s, nil
}

// timeNow is isolated so tests can substitute a fixed clock; production
// code calls it exactly once per mutating Store method.
var timeNow = time.Now

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, seg := range s.segs {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// EmbeddingResult is one symbol's computed embedding, staged by the
// indexer's embedding phase before a commit.
type EmbeddingResult struct {
	SymbolID types.SymbolID
	Vector   []float32
}

// Assignment is the ClusterID/VectorID pair a successful AppendGeneration
// assigns to one symbol, for the caller to persist via
// storage.BatchWriter.StoreVectorMetadata.
type Assignment struct {
	Cluster types.ClusterID
	Vector  types.VectorID
}

// AppendGeneration writes a new segment file containing the given batch,
// assigning each to a cluster (bootstrapping the cluster set first if this
// batch crosses the bootstrap threshold). Returns the ClusterID/VectorID
// assigned to each symbol so the caller can persist them via
// storage.BatchWriter.StoreVectorMetadata.
func (s *Store) AppendGeneration(results []EmbeddingResult) (map[types.SymbolID]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(results) == 0 {
		return nil, nil
	}
	if s.meta.Dimension == 0 {
		s.meta.Dimension = len(results[0].Vector)
	}

	recs := make([]record, len(results))
	for i, r := range results {
		recs[i] = record{SymbolID: r.SymbolID, Vector: r.Vector}
	}

	if !s.state.bootstrapped() {
		s.state.bootstrap(recs)
	}

	segIndex := len(s.segs)
	path := filepath.Join(s.dir, fmt.Sprintf("segment_%d.vec", segIndex))
	seg, err := createSegment(path, s.meta.Dimension, recs)
	if err != nil {
		return nil, err
	}
	for i := range seg.live {
		seg.live[i] = true
	}
	s.segs = append(s.segs, seg)

	out := make(map[types.SymbolID]Assignment, len(recs))
	for i, r := range recs {
		cluster, _ := s.state.assign(r.Vector)
		vecID := types.VectorID(uint32(segIndex)<<20 | uint32(i+1)) // packs (segment, offset+1) so no record gets the zero VectorID
		s.bySymbol[r.SymbolID] = vectorLocation{segIndex: segIndex, recIndex: i}
		out[r.SymbolID] = Assignment{Cluster: cluster, Vector: vecID}
	}

	s.meta.SegmentCount = len(s.segs)
	s.meta.TotalVectors += len(recs)
	s.meta.UpdatedAt = timeNow()
	if err := s.flushMetadata(); err != nil {
		return nil, err
	}

	if s.state.needsRebalance() {
		if err := s.rebalanceLocked(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) flushMetadata() error {
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return coderr.NewIOError(err, "marshaling vector metadata")
	}
	if err := os.WriteFile(filepath.Join(s.dir, "metadata.json"), data, 0o644); err != nil {
		return coderr.NewIOError(err, "writing vector metadata")
	}
	return nil
}

// MarkDead flags every embedding belonging to path's symbols as dead
// (spec.md §4.5: "not physically removed"). Callers pass the SymbolIDs
// previously recorded for that file.
func (s *Store) MarkDead(symbolIDs []types.SymbolID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range symbolIDs {
		s.dead[id] = true
		if loc, ok := s.bySymbol[id]; ok && loc.segIndex < len(s.segs) {
			s.segs[loc.segIndex].live[loc.recIndex] = false
		}
	}
}

// Compact rewrites each segment's live entries into a fresh segment and
// unlinks the stale file, per spec.md §4.5.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newSegs := make([]*segment, 0, len(s.segs))
	newBySymbol := make(map[types.SymbolID]vectorLocation, len(s.bySymbol))
	for oldIdx, seg := range s.segs {
		liveCount := 0
		for _, alive := range seg.live {
			if alive {
				liveCount++
			}
		}
		if liveCount == int(seg.header.VectorCount) {
			newSegs = append(newSegs, seg)
			for id, loc := range s.bySymbol {
				if loc.segIndex == oldIdx {
					newBySymbol[id] = vectorLocation{segIndex: len(newSegs) - 1, recIndex: loc.recIndex}
				}
			}
			continue
		}
		if liveCount == 0 {
			stalePath := seg.path
			seg.close()
			os.Remove(stalePath)
			continue
		}
		path := filepath.Join(s.dir, fmt.Sprintf("segment_%d.vec.compact", len(newSegs)))
		compacted, err := seg.appendRecords(path, nil)
		if err != nil {
			return err
		}
		stalePath := seg.path
		seg.close()
		os.Remove(stalePath)
		finalPath := filepath.Join(s.dir, fmt.Sprintf("segment_%d.vec", len(newSegs)))
		os.Rename(path, finalPath)
		compacted.path = finalPath
		for i := range compacted.live {
			compacted.live[i] = true
		}
		newSegs = append(newSegs, compacted)
		newIdx := len(newSegs) - 1
		i := 0
		for id, loc := range s.bySymbol {
			if loc.segIndex == oldIdx && seg.live[loc.recIndex] {
				newBySymbol[id] = vectorLocation{segIndex: newIdx, recIndex: i}
				i++
			}
		}
	}
	s.segs = newSegs
	s.bySymbol = newBySymbol
	s.dead = make(map[types.SymbolID]bool)
	s.meta.SegmentCount = len(s.segs)
	return s.flushMetadata()
}

// rebalanceLocked re-runs k-means over every live vector and updates
// in-memory cluster state. It returns no assignments; the indexer reads the
// new mapping through RebalanceAssignments and persists it (vector has no
// dependency on storage).
func (s *Store) rebalanceLocked() error {
	var all []record
	for _, seg := range s.segs {
		for i := 0; i < int(seg.header.VectorCount); i++ {
			if !seg.live[i] {
				continue
			}
			r, err := seg.recordAt(i)
			if err != nil {
				continue
			}
			all = append(all, r)
		}
	}
	if len(all) == 0 {
		return nil
	}
	s.state.rebalance(all)
	return nil
}

// RebalanceAssignments exposes the current symbol→cluster mapping after a
// rebalance, for the indexer to persist.
func (s *Store) RebalanceAssignments() map[types.SymbolID]types.ClusterID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.SymbolID]types.ClusterID, len(s.bySymbol))
	for id, loc := range s.bySymbol {
		if loc.segIndex >= len(s.segs) {
			continue
		}
		r, err := s.segs[loc.segIndex].recordAt(loc.recIndex)
		if err != nil {
			continue
		}
		cid, _ := s.nearestCentroidLocked(r.Vector)
		out[id] = cid
	}
	return out
}
