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
	"sort"

	"github.com/bartolli/codanna/internal/types"
)

// Hit is one scored result from a similarity query.
type Hit struct {
	SymbolID types.SymbolID
	Score    float64 // cosine similarity, higher is better
}

// QueryOptions controls the cluster-probing fraction and result size.
type QueryOptions struct {
	TopK int
	// ClustersToProbe is the fraction of centroids to search (spec.md §4.5:
	// "top-P clusters... so the total probed population is ~5-15% of
	// vectors"); 0 defaults to 0.1.
	ClustersToProbe float64
}

// Query embeds queryVector against the live clusters and returns the top-K
// by cosine similarity, skipping dead entries.
func (s *Store) Query(queryVector []float32, opts QueryOptions) []Hit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.state.centroids) == 0 || len(queryVector) == 0 {
		return s.bruteForce(queryVector, opts)
	}

	probe := opts.ClustersToProbe
	if probe <= 0 {
		probe = 0.1
	}
	numProbe := int(float64(len(s.state.centroids)) * probe)
	if numProbe < 1 {
		numProbe = 1
	}

	type centroidDist struct {
		id   types.ClusterID
		dist float64
	}
	dists := make([]centroidDist, len(s.state.centroids))
	for i, c := range s.state.centroids {
		dists[i] = centroidDist{id: c.ID, dist: euclidean(queryVector, c.Vector)}
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })
	if numProbe > len(dists) {
		numProbe = len(dists)
	}
	probeSet := make(map[types.ClusterID]bool, numProbe)
	for _, d := range dists[:numProbe] {
		probeSet[d.id] = true
	}

	var hits []Hit
	for symID, loc := range s.bySymbol {
		if s.dead[symID] {
			continue
		}
		if loc.segIndex >= len(s.segs) || !s.segs[loc.segIndex].live[loc.recIndex] {
			continue
		}
		rec, err := s.segs[loc.segIndex].recordAt(loc.recIndex)
		if err != nil {
			continue
		}
		cid, _ := s.nearestCentroidLocked(rec.Vector)
		if !probeSet[cid] {
			continue
		}
		hits = append(hits, Hit{SymbolID: symID, Score: cosineSimilarity(queryVector, rec.Vector)})
	}
	return topK(hits, opts.TopK)
}

func (s *Store) nearestCentroidLocked(v []float32) (types.ClusterID, float64) {
	best := s.state.centroids[0]
	bestDist := euclidean(v, best.Vector)
	for _, c := range s.state.centroids[1:] {
		d := euclidean(v, c.Vector)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best.ID, bestDist
}

// bruteForce scores every live vector, used before the cluster set has
// bootstrapped.
func (s *Store) bruteForce(queryVector []float32, opts QueryOptions) []Hit {
	var hits []Hit
	for symID, loc := range s.bySymbol {
		if s.dead[symID] {
			continue
		}
		if loc.segIndex >= len(s.segs) || !s.segs[loc.segIndex].live[loc.recIndex] {
			continue
		}
		rec, err := s.segs[loc.segIndex].recordAt(loc.recIndex)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{SymbolID: symID, Score: cosineSimilarity(queryVector, rec.Vector)})
	}
	return topK(hits, opts.TopK)
}

func topK(hits []Hit, k int) []Hit {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k <= 0 {
		k = 10
	}
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

// rrfConstant is the k in rrf(d) = Σ 1/(k + rank_r(d)), fixed at 60 per
// spec.md §4.5.
const rrfConstant = 60

// RankedList is one ranked result list (either the text index's hits or
// the vector index's hits) contributing to a fused score.
type RankedList []types.SymbolID

// FuseRRF combines any number of ranked lists (text search, vector search,
// …) via Reciprocal Rank Fusion with k=60. A symbol absent from a list
// contributes 0 for that list, matching spec.md's "documents missing from
// a list contribute 0".
func FuseRRF(lists ...RankedList) []Hit {
	scores := make(map[types.SymbolID]float64)
	for _, list := range lists {
		for rank, id := range list {
			scores[id] += 1.0 / float64(rrfConstant+rank+1)
		}
	}
	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{SymbolID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}
