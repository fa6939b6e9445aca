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
	"math"

	"github.com/bartolli/codanna/internal/types"
)

// No ecosystem clustering library in the retrieval pack offers the exact
// shape spec.md §4.5 asks for (bootstrap on first N vectors, K ≈ √N,
// nearest-centroid assignment thereafter, a quality monitor driving
// re-clustering) — this is hand-built k-means; see DESIGN.md.

// Centroid is one cluster center plus the running stats the quality
// monitor needs.
type Centroid struct {
	ID     types.ClusterID
	Vector []float32

	size           int
	sumIntraDist   float64 // running sum of member distances to this centroid
}

func (c *Centroid) meanIntraDist() float64 {
	if c.size == 0 {
		return 0
	}
	return c.sumIntraDist / float64(c.size)
}

// clusterState holds the live centroid set and bootstrap threshold.
type clusterState struct {
	bootstrapN int // minimum vectors before the first k-means run
	centroids  []*Centroid
	nextID     uint32

	// rebalanceThreshold is the max_cluster_size/min_cluster_size ratio that
	// triggers a full re-cluster (spec.md §4.5).
	rebalanceThreshold float64
}

func newClusterState(bootstrapN int, rebalanceThreshold float64) *clusterState {
	if bootstrapN <= 0 {
		bootstrapN = 1000
	}
	if rebalanceThreshold <= 1 {
		rebalanceThreshold = 3.0
	}
	return &clusterState{bootstrapN: bootstrapN, rebalanceThreshold: rebalanceThreshold}
}

func (cs *clusterState) bootstrapped() bool { return len(cs.centroids) > 0 }

// bootstrap runs k-means over an initial batch once it reaches bootstrapN
// vectors, choosing K ≈ √(vector_count).
func (cs *clusterState) bootstrap(vectors []record) {
	if len(vectors) < cs.bootstrapN {
		return
	}
	k := int(math.Sqrt(float64(len(vectors))))
	if k < 1 {
		k = 1
	}
	cs.centroids = kmeans(vectors, k, &cs.nextID)
}

// assign places a new vector into the nearest existing centroid without
// re-clustering, updating that centroid's running stats.
func (cs *clusterState) assign(v []float32) (types.ClusterID, float64) {
	if len(cs.centroids) == 0 {
		return 0, 0
	}
	best := cs.centroids[0]
	bestDist := euclidean(v, best.Vector)
	for _, c := range cs.centroids[1:] {
		d := euclidean(v, c.Vector)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	best.size++
	best.sumIntraDist += bestDist
	return best.ID, bestDist
}

// needsRebalance reports whether the max/min size ratio among non-empty
// clusters has crossed the configured threshold; the per-centroid
// intra-cluster distance is tracked but not consulted here.
func (cs *clusterState) needsRebalance() bool {
	if len(cs.centroids) < 2 {
		return false
	}
	minSize, maxSize := -1, 0
	for _, c := range cs.centroids {
		if c.size == 0 {
			continue
		}
		if minSize == -1 || c.size < minSize {
			minSize = c.size
		}
		if c.size > maxSize {
			maxSize = c.size
		}
	}
	if minSize <= 0 {
		return maxSize > 0
	}
	return float64(maxSize)/float64(minSize) > cs.rebalanceThreshold
}

// rebalance re-runs k-means over the full live vector set and replaces the
// centroid set. Callers are responsible for reassigning every record's
// ClusterID/VectorID metadata afterward (internal/storage.StoreVectorMetadata).
func (cs *clusterState) rebalance(vectors []record) map[types.SymbolID]types.ClusterID {
	k := int(math.Sqrt(float64(len(vectors))))
	if k < 1 {
		k = 1
	}
	cs.centroids = kmeans(vectors, k, &cs.nextID)
	assignments := make(map[types.SymbolID]types.ClusterID, len(vectors))
	for _, r := range vectors {
		id, _ := cs.assign(r.Vector)
		assignments[r.SymbolID] = id
	}
	return assignments
}

// kmeans runs a fixed number of Lloyd's-algorithm iterations. Centroids are
// seeded from an evenly strided sample of the input (deterministic, so the
// bootstrap is reproducible across runs with the same input order —
// spec.md forbids Math.random()-style nondeterminism in the surrounding
// tooling, and a deterministic seed keeps tests reproducible too).
func kmeans(vectors []record, k int, nextID *uint32) []*Centroid {
	if k > len(vectors) {
		k = len(vectors)
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0].Vector)
	}
	centroids := make([]*Centroid, k)
	stride := len(vectors) / k
	if stride == 0 {
		stride = 1
	}
	for i := 0; i < k; i++ {
		*nextID++
		src := vectors[(i*stride)%len(vectors)].Vector
		v := make([]float32, dim)
		copy(v, src)
		centroids[i] = &Centroid{ID: types.ClusterID(*nextID), Vector: v}
	}

	const maxIterations = 10
	for iter := 0; iter < maxIterations; iter++ {
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for _, r := range vectors {
			best, bestDist := 0, math.MaxFloat64
			for i, c := range centroids {
				d := euclidean(r.Vector, c.Vector)
				if d < bestDist {
					best, bestDist = i, d
				}
			}
			counts[best]++
			for d := 0; d < dim; d++ {
				sums[best][d] += float64(r.Vector[d])
			}
		}
		changed := false
		for i, c := range centroids {
			if counts[i] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				newVal := float32(sums[i][d] / float64(counts[i]))
				if newVal != c.Vector[d] {
					changed = true
				}
				c.Vector[d] = newVal
			}
		}
		if !changed {
			break
		}
	}
	for _, c := range centroids {
		c.size = 0
		c.sumIntraDist = 0
	}
	return centroids
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
