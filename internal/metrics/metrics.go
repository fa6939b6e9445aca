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

// Package metrics exposes the engine's Prometheus counters, grounded on the
// teacher's promhttp.Handler() wiring in cmd/cie/index.go's --metrics-addr
// flag. codanna's index command serves these the same way, over an
// opt-in HTTP listener rather than always-on.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codanna_files_indexed_total",
		Help: "Files that were parsed and committed in an index run.",
	})
	FilesCached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codanna_files_cached_total",
		Help: "Files skipped because their content hash was unchanged.",
	})
	FilesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codanna_files_failed_total",
		Help: "Files that failed to parse or commit during an index run.",
	})
	SymbolsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codanna_symbols_indexed_total",
		Help: "Symbols stored across all index runs.",
	})
	RelationshipsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codanna_relationships_indexed_total",
		Help: "Relationships resolved and stored across all index runs.",
	})
	IndexDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "codanna_index_duration_seconds",
		Help: "Wall-clock duration of an Indexer.Index run.",
		Buckets: prometheus.DefBuckets,
	})
)
