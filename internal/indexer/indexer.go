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

package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/config"
	"github.com/bartolli/codanna/internal/metrics"
	"github.com/bartolli/codanna/internal/parser"
	"github.com/bartolli/codanna/internal/resolver"
	"github.com/bartolli/codanna/internal/storage"
	"github.com/bartolli/codanna/internal/types"
	"github.com/bartolli/codanna/internal/vector"
)

// Batch thresholds from spec.md §4.4: "group by file count or symbol count
// threshold; commit when either limit is hit." Not user-configurable per
// spec §6's recognized options, so these stay package constants.
const (
	maxBatchFiles   = 200
	maxBatchSymbols = 5000
)

// FileOutcome is the per-file report spec.md §4.4 names.
type FileOutcome int

const (
	OutcomeIndexed FileOutcome = iota
	OutcomeCached
	OutcomeFailed
)

// FileResult reports one file's outcome for an index run.
type FileResult struct {
	Path         string
	FileID       types.FileID
	Outcome      FileOutcome
	SymbolsAdded int
	Reason       string // set only for OutcomeFailed
}

// Result summarizes an index run.
type Result struct {
	Files                 []FileResult
	SymbolsIndexed        int
	RelationshipsIndexed  int
	Duration              time.Duration
}

// Options controls one index run, matching the `index` CLI flags of
// spec.md §6.
type Options struct {
	Force    bool // reindex even if the content hash is unchanged
	DryRun   bool // parse, but discard every batch instead of committing; resolution and embedding are skipped
	MaxFiles int  // 0 = unlimited
	Threads  int  // worker count for the parse stage; 0 = settings.Indexing.ParallelThreads
	Progress func(done, total int, path string)
}

// Indexer orchestrates discovery, change detection, two-phase commit, and
// the vector-embedding phase (spec.md §4.4), grounded on the teacher's
// LocalPipeline (pkg/ingestion/local_pipeline.go).
type Indexer struct {
	idx      *storage.DocumentIndex
	vec      *vector.Store
	embedder vector.Embedder
	settings config.Settings
	parser   *parser.RustParser
	logger   *slog.Logger
}

func New(idx *storage.DocumentIndex, vec *vector.Store, embedder vector.Embedder, settings config.Settings, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		idx:      idx,
		vec:      vec,
		embedder: embedder,
		settings: settings,
		parser:   parser.NewRustParser(),
		logger:   logger,
	}
}

type pendingFile struct {
	relPath string
	fileID  types.FileID
	hash    [32]byte
	result  *parser.ParseResult
	modPath string
}

// Index walks root, detects changed files, and runs the two-phase commit
// plus (if enabled) the vector phase, batch by batch (spec.md §4.4 flow).
func (ix *Indexer) Index(ctx context.Context, root string, opts Options) (Result, error) {
	start := time.Now()
	var result Result

	w := newWalker(root, ix.settings.Indexing.IgnorePatterns, ix.settings.Indexing.IncludeTests)

	var paths []string
	err := w.walk(func(relPath string) error {
		if opts.MaxFiles > 0 && len(paths) >= opts.MaxFiles {
			return filepath.SkipAll
		}
		paths = append(paths, relPath)
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return result, coderr.NewIOError(err, "walking "+root)
	}

	for batchStart := 0; batchStart < len(paths); batchStart += maxBatchFiles {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		batchEnd := min(batchStart+maxBatchFiles, len(paths))
		batch := paths[batchStart:batchEnd]

		files, err := ix.runBatch(ctx, root, batch, opts, &result)
		if err != nil {
			return result, err
		}
		if !opts.DryRun && len(files) > 0 {
			if err := ix.resolveAndEmbed(files, opts, &result); err != nil {
				return result, err
			}
		}
	}

	result.Duration = time.Since(start)
	metrics.IndexDuration.Observe(result.Duration.Seconds())
	return result, nil
}

// fileParse is the per-file outcome of the parse stage: either a read/parse
// failure, a cache hit (unchanged content hash), or a fresh parse ready to
// commit.
type fileParse struct {
	relPath   string
	fileID    types.FileID
	hadRecord bool
	hash      [32]byte
	modPath   string
	cached    bool
	err       error
	parsed    *parser.ParseResult
}

// parseBatch runs the read+parse step for every file in batch across a
// work-stealing pool of goroutines, each drawing from a shared index
// counter so faster workers pick up more files than slower ones. Every
// worker calls ix.parser.Parse, which pools one tree-sitter parser per
// goroutine internally (internal/parser.RustParser), giving each worker
// its own thread-local parser instance without an explicit handoff here
// (spec.md §5). FileByPath/NextFileID are already synchronized in
// internal/storage, so concurrent workers can call them directly; the
// storage commit itself stays single-threaded in the caller, matching the
// single-writer model spec.md §4.4 requires.
func (ix *Indexer) parseBatch(ctx context.Context, root string, batch []string, opts Options) []fileParse {
	threads := opts.Threads
	if threads <= 0 {
		threads = ix.settings.Indexing.ParallelThreads
	}
	if threads <= 0 {
		threads = 1
	}

	outcomes := make([]fileParse, len(batch))
	var next atomic.Int64
	var wg sync.WaitGroup
	workers := threads
	if workers > len(batch) {
		workers = len(batch)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= len(batch) || ctx.Err() != nil {
					return
				}
				outcomes[i] = ix.parseOne(root, batch[i], opts.Force)
			}
		}()
	}
	wg.Wait()
	return outcomes
}

// parseOne reads and, if the content changed (or force is set), parses one
// file. Safe to call concurrently across files.
func (ix *Indexer) parseOne(root, relPath string, force bool) fileParse {
	absPath := filepath.Join(root, relPath)
	data, err := os.ReadFile(absPath)
	if err != nil {
		return fileParse{relPath: relPath, err: err}
	}
	hash := sha256.Sum256(data)

	existing, hadRecord := ix.idx.FileByPath(relPath)
	if !force && hadRecord && existing.ContentHash == hash {
		return fileParse{relPath: relPath, fileID: existing.ID, hadRecord: true, hash: hash, cached: true}
	}

	fileID := existing.ID
	if !hadRecord {
		fileID = ix.idx.NextFileID()
	}

	modPath := crateModulePath(relPath)
	parsed, err := ix.parser.Parse(data, fileID, relPath, modPath)
	if err != nil {
		return fileParse{relPath: relPath, fileID: fileID, hadRecord: hadRecord, err: err}
	}
	return fileParse{relPath: relPath, fileID: fileID, hadRecord: hadRecord, hash: hash, modPath: modPath, parsed: parsed}
}

// runBatch processes one group of files through phase 1 (symbol commit),
// returning the subset that were actually (re)parsed so the caller can run
// phase 2 (resolve) and phase 3 (embed) against them.
func (ix *Indexer) runBatch(ctx context.Context, root string, batch []string, opts Options, result *Result) ([]pendingFile, error) {
	bw, err := ix.idx.BeginBatch()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			bw.Discard()
		}
	}()

	outcomes := ix.parseBatch(ctx, root, batch, opts)

	var pending []pendingFile
	symbolCount := 0
	firstFile := len(result.Files) // results before this index belong to earlier batches

	for i, fp := range outcomes {
		if ctx.Err() != nil {
			break
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(outcomes), fp.relPath)
		}

		if fp.err != nil {
			result.Files = append(result.Files, FileResult{Path: fp.relPath, FileID: fp.fileID, Outcome: OutcomeFailed, Reason: fp.err.Error()})
			metrics.FilesFailed.Inc()
			continue
		}
		if fp.cached {
			result.Files = append(result.Files, FileResult{Path: fp.relPath, FileID: fp.fileID, Outcome: OutcomeCached})
			metrics.FilesCached.Inc()
			continue
		}

		if fp.hadRecord {
			if err := bw.RemoveFileDocuments(fp.relPath); err != nil {
				result.Files = append(result.Files, FileResult{Path: fp.relPath, FileID: fp.fileID, Outcome: OutcomeFailed, Reason: err.Error()})
				metrics.FilesFailed.Inc()
				continue
			}
		}

		for i := range fp.parsed.Symbols {
			sym := &fp.parsed.Symbols[i]
			sym.FileID = fp.fileID
			sym.ContentHash = parser.SymbolContentHash(*sym)
			if err := bw.StoreSymbol(sym); err != nil {
				result.Files = append(result.Files, FileResult{Path: fp.relPath, FileID: fp.fileID, Outcome: OutcomeFailed, Reason: err.Error()})
				metrics.FilesFailed.Inc()
				continue
			}
		}

		if err := bw.StoreFileInfo(types.FileRecord{
			ID:          fp.fileID,
			Path:        fp.relPath,
			ContentHash: fp.hash,
			IndexedAt:   time.Now().Unix(),
			Language:    "rust",
		}); err != nil {
			result.Files = append(result.Files, FileResult{Path: fp.relPath, FileID: fp.fileID, Outcome: OutcomeFailed, Reason: err.Error()})
			metrics.FilesFailed.Inc()
			continue
		}

		result.Files = append(result.Files, FileResult{Path: fp.relPath, FileID: fp.fileID, Outcome: OutcomeIndexed, SymbolsAdded: len(fp.parsed.Symbols)})
		result.SymbolsIndexed += len(fp.parsed.Symbols)
		symbolCount += len(fp.parsed.Symbols)
		metrics.FilesIndexed.Inc()
		metrics.SymbolsIndexed.Add(float64(len(fp.parsed.Symbols)))
		pending = append(pending, pendingFile{relPath: fp.relPath, fileID: fp.fileID, hash: fp.hash, result: fp.parsed, modPath: fp.modPath})

		if symbolCount >= maxBatchSymbols {
			break
		}
	}

	if opts.DryRun {
		return pending, nil
	}

	if _, err := bw.Commit(); err != nil {
		// spec.md §4.4: a commit failure aborts the batch and marks every
		// file in it as Failed.
		for i := firstFile; i < len(result.Files); i++ {
			if result.Files[i].Outcome == OutcomeIndexed {
				result.Files[i].Outcome = OutcomeFailed
				result.Files[i].Reason = err.Error()
			}
		}
		return nil, err
	}
	committed = true
	return pending, nil
}

// resolveAndEmbed runs phase 2 (relationship resolution, against symbols
// already committed by runBatch) and phase 3 (vector embedding), each in
// its own batch.
func (ix *Indexer) resolveAndEmbed(pending []pendingFile, opts Options, result *Result) error {
	fileParses := make([]resolver.FileParse, len(pending))
	for i, pf := range pending {
		fileParses[i] = resolver.FileParse{FileID: pf.fileID, ModulePath: pf.modPath, Result: pf.result}
	}

	res := resolver.New(ix.idx)
	rels := res.Resolve(fileParses)

	if len(rels) > 0 {
		bw, err := ix.idx.BeginBatch()
		if err != nil {
			return err
		}
		for _, rel := range rels {
			if err := bw.StoreRelationship(rel); err != nil {
				bw.Discard()
				return err
			}
		}
		if _, err := bw.Commit(); err != nil {
			return err
		}
		result.RelationshipsIndexed += len(rels)
		metrics.RelationshipsIndexed.Add(float64(len(rels)))
	}

	if ix.vec == nil || ix.embedder == nil || !ix.settings.SemanticSearch.Enabled {
		return nil
	}
	return ix.embedBatch(pending)
}

// embedBatch gathers symbols with a non-empty doc comment across pending
// files, embeds them, and persists cluster/vector fast fields in a
// dedicated batch (spec.md §4.4 step 6).
func (ix *Indexer) embedBatch(pending []pendingFile) error {
	var results []vector.EmbeddingResult
	ctx := context.Background()

	for _, pf := range pending {
		syms, err := ix.idx.FindSymbolsByFile(pf.relPath)
		if err != nil {
			continue
		}
		for _, sym := range syms {
			if sym.DocComment == "" {
				continue
			}
			text := sym.DocComment + "\n" + sym.Signature
			vec, err := ix.embedder.Embed(ctx, text)
			if err != nil {
				ix.logger.Warn("embedding unavailable; degrading to text-only search for this run", "error", err)
				return nil
			}
			results = append(results, vector.EmbeddingResult{SymbolID: sym.ID, Vector: vec})
		}
	}
	if len(results) == 0 {
		return nil
	}

	assignments, err := ix.vec.AppendGeneration(results)
	if err != nil {
		return err
	}

	// A rebalance inside AppendGeneration may have moved existing symbols
	// to new clusters; persist the full current mapping so cluster_id
	// fast fields never go stale, not just this generation's new entries.
	full := ix.vec.RebalanceAssignments()
	for id, cluster := range full {
		if _, ok := assignments[id]; !ok {
			assignments[id] = vector.Assignment{Cluster: cluster}
		} else {
			a := assignments[id]
			a.Cluster = cluster
			assignments[id] = a
		}
	}

	bw, err := ix.idx.BeginBatch()
	if err != nil {
		return err
	}
	for id, a := range assignments {
		if err := bw.StoreVectorMetadata(id, a.Cluster, a.Vector); err != nil {
			bw.Discard()
			return err
		}
	}
	_, err = bw.Commit()
	return err
}
