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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/indexer"
)

// runIndex executes the 'index' CLI command: walk path, parse, resolve,
// and (if enabled) embed, reporting a progress bar the way the teacher's
// runIndex (cmd/cie/index.go) does with progressbar/v3, unless --json or
// --quiet suppress it. --metrics-addr mirrors the teacher's optional
// promhttp.Handler() endpoint for the same command.
func runIndex(args []string, globals globalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	force := fs.Bool("force", false, "Reindex even if the content hash is unchanged")
	dryRun := fs.Bool("dry-run", false, "Parse but discard every batch (no resolution or embedding)")
	maxFiles := fs.Int("max-files", 0, "Stop after this many files (0 = unlimited)")
	threads := fs.Int("threads", 0, "Parse-stage worker count (0 = indexing.parallel_threads from settings)")
	noProgress := fs.Bool("no-progress", false, "Disable the progress bar")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP address for Prometheus metrics (disabled when empty)")
	fs.Parse(args)

	path := "."
	if rest := fs.Args(); len(rest) > 0 {
		path = rest[0]
	}

	logLevel := slog.LevelInfo
	if *debug || globals.Verbose >= 2 {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("metrics.http.start", "addr", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	env, err := openEnvironment(".")
	if err != nil {
		coderr.Fatal(err, globals.JSON)
		return
	}
	defer env.Close()

	var bar *progressbar.ProgressBar
	lastTotal := -1
	var progress func(done, total int, path string)
	if !*noProgress && !globals.JSON && !globals.Quiet {
		progress = func(done, total int, relPath string) {
			if bar == nil || total != lastTotal {
				bar = progressbar.Default(int64(total), "indexing")
				lastTotal = total
			}
			_ = bar.Set64(int64(done))
		}
	}

	ix := indexer.New(env.idx, env.vec, env.embedder, env.settings, logger)
	result, err := ix.Index(context.Background(), path, indexer.Options{
		Force:    *force,
		DryRun:   *dryRun,
		MaxFiles: *maxFiles,
		Threads:  *threads,
		Progress: progress,
	})
	if err != nil {
		coderr.Fatal(err, globals.JSON)
		return
	}

	if globals.JSON {
		enc, _ := json.Marshal(result)
		fmt.Println(string(enc))
		return
	}

	indexed, cached, failed := 0, 0, 0
	for _, f := range result.Files {
		switch f.Outcome {
		case indexer.OutcomeIndexed:
			indexed++
		case indexer.OutcomeCached:
			cached++
		case indexer.OutcomeFailed:
			failed++
			fmt.Fprintf(os.Stderr, "failed: %s: %s\n", f.Path, f.Reason)
		}
	}
	fmt.Printf("indexed %d, cached %d, failed %d (%d symbols, %d relationships) in %s\n",
		indexed, cached, failed, result.SymbolsIndexed, result.RelationshipsIndexed, result.Duration)
}
