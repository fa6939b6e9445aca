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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	flag "github.com/spf13/pflag"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/indexer"
)

var watchSkipDirs = map[string]bool{
	".git": true, "target": true, "node_modules": true, "vendor": true, ".codanna": true,
}

const watchDebounce = 2 * time.Second

// runWatch continuously re-indexes path on filesystem change, debounced,
// supplementing spec.md's batch-oriented index command (SPEC_FULL.md §4.4
// [EXPANSION]). Grounded on the teacher's runWatchAndReindex
// (cmd/cie/watch.go), adapted from the teacher's MCP-embedded reindex
// goroutine to a standalone blocking CLI loop over internal/indexer.
func runWatch(args []string, globals globalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Parse(args)

	path := "."
	if rest := fs.Args(); len(rest) > 0 {
		path = rest[0]
	}

	env, err := openEnvironment(".")
	if err != nil {
		coderr.Fatal(err, globals.JSON)
		return
	}
	defer env.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ix := indexer.New(env.idx, env.vec, env.embedder, env.settings, logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: fsnotify init failed: %v\n", err)
		os.Exit(1)
	}
	defer watcher.Close()

	watchCount := 0
	_ = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(p)
		if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && base != ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err == nil {
			watchCount++
		}
		return nil
	})
	fmt.Fprintf(os.Stderr, "watching %d directories under %s\n", watchCount, path)

	reindex := func() {
		result, err := ix.Index(context.Background(), path, indexer.Options{})
		if err != nil {
			logger.Error("watch.reindex failed", "error", err)
			return
		}
		logger.Info("watch.reindex done",
			"files", len(result.Files), "symbols", result.SymbolsIndexed, "relationships", result.RelationshipsIndexed)
	}

	var debounceTimer *time.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(watchDebounce)
			timerCh = debounceTimer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watch.fsnotify error", "error", err)
		case <-timerCh:
			timerCh = nil
			reindex()
		}
	}
}
