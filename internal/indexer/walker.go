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

// Package indexer orchestrates the end-to-end indexing pipeline: file
// discovery, change detection, parsing, two-phase symbol/relationship
// commit, and the vector-embedding phase (spec.md §4.4), grounded on the
// teacher's LocalPipeline (pkg/ingestion/local_pipeline.go).
package indexer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var defaultExcludes = []string{
	".git/**", "target/**", "node_modules/**", "vendor/**", ".codanna/**",
}

var testDirExcludes = []string{"tests/**", "**/tests/**"}

// walker discovers Rust source files under root, honoring ignore patterns
// and the include_tests setting (spec.md §6), generalizing the teacher's
// ExcludeGlobs filtering (pkg/ingestion/delta.go's FilterDelta) with
// doublestar matching (randalmurphal-code-indexer's internal/indexer/walker.go).
type walker struct {
	root         string
	ignore       []string
	includeTests bool
}

func newWalker(root string, ignorePatterns []string, includeTests bool) *walker {
	patterns := make([]string, 0, len(defaultExcludes)+len(ignorePatterns))
	patterns = append(patterns, defaultExcludes...)
	patterns = append(patterns, ignorePatterns...)
	if !includeTests {
		patterns = append(patterns, testDirExcludes...)
	}
	return &walker{root: root, ignore: patterns, includeTests: includeTests}
}

// walk calls fn for every *.rs file under root not matched by an ignore
// pattern. fn receives the path relative to root, slash-normalized.
func (w *walker) walk(fn func(relPath string) error) error {
	return filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if w.isIgnored(rel + "/") || w.isIgnored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(rel, ".rs") {
			return nil
		}
		if w.isIgnored(rel) {
			return nil
		}
		return fn(rel)
	})
}

func (w *walker) isIgnored(relPath string) bool {
	for _, pattern := range w.ignore {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
