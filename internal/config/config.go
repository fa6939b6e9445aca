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

// Package config loads the engine's layered settings (spec.md §6): built-in
// defaults, overridden by a workspace settings.toml, overridden by
// CODANNA_-prefixed environment variables. CLI flags are the final layer
// and are applied on top of a loaded *Settings by cmd/codanna itself,
// mirroring how the teacher's cmd/cie subcommands merge flags over
// *Config after calling LoadWithRoot (cmd/cie/config.go).
package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/bartolli/codanna/internal/coderr"
)

const envPrefix = "CODANNA_"

// Settings is the full recognized configuration surface from spec.md §6.
type Settings struct {
	Indexing       Indexing                    `toml:"indexing"`
	Languages      map[string]LanguageSettings `toml:"languages"`
	SemanticSearch SemanticSearch              `toml:"semantic_search"`
	Index          Index                       `toml:"index"`
	Vector         Vector                      `toml:"vector"`
}

type Indexing struct {
	// ParallelThreads sizes internal/indexer's parse-stage worker pool
	// (spec.md §5); the --threads CLI flag overrides it per run.
	ParallelThreads int      `toml:"parallel_threads"`
	IgnorePatterns  []string `toml:"ignore_patterns"`
	IncludeTests    bool     `toml:"include_tests"`
}

type LanguageSettings struct {
	Enabled bool `toml:"enabled"`
}

type SemanticSearch struct {
	Enabled   bool    `toml:"enabled"`
	Model     string  `toml:"model"`
	Threshold float64 `toml:"threshold"`
	Dimension int     `toml:"dimension"`
}

type Index struct {
	Path string `toml:"path"`
}

type Vector struct {
	ClustersToProbe    float64 `toml:"clusters_to_probe"`
	RebalanceThreshold float64 `toml:"rebalance_threshold"`
}

// Defaults returns the built-in configuration, the lowest-precedence layer.
func Defaults() Settings {
	return Settings{
		Indexing: Indexing{
			ParallelThreads: 4,
			IgnorePatterns: []string{
				".git/**", "target/**", "node_modules/**", "vendor/**",
				"*.min.js", "*.lock",
			},
			IncludeTests: true,
		},
		Languages: map[string]LanguageSettings{
			"rust": {Enabled: true},
		},
		SemanticSearch: SemanticSearch{
			Enabled:   true,
			Model:     "minilm-l6-v2",
			Threshold: 0.5,
			Dimension: 384,
		},
		Index: Index{Path: ".codanna/index"},
		Vector: Vector{
			ClustersToProbe:    0.1,
			RebalanceThreshold: 2.0,
		},
	}
}

// dataDir is the workspace-relative directory init.go scaffolds and Load
// reads back from, matching spec.md §6's "<project>/<data_dir>/settings.toml".
const dataDir = ".codanna"

// Load merges defaults, .codanna/settings.toml under workspaceDir (if
// present), and CODANNA_-prefixed environment variables, in that
// precedence order.
func Load(workspaceDir string) (*Settings, error) {
	s := Defaults()

	tomlPath := filepath.Join(workspaceDir, dataDir, "settings.toml")
	if data, err := os.ReadFile(tomlPath); err == nil {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, configDecodeErr(tomlPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, coderr.NewIOError(err, "reading "+tomlPath)
	}

	if err := applyEnv(&s); err != nil {
		return nil, err
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return &s, nil
}

func configDecodeErr(path string, err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		return coderr.NewConfigError(path, "a value matching settings.toml's schema", derr.String())
	}
	return coderr.NewConfigError(path, "valid TOML", err.Error())
}

// applyEnv overrides scalar keys from CODANNA_-prefixed environment
// variables. List/map-valued keys (ignore_patterns, languages.<name>) are
// left to the TOML layer: environment variables have no natural syntax for
// them here, an Open Question decision recorded in DESIGN.md.
func applyEnv(s *Settings) error {
	if v, ok := os.LookupEnv(envPrefix + "INDEXING_PARALLEL_THREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return coderr.NewConfigError("indexing.parallel_threads", "positive integer", v)
		}
		s.Indexing.ParallelThreads = n
	}
	if v, ok := os.LookupEnv(envPrefix + "INDEXING_INCLUDE_TESTS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return coderr.NewConfigError("indexing.include_tests", "bool", v)
		}
		s.Indexing.IncludeTests = b
	}
	if v, ok := os.LookupEnv(envPrefix + "SEMANTIC_SEARCH_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return coderr.NewConfigError("semantic_search.enabled", "bool", v)
		}
		s.SemanticSearch.Enabled = b
	}
	if v, ok := os.LookupEnv(envPrefix + "SEMANTIC_SEARCH_MODEL"); ok {
		s.SemanticSearch.Model = v
	}
	if v, ok := os.LookupEnv(envPrefix + "SEMANTIC_SEARCH_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return coderr.NewConfigError("semantic_search.threshold", "float in [0,1]", v)
		}
		s.SemanticSearch.Threshold = f
	}
	if v, ok := os.LookupEnv(envPrefix + "SEMANTIC_SEARCH_DIMENSION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return coderr.NewConfigError("semantic_search.dimension", "positive integer", v)
		}
		s.SemanticSearch.Dimension = n
	}
	if v, ok := os.LookupEnv(envPrefix + "INDEX_PATH"); ok {
		s.Index.Path = v
	}
	if v, ok := os.LookupEnv(envPrefix + "VECTOR_CLUSTERS_TO_PROBE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return coderr.NewConfigError("vector.clusters_to_probe", "float in (0,1]", v)
		}
		s.Vector.ClustersToProbe = f
	}
	if v, ok := os.LookupEnv(envPrefix + "VECTOR_REBALANCE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return coderr.NewConfigError("vector.rebalance_threshold", "float > 1", v)
		}
		s.Vector.RebalanceThreshold = f
	}
	return nil
}

// Validate enforces the range constraints spec.md §6 lists for each key.
func Validate(s Settings) error {
	if s.Indexing.ParallelThreads <= 0 {
		return coderr.NewConfigError("indexing.parallel_threads", "positive integer", strconv.Itoa(s.Indexing.ParallelThreads))
	}
	if s.SemanticSearch.Threshold < 0 || s.SemanticSearch.Threshold > 1 {
		return coderr.NewConfigError("semantic_search.threshold", "float in [0,1]", strconv.FormatFloat(s.SemanticSearch.Threshold, 'f', -1, 64))
	}
	if s.SemanticSearch.Dimension <= 0 {
		return coderr.NewConfigError("semantic_search.dimension", "positive integer", strconv.Itoa(s.SemanticSearch.Dimension))
	}
	if s.Vector.ClustersToProbe <= 0 || s.Vector.ClustersToProbe > 1 {
		return coderr.NewConfigError("vector.clusters_to_probe", "float in (0,1]", strconv.FormatFloat(s.Vector.ClustersToProbe, 'f', -1, 64))
	}
	if s.Vector.RebalanceThreshold <= 1 {
		return coderr.NewConfigError("vector.rebalance_threshold", "float > 1", strconv.FormatFloat(s.Vector.RebalanceThreshold, 'f', -1, 64))
	}
	return nil
}
