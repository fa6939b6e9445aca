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
	"os"
	"path/filepath"

	"github.com/bartolli/codanna/internal/config"
	"github.com/bartolli/codanna/internal/storage"
	"github.com/bartolli/codanna/internal/vector"
)

// environment bundles the collaborators every subcommand needs: settings,
// the document index, and (when semantic search is enabled) the vector
// store and embedder. Mirrors how the teacher's cmd/cie subcommands each
// call LoadConfig then construct their own storage handles, collapsed into
// one constructor since codanna's storage surface is a single bleve index
// rather than the teacher's CozoDB + edge-cache split.
type environment struct {
	settings config.Settings
	idx      *storage.DocumentIndex
	vec      *vector.Store
	embedder vector.Embedder
}

func openEnvironment(workspaceDir string) (*environment, error) {
	settings, err := config.Load(workspaceDir)
	if err != nil {
		return nil, err
	}

	idxPath := settings.Index.Path
	if !filepath.IsAbs(idxPath) {
		idxPath = filepath.Join(workspaceDir, idxPath)
	}
	idx, err := storage.Open(idxPath)
	if err != nil {
		return nil, err
	}

	env := &environment{settings: *settings, idx: idx}

	if settings.SemanticSearch.Enabled {
		vecDir := filepath.Join(idxPath, "semantic")
		vec, err := vector.Open(vecDir, settings.SemanticSearch.Model, settings.SemanticSearch.Dimension,
			0, settings.Vector.RebalanceThreshold)
		if err != nil {
			idx.Close()
			return nil, err
		}
		env.vec = vec
		env.embedder = vector.NewOllamaEmbedder(os.Getenv("OLLAMA_HOST"), settings.SemanticSearch.Model, settings.SemanticSearch.Dimension)
	}

	return env, nil
}

func (e *environment) Close() {
	if e.vec != nil {
		e.vec.Close()
	}
	e.idx.Close()
}
