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

import "context"

// Embedder is the collaborator boundary spec.md §4.5 assumes but does not
// specify: "embed the query text with the same model used at index time".
// The indexer and query path both depend on this interface rather than a
// concrete model, so an unreachable embedding service degrades the system
// to text-only search (coderr.KindEmbeddingUnavailable) instead of failing
// the whole run.
type Embedder interface {
	// Embed returns a dense vector for text, matching Dimension() and the
	// model identified by ModelName().
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelName() string
}
