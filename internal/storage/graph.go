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

package storage

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/bartolli/codanna/internal/types"
)

const docTypeEdge = "edge"

// edgeDoc is the persisted form of a resolved types.Relationship. Stored
// alongside symbol documents in the same bleve index — there is no
// parallel canonical store (spec.md §4.2).
type edgeDoc struct {
	Type         string  `json:"type"`
	From         uint32  `json:"from"`
	To           uint32  `json:"to"`
	Kind         string  `json:"kind"`
	Weight       float32 `json:"weight"`
	CallSiteLine int     `json:"call_site_line"`
	ReceiverHint string  `json:"receiver_hint"`
	FromFilePath string  `json:"from_file_path"`
	ToFilePath   string  `json:"to_file_path"`
}

func edgeDocID(rel types.Relationship) string {
	return fmt.Sprintf("edge:%d:%s:%d", rel.From, rel.Kind, rel.To)
}

// graphStore caches from→[]to adjacency in memory for O(1) callers/calls
// traversal; the bleve documents remain the durable source of truth and
// are replayed into this cache on open.
type graphStore struct {
	mu       sync.RWMutex
	outgoing map[types.SymbolID][]types.Relationship
	incoming map[types.SymbolID][]types.Relationship
	byFile   map[string][]types.Relationship // keyed by from-symbol's file path, for file removal
}

func newGraphStore() *graphStore {
	return &graphStore{
		outgoing: make(map[types.SymbolID][]types.Relationship),
		incoming: make(map[types.SymbolID][]types.Relationship),
		byFile:   make(map[string][]types.Relationship),
	}
}

func (g *graphStore) load(idx bleve.Index, symbolPath func(types.SymbolID) string) error {
	q := bleve.NewMatchQuery(docTypeEdge) // edge docs' "type" is dynamically mapped and analyzed
	q.SetField("type")
	req := bleve.NewSearchRequest(q)
	req.Size = 1 << 20
	req.Fields = []string{"*"}
	res, err := idx.Search(req)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, hit := range res.Hits {
		rel := edgeRelFromFields(hit.Fields)
		g.indexLocked(rel, symbolPath(rel.From))
	}
	return nil
}

func (g *graphStore) indexLocked(rel types.Relationship, fromPath string) {
	g.outgoing[rel.From] = append(g.outgoing[rel.From], rel)
	g.incoming[rel.To] = append(g.incoming[rel.To], rel)
	if fromPath != "" {
		g.byFile[fromPath] = append(g.byFile[fromPath], rel)
	}
}

func (g *graphStore) add(batch *bleve.Batch, rel types.Relationship) error {
	doc := edgeDoc{
		Type:         docTypeEdge,
		From:         uint32(rel.From),
		To:           uint32(rel.To),
		Kind:         rel.Kind.String(),
		Weight:       rel.Weight,
		CallSiteLine: rel.Metadata.CallSiteLine,
		ReceiverHint: rel.Metadata.ReceiverHint,
	}
	g.mu.Lock()
	g.indexLocked(rel, "")
	g.mu.Unlock()
	return batch.Index(edgeDocID(rel), doc)
}

// removeForFile drops cached edges whose "from" symbol belonged to path and
// deletes their bleve documents in the same batch. Only edges loaded on
// open are tracked per file (add records no path), so edges added since
// open are not removed here.
func (g *graphStore) removeForFile(batch *bleve.Batch, path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	stale := g.byFile[path]
	delete(g.byFile, path)
	for _, rel := range stale {
		batch.Delete(edgeDocID(rel))
		g.outgoing[rel.From] = removeRel(g.outgoing[rel.From], rel)
		g.incoming[rel.To] = removeRel(g.incoming[rel.To], rel)
	}
}

func removeRel(list []types.Relationship, target types.Relationship) []types.Relationship {
	out := list[:0]
	for _, r := range list {
		if r != target {
			out = append(out, r)
		}
	}
	return out
}

func (g *graphStore) outgoingOf(id types.SymbolID, kinds ...types.RelationshipKind) []types.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterKinds(g.outgoing[id], kinds)
}

func (g *graphStore) incomingOf(id types.SymbolID, kinds ...types.RelationshipKind) []types.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterKinds(g.incoming[id], kinds)
}

func filterKinds(list []types.Relationship, kinds []types.RelationshipKind) []types.Relationship {
	if len(kinds) == 0 {
		out := make([]types.Relationship, len(list))
		copy(out, list)
		return out
	}
	allowed := make(map[types.RelationshipKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	var out []types.Relationship
	for _, r := range list {
		if allowed[r.Kind] {
			out = append(out, r)
		}
	}
	return out
}

func edgeRelFromFields(fields map[string]any) types.Relationship {
	rel := types.Relationship{Weight: types.DefaultWeight}
	if v, ok := fields["from"].(float64); ok {
		rel.From = types.SymbolID(uint32(v))
	}
	if v, ok := fields["to"].(float64); ok {
		rel.To = types.SymbolID(uint32(v))
	}
	if v, ok := fields["kind"].(string); ok {
		rel.Kind = kindFromString(v)
	}
	if v, ok := fields["weight"].(float64); ok {
		rel.Weight = float32(v)
	}
	if v, ok := fields["call_site_line"].(float64); ok {
		rel.Metadata.CallSiteLine = int(v)
	}
	if v, ok := fields["receiver_hint"].(string); ok {
		rel.Metadata.ReceiverHint = v
	}
	return rel
}

func kindFromString(s string) types.RelationshipKind {
	switch s {
	case "implements":
		return types.RelImplements
	case "uses":
		return types.RelUses
	case "defines":
		return types.RelDefines
	case "references":
		return types.RelReferences
	case "extends":
		return types.RelExtends
	default:
		return types.RelCalls
	}
}
