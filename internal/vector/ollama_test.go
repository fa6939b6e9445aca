// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedderEmbed(t *testing.T) {
	var gotBody ollamaEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q, want /api/embeddings", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL, "minilm-l6-v2", 3)
	vec, err := e.Embed(context.Background(), "fn lookup(&self, key: &str) -> Option<Entry>")
	if err != nil {
		t.Fatalf("Embed() = %v, want nil", err)
	}
	if len(vec) != 3 {
		t.Fatalf("len(vec) = %d, want 3", len(vec))
	}
	if gotBody.Model != "minilm-l6-v2" {
		t.Errorf("request model = %q, want minilm-l6-v2", gotBody.Model)
	}
	if e.Dimension() != 3 {
		t.Errorf("Dimension() = %d, want 3", e.Dimension())
	}
	if e.ModelName() != "minilm-l6-v2" {
		t.Errorf("ModelName() = %q, want minilm-l6-v2", e.ModelName())
	}
}

func TestOllamaEmbedderNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not pulled"))
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL, "minilm-l6-v2", 3)
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Fatalf("Embed() = nil error, want an EmbeddingUnavailable error")
	}
}

func TestNewOllamaEmbedderDefaultsBaseURL(t *testing.T) {
	e := NewOllamaEmbedder("", "minilm-l6-v2", 384)
	if e.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %q, want http://localhost:11434", e.baseURL)
	}
}
