// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenEnvironmentUsesDefaultsWithoutSettingsFile(t *testing.T) {
	dir := t.TempDir()

	env, err := openEnvironment(dir)
	if err != nil {
		t.Fatalf("openEnvironment() = %v, want nil", err)
	}
	defer env.Close()

	if env.idx == nil {
		t.Fatal("openEnvironment() env.idx is nil")
	}
	if env.settings.Index.Path != ".codanna/index" {
		t.Errorf("settings.Index.Path = %q, want the built-in default", env.settings.Index.Path)
	}
	// Defaults enable semantic search, so a vector store and embedder should
	// both be wired up.
	if env.vec == nil || env.embedder == nil {
		t.Errorf("openEnvironment() with default settings left vec/embedder nil")
	}
}

func TestOpenEnvironmentHonorsDisabledSemanticSearch(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".codanna"), 0o755); err != nil {
		t.Fatal(err)
	}
	toml := "[semantic_search]\nenabled = false\n"
	if err := os.WriteFile(filepath.Join(dir, ".codanna", "settings.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	env, err := openEnvironment(dir)
	if err != nil {
		t.Fatalf("openEnvironment() = %v, want nil", err)
	}
	defer env.Close()

	if env.vec != nil || env.embedder != nil {
		t.Errorf("openEnvironment() with semantic_search disabled left vec=%v embedder=%v, want both nil", env.vec, env.embedder)
	}
}
