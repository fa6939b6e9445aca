// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import "testing"

func TestCrateModulePath(t *testing.T) {
	tests := []struct {
		relPath string
		want    string
	}{
		{"src/lib.rs", ""},
		{"src/main.rs", ""},
		{"src/storage/memory.rs", "storage::memory"},
		{"src/storage/mod.rs", "storage"},
		{"src/a/b/c.rs", "a::b::c"},
	}
	for _, tt := range tests {
		t.Run(tt.relPath, func(t *testing.T) {
			if got := crateModulePath(tt.relPath); got != tt.want {
				t.Errorf("crateModulePath(%q) = %q, want %q", tt.relPath, got, tt.want)
			}
		})
	}
}
