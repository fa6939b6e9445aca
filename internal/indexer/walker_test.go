// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("// rust source\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkerSkipsDefaultExcludesAndNonRustFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/lib.rs")
	writeFile(t, root, "src/storage/memory.rs")
	writeFile(t, root, "target/debug/build.rs")
	writeFile(t, root, ".git/hooks/pre-commit.rs")
	writeFile(t, root, "README.md")

	w := newWalker(root, nil, true)
	var got []string
	if err := w.walk(func(rel string) error { got = append(got, rel); return nil }); err != nil {
		t.Fatalf("walk() = %v, want nil", err)
	}
	sort.Strings(got)

	want := []string{"src/lib.rs", "src/storage/memory.rs"}
	if len(got) != len(want) {
		t.Fatalf("walk() visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("walk()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalkerExcludesTestsUnlessIncluded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/lib.rs")
	writeFile(t, root, "tests/integration.rs")

	excluding := newWalker(root, nil, false)
	var gotExcluded []string
	excluding.walk(func(rel string) error { gotExcluded = append(gotExcluded, rel); return nil })
	for _, rel := range gotExcluded {
		if rel == "tests/integration.rs" {
			t.Errorf("walk() with includeTests=false visited %q, want it skipped", rel)
		}
	}

	including := newWalker(root, nil, true)
	var gotIncluded []string
	including.walk(func(rel string) error { gotIncluded = append(gotIncluded, rel); return nil })
	found := false
	for _, rel := range gotIncluded {
		if rel == "tests/integration.rs" {
			found = true
		}
	}
	if !found {
		t.Errorf("walk() with includeTests=true did not visit tests/integration.rs")
	}
}

func TestWalkerHonorsCustomIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/lib.rs")
	writeFile(t, root, "src/generated/schema.rs")

	w := newWalker(root, []string{"src/generated/**"}, true)
	var got []string
	w.walk(func(rel string) error { got = append(got, rel); return nil })
	for _, rel := range got {
		if rel == "src/generated/schema.rs" {
			t.Errorf("walk() visited ignored path %q", rel)
		}
	}
}
