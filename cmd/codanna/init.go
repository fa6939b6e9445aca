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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	flag "github.com/spf13/pflag"

	"github.com/bartolli/codanna/internal/config"
)

// runInit creates .codanna/settings.toml with the built-in defaults,
// mirroring the teacher's runInit (cmd/cie/init.go) but scoped to the
// single settings.toml layer spec.md §6 describes, without the teacher's
// interactive prompts, git-hook installation, or remote-hub wiring (none
// of which spec.md names).
func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing settings.toml")
	fs.Parse(args)

	dir := ".codanna"
	path := filepath.Join(dir, "settings.toml")

	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s already exists; pass --force to overwrite\n", path)
		os.Exit(1)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating %s: %v\n", dir, err)
		os.Exit(1)
	}

	data, err := toml.Marshal(config.Defaults())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: encoding default settings: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s\n", path)
}
