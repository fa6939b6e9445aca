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
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	flag "github.com/spf13/pflag"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/config"
)

// runConfigCmd prints the fully resolved configuration (defaults +
// settings.toml + environment overrides), mirroring the teacher's
// runConfig (cmd/cie/config_cmd.go).
func runConfigCmd(args []string, globals globalFlags) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	fs.Parse(args)

	settings, err := config.Load(".")
	if err != nil {
		coderr.Fatal(err, globals.JSON)
		return
	}

	if globals.JSON {
		enc, _ := json.MarshalIndent(settings, "", "  ")
		fmt.Println(string(enc))
		return
	}

	enc, err := toml.Marshal(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(enc))
}
