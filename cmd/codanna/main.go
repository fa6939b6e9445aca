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

// Package main implements the codanna CLI for indexing a Rust workspace and
// querying the resulting code-intelligence index.
//
// Usage:
//
//	codanna init                   Create .codanna/settings.toml
//	codanna index <path>           Index a Rust workspace
//	codanna retrieve <op> [args]   Run a tool-protocol operation against the index
//	codanna config                 Show the resolved configuration
//	codanna serve                  Start the MCP server (JSON-RPC over stdio)
//	codanna watch <path>           Continuously reindex on filesystem change
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags holds flags recognized ahead of the subcommand name.
type globalFlags struct {
	JSON    bool
	Verbose int
	Quiet   bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `codanna - Rust code-intelligence engine

Usage:
  codanna <command> [options]

Commands:
  init       Create .codanna/settings.toml in the current directory
  index      Index a Rust workspace
  retrieve   Run a tool-protocol operation against the index
  config     Show the resolved configuration
  serve      Start the MCP server (JSON-RPC over stdio)
  watch      Continuously reindex a workspace on filesystem change

Global Options:
  --json          Output in JSON format
  -v, --verbose   Increase verbosity
  -q, --quiet     Suppress non-essential output
  -V, --version   Show version and exit

For detailed command help: codanna <command> --help
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("codanna version %s (commit %s, built %s)\n", version, commit, date)
		os.Exit(0)
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}

	globals := globalFlags{JSON: *jsonOutput, Verbose: *verbose, Quiet: *quiet}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "init":
		runInit(cmdArgs)
	case "index":
		runIndex(cmdArgs, globals)
	case "retrieve":
		runRetrieve(cmdArgs, globals)
	case "config":
		runConfigCmd(cmdArgs, globals)
	case "serve":
		runServe(cmdArgs)
	case "watch":
		runWatch(cmdArgs, globals)
	default:
		errColor.Fprintf(os.Stderr, "unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

// errColor marks CLI-level errors in red when stderr is a terminal,
// matching the teacher's use of fatih/color for cmd/cie diagnostics.
// Falls back to plain text automatically when color.NoColor is set
// (fatih/color checks isatty itself via color.NoColor's init).
var errColor = color.New(color.FgRed, color.Bold)
