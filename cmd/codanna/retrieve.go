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
	"context"
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/tools"
	"github.com/bartolli/codanna/internal/types"
)

// runRetrieve dispatches to a tool-protocol operation
// (spec.md §6), the CLI-side counterpart to internal/mcpserver — both
// front the same internal/tools.Engine, mirroring how the teacher's
// pkg/tools functions back both cmd/cie/query.go and cmd/cie/mcp.go.
func runRetrieve(args []string, globals globalFlags) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: codanna retrieve <symbol|calls|callers|implementations|uses|defines|impact|dependencies|info|search|semantic|semantic-context> [args]")
		os.Exit(1)
	}

	env, err := openEnvironment(".")
	if err != nil {
		coderr.Fatal(err, globals.JSON)
		return
	}
	defer env.Close()

	engine := tools.New(env.idx, env.vec, env.embedder)
	op, opArgs := args[0], args[1:]
	ctx := context.Background()

	var result any
	switch op {
	case "symbol":
		fs := flag.NewFlagSet("symbol", flag.ExitOnError)
		fs.Parse(opArgs)
		result, err = engine.FindSymbol(arg(fs, 0))

	case "calls":
		fs := flag.NewFlagSet("calls", flag.ExitOnError)
		fs.Parse(opArgs)
		result, err = engine.GetCalls(arg(fs, 0))

	case "callers":
		fs := flag.NewFlagSet("callers", flag.ExitOnError)
		fs.Parse(opArgs)
		result, err = engine.FindCallers(arg(fs, 0))

	case "implementations":
		fs := flag.NewFlagSet("implementations", flag.ExitOnError)
		fs.Parse(opArgs)
		result, err = engine.FindImplementations(arg(fs, 0))

	case "uses":
		fs := flag.NewFlagSet("uses", flag.ExitOnError)
		fs.Parse(opArgs)
		result, err = engine.FindUses(arg(fs, 0))

	case "defines":
		fs := flag.NewFlagSet("defines", flag.ExitOnError)
		fs.Parse(opArgs)
		result, err = engine.FindDefines(arg(fs, 0))

	case "impact":
		fs := flag.NewFlagSet("impact", flag.ExitOnError)
		maxDepth := fs.Int("max-depth", -1, "Hop limit; 0 = root only, negative = unbounded")
		fs.Parse(opArgs)
		result, err = engine.AnalyzeImpact(arg(fs, 0), *maxDepth)

	case "dependencies":
		fs := flag.NewFlagSet("dependencies", flag.ExitOnError)
		fs.Parse(opArgs)
		result, err = engine.GetDependencies(arg(fs, 0))

	case "info":
		result = engine.GetIndexInfo()

	case "search":
		fs := flag.NewFlagSet("search", flag.ExitOnError)
		limit := fs.Int("limit", 50, "Maximum results")
		kindStr := fs.String("kind", "", "Restrict to one symbol kind")
		module := fs.String("module", "", "Restrict to a module path prefix")
		fs.Parse(opArgs)
		var kind *types.SymbolKind
		if *kindStr != "" {
			k, ok := parseSymbolKind(*kindStr)
			if !ok {
				err = coderr.NewValidationError("kind", "unrecognized symbol kind "+*kindStr)
				break
			}
			kind = &k
		}
		result, err = engine.SearchSymbols(arg(fs, 0), *limit, kind, *module)

	case "semantic":
		fs := flag.NewFlagSet("semantic", flag.ExitOnError)
		limit := fs.Int("limit", 10, "Maximum results")
		threshold := fs.Float64("threshold", 0, "Minimum similarity score")
		fs.Parse(opArgs)
		result, err = engine.SemanticSearchDocs(ctx, arg(fs, 0), *limit, *threshold)

	case "semantic-context":
		fs := flag.NewFlagSet("semantic-context", flag.ExitOnError)
		limit := fs.Int("limit", 10, "Maximum results")
		fs.Parse(opArgs)
		result, err = engine.SemanticSearchWithContext(ctx, arg(fs, 0), *limit)

	default:
		fmt.Fprintf(os.Stderr, "unknown retrieve operation: %s\n", op)
		os.Exit(1)
	}

	if err != nil {
		coderr.Fatal(err, globals.JSON)
		return
	}

	enc, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(enc))
}

func arg(fs *flag.FlagSet, i int) string {
	rest := fs.Args()
	if i >= len(rest) {
		return ""
	}
	return rest[i]
}

func parseSymbolKind(s string) (types.SymbolKind, bool) {
	for k := types.KindFunction; k <= types.KindOther; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
