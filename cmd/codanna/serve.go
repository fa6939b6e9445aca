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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/mcpserver"
	"github.com/bartolli/codanna/internal/tools"
)

// runServe starts the MCP server over stdio, mirroring the teacher's
// runMCPServer (cmd/cie/mcp.go) but delegating tool registration entirely
// to internal/mcpserver rather than building the protocol glue inline.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	env, err := openEnvironment(".")
	if err != nil {
		coderr.Fatal(err, true)
		return
	}
	defer env.Close()

	engine := tools.New(env.idx, env.vec, env.embedder)
	srv := mcpserver.New(engine, version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server: %v\n", err)
		os.Exit(1)
	}
}
