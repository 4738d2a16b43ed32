// Copyright 2015 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.
//
// Author: Peter Mattis (peter@cockroachlabs.com)

// Package cli implements the kvindex command-line tool: a cobra
// command tree covering server bring-up ("start"), one-shot and
// interactive querying ("sql", "repl") and administrative commands
// ("namespace", "dump", "restore", "debug"), matching the DSN-driven
// shape of reindexer_tool.cc.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cliContext holds the process-wide flag values every subcommand reads
// from, mirroring context.go/flags.go's single package-level Context
// instance threaded through initFlags.
var cliContext = NewContext()

var kvindexCmd = &cobra.Command{
	Use:   "kvindex",
	Short: "an in-memory, indexed document store",
	Long: `
kvindex is an in-memory, indexed document store with a SQL-like and
JSON-DSL query surface, a REST gateway and a binary RPC protocol.
`,
	SilenceErrors: true,
}

func init() {
	kvindexCmd.AddCommand(
		startCmd,
		sqlCmd,
		replCmd,
		namespaceCmd,
		dumpCmd,
		restoreCmd,
		debugCmd,
	)
}

// Run executes the kvindex command tree against args (typically
// os.Args[1:]) and returns the process exit code.
func Run(args []string) int {
	kvindexCmd.SetArgs(args)
	if err := kvindexCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
