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

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// replCmd is the interactive shell over a dial()ed connection,
// grounded on reindexer_tool.cc's read-eval-print loop: read a line
// from stdin, dispatch a "\"-prefixed meta-command or hand the line to
// the query engine as SQL/JSON, print the result, repeat until "\quit"
// or EOF.
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "start an interactive shell against a namespace store",
	Long: `
	Reads statements from standard input, one per line. Lines beginning
	with "\" are meta-commands (\help, \quit, \databases); anything else
	is run as a SELECT statement or, if it parses as a JSON object, a
	JSON-DSL query document.
	`,
	SilenceUsage: true,
	RunE:         runREPL,
}

const replHelp = `
Meta-commands:
  \help        show this message
  \databases   list the namespaces open on this connection (builtin:// only)
  \quit        exit the shell

Anything else is run as a query: either "SELECT * FROM ns WHERE ..." or
a JSON-DSL document like {"namespace":"ns","where":[...]}.
`

func runREPL(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		mustUsage(cmd)
	}

	conn, err := dial(cliContext.dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintln(os.Stdout, "kvindex interactive shell. Type \\help for help, \\quit to exit.")

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, "kvindex> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, `\`) {
			if quit := dispatchMeta(ctx, conn, line); quit {
				break
			}
			continue
		}

		if err := runQuery(ctx, conn, line, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
		}
	}
	return scanner.Err()
}

// dispatchMeta handles one "\"-prefixed line and reports whether the
// shell should exit.
func dispatchMeta(ctx context.Context, conn sqlConn, line string) (quit bool) {
	switch strings.Fields(line)[0] {
	case `\quit`, `\q`:
		return true
	case `\help`, `\h`:
		fmt.Fprint(os.Stdout, replHelp)
	case `\databases`, `\d`:
		mc, ok := conn.(mutableConn)
		if !ok {
			fmt.Fprintln(os.Stderr, "ERROR: \\databases requires a builtin:// DSN")
			return false
		}
		names, err := mc.Namespaces(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			return false
		}
		for _, name := range names {
			fmt.Fprintln(os.Stdout, name)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown meta-command %q, try \\help\n", line)
	}
	return false
}
