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
// Author: Daniel Theophanes (kardianos@gmail.com)

package cli

import (
	"github.com/kr/text"
	"github.com/spf13/cobra"

	"github.com/kvindex/kvindex/cli/cliflags"
)

var flagUsage = map[string]string{
	cliflags.DSN: wrapText(`
The connection string to dial: "builtin://<storage-dir>" opens the
embedded core in-process against a local data directory,
"cproto://<host:port>" dials a running server's binary RPC listener.`),
	cliflags.Execute: wrapText(`
Run a single statement (SQL or a JSON query document) and exit, instead
of starting an interactive shell.`),
	cliflags.File: wrapText(`
Run each non-empty line of a file as a statement, in order, stopping at
the first error.`),
	cliflags.Output: wrapText(`
How to render query results: "table" (default), "csv", or "json".`),
	cliflags.MaxResults: wrapText(`
Cap the number of rows a scan-style command prints.`),
	cliflags.Schema: wrapText(`
Path to a YAML namespace definition file (or a directory of them) to
open at startup, per nsdef.NewYAML.`),
}

const wrapWidth = 79

func wrapText(s string) string {
	return text.Wrap(s, wrapWidth)
}

func usage(name string) string {
	s := flagUsage[name]
	if len(s) == 0 {
		return ""
	}
	if s[0] != '\n' {
		s = "\n" + s
	}
	if s[len(s)-1] != '\n' {
		s = s + "\n"
	}
	return text.Indent(s, "        ")
}

// initFlags wires ctx's fields onto every subcommand's flag set. Kept
// in sync with the commands registered in cli.go.
func initFlags(ctx *Context) {
	{
		f := startCmd.Flags()
		ctx.Config.BindFlags(f)
		f.StringVar(&ctx.schemaPath, cliflags.Schema, ctx.schemaPath, usage(cliflags.Schema))
	}

	clientCmds := []*cobra.Command{sqlCmd, replCmd, namespaceCmd, dumpCmd, restoreCmd}
	for _, cmd := range clientCmds {
		f := cmd.PersistentFlags()
		f.StringVarP(&ctx.dsn, cliflags.DSN, "d", ctx.dsn, usage(cliflags.DSN))
	}

	{
		f := sqlCmd.Flags()
		f.StringVarP(&ctx.execute, cliflags.Execute, "c", ctx.execute, usage(cliflags.Execute))
		f.StringVarP(&ctx.file, cliflags.File, "f", ctx.file, usage(cliflags.File))
		f.VarP(&ctx.outputFormat, cliflags.Output, "o", usage(cliflags.Output))
		f.IntVar(&ctx.maxResults, cliflags.MaxResults, ctx.maxResults, usage(cliflags.MaxResults))
	}

	{
		f := replCmd.Flags()
		f.VarP(&ctx.outputFormat, cliflags.Output, "o", usage(cliflags.Output))
		f.IntVar(&ctx.maxResults, cliflags.MaxResults, ctx.maxResults, usage(cliflags.MaxResults))
	}
}

func init() {
	initFlags(cliContext)
}
