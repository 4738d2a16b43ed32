// Copyright 2016 The Cockroach Authors.
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
// Author: Raphael 'kena' Poss (knz@cockroachlabs.com)

package cli

import "github.com/kvindex/kvindex/serverconfig"

// Context contains global settings for the command-line client, mixing
// the embedded server's static configuration with the handful of
// fields that only make sense as a per-invocation CLI overlay (the DSN
// a client command dials, a one-shot statement to run and exit).
type Context struct {
	// Embed the server configuration; "kvindex start" binds every field
	// of it directly to flags via serverconfig.Config.BindFlags.
	serverconfig.Config

	// dsn is the connection string client commands (sql, namespace,
	// dump/restore) resolve against: "builtin://<storage-dir>" opens
	// the embedded core in-process, "cproto://<host:port>" dials a
	// running server's binary RPC listener.
	dsn string

	// execute is a single statement to run non-interactively, the
	// "-c"/"--execute" flag of "kvindex sql".
	execute string

	// file names a script of statements (one per line) to run
	// non-interactively, the "-f"/"--file" flag of "kvindex sql".
	file string

	// maxResults caps the number of rows "sql"/"repl" print per query;
	// zero means unlimited.
	maxResults int

	// outputFormat controls how "sql"/query results are rendered:
	// "table" (default), "csv", or "json".
	outputFormat outputFormat

	// schemaPath names a YAML namespace definition file, or a directory
	// of them, "kvindex start" opens at bring-up.
	schemaPath string
}

// NewContext returns a Context with default values.
func NewContext() *Context {
	ctx := &Context{}
	ctx.InitDefaults()
	return ctx
}

// InitDefaults sets up the default values for a Context.
func (ctx *Context) InitDefaults() {
	ctx.Config = serverconfig.Default()
	ctx.dsn = "builtin://" + ctx.Config.StorageDir
	ctx.outputFormat = outputTable
}
