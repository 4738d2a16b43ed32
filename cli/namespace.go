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
// Author: Cuong Do (cdo@cockroachlabs.com)

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// namespaceStatResponse mirrors restapi's namespaceStat JSON body just
// enough to pull out the columns this command prints.
type namespaceStatResponse struct {
	Name            string
	ItemsCount      int
	EmptyItemsCount int
	Version         int64
}

var lsNamespacesColumnHeaders = []string{"name"}

var lsNamespacesCmd = &cobra.Command{
	Use:   "ls",
	Short: "lists the open namespaces of a builtin:// data directory",
	Long: `
	Displays the names of every namespace with a saved meta record under
	the builtin:// storage directory named by --dsn.
	`,
	SilenceUsage: true,
	RunE:         runLsNamespaces,
}

func runLsNamespaces(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		mustUsage(cmd)
	}

	conn, err := dial(cliContext.dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	mc, ok := conn.(mutableConn)
	if !ok {
		return fmt.Errorf("namespace ls requires a builtin:// DSN, got %q", cliContext.dsn)
	}

	names, err := mc.Namespaces(context.Background())
	if err != nil {
		return err
	}

	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name}
	}
	return printQueryOutput(os.Stdout, cliContext.outputFormat, lsNamespacesColumnHeaders, rows)
}

var statNamespaceColumnHeaders = []string{"name", "items", "empty_items", "version"}

var statNamespaceCmd = &cobra.Command{
	Use:   "stat <namespace>",
	Short: "shows point-in-time statistics for one namespace",
	Long: `
	Fetches item count, empty-item count and schema version for the
	given namespace from the REST gateway at the configured HTTP address
	(127.0.0.1:6535 by default; this command binds no flag to change it).
	`,
	SilenceUsage: true,
	RunE:         runStatNamespace,
}

func runStatNamespace(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		mustUsage(cmd)
		return fmt.Errorf("expected exactly one namespace name")
	}

	var stat namespaceStatResponse
	path := "/api/v1/db/default/namespaces/" + args[0]
	if err := getJSON(cliContext.Config.HTTPAddr, path, &stat); err != nil {
		return err
	}

	rows := [][]string{{
		stat.Name,
		fmt.Sprintf("%d", stat.ItemsCount),
		fmt.Sprintf("%d", stat.EmptyItemsCount),
		fmt.Sprintf("%d", stat.Version),
	}}
	return printQueryOutput(os.Stdout, cliContext.outputFormat, statNamespaceColumnHeaders, rows)
}

var namespaceCmds = []*cobra.Command{
	lsNamespacesCmd,
	statNamespaceCmd,
}

var namespaceCmd = &cobra.Command{
	Use:   "namespace [command]",
	Short: "list namespaces and show their status",
	Long:  "List namespaces and show their status.",
	Run: func(cmd *cobra.Command, args []string) {
		mustUsage(cmd)
	},
}

func init() {
	namespaceCmd.AddCommand(namespaceCmds...)
}
