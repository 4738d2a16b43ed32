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
// Author: Marc Berhault (peter@cockroachlabs.com)

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var sqlCmd = &cobra.Command{
	Use:   "sql [query]",
	Short: "run a single query against a namespace",
	Long: `
	Runs one SELECT statement (or, if the argument parses as a JSON
	object, a JSON-DSL query document) against the DSN named by --dsn
	and prints the matched items, then exits.
	`,
	SilenceUsage: true,
	RunE:         runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	conn, err := dial(cliContext.dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()

	if cliContext.file != "" {
		return runScript(ctx, conn, cliContext.file)
	}

	q := cliContext.execute
	if q == "" {
		if len(args) != 1 {
			mustUsage(cmd)
			return errors.New("expected a query argument, --execute, or --file")
		}
		q = args[0]
	}
	return runQuery(ctx, conn, q, os.Stdout)
}

// runScript runs each non-empty line of path as a query, in order,
// stopping at the first error, per reindexer_tool.cc's "-f" one-shot
// batch mode.
func runScript(ctx context.Context, conn sqlConn, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runQuery(ctx, conn, line, os.Stdout); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// runQuery runs q (SQL text, or a JSON object recognized by a leading
// '{') against conn and pretty-prints the result to w, the shared tail
// of both "kvindex sql" and the repl's per-line dispatch.
func runQuery(ctx context.Context, conn sqlConn, q string, w *os.File) error {
	var (
		items [][]byte
		total int
		err   error
	)
	if strings.HasPrefix(strings.TrimSpace(q), "{") {
		items, total, err = conn.SelectJSON(ctx, []byte(q))
	} else {
		items, total, err = conn.SelectSQL(ctx, q)
	}
	if err != nil {
		return err
	}

	headers, rows := rowsFromItems(items)
	truncatedByFlag := false
	if max := cliContext.maxResults; max > 0 && len(rows) > max {
		rows = rows[:max]
		truncatedByFlag = true
	}
	if err := printQueryOutput(w, cliContext.outputFormat, headers, rows); err != nil {
		return err
	}
	if total > len(items) || truncatedByFlag {
		w.WriteString("(truncated: " + strconv.Itoa(total) + " total matches)\n")
	}
	return nil
}

// rowsFromItems flattens a set of JSON item documents into a table:
// the header row is the union of every document's top-level keys, in
// first-seen order, and each item contributes one row of stringified
// values (json.RawMessage compact text for nested values).
func rowsFromItems(items [][]byte) (headers []string, rows [][]string) {
	seen := map[string]bool{}
	docs := make([]map[string]json.RawMessage, 0, len(items))
	for _, raw := range items {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
		for k := range doc {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	for _, doc := range docs {
		row := make([]string, len(headers))
		for i, h := range headers {
			if v, ok := doc[h]; ok {
				row[i] = string(v)
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}
