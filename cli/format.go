// Copyright 2017 The Cockroach Authors.
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

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// outputFormat is a pflag.Value-shaped enum selecting how
// printQueryOutput renders rows, filling the role
// cli/flags.go's balance-mode custom Value plays for an enum flag.
type outputFormat string

const (
	outputTable outputFormat = "table"
	outputCSV   outputFormat = "csv"
	outputJSON  outputFormat = "json"
)

func (f *outputFormat) String() string { return string(*f) }
func (f *outputFormat) Type() string   { return "string" }

func (f *outputFormat) Set(s string) error {
	switch outputFormat(s) {
	case outputTable, outputCSV, outputJSON:
		*f = outputFormat(s)
		return nil
	default:
		return fmt.Errorf("invalid output format %q (want table, csv, or json)", s)
	}
}

// printQueryOutput renders headers/rows to w in the requested format,
// following format_table.go's tablewriter-based rendering for the
// default table case and adding csv/json siblings for scripting use.
func printQueryOutput(w io.Writer, format outputFormat, headers []string, rows [][]string) error {
	switch format {
	case outputCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(headers); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()

	case outputJSON:
		docs := make([]map[string]string, len(rows))
		for i, row := range rows {
			doc := make(map[string]string, len(headers))
			for j, h := range headers {
				if j < len(row) {
					doc[h] = row[j]
				}
			}
			docs[i] = doc
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)

	default:
		table := tablewriter.NewWriter(w)
		table.SetHeader(headers)
		table.SetAutoFormatHeaders(false)
		table.AppendBulk(rows)
		table.Render()
		fmt.Fprintf(w, "(%d rows)\n", len(rows))
		return nil
	}
}
