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

package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutputFormatSet(t *testing.T) {
	var f outputFormat
	require.NoError(t, f.Set("csv"))
	require.Equal(t, outputCSV, f)
	require.Error(t, f.Set("xml"))
}

func TestPrintQueryOutputCSV(t *testing.T) {
	var buf bytes.Buffer
	err := printQueryOutput(&buf, outputCSV, []string{"id", "age"}, [][]string{{"u1", "30"}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "u1,30")
}

func TestPrintQueryOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	err := printQueryOutput(&buf, outputJSON, []string{"id"}, [][]string{{"u1"}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"id": "u1"`)
}

func TestPrintQueryOutputTable(t *testing.T) {
	var buf bytes.Buffer
	err := printQueryOutput(&buf, outputTable, []string{"id"}, [][]string{{"u1"}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "u1")
	require.Contains(t, buf.String(), "(1 rows)")
}
