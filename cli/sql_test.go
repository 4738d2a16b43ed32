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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowsFromItems(t *testing.T) {
	items := [][]byte{
		[]byte(`{"id":"a","age":1}`),
		[]byte(`{"id":"b","name":"bob"}`),
	}
	headers, rows := rowsFromItems(items)
	require.ElementsMatch(t, []string{"id", "age", "name"}, headers)
	require.Len(t, rows, 2)
}

func TestRowsFromItemsSkipsUnparsable(t *testing.T) {
	items := [][]byte{[]byte(`not json`), []byte(`{"id":"a"}`)}
	headers, rows := rowsFromItems(items)
	require.Equal(t, []string{"id"}, headers)
	require.Len(t, rows, 1)
}

func TestRunQueryAgainstBuiltinConn(t *testing.T) {
	dir := t.TempDir()
	conn, err := dialBuiltin(dir)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.reg.OpenNamespace(usersDef())
	require.NoError(t, err)
	ctx := context.Background()
	_, err = conn.Insert(ctx, "users", []byte(`{"id":"u1","age":30}`))
	require.NoError(t, err)

	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	prev := cliContext.outputFormat
	cliContext.outputFormat = outputJSON
	defer func() { cliContext.outputFormat = prev }()

	require.NoError(t, runQuery(ctx, conn, "SELECT * FROM users", out))

	stat, err := out.Stat()
	require.NoError(t, err)
	require.NotZero(t, stat.Size())
}

func TestRunScriptRunsEachLine(t *testing.T) {
	dir := t.TempDir()
	conn, err := dialBuiltin(dir)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.reg.OpenNamespace(usersDef())
	require.NoError(t, err)
	ctx := context.Background()
	_, err = conn.Insert(ctx, "users", []byte(`{"id":"u1","age":30}`))
	require.NoError(t, err)

	script := filepath.Join(t.TempDir(), "script.sql")
	require.NoError(t, os.WriteFile(script, []byte("\nSELECT * FROM users\nSELECT * FROM users\n"), 0o644))

	require.NoError(t, runScript(ctx, conn, script))
}
