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

package cli

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForEachAndInsertRoundTrip(t *testing.T) {
	src := t.TempDir()
	conn, err := dialBuiltin(src)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.reg.OpenNamespace(usersDef())
	require.NoError(t, err)
	ctx := context.Background()
	for _, doc := range []string{
		`{"id":"u1","age":30}`,
		`{"id":"u2","age":40}`,
	} {
		_, err := conn.Insert(ctx, "users", []byte(doc))
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "users.ndjson")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := bufio.NewWriter(f)
	count := 0
	require.NoError(t, conn.ForEach(ctx, "users", func(doc []byte) error {
		if _, err := w.Write(doc); err != nil {
			return err
		}
		count++
		return w.WriteByte('\n')
	}))
	require.NoError(t, w.Flush())
	require.NoError(t, f.Close())
	require.Equal(t, 2, count)

	dst := t.TempDir()
	restoreConn, err := dialBuiltin(dst)
	require.NoError(t, err)
	defer restoreConn.Close()
	_, err = restoreConn.reg.OpenNamespace(usersDef())
	require.NoError(t, err)

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()
	scanner := bufio.NewScanner(in)
	restored := 0
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		_, err := restoreConn.Insert(ctx, "users", append([]byte(nil), scanner.Bytes()...))
		require.NoError(t, err)
		restored++
	}
	require.Equal(t, 2, restored)

	names, err := restoreConn.Namespaces(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, names)
}
