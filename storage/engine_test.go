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

package storage

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

func newMemEngine(t *testing.T) *PebbleEngine {
	t.Helper()
	e, err := OpenPebbleWithOptions("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func TestEngineWriteReadDelete(t *testing.T) {
	e := newMemEngine(t)

	_, ok, err := e.Read([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, e.Write([]byte("k1"), []byte("v1")))
	v, ok, err := e.Read([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, e.Delete([]byte("k1")))
	_, ok, err = e.Read([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEngineIterateWithPrefixStopsAtBoundary(t *testing.T) {
	e := newMemEngine(t)
	require.NoError(t, e.Write([]byte("a:1"), []byte("1")))
	require.NoError(t, e.Write([]byte("a:2"), []byte("2")))
	require.NoError(t, e.Write([]byte("b:1"), []byte("3")))

	var got []string
	err := e.IterateWithPrefix([]byte("a:"), func(key, value []byte) (bool, error) {
		got = append(got, string(key)+"="+string(value))
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a:1=1", "a:2=2"}, got)
}

func TestEngineIterateWithPrefixEarlyStop(t *testing.T) {
	e := newMemEngine(t)
	require.NoError(t, e.Write([]byte("a:1"), []byte("1")))
	require.NoError(t, e.Write([]byte("a:2"), []byte("2")))

	count := 0
	err := e.IterateWithPrefix([]byte("a:"), func(key, value []byte) (bool, error) {
		count++
		return false, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestEngineBatchCommitIsAtomicallyVisible(t *testing.T) {
	e := newMemEngine(t)
	b := e.NewBatch()
	b.Write([]byte("x"), []byte("1"))
	b.Write([]byte("y"), []byte("2"))
	require.NoError(t, b.Commit())

	for _, kv := range [][2]string{{"x", "1"}, {"y", "2"}} {
		v, ok, err := e.Read([]byte(kv[0]))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte(kv[1]), v)
	}
}

func TestEngineSyncSucceeds(t *testing.T) {
	e := newMemEngine(t)
	require.NoError(t, e.Write([]byte("k"), []byte("v")))
	require.NoError(t, e.Sync())
}
