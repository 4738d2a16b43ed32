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

package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUEvictsColdEntriesFirst(t *testing.T) {
	c := New[string, int](3, 2)
	c.Put("a", 1, 1, false)
	c.Put("b", 2, 1, false)
	c.Put("c", 3, 1, false)

	// "a" earns two hits and is promoted; "b" and "c" stay cold.
	_, _ = c.Get("a")
	_, _ = c.Get("a")

	c.Put("d", 4, 1, false)
	_, ok := c.Get("b")
	require.False(t, ok, "cold entry b should have been evicted before hot entry a")
	_, ok = c.Get("a")
	require.True(t, ok)
}

func TestLRURejectsOversizedEntry(t *testing.T) {
	c := New[string, int](2, 1)
	c.Put("big", 1, 10, false)
	_, ok := c.Get("big")
	require.False(t, ok)
	require.Equal(t, 0, c.Stats().ItemCount)
}

func TestLRUEmptyCountTracksPlaceholders(t *testing.T) {
	c := New[string, int](10, 1)
	c.Put("miss", 0, 1, true)
	c.Put("hit", 1, 1, false)
	require.Equal(t, 1, c.Stats().EmptyCount)
	require.Equal(t, 2, c.Stats().ItemCount)
}

func TestLRUInvalidateByPredicate(t *testing.T) {
	c := New[string, int](10, 1)
	c.Put("v1:a", 1, 1, false)
	c.Put("v1:b", 2, 1, false)
	c.Put("v2:a", 3, 1, false)

	c.Invalidate(func(k string) bool { return k[:2] == "v1" })
	require.Equal(t, 1, c.Stats().ItemCount)
	_, ok := c.Get("v2:a")
	require.True(t, ok)
}

func TestLRUPutReplacesExistingCost(t *testing.T) {
	c := New[string, int](5, 1)
	c.Put("k", 1, 2, false)
	c.Put("k", 2, 3, false)
	require.Equal(t, 3, c.Stats().Size)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestQueryCacheInvalidateVersion(t *testing.T) {
	qc := NewQueryCache()
	qc.Put(QueryKey{Fingerprint: "select *", Version: 1}, QueryResult{RowIDs: []int{1, 2}}, 1, false)
	qc.Put(QueryKey{Fingerprint: "select *", Version: 2}, QueryResult{RowIDs: []int{1, 2, 3}}, 1, false)

	InvalidateVersion(qc, 2)
	_, ok := qc.Get(QueryKey{Fingerprint: "select *", Version: 1})
	require.False(t, ok)
	res, ok := qc.Get(QueryKey{Fingerprint: "select *", Version: 2})
	require.True(t, ok)
	require.Equal(t, []int{1, 2, 3}, res.RowIDs)
}
