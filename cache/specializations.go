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

import "github.com/kvindex/kvindex/index"

// Default capacities, in items, for the three namespace-scoped caches
// of spec.md §4.6. These are conservative in-memory defaults; a real
// deployment would size them from configuration (serverconfig.Config).
const (
	DefaultIdSetCapacity = 4096
	DefaultJoinCapacity  = 1024
	DefaultQueryCapacity = 1024
	DefaultHitCountLimit = 2
)

// IdSetKey identifies one SelectKey call's result: a field, condition,
// and the fingerprint of its operand values.
type IdSetKey struct {
	Field      string
	Cond       index.Condition
	ValuesHash uint64
}

// IdSetCache memoizes SelectKey results, avoiding a repeat descent into
// an index's backing structure for a repeated predicate.
type IdSetCache = LRU[IdSetKey, *index.IDSet]

// NewIdSetCache builds an IdSetCache sized in entry count.
func NewIdSetCache() *IdSetCache {
	return New[IdSetKey, *index.IDSet](DefaultIdSetCapacity, DefaultHitCountLimit)
}

// JoinKey identifies a cached join sub-query result, per spec.md §4.4:
// "the join cache keys on (Q2 shape, bound value)". Version pins the
// owning namespace's version at cache time, mirroring QueryKey, so a
// join result computed against namespace N2 is dropped once N2 changes
// even though the cache itself lives on N1's side of the join.
type JoinKey struct {
	SubQueryFingerprint   string
	BoundValueFingerprint string
	Version               int64
}

// JoinCache memoizes a join subquery's resulting IdSet per bound value.
type JoinCache = LRU[JoinKey, *index.IDSet]

// NewJoinCache builds a JoinCache sized in entry count.
func NewJoinCache() *JoinCache {
	return New[JoinKey, *index.IDSet](DefaultJoinCapacity, DefaultHitCountLimit)
}

// QueryKey identifies a cached top-level Select result, keyed by the
// query's fingerprint and the namespace version observed when it was
// computed, per spec.md §4.5: "QueryCache entries embed this version
// and are invalidated on mismatch".
type QueryKey struct {
	Fingerprint string
	Version     int64
}

// QueryResult is the cached shape of a completed Select: the ordered
// rowIds plus a total count (-1 if not requested).
type QueryResult struct {
	RowIDs     []int
	TotalCount int
}

// QueryCache memoizes whole-query results.
type QueryCache = LRU[QueryKey, QueryResult]

// NewQueryCache builds a QueryCache sized in entry count.
func NewQueryCache() *QueryCache {
	return New[QueryKey, QueryResult](DefaultQueryCapacity, DefaultHitCountLimit)
}

// InvalidateVersion drops every QueryCache entry from a stale namespace
// version, per spec.md §5's "bump the namespace version, invalidating
// QueryCache and JoinCache for that namespace".
func InvalidateVersion(c *QueryCache, currentVersion int64) {
	c.Invalidate(func(k QueryKey) bool { return k.Version != currentVersion })
}

// InvalidateJoinVersion drops every JoinCache entry computed against a
// stale version of the joined-into namespace, mirroring InvalidateVersion.
func InvalidateJoinVersion(c *JoinCache, currentVersion int64) {
	c.Invalidate(func(k JoinKey) bool { return k.Version != currentVersion })
}
