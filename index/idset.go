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

package index

import "github.com/RoaringBitmap/roaring/v2"

// IDSet is a sorted, deduplicated set of rowIds, per spec.md §4.1. It
// wraps a compressed bitmap so that intersecting and unioning the
// results of several index probes — the core of the planner's set
// algebra — stays cheap even for namespaces with millions of rows.
type IDSet struct {
	bm *roaring.Bitmap
}

// NewIDSet returns an empty set.
func NewIDSet() *IDSet {
	return &IDSet{bm: roaring.New()}
}

// idSetFromSlice builds a set from unsorted, possibly-duplicate rowIds.
func idSetFromSlice(ids []int) *IDSet {
	s := NewIDSet()
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set.
func (s *IDSet) Add(id int) { s.bm.Add(uint32(id)) }

// Remove deletes id from the set, a no-op if absent.
func (s *IDSet) Remove(id int) { s.bm.Remove(uint32(id)) }

// Contains reports whether id is a member.
func (s *IDSet) Contains(id int) bool { return s.bm.Contains(uint32(id)) }

// Len returns the number of members.
func (s *IDSet) Len() int { return int(s.bm.GetCardinality()) }

// Empty reports whether the set has no members.
func (s *IDSet) Empty() bool { return s.bm.IsEmpty() }

// Clone returns an independent copy.
func (s *IDSet) Clone() *IDSet { return &IDSet{bm: s.bm.Clone()} }

// ToSlice returns the set's members in ascending order.
func (s *IDSet) ToSlice() []int {
	out := make([]int, 0, s.Len())
	it := s.bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// ForEach calls f for every member in ascending order.
func (s *IDSet) ForEach(f func(id int)) {
	it := s.bm.Iterator()
	for it.HasNext() {
		f(int(it.Next()))
	}
}

// Union returns the union of sets, per spec.md §4.4's OR combinator.
// An empty argument list returns an empty set.
func Union(sets ...*IDSet) *IDSet {
	if len(sets) == 0 {
		return NewIDSet()
	}
	bms := make([]*roaring.Bitmap, len(sets))
	for i, s := range sets {
		bms[i] = s.bm
	}
	return &IDSet{bm: roaring.FastOr(bms...)}
}

// Intersect returns the intersection of sets, per spec.md §4.4's AND
// combinator (the driver's IdSet, narrowed by each secondary probe).
func Intersect(sets ...*IDSet) *IDSet {
	if len(sets) == 0 {
		return NewIDSet()
	}
	out := sets[0].Clone()
	for _, s := range sets[1:] {
		out.bm.And(s.bm)
	}
	return out
}

// Subtract returns the members of a that are not in b, used for NOT
// predicates evaluated against a fully materialized universe (spec.md
// §4.4's NOT combinator).
func Subtract(a, b *IDSet) *IDSet {
	out := a.Clone()
	out.bm.AndNot(b.bm)
	return out
}
