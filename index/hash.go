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

import (
	"github.com/cockroachdb/errors"

	"github.com/kvindex/kvindex/keyval"
)

// Hash is an unordered map from a scalar key to an IDSet. It answers Eq
// and Set conditions in O(1)/O(|values|), but nothing order-dependent
// (spec.md §4.2).
type Hash struct {
	name  string
	kind  keyval.Type
	opts  Options
	byKey map[keyval.Value]*IDSet
	empty *IDSet // never populated; Empty/Any are answered from byKey's Null entry
}

// NewHash builds an empty Hash index over a field of the given scalar
// kind.
func NewHash(name string, kind keyval.Type, opts Options) *Hash {
	return &Hash{
		name:  name,
		kind:  kind,
		opts:  opts,
		byKey: make(map[keyval.Value]*IDSet),
	}
}

// Kind implements Index.
func (h *Hash) Kind() Kind { return KindHash }

// Options implements Index.
func (h *Hash) Options() Options { return h.opts }

// FieldName implements Index.
func (h *Hash) FieldName() string { return h.name }

// ValueType implements Index.
func (h *Hash) ValueType() keyval.Type { return h.kind }

// Lookup implements UniqueChecker: for a unique index it returns the
// single rowId currently mapped to key.
func (h *Hash) Lookup(key keyval.Value) (int, bool) {
	set, ok := h.byKey[key]
	if !ok || set.Empty() {
		return 0, false
	}
	return set.ToSlice()[0], true
}

// Upsert implements Index.
func (h *Hash) Upsert(key keyval.Value, rowID int) error {
	if h.opts.IsUnique() {
		if existing, ok := h.Lookup(key); ok && existing != rowID {
			return errors.Newf("duplicate key %v in unique index %q (existing rowId %d, new rowId %d)",
				key, h.name, existing, rowID)
		}
	}
	set, ok := h.byKey[key]
	if !ok {
		set = NewIDSet()
		h.byKey[key] = set
	}
	set.Add(rowID)
	return nil
}

// Delete implements Index.
func (h *Hash) Delete(key keyval.Value, rowID int) {
	set, ok := h.byKey[key]
	if !ok {
		return
	}
	set.Remove(rowID)
	if set.Empty() {
		delete(h.byKey, key)
	}
}

// SelectKey implements Index. Only Eq, Set, Empty and Any are
// meaningful for an unordered map.
func (h *Hash) SelectKey(cond Condition, values []keyval.Value, opts keyval.CollateOpts) (*IDSet, error) {
	switch cond {
	case Eq:
		if len(values) != 1 {
			return nil, errors.Newf("Eq expects exactly one value, got %d", len(values))
		}
		set, ok := h.byKey[values[0]]
		if !ok {
			return NewIDSet(), nil
		}
		return set.Clone(), nil
	case Set:
		// Set degenerates to a series of Eq lookups unioned together,
		// per spec.md §4.3's Set-to-Eq optimization; default collation
		// lets Value itself serve as the map key, so no linear scan is
		// needed here.
		if opts.Mode != keyval.CollateNone {
			return nil, ErrUnsupportedCondition
		}
		sets := make([]*IDSet, 0, len(values))
		for _, v := range values {
			if set, ok := h.byKey[v]; ok {
				sets = append(sets, set)
			}
		}
		return Union(sets...), nil
	case Empty:
		return h.emptySet(), nil
	case Any:
		return h.anySet(), nil
	default:
		return nil, ErrUnsupportedCondition
	}
}

func (h *Hash) emptySet() *IDSet {
	if set, ok := h.byKey[keyval.NullValue()]; ok {
		return set.Clone()
	}
	return NewIDSet()
}

func (h *Hash) anySet() *IDSet {
	all := make([]*IDSet, 0, len(h.byKey))
	for k, set := range h.byKey {
		if k == keyval.NullValue() {
			continue
		}
		all = append(all, set)
	}
	return Union(all...)
}

// MemStat implements Index.
func (h *Hash) MemStat() MemStat {
	ids := 0
	for _, set := range h.byKey {
		ids += set.Len()
	}
	return MemStat{Kind: KindHash, KeyCount: len(h.byKey), IDCount: ids}
}

// Commit implements Index; Hash is eagerly maintained, so this is a
// no-op.
func (h *Hash) Commit() {}

// ErrUnsupportedCondition is returned by SelectKey when the index
// variant cannot evaluate the requested condition; the planner falls
// back to a column scan or a residual comparator.
var ErrUnsupportedCondition = errors.New("index: condition not supported by this index kind")
