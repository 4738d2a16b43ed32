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
	"github.com/google/btree"

	"github.com/kvindex/kvindex/keyval"
)

const orderedTreeDegree = 32

// orderedEntry is a single key's node in the tree, holding every rowId
// currently mapped to that key.
type orderedEntry struct {
	tree *Ordered
	key  keyval.Value
	ids  *IDSet
}

// Less implements btree.Item, ordering entries by key under the index's
// collation.
func (e *orderedEntry) Less(than btree.Item) bool {
	o := than.(*orderedEntry)
	return e.key.Compare(o.key, e.tree.collate) < 0
}

// Ordered is a B-tree-backed index answering range and comparison
// conditions, and additionally able to emit its rowIds pre-sorted by
// key (SortedProvider), per spec.md §4.2 and §4.4.
type Ordered struct {
	name    string
	kind    keyval.Type
	opts    Options
	collate keyval.CollateOpts
	tree    *btree.BTree
}

// NewOrdered builds an empty Ordered index.
func NewOrdered(name string, kind keyval.Type, opts Options, collate keyval.CollateOpts) *Ordered {
	return &Ordered{
		name:    name,
		kind:    kind,
		opts:    opts,
		collate: collate,
		tree:    btree.New(orderedTreeDegree),
	}
}

// Kind implements Index.
func (o *Ordered) Kind() Kind { return KindOrdered }

// Options implements Index.
func (o *Ordered) Options() Options { return o.opts }

// FieldName implements Index.
func (o *Ordered) FieldName() string { return o.name }

// ValueType implements Index.
func (o *Ordered) ValueType() keyval.Type { return o.kind }

func (o *Ordered) probe(key keyval.Value) *orderedEntry {
	item := o.tree.Get(&orderedEntry{tree: o, key: key})
	if item == nil {
		return nil
	}
	return item.(*orderedEntry)
}

// Lookup implements UniqueChecker.
func (o *Ordered) Lookup(key keyval.Value) (int, bool) {
	e := o.probe(key)
	if e == nil || e.ids.Empty() {
		return 0, false
	}
	return e.ids.ToSlice()[0], true
}

// Upsert implements Index.
func (o *Ordered) Upsert(key keyval.Value, rowID int) error {
	if o.opts.IsUnique() {
		if existing, ok := o.Lookup(key); ok && existing != rowID {
			return errors.Newf("duplicate key %v in unique index %q (existing rowId %d, new rowId %d)",
				key, o.name, existing, rowID)
		}
	}
	e := o.probe(key)
	if e == nil {
		e = &orderedEntry{tree: o, key: key, ids: NewIDSet()}
		o.tree.ReplaceOrInsert(e)
	}
	e.ids.Add(rowID)
	return nil
}

// Delete implements Index.
func (o *Ordered) Delete(key keyval.Value, rowID int) {
	e := o.probe(key)
	if e == nil {
		return
	}
	e.ids.Remove(rowID)
	if e.ids.Empty() {
		o.tree.Delete(e)
	}
}

// SelectKey implements Index, supporting the full comparison family
// plus Set (evaluated as a union of point lookups), Empty and Any.
func (o *Ordered) SelectKey(cond Condition, values []keyval.Value, opts keyval.CollateOpts) (*IDSet, error) {
	switch cond {
	case Eq:
		if len(values) != 1 {
			return nil, errors.Newf("Eq expects exactly one value, got %d", len(values))
		}
		e := o.probe(values[0])
		if e == nil {
			return NewIDSet(), nil
		}
		return e.ids.Clone(), nil
	case Set:
		sets := make([]*IDSet, 0, len(values))
		for _, v := range values {
			if e := o.probe(v); e != nil {
				sets = append(sets, e.ids)
			}
		}
		return Union(sets...), nil
	case Lt:
		return o.rangeSelect(&values[0], false), nil
	case Le:
		return o.rangeSelect(&values[0], true), nil
	case Gt:
		return o.rangeSelectFrom(&values[0], false), nil
	case Ge:
		return o.rangeSelectFrom(&values[0], true), nil
	case Range:
		if len(values) != 2 {
			return nil, errors.Newf("Range expects exactly two values, got %d", len(values))
		}
		lo, hi := values[0], values[1]
		if lo.Compare(hi, o.collate) > 0 {
			return NewIDSet(), nil
		}
		result := NewIDSet()
		o.tree.AscendRange(&orderedEntry{tree: o, key: lo}, &orderedEntry{tree: o, key: hi}, func(item btree.Item) bool {
			e := item.(*orderedEntry)
			e.ids.ForEach(result.Add)
			return true
		})
		// AscendRange's upper bound is exclusive; pick up hi itself.
		if e := o.probe(hi); e != nil {
			e.ids.ForEach(result.Add)
		}
		return result, nil
	case Empty:
		return o.emptySet(), nil
	case Any:
		result := NewIDSet()
		o.tree.Ascend(func(item btree.Item) bool {
			e := item.(*orderedEntry)
			if e.key.IsNil() {
				return true
			}
			e.ids.ForEach(result.Add)
			return true
		})
		return result, nil
	default:
		return nil, ErrUnsupportedCondition
	}
}

func (o *Ordered) rangeSelect(hi *keyval.Value, inclusive bool) *IDSet {
	result := NewIDSet()
	o.tree.Ascend(func(item btree.Item) bool {
		e := item.(*orderedEntry)
		c := e.key.Compare(*hi, o.collate)
		if c > 0 || (!inclusive && c == 0) {
			return false
		}
		e.ids.ForEach(result.Add)
		return true
	})
	return result
}

func (o *Ordered) rangeSelectFrom(lo *keyval.Value, inclusive bool) *IDSet {
	result := NewIDSet()
	o.tree.AscendGreaterOrEqual(&orderedEntry{tree: o, key: *lo}, func(item btree.Item) bool {
		e := item.(*orderedEntry)
		if !inclusive && e.key.Compare(*lo, o.collate) == 0 {
			return true
		}
		e.ids.ForEach(result.Add)
		return true
	})
	return result
}

func (o *Ordered) emptySet() *IDSet {
	if e := o.probe(keyval.NullValue()); e != nil {
		return e.ids.Clone()
	}
	return NewIDSet()
}

// SortedIDs implements SortedProvider, walking the tree in key order
// and concatenating each key's rowIds.
func (o *Ordered) SortedIDs(reverse bool) []int {
	out := make([]int, 0, o.tree.Len())
	visit := func(item btree.Item) bool {
		e := item.(*orderedEntry)
		out = append(out, e.ids.ToSlice()...)
		return true
	}
	if reverse {
		o.tree.Descend(visit)
	} else {
		o.tree.Ascend(visit)
	}
	return out
}

// MemStat implements Index.
func (o *Ordered) MemStat() MemStat {
	ids := 0
	o.tree.Ascend(func(item btree.Item) bool {
		ids += item.(*orderedEntry).ids.Len()
		return true
	})
	return MemStat{Kind: KindOrdered, KeyCount: o.tree.Len(), IDCount: ids}
}

// Commit implements Index; Ordered is eagerly maintained.
func (o *Ordered) Commit() {}
