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
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/kvindex/kvindex/keyval"
)

// compositeRef is the tuple of field values a composite index key is
// built from. It implements keyval.CompositeRef so it can travel inside
// an ordinary keyval.Value between callers and the index, matching how
// spec.md §4.2 describes a composite index key as a "(PayloadValue,
// fields) pair" without requiring the index package to depend on
// package payload.
type compositeRef struct {
	vals []keyval.Value
}

// NewCompositeKey wraps field values into a keyval.Value usable as a
// composite index key.
func NewCompositeKey(vals ...keyval.Value) keyval.Value {
	return keyval.FromComposite(&compositeRef{vals: vals})
}

// CompareFields implements keyval.CompositeRef.
func (r *compositeRef) CompareFields(other keyval.CompositeRef, opts keyval.CollateOpts) int {
	o, ok := other.(*compositeRef)
	if !ok || len(o.vals) != len(r.vals) {
		return 0
	}
	for i := range r.vals {
		if c := r.vals[i].Compare(o.vals[i], opts); c != 0 {
			return c
		}
	}
	return 0
}

// hashComposite implements the family's hash_composite(type, fields)
// primitive: an order-sensitive digest of a tuple's tagged values.
func hashComposite(vals []keyval.Value) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(buf[:], uint64(v.Type()))
		_, _ = h.Write(buf[:])
		switch v.Type() {
		case keyval.Int32, keyval.Int64:
			binary.LittleEndian.PutUint64(buf[:], uint64(v.Int64()))
			_, _ = h.Write(buf[:])
		case keyval.Double:
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.Double()))
			_, _ = h.Write(buf[:])
		case keyval.String:
			_, _ = h.Write([]byte(v.Str()))
		}
	}
	return h.Sum64()
}

// equalComposite implements the family's equal_composite(type, fields)
// primitive, used to resolve xxhash collisions inside a bucket.
func equalComposite(a, b []keyval.Value, opts keyval.CollateOpts) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Compare(b[i], opts) != 0 {
			return false
		}
	}
	return true
}

type compositeBucket struct {
	vals []keyval.Value
	ids  *IDSet
}

// Composite is a hash index over an ordered tuple of fields, keyed
// through hashComposite/equalComposite rather than Go map equality,
// since a keyval.Value carrying a Composite tag is not itself
// comparable with ==.
type Composite struct {
	name       string
	fieldKinds []keyval.Type
	opts       Options
	collate    keyval.CollateOpts
	buckets    map[uint64][]*compositeBucket
}

// NewComposite builds an empty Composite index over the given field
// kinds, in tuple order.
func NewComposite(name string, fieldKinds []keyval.Type, opts Options, collate keyval.CollateOpts) *Composite {
	return &Composite{
		name:       name,
		fieldKinds: fieldKinds,
		opts:       opts,
		collate:    collate,
		buckets:    make(map[uint64][]*compositeBucket),
	}
}

// Kind implements Index.
func (c *Composite) Kind() Kind { return KindComposite }

// Options implements Index.
func (c *Composite) Options() Options { return c.opts }

// FieldName implements Index.
func (c *Composite) FieldName() string { return c.name }

// ValueType implements Index.
func (c *Composite) ValueType() keyval.Type { return keyval.Composite }

func tupleOf(key keyval.Value) ([]keyval.Value, error) {
	ref, ok := key.Composite().(*compositeRef)
	if !ok {
		return nil, errors.Newf("composite index requires a value built with NewCompositeKey")
	}
	return ref.vals, nil
}

func (c *Composite) find(vals []keyval.Value) *compositeBucket {
	h := hashComposite(vals)
	for _, b := range c.buckets[h] {
		if equalComposite(b.vals, vals, c.collate) {
			return b
		}
	}
	return nil
}

// Lookup implements UniqueChecker.
func (c *Composite) Lookup(key keyval.Value) (int, bool) {
	vals, err := tupleOf(key)
	if err != nil {
		return 0, false
	}
	b := c.find(vals)
	if b == nil || b.ids.Empty() {
		return 0, false
	}
	return b.ids.ToSlice()[0], true
}

// Upsert implements Index.
func (c *Composite) Upsert(key keyval.Value, rowID int) error {
	vals, err := tupleOf(key)
	if err != nil {
		return err
	}
	if c.opts.IsUnique() {
		if existing, ok := c.Lookup(key); ok && existing != rowID {
			return errors.Newf("duplicate key in unique composite index %q (existing rowId %d, new rowId %d)",
				c.name, existing, rowID)
		}
	}
	b := c.find(vals)
	if b == nil {
		h := hashComposite(vals)
		b = &compositeBucket{vals: vals, ids: NewIDSet()}
		c.buckets[h] = append(c.buckets[h], b)
	}
	b.ids.Add(rowID)
	return nil
}

// Delete implements Index.
func (c *Composite) Delete(key keyval.Value, rowID int) {
	vals, err := tupleOf(key)
	if err != nil {
		return
	}
	h := hashComposite(vals)
	bucket := c.buckets[h]
	for i, b := range bucket {
		if !equalComposite(b.vals, vals, c.collate) {
			continue
		}
		b.ids.Remove(rowID)
		if b.ids.Empty() {
			c.buckets[h] = append(bucket[:i], bucket[i+1:]...)
		}
		return
	}
}

// SelectKey implements Index; only Eq and Set are meaningful for a
// hash-bucketed tuple.
func (c *Composite) SelectKey(cond Condition, values []keyval.Value, _ keyval.CollateOpts) (*IDSet, error) {
	switch cond {
	case Eq:
		if len(values) != 1 {
			return nil, errors.Newf("Eq expects exactly one composite value")
		}
		vals, err := tupleOf(values[0])
		if err != nil {
			return nil, err
		}
		b := c.find(vals)
		if b == nil {
			return NewIDSet(), nil
		}
		return b.ids.Clone(), nil
	case Set:
		sets := make([]*IDSet, 0, len(values))
		for _, v := range values {
			vals, err := tupleOf(v)
			if err != nil {
				return nil, err
			}
			if b := c.find(vals); b != nil {
				sets = append(sets, b.ids)
			}
		}
		return Union(sets...), nil
	default:
		return nil, ErrUnsupportedCondition
	}
}

// MemStat implements Index.
func (c *Composite) MemStat() MemStat {
	keys, ids := 0, 0
	for _, bucket := range c.buckets {
		keys += len(bucket)
		for _, b := range bucket {
			ids += b.ids.Len()
		}
	}
	return MemStat{Kind: KindComposite, KeyCount: keys, IDCount: ids}
}

// Commit implements Index; Composite is eagerly maintained.
func (c *Composite) Commit() {}
