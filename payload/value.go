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

package payload

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/kvindex/kvindex/keyval"
)

// Value is a PayloadValue: a variable-length record conforming to a
// Type. The fixed portion (raw) holds inline scalars or (arenaIndex,
// count) pairs for arrays and variable-width scalars (String,
// Composite); the variable portion lives in the strings/composites
// arenas.
//
// Per the design notes, ownership follows the first of the two
// suggested strategies: a small atomic refcount drives copy-on-write
// exactly as spec.md §3 describes, while Go's garbage collector — not
// manual frees — reclaims the backing arrays once the refcount-holding
// handles themselves are dropped.
type Value struct {
	typ  *Type
	refs *int32

	raw     []byte
	strings []string
	arrays  [][]keyval.Value
}

// NewValue allocates a zeroed record for t.
func NewValue(t *Type) *Value {
	one := int32(1)
	return &Value{
		typ:  t,
		refs: &one,
		raw:  make([]byte, t.TotalSize()),
	}
}

// Type returns the owning PayloadType.
func (v *Value) Type() *Type { return v.typ }

// Retain increments the shared refcount and returns v, mirroring a
// C++ intrusive-refcounted handle's copy constructor.
func (v *Value) Retain() *Value {
	atomic.AddInt32(v.refs, 1)
	return v
}

// Release decrements the shared refcount. Go's GC still owns the
// underlying memory; Release only affects whether a later mutation
// triggers copy-on-write.
func (v *Value) Release() {
	atomic.AddInt32(v.refs, -1)
}

func (v *Value) shared() bool { return atomic.LoadInt32(v.refs) > 1 }

// CloneIfShared returns a private, mutable copy of v if its refcount
// exceeds one, otherwise v itself. Callers that intend to mutate a
// PayloadValue obtained from a shared source (a cache, another index)
// must route through this first.
func (v *Value) CloneIfShared() *Value {
	if !v.shared() {
		return v
	}
	one := int32(1)
	nv := &Value{
		typ:     v.typ,
		refs:    &one,
		raw:     append([]byte(nil), v.raw...),
		strings: append([]string(nil), v.strings...),
		arrays:  make([][]keyval.Value, len(v.arrays)),
	}
	for i, a := range v.arrays {
		nv.arrays[i] = append([]keyval.Value(nil), a...)
	}
	atomic.AddInt32(v.refs, -1)
	return nv
}

// Empty clears the record's storage. Namespace.Delete does not call it;
// it releases the row slot instead.
func (v *Value) Empty() {
	for i := range v.raw {
		v.raw[i] = 0
	}
	v.strings = nil
	v.arrays = nil
}

func (v *Value) arenaIndex(off int) (idx, count uint32) {
	return binary.LittleEndian.Uint32(v.raw[off : off+4]), binary.LittleEndian.Uint32(v.raw[off+4 : off+8])
}

func (v *Value) setArenaIndex(off int, idx, count uint32) {
	binary.LittleEndian.PutUint32(v.raw[off:off+4], idx)
	binary.LittleEndian.PutUint32(v.raw[off+4:off+8], count)
}

// Get reads a scalar field. It returns an error if the field is an
// array (use GetArray instead).
func (v *Value) Get(fieldIdx int) (keyval.Value, error) {
	f := v.typ.Field(fieldIdx)
	if f.Array {
		return keyval.Value{}, errors.Newf("field %q is an array, use GetArray", f.Name)
	}
	off := f.Offset
	switch f.Kind {
	case keyval.Int32:
		return keyval.FromInt32(int32(binary.LittleEndian.Uint32(v.raw[off : off+4]))), nil
	case keyval.Int64:
		return keyval.FromInt64(int64(binary.LittleEndian.Uint64(v.raw[off : off+8]))), nil
	case keyval.Double:
		bits := binary.LittleEndian.Uint64(v.raw[off : off+8])
		return keyval.FromDouble(math.Float64frombits(bits)), nil
	case keyval.String:
		idx, count := v.arenaIndex(off)
		if count == 0 {
			return keyval.FromString(""), nil
		}
		return keyval.FromString(v.strings[idx]), nil
	case keyval.Composite:
		idx, count := v.arenaIndex(off)
		if count == 0 {
			return keyval.NullValue(), nil
		}
		return v.arrays[idx][0], nil
	default:
		return keyval.NullValue(), nil
	}
}

// GetArray reads an array field's elements.
func (v *Value) GetArray(fieldIdx int) ([]keyval.Value, error) {
	f := v.typ.Field(fieldIdx)
	if !f.Array {
		return nil, errors.Newf("field %q is not an array, use Get", f.Name)
	}
	idx, count := v.arenaIndex(f.Offset)
	if count == 0 {
		return nil, nil
	}
	if f.Kind == keyval.String {
		out := make([]keyval.Value, count)
		for i := uint32(0); i < count; i++ {
			out[i] = keyval.FromString(v.strings[int(idx)+int(i)])
		}
		return out, nil
	}
	return v.arrays[idx], nil
}

// ArrayLen returns the element count of an array field. The
// comparator's Empty/Any conditions read the elements through GetArray
// instead.
func (v *Value) ArrayLen(fieldIdx int) (int, error) {
	f := v.typ.Field(fieldIdx)
	if !f.Array {
		return 0, errors.Newf("field %q is not an array", f.Name)
	}
	_, count := v.arenaIndex(f.Offset)
	return int(count), nil
}

// Set writes vals into fieldIdx, cloning the record first if it is
// shared. It returns the (possibly new) *Value the caller must use from
// then on, matching copy-on-write semantics.
func (v *Value) Set(fieldIdx int, vals []keyval.Value) (*Value, error) {
	nv := v.CloneIfShared()
	f := nv.typ.Field(fieldIdx)
	if !f.Array && len(vals) > 1 {
		return nil, errors.Newf("field %q is scalar, got %d values", f.Name, len(vals))
	}
	off := f.Offset

	if f.Array {
		switch f.Kind {
		case keyval.String:
			startIdx := uint32(len(nv.strings))
			for _, val := range vals {
				nv.strings = append(nv.strings, val.Str())
			}
			nv.setArenaIndex(off, startIdx, uint32(len(vals)))
			return nv, nil
		case keyval.Int32, keyval.Int64, keyval.Double, keyval.Composite:
			return setArrayCell(nv, off, vals)
		default:
			return nil, errors.Newf("field %q: cannot set values of kind %s", f.Name, f.Kind)
		}
	}

	switch f.Kind {
	case keyval.Int32:
		var iv int32
		if len(vals) == 1 {
			iv = int32(vals[0].Int64())
		}
		binary.LittleEndian.PutUint32(nv.raw[off:off+4], uint32(iv))
	case keyval.Int64:
		var iv int64
		if len(vals) == 1 {
			iv = vals[0].Int64()
		}
		binary.LittleEndian.PutUint64(nv.raw[off:off+8], uint64(iv))
	case keyval.Double:
		var fv float64
		if len(vals) == 1 {
			fv = vals[0].Double()
		}
		binary.LittleEndian.PutUint64(nv.raw[off:off+8], math.Float64bits(fv))
	case keyval.String:
		startIdx := uint32(len(nv.strings))
		for _, val := range vals {
			nv.strings = append(nv.strings, val.Str())
		}
		nv.setArenaIndex(off, startIdx, uint32(len(vals)))
	case keyval.Composite:
		return setArrayCell(nv, off, vals)
	default:
		return nil, errors.Newf("field %q: cannot set values of kind %s", f.Name, f.Kind)
	}
	return nv, nil
}

func setArrayCell(v *Value, off int, vals []keyval.Value) (*Value, error) {
	startIdx := uint32(len(v.arrays))
	v.arrays = append(v.arrays, append([]keyval.Value(nil), vals...))
	v.setArenaIndex(off, startIdx, uint32(len(vals)))
	return v, nil
}

// Compare lexicographically compares the listed fields in order,
// returning -1/0/+1, routing string ordering through opts.
func (v *Value) Compare(other *Value, fields []int, opts keyval.CollateOpts) int {
	for _, fi := range fields {
		f := v.typ.Field(fi)
		if f.Array {
			continue // arrays are not orderable field-by-field; skip in composite compare
		}
		a, err := v.Get(fi)
		if err != nil {
			continue
		}
		b, err := other.Get(fi)
		if err != nil {
			continue
		}
		if c := a.Compare(b, opts); c != 0 {
			return c
		}
	}
	return 0
}

// CompareFields implements keyval.CompositeRef so a *Value can be used
// as a borrowed composite reference inside a keyval.Value.
func (v *Value) CompareFields(other keyval.CompositeRef, opts keyval.CollateOpts) int {
	ov, ok := other.(*Value)
	if !ok {
		return 0
	}
	all := make([]int, v.typ.NumFields())
	for i := range all {
		all[i] = i
	}
	return v.Compare(ov, all, opts)
}
