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

// Package keyval implements the closed tagged scalar type shared by the
// index and comparator families: KeyValueType, KeyRef and Value.
package keyval

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// Type is the closed set of scalar kinds a Value can hold.
type Type int

// The KeyValueType tag set. payload.Type.Serialize writes these numeric
// values, so their order is part of the serialized format.
const (
	Undefined Type = iota
	Null
	Int32
	Int64
	Double
	String
	Composite
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Double:
		return "double"
	case String:
		return "string"
	case Composite:
		return "composite"
	default:
		return "unknown"
	}
}

// CompositeRef is implemented by payload.Value so that keyval can hold a
// borrowed composite reference without importing the payload package.
type CompositeRef interface {
	CompareFields(other CompositeRef, opts CollateOpts) int
}

// Value is a tagged scalar or borrowed composite reference. Per spec.md
// §3, KeyRef is a non-owning view and Value owns String/Composite storage;
// Go's garbage collector makes that distinction moot at the
// representation level (a Go string is already immutable and safely
// shared), so KeyRef is a plain alias kept for readability at call sites
// that only ever read.
type Value struct {
	typ Type
	i   int64
	f   float64
	s   string
	c   CompositeRef
}

// KeyRef is a read-only view of a Value. See the Value doc comment.
type KeyRef = Value

// FromInt32 builds an Int32 value.
func FromInt32(v int32) Value { return Value{typ: Int32, i: int64(v)} }

// FromInt64 builds an Int64 value.
func FromInt64(v int64) Value { return Value{typ: Int64, i: v} }

// FromDouble builds a Double value.
func FromDouble(v float64) Value { return Value{typ: Double, f: v} }

// FromString builds a String value.
func FromString(v string) Value { return Value{typ: String, s: v} }

// FromComposite builds a Composite value borrowing ref.
func FromComposite(ref CompositeRef) Value { return Value{typ: Composite, c: ref} }

// NullValue is the canonical Null value.
func NullValue() Value { return Value{typ: Null} }

// UndefinedValue is the canonical Undefined value.
func UndefinedValue() Value { return Value{typ: Undefined} }

// Type returns the value's tag.
func (v Value) Type() Type { return v.typ }

// IsNil reports whether the value is Null or Undefined.
func (v Value) IsNil() bool { return v.typ == Null || v.typ == Undefined }

// Int64 returns the value as an int64, assuming Type()==Int32||Int64.
func (v Value) Int64() int64 { return v.i }

// Double returns the value as a float64, assuming Type()==Double.
func (v Value) Double() float64 { return v.f }

// Str returns the value as a string, assuming Type()==String.
func (v Value) Str() string { return v.s }

// Composite returns the borrowed composite reference, assuming
// Type()==Composite.
func (v Value) Composite() CompositeRef { return v.c }

// ConvertStrict converts v to the target type, per spec.md §3: numeric
// widening and numeric string<->number conversions succeed; anything else
// fails. Used by the query planner, which must reject bad predicates
// rather than silently coerce them.
func (v Value) ConvertStrict(t Type) (Value, error) {
	if v.typ == t {
		return v, nil
	}
	switch t {
	case Int32:
		i, err := v.asInt64Strict()
		if err != nil {
			return Value{}, err
		}
		return FromInt32(int32(i)), nil
	case Int64:
		i, err := v.asInt64Strict()
		if err != nil {
			return Value{}, err
		}
		return FromInt64(i), nil
	case Double:
		f, err := v.asDoubleStrict()
		if err != nil {
			return Value{}, err
		}
		return FromDouble(f), nil
	case String:
		return FromString(v.asStringAny()), nil
	default:
		return Value{}, errors.Newf("cannot convert %s to %s", v.typ, t)
	}
}

// ConvertOrDefault converts v to the target type, substituting the
// type's zero value on failure. Used by the comparator's SetValues path
// per spec.md §3 ("the comparator SetValues path substitutes, the
// planner fails").
func (v Value) ConvertOrDefault(t Type) Value {
	cv, err := v.ConvertStrict(t)
	if err != nil {
		switch t {
		case Int32:
			return FromInt32(0)
		case Int64:
			return FromInt64(0)
		case Double:
			return FromDouble(0)
		case String:
			return FromString("")
		default:
			return NullValue()
		}
	}
	return cv
}

func (v Value) asInt64Strict() (int64, error) {
	switch v.typ {
	case Int32, Int64:
		return v.i, nil
	case Double:
		return int64(v.f), nil
	case String:
		if v.s == "" {
			return 0, errors.Newf("empty string is not numeric")
		}
		i, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "cannot convert %q to int", v.s)
		}
		return i, nil
	default:
		return 0, errors.Newf("cannot convert %s to int", v.typ)
	}
}

func (v Value) asDoubleStrict() (float64, error) {
	switch v.typ {
	case Int32, Int64:
		return float64(v.i), nil
	case Double:
		return v.f, nil
	case String:
		if v.s == "" {
			return 0, errors.Newf("empty string is not numeric")
		}
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "cannot convert %q to double", v.s)
		}
		return f, nil
	default:
		return 0, errors.Newf("cannot convert %s to double", v.typ)
	}
}

func (v Value) asStringAny() string {
	switch v.typ {
	case String:
		return v.s
	case Int32, Int64:
		return strconv.FormatInt(v.i, 10)
	case Double:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return ""
	}
}

// Compare orders two values of the same type, returning -1/0/+1. NULL
// sorts less than any non-NULL value, matching parser.Datum.Compare in
// the teacher tree. String comparison is collation-aware.
func (v Value) Compare(other Value, opts CollateOpts) int {
	if v.typ == Null || other.typ == Null {
		switch {
		case v.typ == Null && other.typ == Null:
			return 0
		case v.typ == Null:
			return -1
		default:
			return 1
		}
	}
	switch v.typ {
	case Int32, Int64:
		return compareInt64(v.i, other.i)
	case Double:
		return compareFloat64(v.f, other.f)
	case String:
		return collateCompare(v.s, other.s, opts)
	case Composite:
		return v.c.CompareFields(other.c, opts)
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
