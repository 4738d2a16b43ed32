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

// Package comparator evaluates a single bound predicate against a
// payload record, for use as the planner's residual check on fields
// that either have no index or were not chosen as the query's driver
// (spec.md §4.3/§4.4). Unlike package index, which answers "which
// rowIds satisfy this predicate" from a maintained structure, a
// Comparator answers "does this one record satisfy this predicate",
// so it is monomorphised per scalar kind exactly like
// keyval.Value.Compare rather than backed by any collection.
package comparator

import (
	"github.com/cockroachdb/errors"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/payload"
)

// Comparator binds a condition and its operand values to one field of a
// payload.Type. SetValues converts the bound values once; Compare is
// then called once per candidate record.
type Comparator struct {
	fieldIdx int
	kind     keyval.Type
	isArray  bool
	cond     index.Condition
	collate  keyval.CollateOpts

	values []keyval.Value          // Eq/Lt/Le/Gt/Ge/Range operands, in order
	set    map[keyval.Value]bool   // Set operand, when collate is CollateNone
	setAny []keyval.Value          // Set operand, when collate requires a scan
}

// New builds a Comparator bound to fieldIdx of t, matching cond against
// values under collate. Values are converted to the field's kind with
// ConvertOrDefault, mirroring ComparatorImpl<T>::SetValues's numeric/
// string coercion in the original implementation.
func New(t *payload.Type, fieldIdx int, cond index.Condition, values []keyval.Value, collate keyval.CollateOpts) (*Comparator, error) {
	f := t.Field(fieldIdx)
	c := &Comparator{fieldIdx: fieldIdx, kind: f.Kind, isArray: f.Array, cond: cond, collate: collate}

	converted := make([]keyval.Value, len(values))
	for i, v := range values {
		converted[i] = v.ConvertOrDefault(f.Kind)
	}

	switch cond {
	case index.Eq, index.Lt, index.Le, index.Gt, index.Ge:
		if len(converted) != 1 {
			return nil, errors.Newf("condition expects exactly one value, got %d", len(converted))
		}
		c.values = converted
	case index.Range:
		if len(converted) != 2 {
			return nil, errors.Newf("range condition expects exactly two values, got %d", len(converted))
		}
		c.values = converted
	case index.Set:
		if collate.Mode == keyval.CollateNone {
			c.set = make(map[keyval.Value]bool, len(converted))
			for _, v := range converted {
				c.set[v] = true
			}
		} else {
			c.setAny = converted
		}
	case index.Empty, index.Any:
		// no operand
	case index.Match:
		if len(converted) != 1 {
			return nil, errors.Newf("match condition expects exactly one value")
		}
		c.values = converted
	default:
		return nil, errors.Newf("unsupported condition %d", cond)
	}
	return c, nil
}

// Compare evaluates the bound predicate against one record. For an
// array field, per spec.md §4.2, it matches if any element satisfies
// the condition (Empty is the exception: it matches only a zero-length
// array).
func (c *Comparator) Compare(pv *payload.Value) (bool, error) {
	if c.isArray {
		return c.compareArray(pv)
	}
	v, err := pv.Get(c.fieldIdx)
	if err != nil {
		return false, err
	}
	return c.compareScalar(v), nil
}

func (c *Comparator) compareArray(pv *payload.Value) (bool, error) {
	vals, err := pv.GetArray(c.fieldIdx)
	if err != nil {
		return false, err
	}
	if c.cond == index.Empty {
		return len(vals) == 0, nil
	}
	if c.cond == index.Any {
		return len(vals) > 0, nil
	}
	for _, v := range vals {
		if c.compareScalar(v) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Comparator) compareScalar(v keyval.Value) bool {
	switch c.cond {
	case index.Eq:
		return v.Compare(c.values[0], c.collate) == 0
	case index.Lt:
		return v.Compare(c.values[0], c.collate) < 0
	case index.Le:
		return v.Compare(c.values[0], c.collate) <= 0
	case index.Gt:
		return v.Compare(c.values[0], c.collate) > 0
	case index.Ge:
		return v.Compare(c.values[0], c.collate) >= 0
	case index.Range:
		return v.Compare(c.values[0], c.collate) >= 0 && v.Compare(c.values[1], c.collate) <= 0
	case index.Set:
		return c.compareSet(v)
	case index.Empty:
		return v.IsNil()
	case index.Any:
		return !v.IsNil()
	case index.Match:
		return matchText(v.Str(), c.values[0].Str())
	default:
		return false
	}
}

// matchText applies the same tokenize-and-stem pipeline as
// index.FullText so a Match condition evaluates identically whether or
// not the field happens to carry a full-text index.
func matchText(text, query string) bool {
	haystack := make(map[string]bool)
	for _, tok := range index.Tokenize(text) {
		haystack[tok] = true
	}
	for _, tok := range index.Tokenize(query) {
		if !haystack[tok] {
			return false
		}
	}
	return true
}

func (c *Comparator) compareSet(v keyval.Value) bool {
	if c.set != nil {
		return c.set[v]
	}
	for _, cand := range c.setAny {
		if v.Compare(cand, c.collate) == 0 {
			return true
		}
	}
	return false
}
