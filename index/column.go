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

// Column is the "no index" variant of spec.md §4.2: it keeps the
// current value for every rowId and answers a SelectKey by scanning
// them all through the comparator family described in package
// comparator. It exists so that every field, indexed or not, has a
// uniform Index handle the planner can fall back to for a residual
// predicate.
type Column struct {
	name string
	kind keyval.Type
	opts Options
	rows map[int]keyval.Value
}

// NewColumn builds an empty Column index.
func NewColumn(name string, kind keyval.Type, opts Options) *Column {
	return &Column{name: name, kind: kind, opts: opts, rows: make(map[int]keyval.Value)}
}

// Kind implements Index.
func (c *Column) Kind() Kind { return KindColumn }

// Options implements Index.
func (c *Column) Options() Options { return c.opts }

// FieldName implements Index.
func (c *Column) FieldName() string { return c.name }

// ValueType implements Index.
func (c *Column) ValueType() keyval.Type { return c.kind }

// Upsert implements Index.
func (c *Column) Upsert(key keyval.Value, rowID int) error {
	c.rows[rowID] = key
	return nil
}

// Delete implements Index.
func (c *Column) Delete(_ keyval.Value, rowID int) {
	delete(c.rows, rowID)
}

// Get returns the current value stored for rowID, used by the
// comparator family when Column is chosen as a residual check rather
// than a driver.
func (c *Column) Get(rowID int) (keyval.Value, bool) {
	v, ok := c.rows[rowID]
	return v, ok
}

// SelectKey implements Index by a full scan; only used when the
// planner has no better driver for the field (spec.md §4.4's driver
// selection falls back to Column last).
func (c *Column) SelectKey(cond Condition, values []keyval.Value, opts keyval.CollateOpts) (*IDSet, error) {
	result := NewIDSet()
	for rowID, v := range c.rows {
		ok, err := evalScalarCondition(v, cond, values, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			result.Add(rowID)
		}
	}
	return result, nil
}

func evalScalarCondition(v keyval.Value, cond Condition, values []keyval.Value, opts keyval.CollateOpts) (bool, error) {
	switch cond {
	case Eq:
		return v.Compare(values[0], opts) == 0, nil
	case Lt:
		return v.Compare(values[0], opts) < 0, nil
	case Le:
		return v.Compare(values[0], opts) <= 0, nil
	case Gt:
		return v.Compare(values[0], opts) > 0, nil
	case Ge:
		return v.Compare(values[0], opts) >= 0, nil
	case Range:
		return v.Compare(values[0], opts) >= 0 && v.Compare(values[1], opts) <= 0, nil
	case Set:
		for _, cand := range values {
			if v.Compare(cand, opts) == 0 {
				return true, nil
			}
		}
		return false, nil
	case Empty:
		return v.IsNil(), nil
	case Any:
		return !v.IsNil(), nil
	default:
		return false, errors.Newf("condition not supported by column scan")
	}
}

// MemStat implements Index.
func (c *Column) MemStat() MemStat {
	return MemStat{Kind: KindColumn, KeyCount: len(c.rows), IDCount: len(c.rows)}
}

// Commit implements Index; Column is eagerly maintained.
func (c *Column) Commit() {}
