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

package query

import (
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonFilter is one element of a "where" array in the JSON DSL: either
// a leaf condition (Field/Cond/Value set) or a bracketed OR-group
// (Op=="or", Filters set), matching the AND-of-ORs shape Normalize
// expects.
type jsonFilter struct {
	Field   string          `json:"field"`
	Cond    string          `json:"cond"`
	Value   jsoniter.RawMessage `json:"value"`
	Not     bool            `json:"not"`
	Op      string          `json:"op"`
	Filters []jsonFilter    `json:"filters"`
}

type jsonSort struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

type jsonAgg struct {
	Kind  string `json:"kind"`
	Field string `json:"field"`
	Limit int    `json:"limit"`
}

type jsonJoin struct {
	Kind         string          `json:"kind"`
	Namespace    string          `json:"namespace"`
	LocalField   string          `json:"local_field"`
	ForeignField string          `json:"foreign_field"`
	SubQuery     jsoniter.RawMessage `json:"query"`
}

type jsonQuery struct {
	Namespace    string       `json:"namespace"`
	Where        []jsonFilter `json:"where"`
	Sort         []jsonSort   `json:"sort"`
	Limit        int          `json:"limit"`
	Offset       int          `json:"offset"`
	ReqTotal     bool         `json:"req_total"`
	Aggregations []jsonAgg    `json:"aggregations"`
	Joins        []jsonJoin   `json:"joins"`
}

// ParseJSON parses the JSON DSL form of a query, per spec.md §6's
// "Query: parsed from SQL text or JSON DSL".
func ParseJSON(data []byte) (*Query, error) {
	var jq jsonQuery
	if err := jsonAPI.Unmarshal(data, &jq); err != nil {
		return nil, errors.Wrapf(err, "parsing JSON query")
	}
	if jq.Namespace == "" {
		return nil, errors.Newf("JSON query is missing \"namespace\"")
	}
	q := New(jq.Namespace)
	q.Limit = -1

	where := &Group{Op: OpAnd}
	for _, f := range jq.Where {
		entry, err := f.toEntry()
		if err != nil {
			return nil, err
		}
		where.Entries = append(where.Entries, entry)
	}
	q.Where = where

	for _, s := range jq.Sort {
		q.SortBy(s.Field, s.Desc)
	}
	if jq.Limit != 0 {
		q.WithLimit(jq.Limit)
	}
	q.WithOffset(jq.Offset)
	if jq.ReqTotal {
		q.RequestTotalCount()
	}
	for _, a := range jq.Aggregations {
		kind, err := parseAggKind(a.Kind)
		if err != nil {
			return nil, err
		}
		q.Aggregations = append(q.Aggregations, Aggregation{Kind: kind, Field: a.Field, Limit: a.Limit})
	}
	for _, j := range jq.Joins {
		sub, err := ParseJSON(j.SubQuery)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing join subquery")
		}
		kind := JoinInner
		if j.Kind == "left" {
			kind = JoinLeft
		}
		q.Joins = append(q.Joins, &JoinSpec{Kind: kind, Namespace: sub.Namespace, LocalField: j.LocalField, ForeignField: j.ForeignField, SubQuery: sub})
	}
	return q, nil
}

func (f jsonFilter) toEntry() (Entry, error) {
	if f.Op == "or" {
		g := &Group{Op: OpOr}
		for _, sub := range f.Filters {
			if sub.Op != "" {
				return Entry{}, errors.Newf("nested groups inside an OR-bracket are not supported")
			}
			pred, err := sub.toPredicate()
			if err != nil {
				return Entry{}, err
			}
			g.Entries = append(g.Entries, Entry{Predicate: pred})
		}
		return Entry{Group: g}, nil
	}
	pred, err := f.toPredicate()
	if err != nil {
		return Entry{}, err
	}
	return Entry{Predicate: pred}, nil
}

func (f jsonFilter) toPredicate() (*Predicate, error) {
	cond, err := parseCond(f.Cond)
	if err != nil {
		return nil, err
	}
	values, err := decodeFilterValues(f.Value)
	if err != nil {
		return nil, errors.Wrapf(err, "field %q", f.Field)
	}
	return &Predicate{Field: f.Field, Cond: cond, Values: values, Not: f.Not}, nil
}

func decodeFilterValues(raw jsoniter.RawMessage) ([]keyval.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single interface{}
	if err := jsonAPI.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	if arr, ok := single.([]interface{}); ok {
		out := make([]keyval.Value, 0, len(arr))
		for _, el := range arr {
			out = append(out, valueFromJSON(el))
		}
		return out, nil
	}
	return []keyval.Value{valueFromJSON(single)}, nil
}

func valueFromJSON(raw interface{}) keyval.Value {
	switch v := raw.(type) {
	case float64:
		if v == float64(int64(v)) {
			return keyval.FromInt64(int64(v))
		}
		return keyval.FromDouble(v)
	case string:
		return keyval.FromString(v)
	case nil:
		return keyval.NullValue()
	default:
		return keyval.NullValue()
	}
}

func parseCond(s string) (index.Condition, error) {
	switch s {
	case "eq", "":
		return index.Eq, nil
	case "lt":
		return index.Lt, nil
	case "le":
		return index.Le, nil
	case "gt":
		return index.Gt, nil
	case "ge":
		return index.Ge, nil
	case "range":
		return index.Range, nil
	case "set":
		return index.Set, nil
	case "match":
		return index.Match, nil
	case "empty":
		return index.Empty, nil
	case "any":
		return index.Any, nil
	default:
		return 0, errors.Newf("unknown condition %q", s)
	}
}

func parseAggKind(s string) (AggKind, error) {
	switch s {
	case "min":
		return AggMin, nil
	case "max":
		return AggMax, nil
	case "sum":
		return AggSum, nil
	case "avg":
		return AggAvg, nil
	case "facet":
		return AggFacet, nil
	case "distinct":
		return AggDistinct, nil
	default:
		return 0, errors.Newf("unknown aggregation kind %q", s)
	}
}
