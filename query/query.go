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

// Package query models the parsed shape of a request against a
// namespace: a predicate tree, sort/limit/offset, aggregations and
// join specs, per spec.md §4.4. It is built either by the SQL parser
// in sql_parser.go, the JSON DSL parser in json_parser.go, or directly
// by chained builder calls, matching the "accepts chained predicate
// builders programmatically" surface of spec.md §6.
package query

import (
	"time"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
)

// Op combines Entries within a Group.
type Op int

// The two combinators a Group may use. NOT is expressed per-Predicate
// via its Not flag rather than as a third Op, since it only ever
// negates a single leaf condition in this grammar.
const (
	OpAnd Op = iota
	OpOr
)

// Predicate is one leaf condition: a field, a condition, its operand
// values, and whether the whole thing is negated.
type Predicate struct {
	Field  string
	Cond   index.Condition
	Values []keyval.Value
	Not    bool
	Join   *JoinSpec
}

// Entry is one child of a Group: either a single Predicate or a nested
// bracketed Group.
type Entry struct {
	Predicate *Predicate
	Group     *Group
}

// Group is a bracketed set of Entries combined by Op, e.g. "(a=1 OR
// a=2)" or the implicit outer "AND" of a WHERE clause.
type Group struct {
	Op      Op
	Entries []Entry
}

// SortField orders results by Field, descending if Desc.
type SortField struct {
	Field string
	Desc  bool
}

// AggKind is the closed set of aggregation functions, per spec.md
// §4.4.
type AggKind int

// The aggregation function family.
const (
	AggMin AggKind = iota
	AggMax
	AggSum
	AggAvg
	AggFacet
	AggDistinct
)

// Aggregation describes one requested aggregate over Field.
type Aggregation struct {
	Kind  AggKind
	Field string
	Limit int // facet: bounded sorted map size: spec.md §4.4
}

// JoinKind distinguishes inner from left joins.
type JoinKind int

// The join kinds.
const (
	JoinInner JoinKind = iota
	JoinLeft
)

// JoinSpec binds a subquery against another namespace, per spec.md
// §4.4: "for each row in N1, run subquery Q2 against N2 binding some
// N1 field into Q2's predicate".
type JoinSpec struct {
	Kind         JoinKind
	Namespace    string
	LocalField   string
	ForeignField string
	SubQuery     *Query
}

// Query is a fully parsed request against one namespace.
type Query struct {
	Namespace      string
	Where          *Group
	Sort           []SortField
	Limit          int
	Offset         int
	Aggregations   []Aggregation
	Joins          []*JoinSpec
	WithTotalCount bool
	Deadline       time.Time
}

// New starts an empty query against ns with no limit and no offset,
// ready for either parser output or programmatic builder calls.
func New(ns string) *Query {
	return &Query{Namespace: ns, Where: &Group{Op: OpAnd}, Limit: -1}
}

// And appends a top-level, ANDed predicate.
func (q *Query) And(field string, cond index.Condition, values ...keyval.Value) *Query {
	q.Where.Entries = append(q.Where.Entries, Entry{Predicate: &Predicate{Field: field, Cond: cond, Values: values}})
	return q
}

// AndNot appends a top-level, ANDed and negated predicate.
func (q *Query) AndNot(field string, cond index.Condition, values ...keyval.Value) *Query {
	q.Where.Entries = append(q.Where.Entries, Entry{Predicate: &Predicate{Field: field, Cond: cond, Values: values, Not: true}})
	return q
}

// Or appends a bracketed OR-group of predicates on field, one per value
// set and all under cond, as a single top-level AND-term; with cond Eq
// this is the common case of "field IN (a, b, c)" expressed
// as an explicit bracket rather than a Set condition.
func (q *Query) Or(field string, cond index.Condition, valueSets ...[]keyval.Value) *Query {
	g := &Group{Op: OpOr}
	for _, vs := range valueSets {
		g.Entries = append(g.Entries, Entry{Predicate: &Predicate{Field: field, Cond: cond, Values: vs}})
	}
	q.Where.Entries = append(q.Where.Entries, Entry{Group: g})
	return q
}

// SortBy appends a sort field.
func (q *Query) SortBy(field string, desc bool) *Query {
	q.Sort = append(q.Sort, SortField{Field: field, Desc: desc})
	return q
}

// WithLimit sets the result cap.
func (q *Query) WithLimit(n int) *Query {
	q.Limit = n
	return q
}

// WithOffset sets the number of leading results to skip.
func (q *Query) WithOffset(n int) *Query {
	q.Offset = n
	return q
}

// WithDeadline attaches a wall-clock deadline enforced by the executor
// between rows and planner stages, per spec.md §5.
func (q *Query) WithDeadline(t time.Time) *Query {
	q.Deadline = t
	return q
}

// RequestTotalCount asks the executor to keep counting matches past
// Limit, per spec.md §4.4.
func (q *Query) RequestTotalCount() *Query {
	q.WithTotalCount = true
	return q
}

// Aggregate appends an aggregation request.
func (q *Query) Aggregate(kind AggKind, field string) *Query {
	q.Aggregations = append(q.Aggregations, Aggregation{Kind: kind, Field: field})
	return q
}

// InnerJoin attaches an inner-join subquery bound through localField ==
// foreignField.
func (q *Query) InnerJoin(sub *Query, localField, foreignField string) *Query {
	q.Joins = append(q.Joins, &JoinSpec{Kind: JoinInner, Namespace: sub.Namespace, LocalField: localField, ForeignField: foreignField, SubQuery: sub})
	return q
}

// LeftJoin attaches a left-join subquery bound through localField ==
// foreignField.
func (q *Query) LeftJoin(sub *Query, localField, foreignField string) *Query {
	q.Joins = append(q.Joins, &JoinSpec{Kind: JoinLeft, Namespace: sub.Namespace, LocalField: localField, ForeignField: foreignField, SubQuery: sub})
	return q
}
