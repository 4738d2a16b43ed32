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

// Package index implements the Index family of spec.md §4.2: hash,
// ordered-tree, column, full-text and composite variants, all mapping a
// field's key(s) to an IDSet. The shape of the family — a small
// interface implemented by several backing structures selected by the
// planner per predicate — follows storage/engine's Engine abstraction
// and sql/scan.go's span-based scans in the teacher tree.
package index

import "github.com/kvindex/kvindex/keyval"

// Condition is the predicate kind a SelectKey call evaluates, per
// spec.md §4.3.
type Condition int

// The closed set of conditions.
const (
	Eq Condition = iota
	Lt
	Le
	Gt
	Ge
	Range
	Set
	Match
	Empty
	Any
)

// String implements fmt.Stringer.
func (c Condition) String() string {
	switch c {
	case Eq:
		return "eq"
	case Lt:
		return "lt"
	case Le:
		return "le"
	case Gt:
		return "gt"
	case Ge:
		return "ge"
	case Range:
		return "range"
	case Set:
		return "set"
	case Match:
		return "match"
	case Empty:
		return "empty"
	case Any:
		return "any"
	default:
		return "unknown"
	}
}

// Kind identifies which backing structure implements Index.
type Kind int

// The Index family variants.
const (
	KindHash Kind = iota
	KindOrdered
	KindColumn
	KindFullText
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindHash:
		return "hash"
	case KindOrdered:
		return "tree"
	case KindColumn:
		return "column"
	case KindFullText:
		return "fulltext"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Options is a bitset of per-index flags, matching indexdef.h's
// IndexOpts (spec.md §12).
type Options uint32

// The index option bits.
const (
	OptPK Options = 1 << iota
	OptUnique
	OptSparse
	OptDense
)

func (o Options) has(bit Options) bool { return o&bit != 0 }

// IsPK reports whether the index backs a primary key.
func (o Options) IsPK() bool { return o.has(OptPK) }

// IsUnique reports whether duplicate keys are rejected. PK implies
// Unique.
func (o Options) IsUnique() bool { return o.has(OptUnique) || o.has(OptPK) }

// IsSparse reports whether rows missing the field are skipped rather
// than indexed under an implicit zero value.
func (o Options) IsSparse() bool { return o.has(OptSparse) }

// MemStat reports point-in-time memory usage for a single index,
// surfaced through Namespace.Stat (spec.md §12).
type MemStat struct {
	Kind      Kind
	KeyCount  int
	IDCount   int
	AllocSize int64
}

// Index is implemented by every variant in the family.
type Index interface {
	Kind() Kind
	Options() Options
	FieldName() string
	ValueType() keyval.Type

	// Upsert records that rowID now maps to key, per spec.md §4.2. It
	// returns an error (not classified by kvxerror; the namespace wraps
	// it as Conflict) if the index enforces uniqueness and key is
	// already mapped to a different rowID.
	Upsert(key keyval.Value, rowID int) error

	// Delete removes rowID from key's IdSet. Deleting an array field's
	// value removes it from every element's key, per spec.md §4.2 —
	// callers with array fields call Delete once per element.
	Delete(key keyval.Value, rowID int)

	// SelectKey evaluates a predicate and returns the matching IDSet.
	// Not every (Kind, Condition) pair is supported; unsupported pairs
	// return ErrUnsupportedCondition so the planner can fall back to a
	// column scan or a residual comparator.
	SelectKey(cond Condition, values []keyval.Value, opts keyval.CollateOpts) (*IDSet, error)

	MemStat() MemStat

	// Commit flushes any buffered inserts (used by lazily-built
	// variants; a no-op for the eagerly-maintained ones here).
	Commit()
}

// SortedProvider is implemented by index variants (only Ordered, here)
// that can emit rowIds pre-sorted by key, letting the planner skip a
// post-sort stage per spec.md §4.4.
type SortedProvider interface {
	SortedIDs(reverse bool) []int
}

// UniqueChecker exposes the rowID currently mapped to a unique key, used
// by the namespace to detect and report conflicts precisely.
type UniqueChecker interface {
	Lookup(key keyval.Value) (rowID int, ok bool)
}

// RankedSelector is implemented by index variants (only FullText, here)
// that can score their own SelectKey matches. The planner prefers this
// over the plain SelectKey when present so a Match query can default to
// sorting by relevance instead of rowId, per spec.md §4.2/§4.4.
type RankedSelector interface {
	// SelectKeyRanked behaves like SelectKey, additionally reporting a
	// higher-is-better relevance score for every rowId in the returned
	// set. Rows absent from the map (or the whole map being nil) should
	// be treated as unranked.
	SelectKeyRanked(cond Condition, values []keyval.Value, opts keyval.CollateOpts) (*IDSet, map[int]float64, error)
}
