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

// Package plan implements the query planner and selector of spec.md
// §4.4: it normalizes a query's predicate tree, picks a driver and
// secondary probes per conjunctive group, falls back to residual
// comparators for unindexed fields, sorts, and applies limit/offset.
// It is grounded on sql/select.go, sql/plan.go and sql/ordering.go's
// planNode shape, generalized from a fixed relational schema to the
// dynamic per-namespace IndexProvider this store needs.
package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kvindex/kvindex/cache"
	"github.com/kvindex/kvindex/comparator"
	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/query"
)

// IndexProvider is namespace's contract with the planner. It is a
// narrow interface — rather than the planner importing package
// namespace directly — specifically to break the import cycle noted in
// spec.md §9 ("indexes never look up back into the namespace — the
// planner does"): namespace implements this, plan only depends on it.
type IndexProvider interface {
	// Index returns the maintained index over field, if one exists.
	Index(field string) (index.Index, bool)
	// FieldIndex returns field's position in the namespace's
	// PayloadType, for building a residual comparator.
	FieldIndex(field string) (int, bool)
	// PayloadType returns the namespace's current schema.
	PayloadType() *payload.Type
	// RowIDs returns every currently-live rowId, used as the universe
	// for NOT predicates and fields with neither an index nor a driver.
	RowIDs() *index.IDSet
	// Payload returns the live record for rowID, used by residual
	// comparators and post-sort.
	Payload(rowID int) (*payload.Value, bool)
	// Collate returns the collation to use for field.
	Collate(field string) keyval.CollateOpts
	// JoinCache returns the namespace's own cache of per-bound-value
	// join results, consulted and populated while evaluating a JoinSpec
	// against a foreign namespace.
	JoinCache() *cache.JoinCache
}

// JoinTarget is what a namespace exposes to the far side of a join: it
// must plan and run a query, report the IndexProvider surface a bound
// predicate needs, and report its own version so the near side's
// JoinCache entries can be pinned to it, per spec.md §4.4's join cache
// key.
type JoinTarget interface {
	IndexProvider
	Select(q *query.Query) (*Result, error)
	Version() int64
}

// NamespaceResolver looks up another open namespace by name so
// Execute can run a JoinSpec's subquery against it. It is defined here,
// analogous to IndexProvider, to avoid plan depending on package
// registry — registry already depends on namespace, which depends on
// plan, so plan importing registry back would cycle.
type NamespaceResolver interface {
	ResolveNamespace(name string) (JoinTarget, bool)
}

// AggregationResult is one computed aggregate over a query's full
// matched set, computed before Limit/Offset trims it down, per spec.md
// §4.4.
type AggregationResult struct {
	Kind  query.AggKind
	Field string

	// Value holds the result of Min/Max/Sum/Avg.
	Value float64
	// Facets holds Facet's value/count pairs, sorted by count
	// descending and bounded to the requesting Aggregation's Limit (if
	// positive).
	Facets []FacetCount
	// Distinct holds Distinct's sorted, deduplicated values.
	Distinct []keyval.Value
}

// FacetCount pairs one distinct field value with its occurrence count
// across the matched set.
type FacetCount struct {
	Value keyval.Value
	Count int
}

// Result is the planner's output: the matching rowIds in final order,
// the total match count if the query requested one (-1 otherwise), and
// any requested aggregation results.
type Result struct {
	RowIDs       []int
	TotalCount   int
	Aggregations []AggregationResult
}

// Execute plans and runs q against prov, per spec.md §4.4. resolver
// resolves the namespaces named by q.Joins; it may be nil if q carries
// no Joins.
func Execute(q *query.Query, prov IndexProvider, resolver NamespaceResolver) (*Result, error) {
	groups, err := query.Normalize(q.Where)
	if err != nil {
		return nil, kvxerror.Wrap(err, kvxerror.ParseSQL, "normalizing query")
	}

	matched, ranks, err := evaluateGroups(groups, prov, q.Deadline)
	if err != nil {
		return nil, err
	}

	if len(q.Joins) > 0 {
		matched, err = evaluateJoins(matched, q.Joins, prov, resolver)
		if err != nil {
			return nil, err
		}
	}

	rowIDs := matched.ToSlice()
	if err := checkDeadline(q.Deadline); err != nil {
		return nil, err
	}

	switch {
	case len(q.Sort) > 0:
		if err := sortRowIDs(rowIDs, q.Sort, prov); err != nil {
			return nil, err
		}
	case len(ranks) > 0:
		sortByRank(rowIDs, ranks) // spec.md §4.4: Match queries default to rank order
	default:
		sort.Ints(rowIDs) // deterministic tie-break per spec.md §4.4
	}

	var aggs []AggregationResult
	if len(q.Aggregations) > 0 {
		aggs, err = computeAggregations(q.Aggregations, rowIDs, prov)
		if err != nil {
			return nil, err
		}
	}

	total := -1
	if q.WithTotalCount {
		total = len(rowIDs)
	}

	limit := q.Limit
	offset := q.Offset
	if offset > len(rowIDs) {
		offset = len(rowIDs)
	}
	rowIDs = rowIDs[offset:]
	if limit >= 0 && limit < len(rowIDs) {
		rowIDs = rowIDs[:limit]
	}

	return &Result{RowIDs: rowIDs, TotalCount: total, Aggregations: aggs}, nil
}

// evaluateGroups computes the intersection of every conjunctive group's
// matching IdSet, per spec.md §4.4 steps 2-3. The group yielding the
// smallest set becomes the driver conceptually; since every group is
// fully materialized as an IDSet up front, "becoming the driver" here
// just means Intersect folds it in first, which roaring's AND already
// short-circuits efficiently regardless of argument order. It also
// returns the union of every predicate's relevance ranks (only Match
// predicates against a RankedSelector index ever contribute one), so
// Execute can default an unsorted Match query to rank order.
func evaluateGroups(groups []query.ConjunctiveGroup, prov IndexProvider, deadline time.Time) (*index.IDSet, map[int]float64, error) {
	if len(groups) == 0 {
		return prov.RowIDs().Clone(), nil, nil
	}
	sets := make([]*index.IDSet, 0, len(groups))
	ranks := map[int]float64{}
	for _, g := range groups {
		if err := checkDeadline(deadline); err != nil {
			return nil, nil, err
		}
		set, groupRanks, err := evaluateGroup(g, prov)
		if err != nil {
			return nil, nil, err
		}
		sets = append(sets, set)
		mergeRanks(ranks, groupRanks)
	}
	sortSetsByCardinality(sets)
	return index.Intersect(sets...), ranks, nil
}

func mergeRanks(into, from map[int]float64) {
	for id, r := range from {
		into[id] += r
	}
}

func sortSetsByCardinality(sets []*index.IDSet) {
	sort.Slice(sets, func(i, j int) bool { return sets[i].Len() < sets[j].Len() })
}

// evaluateGroup computes the union of an OR-bracket's predicates.
func evaluateGroup(g query.ConjunctiveGroup, prov IndexProvider) (*index.IDSet, map[int]float64, error) {
	sets := make([]*index.IDSet, 0, len(g.Predicates))
	ranks := map[int]float64{}
	for _, pred := range g.Predicates {
		set, predRanks, err := evaluatePredicate(pred, prov)
		if err != nil {
			return nil, nil, err
		}
		sets = append(sets, set)
		mergeRanks(ranks, predRanks)
	}
	return index.Union(sets...), ranks, nil
}

// evaluatePredicate picks an executor for one leaf predicate, per
// spec.md §4.4 step 2: prefer a matching index; fall back to a residual
// comparator scan over the full universe.
func evaluatePredicate(pred *query.Predicate, prov IndexProvider) (*index.IDSet, map[int]float64, error) {
	collate := prov.Collate(pred.Field)
	set, ranks, err := evaluatePredicatePositive(pred, prov, collate)
	if err != nil {
		return nil, nil, err
	}
	if pred.Not {
		// A negated predicate's relevance ranks describe rows it no
		// longer contains, so they don't carry over.
		return index.Subtract(prov.RowIDs(), set), nil, nil
	}
	return set, ranks, nil
}

func evaluatePredicatePositive(pred *query.Predicate, prov IndexProvider, collate keyval.CollateOpts) (*index.IDSet, map[int]float64, error) {
	if idx, ok := prov.Index(pred.Field); ok {
		if ranked, ok := idx.(index.RankedSelector); ok {
			set, ranks, err := ranked.SelectKeyRanked(pred.Cond, pred.Values, collate)
			if err == nil {
				return set, ranks, nil
			}
			if err != index.ErrUnsupportedCondition {
				return nil, nil, err
			}
		} else {
			set, err := idx.SelectKey(pred.Cond, pred.Values, collate)
			if err == nil {
				return set, nil, nil
			}
			if err != index.ErrUnsupportedCondition {
				return nil, nil, err
			}
		}
		// fall through to a residual scan
	}
	set, err := residualScan(pred, prov, collate)
	return set, nil, err
}

func residualScan(pred *query.Predicate, prov IndexProvider, collate keyval.CollateOpts) (*index.IDSet, error) {
	fieldIdx, ok := prov.FieldIndex(pred.Field)
	if !ok {
		return nil, kvxerror.Paramsf("unknown field %q", pred.Field)
	}
	cmp, err := comparator.New(prov.PayloadType(), fieldIdx, pred.Cond, pred.Values, collate)
	if err != nil {
		return nil, kvxerror.Wrap(err, kvxerror.Params, "building comparator")
	}
	result := index.NewIDSet()
	var scanErr error
	prov.RowIDs().ForEach(func(rowID int) {
		if scanErr != nil {
			return
		}
		pv, ok := prov.Payload(rowID)
		if !ok {
			return
		}
		ok, err := cmp.Compare(pv)
		if err != nil {
			scanErr = err
			return
		}
		if ok {
			result.Add(rowID)
		}
	})
	if scanErr != nil {
		return nil, scanErr
	}
	return result, nil
}

// sortRowIDs orders rowIDs in place by the requested sort fields, then
// by rowId ascending as the deterministic tie-breaker (spec.md §4.4).
func sortRowIDs(rowIDs []int, fields []query.SortField, prov IndexProvider) error {
	fieldIdxs := make([]int, len(fields))
	collates := make([]keyval.CollateOpts, len(fields))
	for i, sf := range fields {
		idx, ok := prov.FieldIndex(sf.Field)
		if !ok {
			return kvxerror.Paramsf("unknown sort field %q", sf.Field)
		}
		fieldIdxs[i] = idx
		collates[i] = prov.Collate(sf.Field)
	}
	var sortErr error
	sort.SliceStable(rowIDs, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		a, aok := prov.Payload(rowIDs[i])
		b, bok := prov.Payload(rowIDs[j])
		if !aok || !bok {
			return false
		}
		for k, fi := range fieldIdxs {
			av, err := a.Get(fi)
			if err != nil {
				continue
			}
			bv, err := b.Get(fi)
			if err != nil {
				continue
			}
			c := av.Compare(bv, collates[k])
			if fields[k].Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return rowIDs[i] < rowIDs[j]
	})
	return sortErr
}

func checkDeadline(deadline time.Time) error {
	if deadline.IsZero() {
		return nil
	}
	if time.Now().After(deadline) {
		return kvxerror.Timeoutf("query deadline exceeded")
	}
	return nil
}

// sortByRank orders rowIDs by descending relevance rank, falling back to
// ascending rowId for rows with equal (or absent, treated as zero) rank,
// per spec.md §4.4's "sort by rank unless overridden".
func sortByRank(rowIDs []int, ranks map[int]float64) {
	sort.SliceStable(rowIDs, func(i, j int) bool {
		ri, rj := ranks[rowIDs[i]], ranks[rowIDs[j]]
		if ri != rj {
			return ri > rj
		}
		return rowIDs[i] < rowIDs[j]
	})
}

// evaluateJoins runs every JoinSpec's subquery in turn, narrowing matched
// for an inner join and leaving it untouched for a left join, per spec.md
// §4.4: "for each row in N1, run subquery Q2 against N2 binding some N1
// field into Q2's predicate; INNER drops N1 rows with no match, LEFT
// keeps them".
func evaluateJoins(matched *index.IDSet, joins []*query.JoinSpec, prov IndexProvider, resolver NamespaceResolver) (*index.IDSet, error) {
	for _, j := range joins {
		var err error
		matched, err = evaluateJoin(matched, j, prov, resolver)
		if err != nil {
			return nil, err
		}
	}
	return matched, nil
}

func evaluateJoin(matched *index.IDSet, j *query.JoinSpec, prov IndexProvider, resolver NamespaceResolver) (*index.IDSet, error) {
	if resolver == nil {
		return nil, kvxerror.Logicf("join against namespace %q requested but no resolver is configured", j.Namespace)
	}
	foreign, ok := resolver.ResolveNamespace(j.Namespace)
	if !ok {
		return nil, kvxerror.NotFoundf("joined namespace %q not found", j.Namespace)
	}
	localFieldIdx, ok := prov.FieldIndex(j.LocalField)
	if !ok {
		return nil, kvxerror.Paramsf("unknown join field %q", j.LocalField)
	}

	subFingerprint := subqueryFingerprint(j.SubQuery)
	matches := make(map[int]bool, matched.Len())

	var rangeErr error
	matched.ForEach(func(rowID int) {
		if rangeErr != nil {
			return
		}
		pv, ok := prov.Payload(rowID)
		if !ok {
			return
		}
		localVal, err := pv.Get(localFieldIdx)
		if err != nil {
			rangeErr = err
			return
		}

		boundKey := cache.JoinKey{
			SubQueryFingerprint:   subFingerprint,
			BoundValueFingerprint: renderJoinValue(localVal),
			Version:               foreign.Version(),
		}
		foreignRows, ok := prov.JoinCache().Get(boundKey)
		if !ok {
			bound := bindForeignValue(j.SubQuery, j.ForeignField, localVal)
			res, err := foreign.Select(bound)
			if err != nil {
				rangeErr = err
				return
			}
			foreignRows = idSetFromRowIDs(res.RowIDs)
			prov.JoinCache().Put(boundKey, foreignRows, foreignRows.Len()+1, foreignRows.Empty())
		}

		if !foreignRows.Empty() {
			matches[rowID] = true
		}
	})
	if rangeErr != nil {
		return nil, rangeErr
	}

	if j.Kind == query.JoinLeft {
		return matched, nil
	}
	out := index.NewIDSet()
	for rowID := range matches {
		out.Add(rowID)
	}
	return out, nil
}

func idSetFromRowIDs(rowIDs []int) *index.IDSet {
	set := index.NewIDSet()
	for _, id := range rowIDs {
		set.Add(id)
	}
	return set
}

// bindForeignValue builds the foreign-side query for one bound local
// value. It cannot simply wrap sub.Where in a nested Group: Normalize
// only accepts a Group nested inside a top-level AND term when that
// nested group is itself a plain OR of leaves, so instead it flattens
// sub.Where's own top-level entries into a fresh top-level AND group and
// appends one more entry for the bound equality.
func bindForeignValue(sub *query.Query, foreignField string, v keyval.Value) *query.Query {
	bound := *sub
	g := &query.Group{Op: query.OpAnd}
	if sub.Where != nil {
		g.Entries = append(g.Entries, sub.Where.Entries...)
	}
	g.Entries = append(g.Entries, query.Entry{Predicate: &query.Predicate{
		Field:  foreignField,
		Cond:   index.Eq,
		Values: []keyval.Value{v},
	}})
	bound.Where = g
	bound.Limit = -1
	bound.Offset = 0
	bound.WithTotalCount = false
	bound.Aggregations = nil
	bound.Joins = nil
	return &bound
}

// subqueryFingerprint renders a JoinSpec's subquery shape (everything but
// the bound value, which is fingerprinted separately as
// JoinKey.BoundValueFingerprint) so JoinCache entries for two structurally
// different subqueries never collide.
func subqueryFingerprint(q *query.Query) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ns=%s;", q.Namespace)
	groups, err := query.Normalize(q.Where)
	if err != nil {
		fmt.Fprintf(&sb, "err=%v", err)
		return sb.String()
	}
	for _, g := range groups {
		sb.WriteString("g(")
		for _, p := range g.Predicates {
			fmt.Fprintf(&sb, "%s,%s,%v,[", p.Field, p.Cond, p.Not)
			for _, v := range p.Values {
				sb.WriteString(renderJoinValue(v))
				sb.WriteByte(',')
			}
			sb.WriteString("])")
		}
		sb.WriteByte(')')
	}
	fmt.Fprintf(&sb, ";sort=%v", q.Sort)
	return sb.String()
}

func renderJoinValue(v keyval.Value) string {
	switch v.Type() {
	case keyval.Int32, keyval.Int64:
		return fmt.Sprintf("i%d", v.Int64())
	case keyval.Double:
		return fmt.Sprintf("f%g", v.Double())
	case keyval.String:
		return "s" + v.Str()
	default:
		return v.Type().String()
	}
}

// facetKey is a comparable stand-in for keyval.Value, used as a map key
// for Facet/Distinct aggregation since a Value holding a CompositeRef may
// not itself be comparable.
type facetKey struct {
	typ keyval.Type
	i   int64
	f   float64
	s   string
}

func keyOf(v keyval.Value) facetKey {
	switch v.Type() {
	case keyval.Int32, keyval.Int64:
		return facetKey{typ: v.Type(), i: v.Int64()}
	case keyval.Double:
		return facetKey{typ: v.Type(), f: v.Double()}
	case keyval.String:
		return facetKey{typ: v.Type(), s: v.Str()}
	default:
		return facetKey{typ: v.Type()}
	}
}

// computeAggregations evaluates every requested aggregation over the
// full matched row set (already joined, not yet limited/offset), per
// spec.md §4.4.
func computeAggregations(aggs []query.Aggregation, rowIDs []int, prov IndexProvider) ([]AggregationResult, error) {
	out := make([]AggregationResult, 0, len(aggs))
	for _, a := range aggs {
		fieldIdx, ok := prov.FieldIndex(a.Field)
		if !ok {
			return nil, kvxerror.Paramsf("unknown aggregation field %q", a.Field)
		}
		values := make([]keyval.Value, 0, len(rowIDs))
		for _, rowID := range rowIDs {
			pv, ok := prov.Payload(rowID)
			if !ok {
				continue
			}
			v, err := pv.Get(fieldIdx)
			if err != nil {
				return nil, err
			}
			if v.IsNil() {
				continue
			}
			values = append(values, v)
		}
		switch a.Kind {
		case query.AggMin, query.AggMax, query.AggSum, query.AggAvg:
			out = append(out, computeNumericAgg(a, values))
		case query.AggFacet:
			out = append(out, computeFacet(a, values))
		case query.AggDistinct:
			out = append(out, computeDistinct(a, values))
		default:
			return nil, kvxerror.Paramsf("unknown aggregation kind %v", a.Kind)
		}
	}
	return out, nil
}

func toFloat(v keyval.Value) (float64, bool) {
	switch v.Type() {
	case keyval.Int32, keyval.Int64:
		return float64(v.Int64()), true
	case keyval.Double:
		return v.Double(), true
	default:
		return 0, false
	}
}

func computeNumericAgg(a query.Aggregation, values []keyval.Value) AggregationResult {
	res := AggregationResult{Kind: a.Kind, Field: a.Field}
	var sum float64
	var count int
	var min, max float64
	first := true
	for _, v := range values {
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		sum += f
		count++
		if first || f < min {
			min = f
		}
		if first || f > max {
			max = f
		}
		first = false
	}
	switch a.Kind {
	case query.AggMin:
		res.Value = min
	case query.AggMax:
		res.Value = max
	case query.AggSum:
		res.Value = sum
	case query.AggAvg:
		if count > 0 {
			res.Value = sum / float64(count)
		}
	}
	return res
}

func computeFacet(a query.Aggregation, values []keyval.Value) AggregationResult {
	counts := make(map[facetKey]int, len(values))
	sample := make(map[facetKey]keyval.Value, len(values))
	for _, v := range values {
		k := keyOf(v)
		counts[k]++
		if _, ok := sample[k]; !ok {
			sample[k] = v
		}
	}
	facets := make([]FacetCount, 0, len(counts))
	for k, c := range counts {
		facets = append(facets, FacetCount{Value: sample[k], Count: c})
	}
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].Count != facets[j].Count {
			return facets[i].Count > facets[j].Count
		}
		return facets[i].Value.Compare(facets[j].Value, keyval.CollateOpts{}) < 0
	})
	if a.Limit > 0 && a.Limit < len(facets) {
		facets = facets[:a.Limit]
	}
	return AggregationResult{Kind: a.Kind, Field: a.Field, Facets: facets}
}

func computeDistinct(a query.Aggregation, values []keyval.Value) AggregationResult {
	seen := make(map[facetKey]bool, len(values))
	distinct := make([]keyval.Value, 0, len(values))
	for _, v := range values {
		k := keyOf(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		distinct = append(distinct, v)
	}
	sort.Slice(distinct, func(i, j int) bool {
		return distinct[i].Compare(distinct[j], keyval.CollateOpts{}) < 0
	})
	return AggregationResult{Kind: a.Kind, Field: a.Field, Distinct: distinct}
}
