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

package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvindex/kvindex/cache"
	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/query"
)

// fakeProvider is a minimal in-memory IndexProvider standing in for a
// namespace, sufficient to exercise the planner's driver-selection and
// residual-scan paths without pulling in package namespace.
type fakeProvider struct {
	typ      *payload.Type
	indexes  map[string]index.Index
	fieldIdx map[string]int
	rows     map[int]*payload.Value
	universe *index.IDSet
	joins    *cache.JoinCache
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	typ := payload.NewType("people")
	_, err := typ.AddField(payload.Field{Name: "age", Kind: keyval.Int64})
	require.NoError(t, err)
	_, err = typ.AddField(payload.Field{Name: "status", Kind: keyval.String})
	require.NoError(t, err)
	_, err = typ.AddField(payload.Field{Name: "bio", Kind: keyval.String})
	require.NoError(t, err)

	ageIdx, _ := typ.FieldByName("age")
	statusIdx, _ := typ.FieldByName("status")
	bioIdx, _ := typ.FieldByName("bio")

	ordered := index.NewOrdered("age", keyval.Int64, 0, keyval.CollateOpts{})
	hash := index.NewHash("status", keyval.String, 0)

	p := &fakeProvider{
		typ: typ,
		indexes: map[string]index.Index{
			"age":    ordered,
			"status": hash,
		},
		fieldIdx: map[string]int{"age": ageIdx, "status": statusIdx, "bio": bioIdx},
		rows:     map[int]*payload.Value{},
		universe: index.NewIDSet(),
		joins:    cache.NewJoinCache(),
	}

	seed := []struct {
		id     int
		age    int64
		status string
		bio    string
	}{
		{1, 30, "active", "loves running errands"},
		{2, 10, "inactive", "quiet weekend reader"},
		{3, 20, "active", "trains for a marathon"},
		{4, 40, "pending", "no bio"},
	}
	for _, s := range seed {
		v := payload.NewValue(typ)
		v, err := v.Set(ageIdx, []keyval.Value{keyval.FromInt64(s.age)})
		require.NoError(t, err)
		v, err = v.Set(statusIdx, []keyval.Value{keyval.FromString(s.status)})
		require.NoError(t, err)
		v, err = v.Set(bioIdx, []keyval.Value{keyval.FromString(s.bio)})
		require.NoError(t, err)

		require.NoError(t, ordered.Upsert(keyval.FromInt64(s.age), s.id))
		require.NoError(t, hash.Upsert(keyval.FromString(s.status), s.id))

		p.rows[s.id] = v
		p.universe.Add(s.id)
	}
	return p
}

func (p *fakeProvider) Index(field string) (index.Index, bool) {
	idx, ok := p.indexes[field]
	return idx, ok
}

func (p *fakeProvider) FieldIndex(field string) (int, bool) {
	i, ok := p.fieldIdx[field]
	return i, ok
}

func (p *fakeProvider) PayloadType() *payload.Type { return p.typ }

func (p *fakeProvider) RowIDs() *index.IDSet { return p.universe.Clone() }

func (p *fakeProvider) Payload(rowID int) (*payload.Value, bool) {
	v, ok := p.rows[rowID]
	return v, ok
}

func (p *fakeProvider) Collate(field string) keyval.CollateOpts { return keyval.CollateOpts{} }

func (p *fakeProvider) JoinCache() *cache.JoinCache { return p.joins }

func TestExecuteDrivesOnOrderedIndexAndSorts(t *testing.T) {
	prov := newFakeProvider(t)
	q := query.New("people").And("age", index.Ge, keyval.FromInt64(15)).SortBy("age", false)
	res, err := Execute(q, prov, nil)
	require.NoError(t, err)
	require.Equal(t, []int{3, 1, 4}, res.RowIDs)
	require.Equal(t, -1, res.TotalCount)
}

func TestExecuteHashDriverForEquality(t *testing.T) {
	prov := newFakeProvider(t)
	q := query.New("people").And("status", index.Eq, keyval.FromString("active"))
	res, err := Execute(q, prov, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{1, 3}, res.RowIDs)
}

func TestExecuteOrBracketUnion(t *testing.T) {
	prov := newFakeProvider(t)
	q := query.New("people").Or("status", index.Eq,
		[]keyval.Value{keyval.FromString("inactive")},
		[]keyval.Value{keyval.FromString("pending")})
	res, err := Execute(q, prov, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{2, 4}, res.RowIDs)
}

func TestExecuteNotNegatesAgainstUniverse(t *testing.T) {
	prov := newFakeProvider(t)
	q := query.New("people").AndNot("status", index.Eq, keyval.FromString("active"))
	res, err := Execute(q, prov, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{2, 4}, res.RowIDs)
}

func TestExecuteResidualScanOnUnindexedField(t *testing.T) {
	prov := newFakeProvider(t)
	q := query.New("people").And("bio", index.Match, keyval.FromString("marathon"))
	res, err := Execute(q, prov, nil)
	require.NoError(t, err)
	require.Equal(t, []int{3}, res.RowIDs)
}

func TestExecuteLimitOffsetAndTotalCount(t *testing.T) {
	prov := newFakeProvider(t)
	q := query.New("people").And("age", index.Ge, keyval.FromInt64(0)).
		SortBy("age", false).WithLimit(2).WithOffset(1).RequestTotalCount()
	res, err := Execute(q, prov, nil)
	require.NoError(t, err)
	require.Equal(t, []int{3, 1}, res.RowIDs)
	require.Equal(t, 4, res.TotalCount)
}

func TestExecuteDeadlineExceeded(t *testing.T) {
	prov := newFakeProvider(t)
	q := query.New("people").And("age", index.Ge, keyval.FromInt64(0)).
		WithDeadline(time.Now().Add(-time.Second))
	_, err := Execute(q, prov, nil)
	require.Error(t, err)
}
