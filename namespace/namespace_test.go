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

package namespace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/query"
)

type fakeWAL struct {
	mu      sync.Mutex
	records []WALRecord
	synced  int
}

func (w *fakeWAL) Append(r WALRecord) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, r)
	return r.Seq, nil
}

func (w *fakeWAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.synced++
	return nil
}

func usersType() *payload.Type {
	t := payload.NewType("users")
	mustAdd(t, payload.Field{Name: "id", Kind: keyval.String, JSONPaths: []string{"id"}})
	mustAdd(t, payload.Field{Name: "age", Kind: keyval.Int64, JSONPaths: []string{"age"}})
	mustAdd(t, payload.Field{Name: "name", Kind: keyval.String, JSONPaths: []string{"name"}})
	mustAdd(t, payload.Field{Name: "tags", Kind: keyval.String, Array: true, JSONPaths: []string{"tags"}})
	return t
}

func mustAdd(t *payload.Type, f payload.Field) {
	if _, err := t.AddField(f); err != nil {
		panic(err)
	}
}

func newUser(t *payload.Type, id string, age int64, name string) *payload.Item {
	it := payload.NewItem(t)
	setStr(it, t, "id", id)
	setInt(it, t, "age", age)
	setStr(it, t, "name", name)
	return it
}

func setStr(it *payload.Item, t *payload.Type, field, val string) {
	fi, err := t.FieldByName(field)
	if err != nil {
		panic(err)
	}
	nv, err := it.Value.Set(fi, []keyval.Value{keyval.FromString(val)})
	if err != nil {
		panic(err)
	}
	it.Value = nv
}

func setInt(it *payload.Item, t *payload.Type, field string, val int64) {
	fi, err := t.FieldByName(field)
	if err != nil {
		panic(err)
	}
	nv, err := it.Value.Set(fi, []keyval.Value{keyval.FromInt64(val)})
	if err != nil {
		panic(err)
	}
	it.Value = nv
}

func setStrArray(it *payload.Item, t *payload.Type, field string, vals ...string) {
	fi, err := t.FieldByName(field)
	if err != nil {
		panic(err)
	}
	kvs := make([]keyval.Value, len(vals))
	for i, v := range vals {
		kvs[i] = keyval.FromString(v)
	}
	nv, err := it.Value.Set(fi, kvs)
	if err != nil {
		panic(err)
	}
	it.Value = nv
}

func newTestNamespace(t *testing.T, wal WriteAheadLog) (*Namespace, *payload.Type) {
	typ := usersType()
	ns := New("users", typ, wal)
	require.NoError(t, ns.AddIndex(IndexDef{Name: "id", Fields: []string{"id"}, Kind: index.KindHash, Options: index.OptPK | index.OptUnique}))
	require.NoError(t, ns.AddIndex(IndexDef{Name: "age", Fields: []string{"age"}, Kind: index.KindOrdered}))
	return ns, typ
}

func selectIDs(t *testing.T, ns *Namespace, q *query.Query) []int {
	res, err := ns.Select(q)
	require.NoError(t, err)
	return res.RowIDs
}

func TestInsertAssignsRowIDAndMaintainsIndexes(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)

	id0, err := ns.Insert(newUser(typ, "u1", 30, "Ada"))
	require.NoError(t, err)
	require.Equal(t, 0, id0)

	id1, err := ns.Insert(newUser(typ, "u2", 20, "Bob"))
	require.NoError(t, err)
	require.Equal(t, 1, id1)

	q := query.New("users").And("age", index.Ge, keyval.FromInt64(25))
	require.Equal(t, []int{0}, selectIDs(t, ns, q))
}

func TestInsertRejectsMissingPK(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	_, err := ns.Insert(newUser(typ, "", 30, "Ada"))
	require.Error(t, err)
	require.True(t, kvxerror.Is(err, kvxerror.Logic))
}

func TestInsertRejectsDuplicatePK(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	_, err := ns.Insert(newUser(typ, "u1", 30, "Ada"))
	require.NoError(t, err)

	_, err = ns.Insert(newUser(typ, "u1", 40, "Ada2"))
	require.Error(t, err)
	require.True(t, kvxerror.Is(err, kvxerror.Conflict))

	// the failed insert must not have left a dangling row or index entry.
	stat := ns.Stat()
	require.Equal(t, 1, stat.ItemsCount)
}

func TestUpdateAppliesIndexDelta(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	rowID, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)

	updated := newUser(typ, "u1", 40, "Ada")
	updated.SetID(rowID)
	got, err := ns.Update(updated)
	require.NoError(t, err)
	require.Equal(t, rowID, got)

	require.Empty(t, selectIDs(t, ns, query.New("users").And("age", index.Eq, keyval.FromInt64(20))))
	require.Equal(t, []int{rowID}, selectIDs(t, ns, query.New("users").And("age", index.Eq, keyval.FromInt64(40))))
}

func TestUpdateResolvesRowByPrimaryKeyWhenIDUnset(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	rowID, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)

	// no SetID call: Update must find the row via the "id" primary key
	// carried in the item itself.
	got, err := ns.Update(newUser(typ, "u1", 40, "Ada"))
	require.NoError(t, err)
	require.Equal(t, rowID, got)
	require.Equal(t, []int{rowID}, selectIDs(t, ns, query.New("users").And("age", index.Eq, keyval.FromInt64(40))))
}

func TestUpdateWithUnknownIdentityInsertsFresh(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)

	rowID, err := ns.Update(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)
	require.Equal(t, []int{rowID}, selectIDs(t, ns, query.New("users").And("id", index.Eq, keyval.FromString("u1"))))
}

func TestUpdateConflictRollsBackToPriorPayload(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	rowA, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)
	_, err = ns.Insert(newUser(typ, "u2", 30, "Bob"))
	require.NoError(t, err)

	// updating u1's row to carry u2's PK value must conflict and leave
	// row A's own PK index entry ("u1") intact.
	conflicting := newUser(typ, "u2", 20, "Ada")
	conflicting.SetID(rowA)
	_, err = ns.Update(conflicting)
	require.Error(t, err)
	require.True(t, kvxerror.Is(err, kvxerror.Conflict))

	require.Equal(t, []int{rowA}, selectIDs(t, ns, query.New("users").And("id", index.Eq, keyval.FromString("u1"))))
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)

	rowID, err := ns.Upsert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)

	again, err := ns.Upsert(newUser(typ, "u1", 21, "Ada"))
	require.NoError(t, err)
	require.Equal(t, rowID, again)

	require.Equal(t, 1, ns.Stat().ItemsCount)
	require.Equal(t, []int{rowID}, selectIDs(t, ns, query.New("users").And("age", index.Eq, keyval.FromInt64(21))))
}

func TestDeleteFreesRowIDForReuse(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	rowID, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)

	victim := newUser(typ, "u1", 20, "Ada")
	victim.SetID(rowID)
	require.NoError(t, ns.Delete(victim))
	require.Empty(t, selectIDs(t, ns, query.New("users").And("id", index.Eq, keyval.FromString("u1"))))

	reused, err := ns.Insert(newUser(typ, "u2", 25, "Bob"))
	require.NoError(t, err)
	require.Equal(t, rowID, reused, "freed rowId should be reused before growing the row vector")
}

func TestDeleteResolvesRowByPrimaryKeyWhenIDUnset(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	_, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)

	// no SetID call: Delete must find the row via the "id" primary key.
	require.NoError(t, ns.Delete(newUser(typ, "u1", 0, "")))
	require.Empty(t, selectIDs(t, ns, query.New("users").And("id", index.Eq, keyval.FromString("u1"))))
}

func TestDeleteWithNoIdentityIsNotFound(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	err := ns.Delete(newUser(typ, "nope", 0, ""))
	require.True(t, kvxerror.Is(err, kvxerror.NotFound))
}

func TestAddIndexBackfillsExistingRows(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	_, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)
	_, err = ns.Insert(newUser(typ, "u2", 25, "Bob"))
	require.NoError(t, err)

	require.NoError(t, ns.AddIndex(IndexDef{Name: "name", Fields: []string{"name"}, Kind: index.KindHash}))
	require.Equal(t, []int{0}, selectIDs(t, ns, query.New("users").And("name", index.Eq, keyval.FromString("Ada"))))
}

func TestAddIndexBackfillConflictLeavesNamespaceUnchanged(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	_, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)
	_, err = ns.Insert(newUser(typ, "u2", 25, "Ada"))
	require.NoError(t, err)

	err = ns.AddIndex(IndexDef{Name: "name", Fields: []string{"name"}, Kind: index.KindHash, Options: index.OptUnique})
	require.Error(t, err)

	stat := ns.Stat()
	for _, is := range stat.Indexes {
		require.NotEqual(t, "name", is.Name, "a failed AddIndex must not register its index")
	}
}

func TestDropIndexRemovesFieldRouting(t *testing.T) {
	ns, _ := newTestNamespace(t, nil)
	require.NoError(t, ns.DropIndex("age"))

	_, ok := ns.Index("age")
	require.False(t, ok)

	stat := ns.Stat()
	require.Len(t, stat.Indexes, 1)
}

func TestDropIndexUnknownNameIsNotFound(t *testing.T) {
	ns, _ := newTestNamespace(t, nil)
	err := ns.DropIndex("nope")
	require.True(t, kvxerror.Is(err, kvxerror.NotFound))
}

func TestSelectCacheInvalidatedByMutation(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	_, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)

	q := query.New("users").And("age", index.Ge, keyval.FromInt64(0))
	first := selectIDs(t, ns, q)
	require.Len(t, first, 1)
	require.Equal(t, 1, ns.Stat().QueryCache.ItemCount)

	_, err = ns.Insert(newUser(typ, "u2", 21, "Bob"))
	require.NoError(t, err)

	// the mutation bumped the version, so the stale cache entry from
	// before it must not still be reported live.
	second := selectIDs(t, ns, q)
	require.Len(t, second, 2)
}

func TestWriteAheadLogRecordsMutationsInOrder(t *testing.T) {
	wal := &fakeWAL{}
	ns, typ := newTestNamespace(t, wal)

	rowID, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)
	updated := newUser(typ, "u1", 21, "Ada")
	updated.SetID(rowID)
	_, err = ns.Update(updated)
	require.NoError(t, err)
	victim := newUser(typ, "u1", 21, "Ada")
	victim.SetID(rowID)
	require.NoError(t, ns.Delete(victim))
	require.NoError(t, ns.Commit())

	require.Len(t, wal.records, 3)
	require.Equal(t, OpInsert, wal.records[0].Op)
	require.Equal(t, OpUpdate, wal.records[1].Op)
	require.Equal(t, OpDelete, wal.records[2].Op)
	require.Equal(t, int64(1), wal.records[0].Seq)
	require.Equal(t, int64(2), wal.records[1].Seq)
	require.Equal(t, int64(3), wal.records[2].Seq)
	require.Equal(t, 1, wal.synced)
}

func TestUpdateUnknownRowIsNotFound(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	item := newUser(typ, "u1", 1, "Ada")
	item.SetID(7)
	_, err := ns.Update(item)
	require.True(t, kvxerror.Is(err, kvxerror.NotFound))
}

func TestEmptyArrayFieldMatchesEmptyNotAny(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	require.NoError(t, ns.AddIndex(IndexDef{Name: "tags", Fields: []string{"tags"}, Kind: index.KindHash}))

	withTags := newUser(typ, "u1", 20, "Ada")
	setStrArray(withTags, typ, "tags", "go", "sql")
	rowWithTags, err := ns.Insert(withTags)
	require.NoError(t, err)

	noTags := newUser(typ, "u2", 25, "Bob")
	setStrArray(noTags, typ, "tags") // zero elements
	rowNoTags, err := ns.Insert(noTags)
	require.NoError(t, err)

	require.Equal(t, []int{rowNoTags}, selectIDs(t, ns, query.New("users").And("tags", index.Empty)))
	require.Equal(t, []int{rowWithTags}, selectIDs(t, ns, query.New("users").And("tags", index.Any)))
}

func TestSparseIndexSkipsZeroValueRows(t *testing.T) {
	ns, typ := newTestNamespace(t, nil)
	require.NoError(t, ns.AddIndex(IndexDef{Name: "name_sparse", Fields: []string{"name"}, Kind: index.KindHash, Options: index.OptSparse}))

	rowWithName, err := ns.Insert(newUser(typ, "u1", 20, "Ada"))
	require.NoError(t, err)
	_, err = ns.Insert(newUser(typ, "u2", 25, ""))
	require.NoError(t, err)

	require.Equal(t, []int{rowWithName}, selectIDs(t, ns, query.New("users").And("name", index.Any)))
	require.Empty(t, selectIDs(t, ns, query.New("users").And("name", index.Eq, keyval.FromString(""))))
}
