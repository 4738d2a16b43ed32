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

// Package namespace implements the runtime of spec.md §4.5: a schema
// (payload.Type), a dense vector of rows keyed by rowId, the maintained
// Index family over them, and the mutation/selection operations with
// the lock discipline of spec.md §5. It is grounded on storage/store.go
// for the "one struct owns schema, data and secondary structures behind
// a single RWMutex" shape: AddIndex only registers a new index after
// its backfill loop over every existing row has fully succeeded, so a
// concurrent Select taking the read lock never observes a half-built
// index.
package namespace

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kvindex/kvindex/cache"
	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/plan"
	"github.com/kvindex/kvindex/query"
)

// WriteAheadLog is a namespace's contract with its durability layer. It
// is defined here, not imported from package storage, for the same
// import-cycle reason plan.IndexProvider is defined in package plan:
// namespace must not depend on the not-yet-built storage package, so
// storage depends on namespace's interface instead.
type WriteAheadLog interface {
	// Append records one mutation and returns its assigned sequence
	// number, matching the "W:<seq>" log key scheme of spec.md §6.
	Append(record WALRecord) (seq int64, err error)
	// Sync flushes buffered records to stable storage, called on Commit.
	Sync() error
}

// WALRecord is one write-ahead log entry.
type WALRecord struct {
	Seq   int64
	Op    byte
	RowID int
	Data  []byte
}

// The write-ahead log operation tags.
const (
	OpInsert byte = iota
	OpUpdate
	OpDelete
)

// IndexDef describes one maintained index over the namespace's schema,
// matching indexdef.h's IndexDef (spec.md §12): a name, the field(s) it
// covers (more than one makes it a composite index), the backing Kind,
// its Options bitset and, for String fields, a collation.
type IndexDef struct {
	Name      string
	Fields    []string
	Kind      index.Kind
	Options   index.Options
	ValueType keyval.Type
	Collate   keyval.CollateOpts
}

// IndexMemStat pairs an index's name with its point-in-time MemStat, per
// cpp_src/core/namespacestat.h's IndexMemStat.
type IndexMemStat struct {
	Name string
	index.MemStat
}

// Stat is a point-in-time snapshot of a namespace's memory usage and
// occupancy, grounded on cpp_src/core/namespacestat.h's
// NamespaceMemStat.
type Stat struct {
	Name            string
	ItemsCount      int
	EmptyItemsCount int
	Version         int64
	Indexes         []IndexMemStat
	QueryCache      cache.Stats
	JoinCache       cache.Stats
}

// Namespace is one collection of typed, indexed items, per spec.md §3.
type Namespace struct {
	mu sync.RWMutex

	name string
	typ  *payload.Type

	rows     []*payload.Item
	freeList []int

	indexDefs    []IndexDef
	indexes      map[string]index.Index
	fieldToIndex map[string]string
	pkIndexName  string

	version int64
	walSeq  int64
	wal     WriteAheadLog

	queryCache *cache.QueryCache
	joinCache  *cache.JoinCache

	resolver plan.NamespaceResolver
}

// New creates an empty namespace named name over typ. wal may be nil,
// in which case mutations are not durably logged (used by tests and by
// purely in-memory namespaces per spec.md §6's builtin:// DSN).
func New(name string, typ *payload.Type, wal WriteAheadLog) *Namespace {
	return &Namespace{
		name:         name,
		typ:          typ,
		indexes:      map[string]index.Index{},
		fieldToIndex: map[string]string{},
		wal:          wal,
		queryCache:   cache.NewQueryCache(),
		joinCache:    cache.NewJoinCache(),
	}
}

// Name returns the namespace's name.
func (n *Namespace) Name() string { return n.name }

// SetResolver attaches the cross-namespace lookup a join's subquery
// needs to reach another open namespace. A registry calls this once,
// right after creating or adopting the handle it hands back; a
// namespace with no resolver can still answer every query without a
// Joins clause.
func (n *Namespace) SetResolver(r plan.NamespaceResolver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolver = r
}

// Version returns the current namespace version, bumped on every
// mutation and structural change (spec.md §4.5).
func (n *Namespace) Version() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.version
}

// Insert adds item as a new row, assigning it a fresh rowId. It fails
// with errLogic if the namespace has a primary key and item's PK field
// looks unset, and with errConflict if the PK value already belongs to
// another row.
func (n *Namespace) Insert(item *payload.Item) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.insertLocked(item)
}

func (n *Namespace) insertLocked(item *payload.Item) (int, error) {
	if err := n.checkPKPresenceLocked(item); err != nil {
		return -1, err
	}
	if existing, ok := n.pkConflictLocked(item); ok {
		return -1, kvxerror.Conflictf("namespace %q: primary key already present at row %d", n.name, existing)
	}

	rowID := n.allocRowIDLocked()
	item.SetID(rowID)
	n.rows[rowID] = item
	if err := n.applyIndexesLocked(item, rowID); err != nil {
		n.freeRowLocked(rowID)
		item.SetID(-1)
		return -1, err
	}
	n.bumpVersionLocked()
	if err := n.appendWALLocked(OpInsert, rowID, item); err != nil {
		return rowID, err
	}
	return rowID, nil
}

// Update replaces the row identified by item's own rowId (GetID) or, if
// unset, its primary key value, applying the index delta under the
// fixed-order, rollback-on-conflict discipline of spec.md §7. Per
// spec.md §4.5's "same as Insert if rowId unknown," an item with no
// resolvable rowId is inserted as new rather than rejected.
func (n *Namespace) Update(item *payload.Item) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rowID, err := n.resolveRowLocked(item)
	if err != nil {
		return -1, err
	}
	if rowID < 0 {
		return n.insertLocked(item)
	}

	old := n.rows[rowID]
	item.SetID(rowID)
	if err := n.swapIndexesLocked(old, item, rowID); err != nil {
		return -1, err
	}
	n.rows[rowID] = item
	n.bumpVersionLocked()
	if err := n.appendWALLocked(OpUpdate, rowID, item); err != nil {
		return rowID, err
	}
	return rowID, nil
}

// Upsert inserts item if its primary key is new, or updates the
// existing row otherwise. A namespace without a primary key always
// inserts.
func (n *Namespace) Upsert(item *payload.Item) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkPKPresenceLocked(item); err != nil {
		return -1, err
	}
	if rowID, ok := n.pkConflictLocked(item); ok {
		item.SetID(rowID)
		if err := n.swapIndexesLocked(n.rows[rowID], item, rowID); err != nil {
			return -1, err
		}
		n.rows[rowID] = item
		n.bumpVersionLocked()
		if err := n.appendWALLocked(OpUpdate, rowID, item); err != nil {
			return rowID, err
		}
		return rowID, nil
	}
	return n.insertLocked(item)
}

// Delete removes the row item identifies, resolved the same way Update
// resolves its target: item's own GetID() if set, otherwise a primary
// key lookup. The freed rowId is available for reuse by a later Insert.
func (n *Namespace) Delete(item *payload.Item) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	rowID, err := n.resolveRowLocked(item)
	if err != nil {
		return err
	}
	if rowID < 0 {
		return kvxerror.NotFoundf("namespace %q: item carries no rowId or matching primary key", n.name)
	}

	victim := n.rows[rowID]
	for _, def := range n.indexDefs {
		idx := n.indexes[def.Name]
		keys, err := n.extractKeys(def, victim)
		if err != nil {
			continue // best-effort: a schema drift on a dying row must not block its deletion
		}
		for _, k := range keys {
			idx.Delete(k, rowID)
		}
	}
	n.freeRowLocked(rowID)
	n.bumpVersionLocked()
	return n.appendWALLocked(OpDelete, rowID, nil)
}

// Select plans and runs q, consulting and populating the QueryCache
// keyed on the namespace's current version. A query carrying Joins or
// Aggregations bypasses the QueryCache: a join's result depends on a
// foreign namespace's version too, which the cache key does not carry,
// and an aggregation result has no home in the cached RowIDs/TotalCount
// shape.
func (n *Namespace) Select(q *query.Query) (*plan.Result, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(q.Joins) > 0 || len(q.Aggregations) > 0 {
		return plan.Execute(q, n, n.resolver)
	}

	key := cache.QueryKey{Fingerprint: fingerprint(q), Version: n.version}
	if cached, ok := n.queryCache.Get(key); ok {
		return &plan.Result{RowIDs: cached.RowIDs, TotalCount: cached.TotalCount}, nil
	}
	res, err := plan.Execute(q, n, n.resolver)
	if err != nil {
		return nil, err
	}
	n.queryCache.Put(key, cache.QueryResult{RowIDs: res.RowIDs, TotalCount: res.TotalCount},
		len(res.RowIDs)+1, len(res.RowIDs) == 0)
	return res, nil
}

// Commit calls every index's Commit (a no-op for each variant here, all
// of them maintained eagerly), bumps the namespace version and syncs the
// write-ahead log, per spec.md §4.5.
func (n *Namespace) Commit() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, def := range n.indexDefs {
		n.indexes[def.Name].Commit()
	}
	n.bumpVersionLocked()
	if n.wal == nil {
		return nil
	}
	if err := n.wal.Sync(); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "syncing write-ahead log")
	}
	return nil
}

// AddIndex builds and backfills a new index over the namespace's
// existing rows. A conflict discovered mid-backfill (a duplicate key
// under a unique index) aborts the whole operation; nothing is
// registered on the namespace and the partially built index is
// discarded.
func (n *Namespace) AddIndex(def IndexDef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addIndexLocked(def)
}

// DropIndex removes a maintained index. Existing rows are unaffected;
// only the secondary structure over field is discarded.
func (n *Namespace) DropIndex(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.removeIndexLocked(name) {
		return kvxerror.NotFoundf("namespace %q: index %q not found", n.name, name)
	}
	n.bumpVersionLocked()
	return nil
}

// UpdateIndex replaces an existing index's definition (e.g. changing
// its Kind or Collate), rebuilding it from scratch via a drop-then-add.
// If the rebuild fails, the original index is restored and the
// namespace is left exactly as it was.
func (n *Namespace) UpdateIndex(def IndexDef) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	oldDef, hadOld := n.indexDefByName(def.Name)
	oldIdx := n.indexes[def.Name]
	if hadOld {
		n.removeIndexLocked(def.Name)
	}
	if err := n.addIndexLocked(def); err != nil {
		if hadOld {
			n.indexDefs = append(n.indexDefs, oldDef)
			n.indexes[oldDef.Name] = oldIdx
			n.registerFieldsLocked(oldDef)
			if oldDef.Options.IsPK() {
				n.pkIndexName = oldDef.Name
			}
		}
		return err
	}
	return nil
}

// Stat reports a point-in-time snapshot of the namespace's occupancy
// and memory usage.
func (n *Namespace) Stat() Stat {
	n.mu.RLock()
	defer n.mu.RUnlock()

	items, empty := 0, 0
	for _, r := range n.rows {
		if r != nil {
			items++
		} else {
			empty++
		}
	}
	idxStats := make([]IndexMemStat, 0, len(n.indexDefs))
	for _, def := range n.indexDefs {
		idxStats = append(idxStats, IndexMemStat{Name: def.Name, MemStat: n.indexes[def.Name].MemStat()})
	}
	return Stat{
		Name:            n.name,
		ItemsCount:      items,
		EmptyItemsCount: empty,
		Version:         n.version,
		Indexes:         idxStats,
		QueryCache:      n.queryCache.Stats(),
		JoinCache:       n.joinCache.Stats(),
	}
}

// plan.IndexProvider implementation. These are called by plan.Execute
// from within Select's read lock and must not lock again.

// Index implements plan.IndexProvider.
func (n *Namespace) Index(field string) (index.Index, bool) {
	name, ok := n.fieldToIndex[field]
	if !ok {
		return nil, false
	}
	idx, ok := n.indexes[name]
	return idx, ok
}

// FieldIndex implements plan.IndexProvider.
func (n *Namespace) FieldIndex(field string) (int, bool) {
	i, err := n.typ.FieldByName(field)
	if err != nil {
		return 0, false
	}
	return i, true
}

// PayloadType implements plan.IndexProvider.
func (n *Namespace) PayloadType() *payload.Type { return n.typ }

// RowIDs implements plan.IndexProvider.
func (n *Namespace) RowIDs() *index.IDSet {
	ids := index.NewIDSet()
	for i, r := range n.rows {
		if r != nil {
			ids.Add(i)
		}
	}
	return ids
}

// Payload implements plan.IndexProvider.
func (n *Namespace) Payload(rowID int) (*payload.Value, bool) {
	if rowID < 0 || rowID >= len(n.rows) || n.rows[rowID] == nil {
		return nil, false
	}
	return n.rows[rowID].Value, true
}

// Collate implements plan.IndexProvider.
func (n *Namespace) Collate(field string) keyval.CollateOpts {
	if name, ok := n.fieldToIndex[field]; ok {
		if def, ok := n.indexDefByName(name); ok {
			return def.Collate
		}
	}
	return keyval.DefaultCollate
}

// JoinCache implements plan.IndexProvider, handing the planner this
// namespace's own per-bound-value join cache to consult and populate
// while it executes a JoinSpec against a foreign namespace.
func (n *Namespace) JoinCache() *cache.JoinCache { return n.joinCache }

// IndexDefs returns the namespace's current index definitions, for a
// storage adapter persisting or reconstructing namespace metadata
// (spec.md §6's "M: metadata" key).
func (n *Namespace) IndexDefs() []IndexDef {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]IndexDef, len(n.indexDefs))
	copy(out, n.indexDefs)
	return out
}

// ForEach calls fn for every live row under the namespace's read lock,
// in ascending rowId order, stopping early if fn returns an error. It
// exists for a storage adapter's snapshot pass and diagnostic tooling;
// query execution itself goes through Select/plan.Execute, never this
// method.
func (n *Namespace) ForEach(fn func(rowID int, item *payload.Item) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for i, r := range n.rows {
		if r == nil {
			continue
		}
		if err := fn(i, r); err != nil {
			return err
		}
	}
	return nil
}

// internal helpers

func (n *Namespace) allocRowIDLocked() int {
	if len(n.freeList) > 0 {
		id := n.freeList[len(n.freeList)-1]
		n.freeList = n.freeList[:len(n.freeList)-1]
		return id
	}
	id := len(n.rows)
	n.rows = append(n.rows, nil)
	return id
}

func (n *Namespace) freeRowLocked(rowID int) {
	n.rows[rowID] = nil
	n.freeList = append(n.freeList, rowID)
}

func (n *Namespace) bumpVersionLocked() {
	n.version++
	cache.InvalidateVersion(n.queryCache, n.version)
	cache.InvalidateJoinVersion(n.joinCache, n.version)
}

func (n *Namespace) appendWALLocked(op byte, rowID int, item *payload.Item) error {
	if n.wal == nil {
		return nil
	}
	var data []byte
	if item != nil {
		var buf strings.Builder
		if err := item.GetJSON(&buf); err == nil {
			data = []byte(buf.String())
		}
	}
	n.walSeq++
	if _, err := n.wal.Append(WALRecord{Seq: n.walSeq, Op: op, RowID: rowID, Data: data}); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "appending to write-ahead log")
	}
	return nil
}

func (n *Namespace) indexDefByName(name string) (IndexDef, bool) {
	for _, d := range n.indexDefs {
		if d.Name == name {
			return d, true
		}
	}
	return IndexDef{}, false
}

func (n *Namespace) registerFieldsLocked(def IndexDef) {
	if len(def.Fields) == 1 {
		n.fieldToIndex[def.Fields[0]] = def.Name
	}
}

func (n *Namespace) removeIndexLocked(name string) bool {
	def, ok := n.indexDefByName(name)
	if !ok {
		return false
	}
	delete(n.indexes, name)
	for i, d := range n.indexDefs {
		if d.Name == name {
			n.indexDefs = append(n.indexDefs[:i], n.indexDefs[i+1:]...)
			break
		}
	}
	if len(def.Fields) == 1 && n.fieldToIndex[def.Fields[0]] == name {
		delete(n.fieldToIndex, def.Fields[0])
	}
	if n.pkIndexName == name {
		n.pkIndexName = ""
	}
	return true
}

// addIndexLocked builds def's backing structure, backfills it from
// every live row, and only then registers it on the namespace — a row
// touched mid-backfill never observes a half-registered index because
// nothing outside this function can see idx until the loop succeeds.
func (n *Namespace) addIndexLocked(def IndexDef) error {
	if _, exists := n.indexes[def.Name]; exists {
		return kvxerror.Logicf("namespace %q: index %q already exists", n.name, def.Name)
	}
	if len(def.Fields) == 0 {
		return kvxerror.Paramsf("namespace %q: index %q needs at least one field", n.name, def.Name)
	}

	valueKind := def.ValueType
	var compositeKinds []keyval.Type
	if len(def.Fields) > 1 {
		compositeKinds = make([]keyval.Type, len(def.Fields))
		for i, fname := range def.Fields {
			fi, err := n.typ.FieldByName(fname)
			if err != nil {
				return kvxerror.Wrap(err, kvxerror.Params, "resolving composite index field")
			}
			compositeKinds[i] = n.typ.Field(fi).Kind
		}
		valueKind = keyval.Composite
	} else {
		fi, err := n.typ.FieldByName(def.Fields[0])
		if err != nil {
			return kvxerror.Wrap(err, kvxerror.Params, "resolving index field")
		}
		valueKind = n.typ.Field(fi).Kind
	}

	idx, err := index.New(def.Kind, def.Name, valueKind, def.Options, def.Collate, compositeKinds)
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Params, "building index")
	}

	for rowID, item := range n.rows {
		if item == nil {
			continue
		}
		keys, err := n.extractKeys(def, item)
		if err != nil {
			return kvxerror.Wrap(err, kvxerror.Params, "backfilling index "+def.Name)
		}
		for _, k := range keys {
			if err := idx.Upsert(k, rowID); err != nil {
				return kvxerror.Wrap(err, kvxerror.Conflict, "backfilling index "+def.Name)
			}
		}
	}

	n.indexDefs = append(n.indexDefs, def)
	n.indexes[def.Name] = idx
	n.registerFieldsLocked(def)
	if def.Options.IsPK() {
		n.pkIndexName = def.Name
	}
	n.bumpVersionLocked()
	return nil
}

// extractKeys reads the index key(s) def would maintain for item: a
// single composite key for a multi-field def, one key per element for
// an array field, or a single scalar key otherwise.
func (n *Namespace) extractKeys(def IndexDef, item *payload.Item) ([]keyval.Value, error) {
	if len(def.Fields) > 1 {
		vals := make([]keyval.Value, 0, len(def.Fields))
		for _, fname := range def.Fields {
			fi, err := n.typ.FieldByName(fname)
			if err != nil {
				return nil, err
			}
			v, err := item.Value.Get(fi)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return []keyval.Value{index.NewCompositeKey(vals...)}, nil
	}

	fi, err := n.typ.FieldByName(def.Fields[0])
	if err != nil {
		return nil, err
	}
	f := n.typ.Field(fi)
	if f.Array {
		vals, err := item.Value.GetArray(fi)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			// A sparse index treats "no elements" the same as "field
			// missing" and skips the row entirely. A non-sparse index
			// must still record the row somewhere, or it would never
			// match Empty/Any at all — it goes in under the same
			// Null sentinel a scalar field's Empty condition looks up.
			if def.Options.IsSparse() {
				return nil, nil
			}
			return []keyval.Value{keyval.NullValue()}, nil
		}
		return vals, nil
	}
	v, err := item.Value.Get(fi)
	if err != nil {
		return nil, err
	}
	if def.Options.IsSparse() && isZeroValue(v) {
		return nil, nil
	}
	return []keyval.Value{v}, nil
}

// isZeroValue reports whether v is the implicit zero value for its
// type — 0, "", or Null/Undefined — the value a sparse index treats as
// "field absent" rather than indexing explicitly.
func isZeroValue(v keyval.Value) bool {
	switch v.Type() {
	case keyval.Null, keyval.Undefined:
		return true
	case keyval.Int32, keyval.Int64:
		return v.Int64() == 0
	case keyval.Double:
		return v.Double() == 0
	case keyval.String:
		return v.Str() == ""
	default:
		return false
	}
}

// indexMutation records one index's applied keys for a mutation, so a
// later step's failure can roll it back in reverse (spec.md §7).
type indexMutation struct {
	idx     index.Index
	oldKeys []keyval.Value
	newKeys []keyval.Value
}

// applyIndexesLocked upserts item's key into every maintained index for
// a brand new row, rolling back already-applied indexes in reverse
// order if one fails (a unique-index collision).
func (n *Namespace) applyIndexesLocked(item *payload.Item, rowID int) error {
	applied := make([]indexMutation, 0, len(n.indexDefs))
	for _, def := range n.indexDefs {
		idx := n.indexes[def.Name]
		keys, err := n.extractKeys(def, item)
		if err != nil {
			rollbackApply(applied, rowID)
			return kvxerror.Wrap(err, kvxerror.Params, "extracting key for index "+def.Name)
		}
		done := make([]keyval.Value, 0, len(keys))
		var upsertErr error
		for _, k := range keys {
			if err := idx.Upsert(k, rowID); err != nil {
				upsertErr = err
				break
			}
			done = append(done, k)
		}
		if upsertErr != nil {
			for _, k := range done {
				idx.Delete(k, rowID)
			}
			rollbackApply(applied, rowID)
			return kvxerror.Wrap(upsertErr, kvxerror.Conflict, "index "+def.Name)
		}
		applied = append(applied, indexMutation{idx: idx, newKeys: done})
	}
	return nil
}

func rollbackApply(applied []indexMutation, rowID int) {
	for i := len(applied) - 1; i >= 0; i-- {
		m := applied[i]
		for _, k := range m.newKeys {
			m.idx.Delete(k, rowID)
		}
	}
}

// swapIndexesLocked replaces old's keys with neu's keys in every
// maintained index, in the namespace's fixed index order. On a
// mid-sequence conflict it undoes the current index's partial upsert,
// then undoes every already-completed index in reverse, restoring
// old's keys throughout — per spec.md §7's partial-mutation rollback.
func (n *Namespace) swapIndexesLocked(old, neu *payload.Item, rowID int) error {
	applied := make([]indexMutation, 0, len(n.indexDefs))
	for _, def := range n.indexDefs {
		idx := n.indexes[def.Name]
		oldKeys, err := n.extractKeys(def, old)
		if err != nil {
			rollbackSwap(applied, rowID)
			return kvxerror.Wrap(err, kvxerror.Params, "extracting old key for index "+def.Name)
		}
		newKeys, err := n.extractKeys(def, neu)
		if err != nil {
			rollbackSwap(applied, rowID)
			return kvxerror.Wrap(err, kvxerror.Params, "extracting new key for index "+def.Name)
		}
		for _, k := range oldKeys {
			idx.Delete(k, rowID)
		}
		done := make([]keyval.Value, 0, len(newKeys))
		var upsertErr error
		for _, k := range newKeys {
			if err := idx.Upsert(k, rowID); err != nil {
				upsertErr = err
				break
			}
			done = append(done, k)
		}
		if upsertErr != nil {
			for _, k := range done {
				idx.Delete(k, rowID)
			}
			for _, k := range oldKeys {
				_ = idx.Upsert(k, rowID)
			}
			rollbackSwap(applied, rowID)
			return kvxerror.Wrap(upsertErr, kvxerror.Conflict, "index "+def.Name)
		}
		applied = append(applied, indexMutation{idx: idx, oldKeys: oldKeys, newKeys: newKeys})
	}
	return nil
}

func rollbackSwap(applied []indexMutation, rowID int) {
	for i := len(applied) - 1; i >= 0; i-- {
		m := applied[i]
		for _, k := range m.newKeys {
			m.idx.Delete(k, rowID)
		}
		for _, k := range m.oldKeys {
			_ = m.idx.Upsert(k, rowID)
		}
	}
}

// checkPKPresenceLocked reports errLogic if the namespace has a
// single-field String primary key and item's value for it is empty.
// Scalar numeric PK fields have no representation for "unset" distinct
// from their zero value in this value model, so presence is only
// checked for String and only for a single-field PK; this is recorded
// as a deliberate scope decision, not an oversight.
func (n *Namespace) checkPKPresenceLocked(item *payload.Item) error {
	if n.pkIndexName == "" {
		return nil
	}
	def, ok := n.indexDefByName(n.pkIndexName)
	if !ok || len(def.Fields) != 1 {
		return nil
	}
	fi, err := n.typ.FieldByName(def.Fields[0])
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Params, "resolving primary key field")
	}
	f := n.typ.Field(fi)
	if f.Array || f.Kind != keyval.String {
		return nil
	}
	v, err := item.Value.Get(fi)
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Params, "reading primary key field")
	}
	if v.Str() == "" {
		return kvxerror.Logicf("namespace %q: primary key field %q is required", n.name, def.Fields[0])
	}
	return nil
}

// pkConflictLocked looks up item's primary key value in the PK index,
// returning the rowId already holding it, if any.
func (n *Namespace) pkConflictLocked(item *payload.Item) (int, bool) {
	if n.pkIndexName == "" {
		return 0, false
	}
	def, ok := n.indexDefByName(n.pkIndexName)
	if !ok {
		return 0, false
	}
	idx := n.indexes[n.pkIndexName]
	uc, ok := idx.(index.UniqueChecker)
	if !ok {
		return 0, false
	}
	keys, err := n.extractKeys(def, item)
	if err != nil || len(keys) == 0 {
		return 0, false
	}
	return uc.Lookup(keys[0])
}

// resolveRowLocked determines which existing row item identifies: its
// own GetID() if that names a live row, or a primary key lookup
// otherwise. It returns -1, nil when item carries no identifying
// information at all (an unassigned rowId and either no primary key or
// one with no match), distinct from a NotFound error when item names an
// explicit rowId that does not resolve to a live row.
func (n *Namespace) resolveRowLocked(item *payload.Item) (int, error) {
	if id := item.GetID(); id >= 0 {
		if id >= len(n.rows) || n.rows[id] == nil {
			return -1, kvxerror.NotFoundf("namespace %q: row %d not found", n.name, id)
		}
		return id, nil
	}
	if rowID, ok := n.pkConflictLocked(item); ok {
		return rowID, nil
	}
	return -1, nil
}

// fingerprint renders q's normalized predicate tree, sort, limit and
// offset into a stable cache key, so two structurally-identical queries
// built through different call paths (SQL text vs. the JSON DSL vs. the
// programmatic builder) still share one QueryCache entry.
func fingerprint(q *query.Query) string {
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
				sb.WriteString(renderVal(v))
				sb.WriteByte(',')
			}
			sb.WriteString("])")
		}
		sb.WriteByte(')')
	}
	fmt.Fprintf(&sb, ";sort=%v;limit=%d;offset=%d;total=%v", q.Sort, q.Limit, q.Offset, q.WithTotalCount)
	return sb.String()
}

func renderVal(v keyval.Value) string {
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
