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

// Package registry implements the database-level facade of spec.md §6's
// library API: a name-keyed map of open namespace handles plus the
// forwarding CRUD/Select/Commit surface that lets a caller address a
// namespace by name instead of holding its handle directly. It follows
// storage/store.go's Store — a struct that owns a mutex-guarded
// map[id]*Range plus allocation/lookup methods over it — generalized
// from range IDs to namespace names.
package registry

import (
	"sort"
	"sync"

	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/namespace"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/plan"
	"github.com/kvindex/kvindex/query"
)

// FieldDef describes one field of a namespace's schema, the definition
// form accepted by OpenNamespace before it is compiled into a
// payload.Type.
type FieldDef struct {
	Name      string
	Kind      keyval.Type
	Array     bool
	JSONPaths []string
}

// IndexDef mirrors namespace.IndexDef; kept as a distinct type here so
// callers building a NamespaceDef don't need to import namespace
// directly, matching the layering split between the library API
// surface and the runtime it fronts.
type IndexDef = namespace.IndexDef

// NamespaceDef is the definition a caller passes to OpenNamespace,
// grounded on spec.md §6's "OpenNamespace(def)" and on
// structured/schema.go's Table (a name plus an ordered Column list plus
// index/primary-key metadata).
type NamespaceDef struct {
	Name    string
	Fields  []FieldDef
	Indexes []IndexDef
}

// WALFactory opens (or resumes) a durable write-ahead log for the
// namespace name. A nil factory yields namespaces with no WAL — pure
// in-memory operation, which is a valid mode per spec.md §6 (the
// storage adapter is described as an optional persistent backing).
type WALFactory func(name string) (namespace.WriteAheadLog, error)

// Registry maps database name — here, one flat namespace of names,
// since spec.md's Non-goals exclude multi-database distribution — to
// open namespace.Namespace handles, and owns their lifecycle.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace.Namespace
	walFactory WALFactory
}

// New builds an empty Registry. walFactory may be nil for an
// all-in-memory registry.
func New(walFactory WALFactory) *Registry {
	return &Registry{
		namespaces: make(map[string]*namespace.Namespace),
		walFactory: walFactory,
	}
}

// OpenNamespace compiles def into a payload.Type, builds its indexes,
// and registers the resulting namespace under def.Name. Re-opening an
// already-open name is a no-op that returns the existing handle,
// mirroring the idempotent-open convention of spec.md §6's embedded
// library API (a client reconnecting to a builtin:// path should not
// have to track whether it already opened a given namespace).
func (r *Registry) OpenNamespace(def NamespaceDef) (*namespace.Namespace, error) {
	if def.Name == "" {
		return nil, kvxerror.Logicf("namespace name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ns, ok := r.namespaces[def.Name]; ok {
		return ns, nil
	}

	typ := payload.NewType(def.Name)
	for _, f := range def.Fields {
		if _, err := typ.AddField(payload.Field{
			Name:      f.Name,
			Kind:      f.Kind,
			Array:     f.Array,
			JSONPaths: f.JSONPaths,
		}); err != nil {
			return nil, kvxerror.Wrap(err, kvxerror.Logic, "add field "+f.Name)
		}
	}

	var wal namespace.WriteAheadLog
	if r.walFactory != nil {
		w, err := r.walFactory(def.Name)
		if err != nil {
			return nil, kvxerror.Wrap(err, kvxerror.Internal, "open WAL for "+def.Name)
		}
		wal = w
	}

	ns := namespace.New(def.Name, typ, wal)
	for _, idef := range def.Indexes {
		if err := ns.AddIndex(idef); err != nil {
			return nil, kvxerror.Wrap(err, kvxerror.Logic, "add index "+idef.Name)
		}
	}
	ns.SetResolver(r)

	r.namespaces[def.Name] = ns
	return ns, nil
}

// Namespace looks up an open namespace by name.
func (r *Registry) Namespace(name string) (*namespace.Namespace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[name]
	if !ok {
		return nil, kvxerror.NotFoundf("namespace %q is not open", name)
	}
	return ns, nil
}

// Adopt registers an already-built namespace handle under its own
// name, without going through OpenNamespace's field/index compilation.
// storage.Load reconstructs a *namespace.Namespace directly from a
// persisted meta record; Adopt is how a caller recovering a storage
// directory at process start hands that handle to a Registry so
// by-name lookups (Select, Insert, ...) can reach it. Adopting a name
// that is already open replaces the existing handle.
func (r *Registry) Adopt(ns *namespace.Namespace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns.SetResolver(r)
	r.namespaces[ns.Name()] = ns
}

// ResolveNamespace implements plan.NamespaceResolver, letting a join's
// subquery reach any other namespace this same registry has open.
func (r *Registry) ResolveNamespace(name string) (plan.JoinTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[name]
	if !ok {
		return nil, false
	}
	return ns, true
}

// CloseNamespace commits and unregisters name. Closing an unknown name
// is a NotFound error; closing is not itself destructive of any
// persisted data — a subsequent OpenNamespace with the same def and
// WALFactory resumes it, per spec.md §6's builtin:// contract.
func (r *Registry) CloseNamespace(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ns, ok := r.namespaces[name]
	if !ok {
		return kvxerror.NotFoundf("namespace %q is not open", name)
	}
	if err := ns.Commit(); err != nil {
		return err
	}
	delete(r.namespaces, name)
	return nil
}

// EnumNamespaces lists every open namespace name in sorted order.
func (r *Registry) EnumNamespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewItem allocates an empty item conforming to ns's schema, per
// spec.md §6's "NewItem(ns)".
func (r *Registry) NewItem(ns string) (*payload.Item, error) {
	n, err := r.Namespace(ns)
	if err != nil {
		return nil, err
	}
	return payload.NewItem(n.PayloadType()), nil
}

// Insert forwards to the named namespace's Insert.
func (r *Registry) Insert(ns string, item *payload.Item) (int, error) {
	n, err := r.Namespace(ns)
	if err != nil {
		return 0, err
	}
	return n.Insert(item)
}

// Update forwards to the named namespace's Update, resolving the
// target row from item's own rowId or primary key rather than a
// separately tracked slot number.
func (r *Registry) Update(ns string, item *payload.Item) (int, error) {
	n, err := r.Namespace(ns)
	if err != nil {
		return -1, err
	}
	return n.Update(item)
}

// Upsert forwards to the named namespace's Upsert.
func (r *Registry) Upsert(ns string, item *payload.Item) (int, error) {
	n, err := r.Namespace(ns)
	if err != nil {
		return 0, err
	}
	return n.Upsert(item)
}

// Delete forwards to the named namespace's Delete, resolving the
// target row from item's own rowId or primary key.
func (r *Registry) Delete(ns string, item *payload.Item) error {
	n, err := r.Namespace(ns)
	if err != nil {
		return err
	}
	return n.Delete(item)
}

// Commit forwards to the named namespace's Commit.
func (r *Registry) Commit(ns string) error {
	n, err := r.Namespace(ns)
	if err != nil {
		return err
	}
	return n.Commit()
}

// SelectSQL parses sql and executes it against the namespace it names,
// per spec.md §6's "Select(query|sql, &results)".
func (r *Registry) SelectSQL(sql string) (*plan.Result, error) {
	q, err := query.ParseSQL(sql)
	if err != nil {
		return nil, err
	}
	return r.Select(q)
}

// SelectJSON parses a JSON-DSL query document and executes it.
func (r *Registry) SelectJSON(data []byte) (*plan.Result, error) {
	q, err := query.ParseJSON(data)
	if err != nil {
		return nil, err
	}
	return r.Select(q)
}

// Select executes an already-built query against the namespace it
// names.
func (r *Registry) Select(q *query.Query) (*plan.Result, error) {
	n, err := r.Namespace(q.Namespace)
	if err != nil {
		return nil, err
	}
	return n.Select(q)
}

// AddIndex forwards to the named namespace's AddIndex.
func (r *Registry) AddIndex(ns string, def IndexDef) error {
	n, err := r.Namespace(ns)
	if err != nil {
		return err
	}
	return n.AddIndex(def)
}

// UpdateIndex forwards to the named namespace's UpdateIndex.
func (r *Registry) UpdateIndex(ns string, def IndexDef) error {
	n, err := r.Namespace(ns)
	if err != nil {
		return err
	}
	return n.UpdateIndex(def)
}

// DropIndex forwards to the named namespace's DropIndex.
func (r *Registry) DropIndex(ns, name string) error {
	n, err := r.Namespace(ns)
	if err != nil {
		return err
	}
	return n.DropIndex(name)
}

// Stat forwards to the named namespace's Stat.
func (r *Registry) Stat(ns string) (namespace.Stat, error) {
	n, err := r.Namespace(ns)
	if err != nil {
		return namespace.Stat{}, err
	}
	return n.Stat(), nil
}
