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

// Package storage implements the persistence adapter contract of
// spec.md §6: a plain key-value engine, a WAL keyed on top of it, and a
// namespace metadata/item snapshot layer, concretely backed by
// cockroachdb/pebble. It follows storage/rocksdb.go's shape — a thin
// Engine wrapping a single embedded database handle, exposing
// put/get/del/scan/writeBatch — generalized from the teacher's CGo
// RocksDB binding to Pebble's native Go API, and drops the MVCC
// timestamp layer of storage/engine/mvcc.go entirely: spec.md's
// Non-goals exclude secondary consistency guarantees beyond a
// per-namespace snapshot read, so the engine here is a bare KV store
// with no multi-version records.
package storage

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/kvindex/kvindex/kvxerror"
)

// Engine is the key-value contract a namespace's storage adapter needs,
// per spec.md §6: "Write(key, bytes), Read(key) → bytes?, iterator over
// a prefix, atomic batch."
type Engine interface {
	Write(key, value []byte) error
	Read(key []byte) (value []byte, ok bool, err error)
	Delete(key []byte) error

	// IterateWithPrefix visits every key with the given prefix in
	// ascending order, stopping early if fn returns false.
	IterateWithPrefix(prefix []byte, fn func(key, value []byte) (bool, error)) error

	NewBatch() Batch

	// Sync forces any buffered writes since the last Sync to be durable,
	// without itself writing a new key — the WAL's Commit/Sync hook.
	Sync() error

	Close() error
}

// Batch is an atomically-applied group of writes.
type Batch interface {
	Write(key, value []byte)
	Delete(key []byte)
	Commit() error
}

// PebbleEngine implements Engine over a cockroachdb/pebble database.
type PebbleEngine struct {
	db *pebble.DB
}

// OpenPebble opens (creating if absent) a Pebble database at dir.
func OpenPebble(dir string) (*PebbleEngine, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble engine")
	}
	return &PebbleEngine{db: db}, nil
}

// OpenPebbleWithOptions opens a Pebble database with caller-supplied
// options, used by tests to pass an in-memory vfs.
func OpenPebbleWithOptions(dir string, opts *pebble.Options) (*PebbleEngine, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble engine")
	}
	return &PebbleEngine{db: db}, nil
}

// Write implements Engine.
func (e *PebbleEngine) Write(key, value []byte) error {
	if err := e.db.Set(key, value, pebble.NoSync); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "pebble set")
	}
	return nil
}

// Read implements Engine.
func (e *PebbleEngine) Read(key []byte) ([]byte, bool, error) {
	v, closer, err := e.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kvxerror.Wrap(err, kvxerror.Internal, "pebble get")
	}
	out := append([]byte(nil), v...)
	if cerr := closer.Close(); cerr != nil {
		return nil, false, kvxerror.Wrap(cerr, kvxerror.Internal, "closing pebble value handle")
	}
	return out, true, nil
}

// Delete implements Engine.
func (e *PebbleEngine) Delete(key []byte) error {
	if err := e.db.Delete(key, pebble.NoSync); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "pebble delete")
	}
	return nil
}

// IterateWithPrefix implements Engine.
func (e *PebbleEngine) IterateWithPrefix(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	upper := prefixUpperBound(prefix)
	iter, err := e.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "pebble new iterator")
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		cont, err := fn(append([]byte(nil), iter.Key()...), append([]byte(nil), iter.Value()...))
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return iter.Error()
}

// prefixUpperBound returns the smallest key that is strictly greater
// than every key sharing prefix, or nil if prefix is all 0xff bytes
// (in which case the scan is naturally unbounded above).
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] == 0xff {
			upper = upper[:i]
			continue
		}
		upper[i]++
		return upper[:i+1]
	}
	return nil
}

// NewBatch implements Engine.
func (e *PebbleEngine) NewBatch() Batch {
	return &pebbleBatch{b: e.db.NewBatch()}
}

// Sync implements Engine: it appends a zero-length WAL record with the
// Sync durability option, forcing every buffered NoSync write since the
// last Sync onto stable storage without touching the visible keyspace.
func (e *PebbleEngine) Sync() error {
	if err := e.db.LogData(nil, pebble.Sync); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "pebble log sync")
	}
	return nil
}

// Close implements Engine.
func (e *PebbleEngine) Close() error {
	if err := e.db.Close(); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "closing pebble engine")
	}
	return nil
}

type pebbleBatch struct {
	b *pebble.Batch
}

func (b *pebbleBatch) Write(key, value []byte) {
	_ = b.b.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) {
	_ = b.b.Delete(key, nil)
}

func (b *pebbleBatch) Commit() error {
	if err := b.b.Commit(pebble.NoSync); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "pebble batch commit")
	}
	return nil
}
