// Copyright 2016 The Cockroach Authors.
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

// conn.go fills the role sql_util_test.go's now-absent sibling
// sql_util.go once played (makeSQLConn/runQuery/runPrettyQuery): a thin
// abstraction the sql/repl commands drive without caring whether the
// other end is an in-process registry.Registry or a dialed
// rpcclient.Client, mirroring reindexer_tool.cc's DBWrapper<T> template
// parameterized over an embedded core versus a network client.
package cli

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/nsdef"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/query"
	"github.com/kvindex/kvindex/registry"
	"github.com/kvindex/kvindex/rpcclient"
	"github.com/kvindex/kvindex/storage"
)

// sqlConn is the read path every dial target supports: running a
// SELECT (SQL text or JSON-DSL) and getting back matched items as raw
// JSON documents, so the two backends share one result-materialization
// and one table-rendering path.
type sqlConn interface {
	SelectSQL(ctx context.Context, sql string) (items [][]byte, total int, err error)
	SelectJSON(ctx context.Context, doc []byte) (items [][]byte, total int, err error)
	Close() error
}

// mutableConn is the write/introspection path only a builtin://
// connection supports: cproto:// exposes no wire RPC for enumerating
// namespaces or inserting a bare JSON document without a locally-known
// PayloadType, so "namespace"/"dump"/"restore" require it and fail
// clearly against a cproto:// DSN instead of guessing at a schema.
type mutableConn interface {
	sqlConn
	Namespaces(ctx context.Context) ([]string, error)
	Insert(ctx context.Context, ns string, doc []byte) (int, error)
	ForEach(ctx context.Context, ns string, fn func(doc []byte) error) error
}

// dial resolves dsn (per spec.md §6/§13's "builtin://<dir>" or
// "cproto://<host:port>" scheme) into a sqlConn.
func dial(dsn string) (sqlConn, error) {
	switch {
	case strings.HasPrefix(dsn, "builtin://"):
		return dialBuiltin(strings.TrimPrefix(dsn, "builtin://"))
	case strings.HasPrefix(dsn, "cproto://"):
		return dialCproto(strings.TrimPrefix(dsn, "cproto://"))
	default:
		return nil, kvxerror.Paramsf("invalid DSN %q: must begin with builtin:// or cproto://", dsn)
	}
}

// --- builtin:// ---

type builtinConn struct {
	engine storage.Engine
	reg    *registry.Registry
}

// dialBuiltin opens (or creates) a Pebble-backed registry at dir and
// recovers every namespace storage.ListNamespaces finds a saved meta
// record for, following "kvindex start"'s own bring-up sequence so an
// ad hoc "kvindex sql -d builtin://./data" session sees the same data a
// running server would.
func dialBuiltin(dir string) (*builtinConn, error) {
	engine, err := storage.OpenPebble(dir)
	if err != nil {
		return nil, kvxerror.Wrap(err, kvxerror.Internal, "opening storage at "+dir)
	}
	reg := registry.New(storage.NewWALFactory(engine))
	if err := recoverNamespaces(reg, engine); err != nil {
		engine.Close()
		return nil, err
	}
	return &builtinConn{engine: engine, reg: reg}, nil
}

// recoverNamespaces reopens every namespace engine holds a persisted
// meta record for, so its indexes and items are populated before the
// caller runs a query against it.
func recoverNamespaces(reg *registry.Registry, engine storage.Engine) error {
	names, err := storage.ListNamespaces(engine)
	if err != nil {
		return err
	}
	for _, name := range names {
		wal, err := storage.NewWALFactory(engine)(name)
		if err != nil {
			return err
		}
		ns, ok, err := storage.Load(engine, name, wal)
		if err != nil {
			return err
		}
		if ok {
			reg.Adopt(ns)
		}
	}
	return nil
}

func (c *builtinConn) SelectSQL(_ context.Context, sql string) ([][]byte, int, error) {
	q, err := query.ParseSQL(sql)
	if err != nil {
		return nil, 0, err
	}
	return c.selectQuery(q)
}

func (c *builtinConn) SelectJSON(_ context.Context, doc []byte) ([][]byte, int, error) {
	q, err := query.ParseJSON(doc)
	if err != nil {
		return nil, 0, err
	}
	return c.selectQuery(q)
}

func (c *builtinConn) selectQuery(q *query.Query) ([][]byte, int, error) {
	result, err := c.reg.Select(q)
	if err != nil {
		return nil, 0, err
	}
	ns, err := c.reg.Namespace(q.Namespace)
	if err != nil {
		return nil, 0, err
	}
	items := make([][]byte, 0, len(result.RowIDs))
	for _, rowID := range result.RowIDs {
		v, ok := ns.Payload(rowID)
		if !ok {
			continue
		}
		it := &payload.Item{Value: v, TypeVersion: int(ns.Version())}
		it.SetID(rowID)
		var buf bytes.Buffer
		if err := it.GetJSON(&buf); err != nil {
			return nil, 0, err
		}
		items = append(items, buf.Bytes())
	}
	return items, result.TotalCount, nil
}

func (c *builtinConn) Insert(_ context.Context, ns string, doc []byte) (int, error) {
	item, err := c.reg.NewItem(ns)
	if err != nil {
		return 0, err
	}
	var tail []byte
	if err := item.FromJSON(doc, &tail, false, nil); err != nil {
		return 0, kvxerror.Wrap(err, kvxerror.ParseJSON, "decoding item")
	}
	return c.reg.Insert(ns, item)
}

func (c *builtinConn) Namespaces(context.Context) ([]string, error) {
	names := c.reg.EnumNamespaces()
	sort.Strings(names)
	return names, nil
}

func (c *builtinConn) ForEach(_ context.Context, ns string, fn func(doc []byte) error) error {
	n, err := c.reg.Namespace(ns)
	if err != nil {
		return err
	}
	return n.ForEach(func(_ int, item *payload.Item) error {
		var buf bytes.Buffer
		if err := item.GetJSON(&buf); err != nil {
			return err
		}
		return fn(buf.Bytes())
	})
}

func (c *builtinConn) Close() error {
	return c.engine.Close()
}

// --- cproto:// ---

type cprotoConn struct {
	client *rpcclient.Client
}

func dialCproto(addr string) (*cprotoConn, error) {
	c, err := rpcclient.Dial(addr)
	if err != nil {
		return nil, err
	}
	return &cprotoConn{client: c}, nil
}

func (c *cprotoConn) SelectSQL(ctx context.Context, sql string) ([][]byte, int, error) {
	return c.client.SelectSQL(ctx, sql)
}

func (c *cprotoConn) SelectJSON(ctx context.Context, doc []byte) ([][]byte, int, error) {
	return c.client.SelectJSON(ctx, doc)
}

func (c *cprotoConn) Close() error {
	return c.client.Close()
}

// namespaceDefFromYAML loads a schema file for "kvindex start"'s
// --schema flag, per nsdef.NewYAML.
func namespaceDefFromYAML(data []byte) (registry.NamespaceDef, error) {
	def, err := nsdef.NewYAML(data)
	if err != nil {
		return registry.NamespaceDef{}, err
	}
	return def.Compile()
}
