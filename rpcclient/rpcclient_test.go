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

package rpcclient

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/registry"
	"github.com/kvindex/kvindex/rpcserver"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	reg := registry.New(nil)
	_, err := reg.OpenNamespace(registry.NamespaceDef{
		Name: "users",
		Fields: []registry.FieldDef{
			{Name: "id", Kind: keyval.String, JSONPaths: []string{"id"}},
			{Name: "age", Kind: keyval.Int64, JSONPaths: []string{"age"}},
		},
		Indexes: []registry.IndexDef{
			{Name: "id", Fields: []string{"id"}, Kind: index.KindHash, Options: index.OptPK | index.OptUnique},
			{Name: "age", Fields: []string{"age"}, Kind: index.KindOrdered},
		},
	})
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := rpcserver.New(reg, lis.Addr().String())
	gs := rpcserver.NewGRPCServer(srv)
	go gs.Serve(lis)

	return lis.Addr().String(), gs.Stop
}

func usersItem(t *testing.T, jsonBody string) *payload.Item {
	t.Helper()
	typ := payload.NewType("users")
	_, err := typ.AddField(payload.Field{Name: "id", Kind: keyval.String, JSONPaths: []string{"id"}})
	require.NoError(t, err)
	_, err = typ.AddField(payload.Field{Name: "age", Kind: keyval.Int64, JSONPaths: []string{"age"}})
	require.NoError(t, err)

	item := payload.NewItem(typ)
	var tail []byte
	require.NoError(t, item.FromJSON([]byte(jsonBody), &tail, false, nil))
	return item
}

func TestInsertSelectUpdateDeleteRoundTrip(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	rowID, err := c.Insert(ctx, "users", usersItem(t, `{"id":"u1","age":30}`))
	require.NoError(t, err)

	itemsJSON, total, err := c.SelectSQL(ctx, "SELECT * FROM users WHERE age = 30")
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, itemsJSON, 1)
	require.Contains(t, string(itemsJSON[0]), "u1")

	updated := usersItem(t, `{"id":"u1","age":31}`)
	updated.SetID(rowID)
	require.NoError(t, c.Update(ctx, "users", updated))

	itemsJSON, total, err = c.SelectJSON(ctx, []byte(`{"namespace":"users","where":[{"field":"age","cond":"eq","value":31}]}`))
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, itemsJSON, 1)

	victim := usersItem(t, `{"id":"u1","age":31}`)
	victim.SetID(rowID)
	require.NoError(t, c.Delete(ctx, "users", victim))
	require.NoError(t, c.Commit(ctx, "users"))
}

func TestInsertUnknownNamespaceReturnsNotFound(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Insert(context.Background(), "missing", usersItem(t, `{"id":"u1","age":30}`))
	require.True(t, kvxerror.Is(err, kvxerror.NotFound))
}

func TestInsertDuplicatePrimaryKeyReturnsConflict(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, err = c.Insert(ctx, "users", usersItem(t, `{"id":"u1","age":30}`))
	require.NoError(t, err)

	_, err = c.Insert(ctx, "users", usersItem(t, `{"id":"u1","age":31}`))
	require.True(t, kvxerror.Is(err, kvxerror.Conflict))
}
