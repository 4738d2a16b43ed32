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

// Package rpcclient dials the binary RPC protocol and translates its
// StatusProto-carrying responses back into kvxerror-classified Go
// errors, the client half of spec.md §6/§13's "cproto://" DSN. It
// follows rpc/client.go's per-address connection cache (clientMu,
// clients map[string]*Client) — generalized from the teacher's
// net/rpc.Client to a cached *grpc.ClientConn per address, dialed once
// and reused across calls.
package rpcclient

import (
	"bytes"
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/rpcproto"
)

var (
	connsMu sync.Mutex
	conns   = map[string]*grpc.ClientConn{}
)

// dial returns a cached connection to addr, dialing a new one if
// necessary. Only insecure (no-TLS) dialing is implemented; a secure
// deployment is expected to terminate TLS in front of the listener,
// matching the "insecure=true" default of serverconfig.Default.
func dial(addr string) (*grpc.ClientConn, error) {
	connsMu.Lock()
	defer connsMu.Unlock()

	if cc, ok := conns[addr]; ok {
		return cc, nil
	}
	cc, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, kvxerror.Wrap(err, kvxerror.Network, "dialing "+addr)
	}
	conns[addr] = cc
	return cc, nil
}

// Client is a library-API-shaped wrapper around rpcproto.KVIndexClient
// bound to one remote address, matching spec.md §6's "cproto://"
// contract: Insert/Update/Delete/Select/Commit returning a Go error
// classified by kvxerror instead of the raw StatusProto envelope.
type Client struct {
	addr string
	rpc  rpcproto.KVIndexClient
}

// Dial connects to a kvindex server at addr (host:port).
func Dial(addr string) (*Client, error) {
	cc, err := dial(addr)
	if err != nil {
		return nil, err
	}
	return &Client{addr: addr, rpc: rpcproto.NewKVIndexClient(cc)}, nil
}

func errorFromStatus(st *rpcproto.StatusProto) error {
	if st == nil || kvxerror.Code(st.Code) == kvxerror.OK {
		return nil
	}
	return kvxerror.New(kvxerror.Code(st.Code), st.Message)
}

// Insert encodes item and inserts it into ns, returning its assigned
// row id.
func (c *Client) Insert(ctx context.Context, ns string, item *payload.Item) (int, error) {
	var buf bytes.Buffer
	if err := item.GetJSON(&buf); err != nil {
		return 0, kvxerror.Wrap(err, kvxerror.Internal, "encoding item")
	}
	resp, err := c.rpc.Insert(ctx, &rpcproto.InsertRequest{Namespace: ns, ItemJson: buf.Bytes()})
	if err != nil {
		return 0, kvxerror.Wrap(err, kvxerror.Network, "Insert RPC")
	}
	if err := errorFromStatus(resp.Status); err != nil {
		return 0, err
	}
	return int(resp.RowId), nil
}

// Update encodes item and replaces the row named by item's own rowId
// (GetID), matching Insert/Upsert/Delete's shared (ns, item) shape. An
// item with no assigned rowId is inserted fresh, per Namespace.Update.
func (c *Client) Update(ctx context.Context, ns string, item *payload.Item) error {
	var buf bytes.Buffer
	if err := item.GetJSON(&buf); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "encoding item")
	}
	resp, err := c.rpc.Update(ctx, &rpcproto.UpdateRequest{Namespace: ns, RowId: int64(item.GetID()), ItemJson: buf.Bytes()})
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Network, "Update RPC")
	}
	return errorFromStatus(resp.Status)
}

// Delete removes the row named by item's own rowId (GetID) from ns.
func (c *Client) Delete(ctx context.Context, ns string, item *payload.Item) error {
	resp, err := c.rpc.Delete(ctx, &rpcproto.DeleteRequest{Namespace: ns, RowId: int64(item.GetID())})
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Network, "Delete RPC")
	}
	return errorFromStatus(resp.Status)
}

// SelectSQL runs sql against the server and returns the matched items'
// raw JSON encodings plus the total match count.
func (c *Client) SelectSQL(ctx context.Context, sql string) ([][]byte, int, error) {
	resp, err := c.rpc.Select(ctx, &rpcproto.SelectRequest{Sql: sql})
	if err != nil {
		return nil, 0, kvxerror.Wrap(err, kvxerror.Network, "Select RPC")
	}
	if err := errorFromStatus(resp.Status); err != nil {
		return nil, 0, err
	}
	return resp.ItemsJson, int(resp.TotalCount), nil
}

// SelectJSON runs a JSON-DSL query document against the server.
func (c *Client) SelectJSON(ctx context.Context, doc []byte) ([][]byte, int, error) {
	resp, err := c.rpc.Select(ctx, &rpcproto.SelectRequest{JsonQuery: doc})
	if err != nil {
		return nil, 0, kvxerror.Wrap(err, kvxerror.Network, "Select RPC")
	}
	if err := errorFromStatus(resp.Status); err != nil {
		return nil, 0, err
	}
	return resp.ItemsJson, int(resp.TotalCount), nil
}

// Commit flushes ns's pending WAL records on the server.
func (c *Client) Commit(ctx context.Context, ns string) error {
	resp, err := c.rpc.Commit(ctx, &rpcproto.CommitRequest{Namespace: ns})
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Network, "Commit RPC")
	}
	return errorFromStatus(resp.Status)
}

// Ping checks the connection is alive, matching rpc/context.go's
// runHeartbeat's role of tracking per-connection health, without that
// file's clock-offset bookkeeping.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rpc.Ping(ctx, &rpcproto.PingRequest{Addr: c.addr})
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Network, "Ping RPC")
	}
	return nil
}

// Close releases the client's cached connection.
func (c *Client) Close() error {
	connsMu.Lock()
	defer connsMu.Unlock()
	cc, ok := conns[c.addr]
	if !ok {
		return nil
	}
	delete(conns, c.addr)
	return cc.Close()
}
