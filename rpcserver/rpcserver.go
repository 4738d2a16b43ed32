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

// Package rpcserver implements rpcproto.KVIndexServer over a
// registry.Registry, the binary RPC protocol's server half of
// spec.md §6/§13. It follows rpc/context.go's NewServer: a thin
// grpc.NewServer wrapper that registers one application service,
// generalized from the teacher's fixed HeartbeatService to this
// package's KVIndexServer plus its own Ping handler.
package rpcserver

import (
	"bytes"
	"context"
	"math"

	"google.golang.org/grpc"

	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/payload"
	"github.com/kvindex/kvindex/query"
	"github.com/kvindex/kvindex/registry"
	"github.com/kvindex/kvindex/rpcproto"
)

// Server adapts a registry.Registry to rpcproto.KVIndexServer.
type Server struct {
	reg  *registry.Registry
	addr string
}

// New builds a Server backed by reg. addr is echoed back by Ping.
func New(reg *registry.Registry, addr string) *Server {
	return &Server{reg: reg, addr: addr}
}

// NewGRPCServer builds a *grpc.Server with s registered on it,
// mirroring rpc/context.go's NewServer (a MaxMsgSize override plus one
// RegisterXServer call, TLS credentials added by the caller via
// serverOpts when running secure).
func NewGRPCServer(s *Server, serverOpts ...grpc.ServerOption) *grpc.Server {
	opts := append([]grpc.ServerOption{grpc.MaxMsgSize(math.MaxInt32)}, serverOpts...)
	gs := grpc.NewServer(opts...)
	rpcproto.RegisterKVIndexServer(gs, s)
	return gs
}

func statusProto(err error) *rpcproto.StatusProto {
	st := kvxerror.StatusOf(err)
	return &rpcproto.StatusProto{Code: int32(st.Code), Message: st.Message}
}

// Insert decodes req.ItemJson against req.Namespace's schema and
// inserts it.
func (s *Server) Insert(ctx context.Context, req *rpcproto.InsertRequest) (*rpcproto.InsertResponse, error) {
	item, err := s.reg.NewItem(req.Namespace)
	if err != nil {
		return &rpcproto.InsertResponse{Status: statusProto(err)}, nil
	}
	var tail []byte
	if err := item.FromJSON(req.ItemJson, &tail, false, nil); err != nil {
		return &rpcproto.InsertResponse{Status: statusProto(err)}, nil
	}
	rowID, err := s.reg.Insert(req.Namespace, item)
	if err != nil {
		return &rpcproto.InsertResponse{Status: statusProto(err)}, nil
	}
	return &rpcproto.InsertResponse{RowId: int64(rowID), Status: statusProto(nil)}, nil
}

// Update decodes req.ItemJson, stamps it with req.RowId, and replaces
// that row (or, per Namespace.Update, inserts it fresh if RowId is
// unset and no primary key match exists).
func (s *Server) Update(ctx context.Context, req *rpcproto.UpdateRequest) (*rpcproto.UpdateResponse, error) {
	item, err := s.reg.NewItem(req.Namespace)
	if err != nil {
		return &rpcproto.UpdateResponse{Status: statusProto(err)}, nil
	}
	var tail []byte
	if err := item.FromJSON(req.ItemJson, &tail, false, nil); err != nil {
		return &rpcproto.UpdateResponse{Status: statusProto(err)}, nil
	}
	item.SetID(int(req.RowId))
	if _, err := s.reg.Update(req.Namespace, item); err != nil {
		return &rpcproto.UpdateResponse{Status: statusProto(err)}, nil
	}
	return &rpcproto.UpdateResponse{Status: statusProto(nil)}, nil
}

// Delete removes req.RowId from req.Namespace.
func (s *Server) Delete(ctx context.Context, req *rpcproto.DeleteRequest) (*rpcproto.DeleteResponse, error) {
	item, err := s.reg.NewItem(req.Namespace)
	if err != nil {
		return &rpcproto.DeleteResponse{Status: statusProto(err)}, nil
	}
	item.SetID(int(req.RowId))
	if err := s.reg.Delete(req.Namespace, item); err != nil {
		return &rpcproto.DeleteResponse{Status: statusProto(err)}, nil
	}
	return &rpcproto.DeleteResponse{Status: statusProto(nil)}, nil
}

// Select executes req.Sql, or req.JsonQuery if Sql is empty, and
// returns the matched items' JSON encodings.
func (s *Server) Select(ctx context.Context, req *rpcproto.SelectRequest) (*rpcproto.SelectResponse, error) {
	var (
		q   *query.Query
		err error
	)
	if req.Sql != "" {
		q, err = query.ParseSQL(req.Sql)
	} else {
		q, err = query.ParseJSON(req.JsonQuery)
	}
	if err != nil {
		return &rpcproto.SelectResponse{Status: statusProto(err)}, nil
	}

	result, err := s.reg.Select(q)
	if err != nil {
		return &rpcproto.SelectResponse{Status: statusProto(err)}, nil
	}

	n, err := s.reg.Namespace(q.Namespace)
	if err != nil {
		return &rpcproto.SelectResponse{Status: statusProto(err)}, nil
	}

	items := make([][]byte, 0, len(result.RowIDs))
	for _, rowID := range result.RowIDs {
		v, ok := n.Payload(rowID)
		if !ok {
			continue
		}
		it := &payload.Item{Value: v, TypeVersion: int(n.Version())}
		it.SetID(rowID)
		var buf bytes.Buffer
		if err := it.GetJSON(&buf); err != nil {
			return &rpcproto.SelectResponse{Status: statusProto(err)}, nil
		}
		items = append(items, buf.Bytes())
	}
	return &rpcproto.SelectResponse{
		ItemsJson:  items,
		TotalCount: int64(result.TotalCount),
		Status:     statusProto(nil),
	}, nil
}

// Commit flushes req.Namespace's pending WAL records.
func (s *Server) Commit(ctx context.Context, req *rpcproto.CommitRequest) (*rpcproto.CommitResponse, error) {
	if err := s.reg.Commit(req.Namespace); err != nil {
		return &rpcproto.CommitResponse{Status: statusProto(err)}, nil
	}
	return &rpcproto.CommitResponse{Status: statusProto(nil)}, nil
}

// Ping answers a liveness probe with the server's configured address.
func (s *Server) Ping(ctx context.Context, req *rpcproto.PingRequest) (*rpcproto.PingResponse, error) {
	return &rpcproto.PingResponse{Addr: s.addr}, nil
}
