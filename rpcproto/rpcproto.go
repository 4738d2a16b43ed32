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

// Package rpcproto defines the wire messages and grpc service
// descriptor for the binary RPC protocol of spec.md §6, in the shape
// protoc-gen-gogo would emit from a .proto file (plain structs with
// "protobuf:" struct tags, a Reset/String/ProtoMessage trio satisfying
// proto.Message, and a hand-assembled grpc.ServiceDesc) since no
// protoc toolchain runs in this environment. Every message here plays
// the role rpc/heartbeat.go's generated PingRequest/PingResponse play
// for the heartbeat service: a typed envelope gogo/protobuf's
// reflection-based Marshal/Unmarshal can serialize without generated
// code.
package rpcproto

import (
	"context"

	"github.com/gogo/protobuf/proto"
	"google.golang.org/grpc"
)

// StatusProto mirrors kvxerror.Status on the wire.
type StatusProto struct {
	Code    int32  `protobuf:"varint,1,opt,name=code,proto3" json:"code,omitempty"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *StatusProto) Reset()         { *m = StatusProto{} }
func (m *StatusProto) String() string { return proto.CompactTextString(m) }
func (*StatusProto) ProtoMessage()    {}

// InsertRequest carries a namespace name and one item's JSON encoding.
type InsertRequest struct {
	Namespace string `protobuf:"bytes,1,opt,name=namespace,proto3" json:"namespace,omitempty"`
	ItemJson  []byte `protobuf:"bytes,2,opt,name=item_json,json=itemJson,proto3" json:"item_json,omitempty"`
}

func (m *InsertRequest) Reset()         { *m = InsertRequest{} }
func (m *InsertRequest) String() string { return proto.CompactTextString(m) }
func (*InsertRequest) ProtoMessage()    {}

// InsertResponse carries the assigned row id, or a non-OK Status.
type InsertResponse struct {
	RowId  int64        `protobuf:"varint,1,opt,name=row_id,json=rowId,proto3" json:"row_id,omitempty"`
	Status *StatusProto `protobuf:"bytes,2,opt,name=status,proto3" json:"status,omitempty"`
}

func (m *InsertResponse) Reset()         { *m = InsertResponse{} }
func (m *InsertResponse) String() string { return proto.CompactTextString(m) }
func (*InsertResponse) ProtoMessage()    {}

// UpdateRequest replaces the row at RowId with ItemJson's decoded item.
type UpdateRequest struct {
	Namespace string `protobuf:"bytes,1,opt,name=namespace,proto3" json:"namespace,omitempty"`
	RowId     int64  `protobuf:"varint,2,opt,name=row_id,json=rowId,proto3" json:"row_id,omitempty"`
	ItemJson  []byte `protobuf:"bytes,3,opt,name=item_json,json=itemJson,proto3" json:"item_json,omitempty"`
}

func (m *UpdateRequest) Reset()         { *m = UpdateRequest{} }
func (m *UpdateRequest) String() string { return proto.CompactTextString(m) }
func (*UpdateRequest) ProtoMessage()    {}

// UpdateResponse carries only a Status; a successful update has no
// other payload.
type UpdateResponse struct {
	Status *StatusProto `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
}

func (m *UpdateResponse) Reset()         { *m = UpdateResponse{} }
func (m *UpdateResponse) String() string { return proto.CompactTextString(m) }
func (*UpdateResponse) ProtoMessage()    {}

// DeleteRequest removes the row at RowId from Namespace.
type DeleteRequest struct {
	Namespace string `protobuf:"bytes,1,opt,name=namespace,proto3" json:"namespace,omitempty"`
	RowId     int64  `protobuf:"varint,2,opt,name=row_id,json=rowId,proto3" json:"row_id,omitempty"`
}

func (m *DeleteRequest) Reset()         { *m = DeleteRequest{} }
func (m *DeleteRequest) String() string { return proto.CompactTextString(m) }
func (*DeleteRequest) ProtoMessage()    {}

// DeleteResponse carries only a Status.
type DeleteResponse struct {
	Status *StatusProto `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
}

func (m *DeleteResponse) Reset()         { *m = DeleteResponse{} }
func (m *DeleteResponse) String() string { return proto.CompactTextString(m) }
func (*DeleteResponse) ProtoMessage()    {}

// SelectRequest carries either a SQL query or a JSON-DSL query
// document; exactly one of Sql/JsonQuery should be set.
type SelectRequest struct {
	Sql       string `protobuf:"bytes,1,opt,name=sql,proto3" json:"sql,omitempty"`
	JsonQuery []byte `protobuf:"bytes,2,opt,name=json_query,json=jsonQuery,proto3" json:"json_query,omitempty"`
}

func (m *SelectRequest) Reset()         { *m = SelectRequest{} }
func (m *SelectRequest) String() string { return proto.CompactTextString(m) }
func (*SelectRequest) ProtoMessage()    {}

// SelectResponse carries the matched items' JSON encodings.
type SelectResponse struct {
	ItemsJson  [][]byte     `protobuf:"bytes,1,rep,name=items_json,json=itemsJson,proto3" json:"items_json,omitempty"`
	TotalCount int64        `protobuf:"varint,2,opt,name=total_count,json=totalCount,proto3" json:"total_count,omitempty"`
	Status     *StatusProto `protobuf:"bytes,3,opt,name=status,proto3" json:"status,omitempty"`
}

func (m *SelectResponse) Reset()         { *m = SelectResponse{} }
func (m *SelectResponse) String() string { return proto.CompactTextString(m) }
func (*SelectResponse) ProtoMessage()    {}

// CommitRequest flushes Namespace's pending WAL records.
type CommitRequest struct {
	Namespace string `protobuf:"bytes,1,opt,name=namespace,proto3" json:"namespace,omitempty"`
}

func (m *CommitRequest) Reset()         { *m = CommitRequest{} }
func (m *CommitRequest) String() string { return proto.CompactTextString(m) }
func (*CommitRequest) ProtoMessage()    {}

// CommitResponse carries only a Status.
type CommitResponse struct {
	Status *StatusProto `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
}

func (m *CommitResponse) Reset()         { *m = CommitResponse{} }
func (m *CommitResponse) String() string { return proto.CompactTextString(m) }
func (*CommitResponse) ProtoMessage()    {}

// PingRequest/PingResponse implement a trivial liveness probe, playing
// the role rpc/heartbeat.go's PingRequest/PingResponse play for
// connection-health tracking, without that file's clock-offset
// measurement (spec.md's Non-goals exclude distributed clock sync).
type PingRequest struct {
	Addr string `protobuf:"bytes,1,opt,name=addr,proto3" json:"addr,omitempty"`
}

func (m *PingRequest) Reset()         { *m = PingRequest{} }
func (m *PingRequest) String() string { return proto.CompactTextString(m) }
func (*PingRequest) ProtoMessage()    {}

// PingResponse echoes the server's address back to the caller.
type PingResponse struct {
	Addr string `protobuf:"bytes,1,opt,name=addr,proto3" json:"addr,omitempty"`
}

func (m *PingResponse) Reset()         { *m = PingResponse{} }
func (m *PingResponse) String() string { return proto.CompactTextString(m) }
func (*PingResponse) ProtoMessage()    {}

// KVIndexServer is the server-side contract for the binary RPC
// protocol: Insert/Update/Delete/Select/Commit as unary RPCs plus a
// Ping health probe, per spec.md §6 and §13.
type KVIndexServer interface {
	Insert(context.Context, *InsertRequest) (*InsertResponse, error)
	Update(context.Context, *UpdateRequest) (*UpdateResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	Select(context.Context, *SelectRequest) (*SelectResponse, error)
	Commit(context.Context, *CommitRequest) (*CommitResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// KVIndexClient is the client-side stub interface, implemented by
// NewKVIndexClient's returned value.
type KVIndexClient interface {
	Insert(ctx context.Context, in *InsertRequest, opts ...grpc.CallOption) (*InsertResponse, error)
	Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*UpdateResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
	Select(ctx context.Context, in *SelectRequest, opts ...grpc.CallOption) (*SelectResponse, error)
	Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

const serviceName = "kvindex.KVIndex"

type kvIndexClient struct {
	cc *grpc.ClientConn
}

// NewKVIndexClient builds a KVIndexClient over an already-dialed
// connection, matching the generated-code convention of taking a
// *grpc.ClientConn rather than dialing itself.
func NewKVIndexClient(cc *grpc.ClientConn) KVIndexClient {
	return &kvIndexClient{cc: cc}
}

func (c *kvIndexClient) Insert(ctx context.Context, in *InsertRequest, opts ...grpc.CallOption) (*InsertResponse, error) {
	out := new(InsertResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Insert", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvIndexClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*UpdateResponse, error) {
	out := new(UpdateResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Update", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvIndexClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Delete", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvIndexClient) Select(ctx context.Context, in *SelectRequest, opts ...grpc.CallOption) (*SelectResponse, error) {
	out := new(SelectResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Select", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvIndexClient) Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error) {
	out := new(CommitResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Commit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvIndexClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Ping", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func insertHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InsertRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVIndexServer).Insert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Insert"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVIndexServer).Insert(ctx, req.(*InsertRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func updateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVIndexServer).Update(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Update"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVIndexServer).Update(ctx, req.(*UpdateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVIndexServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Delete"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVIndexServer).Delete(ctx, req.(*DeleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func selectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SelectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVIndexServer).Select(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Select"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVIndexServer).Select(ctx, req.(*SelectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVIndexServer).Commit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Commit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVIndexServer).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVIndexServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Ping"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVIndexServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*KVIndexServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Insert", Handler: insertHandler},
		{MethodName: "Update", Handler: updateHandler},
		{MethodName: "Delete", Handler: deleteHandler},
		{MethodName: "Select", Handler: selectHandler},
		{MethodName: "Commit", Handler: commitHandler},
		{MethodName: "Ping", Handler: pingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kvindex.proto",
}

// RegisterKVIndexServer registers srv on s, matching protoc-gen-go-
// grpc's generated registration function.
func RegisterKVIndexServer(s *grpc.Server, srv KVIndexServer) {
	s.RegisterService(&serviceDesc, srv)
}
