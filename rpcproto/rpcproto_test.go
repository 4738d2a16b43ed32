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

package rpcproto

import (
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/stretchr/testify/require"
)

func TestInsertRequestMarshalRoundTrips(t *testing.T) {
	in := &InsertRequest{Namespace: "users", ItemJson: []byte(`{"id":"u1"}`)}
	data, err := proto.Marshal(in)
	require.NoError(t, err)

	out := &InsertRequest{}
	require.NoError(t, proto.Unmarshal(data, out))
	require.Equal(t, in.Namespace, out.Namespace)
	require.Equal(t, in.ItemJson, out.ItemJson)
}

func TestSelectResponseMarshalRoundTripsNestedStatus(t *testing.T) {
	in := &SelectResponse{
		ItemsJson:  [][]byte{[]byte(`{"a":1}`), []byte(`{"a":2}`)},
		TotalCount: 2,
		Status:     &StatusProto{Code: 0, Message: ""},
	}
	data, err := proto.Marshal(in)
	require.NoError(t, err)

	out := &SelectResponse{}
	require.NoError(t, proto.Unmarshal(data, out))
	require.Equal(t, in.TotalCount, out.TotalCount)
	require.Equal(t, in.ItemsJson, out.ItemsJson)
	require.Equal(t, in.Status.Code, out.Status.Code)
}

func TestServiceDescListsAllMethods(t *testing.T) {
	names := make([]string, 0, len(serviceDesc.Methods))
	for _, m := range serviceDesc.Methods {
		names = append(names, m.MethodName)
	}
	require.ElementsMatch(t, []string{"Insert", "Update", "Delete", "Select", "Commit", "Ping"}, names)
	require.Equal(t, serviceName, serviceDesc.ServiceName)
}
