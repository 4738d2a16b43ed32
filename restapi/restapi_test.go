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

package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/registry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := registry.New(nil)
	_, err := reg.OpenNamespace(registry.NamespaceDef{
		Name: "users",
		Fields: []registry.FieldDef{
			{Name: "id", Kind: keyval.String, JSONPaths: []string{"id"}},
			{Name: "login", Kind: keyval.String, JSONPaths: []string{"login"}},
			{Name: "age", Kind: keyval.Int64, JSONPaths: []string{"age"}},
		},
		Indexes: []registry.IndexDef{
			{Name: "id", Fields: []string{"id"}, Kind: index.KindHash, Options: index.OptPK | index.OptUnique},
			{Name: "age", Fields: []string{"age"}, Kind: index.KindOrdered},
		},
	})
	require.NoError(t, err)
	return NewServer(reg)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestCheckReturnsSuccess(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/check", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body["success"])
}

func TestInsertAndListItems(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/db/default/namespaces/users/items",
		`{"id":"u1","login":"alice","age":30}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var inserted successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inserted))
	require.True(t, inserted.Success)
	require.Len(t, inserted.Items, 1)

	rec = doRequest(s, http.MethodGet, "/api/v1/db/default/namespaces/users/items", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Items, 1)
	require.Equal(t, 1, listed.TotalItems)
}

func TestInsertUnknownNamespaceReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/db/default/namespaces/missing/items", `{"id":"u1"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errBody errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	require.False(t, errBody.Success)
}

func TestInsertDuplicatePrimaryKeyReturns409(t *testing.T) {
	s := newTestServer(t)
	body := `{"id":"u1","login":"alice","age":30}`
	require.Equal(t, http.StatusOK, doRequest(s, http.MethodPost, "/api/v1/db/default/namespaces/users/items", body).Code)
	rec := doRequest(s, http.MethodPost, "/api/v1/db/default/namespaces/users/items", body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateAndDeleteItem(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/db/default/namespaces/users/items",
		`{"id":"u1","login":"alice","age":30}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPut, "/api/v1/db/default/namespaces/users/items/0",
		`{"id":"u1","login":"alice2","age":31}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/v1/db/default/namespaces/users/items/0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/v1/db/default/namespaces/users/items/0", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNamespaceStat(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/db/default/namespaces/users", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stat map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stat))
	require.Equal(t, "users", stat["Name"])
}

func TestQueryEndpointRunsJSONDSL(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, doRequest(s, http.MethodPost, "/api/v1/db/default/namespaces/users/items",
		`{"id":"u1","login":"alice","age":30}`).Code)

	rec := doRequest(s, http.MethodPost, "/api/v1/db/default/query",
		`{"namespace":"users","where":[{"field":"age","cond":"eq","value":30}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Len(t, result.Items, 1)
}
