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

package cli

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Name":"users","ItemsCount":3}`))
	}))
	defer srv.Close()

	var stat namespaceStatResponse
	addr := strings.TrimPrefix(srv.URL, "http://")
	require.NoError(t, getJSON(addr, "/api/v1/db/default/namespaces/users", &stat))
	require.Equal(t, "users", stat.Name)
	require.Equal(t, 3, stat.ItemsCount)
}

func TestGetJSONPropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var stat namespaceStatResponse
	addr := strings.TrimPrefix(srv.URL, "http://")
	require.Error(t, getJSON(addr, "/api/v1/db/default/namespaces/missing", &stat))
}
