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
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutableConnNamespacesSorted(t *testing.T) {
	dir := t.TempDir()
	conn, err := dialBuiltin(dir)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.reg.OpenNamespace(usersDef())
	require.NoError(t, err)

	var mc mutableConn = conn
	names, err := mc.Namespaces(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, names)
}

func TestCprotoConnIsNotMutable(t *testing.T) {
	var conn sqlConn = &cprotoConn{}
	_, ok := conn.(mutableConn)
	require.False(t, ok)
}
