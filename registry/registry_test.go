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

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/namespace"
)

func usersDef() NamespaceDef {
	return NamespaceDef{
		Name: "users",
		Fields: []FieldDef{
			{Name: "id", Kind: keyval.String, JSONPaths: []string{"id"}},
			{Name: "age", Kind: keyval.Int64, JSONPaths: []string{"age"}},
		},
		Indexes: []IndexDef{
			{Name: "id", Fields: []string{"id"}, Kind: index.KindHash, Options: index.OptPK | index.OptUnique},
			{Name: "age", Fields: []string{"age"}, Kind: index.KindOrdered},
		},
	}
}

func TestOpenNamespaceRegistersAndIsIdempotent(t *testing.T) {
	r := New(nil)

	ns1, err := r.OpenNamespace(usersDef())
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, r.EnumNamespaces())

	ns2, err := r.OpenNamespace(usersDef())
	require.NoError(t, err)
	require.Same(t, ns1, ns2, "re-opening an open namespace must return the existing handle")
}

func TestOpenNamespaceRejectsEmptyName(t *testing.T) {
	r := New(nil)
	_, err := r.OpenNamespace(NamespaceDef{})
	require.True(t, kvxerror.Is(err, kvxerror.Logic))
}

func TestNamespaceLookupUnknownIsNotFound(t *testing.T) {
	r := New(nil)
	_, err := r.Namespace("nope")
	require.True(t, kvxerror.Is(err, kvxerror.NotFound))
}

func TestCloseNamespaceUnregisters(t *testing.T) {
	r := New(nil)
	_, err := r.OpenNamespace(usersDef())
	require.NoError(t, err)

	require.NoError(t, r.CloseNamespace("users"))
	require.Empty(t, r.EnumNamespaces())

	err = r.CloseNamespace("users")
	require.True(t, kvxerror.Is(err, kvxerror.NotFound))
}

func TestInsertSelectAndCommitForwardByName(t *testing.T) {
	r := New(nil)
	_, err := r.OpenNamespace(usersDef())
	require.NoError(t, err)

	item, err := r.NewItem("users")
	require.NoError(t, err)

	ns, err := r.Namespace("users")
	require.NoError(t, err)
	fi, err := ns.PayloadType().FieldByName("id")
	require.NoError(t, err)
	nv, err := item.Value.Set(fi, []keyval.Value{keyval.FromString("u1")})
	require.NoError(t, err)
	item.Value = nv
	fi, err = ns.PayloadType().FieldByName("age")
	require.NoError(t, err)
	nv, err = item.Value.Set(fi, []keyval.Value{keyval.FromInt64(30)})
	require.NoError(t, err)
	item.Value = nv

	rowID, err := r.Insert("users", item)
	require.NoError(t, err)
	require.Equal(t, 0, rowID)

	res, err := r.SelectSQL("SELECT * FROM users WHERE age >= 25")
	require.NoError(t, err)
	require.Equal(t, []int{0}, res.RowIDs)

	require.NoError(t, r.Commit("users"))

	stat, err := r.Stat("users")
	require.NoError(t, err)
	require.Equal(t, 1, stat.ItemsCount)
}

func TestInsertUnknownNamespaceIsNotFound(t *testing.T) {
	r := New(nil)
	_, err := r.Insert("nope", nil)
	require.True(t, kvxerror.Is(err, kvxerror.NotFound))
}

func TestOpenNamespaceUsesWALFactory(t *testing.T) {
	opened := 0
	r := New(func(name string) (namespace.WriteAheadLog, error) {
		opened++
		return nil, nil
	})
	_, err := r.OpenNamespace(usersDef())
	require.NoError(t, err)
	require.Equal(t, 1, opened)
}
