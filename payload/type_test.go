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

package payload

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvindex/kvindex/keyval"
)

func usersType(t *testing.T) *Type {
	typ := NewType("users")
	_, err := typ.AddField(Field{Name: "id", Kind: keyval.Int64, JSONPaths: []string{"id"}})
	require.NoError(t, err)
	_, err = typ.AddField(Field{Name: "name", Kind: keyval.String, JSONPaths: []string{"name"}})
	require.NoError(t, err)
	_, err = typ.AddField(Field{Name: "age", Kind: keyval.Int64, JSONPaths: []string{"age"}})
	require.NoError(t, err)
	return typ
}

func TestOffsetInvariant(t *testing.T) {
	typ := usersType(t)
	off := 0
	for i := 0; i < typ.NumFields(); i++ {
		f := typ.Field(i)
		require.Equal(t, off, f.Offset)
		off += f.Size
	}
	require.Equal(t, off, typ.TotalSize())
}

func TestAddFieldUpgradesToArray(t *testing.T) {
	typ := NewType("t")
	res, err := typ.AddField(Field{Name: "tags", Kind: keyval.String, JSONPaths: []string{"tags"}})
	require.NoError(t, err)
	require.Equal(t, AddResultAdded, res)

	res, err = typ.AddField(Field{Name: "tags", Kind: keyval.String, JSONPaths: []string{"labels"}})
	require.NoError(t, err)
	require.Equal(t, AddResultUpgradedToArray, res)

	idx, err := typ.FieldByName("tags")
	require.NoError(t, err)
	require.True(t, typ.Field(idx).Array)
	require.Equal(t, []string{"tags", "labels"}, typ.Field(idx).JSONPaths)
}

func TestAddFieldTypeMismatchErrors(t *testing.T) {
	typ := NewType("t")
	_, err := typ.AddField(Field{Name: "x", Kind: keyval.Int64})
	require.NoError(t, err)
	res, err := typ.AddField(Field{Name: "x", Kind: keyval.String})
	require.Error(t, err)
	require.Equal(t, AddResultError, res)
}

func TestFieldByNameAndJSONPathAsymmetry(t *testing.T) {
	typ := usersType(t)
	_, err := typ.FieldByName("missing")
	require.Error(t, err)
	require.Equal(t, -1, typ.FieldByJSONPath("missing"))
}

func TestDropFieldRenumbersOffsets(t *testing.T) {
	typ := usersType(t)
	ok := typ.DropField("name")
	require.True(t, ok)
	require.Equal(t, 2, typ.NumFields())

	off := 0
	for i := 0; i < typ.NumFields(); i++ {
		f := typ.Field(i)
		require.Equal(t, off, f.Offset)
		off += f.Size
	}
	require.Equal(t, off, typ.TotalSize())

	idIdx, err := typ.FieldByName("id")
	require.NoError(t, err)
	require.Equal(t, 0, idIdx)
	ageIdx, err := typ.FieldByName("age")
	require.NoError(t, err)
	require.Equal(t, 1, ageIdx)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	typ := usersType(t)
	buf := typ.Serialize()

	typ2, err := Deserialize("users", buf)
	require.NoError(t, err)
	require.Equal(t, typ.NumFields(), typ2.NumFields())
	for i := 0; i < typ.NumFields(); i++ {
		a, b := typ.Field(i), typ2.Field(i)
		require.Equal(t, a.Name, b.Name)
		require.Equal(t, a.Kind, b.Kind)
		require.Equal(t, a.Offset, b.Offset)
		require.Equal(t, a.Array, b.Array)
	}
}

func TestUniqueJSONPaths(t *testing.T) {
	typ := NewType("t")
	_, err := typ.AddField(Field{Name: "a", Kind: keyval.String, JSONPaths: []string{"p"}})
	require.NoError(t, err)
	_, err = typ.AddField(Field{Name: "b", Kind: keyval.String, JSONPaths: []string{"p"}})
	require.Error(t, err)
}
