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

func TestValueGetSetScalar(t *testing.T) {
	typ := usersType(t)
	v := NewValue(typ)
	idIdx, _ := typ.FieldByName("id")
	nameIdx, _ := typ.FieldByName("name")

	v, err := v.Set(idIdx, []keyval.Value{keyval.FromInt64(42)})
	require.NoError(t, err)
	v, err = v.Set(nameIdx, []keyval.Value{keyval.FromString("Ada")})
	require.NoError(t, err)

	got, err := v.Get(idIdx)
	require.NoError(t, err)
	require.Equal(t, int64(42), got.Int64())

	gotName, err := v.Get(nameIdx)
	require.NoError(t, err)
	require.Equal(t, "Ada", gotName.Str())
}

func TestValueCopyOnWrite(t *testing.T) {
	typ := usersType(t)
	v := NewValue(typ)
	idIdx, _ := typ.FieldByName("id")
	v, _ = v.Set(idIdx, []keyval.Value{keyval.FromInt64(1)})

	shared := v.Retain()
	require.True(t, shared.shared())

	mutated, err := shared.Set(idIdx, []keyval.Value{keyval.FromInt64(2)})
	require.NoError(t, err)
	require.NotSame(t, shared, mutated)

	original, err := v.Get(idIdx)
	require.NoError(t, err)
	require.Equal(t, int64(1), original.Int64())

	changed, err := mutated.Get(idIdx)
	require.NoError(t, err)
	require.Equal(t, int64(2), changed.Int64())
}

func TestArrayFieldEmptyVsAny(t *testing.T) {
	typ := NewType("t")
	tagsIdx0, err := typ.AddField(Field{Name: "tags", Kind: keyval.String, Array: true, JSONPaths: []string{"tags"}})
	require.NoError(t, err)
	require.Equal(t, AddResultAdded, tagsIdx0)
	idx, _ := typ.FieldByName("tags")

	v := NewValue(typ)
	n, err := v.ArrayLen(idx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	v, err = v.Set(idx, []keyval.Value{keyval.FromString("a"), keyval.FromString("b")})
	require.NoError(t, err)
	n, err = v.ArrayLen(idx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	arr, err := v.GetArray(idx)
	require.NoError(t, err)
	require.Len(t, arr, 2)
	require.Equal(t, "a", arr[0].Str())
}

func TestCompareFields(t *testing.T) {
	typ := usersType(t)
	idIdx, _ := typ.FieldByName("id")
	ageIdx, _ := typ.FieldByName("age")

	a := NewValue(typ)
	a, _ = a.Set(idIdx, []keyval.Value{keyval.FromInt64(1)})
	a, _ = a.Set(ageIdx, []keyval.Value{keyval.FromInt64(20)})

	b := NewValue(typ)
	b, _ = b.Set(idIdx, []keyval.Value{keyval.FromInt64(1)})
	b, _ = b.Set(ageIdx, []keyval.Value{keyval.FromInt64(30)})

	require.Equal(t, -1, a.Compare(b, []int{ageIdx}, keyval.DefaultCollate))
	require.Equal(t, 0, a.Compare(b, []int{idIdx}, keyval.DefaultCollate))
}
