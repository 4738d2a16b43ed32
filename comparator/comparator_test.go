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

package comparator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/payload"
)

func testType(t *testing.T) *payload.Type {
	typ := payload.NewType("items")
	_, err := typ.AddField(payload.Field{Name: "age", Kind: keyval.Int64, JSONPaths: []string{"age"}})
	require.NoError(t, err)
	_, err = typ.AddField(payload.Field{Name: "tags", Kind: keyval.String, Array: true, JSONPaths: []string{"tags"}})
	require.NoError(t, err)
	_, err = typ.AddField(payload.Field{Name: "bio", Kind: keyval.String, JSONPaths: []string{"bio"}})
	require.NoError(t, err)
	return typ
}

func TestCompareRangeScalar(t *testing.T) {
	typ := testType(t)
	ageIdx, _ := typ.FieldByName("age")
	v := payload.NewValue(typ)
	v, err := v.Set(ageIdx, []keyval.Value{keyval.FromInt64(25)})
	require.NoError(t, err)

	cmp, err := New(typ, ageIdx, index.Range, []keyval.Value{keyval.FromInt64(18), keyval.FromInt64(30)}, keyval.DefaultCollate)
	require.NoError(t, err)
	ok, err := cmp.Compare(v)
	require.NoError(t, err)
	require.True(t, ok)

	cmp2, err := New(typ, ageIdx, index.Range, []keyval.Value{keyval.FromInt64(30), keyval.FromInt64(40)}, keyval.DefaultCollate)
	require.NoError(t, err)
	ok, err = cmp2.Compare(v)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompareArrayAnyMatch(t *testing.T) {
	typ := testType(t)
	tagsIdx, _ := typ.FieldByName("tags")
	v := payload.NewValue(typ)
	v, err := v.Set(tagsIdx, []keyval.Value{keyval.FromString("go"), keyval.FromString("rust")})
	require.NoError(t, err)

	cmp, err := New(typ, tagsIdx, index.Eq, []keyval.Value{keyval.FromString("rust")}, keyval.DefaultCollate)
	require.NoError(t, err)
	ok, err := cmp.Compare(v)
	require.NoError(t, err)
	require.True(t, ok)

	cmpMiss, err := New(typ, tagsIdx, index.Eq, []keyval.Value{keyval.FromString("java")}, keyval.DefaultCollate)
	require.NoError(t, err)
	ok, err = cmpMiss.Compare(v)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompareEmptyArray(t *testing.T) {
	typ := testType(t)
	tagsIdx, _ := typ.FieldByName("tags")
	v := payload.NewValue(typ)

	cmp, err := New(typ, tagsIdx, index.Empty, nil, keyval.DefaultCollate)
	require.NoError(t, err)
	ok, err := cmp.Compare(v)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompareSetWithCollation(t *testing.T) {
	typ := testType(t)
	bioIdx, _ := typ.FieldByName("bio")
	v := payload.NewValue(typ)
	v, err := v.Set(bioIdx, []keyval.Value{keyval.FromString("Engineer")})
	require.NoError(t, err)

	cmp, err := New(typ, bioIdx, index.Set,
		[]keyval.Value{keyval.FromString("engineer"), keyval.FromString("scientist")},
		keyval.CollateOpts{Mode: keyval.CollateASCII})
	require.NoError(t, err)
	ok, err := cmp.Compare(v)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompareMatchStemmed(t *testing.T) {
	typ := testType(t)
	bioIdx, _ := typ.FieldByName("bio")
	v := payload.NewValue(typ)
	v, err := v.Set(bioIdx, []keyval.Value{keyval.FromString("loves running daily")})
	require.NoError(t, err)

	cmp, err := New(typ, bioIdx, index.Match, []keyval.Value{keyval.FromString("run")}, keyval.DefaultCollate)
	require.NoError(t, err)
	ok, err := cmp.Compare(v)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewRejectsWrongArity(t *testing.T) {
	typ := testType(t)
	ageIdx, _ := typ.FieldByName("age")
	_, err := New(typ, ageIdx, index.Eq, []keyval.Value{keyval.FromInt64(1), keyval.FromInt64(2)}, keyval.DefaultCollate)
	require.Error(t, err)
}
