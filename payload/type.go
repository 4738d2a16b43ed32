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

// Package payload implements PayloadType (the ordered field schema of a
// namespace) and PayloadValue (the variable-length record conforming to
// it), per spec.md §3-4.1. The design here follows structured/schema.go's
// Table/Column shape for the type side, generalized from a relational
// table schema to the flatter, JSON-path-addressable field list a
// document store needs.
package payload

import (
	"encoding/binary"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/kvindex/kvindex/keyval"
)

// AddResult is the three-way outcome of Type.AddField, mirroring
// payloadtype.cc's Add() return (spec.md §12).
type AddResult int

// The AddField outcomes.
const (
	AddResultAdded AddResult = iota
	AddResultUpgradedToArray
	AddResultError
)

// Field describes one field of a PayloadType: a unique name, a scalar
// kind, an array flag, the JSON paths that populate it on ingest, and its
// computed byte offset within a record's fixed portion.
type Field struct {
	Name      string
	Kind      keyval.Type
	Array     bool
	JSONPaths []string

	// Offset and Size are computed by the owning Type; callers should
	// treat these as read-only.
	Offset int
	Size   int
}

// cellSize returns the fixed-portion byte width of a field. Per spec.md
// §4.1, an array field's cell is always an (offset,length) pair into the
// array arena regardless of element kind; a scalar String/Composite field
// is also stored as a pointer+length pair since its length is variable.
func cellSize(f Field) int {
	if f.Array {
		return 8
	}
	switch f.Kind {
	case keyval.Int32:
		return 4
	case keyval.Int64, keyval.Double:
		return 8
	case keyval.String, keyval.Composite:
		return 8
	default:
		return 8
	}
}

// Type is the ordered field schema of a namespace (PayloadType).
type Type struct {
	name   string
	fields []Field

	byName     map[string]int
	byJSONPath map[string]int

	// stringFieldIdx mirrors String-typed field indices, per invariant I4.
	stringFieldIdx []int

	totalSize int
	version   int
}

// NewType creates an empty PayloadType named name.
func NewType(name string) *Type {
	return &Type{
		name:       name,
		byName:     map[string]int{},
		byJSONPath: map[string]int{},
	}
}

// Name returns the type's name.
func (t *Type) Name() string { return t.name }

// Version is bumped on every structural change (AddField/DropField),
// independent of the owning namespace's version counter.
func (t *Type) Version() int { return t.version }

// NumFields returns the number of fields.
func (t *Type) NumFields() int { return len(t.fields) }

// Field returns the i'th field descriptor.
func (t *Type) Field(i int) Field { return t.fields[i] }

// Fields returns a copy of the field list, in schema order.
func (t *Type) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// TotalSize is the byte length of a record's fixed portion.
func (t *Type) TotalSize() int { return t.totalSize }

// StringFieldIndexes returns the indexes of all String-kind fields
// (invariant I4), used to accelerate string-arena bookkeeping on free.
func (t *Type) StringFieldIndexes() []int {
	out := make([]int, len(t.stringFieldIdx))
	copy(out, t.stringFieldIdx)
	return out
}

// FieldByName returns the index of the field named name, or an error if
// no such field exists. This is the asymmetric twin of FieldByJSONPath
// (spec.md §9's documented asymmetry: FieldByName errors, FieldByJSONPath
// returns -1). Preserved intentionally.
func (t *Type) FieldByName(name string) (int, error) {
	if i, ok := t.byName[name]; ok {
		return i, nil
	}
	return -1, errors.Newf("field %q not found", name)
}

// FieldByJSONPath returns the index of the field bound to the given JSON
// path, or -1 if none is bound. See FieldByName's doc comment for the
// intentional asymmetry.
func (t *Type) FieldByJSONPath(path string) int {
	if i, ok := t.byJSONPath[path]; ok {
		return i
	}
	return -1
}

// AddField adds a field to the schema. If a field with the same name
// already exists:
//   - if the existing type matches, the field is upgraded to an array and
//     f's JSON paths are appended (AddResultUpgradedToArray);
//   - otherwise it is a hard error (I1).
//
// JSON paths must be globally unique across fields (I2).
func (t *Type) AddField(f Field) (AddResult, error) {
	if f.Name == "" {
		return AddResultError, errors.Newf("field name must not be empty")
	}
	if existing, ok := t.byName[f.Name]; ok {
		cur := t.fields[existing]
		if cur.Kind != f.Kind {
			return AddResultError, errors.Newf(
				"field %q: type mismatch, existing %s, new %s", f.Name, cur.Kind, f.Kind)
		}
		for _, p := range f.JSONPaths {
			if err := t.reserveJSONPath(p, existing); err != nil {
				return AddResultError, err
			}
		}
		cur.Array = true
		cur.JSONPaths = append(cur.JSONPaths, f.JSONPaths...)
		t.fields[existing] = cur
		t.version++
		return AddResultUpgradedToArray, nil
	}

	for _, p := range f.JSONPaths {
		if _, ok := t.byJSONPath[p]; ok {
			return AddResultError, errors.Newf("json path %q already bound to another field", p)
		}
	}

	f.Offset = t.totalSize
	f.Size = cellSize(f)
	idx := len(t.fields)
	t.fields = append(t.fields, f)
	t.byName[f.Name] = idx
	for _, p := range f.JSONPaths {
		t.byJSONPath[p] = idx
	}
	if f.Kind == keyval.String {
		t.stringFieldIdx = append(t.stringFieldIdx, idx)
	}
	t.totalSize += f.Size
	t.version++
	return AddResultAdded, nil
}

func (t *Type) reserveJSONPath(path string, owner int) error {
	if i, ok := t.byJSONPath[path]; ok && i != owner {
		return errors.Newf("json path %q already bound to another field", path)
	}
	t.byJSONPath[path] = owner
	return nil
}

// DropField removes the named field, renumbering all following offsets
// and invalidating any index built over the dropped field index (per
// spec.md §3, the caller — the namespace — is responsible for dropping
// or rebuilding those indexes; Type itself only reports success).
func (t *Type) DropField(name string) bool {
	idx, ok := t.byName[name]
	if !ok {
		return false
	}
	dropped := t.fields[idx]
	t.fields = append(t.fields[:idx], t.fields[idx+1:]...)
	delete(t.byName, name)
	for p, i := range t.byJSONPath {
		if i == idx {
			delete(t.byJSONPath, p)
		}
	}
	t.rebuildOffsets()
	t.rebuildIndexes(idx)
	t.totalSize -= dropped.Size
	// totalSize is recomputed exactly by the loop below; the subtraction
	// above is redundant defense against drift and is overwritten next line.
	t.totalSize = 0
	for i := range t.fields {
		t.totalSize += t.fields[i].Size
	}
	t.version++
	return true
}

// rebuildOffsets recomputes every field's Offset after a structural
// change, maintaining invariant I3.
func (t *Type) rebuildOffsets() {
	off := 0
	for i := range t.fields {
		t.fields[i].Offset = off
		off += t.fields[i].Size
	}
}

// rebuildIndexes recomputes byName/byJSONPath/stringFieldIdx after a
// field at position removedAt was dropped.
func (t *Type) rebuildIndexes(removedAt int) {
	t.byName = map[string]int{}
	for i, f := range t.fields {
		t.byName[f.Name] = i
	}
	newByPath := map[string]int{}
	for p, i := range t.byJSONPath {
		if i < removedAt {
			newByPath[p] = i
		} else if i > removedAt {
			newByPath[p] = i - 1
		}
		// i == removedAt already deleted by caller.
	}
	t.byJSONPath = newByPath
	t.stringFieldIdx = t.stringFieldIdx[:0]
	for i, f := range t.fields {
		if f.Kind == keyval.String {
			t.stringFieldIdx = append(t.stringFieldIdx, i)
		}
	}
}

// wire format constants for Serialize/Deserialize (spec.md §6): the
// magic header-offset value exists purely for on-disk backward
// compatibility and must be preserved by reimplementers even though it
// carries no information a modern decoder needs.
const headerOffsetMagic = 0x1

// Serialize encodes the PayloadType using the exact varuint/vstring wire
// format from spec.md §6:
//
//	varuint(header_offset_magic) varuint(nFields)
//	{ varuint(type) vstring(name) varuint(offset) varuint(elemSize) varuint(isArray) }*
func (t *Type) Serialize() []byte {
	buf := make([]byte, 0, 32+len(t.fields)*24)
	buf = appendVaruint(buf, headerOffsetMagic)
	buf = appendVaruint(buf, uint64(len(t.fields)))
	for _, f := range t.fields {
		buf = appendVaruint(buf, uint64(f.Kind))
		buf = appendVstring(buf, f.Name)
		buf = appendVaruint(buf, uint64(f.Offset))
		buf = appendVaruint(buf, uint64(f.Size))
		isArray := uint64(0)
		if f.Array {
			isArray = 1
		}
		buf = appendVaruint(buf, isArray)
	}
	return buf
}

// Deserialize decodes a PayloadType previously produced by Serialize.
// Per spec.md §9's Open Question, the on-wire elemSize is preserved for
// compatibility but is NOT authoritative: the decoder recomputes each
// field's Size from its Kind/Array via cellSize, exactly like the
// original implementation.
func Deserialize(name string, b []byte) (*Type, error) {
	r := &byteReader{buf: b}
	magic, err := r.varuint()
	if err != nil {
		return nil, errors.Wrap(err, "reading header magic")
	}
	if magic != headerOffsetMagic {
		return nil, errors.Newf("unexpected header-offset magic %d", magic)
	}
	nFields, err := r.varuint()
	if err != nil {
		return nil, errors.Wrap(err, "reading field count")
	}
	t := NewType(name)
	for i := uint64(0); i < nFields; i++ {
		kind, err := r.varuint()
		if err != nil {
			return nil, errors.Wrapf(err, "field %d: reading type", i)
		}
		fname, err := r.vstring()
		if err != nil {
			return nil, errors.Wrapf(err, "field %d: reading name", i)
		}
		if _, err := r.varuint(); err != nil { // stored offset, recomputed below
			return nil, errors.Wrapf(err, "field %d: reading offset", i)
		}
		if _, err := r.varuint(); err != nil { // stored elemSize, not authoritative
			return nil, errors.Wrapf(err, "field %d: reading elemSize", i)
		}
		isArray, err := r.varuint()
		if err != nil {
			return nil, errors.Wrapf(err, "field %d: reading array flag", i)
		}
		res, err := t.AddField(Field{
			Name:  fname,
			Kind:  keyval.Type(kind),
			Array: isArray != 0,
		})
		if err != nil {
			return nil, err
		}
		if res == AddResultError {
			return nil, errors.Newf("field %d: could not be added", i)
		}
	}
	return t, nil
}

// sortedFieldNames is a small helper used by tests/diagnostics.
func (t *Type) sortedFieldNames() []string {
	out := make([]string, len(t.fields))
	for i, f := range t.fields {
		out[i] = f.Name
	}
	sort.Strings(out)
	return out
}

func appendVaruint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendVstring(buf []byte, s string) []byte {
	buf = appendVaruint(buf, uint64(len(s)))
	return append(buf, s...)
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) varuint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, errors.Newf("malformed varuint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) vstring() (string, error) {
	n, err := r.varuint()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.buf) {
		return "", errors.Newf("truncated string at offset %d", r.pos)
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}
