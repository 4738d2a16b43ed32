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
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/kvindex/kvindex/keyval"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Item couples a PayloadValue to the owning Namespace's PayloadType
// version and an optional assigned rowId (spec.md §3). A newly created
// Item has ID -1; Insert/Upsert assigns it.
type Item struct {
	Value       *Value
	TypeVersion int
	id          int
	err         error
}

// NewItem creates an unassigned Item over a fresh, zeroed record.
func NewItem(t *Type) *Item {
	return &Item{Value: NewValue(t), TypeVersion: t.Version(), id: -1}
}

// GetID returns the item's rowId, or -1 if unassigned.
func (it *Item) GetID() int { return it.id }

// SetID assigns the item's rowId; called by the namespace on
// Insert/Upsert.
func (it *Item) SetID(id int) { it.id = id }

// Status returns the last error recorded against the item by FromJSON,
// if any, matching the embedded-library Status() surface of spec.md §6.
func (it *Item) Status() error { return it.err }

// FromJSON populates the item's fields from a JSON object, matching
// fields by their bound JSON paths (Type.FieldByJSONPath). If pkOnly is
// true and pkFields is non-empty, only the fields named in pkFields are
// decoded; with an empty pkFields every field is decoded. tail, if non-nil, receives any bytes in data past
// the first complete JSON value (used by callers streaming
// newline-delimited or concatenated JSON).
func (it *Item) FromJSON(data []byte, tail *[]byte, pkOnly bool, pkFields []string) error {
	dec := jsonAPI.NewDecoder(bytes.NewReader(data))

	raw := map[string]interface{}{}
	err := dec.Decode(&raw)
	if err != nil && err != io.EOF {
		it.err = errors.Wrapf(err, "parsing item JSON")
		return it.err
	}
	if tail != nil {
		buffered, readErr := io.ReadAll(dec.Buffered())
		if readErr != nil {
			it.err = errors.Wrapf(readErr, "reading trailing item JSON")
			return it.err
		}
		*tail = buffered
	}

	pkSet := map[string]bool{}
	for _, p := range pkFields {
		pkSet[p] = true
	}

	t := it.Value.Type()
	for path, raw := range raw {
		fieldIdx := t.FieldByJSONPath(path)
		if fieldIdx < 0 {
			continue
		}
		if pkOnly && len(pkFields) > 0 && !pkSet[t.Field(fieldIdx).Name] {
			continue
		}
		vals, err := decodeJSONValue(t.Field(fieldIdx), raw)
		if err != nil {
			it.err = errors.Wrapf(err, "field %q", path)
			return it.err
		}
		nv, err := it.Value.Set(fieldIdx, vals)
		if err != nil {
			it.err = err
			return it.err
		}
		it.Value = nv
	}
	return nil
}

func decodeJSONValue(f Field, raw interface{}) ([]keyval.Value, error) {
	if f.Array {
		arr, ok := raw.([]interface{})
		if !ok {
			return nil, errors.Newf("expected array for field %q", f.Name)
		}
		out := make([]keyval.Value, 0, len(arr))
		for _, el := range arr {
			v, err := scalarFromJSON(f.Kind, el)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	v, err := scalarFromJSON(f.Kind, raw)
	if err != nil {
		return nil, err
	}
	return []keyval.Value{v}, nil
}

func scalarFromJSON(kind keyval.Type, raw interface{}) (keyval.Value, error) {
	switch kind {
	case keyval.Int32:
		f, ok := raw.(float64)
		if !ok {
			return keyval.Value{}, errors.Newf("expected number, got %T", raw)
		}
		return keyval.FromInt32(int32(f)), nil
	case keyval.Int64:
		f, ok := raw.(float64)
		if !ok {
			return keyval.Value{}, errors.Newf("expected number, got %T", raw)
		}
		return keyval.FromInt64(int64(f)), nil
	case keyval.Double:
		f, ok := raw.(float64)
		if !ok {
			return keyval.Value{}, errors.Newf("expected number, got %T", raw)
		}
		return keyval.FromDouble(f), nil
	case keyval.String:
		s, ok := raw.(string)
		if !ok {
			return keyval.Value{}, errors.Newf("expected string, got %T", raw)
		}
		return keyval.FromString(s), nil
	default:
		return keyval.Value{}, errors.Newf("cannot decode JSON into field kind %s", kind)
	}
}

// GetJSON renders the item's fields, keyed by their primary JSON path,
// to w.
func (it *Item) GetJSON(w io.Writer) error {
	t := it.Value.Type()
	stream := jsonAPI.BorrowStream(w)
	defer jsonAPI.ReturnStream(stream)

	stream.WriteObjectStart()
	first := true
	for i := 0; i < t.NumFields(); i++ {
		f := t.Field(i)
		if len(f.JSONPaths) == 0 {
			continue
		}
		if !first {
			stream.WriteMore()
		}
		first = false
		stream.WriteObjectField(f.JSONPaths[0])
		if err := writeFieldJSON(stream, it.Value, i, f); err != nil {
			return err
		}
	}
	stream.WriteObjectEnd()
	return stream.Flush()
}

func writeFieldJSON(stream *jsoniter.Stream, v *Value, idx int, f Field) error {
	if f.Array {
		vals, err := v.GetArray(idx)
		if err != nil {
			return err
		}
		stream.WriteArrayStart()
		for i, val := range vals {
			if i > 0 {
				stream.WriteMore()
			}
			writeScalarJSON(stream, f.Kind, val)
		}
		stream.WriteArrayEnd()
		return nil
	}
	val, err := v.Get(idx)
	if err != nil {
		return err
	}
	writeScalarJSON(stream, f.Kind, val)
	return nil
}

func writeScalarJSON(stream *jsoniter.Stream, kind keyval.Type, val keyval.Value) {
	switch kind {
	case keyval.Int32, keyval.Int64:
		stream.WriteInt64(val.Int64())
	case keyval.Double:
		stream.WriteFloat64(val.Double())
	case keyval.String:
		stream.WriteString(val.Str())
	default:
		stream.WriteNil()
	}
}
