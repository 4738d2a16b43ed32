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

package storage

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
	"github.com/kvindex/kvindex/kvxerror"
	"github.com/kvindex/kvindex/namespace"
	"github.com/kvindex/kvindex/payload"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// indexDefDTO is the persisted form of namespace.IndexDef. Collate's
// *collate.Collator is not carried across restart — it has no exported
// state, being a compiled ICU-style table rather than data — so only
// the collation Mode round-trips; a custom collator (CollateCustom)
// must be re-attached by the caller reopening the namespace after Load.
type indexDefDTO struct {
	Name        string
	Fields      []string
	Kind        index.Kind
	Options     index.Options
	ValueType   keyval.Type
	CollateMode keyval.CollateMode
}

// metaDTO is the persisted form of a namespace's PayloadType plus its
// index definitions and version, the "M:" record of spec.md §6.
type metaDTO struct {
	TypeBytes []byte
	Indexes   []indexDefDTO
	Version   int64
}

func toIndexDefDTO(def namespace.IndexDef) indexDefDTO {
	return indexDefDTO{
		Name:        def.Name,
		Fields:      def.Fields,
		Kind:        def.Kind,
		Options:     def.Options,
		ValueType:   def.ValueType,
		CollateMode: def.Collate.Mode,
	}
}

func fromIndexDefDTO(dto indexDefDTO) namespace.IndexDef {
	return namespace.IndexDef{
		Name:      dto.Name,
		Fields:    dto.Fields,
		Kind:      dto.Kind,
		Options:   dto.Options,
		ValueType: dto.ValueType,
		Collate:   keyval.CollateOpts{Mode: dto.CollateMode},
	}
}

// SaveMeta persists ns's PayloadType, index definitions and version
// under MetaKey(ns.Name()).
func SaveMeta(engine Engine, ns *namespace.Namespace) error {
	dto := metaDTO{
		TypeBytes: ns.PayloadType().Serialize(),
		Version:   ns.Version(),
	}
	for _, def := range ns.IndexDefs() {
		dto.Indexes = append(dto.Indexes, toIndexDefDTO(def))
	}
	b, err := jsonAPI.Marshal(dto)
	if err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "marshaling namespace metadata")
	}
	return engine.Write(MetaKey(ns.Name()), b)
}

// LoadedMeta is the decoded form of a persisted "M:" record.
type LoadedMeta struct {
	Type    *payload.Type
	Indexes []namespace.IndexDef
	Version int64
}

// LoadMeta reads and decodes the persisted metadata for namespaceName,
// returning ok=false if no metadata has been written yet.
func LoadMeta(engine Engine, namespaceName string) (LoadedMeta, bool, error) {
	raw, ok, err := engine.Read(MetaKey(namespaceName))
	if err != nil || !ok {
		return LoadedMeta{}, false, err
	}
	var dto metaDTO
	if err := jsonAPI.Unmarshal(raw, &dto); err != nil {
		return LoadedMeta{}, false, kvxerror.Wrap(err, kvxerror.Internal, "unmarshaling namespace metadata")
	}
	typ, err := payload.Deserialize(namespaceName, dto.TypeBytes)
	if err != nil {
		return LoadedMeta{}, false, kvxerror.Wrap(err, kvxerror.Internal, "deserializing payload type")
	}
	defs := make([]namespace.IndexDef, 0, len(dto.Indexes))
	for _, d := range dto.Indexes {
		defs = append(defs, fromIndexDefDTO(d))
	}
	return LoadedMeta{Type: typ, Indexes: defs, Version: dto.Version}, true, nil
}

// SaveItem persists one row's item as CJSON under its ItemKey, per
// spec.md §6.
func SaveItem(engine Engine, namespaceName string, rowID int, item *payload.Item) error {
	var buf bytes.Buffer
	if err := item.GetJSON(&buf); err != nil {
		return kvxerror.Wrap(err, kvxerror.Internal, "encoding item")
	}
	return engine.Write(ItemKey(namespaceName, rowID), buf.Bytes())
}

// DeleteItem removes a row's persisted item.
func DeleteItem(engine Engine, namespaceName string, rowID int) error {
	return engine.Delete(ItemKey(namespaceName, rowID))
}

// Snapshot writes ns's full current state (metadata plus every live
// item) to engine, overwriting any prior snapshot. It follows
// storage/store.go's Close()'s "walk the owned map under the read
// lock" shape, but writing instead of stopping.
func Snapshot(engine Engine, ns *namespace.Namespace) error {
	if err := SaveMeta(engine, ns); err != nil {
		return err
	}
	return ns.ForEach(func(rowID int, item *payload.Item) error {
		return SaveItem(engine, ns.Name(), rowID, item)
	})
}

// Load reconstructs a namespace from its persisted metadata and items.
// It returns ok=false if namespaceName has no persisted metadata (a
// fresh namespace the caller should build via registry.OpenNamespace
// instead). Rows are reinserted in ascending persisted-rowId order;
// because Namespace.Insert always allocates the lowest free rowId,
// a namespace with no deleted rows at snapshot time reconstructs with
// identical rowIds, and one with gaps reconstructs compacted — rowIds
// are a process-local handle, not carried in any external reference,
// so this is not a correctness issue, only a documented deviation from
// the pre-restart numbering.
func Load(engine Engine, namespaceName string, wal namespace.WriteAheadLog) (*namespace.Namespace, bool, error) {
	meta, ok, err := LoadMeta(engine, namespaceName)
	if err != nil || !ok {
		return nil, false, err
	}

	ns := namespace.New(namespaceName, meta.Type, wal)
	for _, def := range meta.Indexes {
		if err := ns.AddIndex(def); err != nil {
			return nil, false, kvxerror.Wrap(err, kvxerror.Internal, "rebuilding index "+def.Name)
		}
	}

	err = engine.IterateWithPrefix(ItemPrefix(namespaceName), func(key, value []byte) (bool, error) {
		item := payload.NewItem(meta.Type)
		if err := item.FromJSON(value, nil, false, nil); err != nil {
			return false, kvxerror.Wrap(err, kvxerror.Internal, "decoding persisted item")
		}
		if _, err := ns.Insert(item); err != nil {
			return false, errors.Wrapf(err, "reinserting row from key %q", key)
		}
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	return ns, true, nil
}

// NewWALFactory builds a registry.WALFactory-shaped function (a
// func(name string) (namespace.WriteAheadLog, error)) backed by engine,
// so a caller can wire persistent WALs into registry.New without
// registry importing this package, per the import-cycle-avoidance
// idiom used throughout this codebase.
func NewWALFactory(engine Engine) func(name string) (namespace.WriteAheadLog, error) {
	return func(name string) (namespace.WriteAheadLog, error) {
		return NewWAL(name, engine), nil
	}
}

// ListNamespaces scans engine for every persisted "M:" metadata record
// and returns the namespace names it belongs to, letting a cold CLI
// process (which has no in-memory registry yet) discover what a
// storage directory holds before recovering it namespace by namespace.
// Since each namespace's keys are prefixed by its own name (keys.go's
// nsPrefix) rather than sharing one global "M:" prefix, this walks the
// full keyspace once rather than a single bounded prefix scan.
func ListNamespaces(engine Engine) ([]string, error) {
	var names []string
	err := engine.IterateWithPrefix(nil, func(key, _ []byte) (bool, error) {
		k := string(key)
		idx := strings.Index(k, "\x00"+metaInfix)
		if idx < 0 {
			return true, nil
		}
		names = append(names, k[:idx])
		return true, nil
	})
	return names, err
}
