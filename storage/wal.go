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
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"github.com/kvindex/kvindex/namespace"
)

// WAL implements namespace.WriteAheadLog by appending snappy-compressed
// records to Engine under the W:<seq> key range of §6's persistence
// layout. It follows storage/command_queue.go's role of recording
// in-flight mutations, but durably: where the teacher's CommandQueue
// tracks concurrent commands purely in memory to order them, WAL
// records completed ones for crash recovery. The namespace package
// itself owns sequence assignment (namespace.go's walSeq counter);
// WAL's job is only to persist whatever record it is handed.
type WAL struct {
	namespace string
	engine    Engine
}

// NewWAL builds a WAL persisting records for the given namespace name
// into engine.
func NewWAL(namespaceName string, engine Engine) *WAL {
	return &WAL{namespace: namespaceName, engine: engine}
}

// Append implements namespace.WriteAheadLog.
func (w *WAL) Append(r namespace.WALRecord) (int64, error) {
	encoded := encodeWALRecord(r)
	compressed := snappy.Encode(nil, encoded)
	if err := w.engine.Write(WALKey(w.namespace, r.Seq), compressed); err != nil {
		return 0, err
	}
	return r.Seq, nil
}

// Sync implements namespace.WriteAheadLog by forcing every buffered
// Append since the last Sync onto durable storage.
func (w *WAL) Sync() error {
	return w.engine.Sync()
}

// Records replays every persisted WAL record for this namespace in
// sequence order, for diagnostics or external redo tooling. The core
// itself does not replay the WAL on recovery — Load reconstructs a
// namespace from its item snapshot instead, per this package's Load
// doc comment — so this is a read-only accessor, not part of the
// namespace.WriteAheadLog contract.
func (w *WAL) Records() ([]namespace.WALRecord, error) {
	var out []namespace.WALRecord
	err := w.engine.IterateWithPrefix(WALPrefix(w.namespace), func(_, value []byte) (bool, error) {
		raw, err := snappy.Decode(nil, value)
		if err != nil {
			return false, errors.Wrap(err, "decompressing WAL record")
		}
		rec, err := decodeWALRecord(raw)
		if err != nil {
			return false, err
		}
		out = append(out, rec)
		return true, nil
	})
	return out, err
}

// encodeWALRecord packs a WALRecord as: varint(seq) byte(op)
// varint(rowID) varint(len(data)) data.
func encodeWALRecord(r namespace.WALRecord) []byte {
	buf := make([]byte, 0, 24+len(r.Data))
	var scratch [binary.MaxVarintLen64]byte

	n := binary.PutVarint(scratch[:], r.Seq)
	buf = append(buf, scratch[:n]...)
	buf = append(buf, r.Op)
	n = binary.PutVarint(scratch[:], int64(r.RowID))
	buf = append(buf, scratch[:n]...)
	n = binary.PutUvarint(scratch[:], uint64(len(r.Data)))
	buf = append(buf, scratch[:n]...)
	buf = append(buf, r.Data...)
	return buf
}

func decodeWALRecord(buf []byte) (namespace.WALRecord, error) {
	var rec namespace.WALRecord

	seq, n := binary.Varint(buf)
	if n <= 0 {
		return rec, errors.New("decoding WAL record: bad seq varint")
	}
	buf = buf[n:]

	if len(buf) < 1 {
		return rec, errors.New("decoding WAL record: missing op byte")
	}
	op := buf[0]
	buf = buf[1:]

	rowID, n := binary.Varint(buf)
	if n <= 0 {
		return rec, errors.New("decoding WAL record: bad rowID varint")
	}
	buf = buf[n:]

	dataLen, n := binary.Uvarint(buf)
	if n <= 0 {
		return rec, errors.New("decoding WAL record: bad data length varint")
	}
	buf = buf[n:]
	if uint64(len(buf)) < dataLen {
		return rec, errors.New("decoding WAL record: truncated data")
	}

	rec.Seq = seq
	rec.Op = op
	rec.RowID = int(rowID)
	rec.Data = append([]byte(nil), buf[:dataLen]...)
	return rec, nil
}
