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
	"fmt"
	"strconv"
	"strings"
)

// Key layout, per spec.md §6: "the namespace writes, at minimum: M:
// metadata ..., I:<rowId> payload in CJSON form, W:<seq> WAL entries."
// Every namespace gets its own key prefix so that one Engine (one
// Pebble database) can back an entire registry, mirroring keys.go's
// role in the teacher tree of centralizing key construction rather
// than scattering string formatting across callers.
const (
	metaInfix = "M:"
	itemInfix = "I:"
	walInfix  = "W:"
)

func nsPrefix(namespace string) string {
	return namespace + "\x00"
}

// MetaKey returns the key holding namespace's serialized metadata.
func MetaKey(namespace string) []byte {
	return []byte(nsPrefix(namespace) + metaInfix)
}

// ItemPrefix returns the key prefix under which every item of
// namespace is stored, suitable for Engine.IterateWithPrefix.
func ItemPrefix(namespace string) []byte {
	return []byte(nsPrefix(namespace) + itemInfix)
}

// ItemKey returns the key for one row's persisted item.
func ItemKey(namespace string, rowID int) []byte {
	return []byte(fmt.Sprintf("%s%s%020d", nsPrefix(namespace), itemInfix, rowID))
}

// RowIDFromItemKey extracts the rowId encoded by ItemKey, given the key
// was produced for namespace.
func RowIDFromItemKey(namespace string, key []byte) (int, error) {
	prefix := string(ItemPrefix(namespace))
	s := string(key)
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("key %q does not belong to namespace %q", s, namespace)
	}
	return strconv.Atoi(s[len(prefix):])
}

// WALPrefix returns the key prefix under which namespace's WAL entries
// are stored.
func WALPrefix(namespace string) []byte {
	return []byte(nsPrefix(namespace) + walInfix)
}

// WALKey returns the key for one WAL entry, zero-padded so that
// lexicographic and sequence order coincide.
func WALKey(namespace string, seq int64) []byte {
	return []byte(fmt.Sprintf("%s%s%020d", nsPrefix(namespace), walInfix, seq))
}
