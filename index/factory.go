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

package index

import (
	"github.com/cockroachdb/errors"

	"github.com/kvindex/kvindex/keyval"
)

// New builds an Index of the given kind, dispatching to the concrete
// constructor. compositeFields is only consulted for KindComposite.
func New(kind Kind, name string, valueKind keyval.Type, opts Options, collate keyval.CollateOpts, compositeFields []keyval.Type) (Index, error) {
	switch kind {
	case KindHash:
		return NewHash(name, valueKind, opts), nil
	case KindOrdered:
		return NewOrdered(name, valueKind, opts, collate), nil
	case KindColumn:
		return NewColumn(name, valueKind, opts), nil
	case KindFullText:
		return NewFullText(name, opts), nil
	case KindComposite:
		if len(compositeFields) == 0 {
			return nil, errors.Newf("composite index %q needs at least one field", name)
		}
		return NewComposite(name, compositeFields, opts, collate), nil
	default:
		return nil, errors.Newf("unknown index kind %d", kind)
	}
}
