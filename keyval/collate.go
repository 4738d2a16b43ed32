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

package keyval

import (
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CollateMode selects the ordering regime for string comparison, per
// spec.md §4.1.
type CollateMode int

// The closed set of collation regimes.
const (
	CollateNone CollateMode = iota
	CollateASCII
	CollateNumeric
	CollateUTF8
	CollateCustom
)

// CollateOpts configures string comparison. Collator is only consulted
// for CollateUTF8 and CollateCustom.
type CollateOpts struct {
	Mode     CollateMode
	Collator *collate.Collator
}

// DefaultCollate is the zero-value CollateOpts (byte-wise comparison).
var DefaultCollate = CollateOpts{Mode: CollateNone}

// NewUTF8Collate builds a CollateOpts for language-aware UTF-8 ordering.
func NewUTF8Collate(tag language.Tag) CollateOpts {
	return CollateOpts{Mode: CollateUTF8, Collator: collate.New(tag)}
}

// NewCustomCollate builds a CollateOpts around a caller-supplied
// collator, e.g. one configured with collate.IgnoreCase or
// collate.IgnoreDiacritics options.
func NewCustomCollate(c *collate.Collator) CollateOpts {
	return CollateOpts{Mode: CollateCustom, Collator: c}
}

// collateCompare is the only legal way to order strings (spec.md §4.1).
func collateCompare(a, b string, opts CollateOpts) int {
	switch opts.Mode {
	case CollateNone:
		return strings.Compare(a, b)
	case CollateASCII:
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	case CollateNumeric:
		return compareNumericStrings(a, b)
	case CollateUTF8, CollateCustom:
		if opts.Collator == nil {
			return strings.Compare(a, b)
		}
		return opts.Collator.CompareString(a, b)
	default:
		return strings.Compare(a, b)
	}
}

// compareNumericStrings compares strings as numbers when both parse as
// such, falling back to byte comparison otherwise ("natural sort").
func compareNumericStrings(a, b string) int {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		return compareFloat64(af, bf)
	}
	return strings.Compare(a, b)
}
