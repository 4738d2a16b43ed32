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
	"math"
	"strings"
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
	"github.com/cockroachdb/errors"

	"github.com/kvindex/kvindex/keyval"
)

// FullText is a stemmed inverted index over a String field, per spec.md
// §12's supplemented full-text search variant: each row's text is
// tokenized and Snowball-stemmed, and a Match condition looks terms up
// after applying the same pipeline, so "running" indexed matches a
// "run" query and vice versa.
type FullText struct {
	name    string
	opts    Options
	postings map[string]*IDSet
	terms   map[int][]string // rowID -> stemmed terms currently indexed, for Delete
}

// NewFullText builds an empty full-text index.
func NewFullText(name string, opts Options) *FullText {
	return &FullText{
		name:     name,
		opts:     opts,
		postings: make(map[string]*IDSet),
		terms:    make(map[int][]string),
	}
}

// Kind implements Index.
func (f *FullText) Kind() Kind { return KindFullText }

// Options implements Index.
func (f *FullText) Options() Options { return f.opts }

// FieldName implements Index.
func (f *FullText) FieldName() string { return f.name }

// ValueType implements Index.
func (f *FullText) ValueType() keyval.Type { return keyval.String }

// Tokenize lower-cases and splits text on non-letter/digit runes, then
// stems each token with the English Snowball algorithm. It is exported
// so package comparator can apply the identical pipeline when
// evaluating a Match condition as a residual check outside any
// FullText index.
func Tokenize(text string) []string {
	return tokenize(text)
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		out = append(out, stem(w))
	}
	return out
}

func stem(word string) string {
	env := snowballstem.NewEnv(word)
	english.Stem(env)
	return env.Current()
}

// Upsert implements Index: key must be a String value holding the
// field's full text.
func (f *FullText) Upsert(key keyval.Value, rowID int) error {
	if key.Type() != keyval.String {
		return errors.Newf("full text index %q requires a string value", f.name)
	}
	f.removeRow(rowID)
	tokens := tokenize(key.Str())
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		set, ok := f.postings[tok]
		if !ok {
			set = NewIDSet()
			f.postings[tok] = set
		}
		set.Add(rowID)
	}
	f.terms[rowID] = tokens
	return nil
}

func (f *FullText) removeRow(rowID int) {
	for _, tok := range f.terms[rowID] {
		if set, ok := f.postings[tok]; ok {
			set.Remove(rowID)
			if set.Empty() {
				delete(f.postings, tok)
			}
		}
	}
	delete(f.terms, rowID)
}

// Delete implements Index.
func (f *FullText) Delete(_ keyval.Value, rowID int) {
	f.removeRow(rowID)
}

// SelectKey implements Index. Only Match is meaningful; values[0] holds
// the raw query text, tokenized and stemmed the same way as indexed
// text, with per-term postings intersected (an implicit AND across
// query terms, per spec.md §12). It discards the relevance scores
// SelectKeyRanked computes along the way; callers that want them should
// use that instead.
func (f *FullText) SelectKey(cond Condition, values []keyval.Value, opts keyval.CollateOpts) (*IDSet, error) {
	set, _, err := f.SelectKeyRanked(cond, values, opts)
	return set, err
}

// SelectKeyRanked implements index.RankedSelector: it intersects the
// query terms' postings same as SelectKey, and additionally scores each
// matching row by the sum, over query terms, of a term's inverse
// document frequency (rarer terms among this index's rows count for
// more) — a simple per-row relevance rank, per spec.md §4.2's "IdSet
// plus per-row relevance ranks".
func (f *FullText) SelectKeyRanked(cond Condition, values []keyval.Value, _ keyval.CollateOpts) (*IDSet, map[int]float64, error) {
	if cond != Match {
		return nil, nil, ErrUnsupportedCondition
	}
	if len(values) != 1 {
		return nil, nil, errors.Newf("Match expects exactly one value")
	}
	queryTerms := tokenize(values[0].Str())
	if len(queryTerms) == 0 {
		return NewIDSet(), nil, nil
	}
	sets := make([]*IDSet, 0, len(queryTerms))
	for _, term := range queryTerms {
		set, ok := f.postings[term]
		if !ok {
			return NewIDSet(), nil, nil
		}
		sets = append(sets, set)
	}
	matched := Intersect(sets...)
	ranks := make(map[int]float64, matched.Len())
	for _, term := range queryTerms {
		weight := 1 / math.Log2(2+float64(f.postings[term].Len()))
		matched.ForEach(func(rowID int) {
			ranks[rowID] += weight
		})
	}
	return matched, ranks, nil
}

// MemStat implements Index.
func (f *FullText) MemStat() MemStat {
	ids := 0
	for _, set := range f.postings {
		ids += set.Len()
	}
	return MemStat{Kind: KindFullText, KeyCount: len(f.postings), IDCount: ids}
}

// Commit implements Index; FullText is eagerly maintained.
func (f *FullText) Commit() {}
