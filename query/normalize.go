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

package query

import "github.com/cockroachdb/errors"

// ConjunctiveGroup is one AND-branch of a normalized predicate tree: an
// OR of one or more predicates.
type ConjunctiveGroup struct {
	Predicates []*Predicate
}

// Normalize flattens a Query's Where tree into conjunctive groups of
// OR-bracketed predicates (outer AND of inner ORs), per spec.md §4.4
// step 1. The grammar this package's parsers produce is already at most
// one bracket deep, so Normalize rejects a Group nested inside another
// Group's OR branch rather than silently flattening it, which would
// change the boolean meaning of the query.
func Normalize(where *Group) ([]ConjunctiveGroup, error) {
	if where == nil {
		return nil, nil
	}
	if where.Op != OpAnd {
		return nil, errors.Newf("top-level predicate tree must be an AND of OR-brackets")
	}
	groups := make([]ConjunctiveGroup, 0, len(where.Entries))
	for _, e := range where.Entries {
		switch {
		case e.Predicate != nil:
			groups = append(groups, ConjunctiveGroup{Predicates: []*Predicate{e.Predicate}})
		case e.Group != nil:
			if e.Group.Op != OpOr {
				return nil, errors.Newf("nested AND-group is not supported inside a top-level AND term")
			}
			preds := make([]*Predicate, 0, len(e.Group.Entries))
			for _, sub := range e.Group.Entries {
				if sub.Predicate == nil {
					return nil, errors.Newf("OR-bracket may only contain leaf predicates")
				}
				preds = append(preds, sub.Predicate)
			}
			groups = append(groups, ConjunctiveGroup{Predicates: preds})
		default:
			return nil, errors.Newf("empty query tree entry")
		}
	}
	return groups, nil
}
