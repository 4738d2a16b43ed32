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

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/kvindex/kvindex/index"
	"github.com/kvindex/kvindex/keyval"
)

// Parser wraps a scanner and one token of lookahead, mirroring the
// teacher's parser.Parser{scanner, parserImpl} shape without its
// generated grammar table.
type Parser struct {
	sc  *scanner
	cur token
}

// ParseSQL parses a single SELECT statement into a Query. It supports
// this package's restricted grammar: SELECT * FROM ns [WHERE ...]
// [ORDER BY ...] [LIMIT n] [OFFSET n]. WHERE combines conditions as an
// AND of OR-brackets, matching spec.md §4.4's normalized shape
// directly rather than full SQL operator precedence.
func ParseSQL(sql string) (*Query, error) {
	p := &Parser{sc: newScanner(sql)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseSelect()
}

func (p *Parser) advance() error {
	tok, err := p.sc.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) kw(word string) bool {
	return p.cur.kind == tokIdent && strings.EqualFold(p.cur.text, word)
}

func (p *Parser) expectKw(word string) error {
	if !p.kw(word) {
		return errors.Newf("expected keyword %q, got %q", word, p.cur.text)
	}
	return p.advance()
}

func (p *Parser) expectPunct(s string) error {
	if p.cur.kind != tokPunct || p.cur.text != s {
		return errors.Newf("expected %q, got %q", s, p.cur.text)
	}
	return p.advance()
}

func (p *Parser) parseSelect() (*Query, error) {
	if err := p.expectKw("SELECT"); err != nil {
		return nil, err
	}
	// Column list is accepted but ignored: this store always returns
	// whole items, per spec.md §6's GetJSON/GetCJSON result surface.
	if p.cur.kind == tokPunct && p.cur.text == "*" {
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else {
		for p.cur.kind == tokIdent {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.kind == tokPunct && p.cur.text == "," {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if err := p.expectKw("FROM"); err != nil {
		return nil, err
	}
	if p.cur.kind != tokIdent {
		return nil, errors.Newf("expected namespace name, got %q", p.cur.text)
	}
	q := New(p.cur.text)
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.kw("WHERE") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		q.Where = where
	}

	if p.kw("ORDER") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		for {
			if p.cur.kind != tokIdent {
				return nil, errors.Newf("expected field name in ORDER BY, got %q", p.cur.text)
			}
			field := p.cur.text
			if err := p.advance(); err != nil {
				return nil, err
			}
			desc := false
			if p.kw("DESC") {
				desc = true
				if err := p.advance(); err != nil {
					return nil, err
				}
			} else if p.kw("ASC") {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
			q.SortBy(field, desc)
			if p.cur.kind == tokPunct && p.cur.text == "," {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}

	if p.kw("LIMIT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		q.WithLimit(n)
	}
	if p.kw("OFFSET") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		q.WithOffset(n)
	}
	if p.cur.kind != tokEOF {
		return nil, errors.Newf("unexpected trailing token %q", p.cur.text)
	}
	return q, nil
}

func (p *Parser) parseIntLiteral() (int, error) {
	if p.cur.kind != tokNumber {
		return 0, errors.Newf("expected integer, got %q", p.cur.text)
	}
	n, err := strconv.Atoi(p.cur.text)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid integer %q", p.cur.text)
	}
	return n, p.advance()
}

// parseWhere parses an AND-of-ORs term sequence directly into a Group,
// per spec.md §4.4's already-normalized shape.
func (p *Parser) parseWhere() (*Group, error) {
	g := &Group{Op: OpAnd}
	for {
		term, err := p.parseOrGroup()
		if err != nil {
			return nil, err
		}
		g.Entries = append(g.Entries, term)
		if p.kw("AND") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return g, nil
}

func (p *Parser) parseOrGroup() (Entry, error) {
	preds := []*Predicate{}
	pred, err := p.parseCondition()
	if err != nil {
		return Entry{}, err
	}
	preds = append(preds, pred)
	for p.kw("OR") {
		if err := p.advance(); err != nil {
			return Entry{}, err
		}
		pred, err := p.parseCondition()
		if err != nil {
			return Entry{}, err
		}
		preds = append(preds, pred)
	}
	if len(preds) == 1 {
		return Entry{Predicate: preds[0]}, nil
	}
	entries := make([]Entry, len(preds))
	for i, pr := range preds {
		entries[i] = Entry{Predicate: pr}
	}
	return Entry{Group: &Group{Op: OpOr, Entries: entries}}, nil
}

func (p *Parser) parseCondition() (*Predicate, error) {
	not := false
	if p.kw("NOT") {
		not = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.cur.kind != tokIdent {
		return nil, errors.Newf("expected field name, got %q", p.cur.text)
	}
	field := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch {
	case p.kw("IN"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		values, err := p.parseValueList()
		if err != nil {
			return nil, err
		}
		return &Predicate{Field: field, Cond: index.Set, Values: values, Not: not}, nil
	case p.kw("IS"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		isNot := not
		if p.kw("NOT") {
			isNot = !isNot
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if err := p.expectKw("NULL"); err != nil {
			return nil, err
		}
		return &Predicate{Field: field, Cond: index.Empty, Not: isNot}, nil
	case p.kw("BETWEEN"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		lo, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &Predicate{Field: field, Cond: index.Range, Values: []keyval.Value{lo, hi}, Not: not}, nil
	case p.cur.kind == tokPunct:
		cond, negate, err := opToCondition(p.cur.text)
		if err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &Predicate{Field: field, Cond: cond, Values: []keyval.Value{val}, Not: not != negate}, nil
	default:
		return nil, errors.Newf("expected operator after field %q, got %q", field, p.cur.text)
	}
}

func opToCondition(op string) (cond index.Condition, negate bool, err error) {
	switch op {
	case "=":
		return index.Eq, false, nil
	case "<":
		return index.Lt, false, nil
	case "<=":
		return index.Le, false, nil
	case ">":
		return index.Gt, false, nil
	case ">=":
		return index.Ge, false, nil
	case "!=", "<>":
		return index.Eq, true, nil
	default:
		return 0, false, errors.Newf("unsupported operator %q", op)
	}
}

func (p *Parser) parseValueList() ([]keyval.Value, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var values []keyval.Value
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.cur.kind == tokPunct && p.cur.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return values, nil
}

func (p *Parser) parseValue() (keyval.Value, error) {
	switch p.cur.kind {
	case tokNumber:
		text := p.cur.text
		if err := p.advance(); err != nil {
			return keyval.Value{}, err
		}
		if !strings.Contains(text, ".") {
			if i, err := strconv.ParseInt(text, 10, 64); err == nil {
				return keyval.FromInt64(i), nil
			}
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return keyval.Value{}, errors.Wrapf(err, "invalid numeric literal %q", text)
		}
		return keyval.FromDouble(f), nil
	case tokString:
		text := p.cur.text
		return keyval.FromString(text), p.advance()
	default:
		return keyval.Value{}, errors.Newf("expected a value literal, got %q", p.cur.text)
	}
}
