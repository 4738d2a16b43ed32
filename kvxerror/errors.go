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

// Package kvxerror implements the Status{code, message} taxonomy of
// spec.md §6/§7, grounded on the teacher's errorWithPGCode pattern
// (sql/errors.go: a marker interface exposing Code() string, mapped at
// the HTTP boundary) but built on github.com/cockroachdb/errors's
// mark/Is primitives instead of hand-rolled wrapper types, since the
// wider retrieval pack — not just the legacy tree — standardizes on
// that library for annotated, classifiable errors.
package kvxerror

import "github.com/cockroachdb/errors"

// Code is the closed taxonomy of spec.md §7.
type Code int

// The error code family, matching spec.md §6's boundary Status codes.
const (
	OK Code = iota
	ParseSQL
	ParseJSON
	Params
	Logic
	Conflict
	NotFound
	Timeout
	Network
	Forbidden
	StateInvalidated
	// Internal covers anything not raised through this package's
	// constructors; a well-behaved call path should never surface it.
	Internal
)

// String implements fmt.Stringer.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case ParseSQL:
		return "errParseSQL"
	case ParseJSON:
		return "errParseJson"
	case Params:
		return "errParams"
	case Logic:
		return "errLogic"
	case Conflict:
		return "errConflict"
	case NotFound:
		return "errNotFound"
	case Timeout:
		return "errTimeout"
	case Network:
		return "errNetwork"
	case Forbidden:
		return "errForbidden"
	case StateInvalidated:
		return "errStateInvalidated"
	default:
		return "errInternal"
	}
}

// Status is the boundary-facing error shape of spec.md §6.
type Status struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (s Status) Error() string { return s.Message }

// sentinels are marker errors used with errors.Mark/errors.Is to
// classify a wrapped error's Code without requiring every call site to
// declare its own error type, per cockroachdb/errors's mark idiom.
var sentinels = map[Code]error{
	ParseSQL:         errors.New("parse sql error"),
	ParseJSON:        errors.New("parse json error"),
	Params:           errors.New("invalid parameters"),
	Logic:            errors.New("logic error"),
	Conflict:         errors.New("conflict"),
	NotFound:         errors.New("not found"),
	Timeout:          errors.New("timeout"),
	Network:          errors.New("network error"),
	Forbidden:        errors.New("forbidden"),
	StateInvalidated: errors.New("namespace state invalidated"),
}

// New builds a classified error with a fixed message.
func New(code Code, msg string) error {
	if code == OK {
		return nil
	}
	return errors.Mark(errors.NewWithDepth(1, msg), sentinelFor(code))
}

// Newf builds a classified error with a formatted message.
func Newf(code Code, format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), sentinelFor(code))
}

// Wrap classifies an existing error, preserving its chain for
// errors.Cause/Unwrap while attaching code for CodeOf/StatusOf.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.WrapWithDepth(1, err, msg), sentinelFor(code))
}

func sentinelFor(code Code) error {
	s, ok := sentinels[code]
	if !ok {
		return errors.New("internal error")
	}
	return s
}

// CodeOf classifies err by walking its chain against every known
// sentinel. A nil error classifies as OK; an error built outside this
// package classifies as Internal.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	for code, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return Internal
}

// StatusOf renders err as the boundary Status shape.
func StatusOf(err error) Status {
	if err == nil {
		return Status{Code: OK}
	}
	return Status{Code: CodeOf(err), Message: err.Error()}
}

// HTTPStatus maps a Code onto the REST adapter's status codes, per
// spec.md §7.
func HTTPStatus(code Code) int {
	switch code {
	case OK:
		return 200
	case Params, ParseSQL, ParseJSON:
		return 400
	case Forbidden:
		return 403
	case NotFound:
		return 404
	case Conflict:
		return 409
	default:
		return 500
	}
}

// Convenience constructors for the most common call sites.

// ParseSQLf builds an errParseSQL-classified error.
func ParseSQLf(format string, args ...interface{}) error { return Newf(ParseSQL, format, args...) }

// ParseJSONf builds an errParseJson-classified error.
func ParseJSONf(format string, args ...interface{}) error { return Newf(ParseJSON, format, args...) }

// Paramsf builds an errParams-classified error.
func Paramsf(format string, args ...interface{}) error { return Newf(Params, format, args...) }

// Logicf builds an errLogic-classified error.
func Logicf(format string, args ...interface{}) error { return Newf(Logic, format, args...) }

// Conflictf builds an errConflict-classified error.
func Conflictf(format string, args ...interface{}) error { return Newf(Conflict, format, args...) }

// NotFoundf builds an errNotFound-classified error.
func NotFoundf(format string, args ...interface{}) error { return Newf(NotFound, format, args...) }

// Timeoutf builds an errTimeout-classified error.
func Timeoutf(format string, args ...interface{}) error { return Newf(Timeout, format, args...) }

// Networkf builds an errNetwork-classified error.
func Networkf(format string, args ...interface{}) error { return Newf(Network, format, args...) }

// Forbiddenf builds an errForbidden-classified error.
func Forbiddenf(format string, args ...interface{}) error { return Newf(Forbidden, format, args...) }

// StateInvalidatedf builds an errStateInvalidated-classified error.
func StateInvalidatedf(format string, args ...interface{}) error {
	return Newf(StateInvalidated, format, args...)
}

// Is reports whether err classifies as code.
func Is(err error, code Code) bool { return CodeOf(err) == code }
