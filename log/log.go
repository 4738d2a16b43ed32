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

// Package log implements a small leveled logger, context-tag-scoped via
// github.com/cockroachdb/logtags, modeling util/log/clog.go's severity
// levels and "Lyymmdd hh:mm:ss.uuuuuu file:line] msg" header shape
// without its vendored file-rotation/glog machinery — per spec.md §10.2,
// this core has no on-disk log files or verbosity-flag machinery to
// reproduce, only the severity/tag/abort-on-Fatal contract the rest of
// the codebase relies on.
package log

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
)

// Severity identifies a log line's level, in increasing order of
// urgency, matching util/log/clog.go's Severity.
type Severity int32

// The four severities, per spec.md §10.2.
const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

var severityChar = [...]byte{Info: 'I', Warning: 'W', Error: 'E', Fatal: 'F'}

// out is the package-level writer; tests may swap it via SetOutput.
var (
	mu  sync.Mutex
	out = os.Stderr
)

// SetOutput redirects every subsequent log line to w, returning the
// previous writer so a caller (typically a test) can restore it.
func SetOutput(w *os.File) *os.File {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// exitFunc is overridden by tests so Fatalf's process-abort path is
// exercisable without actually killing the test binary.
var exitFunc = os.Exit

// Infof logs at Info severity, formatting format/args and appending
// every tag found on ctx (via logtags.FromContext).
func Infof(ctx context.Context, format string, args ...interface{}) {
	output(ctx, Info, format, args...)
}

// Warningf logs at Warning severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, Warning, format, args...)
}

// Errorf logs at Error severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, Error, format, args...)
}

// Fatalf logs at Fatal severity and then aborts the process, per
// spec.md §7's "unrecoverable invariant violations ... abort the
// process because continuing risks data corruption" — the only
// sanctioned caller of this function is a detected violation of a
// PayloadType offset invariant or a refcount underflow, never a
// recoverable Status-returning error path.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, Fatal, format, args...)
	exitFunc(2)
}

func output(ctx context.Context, s Severity, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if buf := logtags.FromContext(ctx); buf != nil {
		if tagStr := tagsString(buf); tagStr != "" {
			msg = "[" + tagStr + "] " + msg
		}
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "???", 0
	} else {
		file = shortFile(file)
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%c%s %s:%d] %s\n", severityChar[s], time.Now().Format("060102 15:04:05.000000"), file, line, msg)
}

func tagsString(buf *logtags.Buffer) string {
	tags := buf.Get()
	if len(tags) == 0 {
		return ""
	}
	s := ""
	for i, t := range tags {
		if i > 0 {
			s += ","
		}
		s += t.Key()
		if v := t.ValueStr(); v != "" {
			s += "=" + v
		}
	}
	return s
}

func shortFile(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// WithTag returns a context carrying an additional (key, value) log
// tag, layering on github.com/cockroachdb/logtags.AddTag so namespace
// names and query fingerprints ride along through planning and
// execution and show up on every subsequent log line taken from that
// context, per spec.md §10.2.
func WithTag(ctx context.Context, key string, value interface{}) context.Context {
	return logtags.AddTag(ctx, key, value)
}

// Safe marks a value as known non-sensitive (a namespace or field name,
// an index kind) so it survives redaction of a log message rendered for
// an audience without full access, using github.com/cockroachdb/redact
// the way the teacher's structured errors mark internal identifiers as
// safe while leaving user-supplied payload contents redacted.
func Safe(v interface{}) redact.SafeString {
	return redact.SafeString(fmt.Sprint(v))
}
