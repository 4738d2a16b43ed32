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

package log

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	prev := SetOutput(w)
	fn()
	require.NoError(t, w.Close())
	SetOutput(prev)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestInfofIncludesSeverityAndMessage(t *testing.T) {
	got := captureOutput(t, func() {
		Infof(context.Background(), "opened namespace %s", "users")
	})
	require.Contains(t, got, "opened namespace users")
	require.Equal(t, byte('I'), got[0])
}

func TestErrorfUsesErrorSeverityChar(t *testing.T) {
	got := captureOutput(t, func() {
		Errorf(context.Background(), "boom")
	})
	require.Equal(t, byte('E'), got[0])
}

func TestWithTagAppearsInOutput(t *testing.T) {
	ctx := WithTag(context.Background(), "ns", "users")
	got := captureOutput(t, func() {
		Infof(ctx, "select executed")
	})
	require.Contains(t, got, "ns=users")
	require.Contains(t, got, "select executed")
}

func TestFatalfCallsExitFuncAfterLogging(t *testing.T) {
	var exitCode int
	prevExit := exitFunc
	exitFunc = func(code int) { exitCode = code }
	defer func() { exitFunc = prevExit }()

	got := captureOutput(t, func() {
		Fatalf(context.Background(), "corrupted payload offset")
	})
	require.Contains(t, got, "corrupted payload offset")
	require.Equal(t, byte('F'), got[0])
	require.Equal(t, 2, exitCode)
}
