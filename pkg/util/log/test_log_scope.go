// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"strings"

	"github.com/cockroachdb/optcte/pkg/util/syncutil"
)

// tShim is the part of testing.TB used by TestLogScope.
type tShim interface {
	Helper()
	Log(...interface{})
}

// TestLogScope represents the lifetime of a logging output redirection
// for a test. Use Scope() to create one, and Close() to restore the
// previous destination.
type TestLogScope struct {
	restore func()
	w       *testWriter
}

// Scope redirects the log output into the test's own log, so that entries
// only show up for failed or verbose tests. Use with:
//
//	defer log.Scope(t).Close(t)
func Scope(t tShim) *TestLogScope {
	t.Helper()
	w := &testWriter{t: t}
	return &TestLogScope{restore: SetOutput(w), w: w}
}

// Close restores the log destination that was active when the scope was
// created. Entries written after Close are no longer routed to the test.
func (l *TestLogScope) Close(t tShim) {
	t.Helper()
	l.restore()
	l.w.mu.Lock()
	l.w.closed = true
	l.w.mu.Unlock()
}

type testWriter struct {
	t tShim

	mu     syncutil.Mutex
	closed bool
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.t.Log(strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}
