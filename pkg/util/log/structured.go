// Copyright 2015 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/optcte/pkg/util/syncutil"
	"github.com/cockroachdb/redact"
)

var logging struct {
	mu struct {
		syncutil.RWMutex
		logger *slog.Logger
	}
	// verbosity is the current V level; see V.
	verbosity atomic.Int32
	// redactable keeps redaction markers in the emitted messages.
	redactable atomic.Bool
}

func init() {
	logging.mu.logger = newLogger(os.Stderr)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SetOutput redirects all log entries to w. The returned function restores
// the previous destination.
func SetOutput(w io.Writer) (restore func()) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	prev := logging.mu.logger
	logging.mu.logger = newLogger(w)
	return func() {
		logging.mu.Lock()
		defer logging.mu.Unlock()
		logging.mu.logger = prev
	}
}

// SetVerbosity sets the global V level. The returned function restores the
// previous level.
func SetVerbosity(level Level) (restore func()) {
	prev := logging.verbosity.Swap(int32(level))
	return func() { logging.verbosity.Store(prev) }
}

// SetRedactable controls whether emitted messages keep redaction markers
// around unsafe values.
func SetRedactable(redactable bool) {
	logging.redactable.Store(redactable)
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level Level) bool {
	return logging.verbosity.Load() >= int32(level)
}

// Infof logs to the INFO log.
// It extracts log tags from the context and logs them along with the given
// message. Arguments are handled in the manner of fmt.Printf; a newline is
// appended if missing.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_INFO, format, args)
}

// Warningf logs to the WARNING and INFO logs.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_WARNING, format, args)
}

// Errorf logs to the ERROR, WARNING, and INFO logs.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_ERROR, format, args)
}

// VEventf logs the message to the INFO log if the verbosity is at least
// level.
func VEventf(ctx context.Context, level Level, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, Severity_INFO, format, args)
	}
}

// FormatWithContextTags formats the string and prepends the context
// tags.
//
// Redaction markers are *not* inserted. The resulting
// string is generally unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	formatTags(ctx, true /* brackets */, &buf)
	buf.WriteString(redact.Sprintf(format, args...).StripMarkers())
	return buf.String()
}

// addStructured creates a structured log entry and hands it to the sink.
func addStructured(ctx context.Context, sev Severity, format string, args []interface{}) {
	msg := redact.Sprintf(format, args...)
	var buf strings.Builder
	formatTags(ctx, true /* brackets */, &buf)
	if logging.redactable.Load() {
		buf.WriteString(string(msg))
	} else {
		buf.WriteString(msg.StripMarkers())
	}

	logging.mu.RLock()
	logger := logging.mu.logger
	logging.mu.RUnlock()
	logger.Log(ctx, sev.slogLevel(), buf.String())
}

// formatTags appends the tags from the context to buf, in the form
// "[key1=val1,key2] ".
func formatTags(ctx context.Context, brackets bool, buf *strings.Builder) {
	tags := logtags.FromContext(ctx)
	if tags == nil || len(tags.Get()) == 0 {
		return
	}
	if brackets {
		buf.WriteByte('[')
	}
	for i, t := range tags.Get() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(t.Key())
		if v := t.ValueStr(); v != "" {
			buf.WriteByte('=')
			buf.WriteString(v)
		}
	}
	if brackets {
		buf.WriteString("] ")
	}
}
