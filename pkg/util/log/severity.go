// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import "log/slog"

// Severity identifies the sort of log: info, warning etc.
type Severity int32

const (
	Severity_UNKNOWN Severity = iota
	Severity_INFO
	Severity_WARNING
	Severity_ERROR
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case Severity_INFO:
		return "INFO"
	case Severity_WARNING:
		return "WARNING"
	case Severity_ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) slogLevel() slog.Level {
	switch s {
	case Severity_WARNING:
		return slog.LevelWarn
	case Severity_ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Level specifies a level of verbosity for V logs. Level is treated as a
// sync/atomic int32.
type Level int32
