// Package logging defines the minimal logging contract every distcache
// subsystem is allowed to depend on. Logger and NoOpLogger are reused
// verbatim from _examples/agilira-balios/interfaces.go — the pack has no
// third-party structured-logging dependency (zerolog, zap, logrus) in
// any complete example repo to reach for instead (see DESIGN.md), so
// this one ambient concern stays on the teacher's own hand-rolled
// interface plus a stdlib-backed default implementation.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger defines a minimal logging interface with zero overhead.
// Implementations should use structured logging and be allocation-free.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keyvals ...interface{})

	// Info logs an info message with optional key-value pairs.
	Info(msg string, keyvals ...interface{})

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keyvals ...interface{})

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keyvals ...interface{})
}

// NoOpLogger is a logger that does nothing. Used as default to avoid nil checks.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, keyvals ...interface{}) {}
func (NoOpLogger) Info(msg string, keyvals ...interface{})  {}
func (NoOpLogger) Warn(msg string, keyvals ...interface{})  {}
func (NoOpLogger) Error(msg string, keyvals ...interface{}) {}

// StdLogger is the default non-noop Logger: a thin adapter over the
// standard library's log.Logger, prefixing each line with its level and
// rendering keyvals as "key=value" pairs.
type StdLogger struct {
	out *log.Logger
}

// NewStdLogger returns a StdLogger writing to os.Stderr with a
// microsecond timestamp, matching cmd/distcache-node's startup banner
// style.
func NewStdLogger() *StdLogger {
	return &StdLogger{out: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
}

func (l *StdLogger) Debug(msg string, keyvals ...interface{}) { l.log("DEBUG", msg, keyvals) }
func (l *StdLogger) Info(msg string, keyvals ...interface{})  { l.log("INFO", msg, keyvals) }
func (l *StdLogger) Warn(msg string, keyvals ...interface{})  { l.log("WARN", msg, keyvals) }
func (l *StdLogger) Error(msg string, keyvals ...interface{}) { l.log("ERROR", msg, keyvals) }

func (l *StdLogger) log(level, msg string, keyvals []interface{}) {
	if len(keyvals) == 0 {
		l.out.Printf("[%s] %s", level, msg)
		return
	}
	l.out.Printf("[%s] %s %s", level, msg, formatKeyvals(keyvals))
}

func formatKeyvals(keyvals []interface{}) string {
	var b []byte
	for i := 0; i < len(keyvals); i += 2 {
		if i > 0 {
			b = append(b, ' ')
		}
		key := keyvals[i]
		if i+1 < len(keyvals) {
			b = append(b, fmt.Sprintf("%v=%v", key, keyvals[i+1])...)
		} else {
			b = append(b, fmt.Sprintf("%v=?", key)...)
		}
	}
	return string(b)
}
