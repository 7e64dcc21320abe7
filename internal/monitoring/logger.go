// Package monitoring holds the swappable diagnostic logger shared by the
// library packages.
package monitoring

import (
	"log"
	"strings"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewLogger returns a *log.Logger whose output is routed through Logf with
// the given prefix, for components that take a *log.Logger.
func NewLogger(prefix string) *log.Logger {
	return log.New(logfWriter{prefix: prefix}, "", 0)
}

type logfWriter struct {
	prefix string
}

func (w logfWriter) Write(p []byte) (int, error) {
	Logf("%s%s", w.prefix, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
