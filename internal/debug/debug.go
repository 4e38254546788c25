// Package debug provides a minimal, env-gated logger used across sqldb-go.
//
// It deliberately does not pull in a structured logging framework: the
// façade's ambient logging needs are a handful of "this failed, keep going"
// lines on background paths (invalidation, warming, index builds), not
// request-scoped structured events.
package debug

import (
	"fmt"
	"os"
	"sync"
)

var (
	enabled  = os.Getenv("SQLDB_DEBUG") != ""
	verbose  bool
	mu       sync.Mutex
	sinkFunc func(string)
)

// SetVerbose toggles verbose logging regardless of the SQLDB_DEBUG env var.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// Enabled reports whether debug logging is currently active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled || verbose
}

// SetSink overrides where log lines go, for tests that want to capture output.
// Passing nil restores the default (stderr).
func SetSink(f func(string)) {
	mu.Lock()
	defer mu.Unlock()
	sinkFunc = f
}

// Logf writes a formatted debug line when debug logging is enabled.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	line := fmt.Sprintf(format, args...)
	mu.Lock()
	sink := sinkFunc
	mu.Unlock()
	if sink != nil {
		sink(line)
		return
	}
	fmt.Fprintln(os.Stderr, line)
}

// Warnf is an always-on warning line (build-phase skips, discovery drops,
// pipeline failures) — unlike Logf it is not gated by SQLDB_DEBUG, matching
// the spec's requirement that skip-with-warning paths are always observable.
func Warnf(format string, args ...interface{}) {
	line := "sqldb: warning: " + fmt.Sprintf(format, args...)
	mu.Lock()
	sink := sinkFunc
	mu.Unlock()
	if sink != nil {
		sink(line)
		return
	}
	fmt.Fprintln(os.Stderr, line)
}
