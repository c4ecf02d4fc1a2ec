// Package logger provides verbose logging for the docsync client.
// When verbose mode is enabled via the --verbose flag, debug and info
// messages are printed to stderr so users can follow connection, health
// and recovery activity. Errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(always bool, level, scope, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose && !always {
		return
	}
	prefix := "[" + level + "] "
	if scope != "" {
		prefix += scope + ": "
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write(false, "DEBUG", "", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	write(false, "INFO", "", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	write(false, "WARN", "", format, args...)
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	write(true, "ERROR", "", format, args...)
}

// Scoped prefixes every message with a component name.
type Scoped struct {
	scope string
}

// For returns a logger scoped to a component, e.g. For("health").
func For(scope string) Scoped {
	return Scoped{scope: scope}
}

func (s Scoped) Debug(format string, args ...any) {
	write(false, "DEBUG", s.scope, format, args...)
}

func (s Scoped) Info(format string, args ...any) {
	write(false, "INFO", s.scope, format, args...)
}

func (s Scoped) Warn(format string, args ...any) {
	write(false, "WARN", s.scope, format, args...)
}

func (s Scoped) Error(format string, args ...any) {
	write(true, "ERROR", s.scope, format, args...)
}
