// Package logger provides a package-level verbose logger for pipeline
// diagnostics. Output is silent unless verbose mode is enabled.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	verbose bool
	out     io.Writer = os.Stderr
)

// SetVerbose enables or disables diagnostic output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// Verbose reports whether diagnostic output is enabled.
func Verbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Debug logs a formatted debug message when verbose.
func Debug(format string, args ...any) {
	log("DEBUG", format, args...)
}

// Info logs a formatted informational message when verbose.
func Info(format string, args ...any) {
	log("INFO", format, args...)
}

// Warn logs a formatted warning. Warnings always print.
func Warn(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	write("WARN", format, args...)
}

// Section prints a visual divider with a title when verbose.
func Section(title string) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose {
		return
	}
	fmt.Fprintf(out, "\n=== %s ===\n", title)
}

func log(level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose {
		return
	}
	write(level, format, args...)
}

func write(level, format string, args ...any) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(out, "[%s] %-5s %s\n", ts, level, fmt.Sprintf(format, args...))
}
