// Package logging provides the module's single logging seam: a
// package-level *log.Logger that call sites reach through Printf-style
// helpers, replaceable in tests or by embedding applications.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

var (
	mu     sync.RWMutex
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// SetLogger replaces the logger wholesale.
func SetLogger(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Printf logs a formatted message.
func Printf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Printf(format, args...)
}

// Fatalf logs a formatted message and exits.
func Fatalf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Fatalf(format, args...)
}
