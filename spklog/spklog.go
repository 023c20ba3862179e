// Package spklog provides the structured logger used across the solver,
// builder and CLI. It wraps logrus rather than reimplementing fields,
// levels and formatters by hand.
package spklog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	base    = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.Level = logrus.InfoLevel
	return l
}

// SetLevel adjusts the package-wide log level. level is parsed the way
// logrus itself parses it ("debug", "info", "warn", "error"...).
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	base.Level = lvl
	return nil
}

// Entry is a logger bound to a fixed set of fields, matching the
// pkg/version/build/reason vocabulary the decision tree and solver trace
// through.
type Entry = logrus.Entry

// For returns an Entry scoped to a single decision-tree node or package
// resolution, for use at the call sites in solve and build.
func For(fields map[string]interface{}) *Entry {
	mu.Lock()
	l := base
	mu.Unlock()
	return l.WithFields(fields)
}

// Std returns the package-level logger without any bound fields, for
// plain progress lines (e.g. builder phase transitions).
func Std() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base
}
