package api

import "fmt"

// Compatibility is the result of checking a candidate against a predicate:
// either COMPATIBLE, or an INCOMPATIBLE carrying a human-readable reason.
type Compatibility struct {
	reason string // empty means compatible
}

// COMPATIBLE is the zero-value, truthy Compatibility.
var COMPATIBLE = Compatibility{}

// Incompatible builds an INCOMPATIBLE Compatibility with a formatted reason.
func Incompatible(format string, args ...interface{}) Compatibility {
	return Compatibility{reason: fmt.Sprintf(format, args...)}
}

// Ok reports whether c is COMPATIBLE.
func (c Compatibility) Ok() bool { return c.reason == "" }

// Reason returns the incompatibility reason, or "" if c is compatible.
func (c Compatibility) Reason() string { return c.reason }

func (c Compatibility) String() string {
	if c.Ok() {
		return "compatible"
	}
	return c.reason
}
