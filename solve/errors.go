package solve

import (
	"fmt"
	"strings"

	"github.com/ilpvfx/spk/api"
)

// SolverError is the marker interface for errors that drive backtracking
// rather than propagating as fatal collaborator failures.
type SolverError interface {
	error
	solverError()
}

// traceError is implemented by UnresolvedPackageError and
// ConflictingRequestsError to provide a richer, multi-line rendering than
// Error(). genericSolverError does not implement it, and the solver's
// debug logging records Error(), not this rendering.
type traceError interface {
	traceString() string
}

// UnresolvedPackageError means a Package Iterator was exhausted without
// yielding an acceptable candidate for request.
type UnresolvedPackageError struct {
	Request api.Request
	History []HistoryEntry
}

func (e *UnresolvedPackageError) Error() string {
	return fmt.Sprintf("no version of %s satisfies %s", e.Request.Pkg.Name, e.Request.Pkg.Range)
}

func (e *UnresolvedPackageError) solverError() {}

func (e *UnresolvedPackageError) traceString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unresolved: %s\n", e.Request.Pkg)
	for _, h := range e.History {
		fmt.Fprintf(&b, "  rejected %s: %s\n", h.Ident, h.Reason)
	}
	return b.String()
}

// ConflictingRequestsError means two requests for the same package, in
// the same effective Decision, intersect to an empty range or disagree on
// a build constraint.
type ConflictingRequestsError struct {
	A, B api.Request
}

func (e *ConflictingRequestsError) Error() string {
	return fmt.Sprintf("conflicting requests for %s: %s and %s", e.A.Pkg.Name, e.A.Pkg.Range, e.B.Pkg.Range)
}

func (e *ConflictingRequestsError) solverError() {}

func (e *ConflictingRequestsError) traceString() string {
	return fmt.Sprintf("conflict on %s: %s (from %s) vs %s (from %s)",
		e.A.Pkg.Name, e.A.Pkg.Range, e.A.Pkg, e.B.Pkg.Range, e.B.Pkg)
}

// genericSolverError wraps an arbitrary collaborator failure (a
// Repository call, for instance) encountered mid-solve, so it can still be
// attached to a Decision and surfaced through GetErrorChain without losing
// its concrete cause.
type genericSolverError struct {
	cause error
}

func (e *genericSolverError) Error() string  { return e.cause.Error() }
func (e *genericSolverError) Unwrap() error  { return e.cause }
func (e *genericSolverError) solverError()   {}

// InvalidStateError is raised when Solve is called on a Solver that is not
// Idle. A Solver's lifecycle (Idle → Running → Complete) is one-way.
type InvalidStateError struct {
	State SolverState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("solver is not idle (state: %s)", e.State)
}
