package build

// Error is a fatal build-pipeline failure: a nonzero build script exit, an
// empty changeset, or a forbidden filesystem change. Unlike a
// solve.SolverError, it never drives backtracking.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }
