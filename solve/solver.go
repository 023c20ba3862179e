package solve

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/spklog"
	"github.com/ilpvfx/spk/storage"
)

// SolverState is the Solver's lifecycle stage. Transitions are one-way:
// Idle → Running → Complete.
type SolverState int

const (
	Idle SolverState = iota
	Running
	Complete
)

func (s SolverState) String() string {
	switch s {
	case Running:
		return "running"
	case Complete:
		return "complete"
	default:
		return "idle"
	}
}

// Solver drives a Decision Tree to a Solution via depth-first backtracking
// search.
type Solver struct {
	options  api.OptionMap
	repos    []storage.Repository
	requests []api.Request

	state SolverState
	tree  *Tree
	log   *spklog.Entry
}

// NewSolver constructs an Idle Solver seeded with the given global
// options.
func NewSolver(options api.OptionMap) *Solver {
	return &Solver{
		options: options,
		log:     spklog.For(map[string]interface{}{"component": "solver"}),
	}
}

// AddRepository appends repo to the ordered list of repositories
// consulted by every Package Iterator this Solver creates.
func (s *Solver) AddRepository(repo storage.Repository) {
	s.repos = append(s.repos, repo)
}

// AddRequest adds a top-level Request to be satisfied by the solve.
func (s *Solver) AddRequest(r api.Request) {
	s.requests = append(s.requests, r)
}

// DecisionTree returns the Solver's tree, which remains queryable after a
// solve completes or fails, whether or not Solve has returned yet.
func (s *Solver) DecisionTree() *Tree {
	if s.tree == nil {
		s.tree = NewTree()
	}
	return s.tree
}

// Solve runs the backtracking search to completion. Calling Solve on a
// Solver that is not Idle is an error.
func (s *Solver) Solve() (Solution, error) {
	if s.state != Idle {
		return Solution{}, &InvalidStateError{State: s.state}
	}
	s.state = Running
	defer func() { s.state = Complete }()

	s.tree = NewTree()
	node := s.tree.Root()
	for _, r := range s.requests {
		if err := s.tree.AddRequest(node, r); err != nil {
			return Solution{}, err
		}
	}

	request, ok := s.tree.NextRequest(node)
	for ok {
		if request.Pin != "" {
			s.log.WithFields(map[string]interface{}{"pkg": request.Pkg.Name, "pin": request.Pin}).
				Debug("request has an unresolved pin, proceeding anyway")
		}

		child, err := s.solveRequest(node, request)
		if err != nil {
			if s.tree.Parent(node) == -1 {
				chain := s.tree.GetErrorChain()
				if len(chain) > 0 {
					return Solution{}, chain[len(chain)-1]
				}
				return Solution{}, err
			}
			s.log.WithFields(map[string]interface{}{"pkg": request.Pkg.Name, "reason": err.Error()}).
				Debug("backtracking")
			node = s.tree.Parent(node)
		} else {
			node = child
		}

		request, ok = s.tree.NextRequest(node)
	}

	return s.tree.GetCurrentSolution(node), nil
}

// solveRequest branches, obtains or creates the package's iterator,
// advances it once, and records the outcome.
func (s *Solver) solveRequest(node int, request api.Request) (int, error) {
	child := s.tree.AddBranch(node)

	it, ok := s.tree.GetIterator(node, request.Pkg.Name)
	if !ok {
		it = NewIterator(request, s.repos, s.options)
		s.tree.SetIterator(node, request.Pkg.Name, it)
	}

	spec, repo, resolvedOptions, err := it.Advance()
	if err == ErrExhausted {
		e := &UnresolvedPackageError{Request: request, History: it.History()}
		s.tree.SetError(child, e)
		return child, e
	}
	if err != nil {
		e := &genericSolverError{cause: pkgerrors.Wrapf(err, "resolving %s", request.Pkg.Name)}
		s.tree.SetError(child, e)
		return child, e
	}

	s.tree.SetResolved(child, request, spec, repo, resolvedOptions)
	s.log.WithFields(map[string]interface{}{
		"pkg":     spec.Pkg.Name,
		"version": spec.Pkg.Version,
		"build":   buildLabel(spec.Pkg.Build),
	}).Debug("resolved")

	if spec.Pkg.Build == nil || !spec.Pkg.Build.IsSource() {
		for _, req := range spec.Install.Requirements {
			if err := s.tree.AddRequest(child, req); err != nil {
				return child, err
			}
		}
	}

	return child, nil
}

func buildLabel(b *api.Build) string {
	if b == nil {
		return "src"
	}
	return b.String()
}
