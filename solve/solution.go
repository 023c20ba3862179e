package solve

import (
	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/exec"
	"github.com/ilpvfx/spk/storage"
)

// Entry is one resolved package in a Solution: the Request it satisfies,
// the Spec chosen for it, the Repository it came from, and the full
// option assignment the solver actually resolved it against (the same
// assignment that reproduces a DIGEST build's digest, for a DIGEST Ident).
type Entry struct {
	Request api.Request
	Spec    api.Spec
	Repo    storage.Repository
	Options api.OptionMap
}

// Solution is the terminal mapping name -> (Request, Spec, Repository)
// produced by a successful solve. Iteration order follows the order in
// which packages were resolved along the successful branch, root first,
// so a package comes before the dependencies its install requirements
// introduced.
type Solution struct {
	order   []api.Name
	entries map[api.Name]Entry
}

// NewSolution builds an empty Solution.
func NewSolution() Solution {
	return Solution{entries: make(map[api.Name]Entry)}
}

// Add records e under name, appending to iteration order the first time
// name is seen.
func (s *Solution) Add(name api.Name, e Entry) {
	if _, exists := s.entries[name]; !exists {
		s.order = append(s.order, name)
	}
	s.entries[name] = e
}

// Get returns the Entry resolved for name, if any.
func (s Solution) Get(name api.Name) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Names returns every resolved package name, in resolution order.
func (s Solution) Names() []api.Name {
	return append([]api.Name(nil), s.order...)
}

// Len reports the number of resolved packages.
func (s Solution) Len() int { return len(s.order) }

// Items implements exec.Solution, giving the builder's runtime
// configuration step an ordered list of data paths to materialize.
func (s Solution) Items() []exec.SolvedItem {
	out := make([]exec.SolvedItem, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		out = append(out, exec.SolvedItem{
			Spec:     e.Spec,
			DataPath: exec.DataPath(e.Spec.Pkg, exec.Prefix),
		})
	}
	return out
}

// ToEnvironment implements exec.Solution by flattening every entry's
// actually-resolved option assignment (Entry.Options, captured at solve
// time) to SPK_OPT_<name>=<value> pairs. It never recomputes an entry's
// options from scratch: doing so against an empty OptionMap would silently
// replace any option value the solve actually used with the spec's bare
// default, breaking the link to a DIGEST build's digest.
func (s Solution) ToEnvironment() map[string]string {
	out := make(map[string]string)
	for _, name := range s.order {
		e := s.entries[name]
		for _, kv := range e.Options.ToEnvironment() {
			for i := 0; i < len(kv); i++ {
				if kv[i] == '=' {
					out[kv[:i]] = kv[i+1:]
					break
				}
			}
		}
	}
	return out
}
