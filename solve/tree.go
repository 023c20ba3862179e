package solve

import (
	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/storage"
)

// decisionNode is one arena slot of a Tree. parent is an index into the
// same arena, -1 for the root; this avoids live pointers between nodes so
// the tree can be walked, cloned and inspected after a solve without any
// ownership tangles.
type decisionNode struct {
	parent int

	requests []api.Request

	hasResolved bool
	resolved    resolvedEntry

	iterators map[api.Name]*Iterator

	err error
}

type resolvedEntry struct {
	request api.Request
	spec    api.Spec
	repo    storage.Repository
	options api.OptionMap
}

// Tree is a Decision Tree: a rooted, arena-indexed set of Decision nodes.
// Node 0 is always the root.
type Tree struct {
	nodes []*decisionNode
}

// NewTree constructs a Tree with an empty root. Initial requests are
// added one at a time via AddRequest, so that two conflicting top-level
// requests are caught the same way a conflict discovered mid-solve is.
func NewTree() *Tree {
	t := &Tree{}
	root := &decisionNode{parent: -1}
	t.nodes = append(t.nodes, root)
	return t
}

// Root returns the root node's index.
func (t *Tree) Root() int { return 0 }

// Parent returns node's parent index, or -1 if node is the root.
func (t *Tree) Parent(node int) int { return t.nodes[node].parent }

// AddBranch constructs a new child Decision of parent and returns its
// index.
func (t *Tree) AddBranch(parent int) int {
	t.nodes = append(t.nodes, &decisionNode{parent: parent})
	return len(t.nodes) - 1
}

// AddRequest appends r to node's local request queue, after checking it
// against the effective (self ∪ ancestors) request set. A conflict stores
// a terminal ConflictingRequestsError on node and returns it without
// modifying the queue.
func (t *Tree) AddRequest(node int, r api.Request) error {
	nd := t.nodes[node]
	nd.requests = append(nd.requests, r)

	if _, _, err := t.effectiveRequests(node); err != nil {
		nd.requests = nd.requests[:len(nd.requests)-1]
		nd.err = err
		return err
	}
	return nil
}

// NextRequest returns the next pending Request in node's effective queue
// that is not yet resolved and whose InclusionPolicy is satisfied, or
// false if none remain.
func (t *Tree) NextRequest(node int) (api.Request, bool) {
	merged, order, err := t.effectiveRequests(node)
	if err != nil {
		return api.Request{}, false
	}
	resolved := t.effectiveResolvedNames(node)

	for _, name := range order {
		if resolved[name] {
			continue
		}
		req := merged[name]
		if req.Inclusion == api.IfAlreadyPresent {
			// An IfAlreadyPresent-only request never forces a resolution;
			// it only narrows one introduced elsewhere by an Always
			// request, which would already have made Inclusion Always
			// after merging.
			continue
		}
		return req, true
	}
	return api.Request{}, false
}

// SetResolved records node's chosen (request, spec, repo, options). options
// is the full option assignment actually used to resolve spec, the same
// one later carried into the Solution's Entry for this package.
func (t *Tree) SetResolved(node int, request api.Request, spec api.Spec, repo storage.Repository, options api.OptionMap) {
	nd := t.nodes[node]
	nd.hasResolved = true
	nd.resolved = resolvedEntry{request: request, spec: spec, repo: repo, options: options}
}

// SetError marks node terminal with e.
func (t *Tree) SetError(node int, e error) {
	t.nodes[node].err = e
}

// Error returns node's terminal error, if any.
func (t *Tree) Error(node int) error {
	return t.nodes[node].err
}

// GetIterator walks node's ancestor chain (self first) for a previously
// attached Iterator under name.
func (t *Tree) GetIterator(node int, name api.Name) (*Iterator, bool) {
	for n := node; n != -1; n = t.nodes[n].parent {
		if it, ok := t.nodes[n].iterators[name]; ok {
			return it, true
		}
	}
	return nil, false
}

// SetIterator attaches it under name at node.
func (t *Tree) SetIterator(node int, name api.Name, it *Iterator) {
	nd := t.nodes[node]
	if nd.iterators == nil {
		nd.iterators = make(map[api.Name]*Iterator)
	}
	nd.iterators[name] = it
}

// ancestry returns node's chain from root to node, inclusive.
func (t *Tree) ancestry(node int) []int {
	var rev []int
	for n := node; n != -1; n = t.nodes[n].parent {
		rev = append(rev, n)
	}
	chain := make([]int, len(rev))
	for i, n := range rev {
		chain[len(rev)-1-i] = n
	}
	return chain
}

// effectiveRequests merges every request contributed along node's
// ancestry, root-first, returning the merged-by-name map together with
// the order names first appeared in.
func (t *Tree) effectiveRequests(node int) (map[api.Name]api.Request, []api.Name, error) {
	merged := make(map[api.Name]api.Request)
	var order []api.Name

	for _, n := range t.ancestry(node) {
		for _, r := range t.nodes[n].requests {
			name := r.Pkg.Name
			existing, ok := merged[name]
			if !ok {
				merged[name] = r
				order = append(order, name)
				continue
			}
			combined, err := mergeRequests(existing, r)
			if err != nil {
				return nil, nil, err
			}
			merged[name] = combined
		}
	}
	return merged, order, nil
}

// effectiveResolvedNames collects every package name resolved along
// node's ancestry.
func (t *Tree) effectiveResolvedNames(node int) map[api.Name]bool {
	out := make(map[api.Name]bool)
	for _, n := range t.ancestry(node) {
		nd := t.nodes[n]
		if nd.hasResolved {
			out[nd.resolved.request.Pkg.Name] = true
		}
	}
	return out
}

// GetCurrentSolution collapses node's ancestry into a Solution.
func (t *Tree) GetCurrentSolution(node int) Solution {
	sol := NewSolution()
	for _, n := range t.ancestry(node) {
		nd := t.nodes[n]
		if !nd.hasResolved {
			continue
		}
		sol.Add(nd.resolved.request.Pkg.Name, Entry{
			Request: nd.resolved.request,
			Spec:    nd.resolved.spec,
			Repo:    nd.resolved.repo,
			Options: nd.resolved.options,
		})
	}
	return sol
}

// GetErrorChain walks the whole tree breadth-first and returns every
// terminal error found, in traversal order; the deepest (most recently
// discovered along the longest branch) is last.
func (t *Tree) GetErrorChain() []error {
	var errs []error
	depth := make([]int, len(t.nodes))
	for i, nd := range t.nodes {
		if nd.parent != -1 {
			depth[i] = depth[nd.parent] + 1
		}
	}
	order := make([]int, len(t.nodes))
	for i := range order {
		order[i] = i
	}
	// Stable sort by depth so deeper terminal errors sort later.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && depth[order[j-1]] > depth[order[j]]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	for _, i := range order {
		if t.nodes[i].err != nil {
			errs = append(errs, t.nodes[i].err)
		}
	}
	return errs
}

// mergeRequests combines two requests for the same package name: ranges
// intersect, ExcludeAll dominates, Always dominates, build constraints
// must agree, and the first non-empty pin wins.
func mergeRequests(a, b api.Request) (api.Request, error) {
	rng, ok := api.IntersectRanges(a.Pkg.Range, b.Pkg.Range)
	if !ok {
		return api.Request{}, &ConflictingRequestsError{A: a, B: b}
	}

	build := a.Pkg.Build
	if b.Pkg.Build != nil {
		if build != nil && !build.Equal(*b.Pkg.Build) {
			return api.Request{}, &ConflictingRequestsError{A: a, B: b}
		}
		build = b.Pkg.Build
	}

	preRelease := api.IncludeAll
	if a.PreRelease == api.ExcludeAll || b.PreRelease == api.ExcludeAll {
		preRelease = api.ExcludeAll
	}

	inclusion := api.IfAlreadyPresent
	if a.Inclusion == api.Always || b.Inclusion == api.Always {
		inclusion = api.Always
	}

	pin := a.Pin
	if pin == "" {
		pin = b.Pin
	}

	return api.Request{
		Pkg: api.RangeIdent{
			Name:  a.Pkg.Name,
			Range: rng,
			Build: build,
		},
		PreRelease: preRelease,
		Inclusion:  inclusion,
		Pin:        pin,
	}, nil
}
