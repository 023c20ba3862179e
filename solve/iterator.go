package solve

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/storage"
)

// ErrExhausted is returned by Iterator.Advance when every candidate has
// been offered and rejected or exhausted; it is distinguished from a real
// SolverError so the Solver knows to backtrack rather than surface a
// collaborator failure.
var ErrExhausted = errors.New("package iterator exhausted")

// HistoryEntry records one candidate the Iterator considered and rejected,
// for inclusion in an UnresolvedPackageError's diagnostic trail.
type HistoryEntry struct {
	Ident  api.Ident
	Reason string
}

// Iterator lazily enumerates (Spec, Repository) candidates for a single
// Request, in the preference order fixed by repository order, descending
// version, and embedded-before-digest-before-source build ordering.
//
// It is stateful and single-pass: once a candidate has been yielded or
// skipped it is never revisited.
type Iterator struct {
	request api.Request
	repos   []storage.Repository
	options api.OptionMap

	history []HistoryEntry

	repoIdx int

	versionsLoaded bool
	versions       []api.Version
	versionIdx     int

	builds     []api.Ident
	buildIdx   int
	buildsLoaded bool
}

// NewIterator constructs an Iterator for request against repos, resolving
// option compatibility against options.
func NewIterator(request api.Request, repos []storage.Repository, options api.OptionMap) *Iterator {
	return &Iterator{
		request: request,
		repos:   repos,
		options: options,
	}
}

// History returns every candidate rejected so far, in the order they were
// considered.
func (it *Iterator) History() []HistoryEntry {
	return append([]HistoryEntry(nil), it.history...)
}

func (it *Iterator) record(id api.Ident, reason string) {
	it.history = append(it.history, HistoryEntry{Ident: id, Reason: reason})
}

// Advance returns the next acceptable (Spec, Repository, OptionMap)
// candidate, or ErrExhausted once no more candidates remain. The OptionMap
// is the full option assignment actually used to evaluate the candidate
// (and, for a DIGEST build, to reproduce its build digest) — callers must
// carry it forward rather than recompute it later against a different
// OptionMap. Any other error indicates a collaborator (Repository) failure.
func (it *Iterator) Advance() (api.Spec, storage.Repository, api.OptionMap, error) {
	for {
		if it.repoIdx >= len(it.repos) {
			return api.Spec{}, nil, api.OptionMap{}, ErrExhausted
		}
		repo := it.repos[it.repoIdx]

		if !it.versionsLoaded {
			if err := it.loadVersions(repo); err != nil {
				return api.Spec{}, nil, api.OptionMap{}, err
			}
		}

		if it.versionIdx >= len(it.versions) {
			it.repoIdx++
			it.versionsLoaded = false
			it.versionIdx = 0
			it.buildsLoaded = false
			continue
		}
		version := it.versions[it.versionIdx]

		if !it.buildsLoaded {
			if err := it.loadBuilds(repo, version); err != nil {
				return api.Spec{}, nil, api.OptionMap{}, err
			}
		}

		if it.buildIdx >= len(it.builds) {
			it.versionIdx++
			it.buildsLoaded = false
			it.buildIdx = 0
			continue
		}

		id := it.builds[it.buildIdx]
		it.buildIdx++

		spec, repoOK, resolved, reason := it.evaluate(repo, id)
		if reason != "" {
			it.record(id, reason)
			continue
		}
		return spec, repoOK, resolved, nil
	}
}

func (it *Iterator) loadVersions(repo storage.Repository) error {
	versions, err := repo.ListVersions(it.request.Pkg.Name)
	if err != nil {
		var nf *storage.ErrNotFound
		if errors.As(err, &nf) {
			it.versions = nil
			it.versionsLoaded = true
			it.versionIdx = 0
			return nil
		}
		return fmt.Errorf("list versions for %s: %w", it.request.Pkg.Name, err)
	}

	filtered := versions[:0:0]
	for _, v := range versions {
		if it.request.PreRelease == api.ExcludeAll && v.IsPreRelease() {
			continue
		}
		if c := it.request.Pkg.Range.IsApplicable(v); !c.Ok() {
			continue
		}
		filtered = append(filtered, v)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[j].Less(filtered[i]) })

	it.versions = filtered
	it.versionsLoaded = true
	it.versionIdx = 0
	return nil
}

func (it *Iterator) loadBuilds(repo storage.Repository, version api.Version) error {
	idents, err := repo.ListBuilds(it.request.Pkg.Name, version)
	if err != nil {
		var nf *storage.ErrNotFound
		if errors.As(err, &nf) {
			it.builds = nil
			it.buildsLoaded = true
			it.buildIdx = 0
			return nil
		}
		return fmt.Errorf("list builds for %s/%s: %w", it.request.Pkg.Name, version, err)
	}

	var embedded, digest, source []api.Ident
	for _, id := range idents {
		switch {
		case id.Build != nil && id.Build.IsEmbedded():
			embedded = append(embedded, id)
		case id.Build != nil && id.Build.IsDigest():
			digest = append(digest, id)
		default:
			source = append(source, id)
		}
	}

	ordered := make([]api.Ident, 0, len(idents))
	ordered = append(ordered, embedded...)
	ordered = append(ordered, digest...)
	ordered = append(ordered, source...)

	it.builds = ordered
	it.buildsLoaded = true
	it.buildIdx = 0
	return nil
}

// evaluate checks id against the request and resolves its full option
// assignment, additionally verifying (for a DIGEST build) that the
// assignment reproduces the build's digest. An empty reason means id is
// acceptable, and resolved is the OptionMap the caller must carry forward
// as the actual option assignment used for id.
func (it *Iterator) evaluate(repo storage.Repository, id api.Ident) (spec api.Spec, repoOK storage.Repository, resolved api.OptionMap, reason string) {
	if c := it.request.IsApplicable(id); !c.Ok() {
		return api.Spec{}, nil, api.OptionMap{}, c.Reason()
	}

	spec, err := repo.ReadSpec(id)
	if err != nil {
		return api.Spec{}, nil, api.OptionMap{}, fmt.Sprintf("failed to read spec: %s", err)
	}

	resolved, err = spec.ResolveAllOptions(it.options)
	if err != nil {
		return api.Spec{}, nil, api.OptionMap{}, fmt.Sprintf("option resolution failed: %s", err)
	}

	if id.Build != nil && id.Build.IsDigest() {
		want := resolved.Digest()
		if !want.Equal(*id.Build) {
			return api.Spec{}, nil, api.OptionMap{}, fmt.Sprintf("build %s does not reproduce from current options (got %s)", id.Build, want)
		}
	}

	return spec, repo, resolved, ""
}
