package storage

import (
	"sort"
	"sync"

	"github.com/armon/go-radix"

	"github.com/ilpvfx/spk/api"
)

// pkgEntry is the per-name record kept in a MemRepository's radix index: one
// slot per version, each holding the specs published under it keyed by
// build string.
type pkgEntry struct {
	versions map[string]*verEntry
}

type verEntry struct {
	version api.Version
	builds  map[string]api.Spec // key: Build.String()
	layers  map[string]string   // key: Build.String() -> layer digest
}

// MemRepository is an in-memory Repository, suitable for tests and for the
// transient "build environment" repository a Builder assembles from a set
// of requirements that aren't necessarily all published anywhere else.
//
// Package names are indexed in an armon/go-radix tree so that ListVersions
// and future prefix-style lookups iterate in a stable, lexicographically
// ordered way instead of Go's randomized map order.
type MemRepository struct {
	name string

	mu    sync.RWMutex
	names *radix.Tree // name string -> *pkgEntry
}

// NewMemRepository constructs an empty MemRepository identified by name
// (used only for String/diagnostics).
func NewMemRepository(name string) *MemRepository {
	return &MemRepository{
		name:  name,
		names: radix.New(),
	}
}

func (r *MemRepository) String() string { return "mem:" + r.name }

func (r *MemRepository) entry(name api.Name) *pkgEntry {
	if v, ok := r.names.Get(string(name)); ok {
		return v.(*pkgEntry)
	}
	return nil
}

// ListVersions implements Repository.
func (r *MemRepository) ListVersions(name api.Name) ([]api.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.entry(name)
	if e == nil || len(e.versions) == 0 {
		return nil, &ErrNotFound{Name: name}
	}
	out := make([]api.Version, 0, len(e.versions))
	for _, v := range e.versions {
		out = append(out, v.version)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// ListBuilds implements Repository.
func (r *MemRepository) ListBuilds(name api.Name, version api.Version) ([]api.Ident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.entry(name)
	if e == nil {
		return nil, &ErrNotFound{Name: name}
	}
	ve, ok := e.versions[version.String()]
	if !ok {
		return nil, &ErrNotFound{Name: name, Version: &version}
	}
	out := make([]api.Ident, 0, len(ve.builds))
	for _, spec := range ve.builds {
		out = append(out, spec.Pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// ReadSpec implements Repository.
func (r *MemRepository) ReadSpec(id api.Ident) (api.Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.entry(id.Name)
	if e == nil {
		return api.Spec{}, &ErrNotFound{Name: id.Name}
	}
	ve, ok := e.versions[id.Version.String()]
	if !ok {
		return api.Spec{}, &ErrNotFound{Name: id.Name, Version: &id.Version}
	}
	buildKey := "src"
	if id.Build != nil {
		buildKey = id.Build.String()
	}
	spec, ok := ve.builds[buildKey]
	if !ok {
		return api.Spec{}, &ErrNotFound{Name: id.Name, Version: &id.Version, Build: id.Build}
	}
	return spec.Clone(), nil
}

// PublishSpec implements Repository.
func (r *MemRepository) PublishSpec(spec api.Spec, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Pkg.Build == nil {
		spec.Pkg = spec.Pkg.WithBuild(api.SRC)
	}

	e := r.entry(spec.Pkg.Name)
	if e == nil {
		e = &pkgEntry{versions: make(map[string]*verEntry)}
		r.names.Insert(string(spec.Pkg.Name), e)
	}
	ve, ok := e.versions[spec.Pkg.Version.String()]
	if !ok {
		ve = &verEntry{
			version: spec.Pkg.Version,
			builds:  make(map[string]api.Spec),
			layers:  make(map[string]string),
		}
		e.versions[spec.Pkg.Version.String()] = ve
	}

	buildKey := "src"
	if spec.Pkg.Build != nil {
		buildKey = spec.Pkg.Build.String()
	}
	if _, exists := ve.builds[buildKey]; exists && !force {
		return &ErrSpecExists{Ident: spec.Pkg}
	}
	ve.builds[buildKey] = spec.Clone()
	return nil
}

// PublishPackage implements Repository. The spec must already have been
// published (or is published here as part of the same call) before its
// layer digest can be recorded.
func (r *MemRepository) PublishPackage(spec api.Spec, layerDigest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Pkg.Build == nil {
		spec.Pkg = spec.Pkg.WithBuild(api.SRC)
	}

	e := r.entry(spec.Pkg.Name)
	if e == nil {
		e = &pkgEntry{versions: make(map[string]*verEntry)}
		r.names.Insert(string(spec.Pkg.Name), e)
	}
	ve, ok := e.versions[spec.Pkg.Version.String()]
	if !ok {
		ve = &verEntry{
			version: spec.Pkg.Version,
			builds:  make(map[string]api.Spec),
			layers:  make(map[string]string),
		}
		e.versions[spec.Pkg.Version.String()] = ve
	}

	buildKey := "src"
	if spec.Pkg.Build != nil {
		buildKey = spec.Pkg.Build.String()
	}
	ve.builds[buildKey] = spec.Clone()
	ve.layers[buildKey] = layerDigest
	return nil
}

// LayerDigest returns the layer digest recorded for a published package
// build, if any.
func (r *MemRepository) LayerDigest(id api.Ident) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.entry(id.Name)
	if e == nil {
		return "", false
	}
	ve, ok := e.versions[id.Version.String()]
	if !ok {
		return "", false
	}
	buildKey := "src"
	if id.Build != nil {
		buildKey = id.Build.String()
	}
	d, ok := ve.layers[buildKey]
	return d, ok
}
