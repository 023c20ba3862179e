package storage

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ilpvfx/spk/api"
)

// LocalRepository is a filesystem-backed Repository rooted at a directory,
// laid out as:
//
//	<root>/<name>/<version>/<build>.spec.toml
//	<root>/<name>/<version>/<build>.layer
//
// PublishPackage stages both files under a uniquely named path under
// <root>/.staging and renames each into place only once it has been
// written successfully; PublishSpec writes the spec file in place
// directly, without staging. A (spec, layer) pair's visibility to a reader is
// entirely gated by its <build>.spec.toml file: ListBuilds and ReadSpec
// only ever look at the spec file, never the layer file, in isolation.
// PublishPackage exploits that by renaming the layer file into place
// first and the spec file last, so the single rename of the spec file is
// the one operation that flips the pair from wholly invisible to visible
// and complete — a crash or error between the two renames leaves an
// orphaned, unreferenced layer file on disk, never a spec that resolves
// to a missing layer.
type LocalRepository struct {
	name string
	fs   afero.Fs
	root string

	mu sync.Mutex
}

// NewLocalRepository opens (creating if necessary) a LocalRepository at
// root on fs.
func NewLocalRepository(name string, fs afero.Fs, root string) (*LocalRepository, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("open local repository %s: %w", name, err)
	}
	return &LocalRepository{name: name, fs: fs, root: root}, nil
}

func (r *LocalRepository) String() string { return "local:" + r.name }

func (r *LocalRepository) versionDir(name api.Name, v api.Version) string {
	return path.Join(r.root, string(name), v.String())
}

func buildKey(b *api.Build) string {
	if b == nil {
		return "src"
	}
	return b.String()
}

func (r *LocalRepository) specPath(name api.Name, v api.Version, b *api.Build) string {
	return path.Join(r.versionDir(name, v), buildKey(b)+".spec.toml")
}

func (r *LocalRepository) layerPath(name api.Name, v api.Version, b *api.Build) string {
	return path.Join(r.versionDir(name, v), buildKey(b)+".layer")
}

// ListVersions implements Repository.
func (r *LocalRepository) ListVersions(name api.Name) ([]api.Version, error) {
	dir := path.Join(r.root, string(name))
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return nil, &ErrNotFound{Name: name}
	}
	out := make([]api.Version, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := api.ParseVersion(e.Name())
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, &ErrNotFound{Name: name}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// ListBuilds implements Repository.
func (r *LocalRepository) ListBuilds(name api.Name, version api.Version) ([]api.Ident, error) {
	dir := r.versionDir(name, version)
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return nil, &ErrNotFound{Name: name, Version: &version}
	}
	var out []api.Ident
	for _, e := range entries {
		base := e.Name()
		if !strings.HasSuffix(base, ".spec.toml") {
			continue
		}
		key := strings.TrimSuffix(base, ".spec.toml")
		b, err := api.ParseBuild(key)
		if err != nil {
			continue
		}
		id := api.NewIdent(name, version).WithBuild(b)
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	if len(out) == 0 {
		return nil, &ErrNotFound{Name: name, Version: &version}
	}
	return out, nil
}

// ReadSpec implements Repository.
func (r *LocalRepository) ReadSpec(id api.Ident) (api.Spec, error) {
	p := r.specPath(id.Name, id.Version, id.Build)
	data, err := afero.ReadFile(r.fs, p)
	if err != nil {
		return api.Spec{}, &ErrNotFound{Name: id.Name, Version: &id.Version, Build: id.Build}
	}
	return UnmarshalSpecTOML(data)
}

// PublishSpec implements Repository.
func (r *LocalRepository) PublishSpec(spec api.Spec, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Pkg.Build == nil {
		spec.Pkg = spec.Pkg.WithBuild(api.SRC)
	}

	p := r.specPath(spec.Pkg.Name, spec.Pkg.Version, spec.Pkg.Build)
	if !force {
		if exists, _ := afero.Exists(r.fs, p); exists {
			return &ErrSpecExists{Ident: spec.Pkg}
		}
	}

	data, err := MarshalSpecTOML(spec)
	if err != nil {
		return fmt.Errorf("publish spec %s: %w", spec.Pkg, err)
	}
	dir := r.versionDir(spec.Pkg.Name, spec.Pkg.Version)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("publish spec %s: %w", spec.Pkg, err)
	}
	return afero.WriteFile(r.fs, p, data, 0o644)
}

// PublishPackage implements Repository. It stages the spec and layer
// digest files under a uuid-named directory, then renames the layer into
// place before the spec: the spec file is the sole existence marker a
// reader consults, so renaming it last is what makes the (spec, layer)
// pair's publication atomic from a reader's point of view.
func (r *LocalRepository) PublishPackage(spec api.Spec, layerDigest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Pkg.Build == nil {
		spec.Pkg = spec.Pkg.WithBuild(api.SRC)
	}

	specData, err := MarshalSpecTOML(spec)
	if err != nil {
		return fmt.Errorf("publish package %s: %w", spec.Pkg, err)
	}

	staging := path.Join(r.root, ".staging", uuid.New().String())
	if err := r.fs.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("publish package %s: %w", spec.Pkg, err)
	}
	defer r.fs.RemoveAll(staging) //nolint:errcheck

	stagingSpec := path.Join(staging, "spec.toml")
	stagingLayer := path.Join(staging, "layer")
	if err := afero.WriteFile(r.fs, stagingSpec, specData, 0o644); err != nil {
		return fmt.Errorf("publish package %s: %w", spec.Pkg, err)
	}
	if err := afero.WriteFile(r.fs, stagingLayer, []byte(layerDigest), 0o644); err != nil {
		return fmt.Errorf("publish package %s: %w", spec.Pkg, err)
	}

	dir := r.versionDir(spec.Pkg.Name, spec.Pkg.Version)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("publish package %s: %w", spec.Pkg, err)
	}

	finalSpec := r.specPath(spec.Pkg.Name, spec.Pkg.Version, spec.Pkg.Build)
	finalLayer := r.layerPath(spec.Pkg.Name, spec.Pkg.Version, spec.Pkg.Build)

	// Layer first: until finalSpec exists, finalLayer is an orphan no
	// reader can reach (ListBuilds and ReadSpec key off the spec file).
	if err := r.fs.Rename(stagingLayer, finalLayer); err != nil {
		return fmt.Errorf("publish package %s: %w", spec.Pkg, err)
	}
	if err := r.fs.Rename(stagingSpec, finalSpec); err != nil {
		return fmt.Errorf("publish package %s: %w", spec.Pkg, err)
	}
	return nil
}

// LayerDigest returns the digest recorded for a published DIGEST build.
func (r *LocalRepository) LayerDigest(id api.Ident) (string, error) {
	p := r.layerPath(id.Name, id.Version, id.Build)
	data, err := afero.ReadFile(r.fs, p)
	if err != nil {
		return "", &ErrNotFound{Name: id.Name, Version: &id.Version, Build: id.Build}
	}
	return string(data), nil
}
