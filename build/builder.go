// Package build implements the binary package builder: it drives a Solver
// twice (once to resolve the source package, once to resolve the build
// environment), runs the package's build script inside a filesystem
// runtime, validates the resulting changeset, and publishes the new
// (spec, layer) pair.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/exec"
	"github.com/ilpvfx/spk/solve"
	"github.com/ilpvfx/spk/spklog"
	"github.com/ilpvfx/spk/storage"
)

// Builder builds a binary package from a Spec.
type Builder struct {
	spec       api.Spec
	allOptions api.OptionMap
	source     sourceRef
	repos      []storage.Repository

	solver *solve.Solver
	log    *spklog.Entry
}

// sourceRef is either a plain source directory path (the common case, a
// local checkout) or a resolved SOURCE package Ident already published to
// a repository.
type sourceRef struct {
	path  string
	ident *api.Ident
}

// NewBuilder constructs a Builder targeting spec. spec.Pkg should not yet
// carry a final build; the Builder assigns one once the
// build completes.
func NewBuilder(spec api.Spec) *Builder {
	return &Builder{
		spec:       spec.Clone(),
		allOptions: api.NewOptionMap(),
		source:     sourceRef{path: "."},
		log:        spklog.For(map[string]interface{}{"component": "build"}),
	}
}

// WithOption sets a single caller-supplied option value.
func (b *Builder) WithOption(name api.Name, value string) *Builder {
	b.allOptions.Set(name, value)
	return b
}

// WithOptions merges options into the caller-supplied option set.
func (b *Builder) WithOptions(options api.OptionMap) *Builder {
	b.allOptions.Update(options)
	return b
}

// WithSourcePath sets the build's source directory to a plain filesystem
// path, bypassing source package resolution entirely.
func (b *Builder) WithSourcePath(path string) *Builder {
	b.source = sourceRef{path: path}
	return b
}

// WithSourceIdent sets the build's source to a previously published
// SOURCE package, resolved via the local repository at build time.
func (b *Builder) WithSourceIdent(id api.Ident) *Builder {
	b.source = sourceRef{ident: &id}
	return b
}

// WithRepository appends repo to the repositories consulted when
// resolving the build environment.
func (b *Builder) WithRepository(repo storage.Repository) *Builder {
	b.repos = append(b.repos, repo)
	return b
}

// WithRepositories appends every repo in repos.
func (b *Builder) WithRepositories(repos []storage.Repository) *Builder {
	b.repos = append(b.repos, repos...)
	return b
}

// DecisionTree returns the most recent solver's decision tree, useful for
// diagnosing a build environment that failed to resolve. Returns nil if
// the builder has not run.
func (b *Builder) DecisionTree() *solve.Tree {
	if b.solver == nil {
		return nil
	}
	return b.solver.DecisionTree()
}

// Build runs the full pipeline against runtime, publishing the result to
// localRepo, and returns the new package Ident.
func (b *Builder) Build(ctx context.Context, runtime exec.Runtime, localRepo storage.Repository) (api.Ident, error) {
	pkgOptions, err := b.spec.ResolveAllOptions(b.allOptions)
	if err != nil {
		return api.Ident{}, fmt.Errorf("resolve build options: %w", err)
	}
	b.allOptions.Update(pkgOptions)

	sourceSolution, err := b.resolveSourcePackage(localRepo)
	if err != nil {
		return api.Ident{}, fmt.Errorf("resolve source package: %w", err)
	}
	if err := runtime.Configure(sourceSolution); err != nil {
		return api.Ident{}, fmt.Errorf("configure runtime for source: %w", err)
	}

	envSolution, err := b.resolveBuildEnvironment(pkgOptions)
	if err != nil {
		return api.Ident{}, fmt.Errorf("resolve build environment: %w", err)
	}
	if err := runtime.Configure(envSolution); err != nil {
		return api.Ident{}, fmt.Errorf("configure runtime for build environment: %w", err)
	}
	if err := runtime.SetEditable(true); err != nil {
		return api.Ident{}, err
	}
	if err := runtime.Remount(); err != nil {
		return api.Ident{}, err
	}

	if err := b.spec.RenderAllPins(specsOf(envSolution)); err != nil {
		return api.Ident{}, fmt.Errorf("render pins: %w", err)
	}

	pkg := b.spec.Pkg.WithBuild(pkgOptions.Digest())

	layerDigest, err := b.buildAndCommitArtifacts(ctx, runtime, pkg, pkgOptions, envSolution)
	if err != nil {
		return api.Ident{}, err
	}

	published := b.spec.Clone()
	published.Pkg = pkg
	if err := localRepo.PublishPackage(published, layerDigest); err != nil {
		return api.Ident{}, fmt.Errorf("publish package %s: %w", pkg, err)
	}

	if err := b.publishEmbedded(localRepo, layerDigest); err != nil {
		return api.Ident{}, err
	}

	b.log.WithFields(map[string]interface{}{"pkg": pkg, "layer": layerDigest}).Info("build complete")
	return pkg, nil
}

// publishEmbedded publishes every sub-package this build contributes
// wholesale (Spec.Install.Embedded) as its own EMBEDDED build, sharing
// the parent build's layer: an embedded package has no build identity of
// its own, only the content the parent's build produced.
func (b *Builder) publishEmbedded(localRepo storage.Repository, layerDigest string) error {
	for _, emb := range b.spec.Install.Embedded {
		embSpec := emb.Clone()
		embSpec.Pkg = embSpec.Pkg.WithBuild(api.EMBEDDED)
		if err := localRepo.PublishPackage(embSpec, layerDigest); err != nil {
			return fmt.Errorf("publish embedded package %s: %w", embSpec.Pkg, err)
		}
	}
	return nil
}

func specsOf(sol solve.Solution) []api.Spec {
	out := make([]api.Spec, 0, sol.Len())
	for _, name := range sol.Names() {
		e, _ := sol.Get(name)
		out = append(out, e.Spec)
	}
	return out
}

func (b *Builder) resolveSourcePackage(localRepo storage.Repository) (solve.Solution, error) {
	s := solve.NewSolver(b.allOptions)
	s.AddRepository(localRepo)

	if b.source.ident != nil {
		id := *b.source.ident
		exact, err := api.ParseVersionRange("=" + id.Version.String())
		if err != nil {
			return solve.Solution{}, err
		}
		build := api.SRC
		s.AddRequest(api.Request{
			Pkg: api.RangeIdent{
				Name:  id.Name,
				Range: exact,
				Build: &build,
			},
			PreRelease: api.IncludeAll,
			Inclusion:  api.Always,
		})
	}

	b.solver = s
	return s.Solve()
}

func (b *Builder) resolveBuildEnvironment(pkgOptions api.OptionMap) (solve.Solution, error) {
	s := solve.NewSolver(b.allOptions)
	for _, repo := range b.repos {
		s.AddRepository(repo)
	}

	for _, opt := range b.spec.PkgOpts() {
		value, _ := pkgOptions.Get(opt.Pkg)
		req, err := opt.ToRequest(value)
		if err != nil {
			return solve.Solution{}, err
		}
		s.AddRequest(req)
	}

	b.solver = s
	return s.Solve()
}

func (b *Builder) buildAndCommitArtifacts(ctx context.Context, runtime exec.Runtime, pkg api.Ident, pkgOptions api.OptionMap, envSolution solve.Solution) (string, error) {
	fsAcc, ok := runtime.(exec.FSAccessor)
	if !ok {
		return "", fmt.Errorf("runtime does not expose a writable filesystem")
	}
	fs := fsAcc.FS()

	metadataDir := exec.DataPath(pkg, exec.Prefix)
	if err := fs.MkdirAll(metadataDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare build metadata dir: %w", err)
	}
	if err := afero.WriteFile(fs, exec.BuildScriptPath(pkg, exec.Prefix), []byte(b.spec.Build.Script), 0o644); err != nil {
		return "", fmt.Errorf("write build script: %w", err)
	}

	optsJSON, err := marshalOptionsIndented(pkgOptions)
	if err != nil {
		return "", fmt.Errorf("marshal build options: %w", err)
	}
	if err := afero.WriteFile(fs, exec.BuildOptionsPath(pkg, exec.Prefix), optsJSON, 0o644); err != nil {
		return "", fmt.Errorf("write build options: %w", err)
	}

	sourceDir := b.source.path
	if b.source.ident != nil {
		sourceDir = exec.DataPath(b.source.ident.WithBuild(api.SRC), exec.Prefix)
	}

	cmd, err := runtime.BuildShellInitializedCommand(ctx, "/bin/sh", "-ex", exec.BuildScriptPath(pkg, exec.Prefix))
	if err != nil {
		return "", fmt.Errorf("prepare build command: %w", err)
	}
	cmd.Dir = sourceDir
	cmd.Env = append(cmd.Env, flattenEnv(envSolution.ToEnvironment())...)
	cmd.Env = append(cmd.Env, pkgOptions.ToEnvironment()...)
	cmd.Env = append(cmd.Env, "PREFIX="+exec.Prefix)

	if err := cmd.Run(); err != nil {
		return "", &Error{Msg: fmt.Sprintf("build script returned non-zero exit status: %s", err)}
	}

	sourcesRel := strings.TrimPrefix(sourceDir, exec.Prefix)
	if err := runtime.Reset(sourcesRel); err != nil {
		return "", fmt.Errorf("reset runtime sources view: %w", err)
	}
	if err := runtime.Remount(); err != nil {
		return "", err
	}

	diffs, err := runtime.Diff()
	if err != nil {
		return "", fmt.Errorf("diff runtime: %w", err)
	}
	if err := validateBuildChangeset(diffs, exec.Prefix); err != nil {
		return "", err
	}

	return runtime.CommitLayer()
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func marshalOptionsIndented(opts api.OptionMap) ([]byte, error) {
	ordered := make(map[string]string, opts.Len())
	for _, n := range opts.Names() {
		v, _ := opts.Get(n)
		ordered[string(n)] = v
	}
	return json.MarshalIndent(ordered, "", "\t")
}

// validateBuildChangeset enforces that a build actually produced output:
// the changeset must be non-empty, and every non-unchanged entry must be
// an addition, except where both sides are directories.
func validateBuildChangeset(diffs []exec.Diff, prefix string) error {
	var nonUnchanged []exec.Diff
	for _, d := range diffs {
		if d.Mode != exec.Unchanged {
			nonUnchanged = append(nonUnchanged, d)
		}
	}
	if len(nonUnchanged) == 0 {
		return &Error{Msg: fmt.Sprintf("build process created no files under %s", prefix)}
	}
	for _, d := range nonUnchanged {
		if d.Before != nil && d.After != nil && d.Before.IsDir() && d.After.IsDir() {
			continue
		}
		if d.Mode != exec.Added {
			return &Error{Msg: fmt.Sprintf("existing file was %s: %s%s", d.Mode, prefix, d.Path)}
		}
	}
	return nil
}
