package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/exec"
	"github.com/ilpvfx/spk/storage"
)

func dir(p string) *exec.DiffEntry   { return &exec.DiffEntry{Mode: 1 << 31} }
func file(p string) *exec.DiffEntry { return &exec.DiffEntry{} }

func TestValidateBuildChangesetRequiresNonEmpty(t *testing.T) {
	err := validateBuildChangeset([]exec.Diff{
		{Path: "/spfs", Mode: exec.Unchanged, Before: dir(""), After: dir("")},
	}, exec.Prefix)
	require.Error(t, err)
	var buildErr *Error
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Msg, "created no files")
}

func TestValidateBuildChangesetRejectsModifiedFile(t *testing.T) {
	err := validateBuildChangeset([]exec.Diff{
		{Path: "/spfs/existing.txt", Mode: exec.Modified, Before: file(""), After: file("")},
	}, exec.Prefix)
	require.Error(t, err)
	var buildErr *Error
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Msg, "modified")
}

func TestValidateBuildChangesetRejectsRemovedFile(t *testing.T) {
	err := validateBuildChangeset([]exec.Diff{
		{Path: "/spfs/gone.txt", Mode: exec.Removed, Before: file("")},
	}, exec.Prefix)
	require.Error(t, err)
	var buildErr *Error
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Msg, "removed")
}

func TestValidateBuildChangesetAllowsAddedFiles(t *testing.T) {
	err := validateBuildChangeset([]exec.Diff{
		{Path: "/spfs/new.txt", Mode: exec.Added, After: file("")},
	}, exec.Prefix)
	assert.NoError(t, err)
}

func TestValidateBuildChangesetAllowsDirectoryPreservation(t *testing.T) {
	// A directory that already existed and still exists, alongside a real
	// addition, must not be treated as a forbidden modification even if a
	// diff entry for it surfaces with Mode != Unchanged.
	err := validateBuildChangeset([]exec.Diff{
		{Path: "/spfs/spk", Mode: exec.Modified, Before: dir(""), After: dir("")},
		{Path: "/spfs/spk/new.txt", Mode: exec.Added, After: file("")},
	}, exec.Prefix)
	assert.NoError(t, err)
}

func TestBuilderResolveBuildEnvironmentWiresPkgOpts(t *testing.T) {
	repo := storage.NewMemRepository("test")
	publishBuilt(t, repo, "dep/1.0.0")

	spec := api.Spec{
		Pkg: api.NewIdent("mylib", api.MustParseVersion("1.0.0")),
		Build: api.BuildSpec{
			Options: []api.Option{
				api.PkgOpt{Pkg: "dep", DefaultVal: "*"},
			},
		},
	}

	b := NewBuilder(spec)
	b.WithRepository(repo)

	pkgOptions, err := b.spec.ResolveAllOptions(b.allOptions)
	require.NoError(t, err)
	b.allOptions.Update(pkgOptions)

	sol, err := b.resolveBuildEnvironment(pkgOptions)
	require.NoError(t, err)
	require.Equal(t, 1, sol.Len())

	dep, ok := sol.Get("dep")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", dep.Spec.Pkg.Version.String())
}

func TestBuilderResolveSourcePackageWiresIdent(t *testing.T) {
	repo := storage.NewMemRepository("test")
	id, err := api.ParseIdent("mylib/1.0.0")
	require.NoError(t, err)
	srcSpec := api.Spec{Pkg: id}
	require.NoError(t, repo.PublishSpec(srcSpec, false)) // "src" slot

	b := NewBuilder(api.Spec{Pkg: id})
	b.WithSourceIdent(id)

	sol, err := b.resolveSourcePackage(repo)
	require.NoError(t, err)
	require.Equal(t, 1, sol.Len())

	entry, ok := sol.Get("mylib")
	require.True(t, ok)
	assert.True(t, entry.Spec.Pkg.Build.IsSource())
}

func TestBuilderPublishesEmbeddedSubSpecsWithSharedLayer(t *testing.T) {
	repo := storage.NewMemRepository("test")

	spec := api.Spec{
		Pkg: api.NewIdent("mylib", api.MustParseVersion("1.0.0")),
		Install: api.InstallSpec{
			Embedded: []api.Spec{
				{Pkg: api.NewIdent("mylib-tools", api.MustParseVersion("1.0.0"))},
			},
		},
	}

	b := NewBuilder(spec)
	require.NoError(t, b.publishEmbedded(repo, "sha256:shared"))

	builds, err := repo.ListBuilds("mylib-tools", api.MustParseVersion("1.0.0"))
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.True(t, builds[0].Build.IsEmbedded())

	digest, ok := repo.LayerDigest(builds[0])
	require.True(t, ok)
	assert.Equal(t, "sha256:shared", digest)
}

// publishBuilt publishes name/version as a fully-built DIGEST package with
// no further options, so it resolves as an immediately-installable leaf.
func publishBuilt(t *testing.T, repo *storage.MemRepository, nameVer string) {
	t.Helper()

	id, err := api.ParseIdent(nameVer)
	require.NoError(t, err)
	spec := api.Spec{Pkg: id}
	opts, err := spec.ResolveAllOptions(api.NewOptionMap())
	require.NoError(t, err)
	build := opts.Digest()
	spec.Pkg.Build = &build
	require.NoError(t, repo.PublishSpec(spec, false))
}
