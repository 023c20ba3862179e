package storage_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/storage"
)

func mkSpec(t *testing.T, nameVer string) api.Spec {
	t.Helper()
	id, err := api.ParseIdent(nameVer)
	require.NoError(t, err)
	return api.Spec{
		Pkg: id,
		Build: api.BuildSpec{
			Options: []api.Option{
				api.VarOpt{Name: "debug", DefaultVal: "off", Choices: []string{"on", "off"}},
			},
			Script: "make install",
		},
		Sources: api.SourceSpec{Path: "."},
	}
}

func testRepository(t *testing.T, repo storage.Repository) {
	t.Helper()

	spec := mkSpec(t, "mylib/1.0.0")
	require.NoError(t, repo.PublishSpec(spec, false))

	versions, err := repo.ListVersions(spec.Pkg.Name)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
	assert.True(t, versions[0].Equal(spec.Pkg.Version))

	builds, err := repo.ListBuilds(spec.Pkg.Name, spec.Pkg.Version)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	require.NotNil(t, builds[0].Build)
	assert.True(t, builds[0].Build.IsSource())

	got, err := repo.ReadSpec(spec.Pkg.WithBuild(api.SRC))
	require.NoError(t, err)
	assert.Equal(t, spec.Pkg.WithBuild(api.SRC), got.Pkg)
	assert.Equal(t, spec.Build.Script, got.Build.Script)
	require.Len(t, got.Build.Options, 1)
	assert.Equal(t, api.Name("debug"), got.Build.Options[0].OptName())

	err = repo.PublishSpec(spec, false)
	var exists *storage.ErrSpecExists
	require.ErrorAs(t, err, &exists)

	require.NoError(t, repo.PublishSpec(spec, true))

	_, err = repo.ReadSpec(api.NewIdent("nope", spec.Pkg.Version))
	var notFound *storage.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestMemRepository(t *testing.T) {
	repo := storage.NewMemRepository("test")
	testRepository(t, repo)

	digestBuild := api.NewDigestBuild([]byte("opts"))
	built := mkSpec(t, "mylib/1.0.0")
	built.Pkg.Build = &digestBuild
	require.NoError(t, repo.PublishPackage(built, "sha256:deadbeef"))

	digest, ok := repo.LayerDigest(built.Pkg)
	require.True(t, ok)
	assert.Equal(t, "sha256:deadbeef", digest)
}

func TestLocalRepository(t *testing.T) {
	fs := afero.NewMemMapFs()
	repo, err := storage.NewLocalRepository("test", fs, "/repo")
	require.NoError(t, err)
	testRepository(t, repo)

	digestBuild := api.NewDigestBuild([]byte("opts"))
	built := mkSpec(t, "mylib/1.0.0")
	built.Pkg.Build = &digestBuild
	require.NoError(t, repo.PublishPackage(built, "sha256:cafef00d"))

	digest, err := repo.LayerDigest(built.Pkg)
	require.NoError(t, err)
	assert.Equal(t, "sha256:cafef00d", digest)

	exists, err := afero.DirExists(fs, "/repo/.staging")
	require.NoError(t, err)
	staged, _ := afero.ReadDir(fs, "/repo/.staging")
	assert.True(t, !exists || len(staged) == 0, "staging directory should be cleaned up after publish")
}
