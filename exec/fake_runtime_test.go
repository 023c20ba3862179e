package exec_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpvfx/spk/exec"
)

type fakeSolution struct {
	items []exec.SolvedItem
	env   map[string]string
}

func (s fakeSolution) Items() []exec.SolvedItem       { return s.items }
func (s fakeSolution) ToEnvironment() map[string]string { return s.env }

func TestFakeRuntimeConfigureAndDiff(t *testing.T) {
	rt := exec.NewFakeRuntime("/spfs")

	require.NoError(t, rt.Remount())
	diffs, err := rt.Diff()
	require.NoError(t, err)
	assert.Empty(t, diffs)

	sol := fakeSolution{
		items: []exec.SolvedItem{{DataPath: "/spfs/spk/pkg/mylib/1.0.0/src"}},
		env:   map[string]string{"SPK_PKG_mylib": "1.0.0"},
	}
	require.NoError(t, rt.Configure(sol))

	diffs, err = rt.Diff()
	require.NoError(t, err)
	require.NotEmpty(t, diffs)
	for _, d := range diffs {
		assert.Equal(t, exec.Added, d.Mode)
	}

	require.NoError(t, rt.Remount())
	diffs, err = rt.Diff()
	require.NoError(t, err)
	for _, d := range diffs {
		assert.Equal(t, exec.Unchanged, d.Mode)
	}

	require.NoError(t, afero.WriteFile(rt.FS(), "/spfs/spk/pkg/mylib/1.0.0/src/out.txt", []byte("hi"), 0o644))
	diffs, err = rt.Diff()
	require.NoError(t, err)
	var found bool
	for _, d := range diffs {
		if d.Path == "/spfs/spk/pkg/mylib/1.0.0/src/out.txt" {
			found = true
			assert.Equal(t, exec.Added, d.Mode)
		}
	}
	assert.True(t, found)
}

func TestFakeRuntimeResetDiscardsUnconfiguredWrites(t *testing.T) {
	rt := exec.NewFakeRuntime("/spfs")
	require.NoError(t, rt.Remount())

	require.NoError(t, afero.WriteFile(rt.FS(), "/spfs/scratch.txt", []byte("temp"), 0o644))
	require.NoError(t, rt.Reset(""))

	exists, err := afero.Exists(rt.FS(), "/spfs/scratch.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFakeRuntimeCommitLayerIsDeterministic(t *testing.T) {
	rt1 := exec.NewFakeRuntime("/spfs")
	rt2 := exec.NewFakeRuntime("/spfs")

	for _, rt := range []*exec.FakeRuntime{rt1, rt2} {
		require.NoError(t, afero.WriteFile(rt.FS(), "/spfs/a.txt", []byte("a"), 0o644))
		require.NoError(t, afero.WriteFile(rt.FS(), "/spfs/b.txt", []byte("b"), 0o644))
	}

	d1, err := rt1.CommitLayer()
	require.NoError(t, err)
	d2, err := rt2.CommitLayer()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestFakeRuntimeBuildShellInitializedCommand(t *testing.T) {
	rt := exec.NewFakeRuntime("/spfs")
	require.NoError(t, rt.Configure(fakeSolution{env: map[string]string{"FOO": "bar"}}))

	cmd, err := rt.BuildShellInitializedCommand(context.Background(), "/bin/sh", "-c", "true")
	require.NoError(t, err)
	require.Contains(t, cmd.Env, "FOO=bar")
	require.Contains(t, cmd.Env, "PREFIX=/spfs")
}
