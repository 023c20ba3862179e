package solve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/solve"
	"github.com/ilpvfx/spk/storage"
)

// publishDigest publishes name/version with no declared build options, so its
// build digest is always the empty-OptionMap digest, and returns the
// resulting Spec.
func publishDigest(t *testing.T, repo *storage.MemRepository, nameVer string, reqs ...string) api.Spec {
	t.Helper()

	id, err := api.ParseIdent(nameVer)
	require.NoError(t, err)

	spec := api.Spec{Pkg: id}
	for _, r := range reqs {
		req, err := parseRequest(r)
		require.NoError(t, err)
		spec.Install.Requirements = append(spec.Install.Requirements, req)
	}

	empty, err := spec.ResolveAllOptions(api.NewOptionMap())
	require.NoError(t, err)
	build := empty.Digest()
	spec.Pkg.Build = &build

	require.NoError(t, repo.PublishSpec(spec, false))
	return spec
}

// parseRequest parses "name>=range" style shorthand used throughout these
// fixtures into a full api.Request (Always, ExcludeAll).
func parseRequest(s string) (api.Request, error) {
	return api.ParseRequest(s)
}

func TestSolverSimpleChain(t *testing.T) {
	repo := storage.NewMemRepository("test")
	publishDigest(t, repo, "a/1.0.0", "b>=1")
	publishDigest(t, repo, "b/1.2.0")

	s := solve.NewSolver(api.NewOptionMap())
	s.AddRepository(repo)
	req, err := parseRequest("a")
	require.NoError(t, err)
	s.AddRequest(req)

	sol, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, 2, sol.Len())

	a, ok := sol.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", a.Spec.Pkg.Version.String())

	b, ok := sol.Get("b")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", b.Spec.Pkg.Version.String())
}

func TestSolverBacktracks(t *testing.T) {
	repo := storage.NewMemRepository("test")
	publishDigest(t, repo, "a/2.0.0", "b<1")
	publishDigest(t, repo, "a/1.0.0", "b>=1")
	publishDigest(t, repo, "b/1.0.0")

	s := solve.NewSolver(api.NewOptionMap())
	s.AddRepository(repo)
	req, err := parseRequest("a")
	require.NoError(t, err)
	s.AddRequest(req)

	sol, err := s.Solve()
	require.NoError(t, err)

	a, ok := sol.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", a.Spec.Pkg.Version.String())

	b, ok := sol.Get("b")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", b.Spec.Pkg.Version.String())
}

func TestSolverConflictingRequests(t *testing.T) {
	repo := storage.NewMemRepository("test")
	publishDigest(t, repo, "b/1.5.0")

	s := solve.NewSolver(api.NewOptionMap())
	s.AddRepository(repo)

	r1, err := parseRequest("b>=2")
	require.NoError(t, err)
	r2, err := parseRequest("b<2")
	require.NoError(t, err)
	s.AddRequest(r1)
	s.AddRequest(r2)

	_, err = s.Solve()
	require.Error(t, err)
	var conflict *solve.ConflictingRequestsError
	require.ErrorAs(t, err, &conflict)
}

func TestSolverPreReleaseExcluded(t *testing.T) {
	repo := storage.NewMemRepository("test")
	id, err := api.ParseIdent("x/1.0.0-beta")
	require.NoError(t, err)
	spec := api.Spec{Pkg: id}
	opts, err := spec.ResolveAllOptions(api.NewOptionMap())
	require.NoError(t, err)
	build := opts.Digest()
	spec.Pkg.Build = &build
	require.NoError(t, repo.PublishSpec(spec, false))

	s := solve.NewSolver(api.NewOptionMap())
	s.AddRepository(repo)
	req, err := parseRequest("x")
	require.NoError(t, err)
	s.AddRequest(req)

	_, err = s.Solve()
	require.Error(t, err)
	var unresolved *solve.UnresolvedPackageError
	require.ErrorAs(t, err, &unresolved)
}

func TestSolverEmptyRepositoryList(t *testing.T) {
	s := solve.NewSolver(api.NewOptionMap())
	req, err := parseRequest("anything")
	require.NoError(t, err)
	s.AddRequest(req)

	_, err = s.Solve()
	require.Error(t, err)
	var unresolved *solve.UnresolvedPackageError
	require.ErrorAs(t, err, &unresolved)
}

func TestSolverSourceBuildSkipsInstallRequirements(t *testing.T) {
	repo := storage.NewMemRepository("test")
	id, err := api.ParseIdent("a/1.0.0")
	require.NoError(t, err)
	spec := api.Spec{Pkg: id}
	spec.Install.Requirements = []api.Request{{
		Pkg: api.RangeIdent{Name: "nonexistent", Range: mustRange("*")},
	}}
	require.NoError(t, repo.PublishSpec(spec, false)) // no build set -> "src" slot

	s := solve.NewSolver(api.NewOptionMap())
	s.AddRepository(repo)
	req, err := parseRequest("a")
	require.NoError(t, err)
	s.AddRequest(req)

	sol, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, 1, sol.Len())
}

func TestSolverIfAlreadyPresentDoesNotForceResolution(t *testing.T) {
	repo := storage.NewMemRepository("test")

	s := solve.NewSolver(api.NewOptionMap())
	s.AddRepository(repo)
	s.AddRequest(api.Request{
		Pkg:       api.RangeIdent{Name: "optional", Range: mustRange("*")},
		Inclusion: api.IfAlreadyPresent,
	})

	sol, err := s.Solve()
	require.NoError(t, err)
	assert.Equal(t, 0, sol.Len())
}

func mustRange(s string) api.VersionRange {
	r, err := api.ParseVersionRange(s)
	if err != nil {
		panic(err)
	}
	return r
}
