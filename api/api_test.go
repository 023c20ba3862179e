package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpvfx/spk/api"
)

func TestVersionOrdering(t *testing.T) {
	cases := []struct{ lesser, greater string }{
		{"1.0.0", "1.0.1"},
		{"1.0.0", "2.0.0"},
		{"1.0.0-beta", "1.0.0"},
		{"1.0.0", "1.0.0+post"},
		{"1.0.0-alpha", "1.0.0-beta"},
	}
	for _, c := range cases {
		lo, err := api.ParseVersion(c.lesser)
		require.NoError(t, err)
		hi, err := api.ParseVersion(c.greater)
		require.NoError(t, err)
		assert.True(t, lo.Less(hi), "%s should be less than %s", c.lesser, c.greater)
		assert.False(t, hi.Less(lo))
	}
}

func TestVersionIsPreRelease(t *testing.T) {
	v := api.MustParseVersion("1.0.0-beta")
	assert.True(t, v.IsPreRelease())
	assert.False(t, api.MustParseVersion("1.0.0").IsPreRelease())
}

func TestOptionMapDigestStableUnderPermutation(t *testing.T) {
	a := api.NewOptionMap()
	a.Set("debug", "true")
	a.Set("arch", "x86")

	b := api.NewOptionMap()
	b.Set("arch", "x86")
	b.Set("debug", "true")

	assert.True(t, a.Digest().Equal(b.Digest()))
	assert.Equal(t, a.Digest().String(), b.Digest().String())
}

func TestOptionMapDigestChangesWithValue(t *testing.T) {
	a := api.NewOptionMap()
	a.Set("debug", "true")

	b := api.NewOptionMap()
	b.Set("debug", "false")

	assert.False(t, a.Digest().Equal(b.Digest()))
}

func TestBuildParseRoundTrip(t *testing.T) {
	for _, s := range []string{"src", "embedded"} {
		b, err := api.ParseBuild(s)
		require.NoError(t, err)
		assert.Equal(t, s, b.String())
	}

	d := api.NewOptionMap().Digest()
	b2, err := api.ParseBuild(d.String())
	require.NoError(t, err)
	assert.True(t, b2.Equal(d))
}

func TestVersionRangeWildcard(t *testing.T) {
	r, err := api.ParseVersionRange("")
	require.NoError(t, err)
	assert.True(t, r.IsApplicable(api.MustParseVersion("9.9.9")).Ok())
}

func TestVersionRangeExact(t *testing.T) {
	r, err := api.ParseVersionRange("=1.2.3")
	require.NoError(t, err)
	assert.True(t, r.IsApplicable(api.MustParseVersion("1.2.3")).Ok())
	assert.False(t, r.IsApplicable(api.MustParseVersion("1.2.4")).Ok())
}

func TestVersionRangeComparator(t *testing.T) {
	r, err := api.ParseVersionRange(">=1.0.0")
	require.NoError(t, err)
	assert.True(t, r.IsApplicable(api.MustParseVersion("1.5.0")).Ok())
	assert.False(t, r.IsApplicable(api.MustParseVersion("0.9.0")).Ok())
}

func TestIntersectRangesDetectsConflict(t *testing.T) {
	a, err := api.ParseVersionRange(">=2")
	require.NoError(t, err)
	b, err := api.ParseVersionRange("<2")
	require.NoError(t, err)

	_, ok := api.IntersectRanges(a, b)
	assert.False(t, ok)
}

func TestIntersectRangesOverlap(t *testing.T) {
	a, err := api.ParseVersionRange(">=1")
	require.NoError(t, err)
	b, err := api.ParseVersionRange("<5")
	require.NoError(t, err)

	merged, ok := api.IntersectRanges(a, b)
	require.True(t, ok)
	assert.True(t, merged.IsApplicable(api.MustParseVersion("2.0.0")).Ok())
	assert.False(t, merged.IsApplicable(api.MustParseVersion("6.0.0")).Ok())
}

func TestPinExprRender(t *testing.T) {
	expr, err := api.ParsePinExpr("built against {{dep.version}} build {{dep.build}}")
	require.NoError(t, err)

	depBuild := api.NewOptionMap().Digest()
	resolved := map[api.Name]api.Ident{
		"dep": api.NewIdent("dep", api.MustParseVersion("1.0.0")).WithBuild(depBuild),
	}
	out, err := expr.Render(resolved)
	require.NoError(t, err)
	assert.Equal(t, "built against 1.0.0 build "+depBuild.String(), out)
}

func TestSpecResolveAllOptionsAppliesDefaults(t *testing.T) {
	spec := api.Spec{
		Pkg: api.NewIdent("mylib", api.MustParseVersion("1.0.0")),
		Build: api.BuildSpec{
			Options: []api.Option{
				api.VarOpt{Name: "debug", DefaultVal: "off", Choices: []string{"on", "off"}},
			},
		},
	}

	given := api.NewOptionMap()
	given.Set("debug", "on")
	resolved, err := spec.ResolveAllOptions(given)
	require.NoError(t, err)
	v, ok := resolved.Get("debug")
	require.True(t, ok)
	assert.Equal(t, "on", v)

	resolved2, err := spec.ResolveAllOptions(api.NewOptionMap())
	require.NoError(t, err)
	v2, _ := resolved2.Get("debug")
	assert.Equal(t, "off", v2)
}

func TestSpecResolveAllOptionsRejectsInvalidChoice(t *testing.T) {
	spec := api.Spec{
		Build: api.BuildSpec{
			Options: []api.Option{
				api.VarOpt{Name: "debug", DefaultVal: "off", Choices: []string{"on", "off"}},
			},
		},
	}
	given := api.NewOptionMap()
	given.Set("debug", "maybe")
	_, err := spec.ResolveAllOptions(given)
	require.Error(t, err)
}
