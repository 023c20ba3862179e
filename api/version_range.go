package api

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// VersionRangeSep separates comma-joined sub-ranges in a Filter's textual
// form.
const VersionRangeSep = ","

// VersionRange is a predicate over versions.
type VersionRange interface {
	fmt.Stringer
	// IsApplicable reports whether v satisfies the range.
	IsApplicable(v Version) Compatibility
	// bounds returns a best-effort lower/upper estimate used only to
	// detect empty intersections cheaply; a nil bound is unconstrained on
	// that side. IsApplicable, not bounds, is the authority for any single
	// version check.
	bounds() (lower, upper *bound)
}

// bound is one edge of a best-effort range estimate.
type bound struct {
	v         Version
	inclusive bool
}

// toSemver renders v in the dotted form Masterminds/semver expects,
// dropping the post-release tag (semver has no post-release concept, so a
// semverRange treats a post-release version like its base version;
// exactRange and the bounds estimates use Version.Compare, which does
// order post-releases).
func toSemver(v Version) (*semver.Version, error) {
	s := v.String()
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	return semver.NewVersion(s)
}

// semverRange wraps a Masterminds/semver constraint string: caret, tilde,
// comparator and wildcard ranges are all expressed this way.
type semverRange struct {
	raw string
	c   *semver.Constraints
}

// parseSemverRange parses a single (non-comma) range clause.
func parseSemverRange(raw string) (VersionRange, error) {
	c, err := semver.NewConstraint(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid version range %q: %w", raw, err)
	}
	return semverRange{raw: raw, c: c}, nil
}

func (r semverRange) String() string { return r.raw }

func (r semverRange) IsApplicable(v Version) Compatibility {
	sv, err := toSemver(v)
	if err != nil {
		return Incompatible("version %s is not semver-comparable: %s", v, err)
	}
	ok, errs := r.c.Validate(sv)
	if ok {
		return COMPATIBLE
	}
	if len(errs) > 0 {
		return Incompatible("%s does not satisfy %s: %s", v, r.raw, errs[0])
	}
	return Incompatible("%s does not satisfy %s", v, r.raw)
}

// simpleComparatorExpr matches a single ">=", "<=", ">", "<" or "="
// comparator followed by a dotted version, e.g. ">=1.2.3". Masterminds/
// semver doesn't expose its parsed comparator internals, so a compound
// constraint string (carets, tildes, space-separated ranges) falls
// through to an unconstrained bound below; that only weakens the cheap
// conflict pre-check, never correctness, since IsApplicable is always the
// final authority.
var simpleComparatorExpr = regexp.MustCompile(`^(>=|<=|>|<|=)?\s*([0-9][0-9.]*)$`)

func (r semverRange) bounds() (lower, upper *bound) {
	m := simpleComparatorExpr.FindStringSubmatch(strings.TrimSpace(r.raw))
	if m == nil {
		return nil, nil
	}
	v, err := ParseVersion(m[2])
	if err != nil {
		return nil, nil
	}
	switch m[1] {
	case ">=", "":
		return &bound{v: v, inclusive: true}, nil
	case ">":
		return &bound{v: v, inclusive: false}, nil
	case "<=":
		return nil, &bound{v: v, inclusive: true}
	case "<":
		return nil, &bound{v: v, inclusive: false}
	case "=":
		return &bound{v: v, inclusive: true}, &bound{v: v, inclusive: true}
	default:
		return nil, nil
	}
}

// exactRange matches exactly one version.
type exactRange struct{ v Version }

func (r exactRange) String() string { return "=" + r.v.String() }

func (r exactRange) bounds() (lo, hi *bound) {
	b := &bound{v: r.v, inclusive: true}
	return b, b
}

func (r exactRange) IsApplicable(v Version) Compatibility {
	if v.Equal(r.v) {
		return COMPATIBLE
	}
	return Incompatible("%s does not equal required version %s", v, r.v)
}

// wildcardRange matches every version (the "*" range).
type wildcardRange struct{}

func (wildcardRange) String() string                    { return "*" }
func (wildcardRange) bounds() (lo, hi *bound)            { return nil, nil }
func (wildcardRange) IsApplicable(Version) Compatibility { return COMPATIBLE }

// Filter is the intersection of sub-ranges, built from a comma-separated
// parse.
type Filter struct {
	Ranges []VersionRange
}

// ParseVersionRange parses a comma-separated list of sub-ranges into a
// Filter. A single sub-range is returned as itself, not wrapped in a
// Filter; an empty string or a lone "*" parses to a wildcard range.
func ParseVersionRange(s string) (VersionRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return wildcardRange{}, nil
	}

	parts := strings.Split(s, VersionRangeSep)
	ranges := make([]VersionRange, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "=") {
			v, err := ParseVersion(strings.TrimSpace(p[1:]))
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, exactRange{v: v})
			continue
		}
		r, err := parseSemverRange(p)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}

	if len(ranges) == 1 {
		return ranges[0], nil
	}
	return Filter{Ranges: ranges}, nil
}

func (f Filter) String() string {
	parts := make([]string, len(f.Ranges))
	for i, r := range f.Ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, VersionRangeSep)
}

func (f Filter) IsApplicable(v Version) Compatibility {
	for _, r := range f.Ranges {
		if c := r.IsApplicable(v); !c.Ok() {
			return c
		}
	}
	return COMPATIBLE
}

func (f Filter) bounds() (lo, hi *bound) {
	for _, r := range f.Ranges {
		rl, rh := r.bounds()
		if rl != nil && (lo == nil || rl.v.Compare(lo.v) > 0 || (rl.v.Equal(lo.v) && !rl.inclusive)) {
			lo = rl
		}
		if rh != nil && (hi == nil || rh.v.Compare(hi.v) < 0 || (rh.v.Equal(hi.v) && !rh.inclusive)) {
			hi = rh
		}
	}
	return lo, hi
}

// IntersectRanges combines a and b into a single range whose IsApplicable
// requires both. If the resulting range is unsatisfiable by any version
// (as far as each side's cheap bounds() estimate can tell), ok is false.
func IntersectRanges(a, b VersionRange) (r VersionRange, ok bool) {
	merged := flattenFilter(a)
	merged = append(merged, flattenFilter(b)...)

	f := Filter{Ranges: merged}
	lo, hi := f.bounds()
	if lo != nil && hi != nil {
		cmp := lo.v.Compare(hi.v)
		if cmp > 0 || (cmp == 0 && !(lo.inclusive && hi.inclusive)) {
			return f, false
		}
	}
	if len(merged) == 1 {
		return merged[0], true
	}
	return f, true
}

func flattenFilter(r VersionRange) []VersionRange {
	if f, ok := r.(Filter); ok {
		return append([]VersionRange(nil), f.Ranges...)
	}
	return []VersionRange{r}
}
