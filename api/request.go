package api

import "fmt"

// PreReleasePolicy controls whether pre-release versions are considered.
type PreReleasePolicy int

const (
	// ExcludeAll skips every version carrying a pre-release tag.
	ExcludeAll PreReleasePolicy = iota
	// IncludeAll considers pre-release versions like any other.
	IncludeAll
)

// InclusionPolicy controls whether a request forces a new resolution.
type InclusionPolicy int

const (
	// Always requires the named package to appear in the solution.
	Always InclusionPolicy = iota
	// IfAlreadyPresent only narrows an existing resolution; it never by
	// itself causes a package to be introduced.
	IfAlreadyPresent
)

// RangeIdent names a package together with the range of versions (and,
// optionally, a specific build) that satisfy this request.
type RangeIdent struct {
	Name  Name
	Range VersionRange
	Build *Build
}

func (ri RangeIdent) String() string {
	s := string(ri.Name) + "/" + ri.Range.String()
	if ri.Build != nil {
		s += "/" + ri.Build.String()
	}
	return s
}

// Request declares that some package must appear in the solution.
type Request struct {
	Pkg        RangeIdent
	PreRelease PreReleasePolicy
	Inclusion  InclusionPolicy
	// Pin, when non-empty, names an unresolved pin template that must be
	// rendered before this request can be meaningfully solved.
	Pin string
}

func (r Request) String() string {
	return fmt.Sprintf("%s", r.Pkg)
}

// ParseRequest parses the CLI/spec shorthand for a package request: a bare
// name ("mylib", matching any version, pre-releases excluded) or a name
// immediately followed by a version range ("mylib>=1.0.0", "mylib=2.3.1").
// The returned Request always has Always inclusion and ExcludeAll
// pre-release policy; callers needing something else adjust the result.
func ParseRequest(s string) (Request, error) {
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '/' || s[i] == '=' || s[i] == '<' || s[i] == '>' || s[i] == '*':
			name, err := ParseName(s[:i])
			if err != nil {
				return Request{}, err
			}
			rng, err := ParseVersionRange(s[i:])
			if err != nil {
				return Request{}, err
			}
			return Request{
				Pkg:        RangeIdent{Name: name, Range: rng},
				PreRelease: ExcludeAll,
				Inclusion:  Always,
			}, nil
		}
	}
	name, err := ParseName(s)
	if err != nil {
		return Request{}, err
	}
	rng, err := ParseVersionRange("*")
	if err != nil {
		return Request{}, err
	}
	return Request{
		Pkg:        RangeIdent{Name: name, Range: rng},
		PreRelease: ExcludeAll,
		Inclusion:  Always,
	}, nil
}

// IsApplicable reports the Request's Compatibility verdict for an Ident,
// honoring both the version range and any build constraint.
func (r Request) IsApplicable(id Ident) Compatibility {
	if r.PreRelease == ExcludeAll && id.Version.IsPreRelease() {
		return Incompatible("%s is a pre-release version and pre-releases are excluded", id.Version)
	}
	if c := r.Pkg.Range.IsApplicable(id.Version); !c.Ok() {
		return c
	}
	if r.Pkg.Build != nil {
		if id.Build == nil || !id.Build.Equal(*r.Pkg.Build) {
			return Incompatible("%s does not have required build %s", id, r.Pkg.Build)
		}
	}
	return COMPATIBLE
}
