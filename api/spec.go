package api

import "strings"

// SourceSpec describes where a package's source is collected from. Exact
// fetch mechanics (VCS checkout, tarball download, ...) are delegated to an
// external collaborator; the core only needs a filesystem path to hand to
// the build script.
type SourceSpec struct {
	// Path is the source directory, relative to the spec file, that gets
	// copied into the SOURCE package's data path. "." is the default.
	Path string
}

// BuildSpec holds a package's build-time options and its build script.
type BuildSpec struct {
	Options []Option
	Script  string
}

// InstallSpec holds a package's install-time requirements and any
// sub-packages it contributes as EMBEDDED builds.
type InstallSpec struct {
	Requirements []Request
	Embedded     []Spec
}

// Spec is a package specification.
type Spec struct {
	Pkg     Ident
	Build   BuildSpec
	Sources SourceSpec
	Install InstallSpec
	Pins    []PinExpr
}

// Clone returns a deep-enough copy for solver/builder mutation: Options,
// Requirements and Pins slices are copied, so resolving one Spec's options
// never mutates a sibling candidate drawn from the same repository.
func (s Spec) Clone() Spec {
	out := s
	out.Build.Options = append([]Option(nil), s.Build.Options...)
	out.Install.Requirements = append([]Request(nil), s.Install.Requirements...)
	out.Install.Embedded = append([]Spec(nil), s.Install.Embedded...)
	out.Pins = append([]PinExpr(nil), s.Pins...)
	return out
}

// ResolveAllOptions returns the full option assignment for this spec: every
// declared Option gets a value, taking it from given when present, else
// falling back to the option's declared default. A value that fails the
// option's Validate is returned as an error.
func (s Spec) ResolveAllOptions(given OptionMap) (OptionMap, error) {
	out := NewOptionMap()
	for _, opt := range s.Build.Options {
		name := opt.OptName()
		value, has := given.Get(name)
		if !has {
			value = opt.Default()
		}
		if err := opt.Validate(value); err != nil {
			return OptionMap{}, err
		}
		out.Set(name, value)
	}
	return out, nil
}

// RenderAllPins rewrites this spec's pin expressions against the resolved
// versions of solutionSpecs, in place, replacing each pin's raw template
// text wherever it appears in the build script.
func (s *Spec) RenderAllPins(solutionSpecs []Spec) error {
	if len(s.Pins) == 0 {
		return nil
	}

	resolved := make(map[Name]Ident, len(solutionSpecs))
	for _, sp := range solutionSpecs {
		resolved[sp.Pkg.Name] = sp.Pkg
	}

	script := s.Build.Script
	for _, pin := range s.Pins {
		rendered, err := pin.Render(resolved)
		if err != nil {
			return err
		}
		script = strings.ReplaceAll(script, pin.Raw, rendered)
	}
	s.Build.Script = script
	return nil
}

// PkgOpts returns the subset of Build.Options that are package
// dependencies, in declaration order.
func (s Spec) PkgOpts() []PkgOpt {
	var out []PkgOpt
	for _, opt := range s.Build.Options {
		if po, ok := opt.(PkgOpt); ok {
			out = append(out, po)
		}
	}
	return out
}
