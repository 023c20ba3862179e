package storage

import (
	"fmt"

	"github.com/pelletier/go-toml"

	"github.com/ilpvfx/spk/api"
)

// specFile is the on-disk TOML mirror of api.Spec. Spec's Option and
// VersionRange fields are interfaces, which go-toml cannot marshal
// directly, so a LocalRepository round-trips through this flattened shape
// instead.
type specFile struct {
	Pkg     string       `toml:"pkg"`
	Sources string       `toml:"sources,omitempty"`
	Script  string       `toml:"script,omitempty"`
	Options []optionFile `toml:"options,omitempty"`
	Install []reqFile    `toml:"install,omitempty"`
	Embed   []specFile   `toml:"embedded,omitempty"`
	Pins    []string     `toml:"pins,omitempty"`
}

type optionFile struct {
	Kind    string   `toml:"kind"`
	Name    string   `toml:"name"`
	Default string   `toml:"default,omitempty"`
	Choices []string `toml:"choices,omitempty"`
}

type reqFile struct {
	Name       string `toml:"name"`
	Range      string `toml:"range"`
	Build      string `toml:"build,omitempty"`
	PreRelease string `toml:"prerelease,omitempty"`
	Inclusion  string `toml:"inclusion,omitempty"`
	Pin        string `toml:"pin,omitempty"`
}

func encodeSpec(s api.Spec) specFile {
	f := specFile{
		Pkg:     s.Pkg.String(),
		Sources: s.Sources.Path,
		Script:  s.Build.Script,
	}
	for _, opt := range s.Build.Options {
		switch o := opt.(type) {
		case api.VarOpt:
			f.Options = append(f.Options, optionFile{
				Kind:    "var",
				Name:    string(o.Name),
				Default: o.DefaultVal,
				Choices: append([]string(nil), o.Choices...),
			})
		case api.PkgOpt:
			f.Options = append(f.Options, optionFile{
				Kind:    "pkg",
				Name:    string(o.Pkg),
				Default: o.DefaultVal,
			})
		}
	}
	for _, req := range s.Install.Requirements {
		rf := reqFile{
			Name:  string(req.Pkg.Name),
			Range: req.Pkg.Range.String(),
			Pin:   req.Pin,
		}
		if req.Pkg.Build != nil {
			rf.Build = req.Pkg.Build.String()
		}
		if req.PreRelease == api.IncludeAll {
			rf.PreRelease = "include"
		}
		if req.Inclusion == api.IfAlreadyPresent {
			rf.Inclusion = "ifpresent"
		}
		f.Install = append(f.Install, rf)
	}
	for _, emb := range s.Install.Embedded {
		f.Embed = append(f.Embed, encodeSpec(emb))
	}
	for _, pin := range s.Pins {
		f.Pins = append(f.Pins, pin.Raw)
	}
	return f
}

func decodeSpec(f specFile) (api.Spec, error) {
	id, err := api.ParseIdent(f.Pkg)
	if err != nil {
		return api.Spec{}, fmt.Errorf("decode spec: %w", err)
	}
	s := api.Spec{
		Pkg:     id,
		Sources: api.SourceSpec{Path: f.Sources},
		Build:   api.BuildSpec{Script: f.Script},
	}

	for _, of := range f.Options {
		switch of.Kind {
		case "var":
			name, err := api.ParseName(of.Name)
			if err != nil {
				return api.Spec{}, err
			}
			s.Build.Options = append(s.Build.Options, api.VarOpt{
				Name:       name,
				DefaultVal: of.Default,
				Choices:    append([]string(nil), of.Choices...),
			})
		case "pkg":
			name, err := api.ParseName(of.Name)
			if err != nil {
				return api.Spec{}, err
			}
			s.Build.Options = append(s.Build.Options, api.PkgOpt{
				Pkg:        name,
				DefaultVal: of.Default,
			})
		default:
			return api.Spec{}, fmt.Errorf("decode spec %s: unknown option kind %q", f.Pkg, of.Kind)
		}
	}

	for _, rf := range f.Install {
		name, err := api.ParseName(rf.Name)
		if err != nil {
			return api.Spec{}, err
		}
		rng, err := api.ParseVersionRange(rf.Range)
		if err != nil {
			return api.Spec{}, err
		}
		req := api.Request{
			Pkg: api.RangeIdent{Name: name, Range: rng},
			Pin: rf.Pin,
		}
		if rf.Build != "" {
			b, err := api.ParseBuild(rf.Build)
			if err != nil {
				return api.Spec{}, err
			}
			req.Pkg.Build = &b
		}
		if rf.PreRelease == "include" {
			req.PreRelease = api.IncludeAll
		}
		if rf.Inclusion == "ifpresent" {
			req.Inclusion = api.IfAlreadyPresent
		}
		s.Install.Requirements = append(s.Install.Requirements, req)
	}

	for _, ef := range f.Embed {
		emb, err := decodeSpec(ef)
		if err != nil {
			return api.Spec{}, err
		}
		s.Install.Embedded = append(s.Install.Embedded, emb)
	}

	for _, raw := range f.Pins {
		pin, err := api.ParsePinExpr(raw)
		if err != nil {
			return api.Spec{}, err
		}
		s.Pins = append(s.Pins, pin)
	}

	return s, nil
}

// MarshalSpecTOML renders a Spec to its TOML on-disk form.
func MarshalSpecTOML(s api.Spec) ([]byte, error) {
	return toml.Marshal(encodeSpec(s))
}

// UnmarshalSpecTOML parses a Spec from its TOML on-disk form.
func UnmarshalSpecTOML(data []byte) (api.Spec, error) {
	var f specFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return api.Spec{}, err
	}
	return decodeSpec(f)
}
