package api

import "fmt"

// OptionKind distinguishes the two Option variants.
type OptionKind int

const (
	// KindVarOpt is a plain string choice.
	KindVarOpt OptionKind = iota
	// KindPkgOpt is a dependency declaration whose resolved value also
	// contributes to the owning package's option digest.
	KindPkgOpt
)

// Option is a build-option declaration.
type Option interface {
	OptName() Name
	OptKind() OptionKind
	// Default returns the value to use when the caller supplies none.
	Default() string
	// Validate checks a caller-supplied value, returning an error if it is
	// not one of the option's allowed values (VarOpt only; PkgOpt accepts
	// any non-empty version range text).
	Validate(value string) error
}

// VarOpt is a string-choice build option.
type VarOpt struct {
	Name        Name
	DefaultVal  string
	Choices     []string
}

func (o VarOpt) OptName() Name        { return o.Name }
func (o VarOpt) OptKind() OptionKind  { return KindVarOpt }
func (o VarOpt) Default() string      { return o.DefaultVal }

func (o VarOpt) Validate(value string) error {
	if len(o.Choices) == 0 {
		return nil
	}
	for _, c := range o.Choices {
		if c == value {
			return nil
		}
	}
	return fmt.Errorf("invalid value %q for option %s: must be one of %v", value, o.Name, o.Choices)
}

// PkgOpt is a build-time dependency declaration. Its current value (a
// version range string) can be converted to a Request via ToRequest.
type PkgOpt struct {
	Pkg        Name
	DefaultVal string
}

func (o PkgOpt) OptName() Name       { return o.Pkg }
func (o PkgOpt) OptKind() OptionKind { return KindPkgOpt }
func (o PkgOpt) Default() string     { return o.DefaultVal }

func (o PkgOpt) Validate(value string) error {
	if value == "" {
		return fmt.Errorf("empty version range for package option %s", o.Pkg)
	}
	_, err := ParseVersionRange(value)
	return err
}

// ToRequest converts this PkgOpt to a Request using the given current
// value as the version range, falling back to the option's default (or a
// wildcard) when value is empty.
func (o PkgOpt) ToRequest(value string) (Request, error) {
	if value == "" {
		value = o.DefaultVal
	}
	if value == "" {
		value = "*"
	}
	rng, err := ParseVersionRange(value)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Pkg: RangeIdent{
			Name:  o.Pkg,
			Range: rng,
		},
		PreRelease: ExcludeAll,
		Inclusion:  Always,
	}, nil
}
