package api

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
)

// BuildKind distinguishes the three Build variants.
type BuildKind uint8

const (
	// KindSource marks an unbuilt source package.
	KindSource BuildKind = iota
	// KindEmbedded marks a package contributed wholesale by another
	// package's build; it has no standalone build identity.
	KindEmbedded
	// KindDigest marks a built artifact, identified by the content
	// digest of the OptionMap that produced it.
	KindDigest
)

// digestSize is the fixed width, in encoded characters, of a DIGEST build's
// textual form.
const digestSize = 8

// SRC is the sentinel Build for an unbuilt source package.
var SRC = Build{kind: KindSource}

// EMBEDDED is the sentinel Build for a package contributed by another
// package's build.
var EMBEDDED = Build{kind: KindEmbedded}

// Build is one of SOURCE, EMBEDDED, or a content DIGEST.
type Build struct {
	kind   BuildKind
	digest string
}

// InvalidBuildError indicates a string does not meet the Build grammar.
type InvalidBuildError struct {
	Value string
}

func (e *InvalidBuildError) Error() string {
	return fmt.Sprintf("invalid build: %q", e.Value)
}

// NewDigestBuild constructs a DIGEST build from raw option-digest bytes.
func NewDigestBuild(raw []byte) Build {
	sum := sha256.Sum256(raw)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return Build{kind: KindDigest, digest: enc[:digestSize]}
}

// ParseBuild parses the textual form of a Build: "src", "embedded", or an
// 8-character digest.
func ParseBuild(s string) (Build, error) {
	switch s {
	case "src", "SRC":
		return SRC, nil
	case "embedded", "EMBEDDED":
		return EMBEDDED, nil
	}
	if len(s) != digestSize {
		return Build{}, &InvalidBuildError{Value: s}
	}
	for _, r := range s {
		if !((r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7')) {
			return Build{}, &InvalidBuildError{Value: s}
		}
	}
	return Build{kind: KindDigest, digest: s}, nil
}

// Kind reports which Build variant this is.
func (b Build) Kind() BuildKind { return b.kind }

// IsSource reports whether b is the SOURCE sentinel.
func (b Build) IsSource() bool { return b.kind == KindSource }

// IsEmbedded reports whether b is the EMBEDDED sentinel.
func (b Build) IsEmbedded() bool { return b.kind == KindEmbedded }

// IsDigest reports whether b carries a content digest.
func (b Build) IsDigest() bool { return b.kind == KindDigest }

// Equal compares by variant and, for DIGEST builds, by digest bytes.
func (b Build) Equal(o Build) bool {
	if b.kind != o.kind {
		return false
	}
	return b.kind != KindDigest || b.digest == o.digest
}

func (b Build) String() string {
	switch b.kind {
	case KindSource:
		return "src"
	case KindEmbedded:
		return "embedded"
	default:
		return b.digest
	}
}
