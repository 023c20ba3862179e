package api

import (
	"fmt"
	"strings"
)

// PinSegmentKind distinguishes a PinExpr's literal text from its
// substitution markers.
type PinSegmentKind int

const (
	// PinLiteral is a run of ordinary text, copied through unchanged.
	PinLiteral PinSegmentKind = iota
	// PinVersionRef substitutes the resolved version of another package.
	PinVersionRef
	// PinBuildRef substitutes the resolved build of another package.
	PinBuildRef
)

// PinSegment is one piece of a parsed PinExpr.
type PinSegment struct {
	Kind    PinSegmentKind
	Literal string
	RefName Name
}

// PinExpr is a pin expression, kept as a structured AST (not a bare
// string) so that rendering is reproducible: a pin survives as an inert
// template until a concrete solution is available to render it against.
type PinExpr struct {
	Raw      string
	Segments []PinSegment
}

// ParsePinExpr parses a pin template of the form
// "...{{name.version}}...{{name.build}}...".
func ParsePinExpr(raw string) (PinExpr, error) {
	expr := PinExpr{Raw: raw}
	rest := raw
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			if rest != "" {
				expr.Segments = append(expr.Segments, PinSegment{Kind: PinLiteral, Literal: rest})
			}
			break
		}
		if start > 0 {
			expr.Segments = append(expr.Segments, PinSegment{Kind: PinLiteral, Literal: rest[:start]})
		}
		rest = rest[start+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return PinExpr{}, fmt.Errorf("unterminated pin reference in %q", raw)
		}
		ref := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		dot := strings.LastIndexByte(ref, '.')
		if dot < 0 {
			return PinExpr{}, fmt.Errorf("malformed pin reference %q: expected name.version or name.build", ref)
		}
		name, field := ref[:dot], ref[dot+1:]
		n, err := ParseName(name)
		if err != nil {
			return PinExpr{}, fmt.Errorf("malformed pin reference %q: %w", ref, err)
		}

		switch field {
		case "version":
			expr.Segments = append(expr.Segments, PinSegment{Kind: PinVersionRef, RefName: n})
		case "build":
			expr.Segments = append(expr.Segments, PinSegment{Kind: PinBuildRef, RefName: n})
		default:
			return PinExpr{}, fmt.Errorf("malformed pin reference %q: unknown field %q", ref, field)
		}
	}
	return expr, nil
}

// Render substitutes each segment's reference against resolved, producing
// the final text.
func (p PinExpr) Render(resolved map[Name]Ident) (string, error) {
	var buf strings.Builder
	for _, seg := range p.Segments {
		switch seg.Kind {
		case PinLiteral:
			buf.WriteString(seg.Literal)
		case PinVersionRef:
			id, ok := resolved[seg.RefName]
			if !ok {
				return "", fmt.Errorf("pin references unresolved package %s", seg.RefName)
			}
			buf.WriteString(id.Version.String())
		case PinBuildRef:
			id, ok := resolved[seg.RefName]
			if !ok {
				return "", fmt.Errorf("pin references unresolved package %s", seg.RefName)
			}
			if id.Build == nil {
				return "", fmt.Errorf("pin references build of %s, which has no resolved build", seg.RefName)
			}
			buf.WriteString(id.Build.String())
		}
	}
	return buf.String(), nil
}
