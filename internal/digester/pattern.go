package digester

import (
	"strings"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
)

// Pattern is the nesting path of a TLV: the tag ids of every open TLV from
// the outermost down to the TLV itself.
type Pattern []ber.TagID

// P builds a pattern from tags.
func P(tags ...ber.Tag) Pattern {
	p := make(Pattern, len(tags))
	for i, t := range tags {
		p[i] = t.ID()
	}
	return p
}

// Append returns a new pattern extended by tags. p is left unchanged.
func (p Pattern) Append(tags ...ber.Tag) Pattern {
	out := make(Pattern, len(p), len(p)+len(tags))
	copy(out, p)
	for _, t := range tags {
		out = append(out, t.ID())
	}
	return out
}

// Equal reports whether both patterns have the same length and elements.
func (p Pattern) Equal(o Pattern) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String joins the tags of the pattern with "/".
func (p Pattern) String() string {
	if len(p) == 0 {
		return "(root)"
	}
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = "<" + id.String() + ">"
	}
	return strings.Join(parts, "/")
}
