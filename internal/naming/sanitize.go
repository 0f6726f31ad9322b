package naming

import (
	"strings"
)

// Sanitizer strips illegal characters from candidate names.
// A Sanitizer is immutable and safe for concurrent use.
type Sanitizer struct {
	illegal  map[rune]struct{}
	fallback Identifier
	none     string
}

// NewSanitizer builds a Sanitizer for the given policy.
//
// Precondition: policy.Validate() returns nil.
func NewSanitizer(policy Policy) *Sanitizer {
	illegal := make(map[rune]struct{}, len(policy.IllegalCharacters))
	for _, r := range policy.IllegalCharacters {
		illegal[r] = struct{}{}
	}
	return &Sanitizer{
		illegal:  illegal,
		fallback: Identifier(policy.FallbackName),
		none:     policy.NoneName,
	}
}

var defaultSanitizer = NewSanitizer(DefaultPolicy())

// Sanitize removes every character of DefaultIllegalCharacters from raw.
func Sanitize(raw string) string {
	return defaultSanitizer.Sanitize(raw)
}

// Sanitize removes every illegal character from raw, preserving the order
// of the rest.
//
// Postcondition: the result contains no illegal character, and
// Sanitize(Sanitize(s)) == Sanitize(s).
func (s *Sanitizer) Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if _, bad := s.illegal[r]; bad {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Candidate sanitizes raw and substitutes the fallback name for the none
// token.
//
// Postcondition: Returns ("", false) when nothing survives sanitization;
// otherwise a non-empty identifier that is never the none token.
func (s *Sanitizer) Candidate(raw string) (Identifier, bool) {
	clean := s.Sanitize(raw)
	if clean == "" {
		return "", false
	}
	if strings.EqualFold(clean, s.none) {
		return s.fallback, true
	}
	return Identifier(clean), true
}
