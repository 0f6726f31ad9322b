// Package naming keeps an object's machine identifier and its human-facing
// label in sync, sanitizing requested names and resolving collisions within
// a flat scope by numeric suffix search.
package naming

import (
	"strconv"
	"strings"
)

// Identifier is a scope-unique machine name such as "Chair" or "Chair_5".
// The textual form is authoritative.
type Identifier string

// Scope names the flat namespace an identifier must be unique in.
type Scope string

// String returns the textual form of the identifier.
func (id Identifier) String() string { return string(id) }

// IsZero reports whether the identifier is empty.
func (id Identifier) IsZero() bool { return id == "" }

// Split separates a trailing numeric suffix from the base.
//
// A suffix is "_<digits>" following a non-empty base, where the digits carry
// no leading zero (except the single digit "0") and fit an int.
//
// Postcondition: ok is false when no suffix is present; base is then the
// whole identifier and number is 0.
func (id Identifier) Split() (base string, number int, ok bool) {
	s := string(id)
	idx := strings.LastIndexByte(s, '_')
	if idx <= 0 || idx == len(s)-1 {
		return s, 0, false
	}
	digits := s[idx+1:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return s, 0, false
		}
	}
	if len(digits) > 1 && digits[0] == '0' {
		return s, 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return s, 0, false
	}
	return s[:idx], n, true
}

// WithNumber returns the identifier's base with suffix n appended,
// replacing any existing suffix.
//
// Precondition: n >= 0.
func (id Identifier) WithNumber(n int) Identifier {
	base, _, _ := id.Split()
	return Identifier(base + "_" + strconv.Itoa(n))
}

// Identity is the synchronized identifier/label pair of one object.
type Identity struct {
	ID    Identifier
	Label string
}

// Synced reports whether the label textually equals the identifier.
func (i Identity) Synced() bool {
	return i.Label == i.ID.String()
}
