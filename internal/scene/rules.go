package scene

import (
	"strings"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

// Rule is a host validity check applied to every identifier the Manager
// assigns, beyond plain collision.
type Rule interface {
	// Check returns the identifier to assign (possibly adjusted) and false
	// when the candidate must be refused.
	Check(level naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error)
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(level naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error)

// Check calls f.
func (f RuleFunc) Check(level naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error) {
	return f(level, candidate)
}

// ReservedPrefixes refuses identifiers starting with any of its prefixes.
type ReservedPrefixes []string

// Check refuses candidate when it carries a reserved prefix.
func (r ReservedPrefixes) Check(_ naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error) {
	for _, p := range r {
		if strings.HasPrefix(candidate.String(), p) {
			return "", false, nil
		}
	}
	return candidate, true, nil
}
