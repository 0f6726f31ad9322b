package naming

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultIllegalCharacters are the characters a host object name may never
// contain.
const DefaultIllegalCharacters = "\"' ,/.:|&!~\n\r\t@#(){}[]=;^%$`"

// DefaultFallbackName replaces names that sanitize to the none token.
const DefaultFallbackName = "GeneratedName"

// DefaultNoneName is the host's textual form of "no identifier".
const DefaultNoneName = "None"

// Policy is the immutable naming configuration handed to a Sanitizer or
// Synchronizer.
type Policy struct {
	// IllegalCharacters lists every rune stripped by sanitization.
	IllegalCharacters string
	// FallbackName is substituted when a name sanitizes to NoneName.
	FallbackName string
	// NoneName is the reserved token the host uses for "unset".
	NoneName string
}

// DefaultPolicy returns the host's stock naming rules.
func DefaultPolicy() Policy {
	return Policy{
		IllegalCharacters: DefaultIllegalCharacters,
		FallbackName:      DefaultFallbackName,
		NoneName:          DefaultNoneName,
	}
}

// Validate checks the policy invariants.
//
// Postcondition: Returns nil if the policy is usable, or an error listing all violations.
func (p Policy) Validate() error {
	var errs []string
	if p.NoneName == "" {
		errs = append(errs, "none name must not be empty")
	}
	if p.FallbackName == "" {
		errs = append(errs, "fallback name must not be empty")
	}
	if strings.ContainsAny(p.FallbackName, p.IllegalCharacters) {
		errs = append(errs, fmt.Sprintf("fallback name %q contains an illegal character", p.FallbackName))
	}
	if p.NoneName != "" && strings.EqualFold(p.FallbackName, p.NoneName) {
		errs = append(errs, fmt.Sprintf("fallback name %q must differ from the none name", p.FallbackName))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
