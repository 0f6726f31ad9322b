package naming

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrSuffixExhausted is returned when the suffix search overflows int.
var ErrSuffixExhausted = errors.New("naming: numeric suffix space exhausted")

// RegistryLookup answers whether an identifier is taken in a scope.
type RegistryLookup interface {
	// Exists reports whether an object named id lives in scope.
	Exists(ctx context.Context, scope Scope, id Identifier) (bool, error)
}

// Resolver searches numeric-suffix variants of a base identifier for one
// that is free in a scope. It reserves nothing.
type Resolver struct {
	lookup RegistryLookup
}

// NewResolver creates a Resolver backed by lookup.
//
// Precondition: lookup must be non-nil.
func NewResolver(lookup RegistryLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// FindFreeIdentifier is the functional form of (*Resolver).FindFreeIdentifier.
func FindFreeIdentifier(ctx context.Context, base Identifier, scope Scope, lookup RegistryLookup) (Identifier, error) {
	return NewResolver(lookup).FindFreeIdentifier(ctx, base, scope)
}

// FindFreeIdentifier returns base if it is free in scope, otherwise the
// first free variant reached by incrementing base's numeric suffix
// (starting from 0 when base has none).
//
// Precondition: base is sanitized and non-empty.
// Postcondition: at the moment of return the identifier was not taken in
// scope; at most |scope|+1 probes were made.
func (r *Resolver) FindFreeIdentifier(ctx context.Context, base Identifier, scope Scope) (Identifier, error) {
	id, _, err := r.find(ctx, base, scope)
	return id, err
}

func (r *Resolver) find(ctx context.Context, base Identifier, scope Scope) (Identifier, int, error) {
	candidate := base
	_, number, _ := base.Split()
	probes := 0
	for {
		probes++
		taken, err := r.lookup.Exists(ctx, scope, candidate)
		if err != nil {
			return "", probes, fmt.Errorf("probing %q in scope %q: %w", candidate, scope, err)
		}
		if !taken {
			return candidate, probes, nil
		}
		if number == math.MaxInt {
			return "", probes, ErrSuffixExhausted
		}
		number++
		candidate = base.WithNumber(number)
	}
}
