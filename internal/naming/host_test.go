package naming_test

import (
	"context"
	"errors"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

type fakeObject struct {
	ident naming.Identity
}

func (o *fakeObject) Identity() naming.Identity { return o.ident }

// alienObject belongs to no host.
type alienObject struct{}

func (alienObject) Identity() naming.Identity { return naming.Identity{ID: "alien", Label: "alien"} }

// mapHost is a mapping-backed naming.Host. Commits are not concurrent in
// these tests, so no locking is needed.
type mapHost struct {
	scopes map[naming.Scope]map[naming.Identifier]*fakeObject
	probes int

	// refuse, when set, vetoes candidates before the collision check.
	refuse func(candidate naming.Identifier) bool
	// adjust, when set, rewrites accepted candidates.
	adjust func(candidate naming.Identifier) naming.Identifier
	// conflicts makes the next n commits fail with naming.ErrConflict.
	conflicts int
	// lookupErr is returned by Exists when set.
	lookupErr error
	// labelErr is returned by SetLabel when set.
	labelErr error
}

func newMapHost() *mapHost {
	return &mapHost{scopes: make(map[naming.Scope]map[naming.Identifier]*fakeObject)}
}

// add registers a synced object named id in scope.
func (h *mapHost) add(scope naming.Scope, id naming.Identifier) *fakeObject {
	obj := &fakeObject{ident: naming.Identity{ID: id, Label: id.String()}}
	if h.scopes[scope] == nil {
		h.scopes[scope] = make(map[naming.Identifier]*fakeObject)
	}
	h.scopes[scope][id] = obj
	return obj
}

func (h *mapHost) Exists(_ context.Context, scope naming.Scope, id naming.Identifier) (bool, error) {
	h.probes++
	if h.lookupErr != nil {
		return false, h.lookupErr
	}
	_, ok := h.scopes[scope][id]
	return ok, nil
}

func (h *mapHost) TryCommitIdentifier(_ context.Context, obj naming.Object, scope naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error) {
	fo, ok := obj.(*fakeObject)
	if !ok {
		return "", false, errors.New("foreign object")
	}
	if h.conflicts > 0 {
		h.conflicts--
		return "", false, naming.ErrConflict
	}
	if h.refuse != nil && h.refuse(candidate) {
		return "", false, nil
	}
	if h.adjust != nil {
		candidate = h.adjust(candidate)
	}
	if other, taken := h.scopes[scope][candidate]; taken && other != fo {
		return "", false, nil
	}
	if h.scopes[scope] == nil {
		h.scopes[scope] = make(map[naming.Identifier]*fakeObject)
	}
	delete(h.scopes[scope], fo.ident.ID)
	fo.ident.ID = candidate
	h.scopes[scope][candidate] = fo
	return candidate, true, nil
}

func (h *mapHost) SetLabel(_ context.Context, obj naming.Object, text string) error {
	fo, ok := obj.(*fakeObject)
	if !ok {
		return errors.New("foreign object")
	}
	if h.labelErr != nil {
		return h.labelErr
	}
	fo.ident.Label = text
	return nil
}

// countRecorder tallies measurements.
type countRecorder struct {
	outcomes map[naming.Outcome]int
	probes   []int
}

func newCountRecorder() *countRecorder {
	return &countRecorder{outcomes: make(map[naming.Outcome]int)}
}

func (r *countRecorder) ObserveRename(o naming.Outcome) { r.outcomes[o]++ }
func (r *countRecorder) ObserveProbes(n int)            { r.probes = append(r.probes, n) }
