package naming

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrPrecondition marks caller contract violations. These are programming
// errors and are never absorbed as a no-op.
var ErrPrecondition = errors.New("naming: precondition violated")

// ErrNilObject is returned when no object is passed to an operation.
var ErrNilObject = fmt.Errorf("%w: object must not be nil", ErrPrecondition)

// ErrInvalidScope is returned when the scope is empty.
var ErrInvalidScope = fmt.Errorf("%w: scope must not be empty", ErrPrecondition)

// ErrConflict may be returned by a Host commit that lost a race against a
// concurrent rename. Rename reports it as a refusal; RenameToFree retries.
var ErrConflict = errors.New("naming: identifier commit conflict")

// DefaultMaxAttempts bounds the search-then-commit retries of RenameToFree.
const DefaultMaxAttempts = 3

// Object is a host-owned object whose identity the Synchronizer maintains.
type Object interface {
	// Identity returns the object's current identifier and label.
	Identity() Identity
}

// Host is the host application surface the Synchronizer writes through.
type Host interface {
	RegistryLookup
	// TryCommitIdentifier atomically checks candidate against scope and the
	// host's own validity rules and, if usable, assigns it to obj.
	// It returns the committed identifier, which may differ from candidate,
	// and false when the host refuses.
	TryCommitIdentifier(ctx context.Context, obj Object, scope Scope, candidate Identifier) (Identifier, bool, error)
	// SetLabel unconditionally replaces obj's label.
	SetLabel(ctx context.Context, obj Object, text string) error
}

// Outcome classifies how a rename ended.
type Outcome int

// Rename outcomes. Only Renamed changes the object.
const (
	NoOp Outcome = iota
	Renamed
	Refused
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case NoOp:
		return "noop"
	case Renamed:
		return "renamed"
	case Refused:
		return "refused"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the identifier an object holds after a rename, with the outcome.
type Result struct {
	ID      Identifier
	Outcome Outcome
}

// Recorder receives naming measurements.
type Recorder interface {
	ObserveRename(outcome Outcome)
	ObserveProbes(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRename(Outcome) {}
func (nopRecorder) ObserveProbes(int)     {}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger used for outcome reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) { s.logger = logger }
}

// WithRecorder sets the measurement sink.
func WithRecorder(rec Recorder) Option {
	return func(s *Synchronizer) { s.recorder = rec }
}

// WithMaxAttempts sets how often RenameToFree re-runs its search after the
// host refuses the found identifier. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Synchronizer) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// Synchronizer is the single writer of object identifiers and labels.
// It holds no mutable state of its own; concurrency safety of renames is
// delegated to the Host's atomic commit.
type Synchronizer struct {
	sanitizer   *Sanitizer
	resolver    *Resolver
	host        Host
	logger      *zap.Logger
	recorder    Recorder
	maxAttempts int
}

// NewSynchronizer creates a Synchronizer applying policy through host.
//
// Precondition: policy.Validate() returns nil; host must be non-nil.
// Postcondition: Returns a ready Synchronizer.
func NewSynchronizer(policy Policy, host Host, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		sanitizer:   NewSanitizer(policy),
		resolver:    NewResolver(host),
		host:        host,
		logger:      zap.NewNop(),
		recorder:    nopRecorder{},
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sanitizer returns the sanitizer built from the synchronizer's policy.
func (s *Synchronizer) Sanitizer() *Sanitizer { return s.sanitizer }

// Rename sets obj's identifier to the sanitized form of requested and its
// label to the committed identifier.
//
// Names that sanitize to nothing, or to obj's current identifier, leave obj
// untouched (NoOp). A host refusal also leaves obj untouched (Refused).
//
// Precondition: obj must be non-nil; scope must be non-empty.
// Postcondition: on Renamed with nil error, obj's label equals the returned
// identifier. If the host commits the identifier but fails to set the label,
// the Renamed result carrying the committed identifier is returned together
// with the label error; the label is then stale until SyncLabel succeeds.
func (s *Synchronizer) Rename(ctx context.Context, obj Object, requested string, scope Scope) (Result, error) {
	if err := checkArgs(obj, scope); err != nil {
		return Result{}, err
	}
	current := obj.Identity().ID

	candidate, ok := s.sanitizer.Candidate(requested)
	if !ok {
		return s.finish(current, NoOp, requested), nil
	}
	if candidate == current {
		return s.finish(current, NoOp, requested), nil
	}

	committed, ok, err := s.commit(ctx, obj, scope, candidate)
	if err != nil {
		if ok {
			return s.finish(committed, Renamed, requested), err
		}
		return Result{}, err
	}
	if !ok {
		return s.finish(current, Refused, requested), nil
	}
	return s.finish(committed, Renamed, requested), nil
}

// ReserveFreeIdentifier returns the first identifier derived from base that
// is free in scope. Names that sanitize to nothing or to the none token are
// replaced by the fallback name first. Nothing is reserved or mutated.
//
// Precondition: scope must be non-empty.
func (s *Synchronizer) ReserveFreeIdentifier(ctx context.Context, base string, scope Scope) (Identifier, error) {
	if scope == "" {
		return "", ErrInvalidScope
	}
	return s.findFree(ctx, s.baseCandidate(base), scope)
}

// RenameToFree renames obj to the first free identifier derived from base,
// re-running the search when the host refuses the found identifier, up to
// the configured attempt limit. obj's own identifier counts as free, so an
// object already holding the first usable variant is left alone (NoOp).
//
// Precondition: obj must be non-nil; scope must be non-empty.
// Postcondition: on Renamed with nil error, obj's label equals the returned
// identifier. A label failure after a successful commit is reported as for
// Rename.
func (s *Synchronizer) RenameToFree(ctx context.Context, obj Object, base string, scope Scope) (Result, error) {
	if err := checkArgs(obj, scope); err != nil {
		return Result{}, err
	}
	current := obj.Identity().ID
	candidate := s.baseCandidate(base)
	if candidate == current {
		return s.finish(current, NoOp, base), nil
	}
	resolver := NewResolver(ownedLookup{RegistryLookup: s.host, own: current})

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		free, probes, err := resolver.find(ctx, candidate, scope)
		s.recorder.ObserveProbes(probes)
		if err != nil {
			return Result{}, err
		}
		if free == current {
			return s.finish(current, NoOp, base), nil
		}
		committed, ok, err := s.commit(ctx, obj, scope, free)
		if err != nil {
			if ok {
				return s.finish(committed, Renamed, base), err
			}
			return Result{}, err
		}
		if ok {
			return s.finish(committed, Renamed, base), nil
		}
		s.logger.Debug("free identifier refused, searching again",
			zap.String("scope", string(scope)),
			zap.String("candidate", free.String()),
			zap.Int("attempt", attempt),
		)
	}
	return s.finish(current, Refused, base), nil
}

// SyncLabel sets obj's label to its identifier text when the two differ.
//
// Precondition: obj must be non-nil.
// Postcondition: obj.Identity().Synced() is true on nil error.
func (s *Synchronizer) SyncLabel(ctx context.Context, obj Object) error {
	if obj == nil {
		return ErrNilObject
	}
	ident := obj.Identity()
	if ident.Synced() {
		return nil
	}
	if err := s.host.SetLabel(ctx, obj, ident.ID.String()); err != nil {
		return fmt.Errorf("setting label of %q: %w", ident.ID, err)
	}
	return nil
}

func (s *Synchronizer) baseCandidate(raw string) Identifier {
	candidate, ok := s.sanitizer.Candidate(raw)
	if !ok {
		return s.sanitizer.fallback
	}
	return candidate
}

func (s *Synchronizer) findFree(ctx context.Context, base Identifier, scope Scope) (Identifier, error) {
	id, probes, err := s.resolver.find(ctx, base, scope)
	s.recorder.ObserveProbes(probes)
	return id, err
}

// ownedLookup reports the searching object's own identifier as free.
type ownedLookup struct {
	RegistryLookup
	own Identifier
}

func (l ownedLookup) Exists(ctx context.Context, scope Scope, id Identifier) (bool, error) {
	if id == l.own {
		return false, nil
	}
	return l.RegistryLookup.Exists(ctx, scope, id)
}

// commit reserves candidate through the host and syncs the label to the
// committed form. A lost race is reported as a refusal. When only the label
// write fails, the committed identifier is returned with ok set and the
// error.
func (s *Synchronizer) commit(ctx context.Context, obj Object, scope Scope, candidate Identifier) (Identifier, bool, error) {
	committed, ok, err := s.host.TryCommitIdentifier(ctx, obj, scope, candidate)
	if errors.Is(err, ErrConflict) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("committing %q in scope %q: %w", candidate, scope, err)
	}
	if !ok {
		return "", false, nil
	}
	if err := s.host.SetLabel(ctx, obj, committed.String()); err != nil {
		return committed, true, fmt.Errorf("setting label to %q: %w", committed, err)
	}
	return committed, true, nil
}

func (s *Synchronizer) finish(id Identifier, outcome Outcome, requested string) Result {
	s.recorder.ObserveRename(outcome)
	s.logger.Debug("rename",
		zap.String("requested", requested),
		zap.String("id", id.String()),
		zap.Stringer("outcome", outcome),
	)
	return Result{ID: id, Outcome: outcome}
}

func checkArgs(obj Object, scope Scope) error {
	if obj == nil {
		return ErrNilObject
	}
	if scope == "" {
		return ErrInvalidScope
	}
	return nil
}
