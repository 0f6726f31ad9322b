package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

// Spawn adds an object named after the first identifier derived from base
// that is free in spec.Level, then syncs its label to that identifier.
// spec.Name and spec.Label are ignored. A name lost to a concurrent Add is
// searched again, up to attempts times.
//
// Precondition: m and s must be non-nil and s must write through m;
// attempts must be > 0.
// Postcondition: Returns the added object with a synced label, or an error
// wrapping naming.ErrConflict when every attempt lost its name.
func Spawn(ctx context.Context, m *Manager, s *naming.Synchronizer, spec ObjectSpec, base string, attempts int) (*Object, error) {
	for attempt := 1; attempt <= attempts; attempt++ {
		id, err := s.ReserveFreeIdentifier(ctx, base, spec.Level)
		if err != nil {
			return nil, err
		}
		spec.Name = id
		spec.Label = ""
		obj, err := m.Add(ctx, spec)
		if errors.Is(err, ErrNameTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := s.SyncLabel(ctx, obj); err != nil {
			return nil, err
		}
		return obj, nil
	}
	return nil, fmt.Errorf("spawning %q after %d attempts: %w", base, attempts, naming.ErrConflict)
}
