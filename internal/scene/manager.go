package scene

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/protocol"
)

// ErrNameTaken is returned by Add when the identifier is already used in the level.
var ErrNameTaken = errors.New("name already taken")

// ErrNameRefused is returned by Add when a host rule refuses the identifier.
var ErrNameRefused = errors.New("name refused by host rules")

// ErrObjectNotFound is returned when no object matches a handle or name.
var ErrObjectNotFound = errors.New("object not found")

// ErrDuplicateHandle is returned by Add when the requested handle is already live.
var ErrDuplicateHandle = errors.New("handle already in use")

// ErrForeignObject is returned when a naming.Object was not created by this Manager.
var ErrForeignObject = errors.New("object does not belong to this scene")

// Ledger is a namespace shared with other processes. When a Manager has a
// Ledger, an identifier is only assigned once the ledger has claimed it too.
type Ledger interface {
	// Exists reports whether id is claimed in level by any process.
	Exists(ctx context.Context, level naming.Scope, id naming.Identifier) (bool, error)
	// Claim atomically assigns id in level to handle, replacing handle's
	// previous claim. It returns false when another handle holds id.
	Claim(ctx context.Context, handle uuid.UUID, level naming.Scope, id naming.Identifier, assetPath string) (bool, error)
	// Release drops handle's claim. Releasing an unknown handle is not an error.
	Release(ctx context.Context, handle uuid.UUID) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithRules appends host rules applied to every assigned identifier.
func WithRules(rules ...Rule) Option {
	return func(m *Manager) { m.rules = append(m.rules, rules...) }
}

// WithLedger makes the Manager claim every identifier in l before assigning it.
func WithLedger(l Ledger) Option {
	return func(m *Manager) { m.ledger = l }
}

// ObjectSpec describes an object to add to a level. A zero Handle gets a
// fresh one.
type ObjectSpec struct {
	Handle    uuid.UUID
	Level     naming.Scope
	Name      naming.Identifier
	Label     string
	AssetPath string
	Transform protocol.Transform
}

// Manager tracks every live object by handle and by name within its level.
// It implements naming.Host; identifier commits are atomic under the write
// lock. All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	objects map[uuid.UUID]*Object
	names   map[naming.Scope]map[naming.Identifier]*Object
	rules   []Rule
	ledger  Ledger
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		objects: make(map[uuid.UUID]*Object),
		names:   make(map[naming.Scope]map[naming.Identifier]*Object),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists reports whether an object named id lives in level, here or, with
// a Ledger, in any process sharing it.
func (m *Manager) Exists(ctx context.Context, level naming.Scope, id naming.Identifier) (bool, error) {
	m.mu.RLock()
	_, ok := m.names[level][id]
	m.mu.RUnlock()
	if ok || m.ledger == nil {
		return ok, nil
	}
	ok, err := m.ledger.Exists(ctx, level, id)
	if err != nil {
		return false, fmt.Errorf("checking ledger for %q: %w", id, err)
	}
	return ok, nil
}

// TryCommitIdentifier assigns candidate to obj if the host rules accept it
// and no other object in level holds it. The label is left untouched.
//
// Precondition: obj was created by this Manager and lives in level.
// Postcondition: Returns the assigned identifier and true, or false when refused.
func (m *Manager) TryCommitIdentifier(ctx context.Context, obj naming.Object, level naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error) {
	o, err := m.own(obj)
	if err != nil {
		return "", false, err
	}
	if o.Level != level {
		return "", false, fmt.Errorf("object %s lives in level %q, not %q", o.Handle, o.Level, level)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, live := m.objects[o.Handle]; !live {
		return "", false, fmt.Errorf("object %s: %w", o.Handle, ErrObjectNotFound)
	}
	id, ok, err := m.check(level, candidate)
	if err != nil || !ok {
		return "", false, err
	}
	if holder, taken := m.names[level][id]; taken && holder != o {
		return "", false, nil
	}
	if ok, err := m.claim(ctx, o.Handle, level, id, o.AssetPath); err != nil || !ok {
		return "", false, err
	}

	delete(m.names[level], o.ID())
	m.index(level)[id] = o
	o.setID(id)
	return id, true, nil
}

// SetLabel replaces obj's label.
//
// Precondition: obj was created by this Manager.
func (m *Manager) SetLabel(_ context.Context, obj naming.Object, text string) error {
	o, err := m.own(obj)
	if err != nil {
		return err
	}
	o.setLabel(text)
	return nil
}

// Add places a new object. The identifier must pass the host rules and be
// free in the level; it is not searched for a free variant.
//
// Precondition: spec.Level and spec.Name must be non-empty.
// Postcondition: Returns the new Object, or ErrNameTaken / ErrNameRefused /
// ErrDuplicateHandle.
func (m *Manager) Add(ctx context.Context, spec ObjectSpec) (*Object, error) {
	if spec.Level == "" {
		return nil, fmt.Errorf("scene.Manager.Add: %w", naming.ErrInvalidScope)
	}
	if spec.Name == "" {
		return nil, errors.New("scene.Manager.Add: name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok, err := m.check(spec.Level, spec.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", spec.Name, ErrNameRefused)
	}
	if _, taken := m.names[spec.Level][id]; taken {
		return nil, fmt.Errorf("%q in level %q: %w", id, spec.Level, ErrNameTaken)
	}

	handle := spec.Handle
	if handle == uuid.Nil {
		handle = uuid.New()
	} else if _, dup := m.objects[handle]; dup {
		return nil, fmt.Errorf("%s: %w", handle, ErrDuplicateHandle)
	}
	claimed, err := m.claim(ctx, handle, spec.Level, id, spec.AssetPath)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%q in level %q: %w", id, spec.Level, ErrNameTaken)
	}

	o := &Object{
		Handle:    handle,
		Level:     spec.Level,
		AssetPath: spec.AssetPath,
		identity:  naming.Identity{ID: id, Label: spec.Label},
		transform: spec.Transform,
	}
	m.objects[o.Handle] = o
	m.index(spec.Level)[id] = o
	return o, nil
}

// Get returns the object with the given handle.
//
// Postcondition: Returns (obj, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(handle uuid.UUID) (*Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[handle]
	return o, ok
}

// FindByName returns the object named id in level.
//
// Postcondition: Returns (obj, true) if found, or (nil, false) otherwise.
func (m *Manager) FindByName(level naming.Scope, id naming.Identifier) (*Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.names[level][id]
	return o, ok
}

// Remove deletes the object named id from level and releases its ledger
// claim.
//
// Postcondition: Returns ErrObjectNotFound if no such object exists.
func (m *Manager) Remove(ctx context.Context, level naming.Scope, id naming.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.names[level][id]
	if !ok {
		return fmt.Errorf("%q in level %q: %w", id, level, ErrObjectNotFound)
	}
	if m.ledger != nil {
		if err := m.ledger.Release(ctx, o.Handle); err != nil {
			return fmt.Errorf("releasing %q: %w", id, err)
		}
	}
	delete(m.names[level], id)
	if len(m.names[level]) == 0 {
		delete(m.names, level)
	}
	delete(m.objects, o.Handle)
	return nil
}

// ReleaseClaims drops the ledger claim of every live object. The objects
// stay in the scene; a Manager without a Ledger does nothing.
//
// Postcondition: Returns the first release error after attempting all.
func (m *Manager) ReleaseClaims(ctx context.Context) error {
	if m.ledger == nil {
		return nil
	}
	m.mu.RLock()
	handles := make([]uuid.UUID, 0, len(m.objects))
	for h := range m.objects {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	var first error
	for _, h := range handles {
		if err := m.ledger.Release(ctx, h); err != nil && first == nil {
			first = fmt.Errorf("releasing %s: %w", h, err)
		}
	}
	return first
}

// SetTransform overlays the components present in t onto the object's
// transform.
//
// Postcondition: Returns ErrObjectNotFound if the object was removed.
func (m *Manager) SetTransform(handle uuid.UUID, t protocol.Transform) error {
	o, ok := m.Get(handle)
	if !ok {
		return fmt.Errorf("object %s: %w", handle, ErrObjectNotFound)
	}
	o.mu.Lock()
	o.transform = o.transform.Merge(t)
	o.mu.Unlock()
	return nil
}

// Objects returns the objects of level sorted by identifier.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) Objects(level naming.Scope) []*Object {
	m.mu.RLock()
	out := make([]*Object, 0, len(m.names[level]))
	for _, o := range m.names[level] {
		out = append(out, o)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Levels returns every level holding at least one object, sorted.
func (m *Manager) Levels() []naming.Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	levels := make([]naming.Scope, 0, len(m.names))
	for l := range m.names {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// Count returns the number of live objects across all levels.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// check runs the host rules. Caller holds m.mu.
func (m *Manager) check(level naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error) {
	id := candidate
	for _, r := range m.rules {
		next, ok, err := r.Check(level, id)
		if err != nil {
			return "", false, fmt.Errorf("checking %q: %w", id, err)
		}
		if !ok || next == "" {
			return "", false, nil
		}
		id = next
	}
	return id, true, nil
}

// claim reserves id in the ledger, if any. Caller holds m.mu.
func (m *Manager) claim(ctx context.Context, handle uuid.UUID, level naming.Scope, id naming.Identifier, asset string) (bool, error) {
	if m.ledger == nil {
		return true, nil
	}
	ok, err := m.ledger.Claim(ctx, handle, level, id, asset)
	if err != nil {
		return false, fmt.Errorf("claiming %q in ledger: %w", id, err)
	}
	return ok, nil
}

// index returns the name index of level, creating it. Caller holds m.mu.
func (m *Manager) index(level naming.Scope) map[naming.Identifier]*Object {
	idx, ok := m.names[level]
	if !ok {
		idx = make(map[naming.Identifier]*Object)
		m.names[level] = idx
	}
	return idx
}

func (m *Manager) own(obj naming.Object) (*Object, error) {
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return nil, ErrForeignObject
	}
	return o, nil
}
