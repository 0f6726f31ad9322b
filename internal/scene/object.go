// Package scene is the host object registry: placed objects grouped into
// levels, each level a flat identifier namespace.
package scene

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/protocol"
)

// Object is a placed object. Its identity and transform are only changed
// through Manager.
type Object struct {
	// Handle identifies the object independently of its name.
	Handle uuid.UUID
	// Level is the namespace the object's identifier is unique in.
	Level naming.Scope
	// AssetPath is the asset reference the object was spawned from.
	AssetPath string

	mu        sync.RWMutex
	identity  naming.Identity
	transform protocol.Transform
}

// Identity returns the object's current identifier and label.
func (o *Object) Identity() naming.Identity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.identity
}

// ID returns the object's current identifier.
func (o *Object) ID() naming.Identifier {
	return o.Identity().ID
}

// Transform returns the object's relative transform.
func (o *Object) Transform() protocol.Transform {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.transform
}

func (o *Object) setID(id naming.Identifier) {
	o.mu.Lock()
	o.identity.ID = id
	o.mu.Unlock()
}

func (o *Object) setLabel(label string) {
	o.mu.Lock()
	o.identity.Label = label
	o.mu.Unlock()
}
