package scene

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/protocol"
)

// Level is the file form of one level and its objects.
type Level struct {
	Name    string        `yaml:"name"`
	Objects []LevelObject `yaml:"objects"`
	// Source is the file the level was loaded from, if any.
	Source string `yaml:"-"`
}

// LevelObject is the file form of one placed object. Handle keeps the
// object's identity, and with it its ledger claim, across restarts.
type LevelObject struct {
	Handle    string             `yaml:"handle,omitempty"`
	Name      string             `yaml:"name"`
	Label     string             `yaml:"label,omitempty"`
	Asset     string             `yaml:"asset,omitempty"`
	Transform protocol.Transform `yaml:"transform,omitempty"`
}

// levelFile is the top-level YAML structure for level files.
type levelFile struct {
	Level Level `yaml:"level"`
}

// Validate checks that the level is named and its object names are
// non-empty and unique.
func (l *Level) Validate() error {
	if l.Name == "" {
		return errors.New("level name must not be empty")
	}
	seen := make(map[string]bool, len(l.Objects))
	handles := make(map[uuid.UUID]bool, len(l.Objects))
	for i, o := range l.Objects {
		if o.Name == "" {
			return fmt.Errorf("level %q: object %d has no name", l.Name, i)
		}
		if seen[o.Name] {
			return fmt.Errorf("level %q: duplicate object name %q", l.Name, o.Name)
		}
		seen[o.Name] = true
		if o.Handle == "" {
			continue
		}
		h, err := uuid.Parse(o.Handle)
		if err != nil {
			return fmt.Errorf("level %q: object %q: invalid handle: %w", l.Name, o.Name, err)
		}
		if handles[h] {
			return fmt.Errorf("level %q: duplicate handle %s", l.Name, h)
		}
		handles[h] = true
	}
	return nil
}

// MissingHandles reports whether any object in l has no stored handle.
func (l *Level) MissingHandles() bool {
	for _, o := range l.Objects {
		if o.Handle == "" {
			return true
		}
	}
	return false
}

// LoadLevelFromFile reads and validates a single level YAML file.
//
// Precondition: path must point to a valid YAML level file.
// Postcondition: Returns a validated Level or a non-nil error.
func LoadLevelFromFile(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level file %s: %w", path, err)
	}
	l, err := LoadLevelFromBytes(data)
	if err != nil {
		return nil, err
	}
	l.Source = path
	return l, nil
}

// LoadLevelFromBytes parses and validates a level from YAML bytes.
//
// Postcondition: Returns a validated Level or a non-nil error.
func LoadLevelFromBytes(data []byte) (*Level, error) {
	var file levelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing level YAML: %w", err)
	}
	if err := file.Level.Validate(); err != nil {
		return nil, fmt.Errorf("validating level: %w", err)
	}
	return &file.Level, nil
}

// LoadLevelsFromDir loads all YAML files in a directory as levels.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns all validated levels (possibly none) or the first error encountered.
func LoadLevelsFromDir(dir string) ([]*Level, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading level directory %s: %w", dir, err)
	}

	var levels []*Level
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		level, err := LoadLevelFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading level from %s: %w", name, err)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// MarshalLevel renders a level in the file format read by LoadLevelFromBytes.
func MarshalLevel(l *Level) ([]byte, error) {
	data, err := yaml.Marshal(levelFile{Level: *l})
	if err != nil {
		return nil, fmt.Errorf("serialising level %q: %w", l.Name, err)
	}
	return data, nil
}

// WriteLevelFile writes l to path in the file format read by
// LoadLevelFromFile. The file is replaced atomically.
//
// Postcondition: path holds the whole level or is left unchanged.
func WriteLevelFile(path string, l *Level) error {
	data, err := MarshalLevel(l)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing level %q: %w", l.Name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing level %q: %w", l.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing level %q: %w", l.Name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing level %q: %w", l.Name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing level %q to %s: %w", l.Name, path, err)
	}
	return nil
}

// Populate adds every object of l to the Manager under the level's name.
// Names are used as-is; a name the host refuses or that is already taken
// aborts the load. Stored handles are reused, so populating a level whose
// claims survived a restart reclaims them instead of colliding.
//
// Postcondition: Returns the added objects in file order, or the first error.
func (m *Manager) Populate(ctx context.Context, l *Level) ([]*Object, error) {
	added := make([]*Object, 0, len(l.Objects))
	for _, lo := range l.Objects {
		var handle uuid.UUID
		if lo.Handle != "" {
			h, err := uuid.Parse(lo.Handle)
			if err != nil {
				return added, fmt.Errorf("populating level %q: object %q: %w", l.Name, lo.Name, err)
			}
			handle = h
		}
		o, err := m.Add(ctx, ObjectSpec{
			Handle:    handle,
			Level:     naming.Scope(l.Name),
			Name:      naming.Identifier(lo.Name),
			Label:     lo.Label,
			AssetPath: lo.Asset,
			Transform: lo.Transform,
		})
		if err != nil {
			return added, fmt.Errorf("populating level %q: %w", l.Name, err)
		}
		added = append(added, o)
	}
	return added, nil
}

// SaveLevels writes the current state of every level back to disk. Loaded
// levels go to their Source file; levels without one, including levels
// first created in this Manager, go to dir/<name>.yaml. A loaded level that
// is now empty is still written, so removed objects stay removed.
//
// Precondition: dir must exist.
// Postcondition: Returns the written paths, and the first error after
// attempting every level.
func (m *Manager) SaveLevels(dir string, loaded []*Level) ([]string, error) {
	targets := make(map[naming.Scope]string)
	var order []naming.Scope
	add := func(level naming.Scope, path string) {
		if _, ok := targets[level]; ok {
			return
		}
		targets[level] = path
		order = append(order, level)
	}
	for _, l := range loaded {
		add(naming.Scope(l.Name), l.Source)
	}
	for _, level := range m.Levels() {
		add(level, "")
	}

	var (
		written []string
		first   error
	)
	for _, level := range order {
		path := targets[level]
		if path == "" {
			name := string(level)
			if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
				if first == nil {
					first = fmt.Errorf("level %q: name is not usable as a file name", name)
				}
				continue
			}
			path = filepath.Join(dir, name+".yaml")
		}
		if err := WriteLevelFile(path, m.Snapshot(level)); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		written = append(written, path)
	}
	return written, first
}

// Snapshot returns the file form of level's current objects.
func (m *Manager) Snapshot(level naming.Scope) *Level {
	objs := m.Objects(level)
	l := &Level{Name: string(level), Objects: make([]LevelObject, 0, len(objs))}
	for _, o := range objs {
		ident := o.Identity()
		l.Objects = append(l.Objects, LevelObject{
			Handle:    o.Handle.String(),
			Name:      ident.ID.String(),
			Label:     ident.Label,
			Asset:     o.AssetPath,
			Transform: o.Transform(),
		})
	}
	return l
}
