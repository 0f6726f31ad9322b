package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

// globalLevel is the reserved key for scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no level VM is found.
const globalLevel = "__global__"

// vm is one LState and the lock serializing access to it.
type vm struct {
	mu sync.Mutex
	L  *lua.LState
}

// Manager owns one sandboxed LState per level plus a global fallback and
// exposes hook dispatch.
//
// Manager is safe for concurrent use. Calls into the same VM are serialized;
// different levels run concurrently.
type Manager struct {
	mu        sync.RWMutex
	vms       map[string]*vm
	sanitizer *naming.Sanitizer
	limit     int
	logger    *zap.Logger
}

// NewManager creates a Manager whose calls are bounded by instLimit opcodes.
//
// Precondition: sanitizer and logger must be non-nil; instLimit >= 0 (0 uses
// DefaultInstructionLimit).
// Postcondition: Returns a non-nil Manager with no VMs loaded.
func NewManager(sanitizer *naming.Sanitizer, instLimit int, logger *zap.Logger) *Manager {
	if sanitizer == nil {
		panic("scripting.NewManager: sanitizer must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:       make(map[string]*vm),
		sanitizer: sanitizer,
		limit:     instLimit,
		logger:    logger,
	}
}

// LoadDir loads a rules directory: top-level *.lua files into the global VM
// and each subdirectory into the VM of the level it is named after.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the first load error; VMs loaded before it stay registered.
func (m *Manager) LoadDir(dir string) error {
	if err := m.LoadGlobal(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading rules dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadLevel(naming.Scope(e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadLevel creates a sandboxed VM for level, registers the scenesync module,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: level must be non-empty; scriptDir must be a readable directory.
// Postcondition: Level VM is registered; returns error on Lua load failure.
func (m *Manager) LoadLevel(level naming.Scope, scriptDir string) error {
	if level == "" {
		return fmt.Errorf("scripting: %w", naming.ErrInvalidScope)
	}
	return m.loadInto(string(level), scriptDir)
}

// LoadGlobal creates the global VM consulted by CallHook for levels that
// have no VM of their own.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string) error {
	return m.loadInto(globalLevel, scriptDir)
}

func (m *Manager) loadInto(key, scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState()
	m.RegisterModules(L)
	for _, path := range luaFiles {
		err := Limited(L, m.limit, func() error { return L.DoFile(path) })
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = &vm{L: L}
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("scripting: rules loaded",
		zap.String("level", key),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// CallHook calls the named Lua global function in level's VM. If the level
// has no VM, the global VM is tried as a fallback. Returns (LNil, false, nil)
// if the hook is not defined or no VM exists.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value and true when the hook ran;
// Lua runtime errors (including the instruction limit) are logged at Warn
// and returned.
func (m *Manager) CallHook(level naming.Scope, hook string, args ...lua.LValue) (lua.LValue, bool, error) {
	m.mu.RLock()
	v, ok := m.vms[string(level)]
	if !ok {
		v = m.vms[globalLevel]
	}
	m.mu.RUnlock()

	if v == nil {
		return lua.LNil, false, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Closed by a concurrent reload or Close.
	if v.L.IsClosed() {
		return lua.LNil, false, nil
	}
	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, false, nil
	}

	err := Limited(v.L, m.limit, func() error {
		return v.L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, args...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("level", string(level)),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, false, fmt.Errorf("scripting: %s: %w", hook, err)
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, true, nil
}

// Levels returns the levels that have their own VM, sorted.
func (m *Manager) Levels() []naming.Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]naming.Scope, 0, len(m.vms))
	for k := range m.vms {
		if k != globalLevel {
			out = append(out, naming.Scope(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close releases all VMs.
//
// Postcondition: All VMs are closed and removed.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()

	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}
