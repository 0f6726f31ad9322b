package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

// CheckNameHook is the Lua global consulted for every identifier the scene
// assigns: check_name(level, candidate).
const CheckNameHook = "check_name"

// NameRules adapts the check_name hook to scene.Rule. The hook's return
// value decides the outcome:
//
//	string     -> assign this identifier instead (sanitized first)
//	true       -> accept the candidate as-is
//	false, nil -> refuse
//
// A level with no hook defined, in its own VM or the global one, accepts
// every candidate.
type NameRules struct {
	mgr *Manager
}

// NewNameRules wraps mgr.
//
// Precondition: mgr must be non-nil.
func NewNameRules(mgr *Manager) *NameRules {
	return &NameRules{mgr: mgr}
}

// Check runs check_name for candidate in level.
//
// Postcondition: Returns the identifier to assign and true, false on
// refusal, or an error when the hook fails or returns an unsupported type.
func (r *NameRules) Check(level naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error) {
	ret, ran, err := r.mgr.CallHook(level, CheckNameHook, lua.LString(level), lua.LString(candidate))
	if err != nil {
		return "", false, err
	}
	if !ran {
		return candidate, true, nil
	}

	switch v := ret.(type) {
	case lua.LString:
		adjusted, ok := r.mgr.sanitizer.Candidate(string(v))
		if !ok {
			return "", false, nil
		}
		return adjusted, true, nil
	case lua.LBool:
		if v {
			return candidate, true, nil
		}
		return "", false, nil
	case *lua.LNilType:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("scripting: %s returned unsupported %s", CheckNameHook, ret.Type())
	}
}
