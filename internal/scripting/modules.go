package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

// RegisterModules registers the scenesync Lua table into L:
//
//	scenesync.sanitize(raw)        -> identifier text, "" when nothing is left
//	scenesync.split(id)            -> base, number  (or id, nil without a suffix)
//	scenesync.with_number(id, n)   -> id with its suffix replaced by "_n"
//	scenesync.log(msg)             -> logs at Info
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: scenesync global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"sanitize":    m.luaSanitize,
		"split":       luaSplit,
		"with_number": luaWithNumber,
		"log":         m.luaLog,
	})
	L.SetGlobal("scenesync", mod)
}

func (m *Manager) luaSanitize(L *lua.LState) int {
	id, ok := m.sanitizer.Candidate(L.CheckString(1))
	if !ok {
		L.Push(lua.LString(""))
		return 1
	}
	L.Push(lua.LString(id))
	return 1
}

func luaSplit(L *lua.LState) int {
	id := naming.Identifier(L.CheckString(1))
	base, n, ok := id.Split()
	if !ok {
		L.Push(lua.LString(id))
		L.Push(lua.LNil)
		return 2
	}
	L.Push(lua.LString(base))
	L.Push(lua.LNumber(n))
	return 2
}

func luaWithNumber(L *lua.LState) int {
	id := naming.Identifier(L.CheckString(1))
	n := L.CheckInt(2)
	if n < 0 {
		L.ArgError(2, "number must not be negative")
		return 0
	}
	L.Push(lua.LString(id.WithNumber(n)))
	return 1
}

func (m *Manager) luaLog(L *lua.LState) int {
	m.logger.Info("scripting: rule log", zap.String("msg", L.CheckString(1)))
	return 0
}
