package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	mgr := scripting.NewManager(naming.NewSanitizer(naming.DefaultPolicy()), 0, zap.New(core))
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadLevel_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadLevel("L", dir))
	ret, ran, err := mgr.CallHook("L", "test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "empty.lua", `-- no functions`)
	require.NoError(t, mgr.LoadLevel("L", dir))
	ret, ran, err := mgr.CallHook("L", "nonexistent_hook")
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_UnknownLevelNoGlobal(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret, ran, err := mgr.CallHook("nowhere", "some_hook")
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_RuntimeError_WarnLogged(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `
		function bad_hook()
			error("intentional error")
		end
	`)
	require.NoError(t, mgr.LoadLevel("L", dir))
	ret, ran, err := mgr.CallHook("L", "bad_hook")
	assert.Error(t, err)
	assert.False(t, ran)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len(), "expected Warn log for Lua runtime error")
}

func TestManager_CallHook_RunawayHookIsStopped(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	mgr := scripting.NewManager(naming.NewSanitizer(naming.DefaultPolicy()), 500, zap.New(core))
	defer mgr.Close()
	dir := writeTempLua(t, "spin.lua", `
		function spin() while true do end end
		function ok() return 1 end
	`)
	require.NoError(t, mgr.LoadLevel("L", dir))

	_, _, err := mgr.CallHook("L", "spin")
	assert.Error(t, err)

	ret, ran, err := mgr.CallHook("L", "ok")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, lua.LNumber(1), ret)
}

func TestManager_LoadGlobal_CallHookFallback(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "global.lua", `
		function global_hook()
			return 42
		end
	`)
	require.NoError(t, mgr.LoadGlobal(dir))
	ret, ran, err := mgr.CallHook("unknownlevel", "global_hook")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, lua.LNumber(42), ret)
}

func TestManager_LoadDir_LevelsAndGlobal(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "global.lua"), []byte(`function which() return "global" end`), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Arena"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Arena", "arena.lua"), []byte(`function which() return "arena" end`), 0644))

	require.NoError(t, mgr.LoadDir(dir))
	assert.Equal(t, []naming.Scope{"Arena"}, mgr.Levels())

	ret, _, err := mgr.CallHook("Arena", "which")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("arena"), ret)

	ret, _, err = mgr.CallHook("PersistentLevel", "which")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("global"), ret)
}

func TestManager_LoadLevel_EmptyDir_NoError(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadLevel("empty", t.TempDir()))
	_, ran, err := mgr.CallHook("empty", "anything")
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestManager_LoadLevel_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	assert.Error(t, mgr.LoadLevel("bad", dir))
}

func TestManager_LoadLevel_EmptyLevelRejected(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.ErrorIs(t, mgr.LoadLevel("", t.TempDir()), naming.ErrPrecondition)
}

func TestManager_LoadLevel_MultipleFiles_OrderedByName(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`base_val = 10`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`
		function get_val() return base_val end
	`), 0644))
	require.NoError(t, mgr.LoadLevel("ordered", dir))
	ret, _, err := mgr.CallHook("ordered", "get_val")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(10), ret)
}

func TestManager_ReloadReplacesVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadLevel("L", writeTempLua(t, "v.lua", `function v() return 1 end`)))
	require.NoError(t, mgr.LoadLevel("L", writeTempLua(t, "v.lua", `function v() return 2 end`)))
	ret, _, err := mgr.CallHook("L", "v")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), ret)
}

func TestNewManager_PanicsOnNilArguments(t *testing.T) {
	assert.Panics(t, func() {
		scripting.NewManager(nil, 0, zap.NewNop())
	})
	assert.Panics(t, func() {
		scripting.NewManager(naming.NewSanitizer(naming.DefaultPolicy()), 0, nil)
	})
}

func TestManager_Close_ReleasesLevels(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadLevel("closelevel", writeTempLua(t, "init.lua", `function get_x() return x end`)))
	mgr.Close()
	ret, ran, err := mgr.CallHook("closelevel", "get_x")
	assert.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, lua.LNil, ret)
}

func TestProperty_CallHookMissingLevelNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	rapid.Check(t, func(rt *rapid.T) {
		level := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "level")
		hook := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "hook")
		count := rapid.IntRange(1, 20).Draw(rt, "count")
		for i := 0; i < count; i++ {
			mgr.CallHook(naming.Scope(level), hook) //nolint:errcheck
		}
	})
}

func TestProperty_CallHookConcurrentSameLevel_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function concurrent_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadLevel("conc", dir))

	const goroutines = 10
	const callsEach = 5
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				ret, _, err := mgr.CallHook("conc", "concurrent_hook", lua.LNumber(1), lua.LNumber(2))
				assert.NoError(t, err)
				assert.Equal(t, lua.LNumber(3), ret)
			}
		}()
	}
	wg.Wait()
}
