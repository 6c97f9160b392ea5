package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// globalScope is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no scope VM is found.
const globalScope = "__global__"

type vm struct {
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed LState per scope and exposes hook dispatch.
//
// Manager is safe for concurrent use. An LState is single-threaded, so every call is
// serialized behind the manager's mutex.
type Manager struct {
	mu     sync.Mutex
	states map[string]*vm
	logger *zap.Logger

	// Injected after construction. nil = engine.* queries return nil.
	HasTag  func(actorID, tag string) bool
	TeamOf  func(actorID string) string
	SlotLen func(actorID, slot string) int
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no loaded scopes.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		states: make(map[string]*vm),
		logger: logger,
	}
}

// LoadScope creates a sandboxed VM for scope, registers all engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: Scope VM is registered; returns error on Lua load failure.
func (m *Manager) LoadScope(scope, scriptDir string, instLimit int) error {
	return m.loadInto(scope, scriptDir, instLimit)
}

// LoadGlobal creates the shared VM used as the CallHook fallback from any scope.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalScope, scriptDir, instLimit)
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	L := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		ResetBudget(L, instLimit)
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		old.L.Close()
	}
	m.states[key] = &vm{L: L, limit: instLimit}
	m.mu.Unlock()
	m.logger.Debug("scripting: scope loaded",
		zap.String("scope", key),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// CallHook calls the named Lua global function in scope's VM. If the scope has
// no VM, the global VM is tried as a fallback. Returns (LNil, nil) if the
// hook is not defined or no VM exists. Lua runtime errors are logged at Warn
// level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callLocked(scope, hook, args...), nil
}

// CallPredicate calls hook with a single table built from fields and interprets the
// result as a boolean. A missing VM, missing hook, runtime error or nil result yields
// fallback.
func (m *Manager) CallPredicate(scope, hook string, fallback bool, fields map[string]any) bool {
	if hook == "" {
		return fallback
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.lookup(scope)
	if v == nil {
		m.logger.Info("scripting: no VM for predicate",
			zap.String("scope", scope),
			zap.String("hook", hook),
		)
		return fallback
	}
	ret := m.callLocked(scope, hook, toTable(v.L, fields))
	if ret == lua.LNil {
		return fallback
	}
	return lua.LVAsBool(ret)
}

func (m *Manager) lookup(scope string) *vm {
	if v, ok := m.states[scope]; ok {
		return v
	}
	return m.states[globalScope]
}

func (m *Manager) callLocked(scope, hook string, args ...lua.LValue) lua.LValue {
	v := m.lookup(scope)
	if v == nil {
		m.logger.Info("scripting: no VM for scope",
			zap.String("scope", scope),
			zap.String("hook", hook),
		)
		return lua.LNil
	}
	L := v.L

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil
	}

	ResetBudget(L, v.limit)
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret
}

// Close releases every VM.
//
// Postcondition: subsequent CallHook calls return LNil.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.states {
		v.L.Close()
		delete(m.states, key)
	}
}

// toTable converts fields into a Lua table. Unsupported values become their fmt form.
func toTable(L *lua.LState, fields map[string]any) *lua.LTable {
	t := L.NewTable()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.RawSetString(k, toValue(L, fields[k]))
	}
	return t
}

func toValue(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case []string:
		arr := L.NewTable()
		for _, s := range x {
			arr.Append(lua.LString(s))
		}
		return arr
	case map[string]any:
		return toTable(L, x)
	case fmt.Stringer:
		return lua.LString(x.String())
	default:
		return lua.LString(fmt.Sprint(x))
	}
}
