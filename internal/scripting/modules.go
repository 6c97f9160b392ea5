package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the engine.log and engine.actor Lua tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetGlobal("engine", engine)

	logTbl := L.NewTable()
	for level, fn := range map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	} {
		logFn := fn
		logTbl.RawSetString(level, L.NewFunction(func(L *lua.LState) int {
			logFn("lua: "+L.CheckString(1), zap.String("source", "script"))
			return 0
		}))
	}
	engine.RawSetString("log", logTbl)

	actorTbl := L.NewTable()
	actorTbl.RawSetString("has_tag", L.NewFunction(func(L *lua.LState) int {
		if m.HasTag == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LBool(m.HasTag(L.CheckString(1), L.CheckString(2))))
		return 1
	}))
	actorTbl.RawSetString("team", L.NewFunction(func(L *lua.LState) int {
		if m.TeamOf == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(m.TeamOf(L.CheckString(1))))
		return 1
	}))
	actorTbl.RawSetString("slot_len", L.NewFunction(func(L *lua.LState) int {
		if m.SlotLen == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(m.SlotLen(L.CheckString(1), L.CheckString(2))))
		return 1
	}))
	engine.RawSetString("actor", actorTbl)
}
