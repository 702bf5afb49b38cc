package exec

import (
	"context"
	"encoding/json"

	lua "github.com/yuin/gopher-lua"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/luaconv"
	"github.com/oriys/weft/internal/store"
)

// installBridge installs the host functions every verb script gets:
// entity/verbs/capability lookups, update/create, recursive verb dispatch
// via call, scheduling, mint/delegate, and every plugin the registry
// carries, mangled to "<ns>_<fn>" the way the compiler already emits calls
// to unknown opcodes (see internal/compiler's generic function-call
// fallback).
func (c *Context) installBridge(ctx context.Context, L *lua.LState, selfID domain.EntityID) {
	L.SetGlobal("entity", L.NewFunction(func(L *lua.LState) int {
		id := int64(lua.LVAsNumber(L.Get(1)))
		e, err := c.store.GetEntity(ctx, id)
		if err != nil {
			L.RaiseError("entity: %v", err)
			return 0
		}
		flat, err := e.Flatten()
		if err != nil {
			L.RaiseError("entity: %v", err)
			return 0
		}
		L.Push(luaconv.ToLua(L, flat))
		return 1
	}))

	L.SetGlobal("verbs", L.NewFunction(func(L *lua.LState) int {
		id := entityArgID(L, 1)
		vs, err := c.store.GetVerbs(ctx, id)
		if err != nil {
			L.RaiseError("verbs: %v", err)
			return 0
		}
		out := make([]any, 0, len(vs))
		for _, v := range vs {
			entry := map[string]any{"id": v.ID, "name": v.Name, "entity_id": v.EntityID}
			if v.RequiredCapability != nil {
				entry["required_capability"] = *v.RequiredCapability
			}
			out = append(out, entry)
		}
		L.Push(luaconv.ToLua(L, out))
		return 1
	}))

	L.SetGlobal("capability", L.NewFunction(func(L *lua.LState) int {
		id := luaconv.GetString(L, 1)
		cp, err := c.caps.Get(ctx, id)
		if err != nil {
			L.RaiseError("capability: %v", err)
			return 0
		}
		L.Push(luaconv.ToLua(L, map[string]any{
			"id": cp.ID, "owner_id": cp.OwnerID, "kind": cp.Kind, "params": cp.Params,
		}))
		return 1
	}))

	L.SetGlobal("update", L.NewFunction(func(L *lua.LState) int {
		id := int64(lua.LVAsNumber(L.Get(1)))
		patch, _ := luaconv.FromLua(L, L.Get(2)).(map[string]any)
		if err := c.store.UpdateEntity(ctx, id, patch); err != nil {
			L.RaiseError("update: %v", err)
			return 0
		}
		return 0
	}))

	L.SetGlobal("create", L.NewFunction(func(L *lua.LState) int {
		props, _ := luaconv.FromLua(L, L.Get(1)).(map[string]any)
		var protoID *domain.EntityID
		if v := L.Get(2); v != lua.LNil {
			id := int64(lua.LVAsNumber(v))
			protoID = &id
		}
		data, err := marshalProps(props)
		if err != nil {
			L.RaiseError("create: %v", err)
			return 0
		}
		id, err := c.store.CreateEntity(ctx, json.RawMessage(data), protoID)
		if err != nil {
			L.RaiseError("create: %v", err)
			return 0
		}
		L.Push(lua.LNumber(id))
		return 1
	}))

	L.SetGlobal("call", L.NewFunction(func(L *lua.LState) int {
		target := int64(lua.LVAsNumber(L.Get(1)))
		verbName := luaconv.GetString(L, 2)
		argsVal, _ := luaconv.FromLua(L, L.Get(3)).([]any)

		verb, err := c.store.GetVerb(ctx, target, verbName)
		if err != nil {
			if err == store.ErrNotFound {
				L.RaiseError("call: %v", ErrVerbNotFound)
			} else {
				L.RaiseError("call: %v", err)
			}
			return 0
		}
		if verb.RequiredCapability != nil {
			if err := c.authz.Check(ctx, selfID, *verb.RequiredCapability); err != nil {
				L.RaiseError("call: %v", &CapabilityDenied{Kind: *verb.RequiredCapability, Reason: err.Error()})
				return 0
			}
		}

		result, err := c.ExecuteVerb(ctx, target, verbName, argsVal, &selfID)
		if err != nil {
			L.RaiseError("call: %v", err)
			return 0
		}
		L.Push(luaconv.ToLua(L, result))
		return 1
	}))

	L.SetGlobal("schedule", L.NewFunction(func(L *lua.LState) int {
		verbName := luaconv.GetString(L, 1)
		argsVal, _ := luaconv.FromLua(L, L.Get(2)).([]any)
		delayMS := int64(lua.LVAsNumber(L.Get(3)))
		id, err := c.sched.Schedule(ctx, selfID, verbName, argsVal, delayMS)
		if err != nil {
			L.RaiseError("schedule: %v", err)
			return 0
		}
		L.Push(lua.LNumber(id))
		return 1
	}))

	L.SetGlobal("mint", L.NewFunction(func(L *lua.LState) int {
		authorityID := luaconv.GetString(L, 1)
		newKind := luaconv.GetString(L, 2)
		newParams, _ := luaconv.FromLua(L, L.Get(3)).(map[string]any)
		id, err := c.caps.Mint(ctx, selfID, authorityID, newKind, newParams)
		if err != nil {
			L.RaiseError("mint: %v", err)
			return 0
		}
		L.Push(lua.LString(id))
		return 1
	}))

	L.SetGlobal("delegate", L.NewFunction(func(L *lua.LState) int {
		parentID := luaconv.GetString(L, 1)
		restrictions, _ := luaconv.FromLua(L, L.Get(2)).(map[string]any)
		id, err := c.caps.Delegate(ctx, selfID, parentID, restrictions)
		if err != nil {
			L.RaiseError("delegate: %v", err)
			return 0
		}
		L.Push(lua.LString(id))
		return 1
	}))

	L.SetGlobal("__json_encode", L.NewFunction(func(L *lua.LState) int {
		v := luaconv.FromLua(L, L.Get(1))
		data, err := marshalProps(v)
		if err != nil {
			L.RaiseError("json.encode: %v", err)
			return 0
		}
		L.Push(lua.LString(data))
		return 1
	}))

	L.SetGlobal("__json_decode", L.NewFunction(func(L *lua.LState) int {
		s := luaconv.GetString(L, 1)
		v, err := unmarshalProps(s)
		if err != nil {
			L.RaiseError("json.decode: %v", err)
			return 0
		}
		L.Push(luaconv.ToLua(L, v))
		return 1
	}))

	for name, fn := range c.plugins.All() {
		hostFn := fn
		L.SetGlobal(mangle(name), L.NewFunction(func(L *lua.LState) int {
			return hostFn(L, selfID)
		}))
	}
}

// entityArgID accepts either a bare entity id number or an entity table
// (the shape `entity(id)` returns) carrying an "id" field, so
// `verbs(entity(7))` and `verbs(7)` both work.
func entityArgID(L *lua.LState, idx int) domain.EntityID {
	v := L.Get(idx)
	if n, ok := v.(lua.LNumber); ok {
		return int64(n)
	}
	if t, ok := v.(*lua.LTable); ok {
		if idField := t.RawGetString("id"); idField != lua.LNil {
			return int64(lua.LVAsNumber(idField))
		}
	}
	return 0
}

// mangle turns a registered plugin name ("fs.read") into the global Lua
// identifier the compiler's generic opcode fallback emits calls to
// ("fs_read"), keeping the two packages' naming convention in sync.
func mangle(qualifiedName string) string {
	out := []byte(qualifiedName)
	for i, b := range out {
		if b == '.' {
			out[i] = '_'
		}
	}
	return string(out)
}
