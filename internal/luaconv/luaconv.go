// Package luaconv converts between plain Go value trees (the shape
// encoding/json and ir.SExpr.ToAny produce: map[string]any, []any, string,
// float64, bool, nil) and gopher-lua values, so internal/exec's host
// bridge and internal/plugin's builtin plugins share one conversion and
// one array/object tagging convention rather than each reinventing it.
package luaconv

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// ArrayMetatable returns the VM-local __array_mt table the IR compiler's
// prelude (compiler.Prelude) defines, creating an empty one if the
// prelude hasn't run yet (so conversion still works in tests that build a
// bare *lua.LState without loading the full verb-execution prelude).
func ArrayMetatable(L *lua.LState) *lua.LTable {
	if mt, ok := L.GetGlobal("__array_mt").(*lua.LTable); ok {
		return mt
	}
	mt := L.NewTable()
	L.SetGlobal("__array_mt", mt)
	return mt
}

// NullValue returns the VM-local `null` sentinel the prelude defines,
// creating one if absent.
func NullValue(L *lua.LState) lua.LValue {
	if v := L.GetGlobal("null"); v != lua.LNil {
		return v
	}
	t := L.NewTable()
	L.SetGlobal("null", t)
	return t
}

// ToLua converts a plain Go value into a Lua value. Arrays are tagged
// with ArrayMetatable so list.* opcodes and std.typeof recognize them;
// Go nil becomes the `null` sentinel rather than Lua's own nil, since a
// table field holding Lua nil is indistinguishable from an absent field.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return NullValue(L)
	case bool:
		return lua.LBool(t)
	case string:
		return lua.LString(t)
	case float64:
		return lua.LNumber(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case []any:
		tbl := L.NewTable()
		for i, item := range t {
			tbl.RawSetInt(i+1, ToLua(L, item))
		}
		tbl.Metatable = ArrayMetatable(L)
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tbl.RawSetString(k, ToLua(L, t[k]))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// FromLua converts a Lua value back to a plain Go value tree, the inverse
// of ToLua. A table is treated as an array if it carries the array
// metatable, or if it has at least one entry and no string keys;
// otherwise it's an object. The `null` sentinel and Lua nil both convert
// to Go nil.
func FromLua(L *lua.LState, v lua.LValue) any {
	switch t := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case lua.LString:
		return string(t)
	case *lua.LTable:
		if t == NullValue(L) {
			return nil
		}
		if isArrayTable(L, t) {
			out := make([]any, 0, t.Len())
			t.ForEach(func(_, val lua.LValue) {
				out = append(out, FromLua(L, val))
			})
			return out
		}
		out := map[string]any{}
		t.ForEach(func(key, val lua.LValue) {
			if ks, ok := key.(lua.LString); ok {
				out[string(ks)] = FromLua(L, val)
			}
		})
		return out
	default:
		return nil
	}
}

func isArrayTable(L *lua.LState, t *lua.LTable) bool {
	if t.Metatable == ArrayMetatable(L) {
		return true
	}
	isArray := t.Len() > 0
	t.ForEach(func(key, _ lua.LValue) {
		if _, ok := key.(lua.LString); ok {
			isArray = false
		}
	})
	return isArray
}

// GetString reads the idx-th Lua stack argument as a string, returning ""
// if it isn't one. Used by plugin HostFuncs to read path/URL/etc. args.
func GetString(L *lua.LState, idx int) string {
	v := L.Get(idx)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// GetTable reads the idx-th Lua stack argument as a table's Go map form,
// or nil if it isn't a table. Used by plugin HostFuncs to read the
// capability-document argument.
func GetTable(L *lua.LState, idx int) map[string]any {
	v := FromLua(L, L.Get(idx))
	m, _ := v.(map[string]any)
	return m
}
