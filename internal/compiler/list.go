package compiler

import (
	"fmt"
	"strings"

	"github.com/oriys/weft/internal/ir"
)

// compileList compiles list.* opcodes. Lists are plain Lua tables with the
// __array_mt metatable attached, so luaconv.FromLua can tell arrays from
// objects on the way back out.
func compileList(op string, args []ir.SExpr, prefix string) (string, bool, error) {
	switch op {
	case "list.new":
		if len(args) == 0 {
			return fmt.Sprintf("%ssetmetatable({}, __array_mt)", prefix), true, nil
		}
		elements := make([]string, len(args))
		for i, a := range args {
			code, err := compileValue(a, false)
			if err != nil {
				return "", true, err
			}
			elements[i] = code
		}
		return fmt.Sprintf("%ssetmetatable({ %s }, __array_mt)", prefix, strings.Join(elements, ", ")), true, nil

	case "list.len":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s#%s", prefix, arg), true, nil

	case "list.get":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		index, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		if len(args) >= 3 {
			def, err := compileValue(args[2], false)
			if err != nil {
				return "", true, err
			}
			return fmt.Sprintf("%s(%s[%s + 1] ~= nil and %s[%s + 1] or %s)", prefix, list, index, list, index, def), true, nil
		}
		return fmt.Sprintf("%s%s[%s + 1]", prefix, list, index), true, nil

	case "list.set":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		index, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		value, err := compileValue(args[2], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s[%s + 1] = %s", list, index, value), true, nil

	case "list.push":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		value, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%stable.insert(%s, %s)", prefix, list, value), true, nil

	case "list.pop":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%stable.remove(%s)", prefix, list), true, nil

	case "list.map":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, fn, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr, fn) local r = {}; for i, v in ipairs(arr) do r[i] = fn(v, i - 1) end; return setmetatable(r, __array_mt) end)(%s, %s)",
			prefix, list, fn), true, nil

	case "list.filter":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, fn, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr, fn) local r = {}; for i, v in ipairs(arr) do if fn(v, i - 1) then r[#r+1] = v end end; return setmetatable(r, __array_mt) end)(%s, %s)",
			prefix, list, fn), true, nil

	case "list.reduce":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		fn, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		init, err := compileValue(args[2], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr, fn, acc) for i, v in ipairs(arr) do acc = fn(acc, v, i - 1) end; return acc end)(%s, %s, %s)",
			prefix, list, fn, init), true, nil

	case "list.find":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, fn, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr, fn) for i, v in ipairs(arr) do if fn(v, i - 1) then return v end end; return nil end)(%s, %s)",
			prefix, list, fn), true, nil

	case "list.concat":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		a, b, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(a, b) local r = {}; for _, v in ipairs(a) do r[#r+1] = v end; for _, v in ipairs(b) do r[#r+1] = v end; return setmetatable(r, __array_mt) end)(%s, %s)",
			prefix, a, b), true, nil

	case "list.slice":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		start, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		end, err := compileValue(args[2], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr, s, e) local r = {}; for i = s + 1, e do r[#r+1] = arr[i] end; return setmetatable(r, __array_mt) end)(%s, %s, %s)",
			prefix, list, start, end), true, nil

	case "list.empty":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(#%s == 0)", prefix, list), true, nil

	case "list.unshift":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, value, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%stable.insert(%s, 1, %s)", prefix, list, value), true, nil

	case "list.shift":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%stable.remove(%s, 1)", prefix, list), true, nil

	case "list.includes":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, value, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr, val) for _, v in ipairs(arr) do if v == val then return true end end; return false end)(%s, %s)",
			prefix, list, value), true, nil

	case "list.indexOf":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, value, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr, val) for i, v in ipairs(arr) do if v == val then return i - 1 end end; return -1 end)(%s, %s)",
			prefix, list, value), true, nil

	case "list.reverse":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr) local n = #arr; for i = 1, math.floor(n/2) do arr[i], arr[n-i+1] = arr[n-i+1], arr[i] end; return arr end)(%s)",
			prefix, list), true, nil

	case "list.sort":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(function(arr) table.sort(arr); return arr end)(%s)", prefix, list), true, nil

	case "list.join":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, sep, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%stable.concat(%s, %s)", prefix, list, sep), true, nil

	case "list.splice":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		start, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		deleteCount, err := compileValue(args[2], false)
		if err != nil {
			return "", true, err
		}
		items := make([]string, len(args)-3)
		for i, a := range args[3:] {
			code, err := compileValue(a, false)
			if err != nil {
				return "", true, err
			}
			items[i] = code
		}
		itemsStr := strings.Join(items, ", ")
		tail := ""
		if itemsStr != "" {
			tail = ", " + itemsStr
		}
		return fmt.Sprintf(
			"%s(function(arr, s, d, ...) local r = {}; local items = {...}; s = s + 1; for i = 1, d do if arr[s] then r[#r+1] = table.remove(arr, s) end end; for i = #items, 1, -1 do table.insert(arr, s, items[i]) end; return setmetatable(r, __array_mt) end)(%s, %s, %s%s)",
			prefix, list, start, deleteCount, tail), true, nil

	case "list.flatMap":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, fn, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(arr, fn) local r = {}; for i, v in ipairs(arr) do local res = fn(v, i - 1); if type(res) == 'table' then for _, item in ipairs(res) do r[#r+1] = item end else r[#r+1] = res end end; return setmetatable(r, __array_mt) end)(%s, %s)",
			prefix, list, fn), true, nil
	}

	return "", false, nil
}

func compileTwo(args []ir.SExpr) (string, string, error) {
	a, err := compileValue(args[0], false)
	if err != nil {
		return "", "", err
	}
	b, err := compileValue(args[1], false)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}
