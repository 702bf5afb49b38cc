package compiler

import (
	"fmt"
	"strings"

	"github.com/oriys/weft/internal/ir"
)

// compileObj compiles obj.* opcodes.
func compileObj(op string, args []ir.SExpr, prefix string) (string, bool, error) {
	switch op {
	case "obj.get":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		obj, key, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		if len(args) >= 3 {
			def, err := compileValue(args[2], false)
			if err != nil {
				return "", true, err
			}
			return fmt.Sprintf("%s((%s)[%s] ~= nil and (%s)[%s] or %s)", prefix, obj, key, obj, key, def), true, nil
		}
		return fmt.Sprintf("%s(%s)[%s]", prefix, obj, key), true, nil

	case "obj.set":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		obj, key, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		value, err := compileValue(args[2], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s[%s] = %s", obj, key, value), true, nil

	case "obj.new":
		var pairs []string
		switch {
		case len(args) == 0:
		case args[0].Kind == ir.KindList:
			for _, a := range args {
				if a.Kind != ir.KindList || len(a.List) < 2 {
					return "", true, errArgument(op, "obj.new pair must have key and value")
				}
				key, err := compileValue(a.List[0], false)
				if err != nil {
					return "", true, err
				}
				val, err := compileValue(a.List[1], false)
				if err != nil {
					return "", true, err
				}
				pairs = append(pairs, fmt.Sprintf("[%s] = %s", key, val))
			}
		default:
			if len(args)%2 != 0 {
				return "", true, errArgument(op, "obj.new flat format requires even number of arguments")
			}
			for i := 0; i < len(args); i += 2 {
				key, err := compileValue(args[i], false)
				if err != nil {
					return "", true, err
				}
				val, err := compileValue(args[i+1], false)
				if err != nil {
					return "", true, err
				}
				pairs = append(pairs, fmt.Sprintf("[%s] = %s", key, val))
			}
		}
		return fmt.Sprintf("%s{ %s }", prefix, strings.Join(pairs, ", ")), true, nil

	case "obj.keys":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		obj, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(o) local r = {}; for k in pairs(o) do r[#r+1] = k end; return setmetatable(r, __array_mt) end)(%s)",
			prefix, obj), true, nil

	case "obj.values":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		obj, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(o) local r = {}; for _, v in pairs(o) do r[#r+1] = v end; return setmetatable(r, __array_mt) end)(%s)",
			prefix, obj), true, nil

	case "obj.has":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		obj, key, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s((%s)[%s] ~= nil)", prefix, obj, key), true, nil

	case "obj.delete":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		obj, key, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s[%s] = nil", obj, key), true, nil

	case "obj.merge":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		a, b, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(a, b) local r = {}; for k, v in pairs(a) do r[k] = v end; for k, v in pairs(b) do r[k] = v end; return r end)(%s, %s)",
			prefix, a, b), true, nil

	case "obj.entries":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		obj, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(o) local r = {}; for k, v in pairs(o) do r[#r+1] = setmetatable({k, v}, __array_mt) end; return setmetatable(r, __array_mt) end)(%s)",
			prefix, obj), true, nil

	case "obj.del":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		obj, key, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(o, k) local had = o[k] ~= nil; o[k] = nil; return had end)(%s, %s)",
			prefix, obj, key), true, nil

	case "obj.map":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		obj, fn, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(o, fn) local r = {}; for k, v in pairs(o) do r[k] = fn(v, k) end; return r end)(%s, %s)",
			prefix, obj, fn), true, nil

	case "obj.filter":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		obj, fn, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(o, fn) local r = {}; for k, v in pairs(o) do if fn(v, k) then r[k] = v end end; return r end)(%s, %s)",
			prefix, obj, fn), true, nil

	case "obj.reduce":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		obj, err := compileValue(args[0], false)
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
			"%s(function(o, fn, acc) for k, v in pairs(o) do acc = fn(acc, v, k) end; return acc end)(%s, %s, %s)",
			prefix, obj, fn, init), true, nil

	case "obj.flatMap":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		obj, fn, err := compileTwo(args)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(o, fn) local r = {}; for k, v in pairs(o) do local res = fn(v, k); if type(res) == 'table' then for rk, rv in pairs(res) do r[rk] = rv end end end; return r end)(%s, %s)",
			prefix, obj, fn), true, nil
	}

	return "", false, nil
}
