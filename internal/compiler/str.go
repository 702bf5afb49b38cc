package compiler

import (
	"fmt"
	"strings"

	"github.com/oriys/weft/internal/ir"
)

// compileStr compiles str.* opcodes.
func compileStr(op string, args []ir.SExpr, prefix string) (string, bool, error) {
	switch op {
	case "str.concat":
		compiled := make([]string, len(args))
		for i, a := range args {
			code, err := compileValue(a, false)
			if err != nil {
				return "", true, err
			}
			compiled[i] = code
		}
		return prefix + strings.Join(compiled, " .. "), true, nil

	case "str.len":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s#%s", prefix, arg), true, nil

	case "str.lower":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%sstring.lower(%s)", prefix, arg), true, nil

	case "str.upper":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%sstring.upper(%s)", prefix, arg), true, nil

	case "str.sub":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		s, err := compileValue(args[0], false)
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
		return fmt.Sprintf("%sstring.sub(%s, %s + 1, %s)", prefix, s, start, end), true, nil

	case "str.split":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		s, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		sep, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			`%s(function(s, sep) local t = {}; for m in string.gmatch(s, "([^"..sep.."]+)") do t[#t+1] = m end; return setmetatable(t, __array_mt) end)(%s, %s)`,
			prefix, s, sep), true, nil

	case "str.trim":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(`%sstring.match(%s, "^%%s*(.-)%%s*$")`, prefix, arg), true, nil

	case "str.indexOf":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		s, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		substr, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(s, p) local i = string.find(s, p, 1, true); return i and (i - 1) or -1 end)(%s, %s)",
			prefix, s, substr), true, nil

	case "str.includes":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		s, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		substr, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(string.find(%s, %s, 1, true) ~= nil)", prefix, s, substr), true, nil

	case "str.replace":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		s, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		pattern, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		replacement, err := compileValue(args[2], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(string.gsub(%s, %s, %s, 1))", prefix, s, pattern, replacement), true, nil

	case "str.slice":
		if len(args) == 0 {
			return "", true, errArgCount(op, 2, 0)
		}
		s, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		if len(args) == 2 {
			start, err := compileValue(args[1], false)
			if err != nil {
				return "", true, err
			}
			return fmt.Sprintf("%sstring.sub(%s, %s + 1)", prefix, s, start), true, nil
		}
		start, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		end, err := compileValue(args[2], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%sstring.sub(%s, %s + 1, %s)", prefix, s, start, end), true, nil

	case "str.join":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		list, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		sep, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%stable.concat(%s, %s)", prefix, list, sep), true, nil

	case "str.startsWith":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		s, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		prefixStr, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(string.sub(%s, 1, #(%s)) == %s)", prefix, s, prefixStr, prefixStr), true, nil

	case "str.endsWith":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		s, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		suffix, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(string.sub(%s, -#(%s)) == %s)", prefix, s, suffix, suffix), true, nil

	case "str.repeat":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		s, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		count, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%sstring.rep(%s, %s)", prefix, s, count), true, nil
	}

	return "", false, nil
}
