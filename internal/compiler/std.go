package compiler

import (
	"fmt"
	"strings"

	"github.com/oriys/weft/internal/ir"
)

// compileStdCall compiles std.* opcodes. ok is false if op isn't a std.*
// opcode, in which case compileOpcode tries the next family.
func compileStdCall(op string, args []ir.SExpr, shouldReturn bool) (string, bool, error) {
	prefix := ""
	if shouldReturn {
		prefix = "return "
	}

	switch op {
	case "std.seq":
		if len(args) == 0 {
			if shouldReturn {
				return "return nil", true, nil
			}
			return "_ = nil", true, nil
		}
		var b strings.Builder
		for i, arg := range args {
			isLast := i == len(args)-1
			if isLast && shouldReturn {
				code, err := compileValue(arg, true)
				if err != nil {
					return "", true, err
				}
				b.WriteString(code)
			} else {
				code, err := compileStatement(arg)
				if err != nil {
					return "", true, err
				}
				b.WriteString(code)
			}
			b.WriteByte('\n')
		}
		return b.String(), true, nil

	case "std.if":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		cond, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		compileBranch := compileStatement
		if shouldReturn {
			compileBranch = func(node ir.SExpr) (string, error) { return compileValue(node, true) }
		}
		thenBranch, err := compileBranch(args[1])
		if err != nil {
			return "", true, err
		}
		var elseCode string
		hasElse := false
		if len(args) > 2 {
			elseCode, err = compileBranch(args[2])
			if err != nil {
				return "", true, err
			}
			hasElse = true
		} else if shouldReturn {
			elseCode = "return nil"
			hasElse = true
		}
		if hasElse {
			return fmt.Sprintf("if %s then\n%s\nelse\n%s\nend", cond, thenBranch, elseCode), true, nil
		}
		return fmt.Sprintf("if %s then\n%s\nend", cond, thenBranch), true, nil

	case "std.while":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		cond, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		body, err := compileStatement(args[1])
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("while %s do\n%s\n::continue_label::\nend", cond, body), true, nil

	case "std.for":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		if args[0].Kind != ir.KindString {
			return "", true, errArgument(op, "for variable must be string")
		}
		iter, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		body, err := compileStatement(args[2])
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("for _, %s in ipairs(%s) do\n%s\n::continue_label::\nend",
			toLuaName(args[0].Str), iter, body), true, nil

	case "std.let":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		if args[0].Kind != ir.KindString {
			return "", true, errArgument(op, "let variable must be string")
		}
		value, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("local %s = %s", toLuaName(args[0].Str), value), true, nil

	case "std.set":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		if args[0].Kind != ir.KindString {
			return "", true, errArgument(op, "set variable must be string")
		}
		value, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s = %s", toLuaName(args[0].Str), value), true, nil

	case "std.var":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		if args[0].Kind != ir.KindString {
			return "", true, errArgument(op, "var name must be string")
		}
		return prefix + toLuaName(args[0].Str), true, nil

	case "std.arg":
		if len(args) != 1 {
			return "", true, errArgCount(op, 1, len(args))
		}
		index, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(__args[%s + 1])", prefix, index), true, nil

	case "std.args":
		if len(args) != 0 {
			return "", true, errArgCount(op, 0, len(args))
		}
		return prefix + "__args", true, nil

	case "std.this":
		if len(args) != 0 {
			return "", true, errArgCount(op, 0, len(args))
		}
		return prefix + "__this", true, nil

	case "std.caller":
		if len(args) != 0 {
			return "", true, errArgCount(op, 0, len(args))
		}
		return prefix + "__caller", true, nil

	case "std.break":
		return "break", true, nil

	case "std.continue":
		return "goto continue_label", true, nil

	case "std.return":
		if len(args) == 0 {
			return "return nil", true, nil
		}
		value, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return "return " + value, true, nil

	case "std.apply":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		fn, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		callArgs := make([]string, len(args)-1)
		for i, a := range args[1:] {
			code, err := compileValue(a, false)
			if err != nil {
				return "", true, err
			}
			callArgs[i] = code
		}
		return fmt.Sprintf("%s(%s)(%s)", prefix, fn, strings.Join(callArgs, ", ")), true, nil

	case "std.lambda":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		if args[0].Kind != ir.KindList {
			return "", true, errArgument(op, "lambda params must be list")
		}
		paramNames := make([]string, len(args[0].List))
		for i, p := range args[0].List {
			if p.Kind != ir.KindString {
				return "", true, errArgument(op, "param must be string")
			}
			paramNames[i] = toLuaName(p.Str)
		}
		body, err := compileValue(args[1], true)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%sfunction(%s)\n%s\nend", prefix, strings.Join(paramNames, ", "), body), true, nil

	case "std.quote":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		code, err := sexprToLuaTable(args[0], prefix)
		return code, true, err

	case "std.typeof":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		value, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(v) if v == null then return 'null' end; local t = type(v); if t == 'table' then return __is_array(v) and 'array' or 'object' elseif t == 'nil' then return 'null' else return t end end)(%s)",
			prefix, value), true, nil

	case "std.string":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		value, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(v) if v == nil or v == null then return 'null' elseif type(v) == 'boolean' then return v and 'true' or 'false' else return tostring(v) end end)(%s)",
			prefix, value), true, nil

	case "std.number":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		value, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%stonumber(%s)", prefix, value), true, nil

	case "std.boolean":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		value, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(function(v) return v ~= nil and v ~= null end)(%s)", prefix, value), true, nil

	case "std.throw":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		message, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("error(%s)", message), true, nil

	case "std.log":
		values := make([]string, len(args))
		for i, a := range args {
			code, err := compileValue(a, false)
			if err != nil {
				return "", true, err
			}
			values[i] = code
		}
		return fmt.Sprintf("print(%s)", strings.Join(values, ", ")), true, nil

	case "std.warn":
		values := make([]string, len(args))
		for i, a := range args {
			code, err := compileValue(a, false)
			if err != nil {
				return "", true, err
			}
			values[i] = code
		}
		return fmt.Sprintf(`io.stderr:write(%s .. "\n")`, strings.Join(values, ` .. " " .. `)), true, nil

	case "std.try":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		body, err := compileValue(args[0], true)
		if err != nil {
			return "", true, err
		}
		if len(args) > 1 {
			catchHandler, err := compileValue(args[1], false)
			if err != nil {
				return "", true, err
			}
			return fmt.Sprintf(
				"%s(function() local ok, result = pcall(function() %s end); if ok then return result else return (%s)(result) end end)()",
				prefix, body, catchHandler), true, nil
		}
		return fmt.Sprintf(
			"%s(function() local ok, result = pcall(function() %s end); if ok then return result else return nil end end)()",
			prefix, body), true, nil
	}

	return "", false, nil
}
