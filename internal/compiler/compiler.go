// Package compiler lowers the verb IR (internal/ir.SExpr) to Lua source
// text that internal/exec loads into a gopher-lua state. Compilation is
// pure and side-effect free: the same SExpr always compiles to the same
// Lua string, and nothing here touches the store or the network.
package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/oriys/weft/internal/ir"
)

// CompileError is returned for S-expressions the compiler cannot lower.
type CompileError struct {
	Opcode   string
	Expected int
	Got      int
	Reason   string
}

func (e *CompileError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("compiler: %s: %s", e.Opcode, e.Reason)
	}
	return fmt.Sprintf("compiler: %s: expected %d args, got %d", e.Opcode, e.Expected, e.Got)
}

func errArgCount(opcode string, expected, got int) error {
	return &CompileError{Opcode: opcode, Expected: expected, Got: got}
}

func errArgument(opcode, reason string) error {
	return &CompileError{Opcode: opcode, Reason: reason}
}

var luaKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true, "or": true,
	"repeat": true, "return": true, "then": true, "true": true, "until": true,
	"while": true,
}

// toLuaName turns an arbitrary verb/variable name into a safe Lua
// identifier: invalid characters become underscores, a leading digit or a
// reserved keyword gets an underscore prefix.
func toLuaName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	safe := b.String()
	if safe == "" {
		safe = "_"
	}
	if safe[0] >= '0' && safe[0] <= '9' {
		safe = "_" + safe
	}
	if luaKeywords[safe] {
		safe = "_" + safe
	}
	return safe
}

// luaStringLiteral renders s as a Lua string literal, preferring [[ ]]
// long-bracket syntax for multiline strings that don't themselves contain
// "]]".
func luaStringLiteral(s string) string {
	if strings.Contains(s, "\n") && !strings.Contains(s, "]]") {
		return "[[" + s + "]]"
	}
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return `"` + replacer.Replace(s) + `"`
}

// Compile lowers an IR program to a Lua chunk that returns its value.
func Compile(expr ir.SExpr) (string, error) {
	return compileValue(expr, true)
}

// Prelude returns the fixed Lua source internal/exec loads into every
// fresh VM before a compiled verb body runs. It defines the handful of
// target-language-leakage shims the compiler's output assumes exist as
// globals: the `null` sentinel (distinct from Lua's `nil`, so that null
// survives inside arrays/objects on the JSON round trip), the `__array_mt`
// metatable list.new/obj.values/etc. tag empty and non-empty arrays with,
// and `__is_array`, which std.typeof uses to distinguish a tagged array
// table from a plain object table.
func Prelude() string {
	return `
null = setmetatable({}, { __tostring = function() return "null" end })
__array_mt = {}
function __is_array(v)
	return type(v) == "table" and getmetatable(v) == __array_mt
end
`
}

func compileValue(node ir.SExpr, shouldReturn bool) (string, error) {
	prefix := ""
	if shouldReturn {
		prefix = "return "
	}

	switch node.Kind {
	case ir.KindNull:
		return prefix + "null", nil
	case ir.KindBool:
		if node.Bool {
			return prefix + "true", nil
		}
		return prefix + "false", nil
	case ir.KindNumber:
		return prefix + formatLuaNumber(node.Number), nil
	case ir.KindString:
		return prefix + luaStringLiteral(node.Str), nil
	case ir.KindObject:
		pairs := make([]string, 0, len(node.Object))
		for _, key := range sortedKeys(node.Object) {
			valCode, err := compileValue(node.Object[key], false)
			if err != nil {
				return "", err
			}
			pairs = append(pairs, fmt.Sprintf("[%s] = %s", luaStringLiteral(key), valCode))
		}
		return fmt.Sprintf("%s{ %s }", prefix, strings.Join(pairs, ", ")), nil
	case ir.KindList:
		if len(node.List) == 0 {
			return prefix + "{}", nil
		}
		if op, ok := node.Opcode(); ok {
			args, _ := node.Args()
			return compileOpcode(op, args, shouldReturn)
		}
		elements := make([]string, len(node.List))
		for i, item := range node.List {
			code, err := compileValue(item, false)
			if err != nil {
				return "", err
			}
			elements[i] = code
		}
		return fmt.Sprintf("%s{ %s }", prefix, strings.Join(elements, ", ")), nil
	default:
		return "", errArgument("<unknown>", "unrecognized IR node kind")
	}
}

func formatLuaNumber(n float64) string {
	if n != n { // NaN
		return "(0/0)"
	}
	if n > 1.7976931348623157e+308 {
		return "(1/0)"
	}
	if n < -1.7976931348623157e+308 {
		return "(-1/0)"
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func compileOpcode(op string, args []ir.SExpr, shouldReturn bool) (string, error) {
	prefix := ""
	if shouldReturn {
		prefix = "return "
	}

	if code, ok, err := compileStdCall(op, args, shouldReturn); err != nil {
		return "", err
	} else if ok {
		return code, nil
	}
	if code, ok, err := compileMath(op, args, prefix); err != nil {
		return "", err
	} else if ok {
		return code, nil
	}
	if code, ok, err := compileBool(op, args, prefix); err != nil {
		return "", err
	} else if ok {
		return code, nil
	}
	if code, ok, err := compileStr(op, args, prefix); err != nil {
		return "", err
	} else if ok {
		return code, nil
	}
	if code, ok, err := compileList(op, args, prefix); err != nil {
		return "", err
	} else if ok {
		return code, nil
	}
	if code, ok, err := compileObj(op, args, prefix); err != nil {
		return "", err
	} else if ok {
		return code, nil
	}
	if code, ok, err := compileJSON(op, args, prefix); err != nil {
		return "", err
	} else if ok {
		return code, nil
	}

	// Unrecognized opcode: emit a plain function call so host-bridge
	// globals (entity, update, create, call, schedule, mint, delegate,
	// plugin namespaces) installed by internal/exec resolve at runtime.
	compiled := make([]string, len(args))
	for i, a := range args {
		code, err := compileValue(a, false)
		if err != nil {
			return "", err
		}
		compiled[i] = code
	}
	funcName := strings.ReplaceAll(op, ".", "_")
	return fmt.Sprintf("%s%s(%s)", prefix, funcName, strings.Join(compiled, ", ")), nil
}

// compileInfixOp renders a binary/n-ary infix expression joined by luaOp.
func compileInfixOp(luaOp string, args []ir.SExpr, prefix string) (string, error) {
	if len(args) == 0 {
		return "", errArgCount(luaOp, 1, 0)
	}
	compiled := make([]string, len(args))
	for i, a := range args {
		code, err := compileValue(a, false)
		if err != nil {
			return "", err
		}
		compiled[i] = code
	}
	return fmt.Sprintf("%s(%s)", prefix, strings.Join(compiled, " "+luaOp+" ")), nil
}

// sortedKeys returns an object node's keys in lexicographic order. Go map
// iteration order is randomized; compilation must be deterministic, so
// every object literal is emitted with its keys sorted.
func sortedKeys(obj map[string]ir.SExpr) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compileStatement compiles node for a statement position: statement opcodes
// compile as themselves, anything else (a bare expression) is bound to the
// throwaway _ so the emitted line stays a syntactically valid Lua statement.
func compileStatement(node ir.SExpr) (string, error) {
	code, err := compileValue(node, false)
	if err != nil {
		return "", err
	}
	if isStatementOpcode(node) {
		return code, nil
	}
	return "_ = " + code, nil
}

// isStatementOpcode reports whether expr compiles to a Lua statement (not
// an expression needing a "return "/"_ = " prefix) — used by std.seq to
// decide how to sequence each of its sub-expressions.
func isStatementOpcode(expr ir.SExpr) bool {
	op, ok := expr.Opcode()
	if !ok {
		return false
	}
	switch op {
	case "std.let", "std.set", "std.if", "std.while", "std.for", "std.break",
		"std.continue", "std.return", "std.seq", "obj.set", "obj.delete",
		"list.set", "list.push":
		return true
	}
	return false
}

// sexprToLuaTable renders an IR node as a literal Lua table/value,
// bypassing opcode interpretation entirely — used by std.quote to return
// the raw S-expression as data rather than executing it.
func sexprToLuaTable(expr ir.SExpr, prefix string) (string, error) {
	switch expr.Kind {
	case ir.KindNull:
		return prefix + "nil", nil
	case ir.KindBool:
		if expr.Bool {
			return prefix + "true", nil
		}
		return prefix + "false", nil
	case ir.KindNumber:
		return prefix + formatLuaNumber(expr.Number), nil
	case ir.KindString:
		return prefix + luaStringLiteral(expr.Str), nil
	case ir.KindList:
		elements := make([]string, len(expr.List))
		for i, item := range expr.List {
			code, err := sexprToLuaTable(item, "")
			if err != nil {
				return "", err
			}
			elements[i] = code
		}
		return fmt.Sprintf("%s{ %s }", prefix, strings.Join(elements, ", ")), nil
	case ir.KindObject:
		pairs := make([]string, 0, len(expr.Object))
		for _, key := range sortedKeys(expr.Object) {
			val, err := sexprToLuaTable(expr.Object[key], "")
			if err != nil {
				return "", err
			}
			pairs = append(pairs, fmt.Sprintf("[%s] = %s", luaStringLiteral(key), val))
		}
		return fmt.Sprintf("%s{ %s }", prefix, strings.Join(pairs, ", ")), nil
	default:
		return "", errArgument("std.quote", "unrecognized IR node kind")
	}
}
