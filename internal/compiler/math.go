package compiler

import (
	"fmt"
	"strings"

	"github.com/oriys/weft/internal/ir"
)

// compileMath compiles math.* opcodes and the bare arithmetic operators.
func compileMath(op string, args []ir.SExpr, prefix string) (string, bool, error) {
	switch op {
	case "+", "math.add":
		code, err := compileInfixOp("+", args, prefix)
		return code, true, err
	case "-", "math.sub":
		code, err := compileInfixOp("-", args, prefix)
		return code, true, err
	case "*", "math.mul":
		code, err := compileInfixOp("*", args, prefix)
		return code, true, err
	case "/", "math.div":
		code, err := compileInfixOp("/", args, prefix)
		return code, true, err
	case "%", "math.mod":
		code, err := compileInfixOp("%", args, prefix)
		return code, true, err
	case "^", "math.pow":
		code, err := compileInfixOp("^", args, prefix)
		return code, true, err

	case "math.neg":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(-(%s))", prefix, arg), true, nil

	case "math.abs", "math.floor", "math.ceil", "math.sqrt", "math.sin",
		"math.cos", "math.tan", "math.asin", "math.acos", "math.atan",
		"math.log", "math.exp":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		fn := op[len("math."):]
		return fmt.Sprintf("%smath.%s(%s)", prefix, fn, arg), true, nil

	case "math.min":
		code, err := compileVariadicMathCall("min", args, prefix)
		return code, true, err
	case "math.max":
		code, err := compileVariadicMathCall("max", args, prefix)
		return code, true, err

	case "math.trunc":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(math.modf(%s))", prefix, arg), true, nil

	case "math.round":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%smath.floor(%s + 0.5)", prefix, arg), true, nil

	case "math.atan2":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		y, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		x, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%smath.atan2(%s, %s)", prefix, y, x), true, nil

	case "math.log2":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(math.log(%s) / math.log(2))", prefix, arg), true, nil

	case "math.log10":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%smath.log10(%s)", prefix, arg), true, nil

	case "math.clamp":
		if len(args) < 3 {
			return "", true, errArgCount(op, 3, len(args))
		}
		val, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		minVal, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		maxVal, err := compileValue(args[2], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%smath.min(math.max(%s, %s), %s)", prefix, val, minVal, maxVal), true, nil

	case "math.sign":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s(function(x) return x > 0 and 1 or (x < 0 and -1 or 0) end)(%s)", prefix, arg), true, nil
	}

	return "", false, nil
}

func compileVariadicMathCall(fn string, args []ir.SExpr, prefix string) (string, error) {
	if len(args) == 0 {
		return "", errArgCount("math."+fn, 1, 0)
	}
	compiled := make([]string, len(args))
	for i, a := range args {
		code, err := compileValue(a, false)
		if err != nil {
			return "", err
		}
		compiled[i] = code
	}
	return fmt.Sprintf("%smath.%s(%s)", prefix, fn, strings.Join(compiled, ", ")), nil
}
