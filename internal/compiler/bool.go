package compiler

import (
	"fmt"

	"github.com/oriys/weft/internal/ir"
)

// compileBool compiles bool.* opcodes: comparisons, logical operators, and
// the nullish-coalescing/guard operators.
func compileBool(op string, args []ir.SExpr, prefix string) (string, bool, error) {
	switch op {
	case "==", "bool.eq":
		code, err := compileInfixOp("==", args, prefix)
		return code, true, err
	case "!=", "bool.neq":
		code, err := compileInfixOp("~=", args, prefix)
		return code, true, err
	case "<", "bool.lt":
		code, err := compileInfixOp("<", args, prefix)
		return code, true, err
	case "<=", "bool.lte":
		code, err := compileInfixOp("<=", args, prefix)
		return code, true, err
	case ">", "bool.gt":
		code, err := compileInfixOp(">", args, prefix)
		return code, true, err
	case ">=", "bool.gte":
		code, err := compileInfixOp(">=", args, prefix)
		return code, true, err

	case "&&", "bool.and":
		code, err := compileInfixOp("and", args, prefix)
		return code, true, err
	case "||", "bool.or":
		code, err := compileInfixOp("or", args, prefix)
		return code, true, err

	case "??", "bool.nullish":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		left, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		right, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(l, r) if l ~= nil and l ~= null then return l else return r end end)(%s, %s)",
			prefix, left, right), true, nil

	case "bool.guard":
		if len(args) < 2 {
			return "", true, errArgCount(op, 2, len(args))
		}
		left, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		right, err := compileValue(args[1], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf(
			"%s(function(l, r) if l == nil or l == null then return r else return l end end)(%s, %s)",
			prefix, left, right), true, nil

	case "!", "bool.not":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		arg, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%snot %s", prefix, arg), true, nil
	}

	return "", false, nil
}
