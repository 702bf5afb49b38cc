package compiler

import (
	"fmt"

	"github.com/oriys/weft/internal/ir"
)

// compileJSON compiles json.* opcodes. These are not part of the lowering
// corpus this compiler was ported from; they exist because entities need
// to serialize arbitrary values when building capability params or
// arguments for a scheduled verb call. encode/decode defer to the
// __json_encode/__json_decode host functions internal/exec installs,
// since a faithful JSON encoder isn't worth hand-rolling in Lua.
func compileJSON(op string, args []ir.SExpr, prefix string) (string, bool, error) {
	switch op {
	case "json.encode":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		value, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s__json_encode(%s)", prefix, value), true, nil

	case "json.decode":
		if len(args) == 0 {
			return "", true, errArgCount(op, 1, 0)
		}
		value, err := compileValue(args[0], false)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s__json_decode(%s)", prefix, value), true, nil
	}

	return "", false, nil
}
