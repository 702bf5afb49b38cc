package build_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/oriys/weft/internal/compiler"
	"github.com/oriys/weft/internal/ir"
	"github.com/oriys/weft/internal/ir/build"
)

func TestBuiltIRMatchesHandWrittenTree(t *testing.T) {
	built := build.Seq(
		build.Let("total", build.N(0)),
		build.While(build.Lte(build.AsNum(build.Var("total")), build.N(10)),
			build.Set("total", build.Add(build.AsNum(build.Var("total")), build.N(1)))),
		build.Return(build.Var("total")),
	).Erase()

	manual := ir.Call("std.seq",
		ir.Call("std.let", ir.String("total"), ir.Number(0)),
		ir.Call("std.while",
			ir.Call("<=", ir.Call("std.var", ir.String("total")), ir.Number(10)),
			ir.Call("std.set", ir.String("total"),
				ir.Call("+", ir.Call("std.var", ir.String("total")), ir.Number(1)))),
		ir.Call("std.return", ir.Call("std.var", ir.String("total"))),
	)

	builtJSON, err := json.Marshal(built)
	if err != nil {
		t.Fatalf("marshal built: %v", err)
	}
	manualJSON, err := json.Marshal(manual)
	if err != nil {
		t.Fatalf("marshal manual: %v", err)
	}
	if string(builtJSON) != string(manualJSON) {
		t.Errorf("built = %s\nmanual = %s", builtJSON, manualJSON)
	}
}

func TestBuiltIRCompiles(t *testing.T) {
	expr := build.IfElse(build.Eq(build.Arg(0), build.S("open")),
		build.SetKey(build.This(), build.S("state"), build.S("open")),
		build.Throw(build.Concat(build.S("unknown command: "), build.Arg(0))),
	).Erase()

	code, err := compiler.Compile(expr)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, want := range []string{"if (", "__this", `["state"] = "open"`, "error("} {
		if !strings.Contains(code, want) {
			t.Errorf("expected %q in %q", want, code)
		}
	}
}

func TestHostOpBuilders(t *testing.T) {
	expr := build.CallVerb(build.N(7), build.S("greet"), build.List(build.S("hi"))).Erase()
	code, err := compiler.Compile(expr)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := `return call(7, "greet", setmetatable({ "hi" }, __array_mt))`
	if code != want {
		t.Errorf("got %q, want %q", code, want)
	}
}
