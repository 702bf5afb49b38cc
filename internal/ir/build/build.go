// Package build provides phantom-typed builders over ir.SExpr for Go code
// that authors verb IR directly (seed data, tests). Each wrapper type (Num,
// Str, Bool, Obj, Arr, Null, Any) exists only at compile time to catch
// mis-typed opcode arguments at the call site; Erase flattens everything
// back to the untyped SExpr tree that is persisted and compiled.
package build

import "github.com/oriys/weft/internal/ir"

// Expr is any typed builder value. Erase returns the underlying IR node.
type Expr interface {
	Erase() ir.SExpr
}

// The phantom wrappers. Any is the escape hatch for positions whose type
// depends on runtime data (property reads, verb args, host-call results).
type (
	Num  struct{ x ir.SExpr }
	Str  struct{ x ir.SExpr }
	Bool struct{ x ir.SExpr }
	Obj  struct{ x ir.SExpr }
	Arr  struct{ x ir.SExpr }
	Null struct{ x ir.SExpr }
	Any  struct{ x ir.SExpr }
)

func (v Num) Erase() ir.SExpr  { return v.x }
func (v Str) Erase() ir.SExpr  { return v.x }
func (v Bool) Erase() ir.SExpr { return v.x }
func (v Obj) Erase() ir.SExpr  { return v.x }
func (v Arr) Erase() ir.SExpr  { return v.x }
func (v Null) Erase() ir.SExpr { return v.x }
func (v Any) Erase() ir.SExpr  { return v.x }

func erase(args []Expr) []ir.SExpr {
	out := make([]ir.SExpr, len(args))
	for i, a := range args {
		out[i] = a.Erase()
	}
	return out
}

// Literals.

func N(v float64) Num   { return Num{ir.Number(v)} }
func S(v string) Str    { return Str{ir.String(v)} }
func B(v bool) Bool     { return Bool{ir.Bool(v)} }
func Nil() Null         { return Null{ir.Null()} }
func Raw(x ir.SExpr) Any { return Any{x} }

// Control and binding (std.*).

func Seq(steps ...Expr) Any { return Any{ir.Call("std.seq", erase(steps)...)} }

func If(cond Bool, then Expr) Any {
	return Any{ir.Call("std.if", cond.Erase(), then.Erase())}
}

func IfElse(cond Bool, then, otherwise Expr) Any {
	return Any{ir.Call("std.if", cond.Erase(), then.Erase(), otherwise.Erase())}
}

func While(cond Bool, body Expr) Any {
	return Any{ir.Call("std.while", cond.Erase(), body.Erase())}
}

func For(name string, over Arr, body Expr) Any {
	return Any{ir.Call("std.for", ir.String(name), over.Erase(), body.Erase())}
}

func Let(name string, value Expr) Any {
	return Any{ir.Call("std.let", ir.String(name), value.Erase())}
}

func Set(name string, value Expr) Any {
	return Any{ir.Call("std.set", ir.String(name), value.Erase())}
}

func Var(name string) Any  { return Any{ir.Call("std.var", ir.String(name))} }
func Arg(index int) Any    { return Any{ir.Call("std.arg", ir.Number(float64(index)))} }
func Args() Arr            { return Arr{ir.Call("std.args")} }
func This() Obj            { return Obj{ir.Call("std.this")} }
func Caller() Num          { return Num{ir.Call("std.caller")} }
func Return(value Expr) Any { return Any{ir.Call("std.return", value.Erase())} }
func Throw(message Str) Any { return Any{ir.Call("std.throw", message.Erase())} }

func Try(body Expr) Any { return Any{ir.Call("std.try", body.Erase())} }

func TryCatch(body, handler Expr) Any {
	return Any{ir.Call("std.try", body.Erase(), handler.Erase())}
}

func Lambda(params []string, body Expr) Any {
	ps := make([]ir.SExpr, len(params))
	for i, p := range params {
		ps[i] = ir.String(p)
	}
	return Any{ir.Call("std.lambda", ir.List(ps), body.Erase())}
}

// Arithmetic and comparison.

func Add(args ...Num) Num { return Num{ir.Call("+", erase(numExprs(args))...)} }
func Sub(args ...Num) Num { return Num{ir.Call("-", erase(numExprs(args))...)} }
func Mul(args ...Num) Num { return Num{ir.Call("*", erase(numExprs(args))...)} }
func Div(args ...Num) Num { return Num{ir.Call("/", erase(numExprs(args))...)} }

func Eq(a, b Expr) Bool  { return Bool{ir.Call("==", a.Erase(), b.Erase())} }
func Neq(a, b Expr) Bool { return Bool{ir.Call("!=", a.Erase(), b.Erase())} }
func Lt(a, b Num) Bool   { return Bool{ir.Call("<", a.Erase(), b.Erase())} }
func Lte(a, b Num) Bool  { return Bool{ir.Call("<=", a.Erase(), b.Erase())} }
func Gt(a, b Num) Bool   { return Bool{ir.Call(">", a.Erase(), b.Erase())} }
func Gte(a, b Num) Bool  { return Bool{ir.Call(">=", a.Erase(), b.Erase())} }

func And(args ...Bool) Bool { return Bool{ir.Call("&&", erase(boolExprs(args))...)} }
func Or(args ...Bool) Bool  { return Bool{ir.Call("||", erase(boolExprs(args))...)} }
func Not(v Bool) Bool       { return Bool{ir.Call("!", v.Erase())} }

// Casts. These reinterpret an Any (a property read, a verb argument, a host
// result) as a concrete type; like everything else here they exist only at
// authoring time and never check anything at runtime.

func AsNum(v Any) Num   { return Num{v.x} }
func AsStr(v Any) Str   { return Str{v.x} }
func AsBool(v Any) Bool { return Bool{v.x} }
func AsObj(v Any) Obj   { return Obj{v.x} }
func AsArr(v Any) Arr   { return Arr{v.x} }

// Strings, lists, objects.

// Concat accepts any expression: the lowering's concatenation coerces
// numbers, so Concat(S("n="), Get(This(), S("count"))) is legal.
func Concat(args ...Expr) Str { return Str{ir.Call("str.concat", erase(args)...)} }

func List(items ...Expr) Arr { return Arr{ir.Call("list.new", erase(items)...)} }

func ListGet(list Arr, index Num) Any {
	return Any{ir.Call("list.get", list.Erase(), index.Erase())}
}

func ListPush(list Arr, value Expr) Any {
	return Any{ir.Call("list.push", list.Erase(), value.Erase())}
}

func ListLen(list Arr) Num { return Num{ir.Call("list.len", list.Erase())} }

// Object builds an obj.new call from alternating key, value pairs.
func Object(pairs ...Expr) Obj { return Obj{ir.Call("obj.new", erase(pairs)...)} }

func Get(obj Obj, key Str) Any {
	return Any{ir.Call("obj.get", obj.Erase(), key.Erase())}
}

func GetOr(obj Obj, key Str, fallback Expr) Any {
	return Any{ir.Call("obj.get", obj.Erase(), key.Erase(), fallback.Erase())}
}

func SetKey(obj Obj, key Str, value Expr) Any {
	return Any{ir.Call("obj.set", obj.Erase(), key.Erase(), value.Erase())}
}

// Host operations.

func Entity(id Num) Obj { return Obj{ir.Call("entity", id.Erase())} }

func Update(id Num, patch Obj) Any {
	return Any{ir.Call("update", id.Erase(), patch.Erase())}
}

func Create(props Obj, prototypeID Num) Num {
	return Num{ir.Call("create", props.Erase(), prototypeID.Erase())}
}

func CallVerb(target Num, verb Str, args Arr) Any {
	return Any{ir.Call("call", target.Erase(), verb.Erase(), args.Erase())}
}

func Schedule(verb Str, args Arr, delayMS Num) Num {
	return Num{ir.Call("schedule", verb.Erase(), args.Erase(), delayMS.Erase())}
}

func Mint(authority Str, kind Str, params Obj) Str {
	return Str{ir.Call("mint", authority.Erase(), kind.Erase(), params.Erase())}
}

func Delegate(parent Str, restrictions Obj) Str {
	return Str{ir.Call("delegate", parent.Erase(), restrictions.Erase())}
}

// AnyOf upcasts a typed value to Any, for positions like If branches where
// the two arms legitimately carry different types.
func AnyOf(v Expr) Any { return Any{v.Erase()} }

func numExprs(args []Num) []Expr {
	out := make([]Expr, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func boolExprs(args []Bool) []Expr {
	out := make([]Expr, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

