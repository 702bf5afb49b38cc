// Package ir implements the typed S-expression intermediate representation
// that verb bodies are persisted and transported as.
//
// SExpr is a small closed sum type (Null, Bool, Number, String, Object,
// List) serialized untagged: on the wire it is just plain JSON, and a List
// whose first element is a String is interpreted as an opcode call
// [opcode, arg, ...]. The phantom-typed builders in the build subpackage
// (Str, Num, Bool, Obj, Arr, Null, Any) exist only to catch authoring
// mistakes at compile time in Go code that constructs IR programmatically
// (tests, seed data); they have no runtime representation and are erased
// before serialization.
package ir

import (
	"encoding/json"
	"fmt"
)

// Kind tags which alternative of the sum type a Node holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindList
)

// SExpr is an untyped IR node. The phantom type markers in the build
// subpackage exist only to
// make builder call sites self-documenting; SExpr itself carries no type
// parameter since Go generics would force a single concrete element type
// for List/Object, which the sum type's heterogeneity rules out.
type SExpr struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Object map[string]SExpr
	List   []SExpr
}

// Null returns the null IR value.
func Null() SExpr { return SExpr{Kind: KindNull} }

// Bool returns a boolean IR value.
func Bool(v bool) SExpr { return SExpr{Kind: KindBool, Bool: v} }

// Number returns a numeric IR value.
func Number(v float64) SExpr { return SExpr{Kind: KindNumber, Number: v} }

// String returns a string IR value.
func String(v string) SExpr { return SExpr{Kind: KindString, Str: v} }

// Object returns an object IR value.
func Object(v map[string]SExpr) SExpr { return SExpr{Kind: KindObject, Object: v} }

// List returns a list IR value.
func List(v []SExpr) SExpr { return SExpr{Kind: KindList, List: v} }

// Call builds an opcode-call node: [opcode, args...].
func Call(opcode string, args ...SExpr) SExpr {
	items := make([]SExpr, 0, len(args)+1)
	items = append(items, String(opcode))
	items = append(items, args...)
	return SExpr{Kind: KindList, List: items}
}

// IsNull reports whether this node is the null literal.
func (s SExpr) IsNull() bool { return s.Kind == KindNull }

// IsCall reports whether this node is an opcode call (a non-empty list
// whose first element is a string).
func (s SExpr) IsCall() bool {
	return s.Kind == KindList && len(s.List) > 0 && s.List[0].Kind == KindString
}

// Opcode returns the opcode name if this is a call node.
func (s SExpr) Opcode() (string, bool) {
	if !s.IsCall() {
		return "", false
	}
	return s.List[0].Str, true
}

// Args returns the call arguments if this is a call node.
func (s SExpr) Args() ([]SExpr, bool) {
	if !s.IsCall() {
		return nil, false
	}
	return s.List[1:], true
}

// MarshalJSON serializes the node untagged per its Kind.
func (s SExpr) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(s.Bool)
	case KindNumber:
		return json.Marshal(s.Number)
	case KindString:
		return json.Marshal(s.Str)
	case KindObject:
		return json.Marshal(s.Object)
	case KindList:
		return json.Marshal(s.List)
	default:
		return nil, fmt.Errorf("ir: unknown SExpr kind %d", s.Kind)
	}
}

// UnmarshalJSON deserializes untagged JSON into the matching Kind,
// resolving scalars first (null, bool, number, string) and structure
// (object vs. array) last.
func (s *SExpr) UnmarshalJSON(data []byte) error {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*s = fromAny(probe)
	return nil
}

func fromAny(v any) SExpr {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []any:
		items := make([]SExpr, len(t))
		for i, e := range t {
			items[i] = fromAny(e)
		}
		return List(items)
	case map[string]any:
		obj := make(map[string]SExpr, len(t))
		for k, e := range t {
			obj[k] = fromAny(e)
		}
		return Object(obj)
	default:
		return Null()
	}
}

// ToAny converts an SExpr back to a plain Go value tree (map[string]any,
// []any, string, float64, bool, nil) for JSON re-encoding or for building
// the values passed across the host bridge.
func (s SExpr) ToAny() any {
	switch s.Kind {
	case KindNull:
		return nil
	case KindBool:
		return s.Bool
	case KindNumber:
		return s.Number
	case KindString:
		return s.Str
	case KindObject:
		out := make(map[string]any, len(s.Object))
		for k, v := range s.Object {
			out[k] = v.ToAny()
		}
		return out
	case KindList:
		out := make([]any, len(s.List))
		for i, v := range s.List {
			out[i] = v.ToAny()
		}
		return out
	default:
		return nil
	}
}

// FromAny builds an SExpr tree from a plain Go value (the inverse of ToAny),
// accepting the types produced by encoding/json: map[string]any, []any,
// string, float64, bool, nil, and additionally int/int64 for convenience
// when building IR by hand in Go code.
func FromAny(v any) SExpr {
	switch t := v.(type) {
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	default:
		return fromAny(v)
	}
}
