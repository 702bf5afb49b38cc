package ir

import (
	"encoding/json"
	"testing"
)

func TestCallRoundTrip(t *testing.T) {
	node := Call("std.if", Bool(true), Number(1), Number(2))

	data, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(data), `["std.if",true,1,2]`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	var decoded SExpr
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.IsCall() {
		t.Fatal("expected a call node")
	}

	op, ok := decoded.Opcode()
	if !ok || op != "std.if" {
		t.Fatalf("opcode = %q, %v", op, ok)
	}

	args, ok := decoded.Args()
	if !ok || len(args) != 3 {
		t.Fatalf("args = %v, %v", args, ok)
	}
}

func TestListStartingWithStringIsACall(t *testing.T) {
	tests := []struct {
		name string
		node SExpr
		want bool
	}{
		{"string head", List([]SExpr{String("math.add"), Number(1), Number(2)}), true},
		{"numeric head", List([]SExpr{Number(1), Number(2)}), false},
		{"empty list", List(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.IsCall(); got != tt.want {
				t.Errorf("IsCall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNullRoundTrip(t *testing.T) {
	data, err := json.Marshal(Null())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "null" {
		t.Fatalf("got %s, want null", data)
	}

	var decoded SExpr
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.IsNull() {
		t.Fatal("expected null node")
	}
}

func TestToAnyFromAnyRoundTrip(t *testing.T) {
	node := Object(map[string]SExpr{
		"a": Number(1),
		"b": List([]SExpr{String("x"), Bool(false)}),
	})
	back := FromAny(node.ToAny())

	data1, _ := json.Marshal(node)
	data2, _ := json.Marshal(back)
	var v1, v2 any
	json.Unmarshal(data1, &v1)
	json.Unmarshal(data2, &v2)

	b1, _ := json.Marshal(v1)
	b2, _ := json.Marshal(v2)
	if string(b1) != string(b2) {
		t.Fatalf("round trip mismatch: %s vs %s", b1, b2)
	}
}
