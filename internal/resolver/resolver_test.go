package resolver

import (
	"encoding/json"
	"testing"

	"github.com/oriys/weft/internal/domain"
)

func link(id domain.EntityID, proto *domain.EntityID, props string) Link {
	return Link{ID: id, PrototypeID: proto, Props: json.RawMessage(props)}
}

func TestMergeProps_LeafWins(t *testing.T) {
	chain := []Link{
		link(1, nil, `{"name":"P","a":1}`),
		link(2, ptr(int64(1)), `{"name":"C","b":2}`),
	}
	merged, err := MergeProps(chain)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged["name"] != "C" {
		t.Errorf("name = %v, want C (leaf wins)", merged["name"])
	}
	if merged["a"] != float64(1) {
		t.Errorf("a = %v, want inherited 1", merged["a"])
	}
	if merged["b"] != float64(2) {
		t.Errorf("b = %v, want 2", merged["b"])
	}
}

func TestMergeProps_Associative(t *testing.T) {
	a := link(1, nil, `{"x":1,"y":1}`)
	b := link(2, ptr(int64(1)), `{"y":2,"z":2}`)
	c := link(3, ptr(int64(2)), `{"z":3,"w":3}`)

	full, err := MergeProps([]Link{a, b, c})
	if err != nil {
		t.Fatal(err)
	}

	// (A then B) then C should equal the single fold A,B,C.
	ab, err := MergeProps([]Link{a, b})
	if err != nil {
		t.Fatal(err)
	}
	abJSON, _ := json.Marshal(ab)
	abLink := link(2, ptr(int64(1)), string(abJSON))
	step, err := MergeProps([]Link{abLink, c})
	if err != nil {
		t.Fatal(err)
	}

	for k, v := range full {
		if step[k] != v {
			t.Errorf("associativity broken at key %q: fold=%v stepwise=%v", k, v, step[k])
		}
	}
}

func TestResolveEntity_KeepsLeafIdentity(t *testing.T) {
	proto := ptr(int64(1))
	chain := []Link{
		link(1, nil, `{"a":1}`),
		link(2, proto, `{"b":2}`),
	}
	e, err := ResolveEntity(chain)
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != 2 {
		t.Errorf("ID = %d, want 2", e.ID)
	}
	if e.PrototypeID == nil || *e.PrototypeID != 1 {
		t.Errorf("PrototypeID = %v, want 1", e.PrototypeID)
	}
}

func TestResolveVerbs_NearestWins(t *testing.T) {
	codeRoot := domain.Verb{ID: 1, Name: "greet"}
	codeChild := domain.Verb{ID: 2, Name: "greet"}
	other := domain.Verb{ID: 3, Name: "other"}

	links := []VerbLink{
		{Depth: 1, Verbs: map[string]domain.Verb{"greet": codeRoot, "other": other}},
		{Depth: 0, Verbs: map[string]domain.Verb{"greet": codeChild}},
	}
	byName := ResolveVerbs(links)
	if byName["greet"].ID != codeChild.ID {
		t.Errorf("greet resolved to verb %d, want nearest (%d)", byName["greet"].ID, codeChild.ID)
	}
	if byName["other"].ID != other.ID {
		t.Errorf("other resolved to verb %d, want %d", byName["other"].ID, other.ID)
	}
}

func TestResolveVerbs_UnsortedInput(t *testing.T) {
	links := []VerbLink{
		{Depth: 0, Verbs: map[string]domain.Verb{"f": {ID: 10}}},
		{Depth: 2, Verbs: map[string]domain.Verb{"f": {ID: 30}}},
		{Depth: 1, Verbs: map[string]domain.Verb{"f": {ID: 20}}},
	}
	byName := ResolveVerbs(links)
	if byName["f"].ID != 10 {
		t.Errorf("f = %d, want nearest depth-0 verb 10", byName["f"].ID)
	}
}

func ptr(v int64) *int64 { return &v }
