package capability

import "testing"

func TestExactMatch(t *testing.T) {
	if !IsValidRestriction("foo", "foo", "any") {
		t.Error("identical values should be valid")
	}
	if IsValidRestriction("foo", "bar", "any") {
		t.Error("differing values should be invalid")
	}
}

func TestWildcard(t *testing.T) {
	if !IsValidRestriction(true, true, "*") {
		t.Error("parent wildcard, child keeps: should be valid")
	}
	if !IsValidRestriction(true, false, "*") {
		t.Error("parent wildcard, child drops: should be valid")
	}
	if IsValidRestriction(false, true, "*") {
		t.Error("child cannot add a wildcard the parent lacks")
	}
}

func TestArraySubset(t *testing.T) {
	if !IsValidRestriction([]any{"GET", "POST", "PUT"}, []any{"GET", "POST"}, "methods") {
		t.Error("subset should be valid")
	}
	if IsValidRestriction([]any{"GET", "POST"}, []any{"GET", "DELETE"}, "methods") {
		t.Error("non-subset should be invalid")
	}
}

func TestPathRestriction(t *testing.T) {
	if !IsValidRestriction("/home/user", "/home/user/docs", "path") {
		t.Error("subpath should be valid")
	}
	if IsValidRestriction("/home/user", "/home/other", "path") {
		t.Error("sibling path should be invalid")
	}
}

func TestDomainRestriction(t *testing.T) {
	if !IsValidRestriction("example.com", "api.example.com", "domain") {
		t.Error("subdomain should be valid")
	}
	if IsValidRestriction("example.com", "other.com", "domain") {
		t.Error("unrelated domain should be invalid")
	}
}

func TestNamespaceRestriction(t *testing.T) {
	if !IsValidRestriction("*", "user.123", "namespace") {
		t.Error("wildcard namespace parent should allow any child")
	}
	if !IsValidRestriction("user", "user.123", "namespace") {
		t.Error("prefix-extended namespace should be valid")
	}
	if IsValidRestriction("user.123", "admin", "namespace") {
		t.Error("unrelated namespace should be invalid")
	}
}

func TestBooleanRestriction(t *testing.T) {
	if !IsValidRestriction(false, true, "readonly") {
		t.Error("tightening false->true should be valid")
	}
	if IsValidRestriction(true, false, "readonly") {
		t.Error("loosening true->false should be invalid")
	}
}

func TestValidateDelegation(t *testing.T) {
	parent := map[string]any{
		"path":    "/home/user",
		"methods": []any{"GET", "POST", "PUT", "DELETE"},
	}
	valid := map[string]any{
		"path":    "/home/user/docs",
		"methods": []any{"GET", "POST"},
	}
	if err := ValidateDelegation(parent, valid); err != nil {
		t.Fatalf("expected valid delegation, got %v", err)
	}

	invalid := map[string]any{
		"path": "/home/other",
	}
	if err := ValidateDelegation(parent, invalid); err == nil {
		t.Fatal("expected invalid delegation to be rejected")
	}

	withNewKey := map[string]any{
		"extra": "anything",
	}
	if err := ValidateDelegation(parent, withNewKey); err != nil {
		t.Fatalf("new unconstrained key should be valid, got %v", err)
	}
}

func TestMergeDelegatedParams(t *testing.T) {
	parent := map[string]any{"path": "/home/user", "methods": []any{"GET"}}
	child := map[string]any{"path": "/home/user/docs"}
	merged := MergeDelegatedParams(parent, child)
	if merged["path"] != "/home/user/docs" {
		t.Errorf("expected overridden path, got %v", merged["path"])
	}
	if m, ok := merged["methods"].([]any); !ok || len(m) != 1 {
		t.Errorf("expected inherited methods, got %v", merged["methods"])
	}
}
