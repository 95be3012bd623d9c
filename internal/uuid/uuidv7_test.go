package uuid

import "testing"

func TestNew(t *testing.T) {
	a, b := New(), New()
	if !IsValid(a) || !IsValid(b) {
		t.Fatalf("expected valid ids, got %q and %q", a, b)
	}
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if a[14] != '7' {
		t.Errorf("expected version 7, got %q", a)
	}
}

func TestIsValid(t *testing.T) {
	if IsValid("not-a-uuid") {
		t.Error("expected invalid")
	}
}
