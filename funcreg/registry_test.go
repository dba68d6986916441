package funcreg

import (
	"testing"

	"narpc/codec"
)

func noopEncode(w *codec.Writer, v any) error { return nil }
func noopDecode(r *codec.Reader, v any) error  { return nil }

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	id, err := r.Register("echo", noopEncode, noopDecode, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	entry, ok := r.Lookup(id)
	if !ok {
		t.Fatal("Lookup: not found after Register")
	}
	if entry.Name != "echo" {
		t.Fatalf("entry.Name = %q, want %q", entry.Name, "echo")
	}

	ok, gotID := r.Registered("echo")
	if !ok || gotID != id {
		t.Fatalf("Registered(\"echo\") = %v, %d, want true, %d", ok, gotID, id)
	}
}

func TestRegisterRejectsInvalidParams(t *testing.T) {
	r := New()
	if _, err := r.Register("", noopEncode, noopDecode, nil); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := r.Register("x", nil, noopDecode, nil); err == nil {
		t.Fatal("expected error for nil encode")
	}
	if _, err := r.Register("x", noopEncode, nil, nil); err == nil {
		t.Fatal("expected error for nil decode")
	}
}

func TestLookupUnknownIDFails(t *testing.T) {
	r := New()
	if _, ok := r.Lookup(12345); ok {
		t.Fatal("Lookup on empty registry should fail")
	}
}
