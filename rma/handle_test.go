package rma

import (
	"testing"

	"narpc/wire"
)

func TestRegisterLifecycle(t *testing.T) {
	h := Create(make([]byte, 64), ReadWrite)
	if h.Registered() {
		t.Fatal("fresh handle should not be registered")
	}
	if err := h.MarkRegistered([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("MarkRegistered: %v", err)
	}
	if !h.Registered() {
		t.Fatal("handle should be registered after MarkRegistered")
	}
	if string(h.Descriptor()) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("Descriptor() = %v, want %v", h.Descriptor(), []byte{1, 2, 3, 4})
	}
}

func TestDeregisterRefusesWithOutstandingRefs(t *testing.T) {
	h := Create(make([]byte, 8), ReadOnly)
	h.MarkRegistered([]byte{9})
	h.AddRef()
	if err := h.MarkDeregistered(); err == nil {
		t.Fatal("MarkDeregistered should refuse while a reference is outstanding")
	}
	h.Release()
	if err := h.MarkDeregistered(); err != nil {
		t.Fatalf("MarkDeregistered after Release: %v", err)
	}
}

func TestCheckPutRequiresWritePermission(t *testing.T) {
	h := Create(make([]byte, 8), ReadOnly)
	h.MarkRegistered([]byte{1})
	if err := CheckPut(h); err == nil {
		t.Fatal("CheckPut should reject a read-only handle")
	}
	rw := Create(make([]byte, 8), ReadWrite)
	rw.MarkRegistered([]byte{1})
	if err := CheckPut(rw); err != nil {
		t.Fatalf("CheckPut on a read-write handle: %v", err)
	}
}

func TestCheckGetRequiresRegistration(t *testing.T) {
	h := Create(make([]byte, 8), ReadWrite)
	if err := CheckGet(h); err == nil {
		t.Fatal("CheckGet should reject an unregistered handle")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	h := Create(make([]byte, 128), ReadWrite)
	descriptor := make([]byte, 8)
	copy(descriptor, []byte("regid-42"))
	if err := h.MarkRegistered(descriptor); err != nil {
		t.Fatalf("MarkRegistered: %v", err)
	}

	buf := make([]byte, wire.RMAHandleWireSize)
	if err := Serialize(h, buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(got.Bytes()) != len(h.Bytes()) {
		t.Fatalf("len(Bytes()) = %d, want %d", len(got.Bytes()), len(h.Bytes()))
	}
	if got.Flags() != h.Flags() {
		t.Fatalf("Flags() = %v, want %v", got.Flags(), h.Flags())
	}
	if string(got.Descriptor()) != string(h.Descriptor()) {
		t.Fatalf("Descriptor() = %v, want %v", got.Descriptor(), h.Descriptor())
	}
	if !got.Registered() {
		t.Fatal("a deserialized handle should report Registered (it targets an already-registered remote region)")
	}
}

func TestSerializeRejectsUndersizedBuffer(t *testing.T) {
	h := Create(make([]byte, 8), ReadOnly)
	if err := Serialize(h, make([]byte, 2)); err == nil {
		t.Fatal("Serialize should reject a buffer smaller than RMAHandleWireSize")
	}
}
