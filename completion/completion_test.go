package completion

import (
	"errors"
	"testing"
	"time"

	"narpc/narpcerr"
)

func TestCompleteThenWaitReturnsErr(t *testing.T) {
	h := Create()
	want := errors.New("boom")
	h.Complete(want)
	if err := h.Wait(time.Second); err != want {
		t.Fatalf("Wait = %v, want %v", err, want)
	}
	if !h.Done() {
		t.Fatal("Done() should report true after Complete")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	h := Create()
	h.Complete(errors.New("first"))
	h.Complete(errors.New("second"))
	if err := h.Wait(time.Second); err.Error() != "first" {
		t.Fatalf("Wait = %v, want first error to stick", err)
	}
}

func TestWaitTimesOut(t *testing.T) {
	h := Create()
	if err := h.Wait(10 * time.Millisecond); !errors.Is(err, narpcerr.ErrTimeout) {
		t.Fatalf("Wait = %v, want Timeout", err)
	}
}

func TestWaitUnblocksConcurrently(t *testing.T) {
	h := Create()
	go func() {
		time.Sleep(10 * time.Millisecond)
		h.Complete(nil)
	}()
	if err := h.Wait(time.Second); err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
}
