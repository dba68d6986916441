package opqueue

import (
	"testing"

	"narpc/op"
)

func TestDeliverThenPostMatchesSynchronously(t *testing.T) {
	q := New()
	q.DeliverUnexpected("peerA", 5, []byte("hello"))
	if q.PendingMsgs() != 1 {
		t.Fatalf("PendingMsgs() = %d, want 1", q.PendingMsgs())
	}

	buf := make([]byte, 16)
	done := make(chan struct{})
	o := &op.Operation{Buf: buf, Callback: func(o *op.Operation) { close(done) }}
	q.PostRecvUnexpected(buf, o)
	<-done

	if o.ActualSize != len("hello") {
		t.Fatalf("ActualSize = %d, want %d", o.ActualSize, len("hello"))
	}
	if string(buf[:o.ActualSize]) != "hello" {
		t.Fatalf("buf = %q, want %q", buf[:o.ActualSize], "hello")
	}
	if q.PendingMsgs() != 0 {
		t.Fatalf("PendingMsgs() after match = %d, want 0", q.PendingMsgs())
	}
}

func TestPostThenDeliverQueuesAndMatches(t *testing.T) {
	q := New()
	buf := make([]byte, 16)
	done := make(chan struct{})
	o := &op.Operation{Buf: buf, Callback: func(o *op.Operation) { close(done) }}
	q.PostRecvUnexpected(buf, o)
	if q.PendingOps() != 1 {
		t.Fatalf("PendingOps() = %d, want 1", q.PendingOps())
	}

	q.DeliverUnexpected("peerB", 9, []byte("world"))
	<-done

	if string(buf[:o.ActualSize]) != "world" {
		t.Fatalf("buf = %q, want %q", buf[:o.ActualSize], "world")
	}
	if q.PendingOps() != 0 {
		t.Fatalf("PendingOps() after match = %d, want 0", q.PendingOps())
	}
}

func TestDeliverTruncatesToShorterBuffer(t *testing.T) {
	q := New()
	buf := make([]byte, 3)
	done := make(chan struct{})
	o := &op.Operation{Buf: buf, Callback: func(o *op.Operation) { close(done) }}
	q.PostRecvUnexpected(buf, o)
	q.DeliverUnexpected("peerC", 1, []byte("abcdef"))
	<-done
	if o.ActualSize != 3 {
		t.Fatalf("ActualSize = %d, want 3 (truncated to buffer capacity)", o.ActualSize)
	}
	if string(buf) != "abc" {
		t.Fatalf("buf = %q, want %q", buf, "abc")
	}
}

func TestCancelRecvUnexpectedRemovesPendingOp(t *testing.T) {
	q := New()
	o := &op.Operation{Buf: make([]byte, 4)}
	q.PostRecvUnexpected(o.Buf, o)
	if !q.CancelRecvUnexpected(o) {
		t.Fatal("CancelRecvUnexpected should find and remove the pending op")
	}
	if q.PendingOps() != 0 {
		t.Fatalf("PendingOps() after cancel = %d, want 0", q.PendingOps())
	}
	if q.CancelRecvUnexpected(o) {
		t.Fatal("second cancel of the same op should report false")
	}
}
