package addr

import (
	"testing"

	"narpc/op"
)

func TestDeliverExpectedThenPostMatches(t *testing.T) {
	a := NewResolved("conn1", "tcp://peer")
	a.DeliverExpected(4, []byte("payload"))
	if a.EarlyLen() != 1 {
		t.Fatalf("EarlyLen() = %d, want 1", a.EarlyLen())
	}

	buf := make([]byte, 16)
	done := make(chan struct{})
	o := &op.Operation{Tag: 4, Buf: buf, Callback: func(o *op.Operation) { close(done) }}
	a.PostRecvExpected(4, buf, o)
	<-done

	if string(buf[:o.ActualSize]) != "payload" {
		t.Fatalf("buf = %q, want %q", buf[:o.ActualSize], "payload")
	}
	if a.EarlyLen() != 0 {
		t.Fatalf("EarlyLen() after match = %d, want 0", a.EarlyLen())
	}
	if o.Peer != a {
		t.Fatal("o.Peer should be set to the matching Address")
	}
}

func TestPostThenDeliverMatches(t *testing.T) {
	a := NewResolved("conn2", "tcp://peer")
	buf := make([]byte, 16)
	done := make(chan struct{})
	o := &op.Operation{Tag: 9, Buf: buf, Callback: func(o *op.Operation) { close(done) }}
	a.PostRecvExpected(9, buf, o)
	if a.RxsLen() != 1 {
		t.Fatalf("RxsLen() = %d, want 1", a.RxsLen())
	}

	a.DeliverExpected(9, []byte("late"))
	<-done
	if string(buf[:o.ActualSize]) != "late" {
		t.Fatalf("buf = %q, want %q", buf[:o.ActualSize], "late")
	}
	if a.RxsLen() != 0 {
		t.Fatalf("RxsLen() after match = %d, want 0", a.RxsLen())
	}
}

func TestMismatchedTagDoesNotMatch(t *testing.T) {
	a := NewResolved("conn3", "tcp://peer")
	a.DeliverExpected(1, []byte("one"))
	o := &op.Operation{Tag: 2, Buf: make([]byte, 8)}
	a.PostRecvExpected(2, o.Buf, o)
	if o.Completed() {
		t.Fatal("mismatched tag should not complete the posted receive")
	}
	if a.EarlyLen() != 1 || a.RxsLen() != 1 {
		t.Fatalf("EarlyLen()=%d RxsLen()=%d, want 1, 1 (both still pending)", a.EarlyLen(), a.RxsLen())
	}
}

func TestCancelRecvExpectedRemovesPosted(t *testing.T) {
	a := NewResolved("conn4", "tcp://peer")
	o := &op.Operation{Tag: 3, Buf: make([]byte, 4)}
	a.PostRecvExpected(3, o.Buf, o)
	if !a.CancelRecvExpected(o) {
		t.Fatal("CancelRecvExpected should find and remove the posted op")
	}
	if a.RxsLen() != 0 {
		t.Fatalf("RxsLen() after cancel = %d, want 0", a.RxsLen())
	}
}

func TestFreeRejectsNonEmptyQueues(t *testing.T) {
	a := NewResolved("conn5", "tcp://peer")
	a.DeliverExpected(1, []byte("x"))
	if err := a.Free(); err == nil {
		t.Fatal("Free should reject while early-arrival queue is non-empty")
	}
}

func TestFreeSucceedsWhenEmpty(t *testing.T) {
	a := NewResolved("conn6", "tcp://peer")
	if err := a.Free(); err != nil {
		t.Fatalf("Free on an empty address: %v", err)
	}
}
