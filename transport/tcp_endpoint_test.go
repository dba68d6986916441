package transport

import (
	"net"
	"testing"
	"time"

	"narpc/addr"
	"narpc/event"
	"narpc/rma"
)

func dialPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptCh <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	select {
	case server := <-acceptCh:
		return client, server
	case err := <-errCh:
		t.Fatalf("accept: %v", err)
	case <-time.After(time.Second):
		t.Fatal("accept timed out")
	}
	return nil, nil
}

func newEndpointPair(t *testing.T) (*TCPEndpoint, *TCPEndpoint) {
	t.Helper()
	clientConn, serverConn := dialPair(t)
	clientPeer := addr.NewResolved("server", serverConn.RemoteAddr().String())
	serverPeer := addr.NewResolved("client", clientConn.RemoteAddr().String())
	a := NewTCPEndpoint(clientConn, clientPeer, 1<<20, 1<<20, 1<<31-1)
	b := NewTCPEndpoint(serverConn, serverPeer, 1<<20, 1<<20, 1<<31-1)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestTCPEndpointSendRecv(t *testing.T) {
	a, b := newEndpointPair(t)

	want := []byte("hello over tcp")
	if _, err := a.PostSendUnexpected(nil, 7, want); err != nil {
		t.Fatalf("PostSendUnexpected: %v", err)
	}

	ev, ok, err := b.PollEvent(time.Second)
	if err != nil {
		t.Fatalf("PollEvent: %v", err)
	}
	if !ok {
		t.Fatal("expected an event, got timeout")
	}
	if ev.Kind != event.KindRecv {
		t.Fatalf("Kind = %v, want KindRecv", ev.Kind)
	}
	if string(ev.Data) != string(want) {
		t.Fatalf("Data = %q, want %q", ev.Data, want)
	}

	sendEv, ok, err := a.PollEvent(time.Second)
	if err != nil {
		t.Fatalf("PollEvent (send completion): %v", err)
	}
	if !ok || sendEv.Kind != event.KindSend {
		t.Fatalf("expected a KindSend completion, got %+v ok=%v", sendEv, ok)
	}
}

func TestTCPEndpointPollEventTimesOut(t *testing.T) {
	a, _ := newEndpointPair(t)
	_, ok, err := a.PollEvent(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("PollEvent: %v", err)
	}
	if ok {
		t.Fatal("expected timeout, got an event")
	}
}

func TestTCPEndpointPut(t *testing.T) {
	a, b := newEndpointPair(t)

	target := make([]byte, 16)
	targetHandle := rma.Create(target, rma.ReadWrite)
	descriptor, err := b.RegisterMemory(targetHandle)
	if err != nil {
		t.Fatalf("RegisterMemory: %v", err)
	}
	if err := targetHandle.MarkRegistered(descriptor); err != nil {
		t.Fatalf("MarkRegistered: %v", err)
	}

	payload := []byte("put-payload-1234")
	localHandle := rma.Create(payload, rma.ReadOnly)

	opID, err := a.Put(nil, localHandle, targetHandle)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	ev, ok, err := a.PollEvent(time.Second)
	if err != nil {
		t.Fatalf("PollEvent: %v", err)
	}
	if !ok || ev.Kind != event.KindSend || ev.OpID != opID {
		t.Fatalf("expected completion for put opID %d, got %+v ok=%v", opID, ev, ok)
	}
	if string(target) != string(payload) {
		t.Fatalf("target = %q, want %q", target, payload)
	}
}

func TestTCPEndpointGet(t *testing.T) {
	a, b := newEndpointPair(t)

	source := []byte("get-source-data!")
	sourceHandle := rma.Create(source, rma.ReadOnly)
	descriptor, err := b.RegisterMemory(sourceHandle)
	if err != nil {
		t.Fatalf("RegisterMemory: %v", err)
	}
	if err := sourceHandle.MarkRegistered(descriptor); err != nil {
		t.Fatalf("MarkRegistered: %v", err)
	}

	local := make([]byte, len(source))
	localHandle := rma.Create(local, rma.ReadWrite)

	opID, err := a.Get(nil, localHandle, sourceHandle)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	ev, ok, err := a.PollEvent(time.Second)
	if err != nil {
		t.Fatalf("PollEvent: %v", err)
	}
	if !ok || ev.Kind != event.KindSend || ev.OpID != opID {
		t.Fatalf("expected completion for get opID %d, got %+v ok=%v", opID, ev, ok)
	}
	if string(local) != string(source) {
		t.Fatalf("local = %q, want %q", local, source)
	}
}
