package event

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"narpc/addr"
	"narpc/narpcerr"
	"narpc/rma"
)

// FakeEndpoint is an in-process Endpoint connecting to exactly one peer
// FakeEndpoint, standing in for real interconnect hardware in tests — a
// working in-process stand-in rather than a mock, much as the registry
// tests (registry/etcd_registry_test.go) run against a real etcd server
// at localhost:2379 instead of a mock: there is no real
// NAL hardware available in a test binary, so the transport itself is
// faked instead.
type FakeEndpoint struct {
	mu   sync.Mutex
	regs map[uint64]*rma.Handle

	events chan *Event
	peer   *FakeEndpoint

	// RemotePeer is the Address this endpoint attributes to RECV events,
	// i.e. "who is on the other end of this connection". Exactly one
	// Address per connection is required for addr.Address's rxs/early
	// matching to accumulate correctly across messages.
	RemotePeer *addr.Address

	nextOp  uint64
	nextReg uint64

	maxUnexpected int
	maxExpected   int
	maxTag        uint32
}

// NewFakePair creates two connected FakeEndpoints, each the other's sole
// peer.
func NewFakePair(maxUnexpected, maxExpected int, maxTag uint32) (a, b *FakeEndpoint) {
	a = &FakeEndpoint{
		events:        make(chan *Event, 64),
		regs:          make(map[uint64]*rma.Handle),
		maxUnexpected: maxUnexpected,
		maxExpected:   maxExpected,
		maxTag:        maxTag,
	}
	b = &FakeEndpoint{
		events:        make(chan *Event, 64),
		regs:          make(map[uint64]*rma.Handle),
		maxUnexpected: maxUnexpected,
		maxExpected:   maxExpected,
		maxTag:        maxTag,
	}
	a.peer, b.peer = b, a
	return a, b
}

func (f *FakeEndpoint) PollEvent(timeout time.Duration) (*Event, bool, error) {
	if timeout <= 0 {
		return <-f.events, true, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-f.events:
		return ev, true, nil
	case <-timer.C:
		return nil, false, nil
	}
}

func (f *FakeEndpoint) ReturnEvent(ev *Event) {}

func (f *FakeEndpoint) MaxUnexpectedSize() int { return f.maxUnexpected }
func (f *FakeEndpoint) MaxExpectedSize() int   { return f.maxExpected }
func (f *FakeEndpoint) MaxTag() uint32         { return f.maxTag }

func (f *FakeEndpoint) nextOpID() uint64 { return atomic.AddUint64(&f.nextOp, 1) }

func (f *FakeEndpoint) PostSendUnexpected(peer *addr.Address, tag uint32, buf []byte) (uint64, error) {
	return f.send(buf)
}

func (f *FakeEndpoint) PostSendExpected(peer *addr.Address, tag uint32, buf []byte) (uint64, error) {
	return f.send(buf)
}

// send delivers a copy of buf to the peer endpoint as a RECV event and
// signals local SEND completion, both asynchronously: send completion
// may occur before or after the matching response arrives, and no
// ordering is imposed between the two here.
func (f *FakeEndpoint) send(buf []byte) (uint64, error) {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	opID := f.nextOpID()
	go func() {
		ev := &Event{Kind: KindRecv, Data: cp, Peer: f.peer.RemotePeer}
		f.peer.events <- ev
		f.events <- &Event{Kind: KindSend, OpID: opID}
	}()
	return opID, nil
}

func (f *FakeEndpoint) RegisterMemory(h *rma.Handle) ([]byte, error) {
	id := atomic.AddUint64(&f.nextReg, 1)
	f.mu.Lock()
	f.regs[id] = h
	f.mu.Unlock()
	var d [8]byte
	binary.BigEndian.PutUint64(d[:], id)
	return d[:], nil
}

func (f *FakeEndpoint) DeregisterMemory(h *rma.Handle) error {
	descriptor := h.Descriptor()
	if len(descriptor) < 8 {
		return narpcerr.Wrap(narpcerr.ProtocolError, "fake: malformed descriptor")
	}
	id := binary.BigEndian.Uint64(descriptor)
	f.mu.Lock()
	delete(f.regs, id)
	f.mu.Unlock()
	return nil
}

func (f *FakeEndpoint) Put(peer *addr.Address, local, remote *rma.Handle) (uint64, error) {
	dst, err := f.peer.lookup(remote)
	if err != nil {
		return 0, err
	}
	copy(dst.Bytes(), local.Bytes())
	return f.completeAsync(), nil
}

func (f *FakeEndpoint) Get(peer *addr.Address, local, remote *rma.Handle) (uint64, error) {
	src, err := f.peer.lookup(remote)
	if err != nil {
		return 0, err
	}
	copy(local.Bytes(), src.Bytes())
	return f.completeAsync(), nil
}

func (f *FakeEndpoint) lookup(remote *rma.Handle) (*rma.Handle, error) {
	descriptor := remote.Descriptor()
	if len(descriptor) < 8 {
		return nil, narpcerr.Wrap(narpcerr.ProtocolError, "fake: malformed remote descriptor")
	}
	id := binary.BigEndian.Uint64(descriptor)
	f.mu.Lock()
	h, ok := f.regs[id]
	f.mu.Unlock()
	if !ok {
		return nil, narpcerr.Wrap(narpcerr.ProtocolError, "fake: unknown remote rma descriptor")
	}
	return h, nil
}

func (f *FakeEndpoint) completeAsync() uint64 {
	opID := f.nextOpID()
	go func() { f.events <- &Event{Kind: KindSend, OpID: opID} }()
	return opID
}
