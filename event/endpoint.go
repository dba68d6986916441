// Package event implements the event progress engine: it pumps the
// endpoint's event source and dispatches SEND, RECV, CONNECT_REQUEST,
// CONNECT, and ACCEPT events to handlers, driving completions for every
// operation kind posted through it.
package event

import (
	"time"

	"narpc/addr"
	"narpc/rma"
)

// Kind enumerates the event kinds the endpoint can deliver.
type Kind int

const (
	KindSend Kind = iota
	KindRecv
	KindConnectRequest
	KindConnect
	KindAccept
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindRecv:
		return "recv"
	case KindConnectRequest:
		return "connect-request"
	case KindConnect:
		return "connect"
	case KindAccept:
		return "accept"
	default:
		return "unknown"
	}
}

// Event is one item drained from the endpoint's event source.
type Event struct {
	Kind Kind

	// OpID identifies the posted operation a SEND (and, for symmetry,
	// PUT/GET) event completes; set by the Endpoint at post time and
	// echoed back on the corresponding event.
	OpID uint64

	// Peer is the address a RECV/CONNECT* event concerns. Nil when the
	// endpoint cannot yet attribute the event to a known peer (a RECV from
	// a previously-unknown connection identity).
	Peer *addr.Address

	// ConnID is the transport-level connection identity backing Peer,
	// used to create an Address implicitly on first unexpected arrival.
	ConnID string

	// Data holds the framing header plus payload for a RECV event.
	Data []byte

	Err error
}

// Endpoint is the transport-level handle representing this process's
// participation in the network. Connection establishment itself is out of
// scope here; Endpoint only exposes what the NAL and RPC forwarding
// engine consume.
type Endpoint interface {
	// PollEvent drains at most one event, blocking up to timeout. ok is
	// false on a clean timeout (no event delivered within timeout); err is
	// set only on a genuine transport failure.
	PollEvent(timeout time.Duration) (ev *Event, ok bool, err error)

	// ReturnEvent returns event resources to the transport. Must be called
	// for every event PollEvent delivers.
	ReturnEvent(ev *Event)

	MaxUnexpectedSize() int
	MaxExpectedSize() int
	MaxTag() uint32

	PostSendUnexpected(peer *addr.Address, tag uint32, buf []byte) (opID uint64, err error)
	PostSendExpected(peer *addr.Address, tag uint32, buf []byte) (opID uint64, err error)

	RegisterMemory(h *rma.Handle) (descriptor []byte, err error)
	DeregisterMemory(h *rma.Handle) error

	Put(peer *addr.Address, local *rma.Handle, remote *rma.Handle) (opID uint64, err error)
	Get(peer *addr.Address, local *rma.Handle, remote *rma.Handle) (opID uint64, err error)
}
