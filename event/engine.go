package event

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"narpc/addr"
	"narpc/narpcerr"
	"narpc/op"
	"narpc/opqueue"
	"narpc/rma"
	"narpc/wire"
)

// Engine is the event progress engine. It owns the process-wide
// unexpected-message queues and the pending-operation table for
// SEND/PUT/GET completions — a sync.Map keyed by op id, the same idiom a
// transport keyed by sequence number would use for its per-request
// response channels, generalized here from "channel per seq" to
// "operation record per op-id".
type Engine struct {
	ep     Endpoint
	queues *opqueue.Queues
	book   *addr.Book

	pending sync.Map // uint64 opID -> *op.Operation, for SEND/PUT/GET completions

	// drainLimiter caps how many Progress iterations Pump runs per second
	// when called in a tight loop — a second, independent use of the same
	// token-bucket limiter RateLimitMiddleware uses. It gates every event
	// kind alike; it does not give expected responses priority over
	// unexpected arrivals.
	drainLimiter *rate.Limiter
}

// New creates an Engine driving ep and matching unexpected arrivals
// against queues. book is stored but not consulted: a RECV from a
// previously-unknown peer gets an ad hoc addr.NewUnexpectedOrigin address.
func New(ep Endpoint, queues *opqueue.Queues, book *addr.Book) *Engine {
	return &Engine{
		ep:           ep,
		queues:       queues,
		book:         book,
		drainLimiter: rate.NewLimiter(rate.Limit(1000), 1000),
	}
}

// Endpoint returns the underlying transport endpoint.
func (e *Engine) Endpoint() Endpoint { return e.ep }

// Progress drains the endpoint's event source until either one event is
// successfully processed or the deadline expires.
func (e *Engine) Progress(timeout time.Duration) error {
	ev, ok, err := e.ep.PollEvent(timeout)
	if err != nil {
		return narpcerr.Wrap(narpcerr.ProtocolError, err.Error())
	}
	if !ok {
		return narpcerr.ErrTimeout
	}
	defer e.ep.ReturnEvent(ev)

	switch ev.Kind {
	case KindSend:
		e.completePending(ev.OpID, ev.Err)
	case KindRecv:
		e.dispatchRecv(ev)
	case KindConnectRequest, KindConnect, KindAccept:
		// Reserved for connection-oriented transports; the core has no
		// connection-establishment logic to run, but the event must still
		// be returned, which the deferred call above does.
	}
	return nil
}

// Pump calls Progress repeatedly until timeout elapses, rate-limiting how
// many iterations run per second through drainLimiter. Events are still
// handled in the order the endpoint delivers them.
func (e *Engine) Pump(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := e.drainLimiter.Wait(context.Background()); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		err := e.Progress(remaining)
		if err == nil {
			continue
		}
		if narpcerr.CodeOf(err) == narpcerr.Timeout {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (e *Engine) completePending(opID uint64, err error) {
	v, ok := e.pending.LoadAndDelete(opID)
	if !ok {
		return
	}
	v.(*op.Operation).Complete(err)
}

func (e *Engine) dispatchRecv(ev *Event) {
	if ev.Err != nil {
		return
	}
	expect, tag, err := wire.GetFraming(ev.Data)
	if err != nil {
		return
	}
	payload := ev.Data[wire.FramingSize:]

	peer := ev.Peer
	if peer == nil {
		peer = addr.NewUnexpectedOrigin(ev.ConnID, ev.ConnID)
	}

	if expect {
		peer.DeliverExpected(tag, payload)
		return
	}
	e.queues.DeliverUnexpected(peer, tag, payload)
}

// PostSendUnexpected posts a send of buf to peer as an unexpected message,
// invoking cb on send completion.
func (e *Engine) PostSendUnexpected(peer *addr.Address, tag uint32, buf []byte, cb op.CompletionFunc, userArg any) (*op.Operation, error) {
	o := &op.Operation{Kind: op.KindSendUnexpected, Callback: cb, UserArg: userArg, Peer: peer, Tag: tag, Buf: buf}
	id, err := e.ep.PostSendUnexpected(peer, tag, buf)
	if err != nil {
		return nil, err
	}
	o.ID = id
	e.pending.Store(id, o)
	return o, nil
}

// PostSendExpected posts a send of buf to peer as an expected message
// matching a tag the peer has pre-posted a recv-expected for.
func (e *Engine) PostSendExpected(peer *addr.Address, tag uint32, buf []byte, cb op.CompletionFunc, userArg any) (*op.Operation, error) {
	o := &op.Operation{Kind: op.KindSendExpected, Callback: cb, UserArg: userArg, Peer: peer, Tag: tag, Buf: buf}
	id, err := e.ep.PostSendExpected(peer, tag, buf)
	if err != nil {
		return nil, err
	}
	o.ID = id
	e.pending.Store(id, o)
	return o, nil
}

// PostRecvExpected pre-posts an expected receive on peer. Completion may
// fire synchronously, before this call returns, if a matching early
// arrival is already cached.
func (e *Engine) PostRecvExpected(peer *addr.Address, tag uint32, buf []byte, cb op.CompletionFunc, userArg any) *op.Operation {
	o := &op.Operation{Kind: op.KindRecvExpected, Callback: cb, UserArg: userArg, Peer: peer, Tag: tag, Buf: buf}
	peer.PostRecvExpected(tag, buf, o)
	return o
}

// PostRecvUnexpected posts an unexpected receive against the process-wide
// queues. Completion may fire synchronously if an unmatched arrival is
// already queued.
func (e *Engine) PostRecvUnexpected(buf []byte, cb op.CompletionFunc, userArg any) *op.Operation {
	o := &op.Operation{Kind: op.KindRecvUnexpected, Callback: cb, UserArg: userArg, Buf: buf}
	e.queues.PostRecvUnexpected(buf, o)
	return o
}

// RegisterMemory registers local for RMA, delegating to the endpoint and
// recording the result on the handle.
func (e *Engine) RegisterMemory(local *rma.Handle) error {
	descriptor, err := e.ep.RegisterMemory(local)
	if err != nil {
		return err
	}
	return local.MarkRegistered(descriptor)
}

// DeregisterMemory unregisters local, refusing while outstanding RMA
// references remain (enforced by Handle itself).
func (e *Engine) DeregisterMemory(local *rma.Handle) error {
	if err := local.MarkDeregistered(); err != nil {
		return err
	}
	return e.ep.DeregisterMemory(local)
}

// Put issues a one-sided RMA write of local into the region remote
// describes, checking write permission first.
func (e *Engine) Put(peer *addr.Address, local, remote *rma.Handle, cb op.CompletionFunc, userArg any) (*op.Operation, error) {
	if err := rma.CheckPut(remote); err != nil {
		return nil, err
	}
	o := &op.Operation{Kind: op.KindPut, Callback: cb, UserArg: userArg, Peer: peer, RMA: remote}
	remote.AddRef()
	id, err := e.ep.Put(peer, local, remote)
	if err != nil {
		remote.Release()
		return nil, err
	}
	o.ID = id
	e.pending.Store(id, o)
	return o, nil
}

// Get issues a one-sided RMA read from the region remote describes into
// local, checking read permission first.
func (e *Engine) Get(peer *addr.Address, local, remote *rma.Handle, cb op.CompletionFunc, userArg any) (*op.Operation, error) {
	if err := rma.CheckGet(remote); err != nil {
		return nil, err
	}
	o := &op.Operation{Kind: op.KindGet, Callback: cb, UserArg: userArg, Peer: peer, RMA: remote}
	remote.AddRef()
	id, err := e.ep.Get(peer, local, remote)
	if err != nil {
		remote.Release()
		return nil, err
	}
	o.ID = id
	e.pending.Store(id, o)
	return o, nil
}

// PendingUnexpectedOps reports the process-wide unexpected-op queue
// depth, used by Finalize to detect the non-empty-on-finalize
// ProtocolError condition.
func (e *Engine) PendingUnexpectedOps() int { return e.queues.PendingOps() }
