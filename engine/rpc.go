package engine

import (
	"time"

	"narpc/addr"
	"narpc/codec"
	"narpc/completion"
	"narpc/event"
	"narpc/funcreg"
	"narpc/narpcerr"
	"narpc/op"
	"narpc/rma"
	"narpc/tag"
	"narpc/wire"
)

// Options configures buffer sizes for every Forward call: a send buffer
// of size MaxUnexpectedSize and a recv buffer of size MaxExpectedSize are
// allocated from these up front.
type Options struct {
	MaxUnexpectedSize int
	MaxExpectedSize   int
}

// RPC is the RPC forwarding engine: it drives the call lifecycle from
// encoding the input through decoding the response.
type RPC struct {
	ev    *event.Engine
	funcs *funcreg.Registry
	tags  *tag.Generator
	opts  Options
}

// New creates an RPC forwarding engine driving calls over ev, resolving
// call ids through funcs, and allocating tags from tags.
func New(ev *event.Engine, funcs *funcreg.Registry, tags *tag.Generator, opts Options) *RPC {
	return &RPC{ev: ev, funcs: funcs, tags: tags, opts: opts}
}

// Forward encodes in, allocates a call tag, pre-posts the expected
// receive for the response, and posts the unexpected send carrying the
// request, returning a Request the caller waits on.
func (r *RPC) Forward(peer *addr.Address, id uint32, in any, out any) (*Request, error) {
	entry, ok := r.funcs.Lookup(id)
	if !ok {
		return nil, narpcerr.ErrNoMatch
	}

	sendBuf := make([]byte, r.opts.MaxUnexpectedSize)
	recvBuf := make([]byte, r.opts.MaxExpectedSize)

	bodyOff := wire.FramingSize + wire.RequestHeaderSize
	if bodyOff > len(sendBuf) {
		return nil, narpcerr.Wrap(narpcerr.SizeError, "max_unexpected_size too small for framing + request header")
	}

	w := codec.NewWriter(len(sendBuf) - bodyOff)
	if err := entry.Encode(w, in); err != nil {
		return nil, err
	}

	req := &Request{
		CallID:   id,
		Peer:     peer,
		sendBuf:  sendBuf,
		recvBuf:  recvBuf,
		out:      out,
		entry:    entry,
		sendDone: completion.Create(),
		recvDone: completion.Create(),
	}

	var extraHandleWire [wire.RMAHandleWireSize]byte
	if !w.Fits() {
		// Oversize input spill: take ownership of the encoder's overflow
		// buffer and register it read-only so the callee can RMA-read it.
		overflow := w.Bytes()
		h := rma.Create(overflow, rma.ReadOnly)
		if err := r.ev.RegisterMemory(h); err != nil {
			return nil, err
		}
		if err := rma.Serialize(h, extraHandleWire[:]); err != nil {
			r.ev.DeregisterMemory(h)
			return nil, err
		}
		req.extraBuf = overflow
		req.extra = h
	} else {
		copy(sendBuf[bodyOff:], w.Bytes())
	}

	hdr := wire.RequestHeader{CallID: id, ExtraHandle: extraHandleWire}
	if err := wire.PutRequestHeader(sendBuf[wire.FramingSize:], &hdr); err != nil {
		return nil, err
	}

	tagv := r.tags.Next()
	req.Tag = tagv

	sendLen := bodyOff
	if w.Fits() {
		sendLen += w.Len()
	}
	if err := wire.PutFraming(sendBuf[:wire.FramingSize], false, tagv); err != nil {
		return nil, err
	}

	// Pre-post the expected receive before posting the send, so a
	// fast-answering peer can never race ahead of our own matching state.
	r.ev.PostRecvExpected(peer, tagv, recvBuf, r.recvDone(req), req)

	if _, err := r.ev.PostSendUnexpected(peer, tagv, sendBuf[:sendLen], r.sendDoneFn(req), req); err != nil {
		req.sendDone.Complete(err)
		req.recvDone.Complete(err)
		return req, err
	}

	return req, nil
}

// sendDoneFn returns the completion callback run when the request's send
// completes: it records any send error and completes the request's
// send-sub-handle.
func (r *RPC) sendDoneFn(req *Request) op.CompletionFunc {
	return func(o *op.Operation) {
		req.setErr(o.Err)
		req.sendDone.Complete(o.Err)
	}
}

// recvDone returns the completion callback run when the response
// arrives: it frees the extra buffer, decodes and verifies the response
// header, decodes the output value, and completes the request's
// recv-sub-handle.
func (r *RPC) recvDone(req *Request) op.CompletionFunc {
	return func(o *op.Operation) {
		var err error
		defer func() {
			req.setErr(err)
			req.recvDone.Complete(err)
		}()

		if o.Err != nil {
			err = o.Err
			return
		}

		if req.extra != nil {
			if derr := r.ev.DeregisterMemory(req.extra); derr != nil {
				err = derr
				return
			}
			req.extra = nil
			req.extraBuf = nil
		}

		respHdr, body, herr := wire.GetResponseHeader(req.recvBuf[:o.ActualSize])
		if herr != nil {
			err = herr
			return
		}
		if verr := wire.VerifyResponse(respHdr, body); verr != nil {
			err = verr
			return
		}
		if respHdr.Status != byte(narpcerr.Success) {
			err = narpcerr.New(narpcerr.Code(respHdr.Status))
			return
		}

		rd := codec.NewReader(body)
		if derr := req.entry.Decode(rd, req.out); derr != nil {
			err = derr
			return
		}
	}
}

// Wait waits on send-sub and then recv-sub in sequence, charging elapsed
// time against timeout. A non-positive timeout waits indefinitely.
func (r *RPC) Wait(req *Request, timeout time.Duration) error {
	start := time.Now()
	if err := req.sendDone.Wait(timeout); err != nil {
		return err
	}
	remaining := timeout
	if timeout > 0 {
		remaining -= time.Since(start)
		if remaining <= 0 {
			if !req.recvDone.Done() {
				return narpcerr.ErrTimeout
			}
			remaining = 0
		}
	}
	if err := req.recvDone.Wait(remaining); err != nil {
		return err
	}
	return req.Err()
}

// WaitAll waits on every request in reqs, applying the same deadline to
// each. Returns one error per request, in order, nil for a request that
// completed cleanly.
func (r *RPC) WaitAll(reqs []*Request, timeout time.Duration) []error {
	errs := make([]error, len(reqs))
	for i, req := range reqs {
		errs[i] = r.Wait(req, timeout)
	}
	return errs
}

// RequestFree releases req once both its sub-handles have completed.
func (r *RPC) RequestFree(req *Request) error {
	return req.Free()
}
