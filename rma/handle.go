// Package rma implements the RMA memory-handle manager: register and
// deregister memory regions for one-sided put/get, and move handles
// bit-exactly across the wire. Registration itself (binding a handle to a
// transport endpoint) is done by the Endpoint; this package only records
// the outcome through MarkRegistered/MarkDeregistered, keeping protocol framing
// (encoding/binary, fixed layout) separate from the transport that
// actually moves bytes.
package rma

import (
	"encoding/binary"
	"narpc/narpcerr"
	"narpc/wire"
	"sync/atomic"
)

// AccessFlags controls what a peer may do against a registered handle.
type AccessFlags byte

const (
	AccessRead AccessFlags = 1 << iota
	AccessWrite
)

const (
	ReadOnly  = AccessRead
	ReadWrite = AccessRead | AccessWrite
)

// Handle is a registered-memory handle: base buffer, access flags, and a
// transport-opaque descriptor filled in by MarkRegistered.
type Handle struct {
	buf        []byte
	flags      AccessFlags
	registered bool
	descriptor [32]byte
	descLen    uint16
	refs       int32 // outstanding RMA references; MarkDeregistered refuses while > 0
}

// Create allocates a handle shell over buf with the given access flags.
// It is not yet usable for put/get until MarkRegistered succeeds.
func Create(buf []byte, flags AccessFlags) *Handle {
	return &Handle{buf: buf, flags: flags}
}

// Bytes returns the handle's backing buffer.
func (h *Handle) Bytes() []byte { return h.buf }

// Flags reports the handle's access flags.
func (h *Handle) Flags() AccessFlags { return h.flags }

// Registered reports whether MarkRegistered has succeeded and
// MarkDeregistered has not since succeeded.
func (h *Handle) Registered() bool { return h.registered }

// Descriptor returns the transport-opaque descriptor an Endpoint produced
// at Register time, for endpoints that need to address the remote side's
// memory region directly (e.g. by a locally-assigned registration id).
func (h *Handle) Descriptor() []byte { return h.descriptor[:h.descLen] }

// MarkRegistered records that the endpoint has bound this handle, storing
// the transport-opaque descriptor it returned. Local read is always
// permitted; write permission depends on the flags the caller chose at
// Create time — MarkRegistered just records the result.
func (h *Handle) MarkRegistered(descriptor []byte) error {
	if len(descriptor) > len(h.descriptor) {
		return narpcerr.Wrap(narpcerr.SizeError, "rma descriptor too large")
	}
	copy(h.descriptor[:], descriptor)
	h.descLen = uint16(len(descriptor))
	h.registered = true
	return nil
}

// MarkDeregistered records that the endpoint has unbound this handle. It
// refuses while RMA operations still reference the handle: deregistration
// is safe only when no outstanding RMA operation references it.
func (h *Handle) MarkDeregistered() error {
	if atomic.LoadInt32(&h.refs) > 0 {
		return narpcerr.Wrap(narpcerr.ProtocolError, "rma handle has outstanding references")
	}
	h.registered = false
	return nil
}

// AddRef/Release bracket a single put/get against this handle so
// MarkDeregistered can detect outstanding use.
func (h *Handle) AddRef()  { atomic.AddInt32(&h.refs, 1) }
func (h *Handle) Release() { atomic.AddInt32(&h.refs, -1) }

// CheckPut rejects a put whose remote handle lacks write permission: put
// requires the remote handle to have been registered with write
// permission.
func CheckPut(remote *Handle) error {
	if !remote.registered {
		return narpcerr.Wrap(narpcerr.PermissionError, "rma handle not registered")
	}
	if remote.flags&AccessWrite == 0 {
		return narpcerr.Wrap(narpcerr.PermissionError, "rma handle lacks write permission")
	}
	return nil
}

// CheckGet rejects a get whose remote handle lacks read permission: get
// requires at least read permission.
func CheckGet(remote *Handle) error {
	if !remote.registered {
		return narpcerr.Wrap(narpcerr.PermissionError, "rma handle not registered")
	}
	if remote.flags&AccessRead == 0 {
		return narpcerr.Wrap(narpcerr.PermissionError, "rma handle lacks read permission")
	}
	return nil
}

// Serialize moves h bit-exactly into buf: fixed-size, self-contained, and
// transferable to a peer by copying bytes.
func Serialize(h *Handle, buf []byte) error {
	if len(buf) < wire.RMAHandleWireSize {
		return narpcerr.Wrap(narpcerr.SizeError, "rma wire buffer too small")
	}
	off := 0
	buf[off] = 1 // present
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(len(h.buf)))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(cap(h.buf)))
	off += 8
	buf[off] = byte(h.flags)
	off++
	binary.BigEndian.PutUint16(buf[off:off+2], h.descLen)
	off += 2
	copy(buf[off:off+len(h.descriptor)], h.descriptor[:])
	return nil
}

// Deserialize reconstructs a Handle from bytes produced by Serialize. The
// reconstructed handle shares no backing buffer with the original — it
// carries only the metadata a peer needs to target put/get at the original
// region via the transport's RMA path.
func Deserialize(buf []byte) (*Handle, error) {
	if len(buf) < wire.RMAHandleWireSize {
		return nil, narpcerr.Wrap(narpcerr.SizeError, "rma wire buffer truncated")
	}
	off := 0
	present := buf[off]
	off++
	if present == 0 {
		return nil, nil // sentinel: no handle present
	}
	size := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	off += 8 // capacity, currently unused on the receiving side
	flags := AccessFlags(buf[off])
	off++
	descLen := binary.BigEndian.Uint16(buf[off : off+2])
	off += 2
	h := &Handle{
		buf:        make([]byte, size),
		flags:      flags,
		registered: true,
		descLen:    descLen,
	}
	copy(h.descriptor[:], buf[off:off+len(h.descriptor)])
	return h, nil
}

// IsSentinel reports whether an ExtraHandle wire image represents "absent".
func IsSentinel(buf [wire.RMAHandleWireSize]byte) bool {
	return buf[0] == 0
}
