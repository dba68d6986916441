package wire

import (
	"encoding/binary"
	"narpc/narpcerr"
)

// Magic identifies a narpc request/response header.
var Magic = [4]byte{'N', 'A', 'R', 'P'}

// Version is the current header layout version.
const Version byte = 1

// RMAHandleWireSize is the fixed-size byte image of a registered-memory
// handle: a present flag, buffer length, buffer capacity, access flags,
// descriptor length, and a transport-opaque descriptor of fixed length.
const (
	rmaDescriptorLen = 32
	RMAHandleWireSize = 1 + 8 + 8 + 1 + 2 + rmaDescriptorLen
)

// RequestHeader is written after the framing header, before the
// user-encoded input.
type RequestHeader struct {
	CallID      uint32
	Flags       byte
	ExtraHandle [RMAHandleWireSize]byte // sentinel (all-zero, Present=0) when no extra buffer
}

// RequestHeaderSize is the fixed on-wire size of RequestHeader.
const RequestHeaderSize = 4 + 1 + 4 + 1 + RMAHandleWireSize

// PutRequestHeader serializes h into buf[0:RequestHeaderSize].
func PutRequestHeader(buf []byte, h *RequestHeader) error {
	if len(buf) < RequestHeaderSize {
		return narpcerr.Wrap(narpcerr.SizeError, "request header does not fit")
	}
	off := 0
	copy(buf[off:off+4], Magic[:])
	off += 4
	buf[off] = Version
	off++
	binary.BigEndian.PutUint32(buf[off:off+4], h.CallID)
	off += 4
	buf[off] = h.Flags
	off++
	copy(buf[off:off+RMAHandleWireSize], h.ExtraHandle[:])
	return nil
}

// GetRequestHeader deserializes a RequestHeader from the front of buf and
// returns the header plus the remaining body slice.
func GetRequestHeader(buf []byte) (*RequestHeader, []byte, error) {
	if len(buf) < RequestHeaderSize {
		return nil, nil, narpcerr.Wrap(narpcerr.SizeError, "request header truncated")
	}
	off := 0
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return nil, nil, narpcerr.Wrap(narpcerr.ProtocolError, "bad request magic")
	}
	off += 4
	version := buf[off]
	off++
	if version != Version {
		return nil, nil, narpcerr.Wrap(narpcerr.ProtocolError, "unsupported request version")
	}
	h := &RequestHeader{}
	h.CallID = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	h.Flags = buf[off]
	off++
	copy(h.ExtraHandle[:], buf[off:off+RMAHandleWireSize])
	off += RMAHandleWireSize
	return h, buf[off:], nil
}

// ResponseHeader is the fixed layout written ahead of the response body:
// same magic/version scheme minus the RMA handle, plus a status and a
// checksum for verification.
type ResponseHeader struct {
	Status   byte
	Checksum uint32
}

// ResponseHeaderSize is the fixed on-wire size of ResponseHeader.
const ResponseHeaderSize = 4 + 1 + 1 + 4

// PutResponseHeader serializes h followed by body into buf, computing the
// checksum over body.
func PutResponseHeader(buf []byte, status byte, body []byte) (int, error) {
	total := ResponseHeaderSize + len(body)
	if len(buf) < total {
		return 0, narpcerr.Wrap(narpcerr.SizeError, "response does not fit")
	}
	off := 0
	copy(buf[off:off+4], Magic[:])
	off += 4
	buf[off] = Version
	off++
	buf[off] = status
	off++
	binary.BigEndian.PutUint32(buf[off:off+4], Checksum(body))
	off += 4
	copy(buf[off:off+len(body)], body)
	return total, nil
}

// GetResponseHeader deserializes a ResponseHeader and returns it plus the
// remaining body slice, without verifying the checksum (see VerifyResponse).
func GetResponseHeader(buf []byte) (*ResponseHeader, []byte, error) {
	if len(buf) < ResponseHeaderSize {
		return nil, nil, narpcerr.Wrap(narpcerr.SizeError, "response header truncated")
	}
	off := 0
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return nil, nil, narpcerr.Wrap(narpcerr.ProtocolError, "bad response magic")
	}
	off += 4
	version := buf[off]
	off++
	if version != Version {
		return nil, nil, narpcerr.Wrap(narpcerr.ProtocolError, "unsupported response version")
	}
	h := &ResponseHeader{}
	h.Status = buf[off]
	off++
	h.Checksum = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	return h, buf[off:], nil
}

// VerifyResponse recomputes the checksum over body and compares it
// against the header's recorded value, reporting ChecksumError on
// mismatch.
func VerifyResponse(h *ResponseHeader, body []byte) error {
	if Checksum(body) != h.Checksum {
		return narpcerr.ErrChecksumError
	}
	return nil
}
