// Package transport implements a TCP-backed event.Endpoint: the concrete
// interconnect driving the NAL's event queue over an ordinary net.Conn.
//
// It uses a fixed-header-plus-body framing (magic + version + type + seq
// + bodyLen, io.ReadFull to avoid partial reads) for an outer envelope
// that carries either a NAL data frame (wire.FramingSize header +
// payload) or one of the small set of control messages this Endpoint
// needs to service one-sided put/get over a two-sided byte stream: a
// get/put request naming a registered-memory descriptor, and its
// response/ack.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Envelope magic identifies a narpc transport frame.
const (
	envMagic0 byte = 'N'
	envMagic1 byte = 'A'
	envMagic2 byte = 'E'
	envVersion byte = 1

	// envHeaderSize is magic(3) + version(1) + msgType(1) + seq(4) + bodyLen(4).
	envHeaderSize = 13
)

// msgType distinguishes the envelope kinds this Endpoint exchanges.
type msgType byte

const (
	msgData        msgType = iota // NAL data frame: wire framing header + payload
	msgGetRequest                 // one-sided get: "send me the bytes behind this descriptor"
	msgGetResponse                // reply to msgGetRequest: the requested bytes
	msgPutRequest                 // one-sided put: "write these bytes behind this descriptor"
	msgPutAck                     // reply to msgPutRequest
	msgHeartbeat                  // keepalive, no body
)

type envelopeHeader struct {
	Type    msgType
	Seq     uint32
	BodyLen uint32
}

// encodeEnvelope writes a complete frame (header + body) to w.
// The caller must hold a write lock if multiple goroutines share w,
// otherwise frames from different calls would interleave and corrupt the
// stream.
func encodeEnvelope(w io.Writer, h envelopeHeader, body []byte) error {
	buf := make([]byte, envHeaderSize)
	buf[0], buf[1], buf[2] = envMagic0, envMagic1, envMagic2
	buf[3] = envVersion
	buf[4] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[5:9], h.Seq)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(body)))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// decodeEnvelope reads one complete frame from r, validating magic and
// version and using io.ReadFull to guarantee exactly N bytes, which
// solves TCP's sticky-packet problem.
func decodeEnvelope(r io.Reader) (envelopeHeader, []byte, error) {
	hdrBuf := make([]byte, envHeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return envelopeHeader{}, nil, err
	}
	if hdrBuf[0] != envMagic0 || hdrBuf[1] != envMagic1 || hdrBuf[2] != envMagic2 {
		return envelopeHeader{}, nil, fmt.Errorf("transport: bad envelope magic %x", hdrBuf[0:3])
	}
	if hdrBuf[3] != envVersion {
		return envelopeHeader{}, nil, fmt.Errorf("transport: unsupported envelope version %d", hdrBuf[3])
	}
	h := envelopeHeader{
		Type:    msgType(hdrBuf[4]),
		Seq:     binary.BigEndian.Uint32(hdrBuf[5:9]),
		BodyLen: binary.BigEndian.Uint32(hdrBuf[9:13]),
	}
	body := make([]byte, h.BodyLen)
	if h.BodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return envelopeHeader{}, nil, err
		}
	}
	return h, body, nil
}
