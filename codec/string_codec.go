package codec

import (
	"encoding/binary"
	"narpc/narpcerr"
)

// EncodeString writes a length-prefixed UTF-8 string: a 4-byte big-endian
// length prefix followed by the raw bytes.
func EncodeString(w *Writer, v any) error {
	s, ok := v.(string)
	if !ok {
		sp, ok2 := v.(*string)
		if !ok2 {
			return narpcerr.Wrap(narpcerr.InvalidParam, "EncodeString: v must be string or *string")
		}
		s = *sp
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// DecodeString reads a length-prefixed UTF-8 string into *v (v must be
// *string).
func DecodeString(r *Reader, v any) error {
	sp, ok := v.(*string)
	if !ok {
		return narpcerr.Wrap(narpcerr.InvalidParam, "DecodeString: v must be *string")
	}
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(body); err != nil {
			return err
		}
	}
	*sp = string(body)
	return nil
}

// ReleaseString is a no-op: plain strings carry no dynamically allocated
// members beyond the string's own backing array, which the Go garbage
// collector reclaims once *v is overwritten or dropped.
func ReleaseString(v any) {}
