// Package wire implements the on-the-wire framing for narpc: a fixed
// header plus binary.BigEndian fields, the same shape that solves TCP's
// sticky-packet problem elsewhere in this codebase, adapted from a
// single RPC frame header to the NAL's 4-byte expect+tag word plus
// separate request/response headers.
package wire

import (
	"encoding/binary"
	"hash/crc32"
	"narpc/narpcerr"
)

// FramingSize is the on-wire size of the framing word: one 32-bit word, low
// bit is the expect flag, upper 31 bits are the tag.
const FramingSize = 4

// PutFraming writes the framing word into buf[0:4].
func PutFraming(buf []byte, expect bool, tag uint32) error {
	if len(buf) < FramingSize {
		return narpcerr.Wrap(narpcerr.SizeError, "framing header does not fit")
	}
	word := tag << 1
	if expect {
		word |= 1
	}
	binary.BigEndian.PutUint32(buf[:FramingSize], word)
	return nil
}

// GetFraming reads the framing word from buf[0:4].
func GetFraming(buf []byte) (expect bool, tag uint32, err error) {
	if len(buf) < FramingSize {
		return false, 0, narpcerr.Wrap(narpcerr.SizeError, "framing header truncated")
	}
	word := binary.BigEndian.Uint32(buf[:FramingSize])
	return word&1 == 1, word >> 1, nil
}

var crcTable = crc32.MakeTable(crc32.IEEE)

// Checksum hashes a response body the same way ConsistentHashBalancer
// hashes ring keys (crc32.ChecksumIEEE), reused here to verify response
// headers instead of picking ring nodes.
func Checksum(body []byte) uint32 {
	return crc32.Checksum(body, crcTable)
}
