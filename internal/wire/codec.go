// Package wire provides the little-endian byte codec and FujiBus packet
// framing shared by every device protocol: fixed-width integer readers and
// writers, length-prefixed byte/string helpers, and the packet header
// (device, command, length, checksum, descriptor) that wraps every
// request and response on the bus.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrOutOfBounds is returned by the Read* helpers when the buffer is too
// short for the field being decoded.
var ErrOutOfBounds = errors.New("wire: read out of bounds")

// ReadU8 reads a single byte at off, returning the new offset.
func ReadU8(b []byte, off int) (uint8, int, error) {
	if off+1 > len(b) {
		return 0, off, fmt.Errorf("%w: u8 at %d", ErrOutOfBounds, off)
	}
	return b[off], off + 1, nil
}

// ReadU16 reads a little-endian uint16 at off.
func ReadU16(b []byte, off int) (uint16, int, error) {
	if off+2 > len(b) {
		return 0, off, fmt.Errorf("%w: u16 at %d", ErrOutOfBounds, off)
	}
	return binary.LittleEndian.Uint16(b[off : off+2]), off + 2, nil
}

// ReadU32 reads a little-endian uint32 at off.
func ReadU32(b []byte, off int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, off, fmt.Errorf("%w: u32 at %d", ErrOutOfBounds, off)
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), off + 4, nil
}

// ReadU64 reads a little-endian uint64 at off.
func ReadU64(b []byte, off int) (uint64, int, error) {
	if off+8 > len(b) {
		return 0, off, fmt.Errorf("%w: u64 at %d", ErrOutOfBounds, off)
	}
	return binary.LittleEndian.Uint64(b[off : off+8]), off + 8, nil
}

// ReadBytes reads exactly n raw bytes at off, with no length prefix of its
// own — for fields whose length was already read as a separate value.
func ReadBytes(b []byte, off int, n int) ([]byte, int, error) {
	end := off + n
	if n < 0 || end > len(b) {
		return nil, off, fmt.Errorf("%w: %d raw bytes at %d", ErrOutOfBounds, n, off)
	}
	return b[off:end], end, nil
}

// ReadLPBytes16 reads a u16le length prefix followed by that many bytes.
func ReadLPBytes16(b []byte, off int) ([]byte, int, error) {
	n, off, err := ReadU16(b, off)
	if err != nil {
		return nil, off, err
	}
	end := off + int(n)
	if end > len(b) {
		return nil, off, fmt.Errorf("%w: lp16 body of %d at %d", ErrOutOfBounds, n, off)
	}
	return b[off:end], end, nil
}

// ReadLPString16 reads a u16le length-prefixed string, lossily decoding
// invalid UTF-8 by substituting a single U+FFFD for each run of offending
// bytes rather than preserving them verbatim.
func ReadLPString16(b []byte, off int) (string, int, error) {
	raw, off, err := ReadLPBytes16(b, off)
	if err != nil {
		return "", off, err
	}
	return toValidUTF8(raw), off, nil
}

// ReadLPBytes8 reads a u8 length prefix followed by that many bytes, used
// for filesystem names which never exceed 255 bytes.
func ReadLPBytes8(b []byte, off int) ([]byte, int, error) {
	n, off, err := ReadU8(b, off)
	if err != nil {
		return nil, off, err
	}
	end := off + int(n)
	if end > len(b) {
		return nil, off, fmt.Errorf("%w: lp8 body of %d at %d", ErrOutOfBounds, n, off)
	}
	return b[off:end], end, nil
}

// ReadLPString8 reads a u8 length-prefixed string, lossily decoding
// invalid UTF-8 the same way ReadLPString16 does.
func ReadLPString8(b []byte, off int) (string, int, error) {
	raw, off, err := ReadLPBytes8(b, off)
	if err != nil {
		return "", off, err
	}
	return toValidUTF8(raw), off, nil
}

// toValidUTF8 replaces each run of invalid UTF-8 bytes in raw with a single
// U+FFFD (Python's errors="replace" would emit one per invalid byte, so two
// bad bytes in a row decode differently here). A plain string(raw) conversion would
// instead preserve the bad bytes verbatim, since a Go string has no
// encoding invariant of its own.
func toValidUTF8(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}

// WriteU8 appends a single byte.
func WriteU8(b []byte, v uint8) []byte {
	return append(b, v)
}

// WriteU16 appends a little-endian uint16.
func WriteU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

// WriteU32 appends a little-endian uint32.
func WriteU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteU64 appends a little-endian uint64.
func WriteU64(b []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

// WriteLPBytes16 appends a u16le length prefix followed by data.
func WriteLPBytes16(b []byte, data []byte) []byte {
	b = WriteU16(b, uint16(len(data)))
	return append(b, data...)
}

// WriteLPString16 appends a u16le length-prefixed string.
func WriteLPString16(b []byte, s string) []byte {
	return WriteLPBytes16(b, []byte(s))
}

// WriteLPBytes8 appends a u8 length prefix followed by data.
func WriteLPBytes8(b []byte, data []byte) []byte {
	if len(data) > 0xFF {
		data = data[:0xFF]
	}
	b = WriteU8(b, uint8(len(data)))
	return append(b, data...)
}

// WriteLPString8 appends a u8 length-prefixed string.
func WriteLPString8(b []byte, s string) []byte {
	return WriteLPBytes8(b, []byte(s))
}
