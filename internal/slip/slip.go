// Package slip implements SLIP (RFC 1055) framing for the FujiBus byte
// stream: encode escapes END and ESC bytes inside a packet and wraps it in
// leading/trailing END markers; a Framer consumes a growing receive buffer
// and yields complete frames as they arrive, tolerating partial reads and
// leading junk.
package slip

import (
	"bytes"
	"fmt"
)

const (
	End    = 0xC0
	Escape = 0xDB
	EscEnd = 0xDC
	EscEsc = 0xDD
)

// MaxFrameBuffer bounds how much unframed data Framer will accumulate
// before giving up and discarding it, guarding against a runaway peer that
// never sends a closing END. It is a package variable so callers with
// unusual payload sizes can raise it.
var MaxFrameBuffer = 256 * 1024

// Encode wraps payload in SLIP framing, escaping any literal END or ESC
// bytes it contains.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, End)
	for _, b := range payload {
		switch b {
		case End:
			out = append(out, Escape, EscEnd)
		case Escape:
			out = append(out, Escape, EscEsc)
		default:
			out = append(out, b)
		}
	}
	out = append(out, End)
	return out
}

// Decode unescapes a complete frame (leading and trailing END included)
// back into its payload. An unrecognized escape sequence passes the escape
// byte through unchanged rather than failing, matching how a corrupted but
// still-framed packet is left for the checksum to catch.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < 2 || frame[0] != End || frame[len(frame)-1] != End {
		return nil, fmt.Errorf("slip: frame missing END markers")
	}
	out := make([]byte, 0, len(frame))
	body := frame[1 : len(frame)-1]
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b != Escape {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(body) {
			break
		}
		switch body[i] {
		case EscEnd:
			out = append(out, End)
		case EscEsc:
			out = append(out, Escape)
		default:
			out = append(out, b)
		}
	}
	return out, nil
}

// Framer extracts complete SLIP frames from a byte stream that may arrive
// in arbitrary-sized chunks. It never caps the buffer to the size of one
// read, since a frame can span many reads; it only bounds total buffered
// junk via MaxFrameBuffer.
type Framer struct {
	rx []byte
}

// Feed appends newly read bytes to the framer's internal buffer.
func (f *Framer) Feed(chunk []byte) {
	f.rx = append(f.rx, chunk...)
	if len(f.rx) > MaxFrameBuffer {
		f.rx = nil
	}
}

// Next extracts and removes one complete frame (END ... END) from the
// buffer, or returns ok=false if no full frame is currently available.
// Leading bytes before the first END are discarded as junk.
func (f *Framer) Next() (frame []byte, ok bool) {
	start := bytes.IndexByte(f.rx, End)
	if start < 0 {
		f.rx = f.rx[:0]
		return nil, false
	}
	if start > 0 {
		f.rx = f.rx[start:]
	}

	end := bytes.IndexByte(f.rx[1:], End)
	if end < 0 {
		return nil, false
	}
	end++ // offset relative to f.rx, not f.rx[1:]

	frame = append([]byte(nil), f.rx[:end+1]...)
	f.rx = f.rx[end+1:]
	return frame, true
}
