package modem

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/fujinet-go/fujibus/internal/bus"
)

func statusError(params []uint64) error {
	if len(params) == 0 {
		return fmt.Errorf("modem: response carried no status param")
	}
	status := bus.Status(params[0])
	if status == bus.StatusOk {
		return nil
	}
	return &bus.ProtocolError{Status: status}
}

// Status sends a Status request and returns the decoded result.
func Status(ctx context.Context, sess *bus.Session) (*StatusResult, error) {
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdStatus, BuildStatusRequest(), DeviceID, CmdStatus, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("modem: no response to status")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseStatusResponse(pkt.Payload)
}

// Write sends a single Write request and returns the decoded result.
func Write(ctx context.Context, sess *bus.Session, offset uint32, data []byte) (*WriteResult, error) {
	req, err := BuildWriteRequest(offset, data)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdWrite, req, DeviceID, CmdWrite, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("modem: no response to write")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseWriteResponse(pkt.Payload)
}

// Read sends a single Read request and returns the decoded result.
func Read(ctx context.Context, sess *bus.Session, offset uint32, maxBytes uint16) (*ReadResult, error) {
	req := BuildReadRequest(offset, maxBytes)
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdRead, req, DeviceID, CmdRead, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("modem: no response to read")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseReadResponse(pkt.Payload)
}

// Control sends a Control request with the given op and trailing bytes.
func Control(ctx context.Context, sess *bus.Session, op uint8, data []byte) error {
	req := BuildControlRequest(op, data)
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdControl, req, DeviceID, CmdControl, bus.DefaultRetryConfig)
	if err != nil {
		return err
	}
	if pkt == nil {
		return fmt.Errorf("modem: no response to control")
	}
	return statusError(pkt.Params)
}

// Cursor tracks the host-side read/write offsets for an ongoing modem
// session, the same way TCPStream does for a network stream. The device's
// Status response reports both sides' cursors; Cursor caches them locally
// so repeated Drain/Write calls don't re-read already-consumed bytes.
type Cursor struct {
	Read  uint32
	Write uint32
}

// NewCursor seeds a Cursor from the device's current Status: Write starts
// at the host write cursor (where the next AT command byte goes), and
// Read starts at the net write cursor (how much the device has already
// produced for the host to consume).
func NewCursor(ctx context.Context, sess *bus.Session) (*Cursor, error) {
	st, err := Status(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &Cursor{Read: st.NetWriteCursor, Write: st.HostWriteCursor}, nil
}

// Drain reads sequentially from cur.Read until idleTimeout passes with no
// new bytes, or maxTotal bytes have accumulated, advancing cur.Read as it
// goes.
func Drain(ctx context.Context, sess *bus.Session, cur *Cursor, maxTotal int, idleTimeout time.Duration) ([]byte, error) {
	var out []byte
	idleDeadline := time.Now().Add(idleTimeout)
	for len(out) < maxTotal {
		rr, err := Read(ctx, sess, cur.Read, 512)
		if err != nil {
			return out, err
		}
		if rr.Offset != cur.Read {
			return out, fmt.Errorf("modem: offset echo mismatch: expected %d, got %d", cur.Read, rr.Offset)
		}
		if len(rr.Data) > 0 {
			out = append(out, rr.Data...)
			cur.Read += uint32(len(rr.Data))
			idleDeadline = time.Now().Add(idleTimeout)
			continue
		}
		if time.Now().After(idleDeadline) {
			break
		}
		if !sleepCtx(ctx, 20*time.Millisecond) {
			return out, ctx.Err()
		}
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// SendATCommand writes an AT command line at cur.Write and drains the
// reply text, advancing cur as it goes. It prefixes "AT" and a trailing
// \r if the caller's command string doesn't already carry them.
func SendATCommand(ctx context.Context, sess *bus.Session, cur *Cursor, command string, maxReply int, idleTimeout time.Duration) ([]byte, error) {
	line := normalizeATLine(command)

	wr, err := Write(ctx, sess, cur.Write, []byte(line))
	if err != nil {
		return nil, err
	}
	cur.Write += uint32(wr.Written)

	return Drain(ctx, sess, cur, maxReply, idleTimeout)
}

func normalizeATLine(command string) string {
	s := command
	if len(s) < 2 || (s[0] != 'A' && s[0] != 'a') || (s[1] != 'T' && s[1] != 't') {
		s = "AT" + s
	}
	if len(s) == 0 || (s[len(s)-1] != '\r' && s[len(s)-1] != '\n') {
		s += "\r"
	}
	return s
}

// Dial sends a Control(Dial) request for target and drains output on cur
// until "CONNECT" or "NO CARRIER" appears, or deadline elapses.
func Dial(ctx context.Context, sess *bus.Session, cur *Cursor, target string, deadline time.Time) ([]byte, error) {
	req, err := BuildDialRequest(target)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdControl, req, DeviceID, CmdControl, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("modem: no response to dial")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}

	var out []byte
	for time.Now().Before(deadline) {
		chunk, err := Drain(ctx, sess, cur, 4096, 250*time.Millisecond)
		if err != nil {
			return out, err
		}
		if len(chunk) > 0 {
			out = append(out, chunk...)
			if bytes.Contains(out, []byte("CONNECT")) || bytes.Contains(out, []byte("NO CARRIER")) {
				break
			}
		} else if !sleepCtx(ctx, 20*time.Millisecond) {
			return out, ctx.Err()
		}
	}
	return out, nil
}

// Hangup sends a Control(Hangup) request.
func Hangup(ctx context.Context, sess *bus.Session) error {
	return Control(ctx, sess, ControlHangup, nil)
}

// SendRecv drains stale output, writes data at cur.Write, then reads back
// until len(data) bytes have echoed, a drain round returns nothing, or
// deadline elapses, advancing cur as it goes. This mirrors the TCP-echo convenience workflow used for
// scripted modem testing.
func SendRecv(ctx context.Context, sess *bus.Session, cur *Cursor, data []byte, deadline time.Time) ([]byte, error) {
	if _, err := Drain(ctx, sess, cur, 4096, 50*time.Millisecond); err != nil {
		return nil, err
	}

	wr, err := Write(ctx, sess, cur.Write, data)
	if err != nil {
		return nil, err
	}
	cur.Write += uint32(wr.Written)

	var out []byte
	for len(out) < len(data) && time.Now().Before(deadline) {
		chunk, err := Drain(ctx, sess, cur, len(data)-len(out), 100*time.Millisecond)
		if err != nil {
			return out, err
		}
		if len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
	}
	return out, nil
}
