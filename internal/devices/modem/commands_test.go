package modem

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/fujinet-go/fujibus/internal/bus"
	"github.com/fujinet-go/fujibus/internal/slip"
	"github.com/fujinet-go/fujibus/internal/wire"
)

type fakePort struct {
	net.Conn
	timeout time.Duration
}

func (f *fakePort) SetReadTimeout(d time.Duration) {
	f.timeout = d
	f.Conn.SetReadDeadline(time.Now().Add(d))
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.Conn.SetReadDeadline(time.Now().Add(f.timeout))
	return f.Conn.Read(p)
}

func newFakePort(c net.Conn) *fakePort {
	p := &fakePort{Conn: c}
	p.SetReadTimeout(50 * time.Millisecond)
	return p
}

// fakeATModem serves Status/Write/Read for a scripted "ATDT...\r" ->
// "CONNECT 1200\r" exchange: the first Status reports empty cursors, each
// Write appends to an internal reply buffer keyed by what was written, and
// Read streams that reply back respecting the requested offset.
func fakeATModem(t *testing.T, server net.Conn) {
	t.Helper()
	var framer slip.Framer
	buf := make([]byte, 512)
	var reply []byte
	var writeCursor, netWriteCursor uint32

	readPacket := func() *wire.Packet {
		for {
			if frame, ok := framer.Next(); ok {
				decoded, err := slip.Decode(frame)
				if err != nil {
					continue
				}
				pkt, err := wire.Parse(decoded)
				if err != nil {
					continue
				}
				return pkt
			}
			server.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, err := server.Read(buf)
			if err != nil || n == 0 {
				return nil
			}
			framer.Feed(buf[:n])
		}
	}

	respondOk := func(cmd uint8, payload []byte) {
		resp := wire.BuildWithParams(DeviceID, cmd, []wire.Param{{Width: 1, Value: 0}}, payload)
		server.Write(resp)
	}

	for {
		pkt := readPacket()
		if pkt == nil {
			return
		}
		switch pkt.Command {
		case CmdStatus:
			payload := make([]byte, 0, 20)
			payload = append(payload, ProtocolVersion, 0, 0, 0)
			payload = wire.WriteU16(payload, 0) // listen port
			payload = wire.WriteU32(payload, 0) // host_rx_avail
			payload = wire.WriteU32(payload, writeCursor)
			payload = wire.WriteU32(payload, 0) // net_read_cursor
			payload = wire.WriteU32(payload, netWriteCursor)
			respondOk(CmdStatus, payload)
		case CmdWrite:
			_, off, _ := wire.ReadU8(pkt.Payload, 0)
			offset, off, _ := wire.ReadU32(pkt.Payload, off)
			data, _, _ := wire.ReadLPBytes16(pkt.Payload, off)
			writeCursor = offset + uint32(len(data))
			if bytes.Contains(bytes.ToUpper(data), []byte("ATDT")) {
				reply = append(reply, []byte("CONNECT 1200\r")...)
			}
			respPayload := []byte{ProtocolVersion, 0, 0, 0}
			respPayload = wire.WriteU32(respPayload, offset)
			respPayload = wire.WriteU16(respPayload, uint16(len(data)))
			respondOk(CmdWrite, respPayload)
		case CmdRead:
			_, off, _ := wire.ReadU8(pkt.Payload, 0)
			offset, off, _ := wire.ReadU32(pkt.Payload, off)
			maxBytes, _, _ := wire.ReadU16(pkt.Payload, off)

			start := int(offset)
			if start > len(reply) {
				start = len(reply)
			}
			end := start + int(maxBytes)
			if end > len(reply) {
				end = len(reply)
			}
			chunk := reply[start:end]
			netWriteCursor = uint32(len(reply))

			respPayload := []byte{ProtocolVersion, 0, 0, 0}
			respPayload = wire.WriteU32(respPayload, offset)
			respPayload = wire.WriteLPBytes16(respPayload, chunk)
			respondOk(CmdRead, respPayload)
		default:
			return
		}
	}
}

func TestSendATCommandReturnsConnectReply(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go fakeATModem(t, server)

	sess := bus.New(newFakePort(client))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cur, err := NewCursor(ctx, sess)
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}

	out, err := SendATCommand(ctx, sess, cur, "ATDT555-1234", 4096, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("SendATCommand: %v", err)
	}
	if !bytes.Contains(out, []byte("CONNECT 1200")) {
		t.Fatalf("got %q, want it to contain CONNECT 1200", out)
	}
}

func TestNormalizeATLineAddsPrefixAndTerminator(t *testing.T) {
	if got := normalizeATLine("DT555-1234"); got != "ATDT555-1234\r" {
		t.Fatalf("got %q", got)
	}
	if got := normalizeATLine("ATH0\r"); got != "ATH0\r" {
		t.Fatalf("got %q", got)
	}
}
