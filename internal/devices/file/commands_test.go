package file

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

// fakePort adapts net.Conn to transport.Port for tests, the same shape
// used across the device packages' fake-device test harnesses.
type fakePort struct {
	net.Conn
}

func (f *fakePort) SetReadTimeout(d time.Duration) {
	f.Conn.SetReadDeadline(time.Now().Add(d))
}

func newFakePort(c net.Conn) *fakePort {
	p := &fakePort{Conn: c}
	p.SetReadTimeout(50 * time.Millisecond)
	return p
}

// fakeFileDevice serves Read requests against an in-memory byte slice,
// echoing the FujiBus convention of a single u8 status param.
func fakeFileDevice(t *testing.T, server net.Conn, data []byte) {
	t.Helper()
	var framer slip.Framer
	buf := make([]byte, 512)

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

	for {
		pkt := readPacket()
		if pkt == nil {
			return
		}
		if pkt.Command != CmdRead {
			return
		}
		_, off, _ := wire.ReadU8(pkt.Payload, 0)
		_, off, _ = wire.ReadLPBytes8(pkt.Payload, off)
		_, off, _ = wire.ReadLPBytes16(pkt.Payload, off)
		offset, off, _ := wire.ReadU32(pkt.Payload, off)
		maxBytes, _, _ := wire.ReadU16(pkt.Payload, off)

		end := int(offset) + int(maxBytes)
		eof := false
		if end >= len(data) {
			end = len(data)
			eof = true
		}
		chunk := data[offset:end]

		flags := uint8(0)
		if eof {
			flags |= 0x01
		}
		respPayload := make([]byte, 0, 10+len(chunk))
		respPayload = wire.WriteU8(respPayload, ProtocolVersion)
		respPayload = wire.WriteU8(respPayload, flags)
		respPayload = wire.WriteU16(respPayload, 0)
		respPayload = wire.WriteU32(respPayload, offset)
		respPayload = wire.WriteLPBytes16(respPayload, chunk)

		resp := wire.BuildWithParams(DeviceID, CmdRead, []wire.Param{{Width: 1, Value: 0}}, respPayload)
		server.Write(resp)
	}
}

func TestReadAllReassemblesChunkedFile(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	content := bytes.Repeat([]byte("fujibus-chunked-content-"), 10)
	go fakeFileDevice(t, server, content)

	sess := bus.New(newFakePort(client))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	n, err := ReadAll(ctx, sess, "SD", "/hello.txt", 16, &out)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if n != int64(len(content)) {
		t.Fatalf("got %d bytes, want %d", n, len(content))
	}
	if !bytes.Equal(out.Bytes(), content) {
		t.Fatalf("content mismatch")
	}
}
