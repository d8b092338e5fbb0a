package netdev

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
}

func (f *fakePort) SetReadTimeout(d time.Duration) {
	f.Conn.SetReadDeadline(time.Now().Add(d))
}

func newFakePort(c net.Conn) *fakePort {
	p := &fakePort{Conn: c}
	p.SetReadTimeout(50 * time.Millisecond)
	return p
}

// fakeHTTPDevice serves a GET: Open -> accepted handle=1, Info -> 200/len(body),
// Read -> streams body in maxBytes chunks, Close -> ok.
func fakeHTTPDevice(t *testing.T, server net.Conn, body []byte) {
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
		case CmdOpen:
			payload := []byte{OpenRespFlagAccepted, 0, 0, 1, 0}
			respondOk(CmdOpen, payload)
		case CmdInfo:
			payload := make([]byte, 0, 16)
			payload = append(payload, InfoFlagHasHTTPStatus|InfoFlagHasContentLen)
			payload = append(payload, 0, 0)
			payload = append(payload, 1, 0) // handle
			payload = append(payload, 200, 0)
			cl := uint64(len(body))
			for i := 0; i < 8; i++ {
				payload = append(payload, byte(cl>>(8*i)))
			}
			payload = append(payload, 0, 0) // no headers
			respondOk(CmdInfo, payload)
		case CmdRead:
			_, off, _ := wire.ReadU8(pkt.Payload, 0)
			_, off, _ = wire.ReadU16(pkt.Payload, off)
			offset, off, _ := wire.ReadU32(pkt.Payload, off)
			maxBytes, _, _ := wire.ReadU16(pkt.Payload, off)

			end := int(offset) + int(maxBytes)
			eof := false
			if end >= len(body) {
				end = len(body)
				eof = true
			}
			chunk := body[offset:end]

			flags := uint8(0)
			if eof {
				flags |= DataFlagEOF
			}
			respPayload := make([]byte, 0, 10+len(chunk))
			respPayload = append(respPayload, flags, 0, 0)
			respPayload = wire.WriteU16(respPayload, 1) // handle
			respPayload = wire.WriteU32(respPayload, offset)
			respPayload = wire.WriteLPBytes16(respPayload, chunk)
			respondOk(CmdRead, respPayload)
		case CmdClose:
			respondOk(CmdClose, []byte{0, 0, 0, 1, 0})
		default:
			return
		}
	}
}

func TestGetStreamsBodyToSink(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	body := bytes.Repeat([]byte("network-payload-"), 20)
	go fakeHTTPDevice(t, server, body)

	sess := bus.New(newFakePort(client))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	opts := DefaultGetOptions
	opts.Chunk = 32
	opts.ShowHeaders = true

	result, err := Get(ctx, sess, "http://example.com/data.bin", &out, opts)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if result.Total != int64(len(body)) {
		t.Fatalf("got %d bytes, want %d", result.Total, len(body))
	}
	if !bytes.Equal(out.Bytes(), body) {
		t.Fatalf("content mismatch")
	}
	if result.Info == nil || result.Info.HTTPStatus != 200 {
		t.Fatalf("expected info with http_status=200, got %+v", result.Info)
	}
}

func TestTCPURLEncodesOptions(t *testing.T) {
	nodelay := true
	got := TCPURL("fujinet.local", 23, TCPOptions{ConnectTimeoutMS: 500, Nodelay: &nodelay})
	want := "tcp://fujinet.local:23?connect_timeout_ms=500&nodelay=1"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTCPURLNoOptions(t *testing.T) {
	got := TCPURL("fujinet.local", 23, TCPOptions{})
	want := "tcp://fujinet.local:23"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// fakeTCPDevice serves Open (accepted, handle=5), Info (not connected on
// the first call, connected afterwards), Write (accepts whole chunk), and
// Close; any other command, Read included, ends the fake.
func fakeTCPDevice(t *testing.T, server net.Conn) {
	t.Helper()
	var framer slip.Framer
	buf := make([]byte, 512)
	infoCalls := 0

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
		switch pkt.Command {
		case CmdOpen:
			payload := []byte{OpenRespFlagAccepted, 0, 0, 5, 0}
			resp := wire.BuildWithParams(DeviceID, CmdOpen, []wire.Param{{Width: 1, Value: 0}}, payload)
			server.Write(resp)
		case CmdInfo:
			infoCalls++
			headerBytes := []byte{}
			name := "X-FujiNet-Connected"
			value := "0"
			if infoCalls >= 2 {
				value = "1"
			}
			headerBytes = wire.WriteLPString16(headerBytes, name)
			headerBytes = wire.WriteLPString16(headerBytes, value)

			payload := make([]byte, 0, 16+len(headerBytes))
			payload = append(payload, InfoFlagHeadersIncluded)
			payload = append(payload, 0, 0)
			payload = wire.WriteU16(payload, 5)
			payload = wire.WriteU16(payload, 0)
			payload = wire.WriteU64(payload, 0)
			payload = wire.WriteLPBytes16(payload, headerBytes)

			resp := wire.BuildWithParams(DeviceID, CmdInfo, []wire.Param{{Width: 1, Value: 0}}, payload)
			server.Write(resp)
		case CmdWrite:
			_, off, _ := wire.ReadU8(pkt.Payload, 0)
			_, off, _ = wire.ReadU16(pkt.Payload, off)
			offset, off, _ := wire.ReadU32(pkt.Payload, off)
			data, _, _ := wire.ReadLPBytes16(pkt.Payload, off)

			respPayload := make([]byte, 0, 9)
			respPayload = append(respPayload, 0, 0, 0)
			respPayload = wire.WriteU16(respPayload, 5)
			respPayload = wire.WriteU32(respPayload, offset)
			respPayload = wire.WriteU16(respPayload, uint16(len(data)))
			resp := wire.BuildWithParams(DeviceID, CmdWrite, []wire.Param{{Width: 1, Value: 0}}, respPayload)
			server.Write(resp)
		case CmdClose:
			respPayload := []byte{0, 0, 0}
			respPayload = wire.WriteU16(respPayload, 5)
			resp := wire.BuildWithParams(DeviceID, CmdClose, []wire.Param{{Width: 1, Value: 0}}, respPayload)
			server.Write(resp)
		default:
			return
		}
	}
}

func TestTCPOpenWaitsForConnected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go fakeTCPDevice(t, server)

	sess := bus.New(newFakePort(client))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := TCPOpen(ctx, sess, TCPURL("example.com", 23, TCPOptions{}), true, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("TCPOpen: %v", err)
	}
	if stream.Handle != 5 {
		t.Fatalf("got handle %d, want 5", stream.Handle)
	}

	n, err := TCPSend(ctx, sess, stream, []byte("hello"), 16)
	if err != nil {
		t.Fatalf("TCPSend: %v", err)
	}
	if n != 5 {
		t.Fatalf("sent %d bytes, want 5", n)
	}
	if stream.WriteOffset != 5 {
		t.Fatalf("write offset = %d, want 5", stream.WriteOffset)
	}

	if err := TCPClose(ctx, sess, stream); err != nil {
		t.Fatalf("TCPClose: %v", err)
	}
}
