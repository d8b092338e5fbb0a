package bus

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/fujinet-go/fujibus/internal/wire"
)

// fakePort adapts a net.Conn (as returned by net.Pipe) to transport.Port,
// translating SetReadTimeout into a read deadline the way a real serial
// driver would apply it internally: each Read gets a fresh deadline.
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

func TestSendWritesFramedPacket(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := New(newFakePort(client))

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	if err := sess.Send(0xFE, 0x01, []byte("hi")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-done:
		if !bytes.HasPrefix(got, []byte{0xC0}) {
			t.Fatalf("expected SLIP-framed output, got % X", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write")
	}
}

func TestSendCommandExpectReturnsMatchingResponse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := New(newFakePort(client))
	serverPort := newFakePort(server)

	go func() {
		buf := make([]byte, 256)
		serverPort.SetReadTimeout(time.Second)
		n, err := server.Read(buf)
		if err != nil || n == 0 {
			return
		}
		resp := wire.BuildWithParams(0xFE, 0x01, []wire.Param{{Width: 1, Value: 0}}, []byte("ok"))
		server.Write(resp)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pkt, err := sess.SendCommandExpect(ctx, 0xFE, 0x01, []byte("req"), 0xFE, 0x01)
	if err != nil {
		t.Fatalf("SendCommandExpect: %v", err)
	}
	if pkt == nil {
		t.Fatal("expected a response packet, got nil")
	}
	if string(pkt.Payload) != "ok" {
		t.Fatalf("payload = %q, want %q", pkt.Payload, "ok")
	}
	if len(pkt.Params) != 1 || pkt.Params[0] != 0 {
		t.Fatalf("params = %v, want [0]", pkt.Params)
	}
}

func TestSendCommandExpectStashesUnmatchedPackets(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := New(newFakePort(client))

	go func() {
		buf := make([]byte, 256)
		server.SetReadDeadline(time.Now().Add(time.Second))
		server.Read(buf) // drain the request

		// Reply with an unrelated packet first, then the real one.
		other := wire.Build(0xFC, 0x03, []byte("unexpected"))
		server.Write(other)
		time.Sleep(20 * time.Millisecond)
		real := wire.Build(0xFE, 0x01, []byte("expected"))
		server.Write(real)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pkt, err := sess.SendCommandExpect(ctx, 0xFE, 0x01, nil, 0xFE, 0x01)
	if err != nil {
		t.Fatalf("SendCommandExpect: %v", err)
	}
	if pkt == nil || string(pkt.Payload) != "expected" {
		t.Fatalf("got %+v, want payload \"expected\"", pkt)
	}

	// The stray packet should now be poppable directly.
	stashed := sess.pop(0xFC, 0x03)
	if stashed == nil || string(stashed.Payload) != "unexpected" {
		t.Fatalf("expected stashed packet to be available, got %+v", stashed)
	}
}

func TestSendCommandExpectReturnsNilOnDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := New(newFakePort(client))
	go func() {
		buf := make([]byte, 256)
		server.SetReadDeadline(time.Now().Add(time.Second))
		server.Read(buf) // drain the request, never respond
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	pkt, err := sess.SendCommandExpect(ctx, 0xFE, 0x01, nil, 0xFE, 0x01)
	if err != nil {
		t.Fatalf("SendCommandExpect: %v", err)
	}
	if pkt != nil {
		t.Fatalf("expected nil on deadline, got %+v", pkt)
	}
}
