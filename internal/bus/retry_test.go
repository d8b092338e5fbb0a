package bus

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fujinet-go/fujibus/internal/wire"
)

func TestSendCommandExpectRetryRetriesOnNotReady(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := New(newFakePort(client))

	var replies int
	go func() {
		for i := 0; i < 3; i++ {
			buf := make([]byte, 256)
			server.SetReadDeadline(time.Now().Add(time.Second))
			n, err := server.Read(buf)
			if err != nil || n == 0 {
				return
			}
			replies++
			if i < 2 {
				notReady := wire.BuildWithParams(0xFE, 0x01, []wire.Param{{Width: 1, Value: uint64(StatusNotReady)}}, nil)
				server.Write(notReady)
				continue
			}
			ok := wire.BuildWithParams(0xFE, 0x01, []wire.Param{{Width: 1, Value: uint64(StatusOk)}}, []byte("done"))
			server.Write(ok)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := RetryConfig{InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond, Multiplier: 1.5}
	pkt, err := sess.SendCommandExpectRetry(ctx, 0xFE, 0x01, nil, 0xFE, 0x01, cfg)
	if err != nil {
		t.Fatalf("SendCommandExpectRetry: %v", err)
	}
	if pkt == nil || string(pkt.Payload) != "done" {
		t.Fatalf("got %+v, want final payload \"done\"", pkt)
	}
	if replies != 3 {
		t.Fatalf("expected 3 request/response round trips, got %d", replies)
	}
}

func TestSendCommandExpectRetryStopsOnMaxAttempts(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := New(newFakePort(client))
	go func() {
		// Drain every request, never respond, forcing the nil-packet path.
		for {
			buf := make([]byte, 256)
			server.SetReadDeadline(time.Now().Add(time.Second))
			if n, err := server.Read(buf); err != nil || n == 0 {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := RetryConfig{
		InitialInterval:   time.Millisecond,
		MaxInterval:       5 * time.Millisecond,
		Multiplier:        1.5,
		MaxAttempts:       3,
		PerAttemptTimeout: 30 * time.Millisecond,
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, 0xFE, 0x01, nil, 0xFE, 0x01, cfg)
	if err != nil {
		t.Fatalf("SendCommandExpectRetry: %v", err)
	}
	if pkt != nil {
		t.Fatalf("expected nil after exhausting MaxAttempts, got %+v", pkt)
	}
}
