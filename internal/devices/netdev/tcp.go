package netdev

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fujinet-go/fujibus/internal/bus"
)

// TCPOptions carries the query-string knobs a tcp:// URL can ask the
// backend for.
type TCPOptions struct {
	ConnectTimeoutMS int
	Nodelay          *bool
	Keepalive        *bool
	RxBuf            int
	Halfclose        *bool
}

// TCPURL builds a tcp://host:port URL carrying opts as query parameters,
// the same shape the backend expects on Open.
func TCPURL(host string, port int, opts TCPOptions) string {
	base := fmt.Sprintf("tcp://%s:%d", host, port)
	var parts []string
	if opts.ConnectTimeoutMS != 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout_ms=%d", opts.ConnectTimeoutMS))
	}
	if opts.Nodelay != nil {
		parts = append(parts, "nodelay="+boolFlag(*opts.Nodelay))
	}
	if opts.Keepalive != nil {
		parts = append(parts, "keepalive="+boolFlag(*opts.Keepalive))
	}
	if opts.RxBuf != 0 {
		parts = append(parts, fmt.Sprintf("rx_buf=%d", opts.RxBuf))
	}
	if opts.Halfclose != nil {
		parts = append(parts, "halfclose="+boolFlag(*opts.Halfclose))
	}
	if len(parts) == 0 {
		return base
	}
	return base + "?" + strings.Join(parts, "&")
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// TCPStream tracks a connected TCP stream's read/write cursors alongside
// its network device handle.
type TCPStream struct {
	Handle      uint16
	ReadOffset  uint32
	WriteOffset uint32
}

func parseTCPConnected(ir *InfoResult) (connected, connecting bool) {
	for _, h := range ir.Headers {
		switch h.Name {
		case "X-FujiNet-Connected":
			connected = strings.TrimSpace(h.Value) == "1"
		case "X-FujiNet-Connecting":
			connecting = strings.TrimSpace(h.Value) == "1"
		}
	}
	return connected, connecting
}

// TCPOpen opens a TCP stream to target (a tcp://host:port URL, optionally
// carrying TCPOptions query parameters) and, if waitConnected is set,
// polls Info until the backend reports the connection established.
func TCPOpen(ctx context.Context, sess *bus.Session, target string, waitConnected bool, infoPoll time.Duration) (*TCPStream, error) {
	if _, err := url.Parse(target); err != nil {
		return nil, fmt.Errorf("netdev: invalid tcp url %q: %w", target, err)
	}

	or, err := Open(ctx, sess, MethodGet, 0, target, nil, 0, []string{"X-FujiNet-Connected", "X-FujiNet-Connecting"})
	if err != nil {
		return nil, err
	}
	if !or.Accepted {
		return nil, fmt.Errorf("netdev: tcp open not accepted for %q", target)
	}

	stream := &TCPStream{Handle: or.Handle}
	if !waitConnected {
		return stream, nil
	}

	for {
		ir, err := Info(ctx, sess, stream.Handle)
		if err != nil {
			if perr, ok := err.(*bus.ProtocolError); ok && perr.Status.Retryable() {
				if !sleepCtx(ctx, infoPoll) {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, err
		}
		connected, _ := parseTCPConnected(ir)
		if connected {
			return stream, nil
		}
		if !sleepCtx(ctx, infoPoll) {
			return nil, fmt.Errorf("netdev: timed out waiting for tcp connect")
		}
	}
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

// TCPSend writes data to the stream in chunk-sized Write requests,
// advancing the stream's write cursor. A stalled write (written=0) is
// fatal, matching the underlying device contract.
func TCPSend(ctx context.Context, sess *bus.Session, stream *TCPStream, data []byte, chunk int) (int, error) {
	total := 0
	for total < len(data) {
		end := total + chunk
		if end > len(data) {
			end = len(data)
		}
		wr, err := WriteChunk(ctx, sess, stream.Handle, stream.WriteOffset, data[total:end])
		if err != nil {
			return total, err
		}
		if wr.Written == 0 {
			return total, fmt.Errorf("netdev: tcp write returned 0 bytes written")
		}
		stream.WriteOffset += uint32(wr.Written)
		total += int(wr.Written)
	}
	return total, nil
}

// TCPHalfClose sends a zero-length write at the current cursor, a hint the
// backend may map to shutdown(SHUT_WR) if the stream supports it.
func TCPHalfClose(ctx context.Context, sess *bus.Session, stream *TCPStream) error {
	_, err := WriteChunk(ctx, sess, stream.Handle, stream.WriteOffset, nil)
	return err
}

// TCPRecvSome reads up to maxBytes from the stream. NotReady is reported
// as (nil, false, nil) rather than an error, since "nothing is available
// yet" is routine for an interactive stream.
func TCPRecvSome(ctx context.Context, sess *bus.Session, stream *TCPStream, maxBytes uint16) ([]byte, bool, error) {
	rr, err := ReadChunk(ctx, sess, stream.Handle, stream.ReadOffset, maxBytes)
	if err != nil {
		if perr, ok := err.(*bus.ProtocolError); ok && perr.Status == bus.StatusNotReady {
			return nil, false, nil
		}
		return nil, false, err
	}
	if rr.Offset != stream.ReadOffset {
		return nil, false, fmt.Errorf("netdev: offset echo mismatch: expected %d, got %d", stream.ReadOffset, rr.Offset)
	}
	stream.ReadOffset += uint32(len(rr.Data))
	return rr.Data, rr.EOF, nil
}

// TCPClose closes the stream's handle.
func TCPClose(ctx context.Context, sess *bus.Session, stream *TCPStream) error {
	return Close(ctx, sess, stream.Handle)
}

// TCPDrain keeps calling TCPRecvSome until idle (no bytes for idleTimeout)
// or EOF, accumulating everything it read.
func TCPDrain(ctx context.Context, sess *bus.Session, stream *TCPStream, chunk uint16, idleTimeout time.Duration) ([]byte, error) {
	var out []byte
	deadline := time.Now().Add(idleTimeout)
	for time.Now().Before(deadline) {
		data, eof, err := TCPRecvSome(ctx, sess, stream, chunk)
		if err != nil {
			return out, err
		}
		if len(data) > 0 {
			out = append(out, data...)
			deadline = time.Now().Add(idleTimeout)
		}
		if eof {
			break
		}
		if len(data) == 0 {
			if !sleepCtx(ctx, 5*time.Millisecond) {
				return out, ctx.Err()
			}
		}
	}
	return out, nil
}
