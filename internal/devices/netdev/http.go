package netdev

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fujinet-go/fujibus/internal/bus"
)

// DefaultRespHeaders is the response-header allowlist used when a caller
// wants headers back but hasn't named any explicitly.
var DefaultRespHeaders = []string{"Server", "Content-Type", "Content-Length", "Location", "ETag", "Last-Modified"}

func statusError(params []uint64) error {
	if len(params) == 0 {
		return fmt.Errorf("netdev: response carried no status param")
	}
	status := bus.Status(params[0])
	if status == bus.StatusOk {
		return nil
	}
	return &bus.ProtocolError{Status: status}
}

// Open sends an Open request and returns the decoded result.
func Open(ctx context.Context, sess *bus.Session, method, flags uint8, url string, headers []Header, bodyLenHint uint32, respHeaders []string) (*OpenResult, error) {
	req, err := BuildOpenRequest(method, flags, url, headers, bodyLenHint, respHeaders)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdOpen, req, DeviceID, CmdOpen, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("netdev: no response to open")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseOpenResponse(pkt.Payload)
}

// Info sends an Info request and returns the decoded result.
func Info(ctx context.Context, sess *bus.Session, handle uint16) (*InfoResult, error) {
	req := BuildInfoRequest(handle)
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdInfo, req, DeviceID, CmdInfo, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("netdev: no response to info")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseInfoResponse(pkt.Payload)
}

// ReadChunk sends a single Read request and returns the decoded result.
func ReadChunk(ctx context.Context, sess *bus.Session, handle uint16, offset uint32, maxBytes uint16) (*ReadResult, error) {
	req, err := BuildReadRequest(handle, offset, maxBytes)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdRead, req, DeviceID, CmdRead, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("netdev: no response to read")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseReadResponse(pkt.Payload)
}

// WriteChunk sends a single Write request and returns the decoded result.
func WriteChunk(ctx context.Context, sess *bus.Session, handle uint16, offset uint32, data []byte) (*WriteResult, error) {
	req, err := BuildWriteRequest(handle, offset, data)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdWrite, req, DeviceID, CmdWrite, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("netdev: no response to write")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseWriteResponse(pkt.Payload)
}

// Close sends a Close request for handle. Callers generally treat Close as
// best-effort and ignore its error once a stream has already served its
// purpose.
func Close(ctx context.Context, sess *bus.Session, handle uint16) error {
	req := BuildCloseRequest(handle)
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdClose, req, DeviceID, CmdClose, bus.DefaultRetryConfig)
	if err != nil {
		return err
	}
	if pkt == nil {
		return fmt.Errorf("netdev: no response to close")
	}
	return statusError(pkt.Params)
}

// GetOptions configures the Get convenience wrapper.
type GetOptions struct {
	Flags       uint8
	Chunk       uint16
	ShowHeaders bool
	RespHeaders []string
	InfoRetries int
	InfoSleep   time.Duration
}

// DefaultGetOptions mirrors the CLI's default chunk size and info-retry
// behavior for a GET convenience call.
var DefaultGetOptions = GetOptions{
	Chunk:       512,
	InfoRetries: 5,
	InfoSleep:   50 * time.Millisecond,
}

// GetResult carries what a Get call learned about the response, in
// addition to having already streamed the body to sink.
type GetResult struct {
	Info  *InfoResult // nil unless ShowHeaders was set and Info succeeded
	Total int64
}

// Get performs Open(GET) -> optional Info -> Read-until-EOF -> Close,
// streaming the body to sink as it arrives.
func Get(ctx context.Context, sess *bus.Session, url string, sink io.Writer, opts GetOptions) (*GetResult, error) {
	respHeaders := opts.RespHeaders
	if opts.ShowHeaders && respHeaders == nil {
		respHeaders = DefaultRespHeaders
	}

	or, err := Open(ctx, sess, MethodGet, opts.Flags, url, nil, 0, respHeaders)
	if err != nil {
		return nil, err
	}
	if !or.Accepted {
		return nil, fmt.Errorf("netdev: open not accepted for %q", url)
	}
	handle := or.Handle

	result := &GetResult{}

	if opts.ShowHeaders {
		for i := 0; i < opts.InfoRetries; i++ {
			ir, err := Info(ctx, sess, handle)
			if err != nil {
				if perr, ok := err.(*bus.ProtocolError); ok && perr.Status.Retryable() {
					time.Sleep(opts.InfoSleep)
					continue
				}
				break
			}
			result.Info = ir
			break
		}
	}

	chunk := opts.Chunk
	if chunk == 0 {
		chunk = DefaultGetOptions.Chunk
	}

	var offset uint32
	for {
		rr, err := ReadChunk(ctx, sess, handle, offset, chunk)
		if err != nil {
			_ = Close(ctx, sess, handle)
			return result, err
		}
		if rr.Offset != offset {
			_ = Close(ctx, sess, handle)
			return result, fmt.Errorf("netdev: offset echo mismatch: expected %d, got %d", offset, rr.Offset)
		}
		if len(rr.Data) > 0 {
			if _, err := sink.Write(rr.Data); err != nil {
				_ = Close(ctx, sess, handle)
				return result, fmt.Errorf("netdev: write to sink: %w", err)
			}
		}
		n := len(rr.Data)
		result.Total += int64(n)
		offset += uint32(n)
		if rr.EOF || n == 0 {
			break
		}
	}

	_ = Close(ctx, sess, handle)
	return result, nil
}

// Head performs Open(HEAD) -> Info -> Close and returns the decoded info.
func Head(ctx context.Context, sess *bus.Session, url string, respHeaders []string) (*InfoResult, error) {
	if respHeaders == nil {
		respHeaders = DefaultRespHeaders
	}
	or, err := Open(ctx, sess, MethodHead, 0, url, nil, 0, respHeaders)
	if err != nil {
		return nil, err
	}
	handle := or.Handle

	ir, err := Info(ctx, sess, handle)
	_ = Close(ctx, sess, handle)
	return ir, err
}

// sendBody writes data to handle in chunk-sized Write requests, stopping
// if the device ever stalls (written=0).
func sendBody(ctx context.Context, sess *bus.Session, handle uint16, data []byte, chunk int) (int64, error) {
	var total int64
	var offset uint32
	idx := 0
	for idx < len(data) {
		end := idx + chunk
		if end > len(data) {
			end = len(data)
		}
		wr, err := WriteChunk(ctx, sess, handle, offset, data[idx:end])
		if err != nil {
			return total, err
		}
		if wr.Offset != offset {
			return total, fmt.Errorf("netdev: offset echo mismatch: expected %d, got %d", offset, wr.Offset)
		}
		if wr.Written == 0 {
			return total, fmt.Errorf("netdev: write stalled at offset %d (0 bytes written)", offset)
		}
		total += int64(wr.Written)
		offset += uint32(wr.Written)
		idx += int(wr.Written)
	}
	return total, nil
}

// Post performs Open(POST, body_len_hint) -> optional body write -> Info ->
// optional body read -> Close, returning the response body (if any).
func Post(ctx context.Context, sess *bus.Session, url string, body []byte, chunk int) ([]byte, *InfoResult, error) {
	return postOrPut(ctx, sess, MethodPost, url, body, chunk)
}

// Put performs the same orchestration as Post but with the PUT method.
func Put(ctx context.Context, sess *bus.Session, url string, body []byte, chunk int) ([]byte, *InfoResult, error) {
	return postOrPut(ctx, sess, MethodPut, url, body, chunk)
}

func postOrPut(ctx context.Context, sess *bus.Session, method uint8, url string, body []byte, chunk int) ([]byte, *InfoResult, error) {
	if chunk <= 0 {
		chunk = int(DefaultGetOptions.Chunk)
	}

	or, err := Open(ctx, sess, method, 0, url, nil, uint32(len(body)), DefaultRespHeaders)
	if err != nil {
		return nil, nil, err
	}
	if !or.Accepted {
		return nil, nil, fmt.Errorf("netdev: open not accepted for %q", url)
	}
	handle := or.Handle

	if or.NeedsBodyWrite && len(body) > 0 {
		if _, err := sendBody(ctx, sess, handle, body, chunk); err != nil {
			_ = Close(ctx, sess, handle)
			return nil, nil, err
		}
	}

	var ir *InfoResult
	for i := 0; i < DefaultGetOptions.InfoRetries; i++ {
		got, err := Info(ctx, sess, handle)
		if err != nil {
			if perr, ok := err.(*bus.ProtocolError); ok && perr.Status.Retryable() {
				time.Sleep(DefaultGetOptions.InfoSleep)
				continue
			}
			break
		}
		ir = got
		break
	}

	var respBody bytes.Buffer
	var offset uint32
	for {
		rr, err := ReadChunk(ctx, sess, handle, offset, uint16(chunk))
		if err != nil {
			break
		}
		if rr.Offset != offset {
			break
		}
		respBody.Write(rr.Data)
		n := len(rr.Data)
		offset += uint32(n)
		if rr.EOF || n == 0 {
			break
		}
	}

	_ = Close(ctx, sess, handle)
	return respBody.Bytes(), ir, nil
}
