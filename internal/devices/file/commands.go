package file

import (
	"context"
	"fmt"
	"io"

	"github.com/fujinet-go/fujibus/internal/bus"
)

// statusError turns a non-Ok response status into a *bus.ProtocolError,
// which renders the status as "Name(code)".
func statusError(params []uint64) error {
	if len(params) == 0 {
		return fmt.Errorf("file: response carried no status param")
	}
	status := bus.Status(params[0])
	if status == bus.StatusOk {
		return nil
	}
	return &bus.ProtocolError{Status: status}
}

// Stat sends a Stat request and returns the decoded result.
func Stat(ctx context.Context, sess *bus.Session, fs, path string) (*StatResult, error) {
	req, err := BuildStatRequest(fs, path)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdStat, req, DeviceID, CmdStat, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("file: no response to stat")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseStatResponse(pkt.Payload)
}

// List sends a List request and returns the decoded result.
func List(ctx context.Context, sess *bus.Session, fs, path string, startIndex, maxEntries uint16) (*ListDirResult, error) {
	req, err := BuildListRequest(fs, path, startIndex, maxEntries)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdList, req, DeviceID, CmdList, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("file: no response to list")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseListResponse(pkt.Payload)
}

// Read sends a single Read request and returns the decoded result.
func Read(ctx context.Context, sess *bus.Session, fs, path string, offset uint32, maxBytes uint16) (*ReadResult, error) {
	req, err := BuildReadRequest(fs, path, offset, maxBytes)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdRead, req, DeviceID, CmdRead, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("file: no response to read")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseReadResponse(pkt.Payload)
}

// Write sends a single Write request and returns the decoded result.
func Write(ctx context.Context, sess *bus.Session, fs, path string, offset uint32, data []byte) (*WriteResult, error) {
	req, err := BuildWriteRequest(fs, path, offset, data)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdWrite, req, DeviceID, CmdWrite, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("file: no response to write")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseWriteResponse(pkt.Payload)
}

// ReadAll streams the whole file to sink in chunk-sized Read requests,
// verifying the offset-echo invariant on every chunk and stopping on eof
// or a zero-length chunk.
func ReadAll(ctx context.Context, sess *bus.Session, fs, path string, chunk uint16, sink io.Writer) (int64, error) {
	var offset uint32
	var total int64

	for {
		rr, err := Read(ctx, sess, fs, path, offset, chunk)
		if err != nil {
			return total, err
		}
		if rr.Offset != offset {
			return total, fmt.Errorf("file: offset echo mismatch: expected %d, got %d", offset, rr.Offset)
		}

		if len(rr.Data) > 0 {
			if _, err := sink.Write(rr.Data); err != nil {
				return total, fmt.Errorf("file: write to sink: %w", err)
			}
		}

		n := len(rr.Data)
		total += int64(n)
		offset += uint32(n)

		if rr.EOF || n == 0 {
			return total, nil
		}
	}
}

// WriteAll writes all of data to path in chunk-sized Write requests
// starting at offset, advancing by however many bytes the device actually
// accepted each round. A stalled write (written=0) is treated as fatal.
func WriteAll(ctx context.Context, sess *bus.Session, fs, path string, offset uint32, data []byte, chunk int) (int64, error) {
	var total int64
	idx := 0

	for idx < len(data) {
		end := idx + chunk
		if end > len(data) {
			end = len(data)
		}

		wr, err := Write(ctx, sess, fs, path, offset, data[idx:end])
		if err != nil {
			return total, err
		}
		if wr.Offset != offset {
			return total, fmt.Errorf("file: offset echo mismatch: expected %d, got %d", offset, wr.Offset)
		}
		if wr.Written == 0 {
			return total, fmt.Errorf("file: write stalled at offset %d (0 bytes written)", offset)
		}

		written := int(wr.Written)
		total += int64(written)
		offset += uint32(written)
		idx += written
	}

	return total, nil
}
