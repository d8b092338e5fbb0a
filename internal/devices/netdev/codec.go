// Package netdev implements the Network subdevice: HTTP-style request/
// response exchanges and raw TCP streams, multiplexed by a device-issued
// handle.
package netdev

import (
	"fmt"

	"github.com/fujinet-go/fujibus/internal/wire"
)

// DeviceID is the FujiBus device id for the Network subdevice.
const DeviceID = 0xFD

// Command opcodes.
const (
	CmdOpen  = 1
	CmdRead  = 2
	CmdWrite = 3
	CmdClose = 4
	CmdInfo  = 5
)

// ProtocolVersion is the only version this package speaks.
const ProtocolVersion = 1

// HTTP methods accepted by Open.
const (
	MethodGet    = 1
	MethodPost   = 2
	MethodPut    = 3
	MethodDelete = 4
	MethodHead   = 5
)

// Open request flag bits.
const (
	OpenFlagTLS            = 1 << 0
	OpenFlagFollowRedirect = 1 << 1
)

// Open response flag bits.
const (
	OpenRespFlagAccepted       = 1 << 0
	OpenRespFlagNeedsBodyWrite = 1 << 1
)

// Info response flag bits.
const (
	InfoFlagHeadersIncluded = 1 << 0
	InfoFlagHasContentLen   = 1 << 1
	InfoFlagHasHTTPStatus   = 1 << 2
)

// Read/Write/Close response flag bits.
const (
	DataFlagEOF       = 1 << 0
	DataFlagTruncated = 1 << 1
)

// Header is a name/value pair, used both for request headers on Open and
// for the decoded headers in an Info response.
type Header struct {
	Name  string
	Value string
}

// BuildOpenRequest builds an Open request. respHeaders is the allowlist of
// response header names the caller wants Info to report back; an empty
// allowlist means Info reports no headers.
func BuildOpenRequest(method, flags uint8, url string, headers []Header, bodyLenHint uint32, respHeaders []string) ([]byte, error) {
	if method < 1 || method > 5 {
		return nil, fmt.Errorf("netdev: method must be 1..5")
	}
	if len(url) > 0xFFFF {
		return nil, fmt.Errorf("netdev: url too long")
	}

	b := make([]byte, 0, 16+len(url))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU8(b, method)
	b = wire.WriteU8(b, flags)
	b = wire.WriteLPString16(b, url)
	b = wire.WriteU16(b, uint16(len(headers)))
	for _, h := range headers {
		b = wire.WriteLPString16(b, h.Name)
		b = wire.WriteLPString16(b, h.Value)
	}
	b = wire.WriteU32(b, bodyLenHint)
	b = wire.WriteU16(b, uint16(len(respHeaders)))
	for _, name := range respHeaders {
		b = wire.WriteLPString16(b, name)
	}
	return b, nil
}

// OpenResult is the decoded response to an Open request.
type OpenResult struct {
	Accepted       bool
	NeedsBodyWrite bool
	Handle         uint16
}

// ParseOpenResponse decodes an Open response payload.
func ParseOpenResponse(payload []byte) (*OpenResult, error) {
	flags, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU16(payload, off) // reserved
	if err != nil {
		return nil, err
	}
	handle, _, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	return &OpenResult{
		Accepted:       flags&OpenRespFlagAccepted != 0,
		NeedsBodyWrite: flags&OpenRespFlagNeedsBodyWrite != 0,
		Handle:         handle,
	}, nil
}

// BuildInfoRequest builds an Info request payload for handle. The latest
// protocol carries no max_header_bytes field — Info returns whatever the
// Open allowlist asked for.
func BuildInfoRequest(handle uint16) []byte {
	b := make([]byte, 0, 3)
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU16(b, handle)
	return b
}

// InfoResult is the decoded response to an Info request.
type InfoResult struct {
	HeadersIncluded bool
	HasContentLen   bool
	HasHTTPStatus   bool
	Handle          uint16
	HTTPStatus      uint16
	ContentLength   uint64
	Headers         []Header
}

// ParseInfoResponse decodes an Info response payload. The header block is
// a sequence of lp_u16 name/value pairs packed into header_bytes.
func ParseInfoResponse(payload []byte) (*InfoResult, error) {
	flags, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU16(payload, off) // reserved
	if err != nil {
		return nil, err
	}
	handle, off, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	httpStatus, off, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	contentLength, off, err := wire.ReadU64(payload, off)
	if err != nil {
		return nil, err
	}
	headerBytes, _, err := wire.ReadLPBytes16(payload, off)
	if err != nil {
		return nil, err
	}

	var headers []Header
	hOff := 0
	for hOff < len(headerBytes) {
		name, next, err := wire.ReadLPString16(headerBytes, hOff)
		if err != nil {
			return nil, fmt.Errorf("netdev: header name: %w", err)
		}
		value, next2, err := wire.ReadLPString16(headerBytes, next)
		if err != nil {
			return nil, fmt.Errorf("netdev: header value: %w", err)
		}
		headers = append(headers, Header{Name: name, Value: value})
		hOff = next2
	}

	return &InfoResult{
		HeadersIncluded: flags&InfoFlagHeadersIncluded != 0,
		HasContentLen:   flags&InfoFlagHasContentLen != 0,
		HasHTTPStatus:   flags&InfoFlagHasHTTPStatus != 0,
		Handle:          handle,
		HTTPStatus:      httpStatus,
		ContentLength:   contentLength,
		Headers:         headers,
	}, nil
}

// BuildReadRequest builds a Read request payload for handle.
func BuildReadRequest(handle uint16, offset uint32, maxBytes uint16) ([]byte, error) {
	if maxBytes < 1 {
		return nil, fmt.Errorf("netdev: maxBytes must be >= 1")
	}
	b := make([]byte, 0, 9)
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU16(b, handle)
	b = wire.WriteU32(b, offset)
	b = wire.WriteU16(b, maxBytes)
	return b, nil
}

// ReadResult is the decoded response to a Read request.
type ReadResult struct {
	EOF       bool
	Truncated bool
	Handle    uint16
	Offset    uint32
	Data      []byte
}

// ParseReadResponse decodes a Read response payload.
func ParseReadResponse(payload []byte) (*ReadResult, error) {
	flags, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU16(payload, off) // reserved
	if err != nil {
		return nil, err
	}
	handle, off, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	offset, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	data, _, err := wire.ReadLPBytes16(payload, off)
	if err != nil {
		return nil, err
	}
	return &ReadResult{
		EOF:       flags&DataFlagEOF != 0,
		Truncated: flags&DataFlagTruncated != 0,
		Handle:    handle,
		Offset:    offset,
		Data:      append([]byte(nil), data...),
	}, nil
}

// BuildWriteRequest builds a Write request payload for handle.
func BuildWriteRequest(handle uint16, offset uint32, data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("netdev: data too large for one packet (%d > 65535)", len(data))
	}
	b := make([]byte, 0, 9+len(data))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU16(b, handle)
	b = wire.WriteU32(b, offset)
	b = wire.WriteLPBytes16(b, data)
	return b, nil
}

// WriteResult is the decoded response to a Write request.
type WriteResult struct {
	Handle  uint16
	Offset  uint32
	Written uint16
}

// ParseWriteResponse decodes a Write response payload.
func ParseWriteResponse(payload []byte) (*WriteResult, error) {
	_, off, err := wire.ReadU8(payload, 0) // flags, currently unused
	if err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU16(payload, off) // reserved
	if err != nil {
		return nil, err
	}
	handle, off, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	offset, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	written, _, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	return &WriteResult{Handle: handle, Offset: offset, Written: written}, nil
}

// BuildCloseRequest builds a Close request payload for handle.
func BuildCloseRequest(handle uint16) []byte {
	b := make([]byte, 0, 3)
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU16(b, handle)
	return b
}
