// Package modem implements the Modem subdevice's data contract: a
// cursor-based byte stream to an AT-command-driven modem emulation. The
// interactive terminal bridge itself lives outside this package; it only
// exposes Write/Read/Status/Control and the cursor bookkeeping they need.
package modem

import (
	"fmt"
	"strings"

	"github.com/fujinet-go/fujibus/internal/wire"
)

// DeviceID is the FujiBus device id for the Modem subdevice.
const DeviceID = 0xFB

// Command opcodes.
const (
	CmdWrite   = 0x01
	CmdRead    = 0x02
	CmdStatus  = 0x03
	CmdControl = 0x04
)

// ProtocolVersion is the only version this package speaks.
const ProtocolVersion = 1

// Control operations.
const (
	ControlHangup = 0x01
	ControlDial   = 0x02
)

// Status response flag bits.
const (
	StatusFlagCmdMode   = 0x01
	StatusFlagConnected = 0x02
)

func checkVersion(ver uint8) error {
	if ver != ProtocolVersion {
		return fmt.Errorf("modem: unexpected protocol version %d", ver)
	}
	return nil
}

// BuildWriteRequest builds a Write request payload.
func BuildWriteRequest(offset uint32, data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("modem: data too long (max 65535)")
	}
	b := make([]byte, 0, 7+len(data))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU32(b, offset)
	b = wire.WriteLPBytes16(b, data)
	return b, nil
}

// BuildReadRequest builds a Read request payload.
func BuildReadRequest(offset uint32, maxBytes uint16) []byte {
	b := make([]byte, 0, 7)
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU32(b, offset)
	b = wire.WriteU16(b, maxBytes)
	return b
}

// BuildStatusRequest builds a Status request payload.
func BuildStatusRequest() []byte {
	return []byte{ProtocolVersion}
}

// BuildControlRequest builds a Control request payload for op, with any
// op-specific trailing bytes.
func BuildControlRequest(op uint8, data []byte) []byte {
	b := make([]byte, 0, 2+len(data))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU8(b, op)
	b = append(b, data...)
	return b
}

// BuildDialRequest builds a Control(Dial) request payload carrying
// "host:port", scheme-stripped and defaulted to port 23 if target has no
// port.
func BuildDialRequest(target string) ([]byte, error) {
	hostPort, err := NormalizeHostPort(target)
	if err != nil {
		return nil, err
	}
	data, err := lpU16String(hostPort)
	if err != nil {
		return nil, err
	}
	return BuildControlRequest(ControlDial, data), nil
}

// BuildHangupRequest builds a Control(Hangup) request payload.
func BuildHangupRequest() []byte {
	return BuildControlRequest(ControlHangup, nil)
}

func lpU16String(s string) ([]byte, error) {
	if len(s) > 0xFFFF {
		return nil, fmt.Errorf("modem: string too long for lp_u16")
	}
	return wire.WriteLPString16(nil, s), nil
}

// NormalizeHostPort accepts "tcp://host:port", "host:port", or bare
// "host" (defaulting to port 23) and returns "host:port".
func NormalizeHostPort(target string) (string, error) {
	s := strings.TrimSpace(target)
	s = strings.TrimPrefix(s, "tcp://")
	if s == "" {
		return "", fmt.Errorf("modem: empty dial target")
	}
	if !strings.Contains(s, ":") {
		return s + ":23", nil
	}
	return s, nil
}

// WriteResult is the decoded response to a Write request.
type WriteResult struct {
	Offset  uint32
	Written uint16
}

// ParseWriteResponse decodes a Write response payload.
func ParseWriteResponse(payload []byte) (*WriteResult, error) {
	ver, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ver); err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU8(payload, off) // flags, currently unused
	if err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU16(payload, off) // reserved
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
	return &WriteResult{Offset: offset, Written: written}, nil
}

// ReadResult is the decoded response to a Read request.
type ReadResult struct {
	Offset uint32
	Data   []byte
}

// ParseReadResponse decodes a Read response payload.
func ParseReadResponse(payload []byte) (*ReadResult, error) {
	ver, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ver); err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU8(payload, off) // flags, currently unused
	if err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU16(payload, off) // reserved
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
	return &ReadResult{Offset: offset, Data: append([]byte(nil), data...)}, nil
}

// StatusResult is the decoded response to a Status request.
type StatusResult struct {
	CmdMode         bool
	Connected       bool
	ListenPort      uint16
	HostRxAvail     uint32
	HostWriteCursor uint32
	NetReadCursor   uint32
	NetWriteCursor  uint32
}

// ParseStatusResponse decodes a Status response payload.
func ParseStatusResponse(payload []byte) (*StatusResult, error) {
	ver, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ver); err != nil {
		return nil, err
	}
	flags, off, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU16(payload, off) // reserved
	if err != nil {
		return nil, err
	}
	listenPort, off, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	hostRxAvail, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	hostWriteCursor, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	netReadCursor, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	netWriteCursor, _, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		CmdMode:         flags&StatusFlagCmdMode != 0,
		Connected:       flags&StatusFlagConnected != 0,
		ListenPort:      listenPort,
		HostRxAvail:     hostRxAvail,
		HostWriteCursor: hostWriteCursor,
		NetReadCursor:   netReadCursor,
		NetWriteCursor:  netWriteCursor,
	}, nil
}
