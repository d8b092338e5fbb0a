// Package clock implements the Clock subdevice: a device-side wall clock
// plus alternate on-wire time formats and POSIX timezone configuration.
package clock

import (
	"fmt"

	"github.com/fujinet-go/fujibus/internal/wire"
)

// DeviceID is the FujiBus device id for the Clock subdevice.
const DeviceID = 0x45

// Command opcodes.
const (
	CmdGet             = 1
	CmdSet             = 2
	CmdGetFormat       = 3
	CmdGetTimezone     = 4
	CmdSetTimezone     = 5
	CmdSetTimezoneSave = 6
)

// ProtocolVersion is the only version this package speaks.
const ProtocolVersion = 1

// Format codes accepted by GetFormat.
const (
	FormatSimple  = 0 // 7 bytes
	FormatProDOS  = 1 // 4 bytes
	FormatApeTime = 2 // 6 bytes
	FormatTzIso   = 3 // string
	FormatUtcIso  = 4 // string
	FormatSos     = 5 // 16 bytes
)

func checkVersion(ver uint8) error {
	if ver != ProtocolVersion {
		return fmt.Errorf("clock: unexpected protocol version %d", ver)
	}
	return nil
}

// BuildGetRequest builds a Get request payload.
func BuildGetRequest() []byte {
	return []byte{ProtocolVersion}
}

// BuildSetRequest builds a Set request payload carrying unixSeconds.
func BuildSetRequest(unixSeconds uint64) []byte {
	b := make([]byte, 0, 12)
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU8(b, 0)
	b = wire.WriteU16(b, 0)
	b = wire.WriteU64(b, unixSeconds)
	return b
}

// TimeResult is the decoded response to a Get or Set request.
type TimeResult struct {
	UnixSeconds uint64
}

// ParseTimeResponse decodes a Get/Set response payload.
func ParseTimeResponse(payload []byte) (*TimeResult, error) {
	ver, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ver); err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU8(payload, off) // flags, unused
	if err != nil {
		return nil, err
	}
	_, off, err = wire.ReadU16(payload, off) // reserved
	if err != nil {
		return nil, err
	}
	ts, _, err := wire.ReadU64(payload, off)
	if err != nil {
		return nil, err
	}
	return &TimeResult{UnixSeconds: ts}, nil
}

// formatByteLen maps a format code to its fixed-width wire length, or 0
// when the format is a variable-length string.
func formatByteLen(code uint8) (int, bool) {
	switch code {
	case FormatSimple:
		return 7, true
	case FormatProDOS:
		return 4, true
	case FormatApeTime:
		return 6, true
	case FormatSos:
		return 16, true
	case FormatTzIso, FormatUtcIso:
		return 0, false
	default:
		return 0, false
	}
}

// BuildGetFormatRequest builds a GetFormat request for the given format
// code. tz is the POSIX TZ string to render the format in; pass "" for
// formats that don't need one.
func BuildGetFormatRequest(formatCode uint8, tz string) ([]byte, error) {
	if len(tz) > 0xFF {
		return nil, fmt.Errorf("clock: tz string too long (%d > 255)", len(tz))
	}
	b := make([]byte, 0, 3+len(tz))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU8(b, formatCode)
	b = wire.WriteU8(b, uint8(len(tz)))
	b = append(b, tz...)
	return b, nil
}

// FormatResult is the decoded response to a GetFormat request.
type FormatResult struct {
	FormatCode uint8
	Bytes      []byte
}

// ParseFormatResponse decodes a GetFormat response payload. Fixed-width
// formats are trusted to carry exactly their declared length; TzIso and
// UtcIso consume the remainder of the payload as a string.
func ParseFormatResponse(payload []byte) (*FormatResult, error) {
	ver, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ver); err != nil {
		return nil, err
	}
	code, off, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}

	if n, fixed := formatByteLen(code); fixed {
		data, _, err := wire.ReadBytes(payload, off, n)
		if err != nil {
			return nil, fmt.Errorf("clock: format %d body: %w", code, err)
		}
		return &FormatResult{FormatCode: code, Bytes: append([]byte(nil), data...)}, nil
	}

	return &FormatResult{FormatCode: code, Bytes: append([]byte(nil), payload[off:]...)}, nil
}

// BuildGetTimezoneRequest builds a GetTimezone request payload.
func BuildGetTimezoneRequest() []byte {
	return []byte{ProtocolVersion}
}

// BuildSetTimezoneRequest builds a SetTimezone (or SetTimezoneSave, same
// layout, different command) request payload carrying a POSIX TZ string.
func BuildSetTimezoneRequest(tz string) ([]byte, error) {
	if len(tz) > 0xFF {
		return nil, fmt.Errorf("clock: tz string too long (%d > 255)", len(tz))
	}
	b := make([]byte, 0, 2+len(tz))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU8(b, uint8(len(tz)))
	b = append(b, tz...)
	return b, nil
}

// TimezoneResult is the decoded response to GetTimezone/SetTimezone(Save).
type TimezoneResult struct {
	TZ string
}

// ParseTimezoneResponse decodes a timezone response payload: version
// followed by an lp_u8 POSIX TZ string.
func ParseTimezoneResponse(payload []byte) (*TimezoneResult, error) {
	ver, off, err := wire.ReadU8(payload, 0)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ver); err != nil {
		return nil, err
	}
	tz, _, err := wire.ReadLPString8(payload, off)
	if err != nil {
		return nil, err
	}
	return &TimezoneResult{TZ: tz}, nil
}
