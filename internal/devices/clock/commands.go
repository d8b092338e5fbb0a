package clock

import (
	"context"
	"fmt"

	"github.com/fujinet-go/fujibus/internal/bus"
)

func statusError(params []uint64) error {
	if len(params) == 0 {
		return fmt.Errorf("clock: response carried no status param")
	}
	status := bus.Status(params[0])
	if status == bus.StatusOk {
		return nil
	}
	return &bus.ProtocolError{Status: status}
}

// Get fetches the device's current unix time.
func Get(ctx context.Context, sess *bus.Session) (*TimeResult, error) {
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdGet, BuildGetRequest(), DeviceID, CmdGet, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("clock: no response to get")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseTimeResponse(pkt.Payload)
}

// Set sets the device's unix time and returns the echoed value.
func Set(ctx context.Context, sess *bus.Session, unixSeconds uint64) (*TimeResult, error) {
	req := BuildSetRequest(unixSeconds)
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdSet, req, DeviceID, CmdSet, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("clock: no response to set")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseTimeResponse(pkt.Payload)
}

// GetFormat requests the device's time rendered in the given format,
// optionally in the given POSIX TZ.
func GetFormat(ctx context.Context, sess *bus.Session, formatCode uint8, tz string) (*FormatResult, error) {
	req, err := BuildGetFormatRequest(formatCode, tz)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdGetFormat, req, DeviceID, CmdGetFormat, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("clock: no response to get_format")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseFormatResponse(pkt.Payload)
}

// GetTimezone reads the device's currently configured POSIX TZ string.
func GetTimezone(ctx context.Context, sess *bus.Session) (*TimezoneResult, error) {
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdGetTimezone, BuildGetTimezoneRequest(), DeviceID, CmdGetTimezone, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("clock: no response to get_timezone")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseTimezoneResponse(pkt.Payload)
}

// SetTimezone sets the device's POSIX TZ string for the current session
// (not persisted across reboot). Use SetTimezoneSave to persist it.
func SetTimezone(ctx context.Context, sess *bus.Session, tz string) (*TimezoneResult, error) {
	return setTimezone(ctx, sess, CmdSetTimezone, tz)
}

// SetTimezoneSave sets and persists the device's POSIX TZ string.
func SetTimezoneSave(ctx context.Context, sess *bus.Session, tz string) (*TimezoneResult, error) {
	return setTimezone(ctx, sess, CmdSetTimezoneSave, tz)
}

func setTimezone(ctx context.Context, sess *bus.Session, cmd uint8, tz string) (*TimezoneResult, error) {
	req, err := BuildSetTimezoneRequest(tz)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, cmd, req, DeviceID, cmd, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("clock: no response to set_timezone")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseTimezoneResponse(pkt.Payload)
}
