package bus

import "fmt"

// Status is the FujiBus response status code, always carried in
// params[0] of a response packet.
type Status uint8

const (
	StatusOk             Status = 0
	StatusDeviceNotFound Status = 1
	StatusInvalidRequest Status = 2
	StatusDeviceBusy     Status = 3
	StatusNotReady       Status = 4
	StatusIOError        Status = 5
	StatusTimeout        Status = 6
	StatusInternalError  Status = 7
	StatusUnsupported    Status = 8
)

var statusNames = map[Status]string{
	StatusOk:             "Ok",
	StatusDeviceNotFound: "DeviceNotFound",
	StatusInvalidRequest: "InvalidRequest",
	StatusDeviceBusy:     "DeviceBusy",
	StatusNotReady:       "NotReady",
	StatusIOError:        "IOError",
	StatusTimeout:        "Timeout",
	StatusInternalError:  "InternalError",
	StatusUnsupported:    "Unsupported",
}

// Name returns the status's symbolic name, or "Unknown" for an
// unrecognized code.
func (s Status) Name() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// String renders "Name(code)", e.g. "NotReady(4)", the form the CLI
// surfaces on a non-zero exit.
func (s Status) String() string {
	return fmt.Sprintf("%s(%d)", s.Name(), uint8(s))
}

// Retryable reports whether a response carrying this status should be
// retried with backoff rather than surfaced as a terminal error.
func (s Status) Retryable() bool {
	return s == StatusNotReady || s == StatusDeviceBusy
}

// ProtocolError wraps a non-Ok status returned by a device, so callers can
// unwrap it down to the Status value with errors.As.
type ProtocolError struct {
	Status Status
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("fujibus: device returned %s", e.Status)
}
