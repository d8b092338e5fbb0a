package bus

import "testing"

func TestStatusStringFormat(t *testing.T) {
	cases := map[Status]string{
		StatusOk:       "Ok(0)",
		StatusNotReady: "NotReady(4)",
		Status(99):     "Unknown(99)",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", uint8(status), got, want)
		}
	}
}

func TestStatusRetryable(t *testing.T) {
	retryable := []Status{StatusNotReady, StatusDeviceBusy}
	for _, s := range retryable {
		if !s.Retryable() {
			t.Errorf("%s should be retryable", s)
		}
	}
	notRetryable := []Status{StatusOk, StatusDeviceNotFound, StatusIOError}
	for _, s := range notRetryable {
		if s.Retryable() {
			t.Errorf("%s should not be retryable", s)
		}
	}
}
