package clock

import "testing"

func TestTimeResponseRoundTrip(t *testing.T) {
	payload := []byte{ProtocolVersion, 0, 0, 0}
	payload = append(payload, 0x78, 0x56, 0x34, 0x12, 0, 0, 0, 0) // little-endian u64

	tr, err := ParseTimeResponse(payload)
	if err != nil {
		t.Fatalf("ParseTimeResponse: %v", err)
	}
	if tr.UnixSeconds != 0x12345678 {
		t.Fatalf("got 0x%X, want 0x12345678", tr.UnixSeconds)
	}
}

func TestFormatResponseFixedWidth(t *testing.T) {
	payload := []byte{ProtocolVersion, FormatProDOS, 1, 2, 3, 4}
	fr, err := ParseFormatResponse(payload)
	if err != nil {
		t.Fatalf("ParseFormatResponse: %v", err)
	}
	if fr.FormatCode != FormatProDOS || len(fr.Bytes) != 4 {
		t.Fatalf("got %+v", fr)
	}
}

func TestFormatResponseVariableWidthString(t *testing.T) {
	payload := append([]byte{ProtocolVersion, FormatUtcIso}, "2026-07-31T00:00:00Z"...)
	fr, err := ParseFormatResponse(payload)
	if err != nil {
		t.Fatalf("ParseFormatResponse: %v", err)
	}
	if string(fr.Bytes) != "2026-07-31T00:00:00Z" {
		t.Fatalf("got %q", fr.Bytes)
	}
}

func TestSetTimezoneRequestRejectsLongString(t *testing.T) {
	big := make([]byte, 256)
	for i := range big {
		big[i] = 'A'
	}
	if _, err := BuildSetTimezoneRequest(string(big)); err == nil {
		t.Fatal("expected error for tz string > 255 bytes")
	}
}

func TestTimezoneResponseRoundTrip(t *testing.T) {
	payload := []byte{ProtocolVersion, 22}
	payload = append(payload, "EST5EDT,M3.2.0,M11.1.0"...)
	tzr, err := ParseTimezoneResponse(payload)
	if err != nil {
		t.Fatalf("ParseTimezoneResponse: %v", err)
	}
	if tzr.TZ != "EST5EDT,M3.2.0,M11.1.0" {
		t.Fatalf("got %q", tzr.TZ)
	}
}
