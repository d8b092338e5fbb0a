package file

import "testing"

func TestStatRequestResponseRoundTrip(t *testing.T) {
	req, err := BuildStatRequest("SD", "/games/hello.bas")
	if err != nil {
		t.Fatalf("BuildStatRequest: %v", err)
	}
	if req[0] != ProtocolVersion {
		t.Fatalf("expected leading version byte")
	}

	resp := make([]byte, 0, 18)
	resp = append(resp, ProtocolVersion, 0x03, 0, 0) // exists + dir
	resp = append(resp, 0, 0x10, 0, 0, 0, 0, 0, 0)    // size = 0x1000
	resp = append(resp, 1, 2, 3, 4, 5, 6, 7, 8)       // mtime

	st, err := ParseStatResponse(resp)
	if err != nil {
		t.Fatalf("ParseStatResponse: %v", err)
	}
	if !st.Exists || !st.IsDir {
		t.Fatalf("expected exists+dir, got %+v", st)
	}
	if st.Size != 0x1000 {
		t.Fatalf("size = 0x%X, want 0x1000", st.Size)
	}
}

func TestListRequestRejectsZeroMaxEntries(t *testing.T) {
	if _, err := BuildListRequest("SD", "/", 0, 0); err == nil {
		t.Fatal("expected error for maxEntries=0")
	}
}

func TestParseListResponseDecodesEntries(t *testing.T) {
	payload := []byte{ProtocolVersion, 0x00, 0, 0, 2, 0} // version, flags(no more), reserved, count=2

	appendEntry := func(p []byte, name string, isDir bool, size uint64) []byte {
		flags := byte(0)
		if isDir {
			flags = 1
		}
		p = append(p, flags, byte(len(name)))
		p = append(p, []byte(name)...)
		for i := 0; i < 8; i++ {
			p = append(p, byte(size>>(8*i)))
		}
		for i := 0; i < 8; i++ {
			p = append(p, 0) // mtime
		}
		return p
	}
	payload = appendEntry(payload, "AUTORUN.SYS", false, 512)
	payload = appendEntry(payload, "GAMES", true, 0)

	lr, err := ParseListResponse(payload)
	if err != nil {
		t.Fatalf("ParseListResponse: %v", err)
	}
	if lr.More {
		t.Fatal("expected more=false")
	}
	if len(lr.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lr.Entries))
	}
	if lr.Entries[0].Name != "AUTORUN.SYS" || lr.Entries[0].IsDir {
		t.Fatalf("entry 0 mismatch: %+v", lr.Entries[0])
	}
	if lr.Entries[1].Name != "GAMES" || !lr.Entries[1].IsDir {
		t.Fatalf("entry 1 mismatch: %+v", lr.Entries[1])
	}
}

func TestReadResponseEchoesOffset(t *testing.T) {
	payload := []byte{ProtocolVersion, 0x01, 0, 0} // version, flags(eof), reserved
	payload = append(payload, 0x40, 0, 0, 0)        // offset = 0x40
	payload = append(payload, 3, 0)                 // data_len = 3
	payload = append(payload, 'a', 'b', 'c')

	rr, err := ParseReadResponse(payload)
	if err != nil {
		t.Fatalf("ParseReadResponse: %v", err)
	}
	if rr.Offset != 0x40 || !rr.EOF || string(rr.Data) != "abc" {
		t.Fatalf("got %+v", rr)
	}
}

func TestWriteRequestRejectsOversizedData(t *testing.T) {
	big := make([]byte, 0x10000)
	if _, err := BuildWriteRequest("SD", "/f", 0, big); err == nil {
		t.Fatal("expected error for data > 65535 bytes")
	}
}
