package wire

import "testing"

func TestReadLPString16ReplacesInvalidUTF8(t *testing.T) {
	var b []byte
	b = WriteLPBytes16(nil, []byte{'o', 'k', 0xFF, 0xFE, 'd'})
	s, _, err := ReadLPString16(b, 0)
	if err != nil {
		t.Fatalf("ReadLPString16: %v", err)
	}
	want := "ok�d"
	if s != want {
		t.Fatalf("ReadLPString16 = %q, want %q", s, want)
	}
}

func TestReadLPString8ReplacesInvalidUTF8(t *testing.T) {
	b := WriteLPBytes8(nil, []byte{0xC0, 'x'})
	s, _, err := ReadLPString8(b, 0)
	if err != nil {
		t.Fatalf("ReadLPString8: %v", err)
	}
	want := "�x"
	if s != want {
		t.Fatalf("ReadLPString8 = %q, want %q", s, want)
	}
}

func TestReadLPStringRoundTripsValidUTF8(t *testing.T) {
	b := WriteLPString16(nil, "héllo")
	s, _, err := ReadLPString16(b, 0)
	if err != nil {
		t.Fatalf("ReadLPString16: %v", err)
	}
	if s != "héllo" {
		t.Fatalf("ReadLPString16 = %q, want héllo", s)
	}
}

func TestReadU8U16U32U64OutOfBounds(t *testing.T) {
	if _, _, err := ReadU8(nil, 0); err == nil {
		t.Fatal("expected ErrOutOfBounds for ReadU8")
	}
	if _, _, err := ReadU16([]byte{1}, 0); err == nil {
		t.Fatal("expected ErrOutOfBounds for ReadU16")
	}
	if _, _, err := ReadU32([]byte{1, 2, 3}, 0); err == nil {
		t.Fatal("expected ErrOutOfBounds for ReadU32")
	}
	if _, _, err := ReadU64([]byte{1, 2, 3, 4, 5, 6, 7}, 0); err == nil {
		t.Fatal("expected ErrOutOfBounds for ReadU64")
	}
}

func TestWriteLPBytes8TruncatesOversizedData(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	b := WriteLPBytes8(nil, data)
	n, _, err := ReadU8(b, 0)
	if err != nil {
		t.Fatalf("ReadU8: %v", err)
	}
	if n != 0xFF {
		t.Fatalf("length prefix = %d, want 255", n)
	}
}

func TestWriteU64ReadU64RoundTrip(t *testing.T) {
	b := WriteU64(nil, 0x0102030405060708)
	v, _, err := ReadU64(b, 0)
	if err != nil {
		t.Fatalf("ReadU64: %v", err)
	}
	if v != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %#x, want %#x", v, uint64(0x0102030405060708))
	}
}
