package disk

import "testing"

func TestMountRequestRejectsBadSlot(t *testing.T) {
	if _, err := BuildMountRequest(0, "SD", "/disk.atr", false, TypeAuto, 128); err == nil {
		t.Fatal("expected error for slot=0")
	}
	if _, err := BuildMountRequest(256, "SD", "/disk.atr", false, TypeAuto, 128); err == nil {
		t.Fatal("expected error for slot=256")
	}
}

func TestMountResponseRoundTrip(t *testing.T) {
	payload := []byte{ProtocolVersion, 0x03, 0, 0, 1, TypeATR}
	payload = append(payload, 0, 1) // sector_size = 256
	payload = append(payload, 0xD0, 2, 0, 0)
	mr, err := ParseMountResponse(payload)
	if err != nil {
		t.Fatalf("ParseMountResponse: %v", err)
	}
	if !mr.Mounted || !mr.Readonly || mr.Slot != 1 || mr.ImageType != TypeATR {
		t.Fatalf("got %+v", mr)
	}
	if mr.SectorSize != 256 {
		t.Fatalf("sector size = %d, want 256", mr.SectorSize)
	}
}

func TestReadSectorResponseDecodesData(t *testing.T) {
	payload := []byte{ProtocolVersion, 0x01, 0, 0, 2}
	payload = append(payload, 5, 0, 0, 0) // lba = 5
	payload = append(payload, 3, 0)       // data_len = 3
	payload = append(payload, 'a', 'b', 'c')

	rs, err := ParseReadSectorResponse(payload)
	if err != nil {
		t.Fatalf("ParseReadSectorResponse: %v", err)
	}
	if !rs.Truncated || rs.Slot != 2 || rs.LBA != 5 || string(rs.Data) != "abc" {
		t.Fatalf("got %+v", rs)
	}
}

func TestWriteSectorRequestRejectsOversizedData(t *testing.T) {
	big := make([]byte, 0x10000)
	if _, err := BuildWriteSectorRequest(1, 0, big); err == nil {
		t.Fatal("expected error for data > 65535 bytes")
	}
}
