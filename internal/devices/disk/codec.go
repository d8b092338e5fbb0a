// Package disk implements the Disk subdevice: mountable disk images
// addressed by a slot number, with sector-level read/write.
package disk

import (
	"fmt"

	"github.com/fujinet-go/fujibus/internal/wire"
)

// DeviceID is the FujiBus device id for the Disk subdevice.
const DeviceID = 0xFC

// Command opcodes.
const (
	CmdMount        = 0x01
	CmdUnmount      = 0x02
	CmdReadSector   = 0x03
	CmdWriteSector  = 0x04
	CmdInfo         = 0x05
	CmdClearChanged = 0x06
	CmdCreate       = 0x07
)

// ProtocolVersion is the only version this package speaks.
const ProtocolVersion = 1

// Image types.
const (
	TypeAuto = 0
	TypeATR  = 1
	TypeSSD  = 2
	TypeDSD  = 3
	TypeRAW  = 4
)

// Mount request flag bits.
const MountFlagReadonly = 0x01

func checkSlot(slot int) (uint8, error) {
	if slot < 1 || slot > 255 {
		return 0, fmt.Errorf("disk: slot must be 1..255")
	}
	return uint8(slot), nil
}

func lpU16(b []byte, s string) ([]byte, error) {
	if len(s) > 0xFFFF {
		return nil, fmt.Errorf("disk: string too long for lp_u16")
	}
	return wire.WriteLPString16(b, s), nil
}

// BuildMountRequest builds a Mount request payload.
func BuildMountRequest(slot int, fs, path string, readonly bool, typeOverride uint8, sectorSizeHint uint16) ([]byte, error) {
	s, err := checkSlot(slot)
	if err != nil {
		return nil, err
	}
	flags := uint8(0)
	if readonly {
		flags |= MountFlagReadonly
	}

	b := make([]byte, 0, 8+len(fs)+len(path))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU8(b, s)
	b = wire.WriteU8(b, flags)
	b = wire.WriteU8(b, typeOverride)
	b = wire.WriteU16(b, sectorSizeHint)
	if b, err = lpU16(b, fs); err != nil {
		return nil, err
	}
	if b, err = lpU16(b, path); err != nil {
		return nil, err
	}
	return b, nil
}

// BuildUnmountRequest builds an Unmount request payload.
func BuildUnmountRequest(slot int) ([]byte, error) {
	s, err := checkSlot(slot)
	if err != nil {
		return nil, err
	}
	return []byte{ProtocolVersion, s}, nil
}

// BuildInfoRequest builds an Info request payload.
func BuildInfoRequest(slot int) ([]byte, error) {
	s, err := checkSlot(slot)
	if err != nil {
		return nil, err
	}
	return []byte{ProtocolVersion, s}, nil
}

// BuildClearChangedRequest builds a ClearChanged request payload.
func BuildClearChangedRequest(slot int) ([]byte, error) {
	s, err := checkSlot(slot)
	if err != nil {
		return nil, err
	}
	return []byte{ProtocolVersion, s}, nil
}

// BuildReadSectorRequest builds a ReadSector request payload. maxBytes
// must be 1..65535.
func BuildReadSectorRequest(slot int, lba uint32, maxBytes uint16) ([]byte, error) {
	s, err := checkSlot(slot)
	if err != nil {
		return nil, err
	}
	if maxBytes < 1 {
		return nil, fmt.Errorf("disk: maxBytes must be >= 1")
	}
	b := make([]byte, 0, 8)
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU8(b, s)
	b = wire.WriteU32(b, lba)
	b = wire.WriteU16(b, maxBytes)
	return b, nil
}

// BuildWriteSectorRequest builds a WriteSector request payload.
func BuildWriteSectorRequest(slot int, lba uint32, data []byte) ([]byte, error) {
	s, err := checkSlot(slot)
	if err != nil {
		return nil, err
	}
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("disk: data too large for one packet (%d > 65535)", len(data))
	}
	b := make([]byte, 0, 8+len(data))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteU8(b, s)
	b = wire.WriteU32(b, lba)
	b = wire.WriteLPBytes16(b, data)
	return b, nil
}

// BuildCreateRequest builds a Create request payload for a fresh image of
// the given type, sector size, and sector count. This extends the
// original mount-only protocol with an explicit image-creation command;
// unlike Mount it is not addressed to a slot since the image doesn't
// exist yet.
func BuildCreateRequest(fs, path string, imgType uint8, sectorSize uint16, sectorCount uint32, overwrite bool) ([]byte, error) {
	b := make([]byte, 0, 12+len(fs)+len(path))
	b = wire.WriteU8(b, ProtocolVersion)
	var err error
	if b, err = lpU16(b, fs); err != nil {
		return nil, err
	}
	if b, err = lpU16(b, path); err != nil {
		return nil, err
	}
	b = wire.WriteU8(b, imgType)
	b = wire.WriteU16(b, sectorSize)
	b = wire.WriteU32(b, sectorCount)
	overwriteByte := uint8(0)
	if overwrite {
		overwriteByte = 1
	}
	b = wire.WriteU8(b, overwriteByte)
	return b, nil
}

func checkVersion(ver uint8) error {
	if ver != ProtocolVersion {
		return fmt.Errorf("disk: unexpected protocol version %d", ver)
	}
	return nil
}

// MountResult is the decoded response to a Mount request.
type MountResult struct {
	Mounted     bool
	Readonly    bool
	Slot        uint8
	ImageType   uint8
	SectorSize  uint16
	SectorCount uint32
}

// ParseMountResponse decodes a Mount response payload.
func ParseMountResponse(payload []byte) (*MountResult, error) {
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
	slot, off, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}
	imgType, off, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}
	sectorSize, off, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	sectorCount, _, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	return &MountResult{
		Mounted:     flags&0x01 != 0,
		Readonly:    flags&0x02 != 0,
		Slot:        slot,
		ImageType:   imgType,
		SectorSize:  sectorSize,
		SectorCount: sectorCount,
	}, nil
}

// InfoResult is the decoded response to an Info request.
type InfoResult struct {
	Inserted    bool
	Readonly    bool
	Dirty       bool
	Changed     bool
	Slot        uint8
	ImageType   uint8
	SectorSize  uint16
	SectorCount uint32
	LastError   uint8
}

// ParseInfoResponse decodes an Info response payload.
func ParseInfoResponse(payload []byte) (*InfoResult, error) {
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
	slot, off, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}
	imgType, off, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}
	sectorSize, off, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	sectorCount, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	lastErr, _, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}
	return &InfoResult{
		Inserted:    flags&0x01 != 0,
		Readonly:    flags&0x02 != 0,
		Dirty:       flags&0x04 != 0,
		Changed:     flags&0x08 != 0,
		Slot:        slot,
		ImageType:   imgType,
		SectorSize:  sectorSize,
		SectorCount: sectorCount,
		LastError:   lastErr,
	}, nil
}

// ReadSectorResult is the decoded response to a ReadSector request.
type ReadSectorResult struct {
	Truncated bool
	Slot      uint8
	LBA       uint32
	Data      []byte
}

// ParseReadSectorResponse decodes a ReadSector response payload.
func ParseReadSectorResponse(payload []byte) (*ReadSectorResult, error) {
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
	slot, off, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}
	lba, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	data, _, err := wire.ReadLPBytes16(payload, off)
	if err != nil {
		return nil, err
	}
	return &ReadSectorResult{
		Truncated: flags&0x01 != 0,
		Slot:      slot,
		LBA:       lba,
		Data:      append([]byte(nil), data...),
	}, nil
}

// WriteSectorResult is the decoded response to a WriteSector request.
type WriteSectorResult struct {
	Slot       uint8
	LBA        uint32
	WrittenLen uint16
}

// ParseWriteSectorResponse decodes a WriteSector response payload.
func ParseWriteSectorResponse(payload []byte) (*WriteSectorResult, error) {
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
	slot, off, err := wire.ReadU8(payload, off)
	if err != nil {
		return nil, err
	}
	lba, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	writtenLen, _, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	return &WriteSectorResult{Slot: slot, LBA: lba, WrittenLen: writtenLen}, nil
}
