package disk

import (
	"context"
	"fmt"

	"github.com/fujinet-go/fujibus/internal/bus"
)

func statusError(params []uint64) error {
	if len(params) == 0 {
		return fmt.Errorf("disk: response carried no status param")
	}
	status := bus.Status(params[0])
	if status == bus.StatusOk {
		return nil
	}
	return &bus.ProtocolError{Status: status}
}

// Mount sends a Mount request and returns the decoded result.
func Mount(ctx context.Context, sess *bus.Session, slot int, fs, path string, readonly bool, typeOverride uint8, sectorSizeHint uint16) (*MountResult, error) {
	req, err := BuildMountRequest(slot, fs, path, readonly, typeOverride, sectorSizeHint)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdMount, req, DeviceID, CmdMount, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("disk: no response to mount")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseMountResponse(pkt.Payload)
}

// Unmount sends an Unmount request for slot.
func Unmount(ctx context.Context, sess *bus.Session, slot int) error {
	req, err := BuildUnmountRequest(slot)
	if err != nil {
		return err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdUnmount, req, DeviceID, CmdUnmount, bus.DefaultRetryConfig)
	if err != nil {
		return err
	}
	if pkt == nil {
		return fmt.Errorf("disk: no response to unmount")
	}
	return statusError(pkt.Params)
}

// Info sends an Info request for slot and returns the decoded result.
func Info(ctx context.Context, sess *bus.Session, slot int) (*InfoResult, error) {
	req, err := BuildInfoRequest(slot)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdInfo, req, DeviceID, CmdInfo, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("disk: no response to info")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseInfoResponse(pkt.Payload)
}

// ClearChanged sends a ClearChanged request for slot.
func ClearChanged(ctx context.Context, sess *bus.Session, slot int) error {
	req, err := BuildClearChangedRequest(slot)
	if err != nil {
		return err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdClearChanged, req, DeviceID, CmdClearChanged, bus.DefaultRetryConfig)
	if err != nil {
		return err
	}
	if pkt == nil {
		return fmt.Errorf("disk: no response to clear_changed")
	}
	return statusError(pkt.Params)
}

// ReadSector sends a single ReadSector request and returns the decoded result.
func ReadSector(ctx context.Context, sess *bus.Session, slot int, lba uint32, maxBytes uint16) (*ReadSectorResult, error) {
	req, err := BuildReadSectorRequest(slot, lba, maxBytes)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdReadSector, req, DeviceID, CmdReadSector, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("disk: no response to read_sector")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseReadSectorResponse(pkt.Payload)
}

// WriteSector sends a single WriteSector request and returns the decoded result.
func WriteSector(ctx context.Context, sess *bus.Session, slot int, lba uint32, data []byte) (*WriteSectorResult, error) {
	req, err := BuildWriteSectorRequest(slot, lba, data)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdWriteSector, req, DeviceID, CmdWriteSector, bus.DefaultRetryConfig)
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("disk: no response to write_sector")
	}
	if err := statusError(pkt.Params); err != nil {
		return nil, err
	}
	return ParseWriteSectorResponse(pkt.Payload)
}

// Create sends a Create request to lay down a fresh disk image.
func Create(ctx context.Context, sess *bus.Session, fs, path string, imgType uint8, sectorSize uint16, sectorCount uint32, overwrite bool) error {
	req, err := BuildCreateRequest(fs, path, imgType, sectorSize, sectorCount, overwrite)
	if err != nil {
		return err
	}
	pkt, err := sess.SendCommandExpectRetry(ctx, DeviceID, CmdCreate, req, DeviceID, CmdCreate, bus.DefaultRetryConfig)
	if err != nil {
		return err
	}
	if pkt == nil {
		return fmt.Errorf("disk: no response to create")
	}
	return statusError(pkt.Params)
}

// ReadAllSectors reads a contiguous run of count sectors starting at lba,
// one ReadSector request per sector, and returns the concatenated bytes.
func ReadAllSectors(ctx context.Context, sess *bus.Session, slot int, lba uint32, count uint32, sectorSize uint16) ([]byte, error) {
	out := make([]byte, 0, int(count)*int(sectorSize))
	for i := uint32(0); i < count; i++ {
		rs, err := ReadSector(ctx, sess, slot, lba+i, sectorSize)
		if err != nil {
			return out, err
		}
		out = append(out, rs.Data...)
	}
	return out, nil
}
