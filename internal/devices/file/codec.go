// Package file implements the File subdevice: a general-purpose file
// store addressed by a filesystem name and path, supporting stat, directory
// listing, and chunked read/write.
package file

import (
	"fmt"

	"github.com/fujinet-go/fujibus/internal/wire"
)

// DeviceID is the FujiBus device id for the File subdevice.
const DeviceID = 0xFE

// Command opcodes.
const (
	CmdStat  = 1
	CmdList  = 2
	CmdRead  = 3
	CmdWrite = 4
)

// ProtocolVersion is the only version this package speaks; every request
// and response payload starts with this byte.
const ProtocolVersion = 1

func buildCommon(fs, path string) ([]byte, error) {
	if fs == "" {
		return nil, fmt.Errorf("file: fs must not be empty")
	}
	if path == "" {
		return nil, fmt.Errorf("file: path must not be empty")
	}
	if len(fs) > 0xFF {
		return nil, fmt.Errorf("file: fs name too long (%d > 255)", len(fs))
	}
	if len(path) > 0xFFFF {
		return nil, fmt.Errorf("file: path too long (%d > 65535)", len(path))
	}

	b := make([]byte, 0, 4+len(fs)+len(path))
	b = wire.WriteU8(b, ProtocolVersion)
	b = wire.WriteLPString8(b, fs)
	b = wire.WriteLPString16(b, path)
	return b, nil
}

func checkVersion(ver uint8) error {
	if ver != ProtocolVersion {
		return fmt.Errorf("file: unexpected protocol version %d", ver)
	}
	return nil
}

// StatResult is the decoded response to a Stat request.
type StatResult struct {
	Exists bool
	IsDir  bool
	Size   uint64
	MTime  uint64
}

// BuildStatRequest builds a Stat request payload.
func BuildStatRequest(fs, path string) ([]byte, error) {
	return buildCommon(fs, path)
}

// ParseStatResponse decodes a Stat response payload.
func ParseStatResponse(payload []byte) (*StatResult, error) {
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
	size, off, err := wire.ReadU64(payload, off)
	if err != nil {
		return nil, err
	}
	mtime, _, err := wire.ReadU64(payload, off)
	if err != nil {
		return nil, err
	}
	return &StatResult{
		IsDir:  flags&0x01 != 0,
		Exists: flags&0x02 != 0,
		Size:   size,
		MTime:  mtime,
	}, nil
}

// DirEntry is one entry in a ListDirResult.
type DirEntry struct {
	Name  string
	IsDir bool
	Size  uint64
	MTime uint64
}

// ListDirResult is the decoded response to a List request.
type ListDirResult struct {
	More    bool
	Entries []DirEntry
}

// BuildListRequest builds a List request payload. maxEntries must be >= 1.
func BuildListRequest(fs, path string, startIndex, maxEntries uint16) ([]byte, error) {
	if maxEntries < 1 {
		return nil, fmt.Errorf("file: maxEntries must be >= 1")
	}
	b, err := buildCommon(fs, path)
	if err != nil {
		return nil, err
	}
	b = wire.WriteU16(b, startIndex)
	b = wire.WriteU16(b, maxEntries)
	return b, nil
}

// ParseListResponse decodes a List response payload.
func ParseListResponse(payload []byte) (*ListDirResult, error) {
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
	count, off, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}

	entries := make([]DirEntry, 0, count)
	for i := 0; i < int(count); i++ {
		eflags, nOff, err := wire.ReadU8(payload, off)
		if err != nil {
			return nil, fmt.Errorf("file: entry %d header: %w", i, err)
		}
		nameLen, nOff2, err := wire.ReadU8(payload, nOff)
		if err != nil {
			return nil, fmt.Errorf("file: entry %d name length: %w", i, err)
		}
		name, nOff3, err := wire.ReadBytes(payload, nOff2, int(nameLen))
		if err != nil {
			return nil, fmt.Errorf("file: entry %d name: %w", i, err)
		}
		size, nOff4, err := wire.ReadU64(payload, nOff3)
		if err != nil {
			return nil, fmt.Errorf("file: entry %d size: %w", i, err)
		}
		mtime, nOff5, err := wire.ReadU64(payload, nOff4)
		if err != nil {
			return nil, fmt.Errorf("file: entry %d mtime: %w", i, err)
		}
		entries = append(entries, DirEntry{
			Name:  string(name),
			IsDir: eflags&0x01 != 0,
			Size:  size,
			MTime: mtime,
		})
		off = nOff5
	}

	return &ListDirResult{More: flags&0x01 != 0, Entries: entries}, nil
}

// ReadResult is the decoded response to a Read request.
type ReadResult struct {
	Offset    uint32
	EOF       bool
	Truncated bool
	Data      []byte
}

// BuildReadRequest builds a Read request payload. maxBytes must be >= 1.
func BuildReadRequest(fs, path string, offset uint32, maxBytes uint16) ([]byte, error) {
	if maxBytes < 1 {
		return nil, fmt.Errorf("file: maxBytes must be >= 1")
	}
	b, err := buildCommon(fs, path)
	if err != nil {
		return nil, err
	}
	b = wire.WriteU32(b, offset)
	b = wire.WriteU16(b, maxBytes)
	return b, nil
}

// ParseReadResponse decodes a Read response payload.
func ParseReadResponse(payload []byte) (*ReadResult, error) {
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
	offset, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	data, _, err := wire.ReadLPBytes16(payload, off)
	if err != nil {
		return nil, err
	}
	return &ReadResult{
		Offset:    offset,
		EOF:       flags&0x01 != 0,
		Truncated: flags&0x02 != 0,
		Data:      append([]byte(nil), data...),
	}, nil
}

// WriteResult is the decoded response to a Write request.
type WriteResult struct {
	Offset  uint32
	Written uint16
}

// BuildWriteRequest builds a Write request payload. data must be <= 65535 bytes.
func BuildWriteRequest(fs, path string, offset uint32, data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("file: data too large for one packet (%d > 65535)", len(data))
	}
	b, err := buildCommon(fs, path)
	if err != nil {
		return nil, err
	}
	b = wire.WriteU32(b, offset)
	b = wire.WriteLPBytes16(b, data)
	return b, nil
}

// ParseWriteResponse decodes a Write response payload.
func ParseWriteResponse(payload []byte) (*WriteResult, error) {
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
	offset, off, err := wire.ReadU32(payload, off)
	if err != nil {
		return nil, err
	}
	written, _, err := wire.ReadU16(payload, off)
	if err != nil {
		return nil, err
	}
	return &WriteResult{Offset: offset, Written: written}, nil
}
