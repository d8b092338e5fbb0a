// Package dfs decodes Acorn DFS 0.90 disc catalogues: the two-sector
// directory structure used by BBC Micro floppy images.
package dfs

import (
	"fmt"
	"strings"
)

// DiskDescriptor summarizes a DFS catalogue's disc-level fields.
type DiskDescriptor struct {
	Title       string
	CycleBCD    uint8
	FileCount   int
	BootOption  uint8
	DiscSectors int
}

// FileEntry is one file in a DFS catalogue.
type FileEntry struct {
	Directory   string
	Name        string
	Locked      bool
	LoadAddr    uint32
	ExecAddr    uint32
	Length      uint32
	StartSector uint16
}

// FullName renders the entry as DFS conventionally displays it: D.NAME.
func (e FileEntry) FullName() string {
	d := e.Directory
	if d == "" {
		d = "$"
	}
	return d + "." + e.Name
}

func decodeTitle(sector0, sector1 []byte) string {
	raw := append(append([]byte(nil), sector0[0:8]...), sector1[0:4]...)
	t := strings.TrimRight(string(raw), "\x00 ")
	t = strings.TrimSpace(t)
	if t != "" {
		return t
	}
	// Fallback for older/third-party tools that put an 8-char title at
	// sector1[0..7] instead of the canonical split layout.
	t2 := strings.TrimRight(string(sector1[0:8]), "\x00 ")
	return strings.TrimSpace(t2)
}

func bcdToInt(x uint8) uint8 {
	return ((x >> 4) & 0x0F) * 10 + (x & 0x0F)
}

// ParseCatalogue090 decodes the standard two-sector Acorn DFS 0.90
// catalogue. Reference: https://beebwiki.mdfs.net/Acorn_DFS_disc_format
func ParseCatalogue090(sector0, sector1 []byte) (*DiskDescriptor, []FileEntry, error) {
	if len(sector0) != 256 || len(sector1) != 256 {
		return nil, nil, fmt.Errorf("dfs: catalogue sectors must be exactly 256 bytes each, got %d and %d", len(sector0), len(sector1))
	}

	title := decodeTitle(sector0, sector1)
	cycle := bcdToInt(sector1[4])

	fileOff := sector1[5]
	fileCount := int(fileOff / 8)
	if fileCount > 31 {
		fileCount = 31
	}

	bootOption := (sector1[6] >> 4) & 0x03
	discSectors := int(sector1[7]) | (int(sector1[6]&0x03) << 8)

	desc := &DiskDescriptor{
		Title:       title,
		CycleBCD:    cycle,
		FileCount:   fileCount,
		BootOption:  bootOption,
		DiscSectors: discSectors,
	}

	entries := make([]FileEntry, 0, fileCount)
	for i := 0; i < fileCount; i++ {
		off := 8 + i*8
		if off+8 > 256 {
			break
		}

		rawName := sector0[off : off+7]
		dirAttr := sector0[off+7]

		name := strings.TrimSpace(strings.TrimRight(string(rawName), " \x00"))
		if name == "" {
			continue
		}

		directory := string(rune(dirAttr & 0x7F))
		if directory == "\x00" {
			directory = "$"
		}
		locked := dirAttr&0x80 != 0

		b8 := sector1[off+0]
		b9 := sector1[off+1]
		b10 := sector1[off+2]
		b11 := sector1[off+3]
		b12 := sector1[off+4]
		b13 := sector1[off+5]
		b14 := sector1[off+6]
		b15 := sector1[off+7]

		loadAddr := uint32(b8) | uint32(b9)<<8 | uint32((b14>>2)&0x03)<<16
		execAddr := uint32(b10) | uint32(b11)<<8 | uint32((b14>>6)&0x03)<<16
		length := uint32(b12) | uint32(b13)<<8 | uint32((b14>>4)&0x03)<<16
		startSector := uint16(b15) | uint16(b14&0x03)<<8

		entries = append(entries, FileEntry{
			Directory:   directory,
			Name:        name,
			Locked:      locked,
			LoadAddr:    loadAddr,
			ExecAddr:    execAddr,
			Length:      length,
			StartSector: startSector,
		})
	}

	return desc, entries, nil
}

// FindEntry looks up name, which may be "D.NAME" or bare "NAME" (directory
// defaults to "$").
func FindEntry(entries []FileEntry, name string) *FileEntry {
	s := strings.TrimSpace(name)
	if s == "" {
		return nil
	}
	dir, base := "$", s
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		dir = strings.TrimSpace(s[:idx])
		if dir == "" {
			dir = "$"
		}
		dir = dir[:1]
		base = strings.TrimSpace(s[idx+1:])
	}
	for i := range entries {
		if entries[i].Directory == dir && entries[i].Name == base {
			return &entries[i]
		}
	}
	return nil
}

// FormatEntry renders an entry the way the catalogue listing prints it:
// "%-10s  load=%05X exec=%05X len=%05X start=%04X" with an optional
// trailing " L" for locked files.
func FormatEntry(e FileEntry) string {
	lock := ""
	if e.Locked {
		lock = " L"
	}
	return fmt.Sprintf("%-10s  load=%05X exec=%05X len=%05X start=%04X%s",
		e.FullName(), e.LoadAddr, e.ExecAddr, e.Length, e.StartSector, lock)
}
