package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fujinet-go/fujibus/internal/bus"
	"github.com/fujinet-go/fujibus/internal/devices/dfs"
	"github.com/fujinet-go/fujibus/internal/devices/disk"
)

// bbcSectorSize is the fixed sector size of an Acorn DFS floppy image.
const bbcSectorSize = 256

func runBBC(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	if len(args) < 2 || args[0] != "dfs" {
		return fmt.Errorf("fujibus bbc: usage: bbc dfs info|cat|read --slot N [name] [--out path]")
	}
	sub, rest := args[1], args[2:]

	fs := flag.NewFlagSet("bbc dfs "+sub, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	slot := fs.Int("slot", 0, "disk slot (required)")
	out := fs.String("out", "", "output file for read (default stdout)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *slot <= 0 {
		return fmt.Errorf("fujibus bbc dfs %s: --slot is required", sub)
	}

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	desc, entries, err := readCatalogue(ctx, sess, *slot)
	if err != nil {
		return err
	}

	switch sub {
	case "info":
		fmt.Fprintf(stdout, "title=%q cycle=%d files=%d boot_option=%d sectors=%d\n",
			desc.Title, desc.CycleBCD, desc.FileCount, desc.BootOption, desc.DiscSectors)
		return nil
	case "cat":
		for _, e := range entries {
			fmt.Fprintln(stdout, dfs.FormatEntry(e))
		}
		return nil
	case "read":
		if fs.NArg() != 1 {
			return fmt.Errorf("fujibus bbc dfs read: usage: bbc dfs read --slot N <name> [--out path]")
		}
		entry := dfs.FindEntry(entries, fs.Arg(0))
		if entry == nil {
			return fmt.Errorf("fujibus bbc dfs read: no such file %q", fs.Arg(0))
		}
		data, err := disk.ReadAllSectors(ctx, sess, *slot, uint32(entry.StartSector), sectorsFor(entry.Length), bbcSectorSize)
		if err != nil {
			return err
		}
		if len(data) > int(entry.Length) {
			data = data[:entry.Length]
		}
		sink := io.Writer(stdout)
		if *out != "" {
			f, err := os.Create(*out)
			if err != nil {
				return err
			}
			defer f.Close()
			sink = f
		}
		_, err = sink.Write(data)
		return err
	default:
		return fmt.Errorf("fujibus bbc dfs: unknown subcommand %q", sub)
	}
}

func sectorsFor(length uint32) uint32 {
	return (length + bbcSectorSize - 1) / bbcSectorSize
}

// readCatalogue reads a DFS image's two catalogue sectors (LBA 0 and 1)
// from the mounted disk slot and decodes them.
func readCatalogue(ctx context.Context, sess *bus.Session, slot int) (*dfs.DiskDescriptor, []dfs.FileEntry, error) {
	s0, err := disk.ReadSector(ctx, sess, slot, 0, bbcSectorSize)
	if err != nil {
		return nil, nil, fmt.Errorf("fujibus bbc dfs: read sector 0: %w", err)
	}
	s1, err := disk.ReadSector(ctx, sess, slot, 1, bbcSectorSize)
	if err != nil {
		return nil, nil, fmt.Errorf("fujibus bbc dfs: read sector 1: %w", err)
	}
	return dfs.ParseCatalogue090(s0.Data, s1.Data)
}
