package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/fujinet-go/fujibus/internal/bus"
	"github.com/fujinet-go/fujibus/internal/devices/disk"
)

func runDisk(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("fujibus disk: usage: disk mount|unmount|info|clear-changed|read-sector|write-sector|create ...")
	}
	sub, rest := args[0], args[1:]

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	switch sub {
	case "mount":
		return runDiskMount(ctx, sess, rest, stdout)
	case "unmount":
		return runDiskSlotOnly(sess, "unmount", rest, func(slot int) error {
			return disk.Unmount(ctx, sess, slot)
		})
	case "clear-changed":
		return runDiskSlotOnly(sess, "clear-changed", rest, func(slot int) error {
			return disk.ClearChanged(ctx, sess, slot)
		})
	case "info":
		return runDiskInfo(ctx, sess, rest, stdout)
	case "read-sector":
		return runDiskReadSector(ctx, sess, rest, stdout)
	case "write-sector":
		return runDiskWriteSector(ctx, sess, rest, stdout)
	case "create":
		return runDiskCreate(ctx, sess, rest, stdout)
	default:
		return fmt.Errorf("fujibus disk: unknown subcommand %q", sub)
	}
}

func parseSlot(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q: %w", s, err)
	}
	return n, nil
}

func runDiskSlotOnly(sess *bus.Session, name string, args []string, fn func(slot int) error) error {
	fs := flag.NewFlagSet("disk "+name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus disk %s: usage: disk %s <slot>", name, name)
	}
	slot, err := parseSlot(fs.Arg(0))
	if err != nil {
		return err
	}
	return fn(slot)
}

func runDiskMount(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("disk mount", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	readonly := fs.Bool("readonly", false, "mount read-only")
	typeOverride := fs.Uint("type", disk.TypeAuto, "image type override (0=auto,1=atr,2=ssd,3=dsd,4=raw)")
	sectorSizeHint := fs.Uint("sector-size-hint", 0, "sector size hint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return fmt.Errorf("fujibus disk mount: usage: disk mount [opts] <slot> <fs> <path>")
	}
	slot, err := parseSlot(fs.Arg(0))
	if err != nil {
		return err
	}

	res, err := disk.Mount(ctx, sess, slot, fs.Arg(1), fs.Arg(2), *readonly, uint8(*typeOverride), uint16(*sectorSizeHint))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "mounted=%t readonly=%t slot=%d type=%d sector_size=%d sector_count=%d\n",
		res.Mounted, res.Readonly, res.Slot, res.ImageType, res.SectorSize, res.SectorCount)
	return nil
}

func runDiskInfo(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("disk info", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus disk info: usage: disk info <slot>")
	}
	slot, err := parseSlot(fs.Arg(0))
	if err != nil {
		return err
	}
	res, err := disk.Info(ctx, sess, slot)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "inserted=%t readonly=%t dirty=%t changed=%t slot=%d type=%d sector_size=%d sector_count=%d last_error=%d\n",
		res.Inserted, res.Readonly, res.Dirty, res.Changed, res.Slot, res.ImageType, res.SectorSize, res.SectorCount, res.LastError)
	return nil
}

func runDiskReadSector(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("disk read-sector", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	maxBytes := fs.Uint("max-bytes", 256, "max bytes to read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("fujibus disk read-sector: usage: disk read-sector <slot> <lba>")
	}
	slot, err := parseSlot(fs.Arg(0))
	if err != nil {
		return err
	}
	lba, err := strconv.ParseUint(fs.Arg(1), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid lba %q: %w", fs.Arg(1), err)
	}
	res, err := disk.ReadSector(ctx, sess, slot, uint32(lba), uint16(*maxBytes))
	if err != nil {
		return err
	}
	_, err = stdout.Write(res.Data)
	return err
}

func runDiskWriteSector(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("disk write-sector", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	in := fs.String("in", "", "input file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 || *in == "" {
		return fmt.Errorf("fujibus disk write-sector: usage: disk write-sector --in file <slot> <lba>")
	}
	slot, err := parseSlot(fs.Arg(0))
	if err != nil {
		return err
	}
	lba, err := strconv.ParseUint(fs.Arg(1), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid lba %q: %w", fs.Arg(1), err)
	}
	data, err := readFileArg(*in)
	if err != nil {
		return err
	}
	res, err := disk.WriteSector(ctx, sess, slot, uint32(lba), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d bytes to slot=%d lba=%d\n", res.WrittenLen, res.Slot, res.LBA)
	return nil
}

func runDiskCreate(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("disk create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	imgType := fs.Uint("type", disk.TypeATR, "image type (1=atr,2=ssd,3=dsd,4=raw)")
	sectorSize := fs.Uint("sector-size", 256, "sector size in bytes")
	sectorCount := fs.Uint("sector-count", 0, "sector count (required)")
	overwrite := fs.Bool("overwrite", false, "overwrite an existing image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 || *sectorCount == 0 {
		return fmt.Errorf("fujibus disk create: usage: disk create --sector-count N [opts] <fs> <path>")
	}
	err := disk.Create(ctx, sess, fs.Arg(0), fs.Arg(1), uint8(*imgType), uint16(*sectorSize), uint32(*sectorCount), *overwrite)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "created")
	return nil
}
