package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fujinet-go/fujibus/internal/bus"
	"github.com/fujinet-go/fujibus/internal/devices/clock"
)

func runClock(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("fujibus clock: usage: clock get|set|get-format|get-tz|get-timezone|set-timezone|set-timezone-save ...")
	}
	sub, rest := args[0], args[1:]

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	switch sub {
	case "get":
		return clockGet(ctx, sess, stdout)
	case "set":
		return clockSet(ctx, sess, rest, stdout)
	case "get-format":
		return clockGetFormat(ctx, sess, rest, stdout, "")
	case "get-tz":
		return clockGetTZFormat(ctx, sess, rest, stdout)
	case "get-timezone":
		return clockGetTimezone(ctx, sess, stdout)
	case "set-timezone":
		return clockSetTimezone(ctx, sess, rest, stdout, clock.CmdSetTimezone)
	case "set-timezone-save":
		return clockSetTimezone(ctx, sess, rest, stdout, clock.CmdSetTimezoneSave)
	default:
		return fmt.Errorf("fujibus clock: unknown subcommand %q", sub)
	}
}

func clockGet(ctx context.Context, sess *bus.Session, stdout io.Writer) error {
	res, err := clock.Get(ctx, sess)
	if err != nil {
		return err
	}
	t := time.Unix(int64(res.UnixSeconds), 0).UTC()
	fmt.Fprintf(stdout, "%d %s\n", res.UnixSeconds, t.Format(time.RFC3339))
	return nil
}

func clockSet(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("clock set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	var secs uint64
	if fs.NArg() == 1 {
		n, err := strconv.ParseUint(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unix seconds %q: %w", fs.Arg(0), err)
		}
		secs = n
	} else {
		secs = uint64(time.Now().Unix())
	}
	res, err := clock.Set(ctx, sess, secs)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d\n", res.UnixSeconds)
	return nil
}

func formatCodeFor(name string) (uint8, error) {
	switch name {
	case "simple":
		return clock.FormatSimple, nil
	case "prodos":
		return clock.FormatProDOS, nil
	case "apetime":
		return clock.FormatApeTime, nil
	case "tziso":
		return clock.FormatTzIso, nil
	case "utciso":
		return clock.FormatUtcIso, nil
	case "sos":
		return clock.FormatSos, nil
	default:
		return 0, fmt.Errorf("unknown clock format %q (want simple|prodos|apetime|tziso|utciso|sos)", name)
	}
}

func clockGetFormat(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer, presetTZ string) error {
	fs := flag.NewFlagSet("clock get-format", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus clock get-format: usage: clock get-format <fmt>")
	}
	code, err := formatCodeFor(fs.Arg(0))
	if err != nil {
		return err
	}
	res, err := clock.GetFormat(ctx, sess, code, presetTZ)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%x\n", res.Bytes)
	return nil
}

func clockGetTZFormat(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("clock get-tz", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("fujibus clock get-tz: usage: clock get-tz <tz> <fmt>")
	}
	code, err := formatCodeFor(fs.Arg(1))
	if err != nil {
		return err
	}
	res, err := clock.GetFormat(ctx, sess, code, fs.Arg(0))
	if err != nil {
		return err
	}
	switch code {
	case clock.FormatTzIso, clock.FormatUtcIso:
		fmt.Fprintln(stdout, string(res.Bytes))
	default:
		fmt.Fprintf(stdout, "%x\n", res.Bytes)
	}
	return nil
}

func clockGetTimezone(ctx context.Context, sess *bus.Session, stdout io.Writer) error {
	res, err := clock.GetTimezone(ctx, sess)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.TZ)
	return nil
}

func clockSetTimezone(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer, cmd uint8) error {
	fs := flag.NewFlagSet("clock set-timezone", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus clock set-timezone: usage: clock set-timezone[-save] <tz>")
	}
	var res *clock.TimezoneResult
	var err error
	if cmd == clock.CmdSetTimezoneSave {
		res, err = clock.SetTimezoneSave(ctx, sess, fs.Arg(0))
	} else {
		res, err = clock.SetTimezone(ctx, sess, fs.Arg(0))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.TZ)
	return nil
}
