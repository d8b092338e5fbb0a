package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fujinet-go/fujibus/internal/devices/file"
)

func runFileList(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	start := fs.Uint("start", 0, "start index")
	max := fs.Uint("max", 64, "max entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("fujibus list: usage: list <fs> <path>")
	}

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := file.List(ctx, sess, fs.Arg(0), fs.Arg(1), uint16(*start), uint16(*max))
	if err != nil {
		return err
	}
	for _, e := range res.Entries {
		kind := "f"
		if e.IsDir {
			kind = "d"
		}
		fmt.Fprintf(stdout, "%s  %10d  %s\n", kind, e.Size, e.Name)
	}
	return nil
}

func runFileStat(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("fujibus stat: usage: stat <fs> <path>")
	}

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := file.Stat(ctx, sess, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exists=%t is_dir=%t size=%d mtime=%d\n", res.Exists, res.IsDir, res.Size, res.MTime)
	return nil
}

func runFileRead(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	offset := fs.Uint("offset", 0, "read offset")
	maxBytes := fs.Uint("max-bytes", 512, "max bytes per read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("fujibus read: usage: read [--offset N --max-bytes M] <fs> <path>")
	}

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := file.Read(ctx, sess, fs.Arg(0), fs.Arg(1), uint32(*offset), uint16(*maxBytes))
	if err != nil {
		return err
	}
	_, err = stdout.Write(res.Data)
	return err
}

func runFileReadAll(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("read-all", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	chunk := fs.Uint("chunk", 1024, "bytes per read")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("fujibus read-all: usage: read-all <fs> <path>")
	}

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	sink := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		sink = f
	}

	_, err = file.ReadAll(ctx, sess, fs.Arg(0), fs.Arg(1), uint16(*chunk), sink)
	return err
}

func runFileWrite(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	offset := fs.Uint("offset", 0, "write offset")
	chunk := fs.Int("chunk", 1024, "bytes per write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return fmt.Errorf("fujibus write: usage: write <fs> <path> <input_file>")
	}

	data, err := os.ReadFile(fs.Arg(2))
	if err != nil {
		return err
	}

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	n, err := file.WriteAll(ctx, sess, fs.Arg(0), fs.Arg(1), uint32(*offset), data, *chunk)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d bytes\n", n)
	return nil
}
