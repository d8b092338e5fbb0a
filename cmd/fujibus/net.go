package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fujinet-go/fujibus/internal/bus"
	"github.com/fujinet-go/fujibus/internal/devices/netdev"
)

func runNet(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("fujibus net: usage: net open|info|read|write|close|get|head|send|tcp ...")
	}
	sub, rest := args[0], args[1:]

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	switch sub {
	case "get", "head":
		return runNetFetch(ctx, sess, sub, rest, stdout)
	case "send":
		return runNetSend(ctx, sess, rest, stdout)
	case "open":
		return runNetOpen(ctx, sess, rest, stdout)
	case "info":
		return runNetInfo(ctx, sess, rest, stdout)
	case "read":
		return runNetRead(ctx, sess, rest, stdout)
	case "write":
		return runNetWrite(ctx, sess, rest, stdout)
	case "close":
		return runNetClose(ctx, sess, rest, stdout)
	case "tcp":
		return runNetTCP(ctx, sess, rest, stdout)
	default:
		return fmt.Errorf("fujibus net: unknown subcommand %q", sub)
	}
}

type headerList []netdev.Header

func (h *headerList) String() string { return "" }
func (h *headerList) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected K=V, got %q", s)
	}
	*h = append(*h, netdev.Header{Name: k, Value: v})
	return nil
}

type stringList []string

func (s *stringList) String() string    { return "" }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func runNetFetch(ctx context.Context, sess *bus.Session, sub string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("net "+sub, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var respHeaders stringList
	fs.Var(&respHeaders, "resp-header", "response header name to surface via Info (repeatable)")
	showHeaders := fs.Bool("show-headers", false, "print response headers before the body")
	chunk := fs.Uint("chunk", uint(netdev.DefaultGetOptions.Chunk), "bytes per read")
	out := fs.String("out", "", "output file for get (default stdout)")
	force := fs.Bool("force", false, "overwrite --out if it exists")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus net %s: usage: net %s [opts] <url>", sub, sub)
	}
	url := fs.Arg(0)

	if sub == "head" {
		ir, err := netdev.Head(ctx, sess, url, []string(respHeaders))
		if err != nil {
			return err
		}
		printInfo(stdout, ir)
		return nil
	}

	sink := stdout
	if *out != "" {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if !*force {
			flags |= os.O_EXCL
		}
		f, err := os.OpenFile(*out, flags, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		sink = f
	}

	opts := netdev.DefaultGetOptions
	opts.Chunk = uint16(*chunk)
	opts.ShowHeaders = *showHeaders
	if len(respHeaders) > 0 {
		opts.RespHeaders = []string(respHeaders)
	}

	result, err := netdev.Get(ctx, sess, url, sink, opts)
	if err != nil {
		return err
	}
	if *showHeaders && result.Info != nil {
		printInfo(stdout, result.Info)
	}
	return nil
}

func printInfo(w io.Writer, ir *netdev.InfoResult) {
	fmt.Fprintf(w, "status=%d content_length=%d\n", ir.HTTPStatus, ir.ContentLength)
	for _, h := range ir.Headers {
		fmt.Fprintf(w, "%s: %s\n", h.Name, h.Value)
	}
}

func runNetSend(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("net send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	method := fs.String("method", "POST", "POST or PUT")
	chunk := fs.Int("chunk", 1024, "bytes per write")
	in := fs.String("in", "", "input file (default stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus net send: usage: net send --method POST|PUT [--in file] <url>")
	}

	var body []byte
	var err error
	if *in != "" {
		body, err = os.ReadFile(*in)
	} else {
		body, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}

	var respBody []byte
	var info *netdev.InfoResult
	switch strings.ToUpper(*method) {
	case "POST":
		respBody, info, err = netdev.Post(ctx, sess, fs.Arg(0), body, *chunk)
	case "PUT":
		respBody, info, err = netdev.Put(ctx, sess, fs.Arg(0), body, *chunk)
	default:
		return fmt.Errorf("fujibus net send: --method must be POST or PUT")
	}
	if err != nil {
		return err
	}
	if info != nil {
		printInfo(stdout, info)
	}
	_, err = stdout.Write(respBody)
	return err
}

func runNetOpen(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("net open", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	method := fs.String("method", "GET", "GET|POST|PUT|DELETE|HEAD")
	var setHeader headerList
	fs.Var(&setHeader, "set-header", "K=V request header (repeatable)")
	var respHeaders stringList
	fs.Var(&respHeaders, "resp-header", "response header name to surface (repeatable)")
	flagsOpt := fs.Uint("flags", 0, "raw open request flags")
	bodyLen := fs.Uint("body-len-hint", 0, "body_len_hint for POST/PUT")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus net open: usage: net open [opts] <url>")
	}

	methodCode, err := methodCodeFor(*method)
	if err != nil {
		return err
	}

	res, err := netdev.Open(ctx, sess, methodCode, uint8(*flagsOpt), fs.Arg(0), []netdev.Header(setHeader), uint32(*bodyLen), []string(respHeaders))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "handle=%d accepted=%t needs_body_write=%t\n", res.Handle, res.Accepted, res.NeedsBodyWrite)
	return nil
}

func methodCodeFor(name string) (uint8, error) {
	switch strings.ToUpper(name) {
	case "GET":
		return netdev.MethodGet, nil
	case "POST":
		return netdev.MethodPost, nil
	case "PUT":
		return netdev.MethodPut, nil
	case "DELETE":
		return netdev.MethodDelete, nil
	case "HEAD":
		return netdev.MethodHead, nil
	default:
		return 0, fmt.Errorf("unknown HTTP method %q", name)
	}
}

func runNetInfo(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("net info", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	handle, err := handleArg(fs)
	if err != nil {
		return err
	}
	ir, err := netdev.Info(ctx, sess, handle)
	if err != nil {
		return err
	}
	printInfo(stdout, ir)
	return nil
}

func handleArg(fs *flag.FlagSet) (uint16, error) {
	if fs.NArg() != 1 {
		return 0, fmt.Errorf("fujibus net %s: usage: net %s <handle>", fs.Name(), fs.Name())
	}
	n, err := strconv.ParseUint(fs.Arg(0), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q: %w", fs.Arg(0), err)
	}
	return uint16(n), nil
}

func runNetRead(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("net read", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	offset := fs.Uint("offset", 0, "read offset")
	maxBytes := fs.Uint("max-bytes", 512, "max bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	handle, err := handleArg(fs)
	if err != nil {
		return err
	}
	res, err := netdev.ReadChunk(ctx, sess, handle, uint32(*offset), uint16(*maxBytes))
	if err != nil {
		return err
	}
	_, err = stdout.Write(res.Data)
	return err
}

func runNetWrite(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("net write", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	offset := fs.Uint("offset", 0, "write offset")
	in := fs.String("in", "", "input file (default stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus net write: usage: net write [--in file] <handle>")
	}
	handle, err := strconv.ParseUint(fs.Arg(0), 10, 16)
	if err != nil {
		return fmt.Errorf("invalid handle %q: %w", fs.Arg(0), err)
	}

	var data []byte
	if *in != "" {
		data, err = os.ReadFile(*in)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}

	res, err := netdev.WriteChunk(ctx, sess, uint16(handle), uint32(*offset), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d bytes at offset %d\n", res.Written, res.Offset)
	return nil
}

func runNetClose(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("net close", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	handle, err := handleArg(fs)
	if err != nil {
		return err
	}
	return netdev.Close(ctx, sess, handle)
}

func runNetTCP(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("fujibus net tcp: usage: net tcp connect|sendrecv|repl <tcp://host:port[?opts]>")
	}
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("net tcp "+sub, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	waitConnected := fs.Bool("wait-connected", true, "poll Info until X-FujiNet-Connected before returning")
	idleTimeout := fs.Duration("idle-timeout", 500*time.Millisecond, "idle time before a drain stops")
	halfclose := fs.Bool("halfclose", false, "half-close the write side after sending")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus net tcp %s: usage: net tcp %s <tcp://host:port[?opts]>", sub, sub)
	}
	target := fs.Arg(0)

	stream, err := netdev.TCPOpen(ctx, sess, target, *waitConnected, 50*time.Millisecond)
	if err != nil {
		return err
	}
	defer netdev.TCPClose(ctx, sess, stream)

	switch sub {
	case "connect":
		fmt.Fprintf(stdout, "handle=%d\n", stream.Handle)
		return nil
	case "sendrecv":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		if _, err := netdev.TCPSend(ctx, sess, stream, data, 512); err != nil {
			return err
		}
		if *halfclose {
			if err := netdev.TCPHalfClose(ctx, sess, stream); err != nil {
				return err
			}
		}
		reply, err := netdev.TCPDrain(ctx, sess, stream, 512, *idleTimeout)
		if err != nil {
			return err
		}
		_, err = stdout.Write(reply)
		return err
	case "repl":
		return runNetTCPRepl(ctx, sess, stream, *idleTimeout)
	default:
		return fmt.Errorf("fujibus net tcp: unknown subcommand %q", sub)
	}
}

// runNetTCPRepl reads stdin to EOF, sends it to the stream in one TCPSend,
// then drains the reply once and writes it to stdout. It does not work
// line by line and offers no interactive terminal handling.
func runNetTCPRepl(ctx context.Context, sess *bus.Session, stream *netdev.TCPStream, idleTimeout time.Duration) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := netdev.TCPSend(ctx, sess, stream, data, 512); err != nil {
			return err
		}
	}
	reply, err := netdev.TCPDrain(ctx, sess, stream, 512, idleTimeout)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(reply)
	return err
}
