package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fujinet-go/fujibus/internal/bus"
	"github.com/fujinet-go/fujibus/internal/devices/modem"
)

func runModem(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("fujibus modem: usage: modem status|at|dial|drain|write|read|sendrecv|hangup|term ...")
	}
	sub, rest := args[0], args[1:]

	sess, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	switch sub {
	case "status":
		return modemStatus(ctx, sess, stdout)
	case "at":
		return modemAt(ctx, sess, rest, stdout)
	case "dial":
		return modemDial(ctx, sess, rest, stdout)
	case "drain":
		return modemDrain(ctx, sess, rest, stdout)
	case "write":
		return modemWrite(ctx, sess, rest, stdout)
	case "read":
		return modemRead(ctx, sess, rest, stdout)
	case "sendrecv":
		return modemSendRecv(ctx, sess, rest, stdout)
	case "hangup":
		return modem.Hangup(ctx, sess)
	case "term":
		return modemTerm(ctx, sess, rest, stdout)
	default:
		return fmt.Errorf("fujibus modem: unknown subcommand %q", sub)
	}
}

func modemStatus(ctx context.Context, sess *bus.Session, stdout io.Writer) error {
	st, err := modem.Status(ctx, sess)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cmd_mode=%t connected=%t listen_port=%d host_rx_avail=%d host_write_cursor=%d net_read_cursor=%d net_write_cursor=%d\n",
		st.CmdMode, st.Connected, st.ListenPort, st.HostRxAvail, st.HostWriteCursor, st.NetReadCursor, st.NetWriteCursor)
	return nil
}

func modemAt(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("modem at", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	maxReply := fs.Int("max-reply", 4096, "max reply bytes to accumulate")
	idle := fs.Duration("idle-timeout", 200*time.Millisecond, "idle time before giving up on more reply")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus modem at: usage: modem at <command>")
	}
	cur, err := modem.NewCursor(ctx, sess)
	if err != nil {
		return err
	}
	out, err := modem.SendATCommand(ctx, sess, cur, fs.Arg(0), *maxReply, *idle)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

func modemDial(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("modem dial", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	timeout := fs.Duration("timeout", 30*time.Second, "time to wait for CONNECT/NO CARRIER")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fujibus modem dial: usage: modem dial <host:port>")
	}
	cur, err := modem.NewCursor(ctx, sess)
	if err != nil {
		return err
	}
	out, err := modem.Dial(ctx, sess, cur, fs.Arg(0), time.Now().Add(*timeout))
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

func modemDrain(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("modem drain", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	maxTotal := fs.Int("max-total", 4096, "max bytes to accumulate")
	idle := fs.Duration("idle-timeout", 200*time.Millisecond, "idle time before stopping")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cur, err := modem.NewCursor(ctx, sess)
	if err != nil {
		return err
	}
	out, err := modem.Drain(ctx, sess, cur, *maxTotal, *idle)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

func modemWrite(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("modem write", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	in := fs.String("in", "", "input file (default stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var data []byte
	var err error
	if *in != "" {
		data, err = readFileArg(*in)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	cur, err := modem.NewCursor(ctx, sess)
	if err != nil {
		return err
	}
	res, err := modem.Write(ctx, sess, cur.Write, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d bytes at offset %d\n", res.Written, res.Offset)
	return nil
}

func modemRead(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("modem read", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	offset := fs.Uint("offset", 0, "read offset")
	maxBytes := fs.Uint("max-bytes", 512, "max bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := modem.Read(ctx, sess, uint32(*offset), uint16(*maxBytes))
	if err != nil {
		return err
	}
	_, err = stdout.Write(res.Data)
	return err
}

func modemSendRecv(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("modem sendrecv", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	timeout := fs.Duration("timeout", 5*time.Second, "time to wait for the reply to fill")
	in := fs.String("in", "", "input file (default stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var data []byte
	var err error
	if *in != "" {
		data, err = readFileArg(*in)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	cur, err := modem.NewCursor(ctx, sess)
	if err != nil {
		return err
	}
	out, err := modem.SendRecv(ctx, sess, cur, data, time.Now().Add(*timeout))
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

// modemTerm relays stdin to the modem and drained output to stdout once;
// a full raw-terminal interactive loop is out of scope, only the
// write/drain data contract matters.
func modemTerm(ctx context.Context, sess *bus.Session, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("modem term", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	idle := fs.Duration("idle-timeout", 300*time.Millisecond, "idle time before a round stops")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	cur, err := modem.NewCursor(ctx, sess)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		wr, err := modem.Write(ctx, sess, cur.Write, data)
		if err != nil {
			return err
		}
		cur.Write += uint32(wr.Written)
	}
	out, err := modem.Drain(ctx, sess, cur, 1<<20, *idle)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}
