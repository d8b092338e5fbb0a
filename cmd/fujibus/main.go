// Command fujibus is a host-side client for the FujiBus serial protocol:
// one subcommand per subdevice (file, net, clock, disk, bbc, modem), plus
// --discover for locating a network-bridged serial port over mDNS.
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
	"github.com/fujinet-go/fujibus/internal/discovery"
	"github.com/fujinet-go/fujibus/internal/logging"
	"github.com/fujinet-go/fujibus/internal/transport"
)

func main() {
	code, err := run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

// globalFlags is the --port/--baud/--timeout/--debug surface shared by
// every subcommand, with FUJIBUS_* environment fallbacks in the IIOD_ADDR
// style of main.go's getenv-driven default.
type globalFlags struct {
	port      string
	baud      int
	timeout   time.Duration
	debug     bool
	discover  bool
	discoverT time.Duration
	logLevel  logging.Level
	logFormat logging.Format
}

func parseGlobalFlags(fs *flag.FlagSet, args []string, getenv func(string) string) (*globalFlags, []string, error) {
	g := &globalFlags{}

	defaultPort := strings.TrimSpace(getenv("FUJIBUS_PORT"))
	defaultBaud := 115200
	if v := strings.TrimSpace(getenv("FUJIBUS_BAUD")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			defaultBaud = n
		}
	}
	defaultTimeout := 5 * time.Second
	if v := strings.TrimSpace(getenv("FUJIBUS_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			defaultTimeout = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			defaultTimeout = time.Duration(secs) * time.Second
		}
	}
	defaultLevel := logging.Info
	if v := strings.TrimSpace(getenv("FUJIBUS_LOG_LEVEL")); v != "" {
		if lvl, err := logging.ParseLevel(v); err == nil {
			defaultLevel = lvl
		}
	}
	defaultFormat := logging.Text
	if v := strings.TrimSpace(getenv("FUJIBUS_LOG_FORMAT")); v != "" {
		if f, err := logging.ParseFormat(v); err == nil {
			defaultFormat = f
		}
	}

	fs.StringVar(&g.port, "port", defaultPort, "serial device path or host:port")
	fs.StringVar(&g.port, "p", defaultPort, "shorthand for --port")
	fs.IntVar(&g.baud, "baud", defaultBaud, "serial baud rate")
	fs.DurationVar(&g.timeout, "timeout", defaultTimeout, "per-command timeout")
	fs.BoolVar(&g.debug, "debug", false, "dump sent/received packets (shorthand for --log-level debug)")
	fs.BoolVar(&g.discover, "discover", false, "browse for a FujiBus bridge over mDNS instead of using --port")
	fs.DurationVar(&g.discoverT, "discover-timeout", 3*time.Second, "mDNS browse timeout with --discover")
	logLevelStr := fs.String("log-level", defaultLevel.String(), "log level: debug|info|warn|error")
	logFormatStr := fs.String("log-format", defaultFormat.String(), "log format: text|json")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	lvl, err := logging.ParseLevel(*logLevelStr)
	if err != nil {
		return nil, nil, err
	}
	g.logLevel = lvl
	format, err := logging.ParseFormat(*logFormatStr)
	if err != nil {
		return nil, nil, err
	}
	g.logFormat = format
	if g.debug {
		g.logLevel = logging.Debug
	}

	return g, fs.Args(), nil
}

// resolvePort fills in g.port from mDNS discovery when --discover is set,
// choosing the first resolved bridge address. The chosen bridge is logged
// through logging.Default() since this runs before any bus.Session (and
// its own logger) exists.
func resolvePort(ctx context.Context, g *globalFlags) error {
	if !g.discover {
		if g.port == "" {
			return fmt.Errorf("fujibus: --port is required (or set FUJIBUS_PORT, or pass --discover)")
		}
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, g.discoverT)
	defer cancel()
	bridges, err := discovery.Discover(dctx)
	if err != nil {
		return fmt.Errorf("fujibus: discover: %w", err)
	}
	if len(bridges) == 0 {
		return fmt.Errorf("fujibus: discover: no _fujibus._tcp bridges found")
	}
	addr, err := bridges[0].Addr()
	if err != nil {
		return err
	}
	g.port = addr
	logging.Default().Info("discovered fujibus bridge", logging.Field{Key: "addr", Value: addr})
	return nil
}

// openSession opens the configured port and wraps it in a bus.Session
// logging through the process-wide logger installed by run().
func openSession(g *globalFlags, stderr io.Writer) (*bus.Session, error) {
	port, err := transport.OpenSerial(g.port, g.baud)
	if err != nil {
		return nil, err
	}
	sess := bus.New(port)
	sess.Debug = g.logLevel == logging.Debug
	sess.SetLogger(logging.Default())
	return sess, nil
}

// exitStatusFor maps an orchestration error to the CLI's exit code
// convention: 0 success, 1 device-reported error, 2 no response / local
// protocol error.
func exitStatusFor(err error) int {
	if err == nil {
		return 0
	}
	var perr *bus.ProtocolError
	if asProtocolError(err, &perr) {
		return 1
	}
	return 2
}

func asProtocolError(err error, target **bus.ProtocolError) bool {
	for err != nil {
		if pe, ok := err.(*bus.ProtocolError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

type subcommand struct {
	name string
	desc string
	run  func(ctx context.Context, g *globalFlags, args []string, stdout, stderr io.Writer) error
}

func subcommands() []subcommand {
	return []subcommand{
		{"list", "list <fs> <path>", runFileList},
		{"stat", "stat <fs> <path>", runFileStat},
		{"read", "read [--offset N --max-bytes M] <fs> <path>", runFileRead},
		{"read-all", "read-all <fs> <path>", runFileReadAll},
		{"write", "write <fs> <path> <input_file>", runFileWrite},
		{"net", "net open|info|read|write|close|get|head|send|tcp ...", runNet},
		{"clock", "clock get|set|get-format|get-tz|get-timezone|set-timezone|set-timezone-save", runClock},
		{"disk", "disk mount|unmount|info|clear-changed|read-sector|write-sector|create", runDisk},
		{"bbc", "bbc dfs info|cat|read --slot N [name] [--out path]", runBBC},
		{"modem", "modem status|at|dial|drain|write|read|sendrecv|hangup|term", runModem},
	}
}

// run parses the global flags (which must precede the subcommand name,
// e.g. "fujibus --port /dev/ttyUSB0 read myfs /path"), dispatches to the
// matching subcommand with whatever args remain, and maps the result to
// an exit code.
func run(args []string, stdout, stderr io.Writer, getenv func(string) string) (int, error) {
	fs := flag.NewFlagSet("fujibus", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	g, rest, err := parseGlobalFlags(fs, args, getenv)
	if err != nil {
		printUsage(stderr)
		return 2, fmt.Errorf("fujibus: %w", err)
	}
	logging.SetDefault(logging.NewSession(g.logLevel, g.logFormat, stderr))

	if len(rest) == 0 {
		printUsage(stderr)
		return 2, fmt.Errorf("fujibus: no subcommand given")
	}
	name, subArgs := rest[0], rest[1:]

	for _, sc := range subcommands() {
		if sc.name != name {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		if err := resolvePort(ctx, g); err != nil {
			return 2, err
		}

		err := sc.run(ctx, g, subArgs, stdout, stderr)
		return exitStatusFor(err), err
	}

	printUsage(stderr)
	return 2, fmt.Errorf("fujibus: unknown subcommand %q", name)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: fujibus [--port p] [--baud N] [--timeout D] [--debug] [--log-level L] [--log-format F] <subcommand> ...")
	for _, sc := range subcommands() {
		fmt.Fprintf(w, "  %s\n", sc.desc)
	}
}
