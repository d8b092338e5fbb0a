// Package transport adapts the byte streams a bus.Session can ride on: a
// real serial port or a local pseudo-terminal pair, both behind one small
// Port interface so the session never depends on the concrete device.
package transport

import (
	"fmt"
	"time"

	goserial "github.com/daedaluz/goserial"
)

// Port is the byte stream a bus.Session reads requests and responses
// from. Every read carries its own short timeout so the session can poll
// an overall deadline instead of blocking indefinitely.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(d time.Duration)
}

// DefaultReadTimeout is the per-read poll interval recommended by the
// transport adapter design: short enough that a session's overall deadline
// stays responsive, long enough not to busy-loop.
const DefaultReadTimeout = 10 * time.Millisecond

// SerialPort is a real UART opened in raw mode at a fixed baud rate.
type SerialPort struct {
	port *goserial.Port
}

// OpenSerial opens name (e.g. "/dev/ttyUSB0") at baud, puts it in raw mode,
// and sets a DefaultReadTimeout poll interval.
func OpenSerial(name string, baud int) (*SerialPort, error) {
	opts := goserial.NewOptions().SetReadTimeout(DefaultReadTimeout)
	p, err := goserial.Open(name, opts)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", name, err)
	}

	if err := p.MakeRaw(); err != nil {
		p.Close()
		return nil, fmt.Errorf("transport: make raw: %w", err)
	}

	attrs, err := p.GetAttr2()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("transport: get attr: %w", err)
	}
	attrs.SetCustomSpeed(uint32(baud))
	if err := p.SetAttr2(goserial.TCSANOW, attrs); err != nil {
		p.Close()
		return nil, fmt.Errorf("transport: set baud %d: %w", baud, err)
	}

	return &SerialPort{port: p}, nil
}

func (s *SerialPort) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *SerialPort) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *SerialPort) Close() error                { return s.port.Close() }
func (s *SerialPort) SetReadTimeout(d time.Duration) {
	s.port.SetReadTimeout(d)
}

// PTYPort is one end of a local pseudo-terminal pair, used to exercise the
// bus against a fake device with no real hardware attached.
type PTYPort struct {
	port *goserial.Port
}

// OpenPTYPair allocates a PTY master/slave pair, raw-moded, each wrapped as
// a Port. The slave end is what a fake device process would open by path;
// the master end is what the bus session drives.
func OpenPTYPair() (master, slave *PTYPort, err error) {
	m, s, err := goserial.OpenPTY(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: open pty: %w", err)
	}
	m.SetReadTimeout(DefaultReadTimeout)
	s.SetReadTimeout(DefaultReadTimeout)
	return &PTYPort{port: m}, &PTYPort{port: s}, nil
}

func (p *PTYPort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *PTYPort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *PTYPort) Close() error                { return p.port.Close() }
func (p *PTYPort) SetReadTimeout(d time.Duration) {
	p.port.SetReadTimeout(d)
}
