// Package bus implements the FujiBus session layer: sending a request,
// pumping the transport for SLIP frames, parsing them into packets, and
// demultiplexing responses against whichever call is waiting for them.
package bus

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fujinet-go/fujibus/internal/logging"
	"github.com/fujinet-go/fujibus/internal/slip"
	"github.com/fujinet-go/fujibus/internal/transport"
	"github.com/fujinet-go/fujibus/internal/wire"
)

type stashKey struct {
	device  uint8
	command uint8
}

// Session owns one transport.Port and the framing/demultiplexing state
// layered on top of it. A Session is not safe for concurrent use; the bus
// protocol is single-threaded and cooperative by design.
type Session struct {
	port   transport.Port
	framer slip.Framer
	stash  map[stashKey][]*wire.Packet

	// Debug, when true, emits packet-dump log lines at Debug level.
	Debug bool

	logger logging.Logger
}

// New wraps port in a Session ready to send and receive FujiBus packets.
// The session logs through logging.Default() until SetLogger installs a
// more specific one.
func New(port transport.Port) *Session {
	return &Session{
		port:   port,
		stash:  make(map[stashKey][]*wire.Packet),
		logger: logging.Default(),
	}
}

// SetLogger installs the logger used for debug packet dumps.
func (s *Session) SetLogger(l logging.Logger) {
	if l != nil {
		s.logger = l
	}
}

func (s *Session) logf(direction string, device, command uint8, payloadLen int) {
	if !s.Debug {
		return
	}
	s.logger.Debug("fujibus packet",
		logging.Field{Key: "direction", Value: direction},
		logging.Field{Key: "device", Value: fmt.Sprintf("0x%02X", device)},
		logging.Field{Key: "command", Value: fmt.Sprintf("0x%02X", command)},
		logging.Field{Key: "payload_bytes", Value: payloadLen},
	)
}

// Close releases the underlying transport.
func (s *Session) Close() error {
	return s.port.Close()
}

// Send builds a request packet with no descriptor params and writes it to
// the transport.
func (s *Session) Send(device, command uint8, payload []byte) error {
	framed := wire.Build(device, command, payload)
	s.logf("->", device, command, len(payload))
	_, err := s.port.Write(framed)
	if err != nil {
		return fmt.Errorf("bus: write: %w", err)
	}
	return nil
}

func (s *Session) stashPacket(pkt *wire.Packet) {
	key := stashKey{pkt.Device, pkt.Command}
	s.stash[key] = append(s.stash[key], pkt)
}

func (s *Session) pop(device, command uint8) *wire.Packet {
	key := stashKey{device, command}
	q := s.stash[key]
	if len(q) == 0 {
		return nil
	}
	pkt := q[0]
	if len(q) == 1 {
		delete(s.stash, key)
	} else {
		s.stash[key] = q[1:]
	}
	return pkt
}

// receiveOne reads and parses a single packet from the transport, or
// returns (nil, nil) if ctx is done before one arrives. Unparseable or
// empty SLIP frames, and packets whose checksum does not match, are
// silently skipped, matching fujibus.py's tolerance of noise on the wire.
func (s *Session) receiveOne(ctx context.Context) (*wire.Packet, error) {
	buf := make([]byte, 256)
	for {
		if frame, ok := s.framer.Next(); ok {
			decoded, err := slip.Decode(frame)
			if err != nil || len(decoded) == 0 {
				continue
			}
			pkt, err := wire.Parse(decoded)
			if err != nil {
				if s.Debug {
					s.logger.Debug("fujibus: ignoring unparseable frame", logging.Field{Key: "error", Value: err})
				}
				continue
			}
			if !pkt.ChecksumOK {
				if s.Debug {
					s.logger.Debug("fujibus: dropping packet with bad checksum", logging.Field{Key: "device", Value: fmt.Sprintf("0x%02X", pkt.Device)})
				}
				continue
			}
			s.logf("<-", pkt.Device, pkt.Command, len(pkt.Payload))
			return pkt, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil
		default:
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			s.framer.Feed(buf[:n])
			continue
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return nil, fmt.Errorf("bus: read: %w", err)
		}
	}
}

// SendCommandExpect sends (device, command, payload) and waits for a
// response matching (expectDevice, expectCommand), preferring an
// already-stashed match. Any other packet received while waiting is
// stashed under its own (device, command) key for a future call. Returns
// (nil, nil) if ctx expires with no match; the stash is left intact so the
// caller can retry.
func (s *Session) SendCommandExpect(ctx context.Context, device, command uint8, payload []byte, expectDevice, expectCommand uint8) (*wire.Packet, error) {
	if hit := s.pop(expectDevice, expectCommand); hit != nil {
		return hit, nil
	}

	if err := s.Send(device, command, payload); err != nil {
		return nil, err
	}

	for {
		if hit := s.pop(expectDevice, expectCommand); hit != nil {
			return hit, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil
		default:
		}

		pkt, err := s.receiveOne(ctx)
		if err != nil {
			return nil, err
		}
		if pkt == nil {
			return nil, nil
		}
		if pkt.Device == expectDevice && pkt.Command == expectCommand {
			return pkt, nil
		}
		s.stashPacket(pkt)
	}
}
