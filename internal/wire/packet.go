package wire

import (
	"fmt"

	"github.com/fujinet-go/fujibus/internal/slip"
)

// HeaderSize is the fixed 6-byte header: device, command, length(u16le),
// checksum, descr.
const HeaderSize = 6

// Descriptor byte layout: low 3 bits select an entry in these tables, bit
// 0x80 is the continuation flag chaining another descriptor byte.
var (
	fieldSizeTable = [8]int{0, 1, 1, 1, 1, 2, 2, 4}
	numFieldsTable = [8]int{0, 1, 2, 3, 4, 1, 2, 1}
)

const descrContinue = 0x80

// Packet is a decoded FujiBus request or response: the fixed header plus
// the variable-length descriptor-encoded parameter list and payload.
type Packet struct {
	Device   uint8
	Command  uint8
	Length   uint16 // total encoded length, header included
	Checksum uint8
	Descr    uint8
	Params   []uint64
	Payload  []byte

	ChecksumComputed uint8
	ChecksumOK       bool
}

// Checksum folds a byte slice into the FujiBus 8-bit checksum: a 16-bit
// running sum, repeatedly folded into its low byte.
func Checksum(data []byte) uint8 {
	var chk uint32
	for _, b := range data {
		chk += uint32(b)
		chk = (chk >> 8) + (chk & 0xFF)
	}
	return uint8(chk & 0xFF)
}

// Build assembles a packet with no parameters and returns it SLIP-framed,
// ready to write straight to the transport. Descr is left at 0 (no params)
// for callers that only need a bare device/command/payload request.
func Build(device, command uint8, payload []byte) []byte {
	return BuildWithParams(device, command, nil, payload)
}

// BuildWithParams assembles a packet whose descriptor encodes one or more
// fixed-width parameters ahead of the payload, then SLIP-frames it. Each
// Param's Width must be 1, 2, or 4; consecutive 1-byte params are packed
// into a single descriptor byte up to four at a time (matching the
// descriptor table's 1/2/3/4-field single-byte forms), after which a
// continuation byte is emitted.
func BuildWithParams(device, command uint8, params []Param, payload []byte) []byte {
	descrBytes, paramBytes := encodeParams(params)

	length := HeaderSize + len(descrBytes) - 1 + len(paramBytes) + len(payload)
	pkt := make([]byte, 0, length)
	pkt = WriteU8(pkt, device)
	pkt = WriteU8(pkt, command)
	pkt = WriteU16(pkt, uint16(length))
	pkt = WriteU8(pkt, 0) // checksum placeholder
	pkt = append(pkt, descrBytes...)
	pkt = append(pkt, paramBytes...)
	pkt = append(pkt, payload...)

	pkt[4] = Checksum(pkt)
	return slip.Encode(pkt)
}

// Param is one descriptor-encoded fixed-width field: Width is 1, 2, or 4
// bytes and Value holds it right-justified.
type Param struct {
	Width int
	Value uint64
}

// widthToSingleFieldDesc maps a byte width to the field_desc table index used
// for a single field of that width (NUM_FIELDS_TABLE index 1..4 map to
// width 1; indices 5..6 to width 2; index 7 to width 4).
func widthToSingleFieldDesc(width int) (uint8, bool) {
	switch width {
	case 1:
		return 1, true
	case 2:
		return 5, true
	case 4:
		return 7, true
	default:
		return 0, false
	}
}

// encodeParams packs params into one or more descriptor bytes. Consecutive
// 1-byte-wide params are coalesced into the multi-field descriptor forms
// (2, 3, or 4 one-byte fields per descriptor byte); 2-byte and 4-byte
// params each take their own descriptor byte. The last descriptor byte in
// the chain has its continuation bit clear.
func encodeParams(params []Param) (descr []byte, body []byte) {
	i := 0
	for i < len(params) {
		p := params[i]
		if p.Width == 1 {
			run := 1
			for run < 4 && i+run < len(params) && params[i+run].Width == 1 {
				run++
			}
			var fieldDesc uint8
			switch run {
			case 1:
				fieldDesc = 1
			case 2:
				fieldDesc = 2
			case 3:
				fieldDesc = 3
			default:
				fieldDesc = 4
				run = 4
			}
			descr = append(descr, fieldDesc)
			for j := 0; j < run; j++ {
				body = append(body, uint8(params[i+j].Value))
			}
			i += run
			continue
		}

		fieldDesc, ok := widthToSingleFieldDesc(p.Width)
		if !ok {
			fieldDesc = 1
			p.Width = 1
		}
		descr = append(descr, fieldDesc)
		for b := 0; b < p.Width; b++ {
			body = append(body, uint8(p.Value>>(8*b)))
		}
		i++
	}

	if len(descr) == 0 {
		return []byte{0}, nil
	}
	for idx := range descr[:len(descr)-1] {
		descr[idx] |= descrContinue
	}
	return descr, body
}

// Parse decodes a complete FujiBus packet from bytes already unescaped by
// slip.Decode. It returns an error
// for a truncated header, a length field that disagrees with the decoded
// buffer, or a descriptor/param chain that runs past the buffer. A checksum
// mismatch is reported via ChecksumOK rather than an error, so callers can
// decide whether to treat corrupt-but-parseable packets as fatal.
func Parse(decoded []byte) (*Packet, error) {
	if len(decoded) < HeaderSize {
		return nil, fmt.Errorf("wire: packet shorter than header (%d bytes)", len(decoded))
	}

	device, _, _ := ReadU8(decoded, 0)
	command, _, _ := ReadU8(decoded, 1)
	length, _, _ := ReadU16(decoded, 2)
	checksum, _, _ := ReadU8(decoded, 4)
	descr, _, _ := ReadU8(decoded, 5)

	if int(length) != len(decoded) {
		return nil, fmt.Errorf("wire: header length %d does not match frame length %d", length, len(decoded))
	}

	zeroed := append([]byte(nil), decoded...)
	zeroed[4] = 0
	computed := Checksum(zeroed)

	off := HeaderSize
	descrBytes := []uint8{descr}
	for descrBytes[len(descrBytes)-1]&descrContinue != 0 {
		if off >= len(decoded) {
			return nil, fmt.Errorf("wire: descriptor chain runs past end of packet")
		}
		descrBytes = append(descrBytes, decoded[off])
		off++
	}

	var params []uint64
	for _, d := range descrBytes {
		fieldDesc := d & 0x07
		count := numFieldsTable[fieldDesc]
		size := fieldSizeTable[fieldDesc]
		for f := 0; f < count; f++ {
			if off+size > len(decoded) {
				return nil, fmt.Errorf("wire: param field runs past end of packet")
			}
			var v uint64
			for b := 0; b < size; b++ {
				v |= uint64(decoded[off+b]) << (8 * b)
			}
			params = append(params, v)
			off += size
		}
	}

	return &Packet{
		Device:           device,
		Command:          command,
		Length:           length,
		Checksum:         checksum,
		Descr:            descr,
		Params:           params,
		Payload:          decoded[off:],
		ChecksumComputed: computed,
		ChecksumOK:       computed == checksum,
	}, nil
}
