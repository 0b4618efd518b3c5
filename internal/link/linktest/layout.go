package linktest

import (
	"encoding/binary"
	"fmt"

	"github.com/muurk/mowerble/internal/protocol"
)

// CompactLayout is a second wire format: a single start byte, big endian
// fields and an 8-bit additive checksum, with no end marker. It shares
// nothing with protocol.DefaultLayout, so a peer using one cannot read
// the other.
//
//	[0]      0xA5
//	[1:3]    payload length  uint16 BE
//	[3:7]    channel id      uint32 BE
//	[7]      sequence
//	[8:10]   command major   uint16 BE
//	[10]     command minor
//	[11:n]   payload
//	[n]      sum of bytes [1:n]
type CompactLayout struct{}

// Compact layout constants
const (
	CompactStart      = 0xA5
	CompactHeaderSize = 11
	CompactMaxPayload = 255
)

var _ protocol.Layout = CompactLayout{}

// HeaderSize implements protocol.Layout
func (CompactLayout) HeaderSize() int { return CompactHeaderSize }

// Overhead implements protocol.Layout
func (CompactLayout) Overhead() int { return CompactHeaderSize + 1 }

// MaxPayload implements protocol.Layout
func (CompactLayout) MaxPayload() int { return CompactMaxPayload }

// IsFrameStart implements protocol.Layout
func (CompactLayout) IsFrameStart(chunk []byte) bool {
	return len(chunk) > 0 && chunk[0] == CompactStart
}

// FrameLength implements protocol.Layout
func (l CompactLayout) FrameLength(header []byte) (int, error) {
	if len(header) < CompactHeaderSize || header[0] != CompactStart {
		return 0, fmt.Errorf("invalid compact header")
	}
	n := int(binary.BigEndian.Uint16(header[1:3]))
	if n > CompactMaxPayload {
		return 0, fmt.Errorf("declared payload too large: %d bytes", n)
	}
	return l.Overhead() + n, nil
}

// Marshal implements protocol.Layout
func (CompactLayout) Marshal(f *protocol.Frame) ([]byte, error) {
	if len(f.Payload) > CompactMaxPayload {
		return nil, fmt.Errorf("payload too large: %d bytes", len(f.Payload))
	}
	data := make([]byte, CompactHeaderSize, CompactHeaderSize+len(f.Payload)+1)
	data[0] = CompactStart
	binary.BigEndian.PutUint16(data[1:3], uint16(len(f.Payload)))
	binary.BigEndian.PutUint32(data[3:7], f.Channel)
	data[7] = f.Sequence
	binary.BigEndian.PutUint16(data[8:10], f.Command.Major)
	data[10] = f.Command.Minor
	data = append(data, f.Payload...)

	sum := sum8(data[1:])
	f.Checksum = uint16(sum)
	return append(data, sum), nil
}

// Unmarshal implements protocol.Layout
func (l CompactLayout) Unmarshal(data []byte) (*protocol.Frame, error) {
	total, err := l.FrameLength(data)
	if err != nil {
		return nil, err
	}
	if len(data) != total {
		return nil, fmt.Errorf("frame length mismatch: have %d bytes, header declares %d", len(data), total)
	}
	n := total - 1
	if got, want := data[n], sum8(data[1:n]); got != want {
		return nil, fmt.Errorf("%w: expected 0x%02x, got 0x%02x", protocol.ErrChecksum, want, got)
	}
	return &protocol.Frame{
		Channel:  binary.BigEndian.Uint32(data[3:7]),
		Sequence: data[7],
		Command: protocol.CommandID{
			Major: binary.BigEndian.Uint16(data[8:10]),
			Minor: data[10],
		},
		Payload:  append([]byte(nil), data[CompactHeaderSize:n]...),
		Checksum: uint16(data[n]),
	}, nil
}

func sum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
