package protocol

import (
	"fmt"
	"time"
)

// CommandID identifies a command on the wire
type CommandID struct {
	Major uint16
	Minor uint8
}

func (c CommandID) String() string {
	return fmt.Sprintf("%d.%d", c.Major, c.Minor)
}

// Frame is one complete application-layer message
type Frame struct {
	Channel  uint32
	Sequence uint8
	Command  CommandID
	Payload  []byte
	Checksum uint16

	// Received is set by the Reassembler when the frame completes
	Received time.Time
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{channel=0x%08x, seq=%d, cmd=%s, len=%d, crc=0x%04x}",
		f.Channel, f.Sequence, f.Command, len(f.Payload), f.Checksum)
}

// Layout is the byte-level strategy used to put frames on the wire.
//
// Implementations must be stateless; a single value is shared by the encoder
// and every reassembler of a connection.
type Layout interface {
	// HeaderSize is the number of leading bytes FrameLength needs.
	HeaderSize() int

	// Overhead is the number of non-payload bytes in an encoded frame.
	Overhead() int

	// MaxPayload is the largest payload a single frame may carry.
	MaxPayload() int

	// IsFrameStart reports whether chunk begins a new frame.
	IsFrameStart(chunk []byte) bool

	// FrameLength returns the total encoded length announced by header.
	FrameLength(header []byte) (int, error)

	// Marshal encodes f, filling in f.Checksum.
	Marshal(f *Frame) ([]byte, error)

	// Unmarshal decodes one complete encoded frame and verifies its
	// checksum. A checksum mismatch returns ErrChecksum.
	Unmarshal(data []byte) (*Frame, error)
}
