package protocol

import (
	"encoding/binary"
	"fmt"
)

// Default layout constants
const (
	StartMarker     = 0x02
	ProtocolVersion = 0xFD
	EndMarker       = 0x03

	HeaderSize     = 12 // Start + Version + Length(2) + Channel(4) + Seq + Major(2) + Minor
	TrailerSize    = 3  // CRC(2) + End
	MaxPayloadSize = 1024
)

// DefaultLayout is the frame layout shipped with this module
type DefaultLayout struct{}

// HeaderSize implements Layout
func (DefaultLayout) HeaderSize() int { return HeaderSize }

// Overhead implements Layout
func (DefaultLayout) Overhead() int { return HeaderSize + TrailerSize }

// MaxPayload implements Layout
func (DefaultLayout) MaxPayload() int { return MaxPayloadSize }

// IsFrameStart implements Layout
func (DefaultLayout) IsFrameStart(chunk []byte) bool {
	return len(chunk) >= 2 && chunk[0] == StartMarker && chunk[1] == ProtocolVersion
}

// FrameLength implements Layout
func (l DefaultLayout) FrameLength(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, fmt.Errorf("header too short: %d bytes (minimum %d)", len(header), HeaderSize)
	}
	if !l.IsFrameStart(header) {
		return 0, fmt.Errorf("invalid frame start: 0x%02x 0x%02x", header[0], header[1])
	}
	payloadLen := int(binary.LittleEndian.Uint16(header[2:4]))
	if payloadLen > MaxPayloadSize {
		return 0, fmt.Errorf("declared payload too large: %d bytes (max %d)", payloadLen, MaxPayloadSize)
	}
	return HeaderSize + payloadLen + TrailerSize, nil
}

// Marshal implements Layout
func (DefaultLayout) Marshal(f *Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(f.Payload), MaxPayloadSize)
	}

	n := HeaderSize + len(f.Payload)
	data := make([]byte, n+TrailerSize)

	data[0] = StartMarker
	data[1] = ProtocolVersion
	binary.LittleEndian.PutUint16(data[2:4], uint16(len(f.Payload)))
	binary.LittleEndian.PutUint32(data[4:8], f.Channel)
	data[8] = f.Sequence
	binary.LittleEndian.PutUint16(data[9:11], f.Command.Major)
	data[11] = f.Command.Minor
	copy(data[HeaderSize:], f.Payload)

	// Checksum covers channel, sequence, command and payload
	f.Checksum = CalculateCRC(data[4:n])
	binary.BigEndian.PutUint16(data[n:n+2], f.Checksum)
	data[n+2] = EndMarker

	return data, nil
}

// Unmarshal implements Layout
func (l DefaultLayout) Unmarshal(data []byte) (*Frame, error) {
	total, err := l.FrameLength(data)
	if err != nil {
		return nil, err
	}
	if len(data) != total {
		return nil, fmt.Errorf("frame length mismatch: have %d bytes, header declares %d", len(data), total)
	}
	if data[total-1] != EndMarker {
		return nil, fmt.Errorf("invalid end marker: 0x%02x (expected 0x%02x)", data[total-1], EndMarker)
	}

	n := total - TrailerSize
	got := binary.BigEndian.Uint16(data[n : n+2])
	want := CalculateCRC(data[4:n])
	if got != want {
		return nil, fmt.Errorf("%w: expected 0x%04x, got 0x%04x", ErrChecksum, want, got)
	}

	payload := make([]byte, n-HeaderSize)
	copy(payload, data[HeaderSize:n])

	return &Frame{
		Channel:  binary.LittleEndian.Uint32(data[4:8]),
		Sequence: data[8],
		Command: CommandID{
			Major: binary.LittleEndian.Uint16(data[9:11]),
			Minor: data[11],
		},
		Payload:  payload,
		Checksum: got,
	}, nil
}
