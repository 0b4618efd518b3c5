package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestDefaultLayoutMarshal(t *testing.T) {
	frame := &Frame{
		Channel:  0x475A2F36,
		Sequence: 7,
		Command:  CommandID{Major: 0x1234, Minor: 0x05},
		Payload:  []byte{0xAA, 0xBB},
	}

	data, err := DefaultLayout{}.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if len(data) != HeaderSize+2+TrailerSize {
		t.Fatalf("len = %d, want %d", len(data), HeaderSize+2+TrailerSize)
	}
	if data[0] != StartMarker || data[1] != ProtocolVersion {
		t.Errorf("start = 0x%02x 0x%02x, want 0x%02x 0x%02x", data[0], data[1], StartMarker, ProtocolVersion)
	}
	if got := binary.LittleEndian.Uint16(data[2:4]); got != 2 {
		t.Errorf("length = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != frame.Channel {
		t.Errorf("channel = 0x%08x, want 0x%08x", got, frame.Channel)
	}
	if data[8] != 7 {
		t.Errorf("sequence = %d, want 7", data[8])
	}
	if got := binary.LittleEndian.Uint16(data[9:11]); got != 0x1234 {
		t.Errorf("major = 0x%04x, want 0x1234", got)
	}
	if data[11] != 0x05 {
		t.Errorf("minor = 0x%02x, want 0x05", data[11])
	}
	if data[len(data)-1] != EndMarker {
		t.Errorf("end marker = 0x%02x, want 0x%02x", data[len(data)-1], EndMarker)
	}
	if frame.Checksum != CalculateCRC(data[4:HeaderSize+2]) {
		t.Errorf("checksum 0x%04x does not cover channel..payload", frame.Checksum)
	}
}

func TestDefaultLayoutUnmarshal(t *testing.T) {
	valid := func() []byte {
		data, _ := DefaultLayout{}.Marshal(&Frame{
			Channel: 1, Sequence: 2, Command: CommandID{Major: 3, Minor: 4}, Payload: []byte("hello"),
		})
		return data
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
		verify  func(t *testing.T, f *Frame)
	}{
		{
			name: "valid frame",
			data: valid(),
			verify: func(t *testing.T, f *Frame) {
				if f.Channel != 1 || f.Sequence != 2 {
					t.Errorf("channel/seq = %d/%d, want 1/2", f.Channel, f.Sequence)
				}
				if f.Command != (CommandID{Major: 3, Minor: 4}) {
					t.Errorf("command = %s, want 3.4", f.Command)
				}
				if !bytes.Equal(f.Payload, []byte("hello")) {
					t.Errorf("payload = %q, want %q", f.Payload, "hello")
				}
			},
		},
		{
			name: "corrupted payload",
			data: func() []byte {
				d := valid()
				d[HeaderSize] ^= 0xFF
				return d
			}(),
			wantErr: true,
		},
		{
			name: "bad end marker",
			data: func() []byte {
				d := valid()
				d[len(d)-1] = 0x00
				return d
			}(),
			wantErr: true,
		},
		{
			name:    "truncated",
			data:    valid()[:HeaderSize+2],
			wantErr: true,
		},
		{
			name: "wrong version",
			data: func() []byte {
				d := valid()
				d[1] = 0x01
				return d
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DefaultLayout{}.Unmarshal(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.verify != nil {
				tt.verify(t, f)
			}
		})
	}
}

func TestUnmarshalChecksumErrorIsWrapped(t *testing.T) {
	data, _ := DefaultLayout{}.Marshal(&Frame{Payload: []byte{1, 2, 3}})
	data[HeaderSize+1] ^= 0x10

	_, err := DefaultLayout{}.Unmarshal(data)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("Unmarshal() error = %v, want ErrChecksum", err)
	}
}

func TestCodecEncodeChunks(t *testing.T) {
	codec := NewCodec(DefaultLayout{}, 20)
	payload := bytes.Repeat([]byte{0x5A}, 30) // 45 bytes on the wire

	chunks, err := codec.Encode(9, 1, CommandID{Major: 1, Minor: 1}, payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 20 {
			t.Errorf("chunk %d is %d bytes, exceeds MTU", i, len(c))
		}
	}

	joined := bytes.Join(chunks, nil)
	frame, err := DefaultLayout{}.Unmarshal(joined)
	if err != nil {
		t.Fatalf("Unmarshal(joined) error = %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Error("joined chunks do not decode to the original payload")
	}
}

func TestCodecEncodeTooLarge(t *testing.T) {
	codec := NewCodec(nil, 0)
	_, err := codec.Encode(1, 1, CommandID{}, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrEncoding) {
		t.Errorf("Encode() error = %v, want ErrEncoding", err)
	}
	if codec.MTU() != DefaultMTU {
		t.Errorf("MTU() = %d, want %d", codec.MTU(), DefaultMTU)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		size int
		data []byte
		want []int
	}{
		{name: "empty", size: 4, data: nil, want: []int{}},
		{name: "exact", size: 4, data: make([]byte, 8), want: []int{4, 4}},
		{name: "remainder", size: 4, data: make([]byte, 9), want: []int{4, 4, 1}},
		{name: "smaller than size", size: 20, data: make([]byte, 3), want: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.data, tt.size)
			if len(chunks) != len(tt.want) {
				t.Fatalf("Split() = %d chunks, want %d", len(chunks), len(tt.want))
			}
			for i, c := range chunks {
				if len(c) != tt.want[i] {
					t.Errorf("chunk %d len = %d, want %d", i, len(c), tt.want[i])
				}
			}
		})
	}
}

func TestCalculateCRC(t *testing.T) {
	// CRC-16/CCITT-FALSE check value
	if got := CalculateCRC([]byte("123456789")); got != 0x29B1 {
		t.Errorf("CalculateCRC(123456789) = 0x%04x, want 0x29b1", got)
	}
}
