package protocol

import "fmt"

// DefaultMTU is the ATT payload size every BLE 4.0 link supports
const DefaultMTU = 20

// Codec turns frames into MTU-sized chunks for one connection
type Codec struct {
	layout Layout
	mtu    int
}

// NewCodec creates a codec for the given layout and chunk size.
// A non-positive mtu selects DefaultMTU.
func NewCodec(layout Layout, mtu int) *Codec {
	if layout == nil {
		layout = DefaultLayout{}
	}
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &Codec{layout: layout, mtu: mtu}
}

// Layout returns the codec's wire layout
func (c *Codec) Layout() Layout {
	return c.layout
}

// MTU returns the maximum chunk size
func (c *Codec) MTU() int {
	return c.mtu
}

// Encode builds a frame and splits it into ordered chunks of at most MTU bytes
func (c *Codec) Encode(channel uint32, sequence uint8, cmd CommandID, payload []byte) ([][]byte, error) {
	frame := &Frame{
		Channel:  channel,
		Sequence: sequence,
		Command:  cmd,
		Payload:  payload,
	}

	data, err := c.layout.Marshal(frame)
	if err != nil {
		return nil, NewEncodingError(fmt.Sprintf("failed to encode frame for command %s", cmd), err)
	}

	return Split(data, c.mtu), nil
}

// Split cuts data into consecutive chunks of at most size bytes
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultMTU
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > size {
		chunks = append(chunks, data[:size:size])
		data = data[size:]
	}
	if len(data) > 0 {
		chunks = append(chunks, data)
	}
	return chunks
}
