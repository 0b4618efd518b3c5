// Package linktest provides in-memory implementations of the link GATT
// interfaces that speak the mower frame protocol, for tests.
package linktest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/muurk/mowerble/internal/link"
	"github.com/muurk/mowerble/internal/protocol"
)

// Device is a static link.Device
type Device struct {
	Addr       string
	DeviceName string
}

// Address implements link.Device
func (d Device) Address() string { return d.Addr }

// Name implements link.Device
func (d Device) Name() string { return d.DeviceName }

// Scanner resolves addresses from a fixed list
type Scanner struct {
	Devices []link.Device
}

// FindDeviceByAddress implements link.Scanner
func (s *Scanner) FindDeviceByAddress(ctx context.Context, address string) (link.Device, error) {
	for _, d := range s.Devices {
		if strings.EqualFold(d.Address(), address) {
			return d, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", link.ErrDeviceNotFound, address)
}

// Handler is called for every complete request frame written by the
// client. It answers through p.Reply or p.Notify, or not at all.
type Handler func(p *Peripheral, req *protocol.Frame)

// Transport hands out in-memory peripherals
type Transport struct {
	// Handler answers requests. It may be replaced between connections.
	Handler Handler
	// MTU reported by every peripheral. Zero means protocol.DefaultMTU.
	MTU int
	// Layout spoken by every peripheral. Nil means protocol.DefaultLayout.
	Layout protocol.Layout
	// ConnectErr, when set, fails Connect.
	ConnectErr error
	// OmitNotify leaves the notify characteristic out of discovery.
	OmitNotify bool

	mu       sync.Mutex
	periphs  []*Peripheral
	frames   []*protocol.Frame
	connects int
}

// NewTransport creates a transport whose peripherals answer with h
func NewTransport(h Handler) *Transport {
	return &Transport{Handler: h}
}

// Connect implements link.Transport
func (t *Transport) Connect(ctx context.Context, device link.Device) (link.Peripheral, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connects++
	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := &Peripheral{
		transport:   t,
		device:      device,
		mtu:         t.MTU,
		codec:       protocol.NewCodec(t.Layout, t.MTU),
		reassembler: protocol.NewReassembler(t.Layout, nil),
	}
	p.write = &characteristic{uuid: link.WriteUUID, p: p, writable: true}
	p.notify = &characteristic{uuid: link.NotifyUUID, p: p}
	t.periphs = append(t.periphs, p)
	return p, nil
}

// Connects returns how many times Connect was called
func (t *Transport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// Last returns the most recently created peripheral, or nil
func (t *Transport) Last() *Peripheral {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.periphs) == 0 {
		return nil
	}
	return t.periphs[len(t.periphs)-1]
}

// Frames returns every request frame received across all peripherals
func (t *Transport) Frames() []*protocol.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*protocol.Frame(nil), t.frames...)
}

func (t *Transport) record(f *protocol.Frame) Handler {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, f)
	return t.Handler
}

// ErrLinkDown is returned by writes after the peripheral disconnected
var ErrLinkDown = errors.New("linktest: link down")

// Peripheral is an in-memory link.Peripheral
type Peripheral struct {
	transport *Transport
	device    link.Device
	mtu       int
	codec     *protocol.Codec

	mu           sync.Mutex
	reassembler  *protocol.Reassembler
	write        *characteristic
	notify       *characteristic
	onDisconnect func(error)
	down         bool
	chunks       int

	// DisconnectErr is returned by Disconnect when set
	DisconnectErr error
}

// Characteristics implements link.Peripheral
func (p *Peripheral) Characteristics(ctx context.Context, service string, uuids ...string) (map[string]link.Characteristic, error) {
	if !strings.EqualFold(service, link.ServiceUUID) {
		return nil, fmt.Errorf("linktest: no service %s", service)
	}
	out := make(map[string]link.Characteristic)
	for _, u := range uuids {
		switch strings.ToLower(u) {
		case link.WriteUUID:
			out[link.WriteUUID] = p.write
		case link.NotifyUUID:
			if !p.transport.OmitNotify {
				out[link.NotifyUUID] = p.notify
			}
		}
	}
	return out, nil
}

// MTU implements link.Peripheral
func (p *Peripheral) MTU() int { return p.mtu }

// OnDisconnect implements link.Peripheral
func (p *Peripheral) OnDisconnect(fn func(error)) {
	p.mu.Lock()
	p.onDisconnect = fn
	p.mu.Unlock()
}

// Disconnect implements link.Peripheral
func (p *Peripheral) Disconnect() error {
	p.mu.Lock()
	p.down = true
	p.mu.Unlock()
	return p.DisconnectErr
}

// Connected reports whether Disconnect has not been called and the link
// has not been dropped
func (p *Peripheral) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.down
}

// Subscribed reports whether the notify characteristic has a subscriber
func (p *Peripheral) Subscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notify.callback != nil
}

// Chunks returns how many chunks the client wrote
func (p *Peripheral) Chunks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chunks
}

// DropLink simulates the device going out of range
func (p *Peripheral) DropLink(cause error) {
	p.mu.Lock()
	p.down = true
	fn := p.onDisconnect
	p.mu.Unlock()
	if fn != nil {
		fn(cause)
	}
}

// Reply answers req with a frame carrying the same channel, sequence and
// command id
func (p *Peripheral) Reply(req *protocol.Frame, payload []byte) {
	p.Notify(&protocol.Frame{
		Channel:  req.Channel,
		Sequence: req.Sequence,
		Command:  req.Command,
		Payload:  payload,
	})
}

// Notify encodes f and delivers it chunk by chunk to the subscriber
func (p *Peripheral) Notify(f *protocol.Frame) {
	chunks, err := p.codec.Encode(f.Channel, f.Sequence, f.Command, f.Payload)
	if err != nil {
		panic(fmt.Sprintf("linktest: encode reply: %v", err))
	}
	for _, c := range chunks {
		p.NotifyRaw(c)
	}
}

// NotifyRaw delivers one raw chunk to the subscriber
func (p *Peripheral) NotifyRaw(chunk []byte) {
	p.mu.Lock()
	cb := p.notify.callback
	p.mu.Unlock()
	if cb != nil {
		cb(append([]byte(nil), chunk...))
	}
}

func (p *Peripheral) received(chunk []byte) error {
	p.mu.Lock()
	if p.down {
		p.mu.Unlock()
		return ErrLinkDown
	}
	p.chunks++
	frame := p.reassembler.Ingest(chunk)
	p.mu.Unlock()

	if frame == nil {
		return nil
	}
	if h := p.transport.record(frame); h != nil {
		h(p, frame)
	}
	return nil
}

type characteristic struct {
	uuid     string
	p        *Peripheral
	writable bool
	callback func([]byte)
}

func (c *characteristic) UUID() string { return c.uuid }

func (c *characteristic) Write(data []byte) error {
	if !c.writable {
		return fmt.Errorf("linktest: %s is not writable", c.uuid)
	}
	return c.p.received(data)
}

func (c *characteristic) Subscribe(fn func([]byte)) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.callback = fn
	return nil
}

func (c *characteristic) Unsubscribe() error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.callback = nil
	return nil
}
