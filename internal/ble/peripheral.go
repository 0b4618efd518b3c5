package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/muurk/mowerble/internal/link"
)

type peripheral struct {
	adapter *Adapter
	device  bluetooth.Device
	address string

	mu           sync.Mutex
	mtu          int
	onDisconnect func(error)
	closed       bool
}

func (p *peripheral) Characteristics(ctx context.Context, service string, uuids ...string) (map[string]link.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svcUUID, err := bluetooth.ParseUUID(service)
	if err != nil {
		return nil, fmt.Errorf("parse service UUID %q: %w", service, err)
	}
	want := make([]bluetooth.UUID, 0, len(uuids))
	for _, u := range uuids {
		id, err := bluetooth.ParseUUID(u)
		if err != nil {
			return nil, fmt.Errorf("parse characteristic UUID %q: %w", u, err)
		}
		want = append(want, id)
	}

	services, err := p.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %s not found", service)
	}

	chars, err := services[0].DiscoverCharacteristics(want)
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}

	out := make(map[string]link.Characteristic, len(chars))
	for _, c := range chars {
		key := strings.ToLower(c.UUID().String())
		out[key] = &characteristic{char: c, uuid: key}

		if mtu, err := c.GetMTU(); err == nil {
			p.mu.Lock()
			if p.mtu == 0 {
				p.mtu = writePayload(mtu)
			}
			p.mu.Unlock()
		}
	}
	return out, nil
}

func (p *peripheral) MTU() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mtu
}

func (p *peripheral) OnDisconnect(fn func(error)) {
	p.mu.Lock()
	p.onDisconnect = fn
	p.mu.Unlock()
}

func (p *peripheral) Disconnect() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.adapter.forget(p)
	return p.device.Disconnect()
}

func (p *peripheral) lost() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	fn := p.onDisconnect
	p.mu.Unlock()

	if fn != nil {
		fn(ErrLinkLost)
	}
}

// writePayload turns an ATT MTU into the usable write size
func writePayload(attMTU uint16) int {
	if int(attMTU) <= attHeader {
		return 0
	}
	return int(attMTU) - attHeader
}

type characteristic struct {
	char bluetooth.DeviceCharacteristic
	uuid string
}

func (c *characteristic) UUID() string { return c.uuid }

func (c *characteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *characteristic) Subscribe(fn func([]byte)) error {
	return c.char.EnableNotifications(fn)
}

func (c *characteristic) Unsubscribe() error {
	return c.char.EnableNotifications(nil)
}
