package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/muurk/mowerble/internal/link"
)

// ErrLinkLost is reported to OnDisconnect when the host stack drops a
// connection
var ErrLinkLost = errors.New("ble: connection lost")

// attHeader is the ATT opcode and handle carried in every write
const attHeader = 3

// Advertisement is one scan result
type Advertisement struct {
	Address string
	Name    string
	RSSI    int16
}

// Adapter is a host Bluetooth adapter. It is a link.Scanner and a
// link.Transport, and its Check method makes it a connection gate.
type Adapter struct {
	adapter *bluetooth.Adapter
	log     *zap.Logger

	enableOnce sync.Once
	enableErr  error

	scanMu sync.Mutex

	mu          sync.Mutex
	peripherals map[string]*peripheral
}

// New returns the default host adapter
func New(log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		adapter:     bluetooth.DefaultAdapter,
		log:         log,
		peripherals: make(map[string]*peripheral),
	}
}

// Enable powers up the adapter stack once
func (a *Adapter) Enable() error {
	a.enableOnce.Do(func() {
		if err := a.adapter.Enable(); err != nil {
			a.enableErr = fmt.Errorf("enable bluetooth adapter: %w", err)
			return
		}
		a.adapter.SetConnectHandler(a.connectionChanged)
	})
	return a.enableErr
}

// Check reports whether Bluetooth is usable
func (a *Adapter) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.Enable()
}

// Scan reports advertisements to fn until ctx ends or fn returns false
func (a *Adapter) Scan(ctx context.Context, fn func(Advertisement) bool) error {
	if err := a.Enable(); err != nil {
		return err
	}

	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	done := make(chan error, 1)
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			if err := a.adapter.StopScan(); err != nil {
				a.log.Debug("Stop scan failed", zap.Error(err))
			}
		})
	}

	go func() {
		done <- a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			adv := Advertisement{
				Address: result.Address.String(),
				Name:    result.LocalName(),
				RSSI:    result.RSSI,
			}
			if !fn(adv) {
				stop()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		return nil
	case <-ctx.Done():
		if err := a.drain(done); err != nil {
			a.log.Debug("Scan ended with error", zap.Error(err))
		}
		return ctx.Err()
	}
}

// drain stops the scan and waits for Scan to return. StopScan fails when
// the scan goroutine has not started yet, so it is retried.
func (a *Adapter) drain(done <-chan error) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		_ = a.adapter.StopScan()
		select {
		case err := <-done:
			return err
		case <-ticker.C:
		}
	}
}

// FindDeviceByAddress implements link.Scanner
func (a *Adapter) FindDeviceByAddress(ctx context.Context, address string) (link.Device, error) {
	if err := a.Enable(); err != nil {
		return nil, err
	}

	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	found := make(chan *device, 1)
	done := make(chan error, 1)
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { _ = a.adapter.StopScan() }) }

	go func() {
		done <- a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !sameAddress(result.Address.String(), address) {
				return
			}
			select {
			case found <- &device{address: result.Address, name: result.LocalName()}:
			default:
			}
			stop()
		})
	}()

	select {
	case d := <-found:
		<-done
		a.log.Debug("Device found", zap.String("address", address), zap.String("name", d.name))
		return d, nil
	case err := <-done:
		select {
		case d := <-found:
			return d, nil
		default:
		}
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", link.ErrDeviceNotFound, address)
	case <-ctx.Done():
		_ = a.drain(done)
		select {
		case d := <-found:
			return d, nil
		default:
		}
		return nil, fmt.Errorf("%w: %s: %w", link.ErrDeviceNotFound, address, ctx.Err())
	}
}

// Connect implements link.Transport. The device must come from this
// adapter's scanner.
func (a *Adapter) Connect(ctx context.Context, d link.Device) (link.Peripheral, error) {
	dev, ok := d.(*device)
	if !ok {
		return nil, fmt.Errorf("ble: device %s was not found by this adapter", d.Address())
	}
	if err := a.Enable(); err != nil {
		return nil, err
	}

	type result struct {
		dev bluetooth.Device
		err error
	}
	done := make(chan result, 1)
	go func() {
		bd, err := a.adapter.Connect(dev.address, bluetooth.ConnectionParams{})
		done <- result{bd, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("connect %s: %w", dev.Address(), r.err)
		}
		p := &peripheral{adapter: a, device: r.dev, address: dev.Address()}
		a.mu.Lock()
		a.peripherals[normalize(dev.Address())] = p
		a.mu.Unlock()
		return p, nil

	case <-ctx.Done():
		// The host stack cannot cancel a pending connect; drop it once it lands
		go func() {
			if r := <-done; r.err == nil {
				_ = r.dev.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

func (a *Adapter) connectionChanged(d bluetooth.Device, connected bool) {
	if connected {
		return
	}
	key := normalize(d.Address.String())

	a.mu.Lock()
	p := a.peripherals[key]
	delete(a.peripherals, key)
	a.mu.Unlock()

	if p != nil {
		a.log.Warn("Connection dropped by host stack", zap.String("address", p.address))
		p.lost()
	}
}

func (a *Adapter) forget(p *peripheral) {
	key := normalize(p.address)
	a.mu.Lock()
	if a.peripherals[key] == p {
		delete(a.peripherals, key)
	}
	a.mu.Unlock()
}

type device struct {
	address bluetooth.Address
	name    string
}

func (d *device) Address() string { return d.address.String() }
func (d *device) Name() string    { return d.name }

func normalize(address string) string {
	return strings.ToUpper(strings.ReplaceAll(address, "-", ":"))
}

func sameAddress(a, b string) bool {
	return normalize(a) == normalize(b)
}
