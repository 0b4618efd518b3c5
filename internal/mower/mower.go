package mower

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mowerble/internal/command"
	"github.com/muurk/mowerble/internal/link"
	"github.com/muurk/mowerble/internal/logging"
	"github.com/muurk/mowerble/internal/protocol"
	"github.com/muurk/mowerble/internal/schema"
)

const (
	// DefaultChannel is the channel id used when none is configured
	DefaultChannel uint32 = 1197489078

	// DefaultTimeout bounds every command round trip
	DefaultTimeout = 10 * time.Second

	// DefaultScanTimeout bounds the address lookup in Connect
	DefaultScanTimeout = 10 * time.Second
)

// Gate decides whether a connection attempt may proceed at all, for
// example because Bluetooth is switched off or permission was denied.
type Gate interface {
	Check(ctx context.Context) error
}

// GateFunc adapts a function to Gate
type GateFunc func(ctx context.Context) error

// Check implements Gate
func (f GateFunc) Check(ctx context.Context) error { return f(ctx) }

// Progress is told about each step of a composite operation
type Progress func(step, total int, name schema.Name)

// Option configures a Mower
type Option func(*Mower)

// WithPIN authenticates with EnterOperatorPin during Connect
func WithPIN(pin uint16) Option {
	return func(m *Mower) { m.pin = &pin }
}

// WithLogger sets the logger passed down to every layer
func WithLogger(log *zap.Logger) Option {
	return func(m *Mower) {
		if log != nil {
			m.log = log
		}
	}
}

// WithTimeout sets the per-command timeout
func WithTimeout(d time.Duration) Option {
	return func(m *Mower) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithScanTimeout bounds how long Connect scans for the address
func WithScanTimeout(d time.Duration) Option {
	return func(m *Mower) {
		if d > 0 {
			m.scanTimeout = d
		}
	}
}

// WithScanner sets the scanner Connect uses to resolve addresses
func WithScanner(s link.Scanner) Option {
	return func(m *Mower) { m.scanner = s }
}

// WithRegistry replaces the embedded schema
func WithRegistry(r *schema.Registry) Option {
	return func(m *Mower) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithGate sets the connectivity gate consulted before scanning
func WithGate(g Gate) Option {
	return func(m *Mower) { m.gate = g }
}

// WithMTU fixes the chunk size instead of asking the peripheral
func WithMTU(mtu int) Option {
	return func(m *Mower) { m.mtu = mtu }
}

// WithLayout replaces the wire layout of every frame sent and received
func WithLayout(layout protocol.Layout) Option {
	return func(m *Mower) { m.layout = layout }
}

// WithProgress reports composite operation steps
func WithProgress(p Progress) Option {
	return func(m *Mower) { m.progress = p }
}

// Mower is a session with one mower over one connection.
// Commands are strictly sequential; concurrent calls fail with
// protocol.ErrBusy.
type Mower struct {
	channel     uint32
	registry    *schema.Registry
	manager     *link.Manager
	scanner     link.Scanner
	gate        Gate
	log         *zap.Logger
	timeout     time.Duration
	scanTimeout time.Duration
	mtu         int
	layout      protocol.Layout
	pin         *uint16
	progress    Progress
}

// New creates a mower session over a GATT transport
func New(transport link.Transport, channel uint32, opts ...Option) *Mower {
	m := &Mower{
		channel:     channel,
		registry:    schema.Default(),
		log:         zap.NewNop(),
		timeout:     DefaultTimeout,
		scanTimeout: DefaultScanTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	linkOpts := []link.Option{link.WithLogger(m.log.Named("link"))}
	if m.mtu > 0 {
		linkOpts = append(linkOpts, link.WithMTU(m.mtu))
	}
	if m.layout != nil {
		linkOpts = append(linkOpts, link.WithLayout(m.layout))
	}
	if m.pin != nil {
		linkOpts = append(linkOpts, link.WithHandshake(m.authenticate))
	}
	m.manager = link.NewManager(transport, channel, linkOpts...)

	return m
}

// Channel returns the channel id
func (m *Mower) Channel() uint32 { return m.channel }

// Registry returns the schema in use
func (m *Mower) Registry() *schema.Registry { return m.registry }

// State returns the connection state
func (m *Mower) State() link.State { return m.manager.State() }

// Connect resolves address with the scanner and connects to it.
// An address that does not resolve fails with protocol.ErrConnection
// before anything is sent, as does a mower that is not disconnected.
func (m *Mower) Connect(ctx context.Context, address string) error {
	if err := m.checkIdle(); err != nil {
		return err
	}
	if m.gate != nil {
		if err := m.gate.Check(ctx); err != nil {
			return protocol.NewConnectionError("connectivity check failed", err)
		}
	}
	if m.scanner == nil {
		return protocol.NewConnectionError("no scanner configured to resolve "+address, nil)
	}

	scanCtx, cancel := context.WithTimeout(ctx, m.scanTimeout)
	defer cancel()

	m.log.Info("Scanning for mower", zap.String("address", address), zap.Duration("timeout", m.scanTimeout))
	device, err := m.scanner.FindDeviceByAddress(scanCtx, address)
	if err != nil {
		return protocol.NewConnectionError(fmt.Sprintf("unable to find device %s", address), err)
	}

	return m.ConnectDevice(ctx, device)
}

// ConnectDevice connects to an already resolved device
func (m *Mower) ConnectDevice(ctx context.Context, device link.Device) error {
	if err := m.checkIdle(); err != nil {
		return err
	}
	if m.gate != nil {
		if err := m.gate.Check(ctx); err != nil {
			return protocol.NewConnectionError("connectivity check failed", err)
		}
	}
	return m.manager.Connect(ctx, device)
}

func (m *Mower) checkIdle() error {
	if state := m.manager.State(); state != link.StateDisconnected {
		return protocol.NewConnectionError(fmt.Sprintf("cannot connect while %s", state), nil)
	}
	return nil
}

// Disconnect closes the connection. It is safe to call more than once.
func (m *Mower) Disconnect() error {
	return m.manager.Disconnect()
}

// Session connects, runs fn and always disconnects. A disconnect failure
// is joined after fn's error and never hides it.
func (m *Mower) Session(ctx context.Context, address string, fn func(ctx context.Context, m *Mower) error) error {
	if err := m.Connect(ctx, address); err != nil {
		return err
	}

	err := fn(ctx, m)
	if derr := m.Disconnect(); derr != nil {
		m.log.Warn("Disconnect failed", zap.Error(derr))
		return errors.Join(err, derr)
	}
	return err
}

// Result is the outcome of one command
type Result struct {
	Name   schema.Name
	Fields command.Fields
	// SoftFailed is set when the response failed validation but still parsed
	SoftFailed bool
}

// Value returns the bare value of a single-field response, the whole
// field map for multi-field responses and nil when there are no fields.
func (r *Result) Value() any {
	if len(r.Fields) == 0 {
		return nil
	}
	if v, ok := r.Fields.Single(); ok {
		return v
	}
	return r.Fields
}

// Command runs one named command and decodes its response
func (m *Mower) Command(ctx context.Context, name schema.Name, fields command.Fields) (*Result, error) {
	return m.exchange(ctx, m.manager, name, fields)
}

func (m *Mower) exchange(ctx context.Context, rt link.RoundTripper, name schema.Name, fields command.Fields) (*Result, error) {
	entry, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	cmd := command.New(m.channel, entry)

	payload, err := cmd.GenerateRequest(fields)
	if err != nil {
		return nil, err
	}

	resp, err := rt.RequestResponse(ctx, entry.ID, payload, m.timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	result := &Result{Name: name}
	if !cmd.ValidateResponse(resp) {
		result.SoftFailed = true
		m.log.Warn("Response failed validation",
			zap.String("command", string(name)),
			logging.Hex("hex", resp),
		)
	}

	result.Fields, err = cmd.ParseResponse(resp)
	if err != nil {
		return nil, err
	}

	m.log.Debug("Command complete",
		zap.String("command", string(name)),
		zap.Any("fields", result.Fields),
		zap.Bool("soft_failed", result.SoftFailed),
	)
	return result, nil
}

// authenticate is the link handshake used when a PIN is configured.
// Unlike ordinary commands, a failed validation here is a rejection.
func (m *Mower) authenticate(ctx context.Context, rt link.RoundTripper) error {
	res, err := m.exchange(ctx, rt, schema.EnterOperatorPin, command.Fields{"code": *m.pin})
	if err != nil {
		return err
	}
	if res.SoftFailed {
		return errors.New("operator PIN rejected")
	}
	m.log.Info("Authenticated with operator PIN")
	return nil
}
