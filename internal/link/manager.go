package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mowerble/internal/protocol"
)

// State is the lifecycle state of a Manager
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RoundTripper issues one request and waits for its response
type RoundTripper interface {
	RequestResponse(ctx context.Context, cmd protocol.CommandID, payload []byte, timeout time.Duration) ([]byte, error)
}

// Handshake runs after subscription and before the connection is usable,
// typically to authenticate. An error aborts Connect.
type Handshake func(ctx context.Context, rt RoundTripper) error

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithLayout replaces the default frame layout
func WithLayout(layout protocol.Layout) Option {
	return func(m *Manager) {
		if layout != nil {
			m.layout = layout
		}
	}
}

// WithMTU fixes the chunk size instead of asking the peripheral
func WithMTU(mtu int) Option {
	return func(m *Manager) { m.mtu = mtu }
}

// WithHandshake sets the handshake run during Connect
func WithHandshake(h Handshake) Option {
	return func(m *Manager) { m.handshake = h }
}

// WithUUIDs overrides the service and characteristic UUIDs
func WithUUIDs(service, write, notify string) Option {
	return func(m *Manager) {
		m.serviceUUID, m.writeUUID, m.notifyUUID = service, write, notify
	}
}

type pending struct {
	cmd  protocol.CommandID
	seq  uint8
	done chan []byte
}

// Manager owns one BLE connection
type Manager struct {
	transport Transport
	channel   uint32
	layout    protocol.Layout
	mtu       int
	handshake Handshake
	log       *zap.Logger

	serviceUUID string
	writeUUID   string
	notifyUUID  string

	mu          sync.Mutex
	state       State
	closed      chan struct{} // closed on teardown, replaced on Connect
	periph      Peripheral
	write       Characteristic
	notify      Characteristic
	codec       *protocol.Codec
	reassembler *protocol.Reassembler
	seq         uint8
	pending     *pending
}

// NewManager creates a manager that sends frames on the given channel
func NewManager(transport Transport, channel uint32, opts ...Option) *Manager {
	m := &Manager{
		transport:   transport,
		channel:     channel,
		layout:      protocol.DefaultLayout{},
		log:         zap.NewNop(),
		serviceUUID: ServiceUUID,
		writeUUID:   WriteUUID,
		notifyUUID:  NotifyUUID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Channel returns the channel id stamped on every frame
func (m *Manager) Channel() uint32 {
	return m.channel
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the connection and makes it ready for requests.
// On failure the manager is back in StateDisconnected and the error
// matches protocol.ErrConnection.
func (m *Manager) Connect(ctx context.Context, device Device) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		state := m.state
		m.mu.Unlock()
		return protocol.NewConnectionError(fmt.Sprintf("cannot connect while %s", state), nil)
	}
	m.state = StateConnecting
	closed := make(chan struct{})
	m.closed = closed
	m.mu.Unlock()

	log := m.log.With(zap.String("address", device.Address()))
	log.Info("Connecting")

	fail := func(message string, cause error) error {
		if err := m.teardown(closed); err != nil {
			cause = errors.Join(cause, err)
		}
		log.Warn("Connect failed", zap.String("reason", message), zap.Error(cause))
		return protocol.NewConnectionError(message, cause)
	}

	periph, err := m.transport.Connect(ctx, device)
	if err != nil {
		_ = m.teardown(closed)
		log.Warn("Connect failed", zap.Error(err))
		return protocol.NewConnectionError(fmt.Sprintf("could not connect to %s", device.Address()), err)
	}

	m.mu.Lock()
	if !m.connectingLocked(closed) {
		m.mu.Unlock()
		_ = periph.Disconnect()
		return errAborted()
	}
	m.periph = periph
	m.mu.Unlock()

	periph.OnDisconnect(func(err error) { m.linkLost(closed, err) })

	chars, err := periph.Characteristics(ctx, m.serviceUUID, m.writeUUID, m.notifyUUID)
	if err != nil {
		return fail("service discovery failed", err)
	}
	write, notify := chars[strings.ToLower(m.writeUUID)], chars[strings.ToLower(m.notifyUUID)]
	if write == nil || notify == nil {
		var missing []string
		if write == nil {
			missing = append(missing, m.writeUUID)
		}
		if notify == nil {
			missing = append(missing, m.notifyUUID)
		}
		return fail("missing characteristics: "+strings.Join(missing, ", "), nil)
	}

	mtu := m.mtu
	if mtu <= 0 {
		mtu = periph.MTU()
	}

	codec := protocol.NewCodec(m.layout, mtu)

	m.mu.Lock()
	if !m.connectingLocked(closed) {
		m.mu.Unlock()
		return errAborted()
	}
	m.write = write
	m.notify = notify
	m.codec = codec
	m.reassembler = protocol.NewReassembler(m.layout, log)
	m.seq = 0
	m.mu.Unlock()

	if err := notify.Subscribe(func(chunk []byte) { m.ingest(closed, chunk) }); err != nil {
		return fail("subscribe failed", err)
	}

	if m.handshake != nil {
		if err := m.handshake(ctx, connecting{m}); err != nil {
			return fail("handshake rejected", err)
		}
	}

	m.mu.Lock()
	if !m.connectingLocked(closed) {
		m.mu.Unlock()
		return errAborted()
	}
	m.state = StateConnected
	m.mu.Unlock()

	log.Info("Connected", zap.Int("mtu", codec.MTU()))
	return nil
}

// connectingLocked reports whether the Connect call owning closed is still
// current. m.mu must be held.
func (m *Manager) connectingLocked(closed chan struct{}) bool {
	return m.closed == closed && m.state == StateConnecting
}

func errAborted() error {
	return protocol.NewConnectionError("connect aborted by disconnect", nil)
}

// connecting lets the handshake issue requests before the state is Connected
type connecting struct{ m *Manager }

func (c connecting) RequestResponse(ctx context.Context, cmd protocol.CommandID, payload []byte, timeout time.Duration) ([]byte, error) {
	return c.m.roundTrip(ctx, cmd, payload, timeout, true)
}

// RequestResponse sends one request and waits for the matching response.
// A non-positive timeout waits until ctx ends or the link drops.
func (m *Manager) RequestResponse(ctx context.Context, cmd protocol.CommandID, payload []byte, timeout time.Duration) ([]byte, error) {
	return m.roundTrip(ctx, cmd, payload, timeout, false)
}

func (m *Manager) roundTrip(ctx context.Context, cmd protocol.CommandID, payload []byte, timeout time.Duration, handshake bool) ([]byte, error) {
	m.mu.Lock()
	usable := m.state == StateConnected || (handshake && m.state == StateConnecting && m.write != nil)
	if !usable {
		state := m.state
		m.mu.Unlock()
		return nil, protocol.NewDisconnectedError(fmt.Sprintf("cannot send %s while %s", cmd, state), nil)
	}
	if m.pending != nil {
		busy := m.pending.cmd
		m.mu.Unlock()
		return nil, protocol.NewBusyError(fmt.Sprintf("cannot send %s while %s is pending", cmd, busy))
	}

	m.seq++
	p := &pending{cmd: cmd, seq: m.seq, done: make(chan []byte, 1)}
	m.pending = p
	codec, write, closed := m.codec, m.write, m.closed
	m.mu.Unlock()

	defer m.clearPending(p)

	chunks, err := codec.Encode(m.channel, p.seq, cmd, payload)
	if err != nil {
		return nil, err
	}

	m.log.Debug("Sending request",
		zap.Stringer("command", cmd),
		zap.Uint8("sequence", p.seq),
		zap.Int("payload", len(payload)),
		zap.Int("chunks", len(chunks)),
	)

	for i, chunk := range chunks {
		if err := write.Write(chunk); err != nil {
			select {
			case <-closed:
				return nil, protocol.NewDisconnectedError(fmt.Sprintf("link closed while sending %s", cmd), err)
			default:
			}
			return nil, protocol.NewConnectionError(fmt.Sprintf("write of chunk %d/%d for %s failed", i+1, len(chunks), cmd), err)
		}
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case resp := <-p.done:
		return resp, nil
	case <-expired:
		m.log.Warn("Request timed out", zap.Stringer("command", cmd), zap.Duration("timeout", timeout))
		return nil, protocol.NewTimeoutError(fmt.Sprintf("no response to %s within %s", cmd, timeout), nil)
	case <-closed:
		return nil, protocol.NewDisconnectedError(fmt.Sprintf("link closed while waiting for %s", cmd), nil)
	case <-ctx.Done():
		return nil, protocol.NewTimeoutError(fmt.Sprintf("gave up waiting for %s", cmd), ctx.Err())
	}
}

func (m *Manager) clearPending(p *pending) {
	m.mu.Lock()
	if m.pending == p {
		m.pending = nil
	}
	m.mu.Unlock()
}

// ingest runs on the transport's notification callback and must not block
func (m *Manager) ingest(closed chan struct{}, chunk []byte) {
	m.mu.Lock()
	if m.closed != closed || m.reassembler == nil {
		m.mu.Unlock()
		return
	}

	frame := m.reassembler.Ingest(chunk)
	if frame == nil {
		m.mu.Unlock()
		return
	}

	p := m.pending
	if p == nil || frame.Channel != m.channel || frame.Command != p.cmd {
		m.mu.Unlock()
		fields := []zap.Field{
			zap.Uint32("channel", frame.Channel),
			zap.Stringer("command", frame.Command),
			zap.Uint8("sequence", frame.Sequence),
		}
		if p != nil {
			fields = append(fields, zap.Stringer("awaiting", p.cmd))
		}
		m.log.Debug("Discarding unsolicited frame", fields...)
		return
	}
	m.pending = nil
	m.mu.Unlock()

	select {
	case p.done <- frame.Payload:
	default:
	}
}

// Disconnect tears the connection down. Any pending request fails with
// protocol.ErrDisconnected straight away. Calling it while disconnected is
// a no-op. The returned error joins unsubscribe and disconnect failures.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	closed := m.closed
	m.mu.Unlock()

	err := m.teardown(closed)
	m.log.Info("Disconnected")
	return err
}

func (m *Manager) linkLost(closed chan struct{}, cause error) {
	m.mu.Lock()
	current := m.closed == closed && m.state != StateDisconnected
	m.mu.Unlock()
	if !current {
		return
	}

	m.log.Warn("Link lost", zap.Error(cause))
	if err := m.teardown(closed); err != nil {
		m.log.Debug("Teardown after link loss", zap.Error(err))
	}
}

// teardown releases the session identified by closed. Only the first
// caller for a session does any work.
func (m *Manager) teardown(closed chan struct{}) error {
	m.mu.Lock()
	if m.closed != closed || m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateDisconnected
	close(closed)

	periph, notify := m.periph, m.notify
	m.periph, m.write, m.notify, m.codec = nil, nil, nil, nil
	if m.reassembler != nil {
		m.reassembler.Reset()
		m.reassembler = nil
	}
	m.pending = nil
	m.mu.Unlock()

	var errs []error
	if notify != nil {
		if err := notify.Unsubscribe(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe: %w", err))
		}
	}
	if periph != nil {
		if err := periph.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect: %w", err))
		}
	}
	return errors.Join(errs...)
}
