package proxy

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/mowerble/internal/link"
)

// ErrClosed is returned for calls on a closed proxy connection
var ErrClosed = errors.New("proxy connection closed")

// Transport reaches a GATT stack through a proxy Server. It implements
// link.Scanner and link.Transport.
type Transport struct {
	url    string
	dialer *websocket.Dialer
	log    *zap.Logger
}

// NewTransport creates a client for the proxy at url (ws:// or wss://)
func NewTransport(url string, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		url:    url,
		dialer: websocket.DefaultDialer,
		log:    log.With(zap.String("proxy", url)),
	}
}

// URL returns the proxy URL
func (t *Transport) URL() string { return t.url }

// SetTLSConfig sets the client TLS configuration used for wss:// URLs
func (t *Transport) SetTLSConfig(cfg *tls.Config) *Transport {
	d := *websocket.DefaultDialer
	d.TLSClientConfig = cfg
	t.dialer = &d
	return t
}

func (t *Transport) dial(ctx context.Context) (*client, error) {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial proxy %s: %s: %w", t.url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial proxy %s: %w", t.url, err)
	}
	c := newClient(conn, t.log)
	go c.readLoop()
	return c, nil
}

// FindDeviceByAddress implements link.Scanner. The proxy host runs the scan.
func (t *Transport) FindDeviceByAddress(ctx context.Context, address string) (link.Device, error) {
	c, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.close()

	resp, err := c.call(ctx, message{Op: opFind, Address: address})
	if err != nil {
		return nil, err
	}
	return device{address: resp.Address, name: resp.Name}, nil
}

// Connect implements link.Transport
func (t *Transport) Connect(ctx context.Context, d link.Device) (link.Peripheral, error) {
	c, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := c.call(ctx, message{Op: opConnect, Address: d.Address()}); err != nil {
		c.close()
		return nil, err
	}

	p := &peripheral{client: c, log: t.log}
	c.setEventHandler(p.event)
	go p.watch()
	return p, nil
}

type device struct {
	address string
	name    string
}

func (d device) Address() string { return d.address }
func (d device) Name() string    { return d.name }

// client is one websocket to the proxy with request/response matching
type client struct {
	conn *websocket.Conn
	log  *zap.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan message
	onBinary map[byte]func([]byte)
	onEvent  func(message)

	closed    chan struct{}
	closeOnce sync.Once
	err       error
}

func newClient(conn *websocket.Conn, log *zap.Logger) *client {
	return &client{
		conn:     conn,
		log:      log,
		pending:  make(map[uint64]chan message),
		onBinary: make(map[byte]func([]byte)),
		closed:   make(chan struct{}),
	}
}

func (c *client) readLoop() {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			c.mu.Lock()
			fn := c.onBinary[data[0]]
			c.mu.Unlock()
			if fn != nil {
				fn(data[1:])
			}

		case websocket.TextMessage:
			var msg message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.log.Warn("Malformed control message from proxy", zap.Error(err))
				continue
			}
			c.mu.Lock()
			if msg.Op == opResult {
				ch := c.pending[msg.ID]
				delete(c.pending, msg.ID)
				c.mu.Unlock()
				if ch != nil {
					ch <- msg
				}
				continue
			}
			fn := c.onEvent
			c.mu.Unlock()
			if fn != nil {
				fn(msg)
			}
		}
	}
}

func (c *client) setEventHandler(fn func(message)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

func (c *client) setBinaryHandler(idx byte, fn func([]byte)) {
	c.mu.Lock()
	if fn == nil {
		delete(c.onBinary, idx)
	} else {
		c.onBinary[idx] = fn
	}
	c.mu.Unlock()
}

func (c *client) call(ctx context.Context, req message) (message, error) {
	ch := make(chan message, 1)

	c.mu.Lock()
	c.nextID++
	req.ID = c.nextID
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return message{}, err
	}
	if err := c.send(websocket.TextMessage, data); err != nil {
		return message{}, err
	}

	select {
	case resp := <-ch:
		if resp.Error == "" {
			return resp, nil
		}
		if resp.NotFound {
			return resp, fmt.Errorf("%w: %s", link.ErrDeviceNotFound, resp.Error)
		}
		return resp, fmt.Errorf("proxy %s: %s", req.Op, resp.Error)
	case <-c.closed:
		return message{}, c.closeErr()
	case <-ctx.Done():
		return message{}, ctx.Err()
	}
}

func (c *client) send(mt int, data []byte) error {
	select {
	case <-c.closed:
		return c.closeErr()
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(mt, data); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

func (c *client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, c.err)
	}
	return ErrClosed
}

func (c *client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.closed)
		_ = c.conn.Close()
	})
}

// close ends the session politely
func (c *client) close() {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.shutdown(nil)
}

// peripheral is a link.Peripheral on the far side of a proxy
type peripheral struct {
	client *client
	log    *zap.Logger

	mu           sync.Mutex
	mtu          int
	onDisconnect func(error)
	closing      bool
	lostErr      error
}

func (p *peripheral) Characteristics(ctx context.Context, service string, uuids ...string) (map[string]link.Characteristic, error) {
	resp, err := p.client.call(ctx, message{Op: opDiscover, Service: service, UUIDs: uuids})
	if err != nil {
		return nil, err
	}
	if len(resp.UUIDs) > 255 {
		return nil, fmt.Errorf("proxy returned %d characteristics", len(resp.UUIDs))
	}

	p.mu.Lock()
	p.mtu = resp.MTU
	p.mu.Unlock()

	out := make(map[string]link.Characteristic, len(resp.UUIDs))
	for i, u := range resp.UUIDs {
		key := strings.ToLower(u)
		out[key] = &characteristic{client: p.client, index: byte(i), uuid: key}
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
	if p.closing {
		p.mu.Unlock()
		return nil
	}
	p.closing = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	_, err := p.client.call(ctx, message{Op: opDisconnect})
	p.client.close()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (p *peripheral) event(msg message) {
	switch msg.Op {
	case opDisconnected:
		p.mu.Lock()
		p.lostErr = fmt.Errorf("proxy: %s", msg.Error)
		p.mu.Unlock()
	case opWriteError:
		p.log.Warn("Proxy reported a failed write", zap.Int("index", msg.Index), zap.String("error", msg.Error))
	}
}

// watch reports the end of the websocket as link loss unless Disconnect
// caused it
func (p *peripheral) watch() {
	<-p.client.closed

	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	p.closing = true
	cause := p.lostErr
	fn := p.onDisconnect
	p.mu.Unlock()

	if cause == nil {
		cause = p.client.closeErr()
	}
	if fn != nil {
		fn(cause)
	}
}

type characteristic struct {
	client *client
	index  byte
	uuid   string
}

func (c *characteristic) UUID() string { return c.uuid }

func (c *characteristic) Write(data []byte) error {
	frame := make([]byte, 1+len(data))
	frame[0] = c.index
	copy(frame[1:], data)
	return c.client.send(websocket.BinaryMessage, frame)
}

func (c *characteristic) Subscribe(fn func([]byte)) error {
	c.client.setBinaryHandler(c.index, fn)
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if _, err := c.client.call(ctx, message{Op: opSubscribe, Index: int(c.index)}); err != nil {
		c.client.setBinaryHandler(c.index, nil)
		return err
	}
	return nil
}

func (c *characteristic) Unsubscribe() error {
	c.client.setBinaryHandler(c.index, nil)
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	_, err := c.client.call(ctx, message{Op: opUnsubscribe, Index: int(c.index)})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}
