package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/mowerble/internal/link"
	"github.com/muurk/mowerble/internal/logging"
)

// DefaultScanTimeout bounds a find on the server side
const DefaultScanTimeout = 10 * time.Second

// ServerOption configures a Server
type ServerOption func(*Server)

// WithServerLogger sets the server logger
func WithServerLogger(log *zap.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithServerScanTimeout bounds each address lookup
func WithServerScanTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.scanTimeout = d
		}
	}
}

// Server exposes a local GATT stack over websockets
type Server struct {
	scanner     link.Scanner
	transport   link.Transport
	log         *zap.Logger
	scanTimeout time.Duration
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	devices map[string]link.Device
}

// NewServer creates a proxy server for a local scanner and transport
func NewServer(scanner link.Scanner, transport link.Transport, opts ...ServerOption) *Server {
	s := &Server{
		scanner:     scanner,
		transport:   transport,
		log:         zap.NewNop(),
		scanTimeout: DefaultScanTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		devices: make(map[string]link.Device),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and runs one GATT session on it
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	sess := &session{
		server: s,
		conn:   conn,
		log:    s.log.With(zap.String("remote_addr", r.RemoteAddr)),
	}
	sess.run(r.Context())
}

func (s *Server) find(ctx context.Context, address string) (link.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	device, err := s.scanner.FindDeviceByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.devices[strings.ToUpper(address)] = device
	s.mu.Unlock()
	return device, nil
}

func (s *Server) cached(address string) link.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[strings.ToUpper(address)]
}

type session struct {
	server *Server
	conn   *websocket.Conn
	log    *zap.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	periph link.Peripheral
	chars  []link.Characteristic
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.log.Info("Proxy session opened")
	defer func() {
		s.teardown()
		_ = s.conn.Close()
		s.log.Info("Proxy session closed")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.ping(ctx)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Read failed", zap.Error(err))
			}
			return
		}
		s.log.Debug("WebSocket message", logging.WebSocketMessage(s.conn.RemoteAddr().String(), "received", mt, data)...)

		switch mt {
		case websocket.TextMessage:
			var req message
			if err := json.Unmarshal(data, &req); err != nil {
				s.log.Warn("Malformed control message", zap.Error(err))
				continue
			}
			s.send(s.handle(ctx, req))

		case websocket.BinaryMessage:
			s.write(data)
		}
	}
}

func (s *session) ping(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) handle(ctx context.Context, req message) message {
	resp := message{Op: opResult, ID: req.ID}
	fail := func(err error) message {
		resp.Error = err.Error()
		resp.NotFound = errors.Is(err, link.ErrDeviceNotFound)
		s.log.Info("Request failed", zap.String("op", req.Op), zap.Error(err))
		return resp
	}

	switch req.Op {
	case opFind:
		device, err := s.server.find(ctx, req.Address)
		if err != nil {
			return fail(err)
		}
		resp.Address, resp.Name = device.Address(), device.Name()

	case opConnect:
		if s.peripheral() != nil {
			return fail(errors.New("already connected"))
		}
		device := s.server.cached(req.Address)
		if device == nil {
			var err error
			if device, err = s.server.find(ctx, req.Address); err != nil {
				return fail(err)
			}
		}
		periph, err := s.server.transport.Connect(ctx, device)
		if err != nil {
			return fail(err)
		}
		s.mu.Lock()
		s.periph, s.chars = periph, nil
		s.mu.Unlock()
		periph.OnDisconnect(func(err error) { s.lost(periph, err) })

		s.log.Info("Connected", zap.String("address", device.Address()))
		resp.Address, resp.Name = device.Address(), device.Name()

	case opDiscover:
		periph := s.peripheral()
		if periph == nil {
			return fail(errors.New("not connected"))
		}
		found, err := periph.Characteristics(ctx, req.Service, req.UUIDs...)
		if err != nil {
			return fail(err)
		}
		var chars []link.Characteristic
		for _, u := range req.UUIDs {
			if c, ok := found[strings.ToLower(u)]; ok {
				chars = append(chars, c)
				resp.UUIDs = append(resp.UUIDs, strings.ToLower(u))
			}
		}
		s.mu.Lock()
		s.chars = chars
		s.mu.Unlock()
		resp.MTU = periph.MTU()

	case opSubscribe:
		c, err := s.characteristic(req.Index)
		if err != nil {
			return fail(err)
		}
		idx := byte(req.Index)
		if err := c.Subscribe(func(data []byte) { s.notify(idx, data) }); err != nil {
			return fail(err)
		}

	case opUnsubscribe:
		c, err := s.characteristic(req.Index)
		if err != nil {
			return fail(err)
		}
		if err := c.Unsubscribe(); err != nil {
			return fail(err)
		}

	case opDisconnect:
		if err := s.teardown(); err != nil {
			return fail(err)
		}

	default:
		return fail(fmt.Errorf("unknown op %q", req.Op))
	}
	return resp
}

func (s *session) peripheral() link.Peripheral {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periph
}

func (s *session) characteristic(idx int) (link.Characteristic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.chars) {
		return nil, fmt.Errorf("no characteristic at index %d", idx)
	}
	return s.chars[idx], nil
}

// write forwards a client write to the characteristic named by data[0]
func (s *session) write(data []byte) {
	if len(data) == 0 {
		return
	}
	c, err := s.characteristic(int(data[0]))
	if err == nil {
		err = c.Write(data[1:])
	}
	if err != nil {
		s.log.Warn("Characteristic write failed", zap.Int("index", int(data[0])), zap.Error(err))
		s.send(message{Op: opWriteError, Index: int(data[0]), Error: err.Error()})
	}
}

func (s *session) notify(idx byte, data []byte) {
	frame := make([]byte, 1+len(data))
	frame[0] = idx
	copy(frame[1:], data)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		s.log.Debug("Notification not delivered", zap.Error(err))
	}
}

func (s *session) send(msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("Failed to encode control message", zap.Error(err))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug("Control message not delivered", zap.Error(err))
	}
}

// lost reports a dropped link to the client and ends the session
func (s *session) lost(periph link.Peripheral, cause error) {
	s.mu.Lock()
	if s.periph != periph {
		s.mu.Unlock()
		return
	}
	s.periph, s.chars = nil, nil
	s.mu.Unlock()

	reason := "link lost"
	if cause != nil {
		reason = cause.Error()
	}
	s.log.Warn("Peripheral link lost", zap.String("reason", reason))
	s.send(message{Op: opDisconnected, Error: reason})
	_ = s.conn.Close()
}

func (s *session) teardown() error {
	s.mu.Lock()
	periph := s.periph
	s.periph, s.chars = nil, nil
	s.mu.Unlock()

	if periph == nil {
		return nil
	}
	return periph.Disconnect()
}
