package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mowerble/internal/discovery"
)

// ShutdownTimeout bounds how long Shutdown waits for sessions to end
const ShutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	Host     string
	Port     int    // 0 picks a free port
	Path     string // Websocket path (default discovery.DefaultPath)
	CertPath string // Serve wss:// when both CertPath and KeyPath are set
	KeyPath  string
	Instance string            // mDNS instance name; empty disables advertising
	Metadata map[string]string // Extra TXT records (e.g., adapter, version)
}

// Server hosts a websocket handler, typically a proxy.Server, and
// advertises it over mDNS
type Server struct {
	config      *Config
	handler     http.Handler
	log         *zap.Logger
	tlsConfig   *tls.Config
	httpServer  *http.Server
	listener    net.Listener
	advert      *discovery.Advertisement
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]net.Conn
}

type connKey struct{}

// New creates a server for handler
func New(config *Config, handler http.Handler, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if (config.CertPath == "") != (config.KeyPath == "") {
		return nil, errors.New("both certificate and key must be provided together, or neither")
	}
	if config.Path == "" {
		config.Path = discovery.DefaultPath
	}

	s := &Server{
		config:      config,
		handler:     handler,
		log:         log,
		activeConns: make(map[string]net.Conn),
	}

	if config.CertPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, err
		}
		s.tlsConfig = tlsConfig
		log.Info("TLS configuration created from files",
			zap.String("cert", config.CertPath),
			zap.String("key", config.KeyPath),
		)
	}

	mux := http.NewServeMux()
	mux.Handle(config.Path, http.HandlerFunc(s.serveSession))
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			return context.WithValue(ctx, connKey{}, c)
		},
	}
	return s, nil
}

// Listen binds the listening socket
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	var (
		listener net.Listener
		err      error
	)
	if s.tlsConfig != nil {
		listener, err = tls.Listen("tcp", addr, s.tlsConfig)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the websocket URL clients dial
func (s *Server) URL() string {
	scheme := "ws"
	if s.tlsConfig != nil {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, s.Addr(), s.config.Path)
}

// Serve accepts connections until ctx is done, then shuts down.
// Listen is called first if it has not been.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.log.Info("GATT proxy listening",
		zap.String("url", s.URL()),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	if s.config.Instance != "" {
		if err := s.advertise(); err != nil {
			_ = s.listener.Close()
			return err
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutdown requested, stopping proxy...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		s.advert.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Start serves until SIGINT or SIGTERM
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

func (s *Server) advertise() error {
	_, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	metadata := make(map[string]string, len(s.config.Metadata)+2)
	for k, v := range s.config.Metadata {
		metadata[k] = v
	}
	metadata[discovery.TxtPath] = s.config.Path
	if s.tlsConfig != nil {
		metadata[discovery.TxtTLS] = "1"
	}

	advert, err := discovery.Advertise(s.config.Instance, port, metadata)
	if err != nil {
		return err
	}
	s.advert = advert
	s.log.Info("Advertising over mDNS",
		zap.String("instance", s.config.Instance),
		zap.String("service", discovery.ServiceType),
		zap.Int("port", port),
	)
	return nil
}

// serveSession tracks the underlying connection for the lifetime of a
// session so Shutdown can close hijacked websockets
func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	s.wg.Add(1)
	defer s.wg.Done()

	if conn, ok := r.Context().Value(connKey{}).(net.Conn); ok {
		s.mu.Lock()
		s.activeConns[r.RemoteAddr] = conn
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.activeConns, r.RemoteAddr)
			s.mu.Unlock()
		}()
	}

	s.log.Debug("Session started", zap.String("remote_addr", r.RemoteAddr))
	s.handler.ServeHTTP(w, r)
	s.log.Debug("Session ended", zap.String("remote_addr", r.RemoteAddr))
}

// Shutdown stops advertising, closes the listener and all sessions, and
// waits for session goroutines until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	s.advert.Shutdown()

	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	// Hijacked websockets are invisible to http.Server
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		s.log.Info("Closing active session", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("All sessions closed")
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout, forcing close")
	}
	return err
}

// GetActiveConnections returns the number of active sessions
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
