package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// holdHandler upgrades and blocks until the peer goes away
type holdHandler struct{}

func (holdHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func startServer(t *testing.T) (*Server, context.CancelFunc, <-chan error) {
	t.Helper()

	srv, err := New(&Config{Host: "127.0.0.1", Port: 0}, holdHandler{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	return srv, cancel, done
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{"cert without key", &Config{CertPath: "cert.pem"}, "both certificate and key"},
		{"key without cert", &Config{KeyPath: "key.pem"}, "both certificate and key"},
		{"missing files", &Config{CertPath: "/nonexistent/cert.pem", KeyPath: "/nonexistent/key.pem"}, "failed to load TLS certificate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config, holdHandler{}, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestURLDefaultsPath(t *testing.T) {
	srv, cancel, done := startServer(t)
	defer func() {
		cancel()
		<-done
	}()

	if !strings.HasPrefix(srv.URL(), "ws://127.0.0.1:") || !strings.HasSuffix(srv.URL(), "/gatt") {
		t.Errorf("URL() = %q", srv.URL())
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/other")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /other status = %d, want 404", resp.StatusCode)
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	srv, cancel, done := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(srv.URL(), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.GetActiveConnections() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("GetActiveConnections() = %d, want 1", srv.GetActiveConnections())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(ShutdownTimeout):
		t.Fatal("Serve() did not return after cancel")
	}

	if n := srv.GetActiveConnections(); n != 0 {
		t.Errorf("GetActiveConnections() after shutdown = %d", n)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("session still open after shutdown")
	}
}
