package proxy_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/mowerble/internal/command"
	"github.com/muurk/mowerble/internal/link"
	"github.com/muurk/mowerble/internal/link/linktest"
	"github.com/muurk/mowerble/internal/mower"
	"github.com/muurk/mowerble/internal/protocol"
	"github.com/muurk/mowerble/internal/proxy"
	"github.com/muurk/mowerble/internal/schema"
)

const address = "60:98:66:AA:BB:CC"

type fixture struct {
	sim       *linktest.Simulator
	transport *linktest.Transport
	client    *proxy.Transport
	url       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sim := linktest.NewSimulator(nil)
	tr := linktest.NewTransport(sim.Handle)
	scanner := &linktest.Scanner{Devices: []link.Device{linktest.Device{Addr: address, DeviceName: "Automower"}}}

	srv := httptest.NewServer(proxy.NewServer(scanner, tr))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return &fixture{
		sim:       sim,
		transport: tr,
		client:    proxy.NewTransport(url, nil),
		url:       url,
	}
}

func (f *fixture) mower(opts ...mower.Option) *mower.Mower {
	opts = append([]mower.Option{mower.WithScanner(f.client), mower.WithTimeout(2 * time.Second)}, opts...)
	return mower.New(f.client, mower.DefaultChannel, opts...)
}

func TestRoundTripThroughProxy(t *testing.T) {
	f := newFixture(t)
	f.sim.
		Set(schema.GetBatteryLevel, command.Fields{"batteryLevel": 73}).
		Set(schema.GetUserMowerNameAsAsciiString, command.Fields{"name": "Garden Automower Nr 2 North"})
	m := f.mower()
	ctx := context.Background()

	if err := m.Connect(ctx, address); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	level, err := m.BatteryLevel(ctx)
	if err != nil || level != 73 {
		t.Errorf("BatteryLevel() = %d, %v", level, err)
	}
	name, err := m.Name(ctx)
	if err != nil || name != "Garden Automower Nr 2 North" {
		t.Errorf("Name() = %q, %v", name, err)
	}

	if err := m.Disconnect(); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
	if f.transport.Last().Connected() {
		t.Error("peripheral still connected on the proxy host")
	}
	if got := len(f.sim.Calls()); got != 2 {
		t.Errorf("device saw %d requests, want 2", got)
	}
}

func TestFindDeviceByAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.client.FindDeviceByAddress(ctx, strings.ToLower(address))
	if err != nil {
		t.Fatalf("FindDeviceByAddress() error = %v", err)
	}
	if d.Address() != address || d.Name() != "Automower" {
		t.Errorf("device = %s %q", d.Address(), d.Name())
	}

	_, err = f.client.FindDeviceByAddress(ctx, "00:00:00:00:00:01")
	if !errors.Is(err, link.ErrDeviceNotFound) {
		t.Errorf("FindDeviceByAddress(unknown) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestUnknownAddressThroughProxy(t *testing.T) {
	f := newFixture(t)
	m := f.mower()

	err := m.Connect(context.Background(), "00:00:00:00:00:01")
	if !errors.Is(err, protocol.ErrConnection) {
		t.Fatalf("Connect() error = %v, want ErrConnection", err)
	}
	if f.transport.Connects() != 0 || len(f.transport.Frames()) != 0 {
		t.Error("proxy host touched the radio for an unknown address")
	}
}

func TestLinkLossThroughProxy(t *testing.T) {
	f := newFixture(t)
	f.sim.Silence(schema.GetState, true)
	m := f.mower(mower.WithTimeout(5 * time.Second))
	ctx := context.Background()

	if err := m.Connect(ctx, address); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := m.MowerState(ctx)
		errc <- err
	}()

	waitFor(t, func() bool { return len(f.sim.Calls()) == 1 })
	f.transport.Last().DropLink(errors.New("out of range"))

	select {
	case err := <-errc:
		if !errors.Is(err, protocol.ErrDisconnected) {
			t.Errorf("pending request error = %v, want ErrDisconnected", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("pending request not resolved after link loss")
	}
	waitFor(t, func() bool { return m.State() == link.StateDisconnected })
}

func TestServerRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	tests := []struct {
		name string
		req  map[string]any
		want string
	}{
		{"unknown op", map[string]any{"op": "dance", "id": 1}, "unknown op"},
		{"discover before connect", map[string]any{"op": "discover", "id": 2}, "not connected"},
		{"subscribe before discover", map[string]any{"op": "subscribe", "id": 3, "index": 0}, "no characteristic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteJSON(tt.req); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			var resp struct {
				Op    string `json:"op"`
				ID    int    `json:"id"`
				Error string `json:"error"`
			}
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if err := conn.ReadJSON(&resp); err != nil {
				t.Fatalf("ReadJSON() error = %v", err)
			}
			if resp.Op != "result" || resp.ID != tt.req["id"] || !strings.Contains(resp.Error, tt.want) {
				t.Errorf("response = %+v, want error containing %q", resp, tt.want)
			}
		})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}
