package link_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/mowerble/internal/link"
	"github.com/muurk/mowerble/internal/link/linktest"
	"github.com/muurk/mowerble/internal/protocol"
)

const channel = 0x475A2F36

var (
	cmdEcho   = protocol.CommandID{Major: 0x10, Minor: 1}
	cmdSilent = protocol.CommandID{Major: 0x10, Minor: 2}
	cmdOther  = protocol.CommandID{Major: 0x10, Minor: 3}
	device    = linktest.Device{Addr: "AA:BB:CC:DD:EE:FF", DeviceName: "Mower"}
)

// echo answers cmdEcho with its own payload and ignores cmdSilent
func echo(p *linktest.Peripheral, req *protocol.Frame) {
	if req.Command == cmdEcho {
		p.Reply(req, req.Payload)
	}
}

func connected(t *testing.T, h linktest.Handler, opts ...link.Option) (*link.Manager, *linktest.Transport) {
	t.Helper()
	tr := linktest.NewTransport(h)
	m := link.NewManager(tr, channel, opts...)
	if err := m.Connect(context.Background(), device); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Disconnect() })
	return m, tr
}

func TestRequestResponse(t *testing.T) {
	m, tr := connected(t, echo)

	if m.State() != link.StateConnected {
		t.Fatalf("State() = %s, want Connected", m.State())
	}

	payload := bytes.Repeat([]byte{0xAB}, 50) // several chunks each way
	got, err := m.RequestResponse(context.Background(), cmdEcho, payload, time.Second)
	if err != nil {
		t.Fatalf("RequestResponse() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("response = % x, want % x", got, payload)
	}

	frames := tr.Frames()
	if len(frames) != 1 {
		t.Fatalf("device saw %d frames, want 1", len(frames))
	}
	if frames[0].Channel != channel || frames[0].Command != cmdEcho {
		t.Errorf("request frame = %s", frames[0])
	}
	if tr.Last().Chunks() < 2 {
		t.Errorf("request went out in %d chunks, want several", tr.Last().Chunks())
	}
}

func TestSequenceAdvances(t *testing.T) {
	m, tr := connected(t, echo)

	for i := 0; i < 3; i++ {
		if _, err := m.RequestResponse(context.Background(), cmdEcho, nil, time.Second); err != nil {
			t.Fatalf("request %d error = %v", i, err)
		}
	}

	frames := tr.Frames()
	for i := 1; i < len(frames); i++ {
		if frames[i].Sequence == frames[i-1].Sequence {
			t.Errorf("frames %d and %d share sequence %d", i-1, i, frames[i].Sequence)
		}
	}
}

func TestBusy(t *testing.T) {
	m, tr := connected(t, echo)

	done := make(chan error, 1)
	go func() {
		_, err := m.RequestResponse(context.Background(), cmdSilent, nil, 5*time.Second)
		done <- err
	}()
	waitFor(t, func() bool { return len(tr.Frames()) == 1 })

	start := time.Now()
	_, err := m.RequestResponse(context.Background(), cmdEcho, nil, time.Second)
	if !errors.Is(err, protocol.ErrBusy) {
		t.Fatalf("second RequestResponse() error = %v, want ErrBusy", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("ErrBusy took %s, want immediate", elapsed)
	}
	if len(tr.Frames()) != 1 {
		t.Errorf("device saw %d frames, the busy request must not be sent", len(tr.Frames()))
	}

	_ = m.Disconnect()
	if err := <-done; !errors.Is(err, protocol.ErrDisconnected) {
		t.Errorf("first request error = %v, want ErrDisconnected", err)
	}
}

func TestTimeoutLeavesConnectionUsable(t *testing.T) {
	m, _ := connected(t, echo)

	_, err := m.RequestResponse(context.Background(), cmdSilent, nil, 20*time.Millisecond)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("RequestResponse() error = %v, want ErrTimeout", err)
	}
	if m.State() != link.StateConnected {
		t.Fatalf("State() after timeout = %s, want Connected", m.State())
	}

	got, err := m.RequestResponse(context.Background(), cmdEcho, []byte("again"), time.Second)
	if err != nil {
		t.Fatalf("follow-up RequestResponse() error = %v", err)
	}
	if string(got) != "again" {
		t.Errorf("follow-up response = %q", got)
	}
}

func TestContextCancel(t *testing.T) {
	m, _ := connected(t, echo)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.RequestResponse(ctx, cmdSilent, nil, 0)
	if !protocol.IsTimeout(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RequestResponse() error = %v, want timeout wrapping DeadlineExceeded", err)
	}
}

func TestDisconnectResolvesPendingRequest(t *testing.T) {
	tests := []struct {
		name string
		drop func(m *link.Manager, tr *linktest.Transport)
	}{
		{
			name: "explicit disconnect",
			drop: func(m *link.Manager, _ *linktest.Transport) { _ = m.Disconnect() },
		},
		{
			name: "link loss",
			drop: func(_ *link.Manager, tr *linktest.Transport) { tr.Last().DropLink(errors.New("out of range")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, tr := connected(t, echo)

			done := make(chan error, 1)
			go func() {
				_, err := m.RequestResponse(context.Background(), cmdSilent, nil, 10*time.Second)
				done <- err
			}()

			// Let the request go out before dropping the link
			waitFor(t, func() bool { return len(tr.Frames()) == 1 })
			tt.drop(m, tr)

			select {
			case err := <-done:
				if !errors.Is(err, protocol.ErrDisconnected) {
					t.Errorf("pending request error = %v, want ErrDisconnected", err)
				}
			case <-time.After(time.Second):
				t.Fatal("pending request was not resolved by teardown")
			}

			if m.State() != link.StateDisconnected {
				t.Errorf("State() = %s, want Disconnected", m.State())
			}
			if tr.Last().Subscribed() {
				t.Error("notify characteristic still subscribed")
			}
		})
	}
}

func TestMismatchedFrameIsDiscarded(t *testing.T) {
	handler := func(p *linktest.Peripheral, req *protocol.Frame) {
		// A late notification for another command, one on another channel
		// and a corrupt chunk precede the real answer
		p.Notify(&protocol.Frame{Channel: req.Channel, Sequence: req.Sequence, Command: cmdOther, Payload: []byte("stale")})
		p.Notify(&protocol.Frame{Channel: req.Channel + 1, Sequence: req.Sequence, Command: req.Command, Payload: []byte("foreign")})
		p.NotifyRaw([]byte{0x99, 0x98})
		p.Reply(req, []byte("real"))
	}
	m, _ := connected(t, handler)

	got, err := m.RequestResponse(context.Background(), cmdEcho, nil, time.Second)
	if err != nil {
		t.Fatalf("RequestResponse() error = %v", err)
	}
	if string(got) != "real" {
		t.Errorf("response = %q, want %q", got, "real")
	}
}

func TestUnsolicitedFrameWhileIdle(t *testing.T) {
	m, tr := connected(t, echo)

	tr.Last().Notify(&protocol.Frame{Channel: channel, Command: cmdEcho, Payload: []byte("early")})

	got, err := m.RequestResponse(context.Background(), cmdEcho, []byte("mine"), time.Second)
	if err != nil {
		t.Fatalf("RequestResponse() error = %v", err)
	}
	if string(got) != "mine" {
		t.Errorf("response = %q, want the answer to this request", got)
	}
}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *linktest.Transport) []link.Option
	}{
		{
			name: "unreachable",
			setup: func(tr *linktest.Transport) []link.Option {
				tr.ConnectErr = errors.New("le-connection-abort-by-local")
				return nil
			},
		},
		{
			name: "missing characteristic",
			setup: func(tr *linktest.Transport) []link.Option {
				tr.OmitNotify = true
				return nil
			},
		},
		{
			name: "wrong service",
			setup: func(tr *linktest.Transport) []link.Option {
				return []link.Option{link.WithUUIDs("0000180f-0000-1000-8000-00805f9b34fb", link.WriteUUID, link.NotifyUUID)}
			},
		},
		{
			name: "handshake rejected",
			setup: func(tr *linktest.Transport) []link.Option {
				return []link.Option{link.WithHandshake(func(ctx context.Context, rt link.RoundTripper) error {
					resp, err := rt.RequestResponse(ctx, cmdEcho, []byte{0x01}, time.Second)
					if err != nil {
						return err
					}
					if resp[0] != 0x00 {
						return errors.New("pin refused")
					}
					return nil
				})}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := linktest.NewTransport(echo)
			m := link.NewManager(tr, channel, tt.setup(tr)...)

			err := m.Connect(context.Background(), device)
			if !errors.Is(err, protocol.ErrConnection) {
				t.Fatalf("Connect() error = %v, want ErrConnection", err)
			}
			if m.State() != link.StateDisconnected {
				t.Errorf("State() = %s, want Disconnected", m.State())
			}
			if p := tr.Last(); p != nil && p.Connected() {
				t.Error("peripheral left connected after failed Connect")
			}

			_, err = m.RequestResponse(context.Background(), cmdEcho, nil, time.Second)
			if !errors.Is(err, protocol.ErrDisconnected) {
				t.Errorf("RequestResponse() after failed Connect error = %v, want ErrDisconnected", err)
			}
		})
	}
}

func TestHandshakeRunsBeforeConnected(t *testing.T) {
	tr := linktest.NewTransport(echo)
	var states []link.State
	var m *link.Manager
	m = link.NewManager(tr, channel, link.WithHandshake(func(ctx context.Context, rt link.RoundTripper) error {
		states = append(states, m.State())
		_, err := rt.RequestResponse(ctx, cmdEcho, []byte{0x00}, time.Second)
		return err
	}))

	if err := m.Connect(context.Background(), device); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	if len(states) != 1 || states[0] != link.StateConnecting {
		t.Errorf("handshake saw states %v, want [Connecting]", states)
	}
	if len(tr.Frames()) != 1 {
		t.Errorf("device saw %d frames, want the handshake frame", len(tr.Frames()))
	}
}

func TestAlternativeLayout(t *testing.T) {
	tests := []struct {
		name    string
		peer    protocol.Layout // nil is the default layout
		wantErr error
	}{
		{name: "peer speaks the same layout", peer: linktest.CompactLayout{}},
		{name: "peer speaks the default layout", wantErr: protocol.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := linktest.NewTransport(echo)
			tr.Layout = tt.peer
			m := link.NewManager(tr, channel, link.WithLayout(linktest.CompactLayout{}))
			if err := m.Connect(context.Background(), device); err != nil {
				t.Fatalf("Connect() error = %v", err)
			}
			defer m.Disconnect()

			payload := bytes.Repeat([]byte{0x5A}, 40)
			got, err := m.RequestResponse(context.Background(), cmdEcho, payload, 200*time.Millisecond)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RequestResponse() error = %v, want %v", err, tt.wantErr)
				}
				if len(tr.Frames()) != 0 {
					t.Errorf("peer decoded %d frames written in another layout", len(tr.Frames()))
				}
				return
			}

			if err != nil {
				t.Fatalf("RequestResponse() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("response = % x, want % x", got, payload)
			}
			frames := tr.Frames()
			if len(frames) != 1 || frames[0].Channel != channel || frames[0].Command != cmdEcho {
				t.Errorf("peer saw frames %v", frames)
			}
			if tr.Last().Chunks() < 3 {
				t.Errorf("request went out in %d chunks, want several", tr.Last().Chunks())
			}
		})
	}
}

func TestConnectTwice(t *testing.T) {
	m, _ := connected(t, echo)
	if err := m.Connect(context.Background(), device); !errors.Is(err, protocol.ErrConnection) {
		t.Errorf("second Connect() error = %v, want ErrConnection", err)
	}
	if m.State() != link.StateConnected {
		t.Errorf("State() = %s, want Connected", m.State())
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	m, tr := connected(t, echo)

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := m.Disconnect(); err != nil {
		t.Errorf("second Disconnect() error = %v, want nil", err)
	}
	if tr.Last().Connected() {
		t.Error("peripheral still connected")
	}

	// A fresh manager never connected is also fine
	if err := link.NewManager(tr, channel).Disconnect(); err != nil {
		t.Errorf("Disconnect() on idle manager error = %v", err)
	}
}

func TestDisconnectReportsTeardownError(t *testing.T) {
	m, tr := connected(t, echo)
	tr.Last().DisconnectErr = errors.New("hci busy")

	err := m.Disconnect()
	if err == nil || m.State() != link.StateDisconnected {
		t.Errorf("Disconnect() = %v, state %s; want error and Disconnected", err, m.State())
	}
}

func TestReconnectAfterLinkLoss(t *testing.T) {
	m, tr := connected(t, echo)
	tr.Last().DropLink(nil)

	waitFor(t, func() bool { return m.State() == link.StateDisconnected })

	if err := m.Connect(context.Background(), device); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	if _, err := m.RequestResponse(context.Background(), cmdEcho, nil, time.Second); err != nil {
		t.Errorf("request after reconnect error = %v", err)
	}
	if tr.Connects() != 2 {
		t.Errorf("Connects() = %d, want 2", tr.Connects())
	}
}

func TestConcurrentRequestsExactlyOneWins(t *testing.T) {
	m, _ := connected(t, echo)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.RequestResponse(context.Background(), cmdSilent, nil, 50*time.Millisecond)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var busy, timeout int
	for err := range results {
		switch {
		case protocol.IsBusy(err):
			busy++
		case protocol.IsTimeout(err):
			timeout++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if timeout < 1 || busy+timeout != n {
		t.Errorf("busy=%d timeout=%d, want at least one timeout and the rest busy", busy, timeout)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(time.Millisecond)
	}
}
