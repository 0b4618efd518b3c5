package dashboard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/mowerble/internal/mower"
)

type fakeMower struct {
	calls    []string
	hours    float64
	pauseErr error
	reports  int
}

func (f *fakeMower) Report(ctx context.Context) (*mower.Report, error) {
	f.calls = append(f.calls, "Report")
	f.reports++
	return &mower.Report{
		Manufacturer: "Husqvarna",
		Model:        "Automower 305",
		State:        mower.StateInOperation,
		Activity:     mower.ActivityMowing,
		BatteryLevel: 80,
	}, nil
}

func (f *fakeMower) Override(ctx context.Context, hours float64) error {
	f.calls = append(f.calls, "Override")
	f.hours = hours
	return nil
}

func (f *fakeMower) Pause(ctx context.Context) error {
	f.calls = append(f.calls, "Pause")
	return f.pauseErr
}

func (f *fakeMower) Resume(ctx context.Context) error {
	f.calls = append(f.calls, "Resume")
	return nil
}

func (f *fakeMower) Park(ctx context.Context) error {
	f.calls = append(f.calls, "Park")
	return nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send applies msg and runs the resulting command once, feeding its
// message back when it is one of ours
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	switch out := cmd().(type) {
	case reportMsg, actionMsg:
		return send(t, m, out)
	}
	return m
}

func loaded(t *testing.T, f *fakeMower) Model {
	t.Helper()
	m := New(context.Background(), f, "garden", 0)
	if m.Busy != "Loading" {
		t.Fatalf("initial Busy = %q", m.Busy)
	}
	// A blinking cursor would make every key wait for the blink timer
	m.Hours.Cursor.SetMode(cursor.CursorStatic)
	return send(t, m, m.refresh()())
}

func TestDashboard(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fakeMower)
		keys   []string
		verify func(t *testing.T, m Model, f *fakeMower)
	}{
		{
			name: "initial load",
			verify: func(t *testing.T, m Model, f *fakeMower) {
				if m.Busy != "" || m.Report == nil {
					t.Fatalf("Busy = %q, Report = %v", m.Busy, m.Report)
				}
				view := m.View()
				for _, want := range []string{"GARDEN", "IN_OPERATION", "80%", "refresh"} {
					if !strings.Contains(view, want) {
						t.Errorf("view missing %q:\n%s", want, view)
					}
				}
			},
		},
		{
			name: "pause refreshes afterwards",
			keys: []string{"p"},
			verify: func(t *testing.T, m Model, f *fakeMower) {
				want := []string{"Report", "Pause", "Report"}
				if strings.Join(f.calls, ",") != strings.Join(want, ",") {
					t.Errorf("calls = %v, want %v", f.calls, want)
				}
				if m.Status != "Pause sent" || m.Busy != "" {
					t.Errorf("Status = %q, Busy = %q", m.Status, m.Busy)
				}
			},
		},
		{
			name:  "failed action keeps report",
			setup: func(f *fakeMower) { f.pauseErr = errors.New("link lost") },
			keys:  []string{"p"},
			verify: func(t *testing.T, m Model, f *fakeMower) {
				if m.Status != "Pause failed" || m.Err == nil || m.Report == nil {
					t.Errorf("Status = %q, Err = %v", m.Status, m.Err)
				}
				if !strings.Contains(m.View(), "link lost") {
					t.Errorf("view does not show the error")
				}
			},
		},
		{
			name: "park and resume",
			keys: []string{"h", "s"},
			verify: func(t *testing.T, m Model, f *fakeMower) {
				want := []string{"Report", "Park", "Report", "Resume", "Report"}
				if strings.Join(f.calls, ",") != strings.Join(want, ",") {
					t.Errorf("calls = %v, want %v", f.calls, want)
				}
			},
		},
		{
			name: "override with hours",
			keys: []string{"o", "1", ".", "5", "enter"},
			verify: func(t *testing.T, m Model, f *fakeMower) {
				if f.hours != 1.5 {
					t.Errorf("override hours = %v, want 1.5", f.hours)
				}
				if m.Entering || m.Status != "Override for 1.5h sent" {
					t.Errorf("Entering = %v, Status = %q", m.Entering, m.Status)
				}
			},
		},
		{
			name: "override default hours",
			keys: []string{"o", "enter"},
			verify: func(t *testing.T, m Model, f *fakeMower) {
				if f.hours != 3 {
					t.Errorf("override hours = %v, want 3", f.hours)
				}
			},
		},
		{
			name: "override rejects bad hours",
			keys: []string{"o", "x", "enter"},
			verify: func(t *testing.T, m Model, f *fakeMower) {
				if !m.Entering || m.Status != `Invalid hours "x"` {
					t.Errorf("Entering = %v, Status = %q", m.Entering, m.Status)
				}
				for _, c := range f.calls {
					if c == "Override" {
						t.Error("override sent with invalid hours")
					}
				}
			},
		},
		{
			name: "override cancelled",
			keys: []string{"o", "esc", "p"},
			verify: func(t *testing.T, m Model, f *fakeMower) {
				if m.Entering {
					t.Error("still entering after esc")
				}
				if f.calls[len(f.calls)-2] != "Pause" {
					t.Errorf("calls = %v, want pause after cancel", f.calls)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeMower{}
			if tt.setup != nil {
				tt.setup(f)
			}
			m := loaded(t, f)
			for _, k := range tt.keys {
				m = send(t, m, keyMsg(k))
			}
			tt.verify(t, m, f)
		})
	}
}

func TestDashboardBusyIgnoresActions(t *testing.T) {
	f := &fakeMower{}
	m := loaded(t, f)
	m.Busy = "Parking"

	next, cmd := m.Update(keyMsg("p"))
	if cmd != nil {
		t.Error("action started while busy")
	}

	// Automatic refresh waits too
	next, _ = next.(Model).Update(tickMsg{})
	if f.reports != 1 {
		t.Errorf("reports = %d, want 1", f.reports)
	}
	if next.(Model).Busy != "Parking" {
		t.Errorf("Busy = %q", next.(Model).Busy)
	}
}

func TestDashboardQuit(t *testing.T) {
	m := loaded(t, &fakeMower{})
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
