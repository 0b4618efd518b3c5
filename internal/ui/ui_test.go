package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muurk/mowerble/internal/mower"
	"github.com/muurk/mowerble/internal/protocol"
	"github.com/muurk/mowerble/internal/schema"
)

func TestHeaderSortsParams(t *testing.T) {
	out := NewHeader("Override", "mowerctl override --hours 3", map[string]string{
		"Mower":   "garden",
		"Address": "60:98:66:AA:BB:CC",
	}).SetWidth(100).Render()

	for _, want := range []string{"OVERRIDE", "mowerctl override --hours 3", "garden", "60:98:66:AA:BB:CC"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Address:") > strings.Index(out, "Mower:") {
		t.Errorf("params not in key order:\n%s", out)
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
		absent []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Pause complete", map[string]string{"Mower": "garden"}),
			want:   []string{"SUCCESS", "Pause complete", "Mower:", "garden"},
			absent: []string{"Troubleshooting"},
		},
		{
			name:   "failure with derived tips",
			result: NewFailureResult("Override failed", protocol.NewTimeoutError("no response to StartTrigger", nil), nil),
			want:   []string{"FAILED", "Error:", "no response to StartTrigger", "Troubleshooting:", "Move closer to the mower"},
		},
		{
			name:   "failure with explicit tips",
			result: NewFailureResult("Scan failed", errors.New("adapter off"), []string{"Switch Bluetooth on"}),
			want:   []string{"adapter off", "Switch Bluetooth on"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Soft validation failure", nil).AddDetail("Command", "GetState"),
			want:   []string{"WARNING", "Command:", "GetState"},
			absent: []string{"Error:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(100).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("missing %q in:\n%s", want, out)
				}
			}
			for _, absent := range tt.absent {
				if strings.Contains(out, absent) {
					t.Errorf("unexpected %q in:\n%s", absent, out)
				}
			}
		})
	}
}

func TestTips(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{name: "nil", err: nil, want: nil},
		{
			name: "bullet list",
			err:  protocol.NewTimeoutError("timeout", nil),
			want: []string{
				"Move closer to the mower",
				"Try increasing --timeout",
				"Reconnect; some firmware stops answering after a rejected command",
			},
		},
		{
			name: "single line",
			err:  protocol.NewBusyError("busy"),
			want: []string{"Another command is still running on this connection. Commands must be issued one at a time."},
		},
		{
			name: "foreign error",
			err:  errors.New("boom"),
			want: []string{"An unexpected error occurred. Please try again."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tips(tt.err)
			if len(got) != len(tt.want) {
				t.Fatalf("Tips() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tip %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestProgress(t *testing.T) {
	p := NewProgress("Starting override...", 3)
	for i, name := range []string{"SetMode", "SetOverrideMow", "StartTrigger"} {
		p.NameStep(i+1, name)
	}
	p.NameStep(4, "ignored")
	p.StartStep(1, "")
	p.CompleteStep(1, "")
	p.StartStep(2, "")
	p.FailStep(2, "timeout")

	want := []StepStatus{StepComplete, StepFailed, StepSkipped}
	for i, s := range p.Steps {
		if s.Status != want[i] {
			t.Errorf("step %d status = %d, want %d", i+1, s.Status, want[i])
		}
	}
	if p.Percent < 0.66 || p.Percent > 0.67 {
		t.Errorf("Percent = %v, want 2/3", p.Percent)
	}

	out := p.Render()
	for _, want := range []string{"Starting override...", "[2/3]", "SetOverrideMow", "(timeout)", StepMarkerSkipped} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}

	p.Resize(1)
	if p.Total() != 1 || p.Steps[0].Name != "SetMode" {
		t.Errorf("Resize(1) kept %+v", p.Steps)
	}
}

func TestRunner(t *testing.T) {
	steps := []schema.Name{schema.SetMode, schema.SetOverrideMow, schema.StartTrigger}

	tests := []struct {
		name   string
		failAt int // 0 means success
		verify func(t *testing.T, r *Runner, out string, err error)
	}{
		{
			name: "success",
			verify: func(t *testing.T, r *Runner, out string, err error) {
				if err != nil {
					t.Fatalf("Run() error = %v", err)
				}
				for i, s := range r.Progress().Steps {
					if s.Status != StepComplete {
						t.Errorf("step %d status = %d, want complete", i+1, s.Status)
					}
					if s.Name != string(steps[i]) {
						t.Errorf("step %d name = %q", i+1, s.Name)
					}
				}
				for _, want := range []string{"OVERRIDE", "Override complete", "Duration:", "750ms", "Hours:"} {
					if !strings.Contains(out, want) {
						t.Errorf("output missing %q:\n%s", want, out)
					}
				}
			},
		},
		{
			name:   "failure at second step",
			failAt: 2,
			verify: func(t *testing.T, r *Runner, out string, err error) {
				if !protocol.IsTimeout(err) {
					t.Fatalf("Run() error = %v, want timeout", err)
				}
				want := []StepStatus{StepComplete, StepFailed, StepSkipped}
				for i, s := range r.Progress().Steps {
					if s.Status != want[i] {
						t.Errorf("step %d status = %d, want %d", i+1, s.Status, want[i])
					}
				}
				for _, want := range []string{"Override failed", "Troubleshooting:", StepMarkerSkipped} {
					if !strings.Contains(out, want) {
						t.Errorf("output missing %q:\n%s", want, out)
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewRunner(RunnerConfig{
				Title:   "Override",
				Command: "mowerctl override --hours 3",
				Params:  map[string]string{"Mower": "garden"},
				Output:  &buf,
				Width:   100,
			})
			clock := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
			r.now = func() time.Time {
				clock = clock.Add(750 * time.Millisecond)
				return clock
			}

			err := r.Run(func(onStep StepCallback) (map[string]string, error) {
				progress := MowerProgress(onStep)
				for i, name := range steps {
					progress(i+1, len(steps), name)
					if i+1 == tt.failAt {
						return nil, protocol.NewTimeoutError("no response", nil)
					}
				}
				return map[string]string{"Hours": "3"}, nil
			})
			tt.verify(t, r, buf.String(), err)
		})
	}
}

func TestRenderReport(t *testing.T) {
	report := &mower.Report{
		Manufacturer: "Husqvarna",
		Model:        "Automower 305",
		Name:         "garden",
		SerialNumber: 12345678,
		BatteryLevel: 12,
		State:        mower.StateInOperation,
		Activity:     mower.ActivityMowing,
		Statistics: &mower.Statistics{
			TotalRunningTime:   90 * time.Minute,
			NumberOfCollisions: 42,
		},
		LastMessage: &mower.Message{Code: 0},
	}

	out := RenderReport(report, 100)
	for _, want := range []string{
		"garden (Husqvarna Automower 305)",
		"IN_OPERATION",
		"MOWING",
		"12%",
		"12345678",
		"not scheduled",
		"Statistics",
		"1.5 h",
		"42",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Last message") {
		t.Errorf("empty message log rendered:\n%s", out)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"YES\n", true},
		{"yes", true},
		{"no\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got := ConfirmLongOverride(strings.NewReader(tt.input), &out, 24)
			if got != tt.want {
				t.Errorf("ConfirmLongOverride(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "24.0 hours") {
				t.Errorf("prompt missing duration:\n%s", out.String())
			}
		})
	}
}

func TestPrinter(t *testing.T) {
	tests := []struct {
		name  string
		print func(p *Printer) error
		want  []string
	}{
		{
			name: "header",
			print: func(p *Printer) error {
				p.PrintHeader("Status", "mowerctl status", map[string]string{"Mower": "garden"})
				return nil
			},
			want: []string{"STATUS", "mowerctl status", "garden"},
		},
		{
			name: "success",
			print: func(p *Printer) error {
				p.PrintSuccess("Mower saved", map[string]string{"Address": "60:98:66:AA:BB:CC"})
				return nil
			},
			want: []string{"Mower saved", "60:98:66:AA:BB:CC"},
		},
		{
			name: "lines",
			print: func(p *Printer) error {
				p.PrintLines("first", "second")
				return nil
			},
			want: []string{"first\nsecond\n"},
		},
		{
			name:  "once without a terminal",
			print: func(p *Printer) error { return p.PrintOnce("report panel") },
			want:  []string{"report panel\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.print(NewPrinter(&buf).SetWidth(80)); err != nil {
				t.Fatalf("print error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestRenderOnce(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderOnce(&buf, "rendered once"); err != nil {
		t.Fatalf("RenderOnce() error = %v", err)
	}
	if !strings.Contains(buf.String(), "rendered once") {
		t.Errorf("output = %q", buf.String())
	}
}
