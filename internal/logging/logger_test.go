package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		wantErr bool
		verify  func(t *testing.T, core zapcore.Core)
	}{
		{
			name: "silent by default",
			verify: func(t *testing.T, core zapcore.Core) {
				if core.Enabled(zapcore.ErrorLevel) {
					t.Error("expected a no-op logger")
				}
			},
		},
		{
			name:  "explicit level",
			level: "warn",
			verify: func(t *testing.T, core zapcore.Core) {
				if core.Enabled(zapcore.InfoLevel) || !core.Enabled(zapcore.WarnLevel) {
					t.Error("expected warn level")
				}
			},
		},
		{
			name: "level from environment",
			env:  "debug",
			verify: func(t *testing.T, core zapcore.Core) {
				if !core.Enabled(zapcore.DebugLevel) {
					t.Error("expected debug level")
				}
			},
		},
		{
			name:  "flag wins over environment",
			env:   "debug",
			level: "error",
			verify: func(t *testing.T, core zapcore.Core) {
				if core.Enabled(zapcore.WarnLevel) {
					t.Error("expected error level")
				}
			},
		},
		{name: "unknown level", level: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(LogLevelEnvVar, tt.env)

			log, err := New(tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			tt.verify(t, log.Core())
		})
	}
}

func TestDumps(t *testing.T) {
	if got := hexDump([]byte{0x02, 0xFD, 0x03}); got != "02fd03" {
		t.Errorf("hexDump() = %q", got)
	}
	if got := asciiDump([]byte("ok\x00\xff")); got != "ok.." {
		t.Errorf("asciiDump() = %q", got)
	}

	long := make([]byte, maxDump+10)
	if got := hexDump(long); !strings.HasSuffix(got, "...") || len(got) != 2*maxDump+3 {
		t.Errorf("hexDump() of long buffer has length %d", len(got))
	}
	if got := asciiDump(long); len(got) != maxDump {
		t.Errorf("asciiDump() of long buffer has length %d", len(got))
	}
}

func TestWebSocketMessage(t *testing.T) {
	fields := WebSocketMessage("127.0.0.1:5000", "sent", 2, []byte{0xAB})
	var found bool
	for _, f := range fields {
		if f.Key == "hex_dump" && f.String == "ab" {
			found = true
		}
		if f.Key == "message_type" && f.String != "binary" {
			t.Errorf("message_type = %q", f.String)
		}
	}
	if !found {
		t.Error("binary message missing hex_dump")
	}
}
