package discovery

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name:     "IPv4 proxy",
			entry:    entry("garden-pi", 8765, []net.IP{net.ParseIP("192.168.4.16")}, nil, "path=/gatt"),
			wantIP:   "192.168.4.16",
			wantPort: 8765,
		},
		{
			name:     "IPv6 only",
			entry:    entry("garden-pi", 8765, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 8765,
		},
		{
			name:     "prefers IPv4",
			entry:    entry("garden-pi", 9000, []net.IP{net.ParseIP("10.0.0.5")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "10.0.0.5",
			wantPort: 9000,
		},
		{name: "no address", entry: entry("garden-pi", 8765, nil, nil), wantNil: true},
		{name: "no port", entry: entry("garden-pi", 0, []net.IP{net.ParseIP("10.0.0.5")}, nil), wantNil: true},
		{name: "no instance", entry: entry("", 8765, []net.IP{net.ParseIP("10.0.0.5")}, nil), wantNil: true},
		{name: "nil entry", entry: nil, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if p != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", p)
				}
				return
			}
			if p == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if p.IP != tt.wantIP || p.Port != tt.wantPort {
				t.Errorf("parseServiceEntry() = %s:%d, want %s:%d", p.IP, p.Port, tt.wantIP, tt.wantPort)
			}
			if time.Since(p.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", p.DiscoveredAt)
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"path=/gatt", "adapter=hci0", "flag", "url=ws://x/?a=b", "=orphan"})
	want := map[string]string{
		"path":    "/gatt",
		"adapter": "hci0",
		"flag":    "",
		"url":     "ws://x/?a=b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseTXT() = %v, want %v", got, want)
	}
}

func TestTXTRoundTrip(t *testing.T) {
	meta := map[string]string{TxtVersion: "v1", TxtPath: "/gatt", TxtAdapter: "hci0"}

	text := TXT(meta)
	if want := []string{"adapter=hci0", "path=/gatt", "version=v1"}; !reflect.DeepEqual(text, want) {
		t.Errorf("TXT() = %v, want %v", text, want)
	}
	if got := parseTXT(text); !reflect.DeepEqual(got, meta) {
		t.Errorf("parseTXT(TXT()) = %v", got)
	}
}

func TestProxyURL(t *testing.T) {
	tests := []struct {
		name  string
		proxy *Proxy
		want  string
	}{
		{"default path", &Proxy{IP: "192.168.4.16", Port: 8765}, "ws://192.168.4.16:8765/gatt"},
		{"custom path", &Proxy{IP: "10.0.0.5", Port: 80, Metadata: map[string]string{"path": "/ble"}}, "ws://10.0.0.5:80/ble"},
		{"IPv6", &Proxy{IP: "fe80::1", Port: 8765}, "ws://[fe80::1]:8765/gatt"},
		{"TLS", &Proxy{IP: "10.0.0.5", Port: 8443, Metadata: map[string]string{"tls": "1"}}, "wss://10.0.0.5:8443/gatt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.proxy.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProxyString(t *testing.T) {
	p := &Proxy{Instance: "garden-pi", Hostname: "garden-pi.local.", IP: "192.168.4.16", Port: 8765}
	if got, want := p.String(), "GATT proxy garden-pi (garden-pi.local.) at 192.168.4.16:8765"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAdvertiseValidation(t *testing.T) {
	if _, err := Advertise("", 8765, nil); err == nil {
		t.Error("Advertise with empty instance succeeded")
	}
	if _, err := Advertise("garden-pi", 0, nil); err == nil {
		t.Error("Advertise with port 0 succeeded")
	}
	var a *Advertisement
	a.Shutdown()
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}

func entry(instance string, port int, v4, v6 []net.IP, text ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = instance + ".local."
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = text
	return e
}
