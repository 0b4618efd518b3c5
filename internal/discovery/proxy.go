package discovery

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Proxy is a GATT proxy found on the local network
type Proxy struct {
	// Instance is the advertised instance name (e.g., "garden-pi")
	Instance string

	// Hostname is the mDNS hostname (e.g., "garden-pi.local.")
	Hostname string

	// IP is the address to dial, IPv4 preferred
	IP string

	// Port is the websocket port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "path=/gatt", "adapter=hci0", "version=v0.3.0", "tls=1"
	Metadata map[string]string

	// DiscoveredAt is when the proxy was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the proxy
func (p *Proxy) String() string {
	return fmt.Sprintf("GATT proxy %s (%s) at %s", p.Instance, p.Hostname, net.JoinHostPort(p.IP, strconv.Itoa(p.Port)))
}

// URL returns the websocket URL of the proxy
func (p *Proxy) URL() string {
	path := p.GetMetadata(TxtPath)
	if path == "" {
		path = DefaultPath
	}
	scheme := "ws"
	if p.GetMetadata(TxtTLS) == "1" {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(p.IP, strconv.Itoa(p.Port)),
		Path:   path,
	}
	return u.String()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Proxy) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
