package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type GATT proxies advertise
	ServiceType = "_mowerble._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for proxy discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPath is the websocket path used when the TXT record has none
	DefaultPath = "/gatt"

	// TXT record keys
	TxtPath    = "path"
	TxtAdapter = "adapter"
	TxtVersion = "version"
	TxtTLS     = "tls" // "1" when the proxy serves wss://
)

// Scanner handles mDNS proxy discovery
type Scanner struct {
	// Timeout is the maximum time to wait for proxies
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Browse discovers all GATT proxies on the local network until the timeout
func (s *Scanner) Browse(ctx context.Context) ([]*Proxy, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	var (
		mu      sync.Mutex
		proxies []*Proxy
		seen    = make(map[string]bool)
	)

	go func() {
		defer close(done)
		for entry := range entries {
			p := parseServiceEntry(entry)
			if p == nil || seen[p.Instance] {
				continue
			}
			mu.Lock()
			seen[p.Instance] = true
			proxies = append(proxies, p)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes entries once the browse context ends
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Proxy(nil), proxies...), nil
}

// Find waits for the proxy with the given instance name
func (s *Scanner) Find(ctx context.Context, instance string) (*Proxy, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Proxy, 1)

	go func() {
		for entry := range entries {
			p := parseServiceEntry(entry)
			if p != nil && strings.EqualFold(p.Instance, instance) {
				select {
				case found <- p:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case p := <-found:
		return p, nil
	case <-ctx.Done():
		select {
		case p := <-found:
			return p, nil
		default:
		}
		return nil, fmt.Errorf("proxy %q not found within %s", instance, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Proxy.
// Returns nil if the entry cannot be dialled.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Proxy {
	if entry == nil || entry.Instance == "" || entry.Port == 0 {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	return &Proxy{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     parseTXT(entry.Text),
		DiscoveredAt: time.Now(),
	}
}

func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		if key != "" {
			metadata[key] = value
		}
	}
	return metadata
}

// Advertisement is a running mDNS registration
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers a GATT proxy on all interfaces until Shutdown
func Advertise(instance string, port int, metadata map[string]string) (*Advertisement, error) {
	if instance == "" {
		return nil, errors.New("advertise: empty instance name")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("advertise: invalid port %d", port)
	}

	text := TXT(metadata)
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, text, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// TXT renders metadata as sorted key=value TXT records
func TXT(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	text := make([]string, 0, len(keys))
	for _, k := range keys {
		text = append(text, k+"="+metadata[k])
	}
	return text
}
