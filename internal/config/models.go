package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int               `yaml:"version"`
	Mowers      map[string]*Mower `yaml:"mowers,omitempty"` // Keyed by profile name
	Preferences *Preferences      `yaml:"preferences,omitempty"`

	path string
}

// Mower is a saved mower profile.
type Mower struct {
	Address      string    `yaml:"address"`                // BLE address
	Channel      uint32    `yaml:"channel,omitempty"`      // Zero means the default channel
	Proxy        string    `yaml:"proxy,omitempty"`        // GATT proxy URL or mDNS instance name
	Manufacturer string    `yaml:"manufacturer,omitempty"` // Cached from the last connection
	Model        string    `yaml:"model,omitempty"`        // Cached from the last connection
	LastSeen     time.Time `yaml:"last_seen,omitempty"`
	// The operator PIN is NEVER stored
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultMower   string `yaml:"default_mower,omitempty"` // Profile used when --mower is not given
	CommandTimeout int    `yaml:"command_timeout"`         // Per-command timeout in seconds
	ScanTimeout    int    `yaml:"scan_timeout"`            // Address lookup timeout in seconds
	LogLevel       string `yaml:"log_level,omitempty"`     // Used when --log-level is not given
}

func defaultPreferences() *Preferences {
	return &Preferences{
		CommandTimeout: 10,
		ScanTimeout:    10,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     currentVersion,
		Mowers:      make(map[string]*Mower),
		Preferences: defaultPreferences(),
	}
}

// GetMower returns a profile by name, or nil.
func (r *Registry) GetMower(name string) *Mower {
	return r.Mowers[name]
}

// EnsureMower returns the named profile, creating an empty one if needed.
func (r *Registry) EnsureMower(name string) *Mower {
	if r.Mowers == nil {
		r.Mowers = make(map[string]*Mower)
	}
	if m, exists := r.Mowers[name]; exists {
		return m
	}
	m := &Mower{}
	r.Mowers[name] = m
	return m
}

// RemoveMower deletes a profile. The default is cleared when it pointed there.
func (r *Registry) RemoveMower(name string) bool {
	if _, ok := r.Mowers[name]; !ok {
		return false
	}
	delete(r.Mowers, name)
	if r.Preferences != nil && r.Preferences.DefaultMower == name {
		r.Preferences.DefaultMower = ""
	}
	return true
}

// MowerNames returns the profile names in order.
func (r *Registry) MowerNames() []string {
	names := make([]string, 0, len(r.Mowers))
	for name := range r.Mowers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve finds the profile for a --mower argument. An empty argument
// selects the default profile; an argument that is not a profile name
// but looks like a BLE address yields an ad-hoc profile.
func (r *Registry) Resolve(arg string) (string, *Mower, error) {
	if arg == "" {
		if r.Preferences == nil || r.Preferences.DefaultMower == "" {
			return "", nil, fmt.Errorf("no mower given and no default mower configured")
		}
		arg = r.Preferences.DefaultMower
	}
	if m, ok := r.Mowers[arg]; ok {
		if m.Address == "" {
			return "", nil, fmt.Errorf("mower %q has no address", arg)
		}
		return arg, m, nil
	}
	if strings.Count(arg, ":") == 5 || strings.Count(arg, "-") == 4 {
		return "", &Mower{Address: arg}, nil
	}
	return "", nil, fmt.Errorf("unknown mower %q", arg)
}

// TouchMower records a successful connection.
func (r *Registry) TouchMower(name, manufacturer, model string) {
	if name == "" {
		return
	}
	m := r.EnsureMower(name)
	m.LastSeen = time.Now()
	if manufacturer != "" {
		m.Manufacturer = manufacturer
	}
	if model != "" {
		m.Model = model
	}
}

// CommandTimeoutDuration returns the configured per-command timeout
func (p *Preferences) CommandTimeoutDuration() time.Duration {
	if p == nil || p.CommandTimeout <= 0 {
		return 0
	}
	return time.Duration(p.CommandTimeout) * time.Second
}

// ScanTimeoutDuration returns the configured scan timeout
func (p *Preferences) ScanTimeoutDuration() time.Duration {
	if p == nil || p.ScanTimeout <= 0 {
		return 0
	}
	return time.Duration(p.ScanTimeout) * time.Second
}
