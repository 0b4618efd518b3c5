package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/mowerble/internal/ble"
	"github.com/muurk/mowerble/internal/config"
	"github.com/muurk/mowerble/internal/discovery"
	"github.com/muurk/mowerble/internal/link"
	"github.com/muurk/mowerble/internal/logging"
	"github.com/muurk/mowerble/internal/mower"
	"github.com/muurk/mowerble/internal/proxy"
	"github.com/muurk/mowerble/internal/server"
)

// PINEnvVar supplies the operator PIN when --pin is not given
const PINEnvVar = "MOWERBLE_PIN"

// Global flags
var (
	mowerArg      string
	proxyArg      string
	proxyCA       string
	proxyInsecure bool
	logLevel      string
	timeout       time.Duration
	pinArg        string
	channelArg    uint32
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&mowerArg, "mower", "m", "", "Mower profile name or Bluetooth address (default: the default profile)")
	rootCmd.PersistentFlags().StringVar(&proxyArg, "proxy", "", "GATT proxy URL (ws://, wss://) or mDNS instance name")
	rootCmd.PersistentFlags().StringVar(&proxyCA, "proxy-ca", "", "PEM file with the CA certificate of a wss:// proxy")
	rootCmd.PersistentFlags().BoolVar(&proxyInsecure, "proxy-insecure", false, "Skip certificate verification for wss:// proxies")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default is silent")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-command timeout (e.g., 10s); default from preferences")
	rootCmd.PersistentFlags().StringVar(&pinArg, "pin", "", `Operator PIN; "-" prompts for it (default: $`+PINEnvVar+`)`)
	rootCmd.PersistentFlags().Uint32Var(&channelArg, "channel", 0, "Channel id (default: profile or built-in)")
}

// target is a resolved mower selection
type target struct {
	name     string // profile name; empty for an ad-hoc address
	profile  *config.Mower
	registry *config.Registry
}

// env carries everything a command needs to reach a mower
type env struct {
	log      *zap.Logger
	registry *config.Registry
	target   target
	mower    *mower.Mower
}

func newLogger(registry *config.Registry) (*zap.Logger, error) {
	level := logLevel
	if level == "" && registry != nil && registry.Preferences != nil {
		level = registry.Preferences.LogLevel
	}
	return logging.New(level)
}

func resolveTarget(registry *config.Registry) (target, error) {
	name, profile, err := registry.Resolve(mowerArg)
	if err != nil {
		return target{}, fmt.Errorf("%w (use --mower or 'mowerctl config add')", err)
	}
	return target{name: name, profile: profile, registry: registry}, nil
}

// setup loads configuration and builds a mower session for the selected
// target. extra options are appended after the defaults.
func setup(ctx context.Context, extra ...mower.Option) (*env, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(registry)
	if err != nil {
		return nil, err
	}
	t, err := resolveTarget(registry)
	if err != nil {
		return nil, err
	}

	opts := []mower.Option{
		mower.WithLogger(log.Named("mower")),
		mower.WithTimeout(commandTimeout(registry)),
		mower.WithScanTimeout(registry.Preferences.ScanTimeoutDuration()),
	}

	pin, ok, err := resolvePIN()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, mower.WithPIN(pin))
	}

	transportOpts, err := transport(ctx, t, log)
	if err != nil {
		return nil, err
	}
	opts = append(opts, transportOpts.opts...)
	opts = append(opts, extra...)

	channel := mower.DefaultChannel
	if t.profile.Channel != 0 {
		channel = t.profile.Channel
	}
	if channelArg != 0 {
		channel = channelArg
	}

	return &env{
		log:      log,
		registry: registry,
		target:   t,
		mower:    mower.New(transportOpts.transport, channel, opts...),
	}, nil
}

func commandTimeout(registry *config.Registry) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return registry.Preferences.CommandTimeoutDuration()
}

type transportChoice struct {
	transport link.Transport
	opts      []mower.Option
}

// transport picks the local adapter or a proxy. --proxy wins over the
// profile's proxy.
func transport(ctx context.Context, t target, log *zap.Logger) (transportChoice, error) {
	proxyRef := proxyArg
	if proxyRef == "" {
		proxyRef = t.profile.Proxy
	}

	if proxyRef == "" {
		adapter := ble.New(log.Named("ble"))
		return transportChoice{
			transport: adapter,
			opts:      []mower.Option{mower.WithScanner(adapter), mower.WithGate(adapter)},
		}, nil
	}

	url, err := proxyURL(ctx, proxyRef)
	if err != nil {
		return transportChoice{}, err
	}
	pt := proxy.NewTransport(url, log.Named("proxy"))
	if strings.HasPrefix(url, "wss://") {
		tlsConfig, err := server.NewClientTLSConfig(proxyCA, proxyInsecure)
		if err != nil {
			return transportChoice{}, err
		}
		pt.SetTLSConfig(tlsConfig)
	}
	return transportChoice{
		transport: pt,
		opts:      []mower.Option{mower.WithScanner(pt)},
	}, nil
}

// proxyURL turns a --proxy value into a websocket URL, browsing mDNS for
// instance names
func proxyURL(ctx context.Context, ref string) (string, error) {
	if strings.Contains(ref, "://") {
		return ref, nil
	}
	found, err := discovery.NewScanner().Find(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("proxy %q: %w", ref, err)
	}
	return found.URL(), nil
}

// resolvePIN reads the PIN from --pin, the environment or the terminal
func resolvePIN() (uint16, bool, error) {
	text := pinArg
	if text == "" {
		text = os.Getenv(PINEnvVar)
	}
	if text == "" {
		return 0, false, nil
	}
	if text == "-" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return 0, false, errors.New("--pin - needs an interactive terminal")
		}
		fmt.Fprint(os.Stderr, "Operator PIN: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return 0, false, fmt.Errorf("read PIN: %w", err)
		}
		text = string(raw)
	}
	pin, err := parsePIN(text)
	if err != nil {
		return 0, false, err
	}
	return pin, true, nil
}

// parsePIN accepts one to four decimal digits
func parsePIN(text string) (uint16, error) {
	text = strings.TrimSpace(text)
	if len(text) == 0 || len(text) > 4 {
		return 0, fmt.Errorf("invalid PIN: must be 1 to 4 digits")
	}
	n, err := strconv.ParseUint(text, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid PIN: must be 1 to 4 digits")
	}
	return uint16(n), nil
}

// session connects, runs fn and records the mower in its profile
func (e *env) session(ctx context.Context, fn func(ctx context.Context, m *mower.Mower) error) error {
	defer func() { _ = e.log.Sync() }()

	return e.mower.Session(ctx, e.target.profile.Address, func(ctx context.Context, m *mower.Mower) error {
		if err := fn(ctx, m); err != nil {
			return err
		}
		e.remember(ctx, m)
		return nil
	})
}

// remember caches manufacturer and model in a named profile. It never
// fails the command.
func (e *env) remember(ctx context.Context, m *mower.Mower) {
	if e.target.name == "" {
		return
	}
	manufacturer, model := e.target.profile.Manufacturer, e.target.profile.Model
	if manufacturer == "" || model == "" {
		var err error
		if manufacturer, err = m.Manufacturer(ctx); err != nil {
			e.log.Debug("Manufacturer lookup failed", zap.Error(err))
			manufacturer = ""
		}
		if model, err = m.Model(ctx); err != nil {
			e.log.Debug("Model lookup failed", zap.Error(err))
			model = ""
		}
	}
	// Sessions such as the dashboard run for a long time; start from the
	// file as it is now so edits made meanwhile are not overwritten
	registry, err := config.ReloadRegistry()
	if err != nil {
		e.log.Warn("Failed to reload configuration", zap.Error(err))
		return
	}
	e.registry = registry
	if registry.GetMower(e.target.name) == nil {
		// Removed while we were connected
		return
	}
	e.registry.TouchMower(e.target.name, manufacturer, model)
	if err := e.registry.Save(); err != nil {
		e.log.Warn("Failed to save configuration", zap.Error(err))
	}
}

// headerParams describes the target for UI headers
func (e *env) headerParams() map[string]string {
	params := map[string]string{"Address": e.target.profile.Address}
	if e.target.name != "" {
		params["Mower"] = e.target.name
	}
	if ref := proxyArg; ref != "" {
		params["Proxy"] = ref
	} else if e.target.profile.Proxy != "" {
		params["Proxy"] = e.target.profile.Proxy
	}
	return params
}

// commandContext is cancelled by Ctrl-C so an interrupted command still
// disconnects cleanly
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
