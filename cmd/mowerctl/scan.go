package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/mowerble/internal/ble"
	"github.com/muurk/mowerble/internal/config"
	"github.com/muurk/mowerble/internal/discovery"
	"github.com/muurk/mowerble/internal/proxy"
	"github.com/muurk/mowerble/internal/server"
	"github.com/muurk/mowerble/internal/version"
)

// Discovery and proxy flags
var (
	scanTimeout      time.Duration
	browseTimeout    time.Duration
	serveScanTimeout time.Duration
	scanAll          bool
	serveHost        string
	servePort        int
	servePath        string
	serveCert        string
	serveKey         string
	serveInstance    string
	serveNoMDNS      bool
)

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", 10*time.Second, "How long to scan")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Show devices without a name too")
	proxiesCmd.Flags().DurationVar(&browseTimeout, "scan-timeout", discovery.DefaultScanTimeout, "How long to browse")

	proxyServeCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (empty = all interfaces)")
	proxyServeCmd.Flags().IntVar(&servePort, "port", 8765, "Listen port")
	proxyServeCmd.Flags().StringVar(&servePath, "path", discovery.DefaultPath, "Websocket path")
	proxyServeCmd.Flags().StringVar(&serveCert, "cert", "", "TLS certificate file (serve wss://)")
	proxyServeCmd.Flags().StringVar(&serveKey, "key", "", "TLS private key file")
	proxyServeCmd.Flags().StringVar(&serveInstance, "instance", "", "mDNS instance name (default: hostname)")
	proxyServeCmd.Flags().BoolVar(&serveNoMDNS, "no-mdns", false, "Do not advertise over mDNS")
	proxyServeCmd.Flags().DurationVar(&serveScanTimeout, "scan-timeout", proxy.DefaultScanTimeout, "Address lookup timeout per client")

	proxyCmd.AddCommand(proxyServeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(proxiesCmd)
	rootCmd.AddCommand(proxyCmd)
}

// scanCmd lists nearby Bluetooth devices
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby Bluetooth devices",
	Long: `Scan with the local Bluetooth adapter and list advertising devices.

Use the address shown here with --mower or 'mowerctl config add'.`,
	Example: `  # Scan for 10 seconds (default)
  mowerctl scan

  # Longer scan including unnamed devices
  mowerctl scan --scan-timeout 30s --all`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	log, err := newLogger(registry)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	ctx, cancelScan := context.WithTimeout(ctx, scanTimeout)
	defer cancelScan()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning for Bluetooth devices (timeout: %s)...\n\n", scanTimeout)

	var (
		mu   sync.Mutex
		seen = make(map[string]ble.Advertisement)
	)
	adapter := ble.New(log.Named("ble"))
	err = adapter.Scan(ctx, func(adv ble.Advertisement) bool {
		if adv.Name == "" && !scanAll {
			return true
		}
		mu.Lock()
		defer mu.Unlock()
		if prev, ok := seen[adv.Address]; !ok || prev.Name == "" {
			seen[adv.Address] = adv
		}
		return true
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		fmt.Fprintln(out, "No devices found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Make sure Bluetooth is switched on")
		fmt.Fprintln(out, "  - Wake the mower (open the lid or press a key)")
		fmt.Fprintln(out, "  - Close the manufacturer's app; the mower accepts one connection")
		fmt.Fprintln(out, "  - Try increasing --scan-timeout or use --all")
		return nil
	}

	devices := make([]ble.Advertisement, 0, len(seen))
	for _, adv := range seen {
		devices = append(devices, adv)
	}
	// Strongest signal first
	sort.Slice(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })

	fmt.Fprintf(out, "Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(out, "%d. %s\n", i+1, name)
		fmt.Fprintf(out, "   Address: %s\n", d.Address)
		fmt.Fprintf(out, "   RSSI:    %d dBm\n\n", d.RSSI)
	}
	fmt.Fprintln(out, "Use 'mowerctl config add NAME --address <address>' to save a mower")
	return nil
}

// proxiesCmd browses for GATT proxies
var proxiesCmd = &cobra.Command{
	Use:   "proxies",
	Short: "Find GATT proxies on the local network",
	Long: `Browse mDNS for GATT proxies started with 'mowerctl proxy serve'.

The instance name shown can be given to --proxy directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Browsing for GATT proxies (timeout: %s)...\n\n", browseTimeout)

		scanner := discovery.NewScanner()
		scanner.Timeout = browseTimeout
		proxies, err := scanner.Browse(ctx)
		if err != nil {
			return fmt.Errorf("browse failed: %w", err)
		}
		if len(proxies) == 0 {
			fmt.Fprintln(out, "No proxies found.")
			return nil
		}

		for i, p := range proxies {
			fmt.Fprintf(out, "%d. %s\n", i+1, p.Instance)
			fmt.Fprintf(out, "   URL:     %s\n", p.URL())
			if v := p.GetMetadata(discovery.TxtVersion); v != "" {
				fmt.Fprintf(out, "   Version: %s\n", v)
			}
			if a := p.GetMetadata(discovery.TxtAdapter); a != "" {
				fmt.Fprintf(out, "   Adapter: %s\n", a)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run a GATT proxy",
}

// proxyServeCmd exposes the local adapter over websockets
var proxyServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the local Bluetooth adapter to mowerctl on other machines",
	Long: `Serve the local Bluetooth adapter as a GATT proxy.

Run this on a machine within Bluetooth range of the mower (for example a
Raspberry Pi in the shed). Other machines then reach the mower with
--proxy. The proxy is advertised over mDNS unless --no-mdns is given.`,
	Example: `  # Serve on port 8765 and advertise as the hostname
  mowerctl proxy serve

  # Serve over TLS with a custom instance name
  mowerctl proxy serve --cert cert.pem --key key.pem --instance shed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		log, err := newLogger(registry)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		adapter := ble.New(log.Named("ble"))
		if err := adapter.Enable(); err != nil {
			return err
		}

		instance := ""
		if !serveNoMDNS {
			instance = serveInstance
			if instance == "" {
				host, err := os.Hostname()
				if err != nil {
					return fmt.Errorf("no --instance given and hostname unknown: %w", err)
				}
				instance, _, _ = strings.Cut(host, ".")
			}
		}

		handler := proxy.NewServer(adapter, adapter,
			proxy.WithServerLogger(log.Named("proxy")),
			proxy.WithServerScanTimeout(serveScanTimeout),
		)
		srv, err := server.New(&server.Config{
			Host:     serveHost,
			Port:     servePort,
			Path:     servePath,
			CertPath: serveCert,
			KeyPath:  serveKey,
			Instance: instance,
			Metadata: map[string]string{
				discovery.TxtVersion: version.Get().Version,
				discovery.TxtAdapter: "default",
			},
		}, handler, log.Named("server"))
		if err != nil {
			return err
		}
		if err := srv.Listen(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "GATT proxy listening on %s (Ctrl-C to stop)\n", srv.URL())
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return srv.Serve(ctx)
	},
}
