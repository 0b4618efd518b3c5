package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/mowerble/internal/dashboard"
	"github.com/muurk/mowerble/internal/mower"
)

var dashboardInterval time.Duration

func init() {
	dashboardCmd.Flags().DurationVar(&dashboardInterval, "interval", dashboard.DefaultInterval, "Refresh interval (0 disables automatic refresh)")
	rootCmd.AddCommand(dashboardCmd)
}

// dashboardCmd keeps a connection open and shows live status
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive live status and controls",
	Long: `Stay connected to the mower, refresh its status periodically and
control it from the keyboard: override, pause, resume and park.`,
	Example: `  # Dashboard for the default mower, refreshing every 10 seconds
  mowerctl dashboard --interval 10s`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}

	title := e.target.name
	if title == "" {
		title = e.target.profile.Address
	}

	err = e.session(ctx, func(ctx context.Context, m *mower.Mower) error {
		return dashboard.Run(ctx, m, title, dashboardInterval)
	})
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
