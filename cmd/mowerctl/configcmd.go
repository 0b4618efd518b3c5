package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/mowerble/internal/config"
	"github.com/muurk/mowerble/internal/ui"
)

// Profile flags
var (
	profileAddress string
	profileChannel uint32
	profileProxy   string
	profileDefault bool
)

func init() {
	configAddCmd.Flags().StringVar(&profileAddress, "address", "", "Bluetooth address of the mower (required)")
	configAddCmd.Flags().Uint32Var(&profileChannel, "channel", 0, "Channel id (default: built-in)")
	configAddCmd.Flags().StringVar(&profileProxy, "proxy", "", "GATT proxy URL or mDNS instance name")
	configAddCmd.Flags().BoolVar(&profileDefault, "default", false, "Make this the default mower")
	_ = configAddCmd.MarkFlagRequired("address")

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configRemoveCmd)
	configCmd.AddCommand(configDefaultCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mower profiles",
	Long: `Manage saved mower profiles and preferences.

Profiles are stored in a YAML file in the user configuration directory.
Operator PINs are never stored.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mower profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		printProfiles(cmd.OutOrStdout(), registry)
		return nil
	},
}

var configAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add or update a mower profile",
	Args:  cobra.ExactArgs(1),
	Example: `  # Mower reached through the local adapter
  mowerctl config add garden --address 60:98:66:AA:BB:CC --default

  # Mower reached through a proxy in the shed
  mowerctl config add back --address 60:98:66:11:22:33 --proxy shed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		m := registry.EnsureMower(args[0])
		m.Address = profileAddress
		if cmd.Flags().Changed("channel") {
			m.Channel = profileChannel
		}
		if cmd.Flags().Changed("proxy") {
			m.Proxy = profileProxy
		}
		if profileDefault || len(registry.Mowers) == 1 {
			registry.Preferences.DefaultMower = args[0]
		}

		if err := registry.Save(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Mower saved", profileDetails(registry, args[0]))
		return nil
	},
}

var configRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a mower profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if !registry.RemoveMower(args[0]) {
			return fmt.Errorf("unknown mower %q", args[0])
		}
		if err := registry.Save(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Mower removed", map[string]string{
			"Name":   args[0],
			"Config": registry.Path(),
		})
		return nil
	},
}

var configDefaultCmd = &cobra.Command{
	Use:   "default NAME",
	Short: "Set the default mower",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if registry.GetMower(args[0]) == nil {
			return fmt.Errorf("unknown mower %q", args[0])
		}
		registry.Preferences.DefaultMower = args[0]
		if err := registry.Save(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Default mower set", profileDetails(registry, args[0]))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func printProfiles(out io.Writer, registry *config.Registry) {
	printer := ui.NewPrinter(out)
	names := registry.MowerNames()
	if len(names) == 0 {
		printer.Println("No mowers configured. Use 'mowerctl config add NAME --address <address>'.")
		return
	}

	for _, name := range names {
		m := registry.GetMower(name)
		marker := " "
		if name == registry.Preferences.DefaultMower {
			marker = "*"
		}
		lines := []string{
			fmt.Sprintf("%s %s", marker, name),
			fmt.Sprintf("    Address:   %s", m.Address),
		}
		if m.Channel != 0 {
			lines = append(lines, fmt.Sprintf("    Channel:   %d", m.Channel))
		}
		if m.Proxy != "" {
			lines = append(lines, fmt.Sprintf("    Proxy:     %s", m.Proxy))
		}
		if m.Model != "" {
			lines = append(lines, fmt.Sprintf("    Model:     %s %s", m.Manufacturer, m.Model))
		}
		if !m.LastSeen.IsZero() {
			lines = append(lines, fmt.Sprintf("    Last seen: %s", m.LastSeen.Format(time.RFC1123)))
		}
		printer.PrintLines(lines...)
	}
}

// profileDetails describes a saved profile for a result box
func profileDetails(registry *config.Registry, name string) map[string]string {
	details := map[string]string{"Name": name, "Config": registry.Path()}
	m := registry.GetMower(name)
	if m == nil {
		return details
	}
	details["Address"] = m.Address
	if m.Channel != 0 {
		details["Channel"] = fmt.Sprintf("%d", m.Channel)
	}
	if m.Proxy != "" {
		details["Proxy"] = m.Proxy
	}
	if name == registry.Preferences.DefaultMower {
		details["Default"] = "yes"
	}
	return details
}
