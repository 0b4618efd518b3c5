// Mowerctl controls robotic lawnmowers over Bluetooth Low Energy.
//
// It talks to the mower either through the local Bluetooth adapter or
// through a GATT proxy on the network (see 'mowerctl proxy serve'), and
// keeps named mower profiles in a YAML configuration file.
//
// Usage:
//
//	mowerctl [command] [flags]
//
// See 'mowerctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/mowerble/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mowerctl",
	Short: "Robotic Lawnmower Bluetooth Control",
	Long: `Control robotic lawnmowers over Bluetooth Low Energy.

Commands reach the mower through the local Bluetooth adapter, or through a
GATT proxy running on a machine closer to the garden (--proxy).

Mowers can be saved as named profiles with 'mowerctl config add' and
selected with --mower. Without --mower the default profile is used.`,
	Version: version.Get().Version,
	Example: `  # Find the mower's Bluetooth address
  mowerctl scan

  # Save it as the default profile
  mowerctl config add garden --address 60:98:66:AA:BB:CC --default

  # Show its status
  mowerctl status

  # Mow for three hours regardless of the schedule
  mowerctl override --hours 3 --pin -`,
	SilenceUsage: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mowerctl %s\n", version.Full())
	},
}
