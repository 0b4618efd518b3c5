// Package config manages the mowerctl user configuration file.
//
// The file stores named mower profiles (address, channel, optional GATT
// proxy, cached manufacturer and model) and application preferences.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/mowerble/config.yaml or $HOME/.config/mowerble/config.yaml
//   - macOS: $HOME/.config/mowerble/config.yaml
//   - Windows: %LOCALAPPDATA%\mowerble\config.yaml
//
// # Security
//
// The operator PIN is NEVER stored. mowerctl takes it from --pin, the
// MOWERBLE_PIN environment variable or an interactive prompt.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//
//	garden := registry.EnsureMower("garden")
//	garden.Address = "60:98:66:AA:BB:CC"
//	registry.Preferences.DefaultMower = "garden"
//
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes are protected by a mutex and go through a temporary file and
// rename.
package config
