// Package config loads and saves the castwatch configuration file.
//
// # Configuration File Location
//
// The file is read from --config when given, otherwise from:
//   - Linux: $XDG_CONFIG_HOME/castwatch/config.yaml or $HOME/.config/castwatch/config.yaml
//   - macOS: $HOME/.config/castwatch/config.yaml
//   - Windows: %LOCALAPPDATA%\castwatch\config.yaml
//
// A missing file is not an error: Load returns Default(). Keys left out of a
// file keep their defaults, so a file may hold only what it overrides:
//
//	version: 1
//	monitor:
//	  status_refresh: 2s
//	mqtt:
//	  enabled: true
//	  broker: tcp://broker.lan:1883
//
// # Security
//
// The MQTT password is stored in plain text. Save writes the file with mode
// 0600 inside a 0700 directory.
package config
