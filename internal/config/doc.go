// Package config provides configuration management for spritefetch.
//
// This package handles:
//   - Default configuration values
//   - Loading settings from a YAML file and SPRITEFETCH_* environment variables
//   - Saving settings back to YAML
//   - Passing settings to worker processes
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// threads strategy, 8 concurrent fetches, 25s timeout, ".png" files
//
// # Loading
//
//	settings, err := config.Load("spritefetch.yaml")
//
// Nested keys map to environment variables with underscores, so
// columns.url is overridden by SPRITEFETCH_COLUMNS_URL.
package config
