// Package config loads, normalizes, and validates the TOML configuration for
// marketreel. Defaults are applied first, then the config file, then
// environment overrides for credentials.
package config
