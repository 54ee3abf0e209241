// Package config loads and validates the TOML configuration for the
// reconstruction pipeline. All recognized options are enumerated here so the
// rest of the pipeline receives one explicit structure instead of loose
// parameters.
package config
