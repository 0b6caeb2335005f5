// Package config loads, normalizes, and validates grila configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GRILA_API_TOKEN and GRILA_POSTGRES_DSN. The Config type centralizes every
// knob the daemon and CLI need: where uploads are staged, how the scoring
// worker is launched, how many jobs may run at once, and which result store
// backend to open.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, derived directories, and clear validation errors.
package config
