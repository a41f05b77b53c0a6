// Package config loads, normalizes, and validates canvasbridge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the CC_*/LD_* environment
// variables the bridge has historically been configured with. New-style CC_*
// names take precedence over the legacy LD_* names when both are set.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
