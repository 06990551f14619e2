// Package config loads, normalizes, and validates imageseq configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the IMAGESEQ_EXPORT_DIR
// environment fallback. The Config type centralizes every knob the CLI and
// sequence controller need so export roots, scan filters and playback
// settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extensions, and clear validation errors.
package config
