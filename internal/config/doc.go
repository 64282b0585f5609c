// Package config loads and validates furrow's TOML configuration.
//
// Configuration lives at ~/.config/furrow/config.toml by default. Load
// falls back to repository defaults when no file exists, then normalizes
// paths and validates the result so every other package can rely on a
// well-formed Config.
package config
