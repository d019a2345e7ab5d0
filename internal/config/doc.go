// Package config loads, normalizes, and validates lanecount configuration.
//
// Configuration is TOML. Load resolves the effective file path (explicit flag,
// ~/.config/lanecount/config.toml, then ./lanecount.toml), decodes over the
// defaults, expands ~ in every path field, and validates the result. All
// tunables that influence job semantics (retention window, processing timeout,
// detection bounds) are explicit fields here rather than ad hoc environment
// reads.
package config
