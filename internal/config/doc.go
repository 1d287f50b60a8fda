// Package config loads, normalizes, and validates camrec configuration.
//
// Configuration is read from TOML (~/.config/camrec/config.toml or ./camrec.toml),
// overlaid with CAMREC_* environment variables, then normalized so every path is
// absolute before validation runs. Default() holds the repository defaults,
// which mirror the pipeline constants the camera server has always used
// (300 frame threshold, 15 fps nominal rate, 15 second cadence, 3000 frame
// buffer, 3.2 duration correction).
//
// Keep new settings in the section of the subsystem that consumes them and add
// a matching entry to sample_config.toml.
package config
