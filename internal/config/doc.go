// Package config loads, normalizes, and validates Bindery configuration.
//
// Configuration is TOML with sane defaults for every field, so a missing
// config file still yields a runnable daemon. Paths are expanded and made
// absolute during load; callers never see "~" values.
package config
