// Package config defines the deployer settings and provides helpers to load,
// validate and save them in YAML format.
//
// Validate fills every unset field with its default, so a zero Config is usable.
package config
