// Package config loads the goverify binary's YAML configuration and
// environment overrides.
package config
