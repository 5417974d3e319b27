// Package config loads, normalizes, and validates bundlewatch configuration data.
package config
