// Package config loads the terminal client's YAML configuration.
//
// The library itself takes configuration as plain values; this package
// exists for the opencode-tui binary. Files support ${VAR} environment
// expansion, and every field has a sensible default so a missing config
// file is not an error.
package config
