// Package config loads bindbridge CLI settings with koanf from defaults, a
// YAML file, BINDBRIDGE_ environment variables and command-line flags.
package config
