// Package config loads application configuration from environment variables
// with a DATAPULSE prefix, optionally overlaid by a YAML file. Defaults are
// declared on the struct tags so a bare environment still yields a runnable
// configuration.
package config
