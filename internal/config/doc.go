// Package config loads and validates application settings from an
// optional config file and BATCHQ_-prefixed environment variables,
// exposing them as typed structs so the rest of the application never
// touches raw configuration sources.
package config
