// Package config loads and validates the untiswatch YAML configuration.
// Secrets are never stored in the file itself — fields ending in Env name
// the environment variable that holds the value. Watch provides fsnotify
// based hot reload for the settings that can change at runtime.
package config
