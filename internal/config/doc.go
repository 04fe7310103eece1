// Package config provides centralized configuration management for the agent
// daemon. It loads a single JSON file, fills in defaults, and resolves
// relative paths against the file's directory. Secrets never live here:
// fields such as PrivateKeyEnv name the environment variable that carries the
// actual value.
package config
