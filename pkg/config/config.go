// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

type loadOptions struct {
	allowMissing bool
}

// LoadOption tunes Load.
type LoadOption func(*loadOptions)

// AllowMissing makes a missing file keep the target's current values
// instead of failing. The target is still validated.
func AllowMissing() LoadOption {
	return func(o *loadOptions) { o.allowMissing = true }
}

// Load loads configuration from a YAML file with environment variable
// expansion. ${VAR:-fallback} uses fallback when VAR is unset or empty.
func Load[T any](filename string, target *T, opts ...LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist) && o.allowMissing:
		data = nil
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), target); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// ExpandEnv replaces ${VAR} and $VAR with environment values and
// resolves ${VAR:-fallback} defaults.
func ExpandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" || !hasFallback {
			return v
		}
		return fallback
	})
}
