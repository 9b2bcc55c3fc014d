package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
)

// parseEnv overlays values from environment variables named by the env
// struct tags on Config. Variables that are unset or empty leave the field
// untouched.
func parseEnv(cfg *Config, environ map[string]string) error {
	if err := env.Parse(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// OSEnviron returns the process environment as a map for LoadConfig.
func OSEnviron() map[string]string {
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	return environ
}
