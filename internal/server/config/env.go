package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable name declared in Config's env tags.
const EnvPrefix = "DAVKEEPER_"

// parseEnv overrides fields whose DAVKEEPER_* variable is set; unset
// variables leave the current value alone.
func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// DotEnvFile is read by LoadConfig when present.
const DotEnvFile = ".env"

// loadDotEnv exports the variables in path into the process environment.
// Variables that are already set win; a missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
