// Package config loads the client settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the client configuration. Command-line flags override it
type Config struct {
	ServerURL    string `env:"TGAUTH_SERVER"        envDefault:"http://localhost:8080"`
	DBPath       string `env:"TGAUTH_DB"            envDefault:"tgauth-client.db"`
	PasswordFile string `env:"TGAUTH_PASSWORD_FILE"`
}

// Load reads Config from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
