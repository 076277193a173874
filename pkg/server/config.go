package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config represents the structure of the server config file
type Config struct {
	Server ServerSection `toml:"server"`
	Auth   AuthSection   `toml:"auth"`
	Limits LimitsSection `toml:"limits"`
}

type ServerSection struct {
	HTTPPort     int    `toml:"http_port" env:"DILIGENTAL_HTTP_PORT"`
	DatabasePath string `toml:"database_path" env:"DILIGENTAL_DATABASE_PATH"`
}

type AuthSection struct {
	// JWTSecret is shared with the auth service that issues the tokens.
	// Prefer setting it through the environment over the config file.
	JWTSecret string `toml:"jwt_secret" env:"DILIGENTAL_JWT_SECRET"`
}

type LimitsSection struct {
	MaxMessageLength    int `toml:"max_message_length" env:"DILIGENTAL_MAX_MESSAGE_LENGTH"`
	WriteTimeoutSeconds int `toml:"write_timeout_seconds" env:"DILIGENTAL_WRITE_TIMEOUT_SECONDS"`
}

// WriteTimeout returns the per-write deadline for client connections.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Limits.WriteTimeoutSeconds) * time.Second
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Server: ServerSection{
			HTTPPort:     8090,
			DatabasePath: "~/.diligental/diligental.db",
		},
		Auth: AuthSection{
			JWTSecret: "",
		},
		Limits: LimitsSection{
			MaxMessageLength:    4096,
			WriteTimeoutSeconds: 10,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates a default one if
// not found, then applies environment variable overrides on top.
func LoadConfig(path string) (Config, error) {
	path, err := expandHome(path)
	if err != nil {
		return Config{}, err
	}

	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist, create default config. A write failure is not
		// fatal; the server can still run on defaults.
		writeDefaultConfig(path, config)
	} else if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# Diligental realtime server configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetDatabasePath returns the database path with ~ expanded
func (c *Config) GetDatabasePath() (string, error) {
	return expandHome(c.Server.DatabasePath)
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}
