package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CLIConfig is the configuration for tallymesh-cli.
type CLIConfig struct {
	Server string `json:"server" yaml:"server"`
	Output string `json:"output" yaml:"output"` // table, json, yaml

	CAFile   string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`

	// Identity sent in the X-User-Name and X-User-Email headers.
	UserName  string `json:"user_name,omitempty" yaml:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty" yaml:"user_email,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: "http://localhost:5080",
		Output: "table",
	}
}

// DefaultPath returns the default CLI config file path.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tallymesh", "cli.yaml")
	}
	return filepath.Join(homeDir, ".tallymesh", "cli.yaml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Set assigns one key by its yaml name.
func (c *CLIConfig) Set(key, value string) error {
	switch key {
	case "server":
		c.Server = value
	case "output":
		c.Output = value
	case "ca_file":
		c.CAFile = value
	case "insecure":
		switch value {
		case "true", "1", "yes":
			c.Insecure = true
		case "false", "0", "no":
			c.Insecure = false
		default:
			return fmt.Errorf("invalid boolean %q for insecure", value)
		}
	case "user_name":
		c.UserName = value
	case "user_email":
		c.UserEmail = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
