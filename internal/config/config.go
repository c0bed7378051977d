// Package config loads daemon configuration from the environment and an
// optional YAML file. Environment variables win over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the daemon settings.
type Config struct {
	// Listen is the HTTP API listen address.
	Listen string `yaml:"listen"`
	// DataDir holds the JSON stores and the audit database.
	DataDir string `yaml:"data_dir"`
	// ReportDir is where project reports are written.
	ReportDir string `yaml:"report_dir"`
	// MaxWorkers caps concurrent project runs.
	MaxWorkers int `yaml:"max_workers"`
	// Env selects the log format: "production" means JSON.
	Env string `yaml:"env"`
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then DOCBRIEF_* environment variables. A .env file in
// the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Listen:     "127.0.0.1:7478",
		DataDir:    filepath.Join(homeDir, ".docbrief"),
		MaxWorkers: 10,
		Env:        "development",
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DOCBRIEF_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("DOCBRIEF_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOCBRIEF_REPORT_DIR"); v != "" {
		c.ReportDir = v
	}
	if v := os.Getenv("DOCBRIEF_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxWorkers = n
		}
	}
	if v := os.Getenv("DOCBRIEF_ENV"); v != "" {
		c.Env = v
	}
}

// Validate fills derived defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.ReportDir == "" {
		c.ReportDir = filepath.Join(c.DataDir, "reports")
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.MaxWorkers)
	}
	return nil
}

// Production reports whether logs should use the JSON formatter.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// ProjectsPath is the project store file.
func (c *Config) ProjectsPath() string {
	return filepath.Join(c.DataDir, "projects.json")
}

// ToolsPath is the AI tool store file.
func (c *Config) ToolsPath() string {
	return filepath.Join(c.DataDir, "ai_tools.json")
}

// AuditPath is the run event database.
func (c *Config) AuditPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}
