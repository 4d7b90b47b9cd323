// Package config loads the service configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/model"
	"github.com/goccy/go-yaml"
)

// Defaults applied when the config file leaves fields unset.
const (
	DefaultListenAddr     = ":8080"
	DefaultDatabaseDriver = "sqlite"
	DefaultDatabaseDSN    = "ecoharmonogram.db"
	DefaultTimezone       = "Europe/Warsaw"
	DefaultRefreshHour    = 0
	DefaultRefreshMinute  = 1
	DefaultTimeoutSeconds = 30
)

type APIConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
}

type RefreshConfig struct {
	Hour     int    `yaml:"hour"`
	Minute   int    `yaml:"minute"`
	Timezone string `yaml:"timezone"`
}

type Config struct {
	ListenAddr     string          `yaml:"listenAddr"`
	API            APIConfig       `yaml:"api"`
	Database       DatabaseConfig  `yaml:"database"`
	Refresh        RefreshConfig   `yaml:"refresh"`
	Location       *model.Location `yaml:"location,omitempty"`
	MonitoredTypes []string        `yaml:"monitoredTypes,omitempty"`
}

// Load reads and parses the config file, filling in defaults. A missing
// file is not an error: everything has a default except the location,
// which can also live in the database.
func Load(filename string) (*Config, error) {
	c := &Config{}
	buf, err := os.ReadFile(filename)
	if err == nil {
		if err := yaml.Unmarshal(buf, c); err != nil {
			return nil, fmt.Errorf("parsing yaml: %v", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %v", err)
	}

	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Database.DSN == "" && c.Database.Driver == DefaultDatabaseDriver {
		c.Database.DSN = DefaultDatabaseDSN
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Refresh.Timezone == "" {
		c.Refresh.Timezone = DefaultTimezone
	}
	if c.Refresh.Hour == 0 && c.Refresh.Minute == 0 {
		c.Refresh.Hour = DefaultRefreshHour
		c.Refresh.Minute = DefaultRefreshMinute
	}
	return c, nil
}

// Timeout returns the per-request API timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Location loads the configured timezone.
func (r *RefreshConfig) Location() (*time.Location, error) {
	tz, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %v", r.Timezone, err)
	}
	return tz, nil
}
