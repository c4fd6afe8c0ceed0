package app

import (
	"fmt"
	"strings"
	"time"
	// Deadlines are entered in a named zone; embed the database for
	// images without /usr/share/zoneinfo.
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	coredatabase "github.com/m3rciful/coursebot/core/database"
)

// Config is the full configuration of the course bot.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	// Admins are Telegram ids promoted to ADMIN on every start.
	Admins []int64 `yaml:"admins" envconfig:"ADMIN_IDS"`
	// Timezone interprets deadlines typed by teachers; empty means UTC.
	Timezone string `yaml:"timezone" envconfig:"BOT_TIMEZONE"`

	location *time.Location
}

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	for _, id := range c.Admins {
		if id <= 0 {
			return fmt.Errorf("admins: invalid telegram id %d", id)
		}
	}
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	c.Timezone, c.location = tz, loc
	return nil
}

// CoreConfig exposes the shared bot configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Location returns the parsed timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
