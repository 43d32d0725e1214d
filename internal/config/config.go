// Package config loads and validates the daemon's TOML configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/maasd/maasd/internal/logging"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Resource ResourceConfig `toml:"resource"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	// Path of the event database file.
	Path string `toml:"path"`

	// DropOnStartup wipes every event partition when the daemon boots.
	DropOnStartup bool `toml:"drop_on_startup"`
}

type ResourceConfig struct {
	// Path of the engine resource bundle loaded at startup.
	Path string `toml:"path"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "./data/events.db"},
		Resource: ResourceConfig{Path: "./resource"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads the TOML file at path, filling unset fields from Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("server", "addr") {
		cfg.Server.Addr = raw.Server.Addr
	}
	if meta.IsDefined("database", "path") {
		cfg.Database.Path = raw.Database.Path
	}
	if meta.IsDefined("database", "drop_on_startup") {
		cfg.Database.DropOnStartup = raw.Database.DropOnStartup
	}
	if meta.IsDefined("resource", "path") {
		cfg.Resource.Path = raw.Resource.Path
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = raw.Log.Level
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("config missing server addr")
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		return fmt.Errorf("config missing database path")
	}
	if strings.TrimSpace(cfg.Resource.Path) == "" {
		return fmt.Errorf("config missing resource path")
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("config has unknown log level %q", cfg.Log.Level)
	}
	return nil
}
