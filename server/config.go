package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type Config struct {
	Server   ServerSettings
	Database DatabaseSettings
	Auth     AuthSettings
}

// fileConfig mirrors Config with every block optional.
type fileConfig struct {
	Server   *ServerSettings   `hcl:"server,block"`
	Database *DatabaseSettings `hcl:"database,block"`
	Auth     *AuthSettings     `hcl:"auth,block"`
}

type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// DatabaseSettings with an empty URL selects the in-memory store.
type DatabaseSettings struct {
	URL         string `hcl:"url,optional"`
	AutoMigrate bool   `hcl:"auto_migrate,optional"`
}

// AuthSettings.Mode is "header" (trust X-Account-Address, dev only) or
// "http" (validate bearer tokens against URL).
type AuthSettings struct {
	Mode        string `hcl:"mode,optional"`
	URL         string `hcl:"url,optional"`
	AdminSecret string `hcl:"admin_secret,optional"`
}

func DefaultConfig() *Config {
	return &Config{
		Server:   ServerSettings{Port: 8080, LogLevel: "info"},
		Database: DatabaseSettings{},
		Auth:     AuthSettings{Mode: "header"},
	}
}

// LoadConfig reads an HCL file (defaults when it does not exist) and then
// applies environment overrides.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			parser := hclparse.NewParser()
			file, diags := parser.ParseHCLFile(filename)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
			}
			var fc fileConfig
			if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
				return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
			}
			if fc.Server != nil {
				cfg.Server = *fc.Server
			}
			if fc.Database != nil {
				cfg.Database = *fc.Database
			}
			if fc.Auth != nil {
				cfg.Auth = *fc.Auth
			}
			applyDefaults(cfg)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "header"
	}
}

func applyEnv(c *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		c.Database.AutoMigrate = asBool(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("AUTH_MODE"); v != "" {
		c.Auth.Mode = v
	}
	if v := os.Getenv("AUTH_URL"); v != "" {
		c.Auth.URL = v
	}
	if v := os.Getenv("ADMIN_SECRET"); v != "" {
		c.Auth.AdminSecret = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	switch c.Auth.Mode {
	case "header":
	case "http":
		if c.Auth.URL == "" {
			return fmt.Errorf("auth mode http needs an auth url")
		}
	default:
		return fmt.Errorf("invalid auth mode %q", c.Auth.Mode)
	}
	return nil
}

func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
