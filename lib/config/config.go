// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Duration is a time.Duration that unmarshals from YAML scalars like
// "15m" or "168h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration for gatehouse binaries.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// ListenAddr is the host:port the HTTP boundary binds.
	ListenAddr string `yaml:"listen_addr"`

	// Database configures the key store.
	Database DatabaseConfig `yaml:"database"`

	// Secrets configures the secret resolution chain.
	Secrets SecretsConfig `yaml:"secrets"`

	// Session configures session token lifetimes.
	Session SessionConfig `yaml:"session"`

	// PAK configures the personal API key service.
	PAK PAKConfig `yaml:"pak"`
}

// DatabaseConfig configures the SQLite key store.
type DatabaseConfig struct {
	// Path is the SQLite database file. Required in production; the
	// development default lives under the state directory.
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections. Default: 4.
	PoolSize int `yaml:"pool_size"`
}

// SecretsConfig configures the ordered secret sources.
type SecretsConfig struct {
	// MountDir is the mounted-secrets directory, one file per secret.
	MountDir string `yaml:"mount_dir"`

	// LocalFile is the local development secrets file (KEY=value).
	// When absent, its ".age" sibling is used if AgeIdentity is set.
	LocalFile string `yaml:"local_file"`

	// EnvPrefix prefixes derived environment variable names.
	// Default: GATEHOUSE.
	EnvPrefix string `yaml:"env_prefix"`

	// AgeIdentity is the age identity file for unsealing the sealed
	// local secrets file. Optional.
	AgeIdentity string `yaml:"age_identity"`
}

// SessionConfig configures session token lifetimes.
type SessionConfig struct {
	// AccessTTL is the access token lifetime. Default: 15m.
	AccessTTL Duration `yaml:"access_ttl"`

	// RefreshTTL is the refresh token lifetime. Must exceed AccessTTL.
	// Default: 168h.
	RefreshTTL Duration `yaml:"refresh_ttl"`
}

// PAKConfig configures the personal API key service.
type PAKConfig struct {
	// KeyDir is the directory holding the Ed25519 signing keypair
	// (pak_signing_key.pem, pak_signing_key.pub.pem).
	KeyDir string `yaml:"key_dir"`

	// VerifyCacheTTL bounds how stale a cached verification may be.
	// Zero disables the cache entirely. Maximum 60s. Default: 10s.
	VerifyCacheTTL Duration `yaml:"verify_cache_ttl"`

	// TouchInterval is how often buffered last-used marks are flushed.
	// Default: 5s.
	TouchInterval Duration `yaml:"touch_interval"`
}

// Default returns the default configuration. These defaults are a base
// the loaded file overrides, not a substitute for one: Load and
// LoadFile require an explicit file.
func Default() *Config {
	return &Config{
		Environment: Development,
		ListenAddr:  "127.0.0.1:8443",
		Database: DatabaseConfig{
			Path:     "gatehouse.db",
			PoolSize: 4,
		},
		Secrets: SecretsConfig{
			MountDir:  "/run/secrets",
			LocalFile: "gatehouse-secrets.env",
			EnvPrefix: "GATEHOUSE",
		},
		Session: SessionConfig{
			AccessTTL:  Duration(15 * time.Minute),
			RefreshTTL: Duration(168 * time.Hour),
		},
		PAK: PAKConfig{
			KeyDir:         "keys",
			VerifyCacheTTL: Duration(10 * time.Second),
			TouchInterval:  Duration(5 * time.Second),
		},
	}
}

// Load loads configuration from the file named by the GATEHOUSE_CONFIG
// environment variable. There is no fallback: if the variable is not
// set, this fails.
func Load() (*Config, error) {
	path := os.Getenv("GATEHOUSE_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("GATEHOUSE_CONFIG environment variable not set; " +
			"set it to the path of your gatehouse.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path. ${VAR} and ${VAR:-default}
// patterns are expanded against the process environment before
// parsing; nothing else in the environment overrides config values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	expanded := expandVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// expandVars expands ${VAR} and ${VAR:-default} patterns against the
// process environment.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors. All problems are
// reported at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("listen_addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("database.pool_size must be at least 1, got %d", c.Database.PoolSize))
	}

	if c.Session.AccessTTL <= 0 {
		errs = append(errs, fmt.Errorf("session.access_ttl must be positive"))
	}
	if c.Session.RefreshTTL <= 0 {
		errs = append(errs, fmt.Errorf("session.refresh_ttl must be positive"))
	}
	if c.Session.AccessTTL > 0 && c.Session.RefreshTTL > 0 && c.Session.AccessTTL >= c.Session.RefreshTTL {
		errs = append(errs, fmt.Errorf("session.access_ttl (%s) must be shorter than session.refresh_ttl (%s)",
			c.Session.AccessTTL.Std(), c.Session.RefreshTTL.Std()))
	}

	if c.PAK.KeyDir == "" {
		errs = append(errs, fmt.Errorf("pak.key_dir is required"))
	}
	if c.PAK.VerifyCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("pak.verify_cache_ttl must not be negative"))
	}
	if c.PAK.VerifyCacheTTL.Std() > 60*time.Second {
		errs = append(errs, fmt.Errorf("pak.verify_cache_ttl must not exceed 60s, got %s", c.PAK.VerifyCacheTTL.Std()))
	}
	if c.PAK.TouchInterval <= 0 {
		errs = append(errs, fmt.Errorf("pak.touch_interval must be positive"))
	}

	if c.Environment == Production && c.Database.Path == "gatehouse.db" {
		errs = append(errs, fmt.Errorf("database.path must be set explicitly in production"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DevMode reports whether the environment relaxes cookie security
// (plain-HTTP cookies are only acceptable on a development loopback).
func (c *Config) DevMode() bool {
	return c.Environment == Development
}
