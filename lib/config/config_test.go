// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
environment: production
listen_addr: "0.0.0.0:9000"
database:
  path: /var/lib/gatehouse/keys.db
  pool_size: 8
secrets:
  mount_dir: /etc/gatehouse/secrets
  local_file: /etc/gatehouse/secrets.env
  env_prefix: GH
  age_identity: /etc/gatehouse/identity.txt
session:
  access_ttl: 5m
  refresh_ttl: 720h
pak:
  key_dir: /var/lib/gatehouse/keys
  verify_cache_ttl: 30s
  touch_interval: 2s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Environment != Production {
		t.Errorf("Environment = %q, want production", cfg.Environment)
	}
	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Database.Path != "/var/lib/gatehouse/keys.db" || cfg.Database.PoolSize != 8 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Secrets.EnvPrefix != "GH" {
		t.Errorf("Secrets.EnvPrefix = %q", cfg.Secrets.EnvPrefix)
	}
	if got := cfg.Session.AccessTTL.Std(); got != 5*time.Minute {
		t.Errorf("AccessTTL = %s, want 5m", got)
	}
	if got := cfg.Session.RefreshTTL.Std(); got != 720*time.Hour {
		t.Errorf("RefreshTTL = %s, want 720h", got)
	}
	if got := cfg.PAK.VerifyCacheTTL.Std(); got != 30*time.Second {
		t.Errorf("VerifyCacheTTL = %s, want 30s", got)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileKeepsDefaultsForOmittedFields(t *testing.T) {
	path := writeConfigFile(t, "environment: development\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := Default()
	if cfg.ListenAddr != want.ListenAddr {
		t.Errorf("ListenAddr = %q, want default %q", cfg.ListenAddr, want.ListenAddr)
	}
	if cfg.Session.AccessTTL != want.Session.AccessTTL {
		t.Errorf("AccessTTL = %v, want default %v", cfg.Session.AccessTTL, want.Session.AccessTTL)
	}
	if cfg.PAK.TouchInterval != want.PAK.TouchInterval {
		t.Errorf("TouchInterval = %v, want default %v", cfg.PAK.TouchInterval, want.PAK.TouchInterval)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile on a missing file succeeded, want error")
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("GATEHOUSE_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Error("Load without GATEHOUSE_CONFIG succeeded, want error")
	}
}

func TestLoadReadsEnvVar(t *testing.T) {
	path := writeConfigFile(t, "listen_addr: \"127.0.0.1:7777\"\n")
	t.Setenv("GATEHOUSE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7777" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("GATEHOUSE_TEST_STATE", "/srv/state")
	os.Unsetenv("GATEHOUSE_TEST_UNSET")

	path := writeConfigFile(t, `
database:
  path: ${GATEHOUSE_TEST_STATE}/keys.db
secrets:
  mount_dir: ${GATEHOUSE_TEST_UNSET:-/run/secrets}
  local_file: ${GATEHOUSE_TEST_UNSET}
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database.Path != "/srv/state/keys.db" {
		t.Errorf("Database.Path = %q, want expanded value", cfg.Database.Path)
	}
	if cfg.Secrets.MountDir != "/run/secrets" {
		t.Errorf("Secrets.MountDir = %q, want default from ${VAR:-default}", cfg.Secrets.MountDir)
	}
	if cfg.Secrets.LocalFile != "" {
		t.Errorf("Secrets.LocalFile = %q, want empty for unset variable", cfg.Secrets.LocalFile)
	}
}

func TestInvalidDuration(t *testing.T) {
	path := writeConfigFile(t, "session:\n  access_ttl: fifteen-minutes\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile with an invalid duration succeeded, want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPart string
	}{
		{
			name:     "valid default",
			mutate:   func(c *Config) {},
			wantPart: "",
		},
		{
			name:     "bad environment",
			mutate:   func(c *Config) { c.Environment = "dogfood" },
			wantPart: "invalid environment",
		},
		{
			name:     "missing listen addr",
			mutate:   func(c *Config) { c.ListenAddr = "" },
			wantPart: "listen_addr is required",
		},
		{
			name:     "zero pool",
			mutate:   func(c *Config) { c.Database.PoolSize = 0 },
			wantPart: "pool_size",
		},
		{
			name:     "zero access ttl",
			mutate:   func(c *Config) { c.Session.AccessTTL = 0 },
			wantPart: "access_ttl must be positive",
		},
		{
			name:     "access not shorter than refresh",
			mutate:   func(c *Config) { c.Session.AccessTTL = c.Session.RefreshTTL },
			wantPart: "shorter than",
		},
		{
			name:     "cache ttl too long",
			mutate:   func(c *Config) { c.PAK.VerifyCacheTTL = Duration(2 * time.Minute) },
			wantPart: "must not exceed 60s",
		},
		{
			name:     "negative cache ttl",
			mutate:   func(c *Config) { c.PAK.VerifyCacheTTL = Duration(-time.Second) },
			wantPart: "must not be negative",
		},
		{
			name:     "zero touch interval",
			mutate:   func(c *Config) { c.PAK.TouchInterval = 0 },
			wantPart: "touch_interval must be positive",
		},
		{
			name:     "production needs explicit database path",
			mutate:   func(c *Config) { c.Environment = Production },
			wantPart: "explicitly in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantPart == "" {
				if err != nil {
					t.Fatalf("Validate: %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantPart) {
				t.Errorf("error %q does not mention %q", err, tt.wantPart)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = ""
	cfg.Session.AccessTTL = 0
	cfg.PAK.KeyDir = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate succeeded, want error")
	}
	for _, part := range []string{"listen_addr", "access_ttl", "key_dir"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("error %q does not mention %q", err, part)
		}
	}
}

func TestDevMode(t *testing.T) {
	cfg := Default()
	if !cfg.DevMode() {
		t.Error("DevMode() = false for development")
	}
	cfg.Environment = Production
	if cfg.DevMode() {
		t.Error("DevMode() = true for production")
	}
}
