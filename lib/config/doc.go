// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for gatehouse
// binaries.
//
// Configuration is loaded from a single file specified by either the
// GATEHOUSE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// ${VAR} and ${VAR:-default} patterns are expanded against the process
// environment over the raw file bytes before parsing; no other
// environment variable overrides any config value.
//
// The environment field (development, staging, production) gates
// cookie security defaults and validation strictness: production
// requires an explicit database path and refuses the sealed-secrets
// escape hatches that development tolerates.
//
// Key exports:
//
//   - [Config] -- top-level struct with Database, Secrets, Session, PAK
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other gatehouse packages.
package config
