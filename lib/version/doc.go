// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for gatehouse
// binaries.
//
// Version information is injected at build time via -ldflags, for
// example:
//
//	go build -ldflags "-X github.com/gatehouse-project/gatehouse/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
