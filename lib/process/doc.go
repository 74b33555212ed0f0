// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers shared by the
// gatehouse binaries. It covers the two raw I/O patterns that exist
// before or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized yet (pre-logger).
//   - Process exit after an unrecoverable error in main().
//
// It also constructs the standard service logger so every binary logs
// the same way: JSON to stderr, installed as the slog default.
package process
