// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package keystore persists personal API key rows in SQLite. It is the
// production implementation of the pak.Store contract, backed by a
// lib/sqlitepool connection pool.
//
// One table, personal_api_keys, holds every key. Rows are never
// deleted: revocation sets revoked_at and the row stays as an audit
// record. All writes are single-row and atomic, so the store takes no
// multi-row transactions and no locks beyond SQLite's own.
//
// Timestamps are stored as Unix seconds. The secret hash is stored as
// hex text via credhash.Digest's text encoding. SQLite failure codes
// are mapped onto the pak contract errors: a unique-constraint
// violation on token_id becomes pak.ErrDuplicateTokenID, and
// SQLITE_BUSY-class failures become pak.ErrBusy so callers can
// distinguish retryable congestion from permanent faults.
//
// Key exports:
//
//   - Config: open-time parameters (path, pool size, logger)
//   - Keystore: the pak.Store implementation
//   - Open: opens the database and applies the schema
package keystore
