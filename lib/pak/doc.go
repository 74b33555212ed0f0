// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package pak issues, verifies, and revokes personal API keys: the
// long-lived bearer credentials for programmatic access.
//
// A personal API key is an EdDSA-signed JWT whose jti claim points at
// a persisted row. The raw signed token is returned to the owner
// exactly once, at creation; the server keeps only a one-way hash of
// it. Verification therefore proves two independent things: the
// signature proves the token was minted by this deployment's private
// key, and the hash comparison proves the caller holds the exact value
// the row was created with. A leaked database row alone is useless.
//
// Verification order is fixed: signature first (forged tokens cost no
// store lookup), then row lookup by jti, then the constant-time hash
// check, then revocation and expiry state. Last-used timestamps are
// recorded off the critical path by a Toucher; a failed touch never
// fails the request.
//
// Unlike sessions, revocation is server-side and terminal. A revoked
// key must stop verifying everywhere within the propagation window
// (60 seconds). The VerifyCache bounds staleness of positive lookups
// to at most that window, and signed revocation notices pushed between
// verifiers evict cache entries ahead of TTL expiry.
//
// Key exports:
//   - [Service]: create, verify, revoke, list.
//   - [Keypair]: the Ed25519 signing keypair, PEM on disk.
//   - [Store]: the persistence contract (implemented by lib/keystore).
//   - [Key]: the persisted row; [Key.Active] derives usability.
//   - [VerifyCache]: optional bounded-staleness lookup cache.
//   - [Toucher]: background last-used recorder.
//   - [Notice], [SignNotice], [VerifyNotice]: revocation push format.
package pak
