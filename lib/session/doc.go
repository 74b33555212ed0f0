// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package session issues and verifies browser session tokens.
//
// A session is a pair of HS256-signed JWTs: a short-lived access token
// presented on every request, and a longer-lived refresh token that can
// mint a replacement pair. The signing key for each kind is derived
// from one operator-provisioned master secret via HKDF-SHA256 with a
// distinct info string, so an access token can never verify as a
// refresh token even before the kind claim is read; verification
// reports such a cross-kind presentation as [ErrKindMismatch].
// Rotating the master secret rotates both keys at once. CSRF tokens ride along in
// each issued pair but are pure random values; double-submit
// comparison at the HTTP boundary needs no server key.
//
// Logout is cookie discard at the HTTP boundary. The server keeps no
// per-session state, so a token exfiltrated before logout remains
// verifiable until its expiry. That trade-off is accepted here because
// access tokens live minutes; personal API keys, which live
// indefinitely, get server-side revocation in the pak package instead.
//
// Key exports:
//   - [Service]: issues and verifies tokens. Immutable after
//     construction and safe for concurrent use.
//   - [Claims]: the JWT claims carried by both token kinds.
//   - [Pair]: access + refresh + CSRF token, the unit of session
//     establishment.
//   - [ErrSignatureInvalid], [ErrTokenExpired], [ErrKindMismatch]: the
//     verification failure taxonomy.
package session
