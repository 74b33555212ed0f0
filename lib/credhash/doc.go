// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package credhash is the one-way hashing primitive for stored
// credentials: API key secrets are persisted as digests, never as the
// signed token itself.
//
// Hashing is BLAKE3 in keyed mode with a fixed domain-separation key,
// unsalted. The inputs are high-entropy signed tokens generated by
// this system, so rainbow tables and per-entry salts buy nothing.
// That property does NOT hold for user-chosen passwords: password
// hashing needs an independent, purpose-built slow hash (argon2id,
// bcrypt) and must never go through this package.
//
// Verify recomputes the digest and compares with
// crypto/subtle.ConstantTimeCompare so verification latency does not
// depend on the position of the first differing byte.
//
// Key exports: [Digest], [Sum], [Verify], [ParseDigest].
package credhash
