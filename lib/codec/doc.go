// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Gatehouse's standard CBOR encoding
// configuration.
//
// Gatehouse uses two serialization formats with a clear boundary:
//
//   - JSON for the external HTTP API: session and key management
//     endpoints, error bodies, CLI output.
//   - CBOR for the internal verifier-to-verifier protocol: signed
//     revocation notices pushed between deployments.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, so an Ed25519
// signature computed over an encoded payload stays verifiable no
// matter which process re-encodes it.
//
// Internal wire types use `cbor:"N,keyasint"` struct tags for compact,
// rename-proof field keys.
package codec
