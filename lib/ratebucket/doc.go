// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratebucket allocates rate-limit bucket keys for resolved
// principals.
//
// Gatehouse does not rate-limit requests itself; an external limiter
// does, keyed by the string this package computes. What matters is the
// allocation: a browser session shares one bucket per user, while
// every personal API key gets its own bucket keyed by token ID. One
// misbehaving automation key then exhausts only its own budget, never
// the owner's interactive session or their other keys.
//
// The API surface is one function:
//
//   - [Key] -- maps a principal to its bucket key, "session:<user>"
//     for session principals and "pak:<token id>" for key principals
//
// Key is pure and stateless. This package holds no counters and no
// clock; it exists so the session/key split is decided in exactly one
// place.
package ratebucket
