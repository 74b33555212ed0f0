// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package principal defines the verified identity model and the
// resolver that converges both credential kinds into it.
//
// A [Principal] is what successful authentication produces: the user,
// their role, which kind of credential they presented (browser session
// or personal API key), and the credential's identity for rate-limit
// partitioning.
//
// Request credentials are modeled as a sealed union, [Credential]:
// exactly one of [CookieCredential], [BearerCredential], or
// [NoCredential]. [FromRequest] extracts the union from an HTTP
// request; when both a session cookie and a bearer header are present,
// the cookie wins (a browser-authenticated context takes precedence
// over an attached API key, which is typically a non-browser client).
//
// [Resolver.Resolve] pattern-matches the union exhaustively and
// delegates to the session or PAK verifier. Failures are typed, not
// stringly: [ErrNoCredential] means nothing was supplied (the boundary
// issues a challenge), [ErrInvalidCredential] wraps the specific
// verification failure (the boundary logs the reason and answers 401
// without disclosing it).
//
// Key exports:
//
//   - [Principal], [Kind] -- the verified identity model
//   - [Credential], [FromRequest] -- the request credential union
//   - [Resolver] -- one entry point for both credential kinds
//   - [ErrNoCredential], [ErrInvalidCredential] -- the two failure modes
//
// This package is imported by both token services (they produce
// Principal values) and depends on neither.
package principal
