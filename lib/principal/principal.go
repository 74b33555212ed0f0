// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package principal

// Kind identifies which credential kind produced a principal.
type Kind string

const (
	// KindSession marks a principal authenticated by a browser
	// session access token.
	KindSession Kind = "session"

	// KindPersonalAPIKey marks a principal authenticated by a
	// personal API key bearer token.
	KindPersonalAPIKey Kind = "personal-api-key"
)

// Principal is the normalized, verified identity produced by
// successful authentication.
type Principal struct {
	// UserID is the authenticated user.
	UserID string

	// Role is the user's role as embedded in the verified credential.
	Role string

	// CredentialKind records which credential kind authenticated the
	// request.
	CredentialKind Kind

	// CredentialID identifies the credential itself: the user ID for
	// sessions (one bucket per user), the token ID for personal API
	// keys (one bucket per key).
	CredentialID string
}
