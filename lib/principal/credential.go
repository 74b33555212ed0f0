// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package principal

import (
	"net/http"
	"strings"
)

// AccessTokenCookie is the cookie carrying the session access token.
const AccessTokenCookie = "access_token"

// Credential is the sealed union of request credentials. Exactly three
// types satisfy it: [CookieCredential], [BearerCredential], and
// [NoCredential]. The unexported marker method keeps the union closed:
// a type switch over these three cases is exhaustive.
type Credential interface {
	credential()
}

// CookieCredential is a session access token presented in the
// access_token cookie.
type CookieCredential struct {
	AccessToken string
}

// BearerCredential is a personal API key presented in an
// Authorization: Bearer header.
type BearerCredential struct {
	Token string
}

// NoCredential means the request carried neither credential kind.
type NoCredential struct{}

func (CookieCredential) credential() {}
func (BearerCredential) credential() {}
func (NoCredential) credential()     {}

// FromRequest extracts the request's credential. When both an
// access_token cookie and a bearer header are present, the cookie
// wins. An Authorization header without the Bearer scheme counts as
// no credential.
func FromRequest(r *http.Request) Credential {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return CookieCredential{AccessToken: cookie.Value}
	}

	authorization := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok && token != "" {
		return BearerCredential{Token: token}
	}

	return NoCredential{}
}
