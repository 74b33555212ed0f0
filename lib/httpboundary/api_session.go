// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package httpboundary

import (
	"net/http"

	"github.com/gatehouse-project/gatehouse/lib/principal"
	"github.com/gatehouse-project/gatehouse/lib/ratebucket"
)

// handleSessionRefresh exchanges a valid refresh cookie for a rotated
// pair. This is the only path that extends a session's life. The
// access cookie plays no part here; only the refresh token is
// verified.
func (a *API) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	if !a.csrfOK(r) {
		a.logger.Warn("csrf check failed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		writeJSONError(w, http.StatusForbidden, "csrf_mismatch")
		return
	}

	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	pair, err := a.sessions.Refresh(cookie.Value)
	if err != nil {
		a.logger.Info("session refresh rejected",
			"reason", failureReason(err),
			"remote_addr", r.RemoteAddr,
		)
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	a.WriteSessionCookies(w, pair)
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionLogout clears the session cookies. Tokens already
// issued remain valid until expiry; logout removes them from the
// browser, it does not revoke them. Requests that carry no session
// cookie still get a 204: logout is idempotent.
func (a *API) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	if _, viaCookie := principal.FromRequest(r).(principal.CookieCredential); viaCookie && !a.csrfOK(r) {
		writeJSONError(w, http.StatusForbidden, "csrf_mismatch")
		return
	}

	a.ClearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// principalResponse is the GET /v1/principal body.
type principalResponse struct {
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	CredentialKind string `json:"credential_kind"`
	BucketKey      string `json:"bucket_key"`
}

// handlePrincipal returns the resolved principal. Downstream services
// call this to learn who a forwarded credential belongs to.
func (a *API) handlePrincipal(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	writeJSON(w, http.StatusOK, principalResponse{
		UserID:         p.UserID,
		Role:           p.Role,
		CredentialKind: string(p.CredentialKind),
		BucketKey:      ratebucket.Key(p),
	})
}
