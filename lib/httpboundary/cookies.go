// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package httpboundary

import (
	"fmt"
	"net/http"

	"github.com/gatehouse-project/gatehouse/lib/principal"
	"github.com/gatehouse-project/gatehouse/lib/session"
)

const (
	// RefreshTokenCookie carries the refresh token. Path-scoped to
	// the refresh route so browsers never send it anywhere else.
	RefreshTokenCookie = "refresh_token"

	// CSRFTokenCookie carries the double-submit token. Readable by
	// JS: the client echoes its value in the X-CSRF-Token header on
	// state-changing requests.
	CSRFTokenCookie = "csrf_token"

	// refreshCookiePath is the only path the refresh cookie rides
	// on.
	refreshCookiePath = "/v1/session/refresh"
)

// WriteSessionCookies sets the three session cookies from an issued
// pair. Cookie lifetimes match the token they carry; the CSRF cookie
// lives as long as the refresh token, since refresh is the last
// cookie-authenticated call a session can make.
func (a *API) WriteSessionCookies(w http.ResponseWriter, pair session.Pair) {
	secure := !a.development
	accessSeconds := int(a.sessions.AccessTTL().Seconds())
	refreshSeconds := int(a.sessions.RefreshTTL().Seconds())

	http.SetCookie(w, &http.Cookie{
		Name:     principal.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   accessSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		MaxAge:   refreshSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFTokenCookie,
		Value:    pair.CSRFToken,
		Path:     "/",
		MaxAge:   refreshSeconds,
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookies expires all three session cookies. Tokens
// already issued stay valid until their own expiry; clearing only
// removes them from the browser.
func (a *API) ClearSessionCookies(w http.ResponseWriter) {
	secure := !a.development

	http.SetCookie(w, &http.Cookie{
		Name:     principal.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// EstablishSession issues a fresh session pair for a verified user and
// writes the session cookies. The login collaborator (an OAuth
// callback living outside this module) calls this after it has
// verified the user's identity.
func (a *API) EstablishSession(w http.ResponseWriter, userID, role string) error {
	pair, err := a.sessions.IssuePair(userID, role)
	if err != nil {
		return fmt.Errorf("httpboundary: establishing session for %s: %w", userID, err)
	}
	a.WriteSessionCookies(w, pair)
	a.logger.Info("session established", "user_id", userID, "role", role)
	return nil
}
