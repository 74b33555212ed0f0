// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package httpboundary

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gatehouse-project/gatehouse/lib/pak"
	"github.com/gatehouse-project/gatehouse/lib/principal"
	"github.com/gatehouse-project/gatehouse/lib/ratebucket"
	"github.com/gatehouse-project/gatehouse/lib/session"
)

const (
	// CSRFHeader must echo the csrf_token cookie on state-changing
	// cookie-authenticated requests.
	CSRFHeader = "X-CSRF-Token"

	// RateBucketHeader carries the principal's rate-limit bucket key
	// for the external limiter.
	RateBucketHeader = "X-RateLimit-Bucket"
)

// principalKey is the context key for the resolved principal.
type principalKey struct{}

// PrincipalFrom returns the principal RequirePrincipal stored in the
// request context, and whether one is present.
func PrincipalFrom(ctx context.Context) (principal.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal.Principal)
	return p, ok
}

// RequirePrincipal authenticates the request before next runs. It
// extracts the credential, enforces CSRF on state-changing cookie
// requests, resolves the credential to a principal, stamps the
// rate-limit bucket header, and threads the principal through the
// request context.
//
// Every resolution failure gets the same response: 401 with body
// {"error":"unauthenticated"}. The taxonomy reason goes to the log
// only.
func (a *API) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := principal.FromRequest(r)

		if _, viaCookie := credential.(principal.CookieCredential); viaCookie && stateChanging(r.Method) {
			if !a.csrfOK(r) {
				a.logger.Warn("csrf check failed",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeJSONError(w, http.StatusForbidden, "csrf_mismatch")
				return
			}
		}

		resolved, err := a.resolver.Resolve(r.Context(), credential)
		if err != nil {
			a.logger.Info("request rejected",
				"reason", failureReason(err),
				"credential", credentialLabel(credential),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		w.Header().Set(RateBucketHeader, ratebucket.Key(resolved))
		ctx := context.WithValue(r.Context(), principalKey{}, resolved)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSession gates key management behind a session principal. A
// key cannot manage keys: a stolen PAK must not be able to mint or
// revoke credentials.
func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if p.CredentialKind != principal.KindSession {
			a.logger.Warn("key management denied to non-session principal",
				"user_id", p.UserID,
				"credential_kind", p.CredentialKind,
				"method", r.Method,
				"path", r.URL.Path,
			)
			writeJSONError(w, http.StatusForbidden, "session_required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// csrfOK reports whether the request's X-CSRF-Token header matches its
// csrf_token cookie. Constant-time comparison; absence of either side
// fails.
func (a *API) csrfOK(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFTokenCookie)
	if err != nil || cookie.Value == "" {
		return false
	}
	header := r.Header.Get(CSRFHeader)
	if header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) == 1
}

// stateChanging reports whether a method can mutate state. GET, HEAD,
// and OPTIONS skip the CSRF gate; everything else takes it.
func stateChanging(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// failureReason maps a resolution failure to its audit label. The
// label never reaches the response body.
func failureReason(err error) string {
	switch {
	case errors.Is(err, principal.ErrNoCredential):
		return "no_credential"
	case errors.Is(err, session.ErrTokenExpired), errors.Is(err, pak.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, session.ErrKindMismatch):
		return "token_kind_mismatch"
	case errors.Is(err, pak.ErrKeyRevoked):
		return "key_revoked"
	case errors.Is(err, pak.ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, session.ErrSignatureInvalid), errors.Is(err, pak.ErrSignatureInvalid):
		return "signature_invalid"
	default:
		return "error"
	}
}

// credentialLabel names the credential shape for audit logs.
func credentialLabel(credential principal.Credential) string {
	switch credential.(type) {
	case principal.CookieCredential:
		return "cookie"
	case principal.BearerCredential:
		return "bearer"
	default:
		return "none"
	}
}
