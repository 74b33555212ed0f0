// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpboundary is the HTTP edge of gatehouse: cookie and
// bearer credential intake, CSRF enforcement, the authentication
// middleware, and the session and key management routes.
//
// The boundary normalizes every verification failure to a single
// response, 401 {"error":"unauthenticated"}. The status and body never
// reveal whether a credential was forged, expired, revoked, or simply
// unknown; distinguishing those would hand an attacker an oracle. The
// specific reason is retained in the structured log on every
// rejection.
//
// Browser sessions ride three cookies: access_token and refresh_token
// (HttpOnly, Secure outside development, SameSite=Lax; the refresh
// cookie is path-scoped to the refresh route) plus a JS-readable
// csrf_token. State-changing cookie requests must echo the csrf_token
// value in an X-CSRF-Token header; the two are compared in constant
// time. Bearer (personal API key) requests carry no cookies and skip
// CSRF entirely.
//
// Every authenticated response carries an X-RateLimit-Bucket header
// with the principal's bucket key for the external limiter.
//
// Key exports:
//
//   - Server: TCP listener lifecycle with readiness signal and
//     graceful shutdown
//   - API: the route table over the session service, key service, and
//     principal resolver
//   - API.RequirePrincipal: authentication middleware
//   - API.EstablishSession: issues a session pair and writes cookies,
//     for the external login collaborator
//   - PrincipalFrom: recovers the authenticated principal from a
//     request context
package httpboundary
