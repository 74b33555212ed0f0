// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package httpboundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gatehouse-project/gatehouse/lib/pak"
	"github.com/gatehouse-project/gatehouse/lib/principal"
	"github.com/gatehouse-project/gatehouse/lib/session"
)

// maxBodySize caps request bodies. The largest legitimate request is
// a create-key call, well under a kilobyte.
const maxBodySize = 64 << 10

// Config holds the collaborators the API routes over. All fields are
// required unless noted.
type Config struct {
	// Sessions issues, verifies, and rotates browser session tokens.
	Sessions *session.Service

	// Keys creates, verifies, and revokes personal API keys.
	Keys *pak.Service

	// Resolver maps extracted credentials to principals.
	Resolver *principal.Resolver

	// Logger receives the structured audit records for every
	// rejected request.
	Logger *slog.Logger

	// Development drops the Secure flag from cookies so a local
	// plain-HTTP setup can round-trip them. Never set in production.
	Development bool
}

// API owns the route table. Construct with NewAPI, mount via Handler.
type API struct {
	sessions    *session.Service
	keys        *pak.Service
	resolver    *principal.Resolver
	logger      *slog.Logger
	development bool
}

// NewAPI validates the configuration and returns the route owner.
func NewAPI(config Config) (*API, error) {
	if config.Sessions == nil {
		return nil, fmt.Errorf("httpboundary: config Sessions is required")
	}
	if config.Keys == nil {
		return nil, fmt.Errorf("httpboundary: config Keys is required")
	}
	if config.Resolver == nil {
		return nil, fmt.Errorf("httpboundary: config Resolver is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("httpboundary: config Logger is required")
	}

	return &API{
		sessions:    config.Sessions,
		keys:        config.Keys,
		resolver:    config.Resolver,
		logger:      config.Logger,
		development: config.Development,
	}, nil
}

// Handler returns the route table. Key management routes require a
// session principal; the internal revocation route authenticates by
// signature instead of principal.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/session/refresh", http.HandlerFunc(a.handleSessionRefresh))
	mux.Handle("POST /v1/session/logout", http.HandlerFunc(a.handleSessionLogout))
	mux.Handle("GET /v1/principal", a.RequirePrincipal(http.HandlerFunc(a.handlePrincipal)))

	mux.Handle("GET /v1/keys", a.RequirePrincipal(a.requireSession(http.HandlerFunc(a.handleListKeys))))
	mux.Handle("POST /v1/keys", a.RequirePrincipal(a.requireSession(http.HandlerFunc(a.handleCreateKey))))
	mux.Handle("DELETE /v1/keys/{id}", a.RequirePrincipal(a.requireSession(http.HandlerFunc(a.handleRevokeKey))))

	mux.Handle("POST /internal/revocations", http.HandlerFunc(a.handleRevocationNotice))

	return mux
}

// errorResponse is the uniform error body. The code vocabulary is
// deliberately small: unauthenticated, csrf_mismatch, session_required,
// label_too_long, invalid_expiry, not_found, bad_request, invalid_notice,
// store_busy, internal.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// writeStoreError maps a persistence failure onto the retryable vs
// permanent split: ErrBusy gets 503 with Retry-After so well-behaved
// clients back off and retry, everything else gets 500.
func (a *API) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, pak.ErrBusy) {
		a.logger.Warn("store busy",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "store_busy")
		return
	}

	a.logger.Error("persistence failure",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeJSONError(w, http.StatusInternalServerError, "internal")
}
