// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package httpboundary

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gatehouse-project/gatehouse/lib/pak"
)

// maxExpiryDays caps expires_in_days at 100 years. Anything beyond is
// a client bug, and day counts near the int64 nanosecond limit would
// overflow into a negative TTL and a key born expired.
const maxExpiryDays = 36525

// keyResponse is the metadata view of a key. It never includes the
// secret hash or the raw token; the raw token appears exactly once, in
// the create response.
type keyResponse struct {
	ID         string     `json:"id"`
	Label      string     `json:"label,omitempty"`
	TokenID    string     `json:"token_id"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

func keyJSON(key pak.Key) keyResponse {
	return keyResponse{
		ID:         key.ID,
		Label:      key.Label,
		TokenID:    key.TokenID,
		CreatedAt:  key.CreatedAt,
		ExpiresAt:  key.ExpiresAt,
		LastUsedAt: key.LastUsedAt,
		RevokedAt:  key.RevokedAt,
	}
}

type createKeyRequest struct {
	Label         string `json:"label"`
	ExpiresInDays *int   `json:"expires_in_days"`
}

type createKeyResponse struct {
	keyResponse

	// RawToken is the signed bearer token. Shown here and never
	// again; the server keeps only its hash.
	RawToken string `json:"raw_token"`
}

// handleListKeys returns the caller's keys, newest first. Metadata
// only.
func (a *API) handleListKeys(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	keys, err := a.keys.List(r.Context(), p.UserID)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	response := make([]keyResponse, 0, len(keys))
	for _, key := range keys {
		response = append(response, keyJSON(key))
	}
	writeJSON(w, http.StatusOK, response)
}

// handleCreateKey mints a new key for the caller. The raw token in
// the 201 response is the only time the credential is visible.
func (a *API) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var request createKeyRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&request)
	if err != nil && !errors.Is(err, io.EOF) {
		// An empty body is a valid request for an unlabeled,
		// never-expiring key.
		writeJSONError(w, http.StatusBadRequest, "bad_request")
		return
	}

	var ttl *time.Duration
	if request.ExpiresInDays != nil {
		days := *request.ExpiresInDays
		if days <= 0 || days > maxExpiryDays {
			writeJSONError(w, http.StatusUnprocessableEntity, "invalid_expiry")
			return
		}
		duration := time.Duration(days) * 24 * time.Hour
		ttl = &duration
	}

	raw, key, err := a.keys.Create(r.Context(), p.UserID, p.Role, request.Label, ttl)
	if err != nil {
		if errors.Is(err, pak.ErrLabelTooLong) {
			writeJSONError(w, http.StatusUnprocessableEntity, "label_too_long")
			return
		}
		a.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createKeyResponse{
		keyResponse: keyJSON(key),
		RawToken:    raw,
	})
}

// handleRevokeKey revokes one of the caller's keys. Revoking an
// already-revoked key is a 204 (idempotent); a key that does not
// exist for this caller is a 404, whether it belongs to someone else
// or to no one.
func (a *API) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	err := a.keys.Revoke(r.Context(), r.PathValue("id"), p.UserID)
	if err != nil {
		if errors.Is(err, pak.ErrKeyNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found")
			return
		}
		a.writeStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRevocationNotice accepts a signed revocation notice pushed by
// a peer verifier and evicts the named token from the verify cache.
// The Ed25519 signature is the authentication; no principal is
// involved. Any verification failure is a 403 with no detail.
func (a *API) handleRevocationNotice(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request")
		return
	}

	if _, err := a.keys.ApplyNotice(raw); err != nil {
		a.logger.Warn("revocation notice rejected",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		writeJSONError(w, http.StatusForbidden, "invalid_notice")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
