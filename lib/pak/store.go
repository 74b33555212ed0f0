// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package pak

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse-project/gatehouse/lib/credhash"
)

// MaxLabelLength is the longest label a key may carry, in characters.
const MaxLabelLength = 100

// Store contract errors. Implementations map their backend's failure
// modes onto these so the service and the management surface can
// classify without knowing the backend.
var (
	// ErrKeyNotFound means no row matched. Returned for absent token
	// IDs on lookup and for missing or foreign rows on revoke.
	ErrKeyNotFound = errors.New("pak: key not found")

	// ErrDuplicateTokenID means an insert collided with an existing
	// token_id. Not retryable.
	ErrDuplicateTokenID = errors.New("pak: token ID already exists")

	// ErrBusy means the store was transiently unavailable. Retryable.
	ErrBusy = errors.New("pak: store busy")
)

// Key is the persisted personal API key row. The raw signed token is
// never part of it; SecretHash is the only server-side representation
// of the credential.
type Key struct {
	// ID identifies the row. UUID, generated at creation. This is
	// the handle the management surface revokes by.
	ID string

	// OwnerUserID is the user the key acts as.
	OwnerUserID string

	// OwnerRole is the owner's role captured at creation time.
	// Verification stamps it onto the resolved principal.
	OwnerRole string

	// Label is an optional operator-facing name, at most
	// MaxLabelLength characters.
	Label string

	// TokenID is the jti embedded in the signed token. Unique and
	// immutable after creation.
	TokenID string

	// SecretHash is the one-way hash of the raw signed token.
	SecretHash credhash.Digest

	CreatedAt time.Time

	// ExpiresAt is nil for keys that never expire.
	ExpiresAt *time.Time

	// LastUsedAt is nil until the key first verifies.
	LastUsedAt *time.Time

	// RevokedAt is nil until revocation. Revocation is terminal.
	RevokedAt *time.Time
}

// Active reports whether the key is usable at the given instant: not
// revoked, and either never expiring or expiring strictly after now.
func (k Key) Active(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

// Store persists personal API key rows. All writes are single-row and
// atomic; implementations take no multi-row transactions and no global
// locks.
type Store interface {
	// Insert persists a new row. A token_id collision returns
	// ErrDuplicateTokenID.
	Insert(ctx context.Context, key Key) error

	// GetByTokenID returns the row for a token ID, or ErrKeyNotFound.
	GetByTokenID(ctx context.Context, tokenID string) (Key, error)

	// ListByOwner returns all of an owner's rows, newest first.
	ListByOwner(ctx context.Context, ownerUserID string) ([]Key, error)

	// Revoke sets revoked_at on the owner's row. Idempotent: an
	// already-revoked row is success. A missing row, or one owned by
	// someone else, returns ErrKeyNotFound.
	Revoke(ctx context.Context, id, ownerUserID string, at time.Time) error

	// TouchLastUsed updates last_used_at. Best-effort callers ignore
	// the error beyond logging.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}
