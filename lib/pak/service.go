// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package pak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gatehouse-project/gatehouse/lib/clock"
	"github.com/gatehouse-project/gatehouse/lib/credhash"
	"github.com/gatehouse-project/gatehouse/lib/principal"
)

// Errors returned by Create and Verify.
var (
	// ErrSignatureInvalid covers every way a bearer token can fail to
	// prove possession: a bad or forged signature, and a hash mismatch
	// against the stored digest.
	ErrSignatureInvalid = errors.New("pak: token signature invalid")

	// ErrKeyRevoked means the key's row carries a revoked_at.
	ErrKeyRevoked = errors.New("pak: key revoked")

	// ErrTokenExpired means the key's expires_at has passed.
	ErrTokenExpired = errors.New("pak: key expired")

	// ErrLabelTooLong means the requested label exceeds
	// MaxLabelLength characters.
	ErrLabelTooLong = errors.New("pak: label too long")
)

// Config configures a Service.
type Config struct {
	// Keypair signs new tokens and verifies presented ones. Required.
	Keypair *Keypair

	// Store persists key rows. Required.
	Store Store

	// Clock supplies the current time. Nil means the real clock.
	Clock clock.Clock

	// Logger records lifecycle events (key IDs and token IDs only,
	// never raw tokens). Required.
	Logger *slog.Logger

	// Cache, when set, bounds store reads on the verification path.
	// Nil means every verification re-reads the store.
	Cache *VerifyCache

	// Toucher, when set, records last-used timestamps off the
	// verification critical path. Nil disables touching.
	Toucher *Toucher
}

// Service manages the personal API key lifecycle. Construct with New.
// Safe for concurrent use; the store is the only shared mutable state.
type Service struct {
	keypair *Keypair
	store   Store
	clock   clock.Clock
	logger  *slog.Logger
	cache   *VerifyCache
	toucher *Toucher
}

// New validates the config and returns a Service.
func New(config Config) (*Service, error) {
	if config.Keypair == nil {
		return nil, fmt.Errorf("pak: config Keypair is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("pak: config Store is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("pak: config Logger is required")
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		keypair: config.Keypair,
		store:   config.Store,
		clock:   clk,
		logger:  config.Logger,
		cache:   config.Cache,
		toucher: config.Toucher,
	}, nil
}

// Create mints a key for owner: fresh token ID, signed token, hashed
// secret, persisted row. The raw token is returned exactly once and is
// never stored or reconstructable; callers must hand it to the owner
// immediately. A nil ttl means the key never expires. The owner's role
// is captured on the row and stamped onto principals the key resolves
// to.
func (s *Service) Create(ctx context.Context, owner, role, label string, ttl *time.Duration) (string, Key, error) {
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return "", Key{}, ErrLabelTooLong
	}

	now := s.clock.Now()
	var expiresAt *time.Time
	if ttl != nil {
		expiry := now.Add(*ttl)
		expiresAt = &expiry
	}

	tokenID := uuid.New().String()
	raw, err := signToken(s.keypair.PrivateKey, owner, tokenID, now, expiresAt)
	if err != nil {
		return "", Key{}, fmt.Errorf("pak: signing token: %w", err)
	}

	key := Key{
		ID:          uuid.New().String(),
		OwnerUserID: owner,
		OwnerRole:   role,
		Label:       label,
		TokenID:     tokenID,
		SecretHash:  credhash.Sum([]byte(raw)),
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	if err := s.store.Insert(ctx, key); err != nil {
		return "", Key{}, fmt.Errorf("pak: persisting key: %w", err)
	}

	s.logger.Info("personal API key created",
		"key_id", key.ID,
		"owner", owner,
		"token_id", tokenID,
		"expires", expiresAt != nil,
	)
	return raw, key, nil
}

// Verify authenticates a bearer token. The order is fixed:
//
//  1. EdDSA signature against the public key. Any failure rejects
//     with no store access.
//  2. Extract the jti.
//  3. Row lookup by jti, through the cache when configured. Absent
//     rows return ErrKeyNotFound.
//  4. Constant-time hash comparison of the presented token against
//     the stored digest.
//  5. Row state: revoked returns ErrKeyRevoked, expired returns
//     ErrTokenExpired.
//  6. Async last-used touch, never on the critical path.
func (s *Service) Verify(ctx context.Context, bearer string) (principal.Principal, error) {
	claims, err := parseToken(s.keypair.PublicKey, bearer)
	if err != nil {
		return principal.Principal{}, err
	}

	key, err := s.lookup(ctx, claims.ID)
	if err != nil {
		return principal.Principal{}, err
	}

	if !credhash.Verify([]byte(bearer), key.SecretHash) {
		return principal.Principal{}, ErrSignatureInvalid
	}

	now := s.clock.Now()
	if key.RevokedAt != nil {
		return principal.Principal{}, ErrKeyRevoked
	}
	if !key.Active(now) {
		return principal.Principal{}, ErrTokenExpired
	}

	if s.toucher != nil {
		s.toucher.Record(key.ID, now)
	}

	return principal.Principal{
		UserID:         key.OwnerUserID,
		Role:           key.OwnerRole,
		CredentialKind: principal.KindPersonalAPIKey,
		CredentialID:   key.TokenID,
	}, nil
}

// Revoke sets revoked_at on the owner's key. Terminal and idempotent:
// revoking an already-revoked key succeeds and changes nothing. Keys
// owned by someone else return ErrKeyNotFound. The local verify cache
// entry is dropped immediately; remote verifiers learn through pushed
// notices or cache TTL expiry.
func (s *Service) Revoke(ctx context.Context, keyID, owner string) error {
	if err := s.store.Revoke(ctx, keyID, owner, s.clock.Now()); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.DropKeyID(keyID)
	}
	s.logger.Info("personal API key revoked", "key_id", keyID, "owner", owner)
	return nil
}

// List returns the owner's keys, newest first. Raw tokens are absent
// because they do not exist server-side.
func (s *Service) List(ctx context.Context, owner string) ([]Key, error) {
	return s.store.ListByOwner(ctx, owner)
}

// ApplyNotice verifies a pushed revocation notice and evicts the
// revoked token from the verify cache, making the revocation visible
// here before natural TTL expiry. The signature is the notice's only
// authentication: minting one requires the PAK private key.
func (s *Service) ApplyNotice(raw []byte) (Notice, error) {
	notice, err := VerifyNotice(s.keypair.PublicKey, raw)
	if err != nil {
		return Notice{}, err
	}
	if s.cache != nil {
		s.cache.Drop(notice.TokenID)
	}
	s.logger.Info("revocation notice applied", "token_id", notice.TokenID)
	return notice, nil
}

// lookup reads a key row by token ID, through the verify cache when
// one is configured.
func (s *Service) lookup(ctx context.Context, tokenID string) (Key, error) {
	if s.cache != nil {
		if key, ok := s.cache.Get(tokenID); ok {
			return key, nil
		}
	}
	key, err := s.store.GetByTokenID(ctx, tokenID)
	if err != nil {
		return Key{}, err
	}
	if s.cache != nil {
		s.cache.Put(key)
	}
	return key, nil
}
