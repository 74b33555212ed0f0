// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package pak

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gatehouse-project/gatehouse/lib/clock"
	"github.com/gatehouse-project/gatehouse/lib/credhash"
	"github.com/gatehouse-project/gatehouse/lib/principal"
)

// memStore is an in-memory Store for tests. It mirrors the contract's
// error semantics so service tests exercise the same classification
// the SQLite keystore produces.
type memStore struct {
	mu        sync.Mutex
	rows      map[string]Key // keyed by row ID
	insertErr error
	getCalls  int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]Key)}
}

func (m *memStore) Insert(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, row := range m.rows {
		if row.TokenID == key.TokenID {
			return ErrDuplicateTokenID
		}
	}
	m.rows[key.ID] = key
	return nil
}

func (m *memStore) GetByTokenID(ctx context.Context, tokenID string) (Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	for _, row := range m.rows {
		if row.TokenID == tokenID {
			return row, nil
		}
	}
	return Key{}, ErrKeyNotFound
}

func (m *memStore) ListByOwner(ctx context.Context, ownerUserID string) ([]Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []Key
	for _, row := range m.rows {
		if row.OwnerUserID == ownerUserID {
			keys = append(keys, row)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

func (m *memStore) Revoke(ctx context.Context, id, ownerUserID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OwnerUserID != ownerUserID {
		return ErrKeyNotFound
	}
	if row.RevokedAt == nil {
		row.RevokedAt = &at
		m.rows[id] = row
	}
	return nil
}

func (m *memStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return ErrKeyNotFound
	}
	row.LastUsedAt = &at
	m.rows[id] = row
	return nil
}

// mutate edits a stored row in place, bypassing the service. Used to
// simulate writes committed by another verifier.
func (m *memStore) mutate(id string, edit func(*Key)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[id]
	edit(&row)
	m.rows[id] = row
}

func (m *memStore) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

func testKeypair(t *testing.T) *Keypair {
	t.Helper()
	pair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return pair
}

func newTestService(t *testing.T) (*Service, *memStore, *clock.FakeClock) {
	t.Helper()
	store := newMemStore()
	fake := clock.Fake(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	service, err := New(Config{
		Keypair: testKeypair(t),
		Store:   store,
		Clock:   fake,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return service, store, fake
}

func TestCreateAndVerifyRoundTrip(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	raw, key, err := service.Create(ctx, "user-1", "admin", "deploy bot", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if raw == "" {
		t.Fatal("Create returned an empty raw token")
	}
	if key.ExpiresAt != nil {
		t.Error("nil TTL should mean no expiry")
	}
	if !credhash.Verify([]byte(raw), key.SecretHash) {
		t.Error("stored hash does not match the raw token")
	}

	p, err := service.Verify(ctx, raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.UserID != "user-1" || p.Role != "admin" {
		t.Errorf("principal = %+v, want the creating owner", p)
	}
	if p.CredentialKind != principal.KindPersonalAPIKey {
		t.Errorf("CredentialKind = %q, want %q", p.CredentialKind, principal.KindPersonalAPIKey)
	}
	if p.CredentialID != key.TokenID {
		t.Errorf("CredentialID = %q, want token ID %q", p.CredentialID, key.TokenID)
	}
}

func TestCreateLabelLength(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := service.Create(ctx, "user-1", "member", strings.Repeat("x", MaxLabelLength), nil); err != nil {
		t.Errorf("a label of exactly %d characters should be accepted: %v", MaxLabelLength, err)
	}
	if _, _, err := service.Create(ctx, "user-1", "member", strings.Repeat("x", MaxLabelLength+1), nil); !errors.Is(err, ErrLabelTooLong) {
		t.Errorf("Create error = %v, want ErrLabelTooLong", err)
	}
}

func TestCreateSurfacesStoreClassification(t *testing.T) {
	service, store, _ := newTestService(t)
	store.insertErr = ErrBusy

	_, _, err := service.Create(context.Background(), "user-1", "member", "", nil)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("Create error = %v, want wrapped ErrBusy", err)
	}
}

func TestVerifyForgedTokenSkipsStore(t *testing.T) {
	service, store, fake := newTestService(t)
	ctx := context.Background()

	// A token from a different deployment's keypair: valid JWT shape,
	// wrong signature.
	foreign, err := New(Config{
		Keypair: testKeypair(t),
		Store:   newMemStore(),
		Clock:   fake,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	forged, _, err := foreign.Create(ctx, "user-1", "admin", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := service.Verify(ctx, forged); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify error = %v, want ErrSignatureInvalid", err)
	}
	if calls := store.getCallCount(); calls != 0 {
		t.Errorf("forged token cost %d store lookups, want 0", calls)
	}
}

func TestVerifyGarbage(t *testing.T) {
	service, store, _ := newTestService(t)

	for _, bearer := range []string{"", "garbage", "a.b.c"} {
		if _, err := service.Verify(context.Background(), bearer); !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("Verify(%q) error = %v, want ErrSignatureInvalid", bearer, err)
		}
	}
	if calls := store.getCallCount(); calls != 0 {
		t.Errorf("garbage tokens cost %d store lookups, want 0", calls)
	}
}

func TestVerifyMissingRow(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	raw, key, err := service.Create(ctx, "user-1", "member", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	store.mu.Lock()
	delete(store.rows, key.ID)
	store.mu.Unlock()

	if _, err := service.Verify(ctx, raw); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Verify error = %v, want ErrKeyNotFound", err)
	}
}

func TestVerifyRejectsAlteredRowHash(t *testing.T) {
	// A compromised row whose hash no longer matches the presented
	// token must reject even though signature and lookup succeed.
	service, store, _ := newTestService(t)
	ctx := context.Background()

	raw, key, err := service.Create(ctx, "user-1", "member", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	store.mutate(key.ID, func(row *Key) {
		row.SecretHash = credhash.Sum([]byte("some other token"))
	})

	if _, err := service.Verify(ctx, raw); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify error = %v, want ErrSignatureInvalid", err)
	}
}

func TestVerifyRevoked(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	raw, key, err := service.Create(ctx, "user-1", "member", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := service.Verify(ctx, raw); err != nil {
		t.Fatalf("Verify before revocation: %v", err)
	}

	if err := service.Revoke(ctx, key.ID, "user-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := service.Verify(ctx, raw); !errors.Is(err, ErrKeyRevoked) {
		t.Errorf("Verify error = %v, want ErrKeyRevoked", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	service, store, fake := newTestService(t)
	ctx := context.Background()

	_, key, err := service.Create(ctx, "user-1", "member", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := service.Revoke(ctx, key.ID, "user-1"); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}
	firstRevokedAt := *store.rows[key.ID].RevokedAt

	fake.Advance(time.Hour)
	if err := service.Revoke(ctx, key.ID, "user-1"); err != nil {
		t.Fatalf("second Revoke should succeed: %v", err)
	}
	if !store.rows[key.ID].RevokedAt.Equal(firstRevokedAt) {
		t.Error("second Revoke must not move revoked_at")
	}
}

func TestRevokeForeignKey(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	raw, key, err := service.Create(ctx, "user-1", "member", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := service.Revoke(ctx, key.ID, "user-2"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Revoke error = %v, want ErrKeyNotFound", err)
	}
	if _, err := service.Verify(ctx, raw); err != nil {
		t.Errorf("a failed foreign revoke must not disturb the key: %v", err)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	service, _, fake := newTestService(t)
	ctx := context.Background()

	ttl := time.Hour
	raw, _, err := service.Create(ctx, "user-1", "member", "", &ttl)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fake.Advance(ttl - time.Second)
	if _, err := service.Verify(ctx, raw); err != nil {
		t.Fatalf("key should verify one second before expiry: %v", err)
	}

	fake.Advance(2 * time.Second)
	if _, err := service.Verify(ctx, raw); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyNeverExpires(t *testing.T) {
	service, _, fake := newTestService(t)
	ctx := context.Background()

	raw, _, err := service.Create(ctx, "user-1", "member", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fake.Advance(400 * 24 * time.Hour)
	if _, err := service.Verify(ctx, raw); err != nil {
		t.Errorf("a key without expiry should verify after 400 days: %v", err)
	}
}

func TestVerifyRecordsLastUsed(t *testing.T) {
	store := newMemStore()
	fake := clock.Fake(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	toucher, err := NewToucher(ToucherConfig{Store: store, Clock: fake, Logger: logger})
	if err != nil {
		t.Fatalf("NewToucher: %v", err)
	}
	service, err := New(Config{
		Keypair: testKeypair(t),
		Store:   store,
		Clock:   fake,
		Logger:  logger,
		Toucher: toucher,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	raw, key, err := service.Create(ctx, "user-1", "member", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := service.Verify(ctx, raw); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Close drains and flushes synchronously.
	toucher.Close()

	store.mu.Lock()
	lastUsed := store.rows[key.ID].LastUsedAt
	store.mu.Unlock()
	if lastUsed == nil {
		t.Fatal("last_used_at was never touched")
	}
	if !lastUsed.Equal(fake.Now()) {
		t.Errorf("last_used_at = %v, want %v", lastUsed, fake.Now())
	}
}

func TestList(t *testing.T) {
	service, _, fake := newTestService(t)
	ctx := context.Background()

	_, first, err := service.Create(ctx, "user-1", "member", "older", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fake.Advance(time.Minute)
	_, second, err := service.Create(ctx, "user-1", "member", "newer", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := service.Create(ctx, "user-2", "member", "foreign", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	keys, err := service.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("List returned %d keys, want 2", len(keys))
	}
	if keys[0].ID != second.ID || keys[1].ID != first.ID {
		t.Errorf("List order = [%s %s], want newest first", keys[0].Label, keys[1].Label)
	}
}
