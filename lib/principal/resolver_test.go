// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package principal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeSessions struct {
	principal Principal
	err       error
	gotToken  string
}

func (f *fakeSessions) VerifyAccess(token string) (Principal, error) {
	f.gotToken = token
	if f.err != nil {
		return Principal{}, f.err
	}
	return f.principal, nil
}

type fakeKeys struct {
	principal Principal
	err       error
	gotToken  string
}

func (f *fakeKeys) Verify(ctx context.Context, bearer string) (Principal, error) {
	f.gotToken = bearer
	if f.err != nil {
		return Principal{}, f.err
	}
	return f.principal, nil
}

func newTestResolver(t *testing.T, sessions *fakeSessions, keys *fakeKeys) *Resolver {
	t.Helper()
	resolver, err := NewResolver(Config{
		Sessions: sessions,
		Keys:     keys,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return resolver
}

func TestResolveCookie(t *testing.T) {
	sessions := &fakeSessions{principal: Principal{
		UserID:         "user-1",
		Role:           "admin",
		CredentialKind: KindSession,
		CredentialID:   "user-1",
	}}
	resolver := newTestResolver(t, sessions, &fakeKeys{})

	p, err := resolver.Resolve(context.Background(), CookieCredential{AccessToken: "tok"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sessions.gotToken != "tok" {
		t.Errorf("session verifier received %q, want %q", sessions.gotToken, "tok")
	}
	if p.UserID != "user-1" || p.CredentialKind != KindSession {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestResolveBearer(t *testing.T) {
	keys := &fakeKeys{principal: Principal{
		UserID:         "user-2",
		Role:           "member",
		CredentialKind: KindPersonalAPIKey,
		CredentialID:   "token-id-1",
	}}
	resolver := newTestResolver(t, &fakeSessions{}, keys)

	p, err := resolver.Resolve(context.Background(), BearerCredential{Token: "bearer-tok"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if keys.gotToken != "bearer-tok" {
		t.Errorf("key verifier received %q, want %q", keys.gotToken, "bearer-tok")
	}
	if p.CredentialKind != KindPersonalAPIKey || p.CredentialID != "token-id-1" {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestResolveNoCredential(t *testing.T) {
	sessions := &fakeSessions{}
	keys := &fakeKeys{}
	resolver := newTestResolver(t, sessions, keys)

	_, err := resolver.Resolve(context.Background(), NoCredential{})
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Resolve error = %v, want ErrNoCredential", err)
	}
	if sessions.gotToken != "" || keys.gotToken != "" {
		t.Error("no verifier should be consulted for NoCredential")
	}
}

func TestResolveRejectedSession(t *testing.T) {
	reason := errors.New("session: token has expired")
	resolver := newTestResolver(t, &fakeSessions{err: reason}, &fakeKeys{})

	_, err := resolver.Resolve(context.Background(), CookieCredential{AccessToken: "stale"})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Resolve error = %v, want ErrInvalidCredential", err)
	}
	if !errors.Is(err, reason) {
		t.Errorf("Resolve error should wrap the verifier's error, got %v", err)
	}
}

func TestResolveRejectedBearer(t *testing.T) {
	reason := errors.New("pak: key revoked")
	resolver := newTestResolver(t, &fakeSessions{}, &fakeKeys{err: reason})

	_, err := resolver.Resolve(context.Background(), BearerCredential{Token: "revoked"})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Resolve error = %v, want ErrInvalidCredential", err)
	}
	if !errors.Is(err, reason) {
		t.Errorf("Resolve error should wrap the verifier's error, got %v", err)
	}
}

func TestNewResolverValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		config   Config
		wantPart string
	}{
		{
			name:     "missing sessions",
			config:   Config{Keys: &fakeKeys{}, Logger: logger},
			wantPart: "Sessions",
		},
		{
			name:     "missing keys",
			config:   Config{Sessions: &fakeSessions{}, Logger: logger},
			wantPart: "Keys",
		},
		{
			name:     "missing logger",
			config:   Config{Sessions: &fakeSessions{}, Keys: &fakeKeys{}},
			wantPart: "Logger",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewResolver(test.config)
			if err == nil {
				t.Fatal("NewResolver should reject incomplete config")
			}
			if !strings.Contains(err.Error(), test.wantPart) {
				t.Errorf("error %q should mention %q", err, test.wantPart)
			}
		})
	}
}

type bogusCredential struct{}

func (bogusCredential) credential() {}

func TestResolvePanicsOnUnknownCredential(t *testing.T) {
	resolver := newTestResolver(t, &fakeSessions{}, &fakeKeys{})

	defer func() {
		if recover() == nil {
			t.Fatal("Resolve should panic on a credential type outside the union")
		}
	}()
	resolver.Resolve(context.Background(), bogusCredential{})
}
