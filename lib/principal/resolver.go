// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package principal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Errors returned by Resolve.
var (
	// ErrNoCredential means the request carried no credential at all.
	// Handlers translate this to 401 without consulting any verifier.
	ErrNoCredential = errors.New("principal: no credential presented")

	// ErrInvalidCredential means a credential was presented but failed
	// verification. It wraps the verifier's error so callers can still
	// distinguish expiry from signature failure when they need to.
	ErrInvalidCredential = errors.New("principal: invalid credential")
)

// SessionVerifier verifies a session access token and returns the
// principal it authenticates. Implemented by the session service.
type SessionVerifier interface {
	VerifyAccess(token string) (Principal, error)
}

// BearerVerifier verifies a personal API key bearer token and returns
// the principal it authenticates. Implemented by the key service.
// Verification may touch storage, so it takes a context.
type BearerVerifier interface {
	Verify(ctx context.Context, bearer string) (Principal, error)
}

// Config configures a Resolver.
type Config struct {
	// Sessions verifies access tokens from the access_token cookie.
	// Required.
	Sessions SessionVerifier

	// Keys verifies bearer tokens from the Authorization header.
	// Required.
	Keys BearerVerifier

	// Logger records rejected credentials (kind and reason, never the
	// token itself). Required.
	Logger *slog.Logger
}

// Resolver maps extracted request credentials to authenticated
// principals. It owns the dispatch from credential kind to verifier;
// it performs no verification itself.
type Resolver struct {
	sessions SessionVerifier
	keys     BearerVerifier
	logger   *slog.Logger
}

// NewResolver validates the config and returns a Resolver.
func NewResolver(config Config) (*Resolver, error) {
	if config.Sessions == nil {
		return nil, fmt.Errorf("principal: config Sessions is required")
	}
	if config.Keys == nil {
		return nil, fmt.Errorf("principal: config Keys is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("principal: config Logger is required")
	}
	return &Resolver{
		sessions: config.Sessions,
		keys:     config.Keys,
		logger:   config.Logger,
	}, nil
}

// Resolve authenticates a credential. NoCredential returns
// ErrNoCredential. A credential that fails verification returns
// ErrInvalidCredential wrapping the verifier's error.
func (r *Resolver) Resolve(ctx context.Context, credential Credential) (Principal, error) {
	switch c := credential.(type) {
	case CookieCredential:
		p, err := r.sessions.VerifyAccess(c.AccessToken)
		if err != nil {
			r.logger.Debug("session credential rejected", "error", err)
			return Principal{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
		}
		return p, nil

	case BearerCredential:
		p, err := r.keys.Verify(ctx, c.Token)
		if err != nil {
			r.logger.Debug("bearer credential rejected", "error", err)
			return Principal{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
		}
		return p, nil

	case NoCredential:
		return Principal{}, ErrNoCredential

	default:
		panic(fmt.Sprintf("principal: unknown credential type %T", credential))
	}
}
