// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/gatehouse-project/gatehouse/lib/clock"
	"github.com/gatehouse-project/gatehouse/lib/principal"
	"github.com/gatehouse-project/gatehouse/lib/secret"
)

// Issuer is the iss claim stamped on every token.
const Issuer = "gatehouse"

// Default token lifetimes, used when the corresponding Config field is
// zero.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// signingKeySize is the size in bytes of each derived HS256 signing
// key.
const signingKeySize = 32

// csrfTokenSize is the size in bytes of the random CSRF token before
// hex encoding.
const csrfTokenSize = 32

// HKDF info strings. These are the "info" parameter to HKDF-SHA256,
// providing domain separation between the two signing keys. Changing
// either invalidates all outstanding tokens of that kind.
var (
	hkdfInfoAccess  = []byte("session-access")
	hkdfInfoRefresh = []byte("session-refresh")
)

// Errors returned by Verify and Refresh.
var (
	ErrSignatureInvalid = errors.New("session: token signature invalid")
	ErrTokenExpired     = errors.New("session: token has expired")
	ErrKindMismatch     = errors.New("session: token kind mismatch")
)

// Kind distinguishes the two token kinds a session is made of.
type Kind string

const (
	// KindAccess tokens authenticate individual requests.
	KindAccess Kind = "access"

	// KindRefresh tokens mint replacement pairs.
	KindRefresh Kind = "refresh"
)

// Claims is the JWT payload carried by both token kinds. Subject is
// the user ID.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the user's role at issue time. Copied into the
	// resolved principal on verification.
	Role string `json:"role"`

	// Kind marks which of the two token kinds this is. Checked on
	// verification as a second line behind the per-kind signing keys.
	Kind Kind `json:"kind"`
}

// Pair is a complete session: access and refresh tokens plus the CSRF
// token that accompanies them into cookies.
type Pair struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
}

// Config configures a Service.
type Config struct {
	// MasterKey is the session master secret. Both signing keys are
	// derived from it at construction. The buffer is borrowed (read
	// via .Bytes()) and NOT closed; the caller retains ownership.
	// Required.
	MasterKey *secret.Buffer

	// AccessTTL is the access token lifetime. Zero means
	// DefaultAccessTTL.
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime. Zero means
	// DefaultRefreshTTL.
	RefreshTTL time.Duration

	// Clock supplies the current time for issue and expiry checks.
	// Nil means the real clock.
	Clock clock.Clock

	// Logger records rotation events. Required.
	Logger *slog.Logger
}

// Service issues and verifies session tokens. Construct with New.
// Immutable after construction and safe for concurrent use.
type Service struct {
	accessKey  *secret.Buffer
	refreshKey *secret.Buffer
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

// New derives the per-kind signing keys from the master secret and
// returns a ready Service. The master key is borrowed and NOT closed.
func New(config Config) (*Service, error) {
	if config.MasterKey == nil {
		return nil, fmt.Errorf("session: config MasterKey is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("session: config Logger is required")
	}
	if config.AccessTTL < 0 || config.RefreshTTL < 0 {
		return nil, fmt.Errorf("session: token TTLs must not be negative")
	}

	accessTTL := config.AccessTTL
	if accessTTL == 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := config.RefreshTTL
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTTL
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	accessKey, err := deriveSigningKey(config.MasterKey, hkdfInfoAccess)
	if err != nil {
		return nil, err
	}
	refreshKey, err := deriveSigningKey(config.MasterKey, hkdfInfoRefresh)
	if err != nil {
		accessKey.Close()
		return nil, err
	}

	return &Service{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clk,
		logger:     config.Logger,
	}, nil
}

// AccessTTL returns the access-token lifetime. The HTTP boundary uses
// it to bound cookie lifetimes to the token they carry.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL returns the refresh-token lifetime.
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// Close zeroes and releases the derived signing keys. After Close,
// Issue and Verify panic via the buffers' closed check. Idempotent.
func (s *Service) Close() error {
	err := s.accessKey.Close()
	if refreshErr := s.refreshKey.Close(); err == nil {
		err = refreshErr
	}
	return err
}

// Issue signs a token of the given kind for the user. The TTL is the
// per-kind lifetime from the config.
func (s *Service) Issue(userID, role string, kind Kind) (string, error) {
	key, ttl, err := s.keyFor(kind)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key.Bytes())
	if err != nil {
		return "", fmt.Errorf("session: signing %s token: %w", kind, err)
	}
	return signed, nil
}

// IssuePair issues an access token, a refresh token, and a fresh CSRF
// token in one call. This is the establishment path used after
// external login verification, and the rotation path used by Refresh.
func (s *Service) IssuePair(userID, role string) (Pair, error) {
	access, err := s.Issue(userID, role, KindAccess)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.Issue(userID, role, KindRefresh)
	if err != nil {
		return Pair{}, err
	}
	csrf, err := newCSRFToken()
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    csrf,
	}, nil
}

// Verify parses and verifies a token against the signing key for the
// expected kind. Parsing is restricted to HS256; expiry is checked
// with zero leeway against the injected clock. The two kinds sign
// with different derived keys, so a token of the other kind fails the
// signature check; a failed signature is then re-checked under the
// other kind's key, and a match there is a genuine token presented as
// the wrong kind, not a forgery. The embedded kind claim is compared
// as a second line behind the keys.
//
// A cross-kind token returns ErrKindMismatch, an expired token of the
// expected kind returns ErrTokenExpired, and a forged or malformed
// token returns ErrSignatureInvalid.
func (s *Service) Verify(token string, expected Kind) (principal.Principal, error) {
	key, _, err := s.keyFor(expected)
	if err != nil {
		return principal.Principal{}, err
	}

	var claims Claims
	_, err = jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return key.Bytes(), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		mapped := mapJWTError(err)
		if errors.Is(mapped, ErrSignatureInvalid) && s.signedForKind(token, otherKind(expected)) {
			return principal.Principal{}, fmt.Errorf("%w: %s token presented, %s required", ErrKindMismatch, otherKind(expected), expected)
		}
		return principal.Principal{}, mapped
	}

	if claims.Kind != expected {
		return principal.Principal{}, fmt.Errorf("%w: got %q, want %q", ErrKindMismatch, claims.Kind, expected)
	}

	return principal.Principal{
		UserID:         claims.Subject,
		Role:           claims.Role,
		CredentialKind: principal.KindSession,
		CredentialID:   claims.Subject,
	}, nil
}

// VerifyAccess verifies an access token. It adapts Verify to the
// principal.SessionVerifier interface.
func (s *Service) VerifyAccess(token string) (principal.Principal, error) {
	return s.Verify(token, KindAccess)
}

// Refresh verifies a refresh token and issues a fully rotated pair:
// new access token, new refresh token, new CSRF token. This is the
// sole life-extension path for a session.
func (s *Service) Refresh(refreshToken string) (Pair, error) {
	p, err := s.Verify(refreshToken, KindRefresh)
	if err != nil {
		return Pair{}, err
	}

	pair, err := s.IssuePair(p.UserID, p.Role)
	if err != nil {
		return Pair{}, err
	}

	s.logger.Debug("session refreshed", "user_id", p.UserID)
	return pair, nil
}

// otherKind returns the counterpart token kind.
func otherKind(kind Kind) Kind {
	if kind == KindAccess {
		return KindRefresh
	}
	return KindAccess
}

// signedForKind reports whether the token's signature verifies under
// the signing key for kind. Claims are not validated: an expired
// cross-kind token is still a kind mismatch, not a forgery.
func (s *Service) signedForKind(token string, kind Kind) bool {
	key, _, err := s.keyFor(kind)
	if err != nil {
		return false
	}
	var claims Claims
	_, err = jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return key.Bytes(), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	return err == nil
}

// keyFor returns the signing key and TTL for a token kind.
func (s *Service) keyFor(kind Kind) (*secret.Buffer, time.Duration, error) {
	switch kind {
	case KindAccess:
		return s.accessKey, s.accessTTL, nil
	case KindRefresh:
		return s.refreshKey, s.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("session: unknown token kind %q", kind)
	}
}

// mapJWTError normalizes jwt parse errors into the package taxonomy.
// Signature failures take precedence over expiry so a forged token
// never learns whether its claims would otherwise have passed.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrSignatureInvalid
	}
}

// newCSRFToken returns csrfTokenSize random bytes, hex encoded. CSRF
// tokens are compared by the HTTP boundary's double-submit check and
// never verified against a server key.
func newCSRFToken() (string, error) {
	raw := make([]byte, csrfTokenSize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("session: generating CSRF token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// deriveSigningKey derives a 32-byte HS256 signing key from the master
// secret via HKDF-SHA256. The salt is nil per RFC 5869: the master
// secret is operator-provisioned high-entropy material, so the extract
// phase with a zero key suffices. The master key is borrowed and NOT
// closed; the returned buffer is owned by the caller.
func deriveSigningKey(masterKey *secret.Buffer, info []byte) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, masterKey.Bytes(), nil, info)
	derived := make([]byte, signingKeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("session: deriving %s signing key: %w", info, err)
	}
	return secret.NewFromBytes(derived)
}
