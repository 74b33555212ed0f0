// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package pak

import (
	"crypto/ed25519"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signToken builds the EdDSA-signed bearer token for a key: sub is the
// owner user ID, jti is the key's token ID, exp is present only when
// the key expires.
func signToken(privateKey ed25519.PrivateKey, owner, tokenID string, issuedAt time.Time, expiresAt *time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  owner,
		ID:       tokenID,
		IssuedAt: jwt.NewNumericDate(issuedAt),
	}
	if expiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*expiresAt)
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(privateKey)
}

// parseToken verifies the EdDSA signature and returns the claims.
// Claims are deliberately not validated here: expiry and revocation
// are store-state checks the service performs in its own order, so
// the parser's view of exp must not short-circuit them.
func parseToken(publicKey ed25519.PublicKey, bearer string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(bearer, &claims,
		func(*jwt.Token) (any, error) { return publicKey, nil },
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, ErrSignatureInvalid
	}
	return &claims, nil
}
