// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package pak

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/gatehouse-project/gatehouse/lib/codec"
)

// noticeSignatureSize is the fixed size of an Ed25519 signature.
const noticeSignatureSize = ed25519.SignatureSize // 64 bytes

// ErrNoticeTooShort means the raw bytes cannot contain a payload plus
// signature.
var ErrNoticeTooShort = errors.New("pak: notice too short for signature")

// Notice announces a revocation to other verifiers in a multi-verifier
// deployment. Receivers drop their cache entry for the token so the
// revocation lands ahead of cache TTL expiry.
type Notice struct {
	// TokenID is the jti of the revoked key.
	TokenID string `cbor:"1,keyasint"`

	// RevokedAt is a Unix timestamp (seconds) of when revocation was
	// committed.
	RevokedAt int64 `cbor:"2,keyasint"`
}

// SignNotice encodes a notice as deterministic CBOR and signs it with
// the PAK private key. The wire format is the CBOR payload followed by
// the 64-byte Ed25519 signature.
func SignNotice(privateKey ed25519.PrivateKey, notice Notice) ([]byte, error) {
	payload, err := codec.Marshal(notice)
	if err != nil {
		return nil, fmt.Errorf("pak: encoding revocation notice: %w", err)
	}
	signature := ed25519.Sign(privateKey, payload)

	raw := make([]byte, len(payload)+noticeSignatureSize)
	copy(raw, payload)
	copy(raw[len(payload):], signature)
	return raw, nil
}

// VerifyNotice splits raw notice bytes, verifies the Ed25519 signature
// against the PAK public key, and decodes the payload.
func VerifyNotice(publicKey ed25519.PublicKey, raw []byte) (Notice, error) {
	if len(raw) <= noticeSignatureSize {
		return Notice{}, ErrNoticeTooShort
	}

	splitPoint := len(raw) - noticeSignatureSize
	payload := raw[:splitPoint]
	signature := raw[splitPoint:]

	if !ed25519.Verify(publicKey, payload, signature) {
		return Notice{}, ErrSignatureInvalid
	}

	var notice Notice
	if err := codec.Unmarshal(payload, &notice); err != nil {
		return Notice{}, fmt.Errorf("pak: decoding revocation notice: %w", err)
	}
	return notice, nil
}
