// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package credhash

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest of a stored credential. Its hex
// form is the canonical representation in the keystore and in CLI
// output.
type Digest [32]byte

// credentialDomainKey is the 32-byte key for BLAKE3 keyed hashing.
// It is a fixed constant; changing it invalidates every stored
// digest. The byte values are the ASCII encoding of the domain name,
// zero-padded to 32 bytes: readable in hex dumps and debuggers
// without sacrificing any cryptographic property (BLAKE3 keyed mode
// treats the key as an opaque 32-byte value).
var credentialDomainKey = [32]byte{
	'g', 'a', 't', 'e', 'h', 'o', 'u', 's', 'e', '.',
	'c', 'r', 'e', 'd', 'e', 'n', 't', 'i', 'a', 'l', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Sum computes the credential-domain BLAKE3 keyed hash of secret.
// No salt: callers pass high-entropy signed tokens, never passwords.
func Sum(secret []byte) Digest {
	// NewKeyed requires exactly 32 bytes, which the fixed-size key
	// guarantees; the error path is unreachable.
	hasher, err := blake3.NewKeyed(credentialDomainKey[:])
	if err != nil {
		panic("credhash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(secret)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Verify reports whether candidate hashes to digest. The comparison
// is constant-time over the full digest length.
func Verify(candidate []byte, digest Digest) bool {
	computed := Sum(candidate)
	return subtle.ConstantTimeCompare(computed[:], digest[:]) == 1
}

// String returns the hex-encoded form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing credential digest: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("credential digest is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// MarshalText implements encoding.TextMarshaler using the hex form.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler from the hex form.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
