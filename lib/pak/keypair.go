// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package pak

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// Keypair file names within the key directory.
const (
	PrivateKeyFile = "pak_signing_key.pem"
	PublicKeyFile  = "pak_signing_key.pub.pem"
)

// PEM block types for the two key files.
const (
	privateKeyPEMType = "PRIVATE KEY"
	publicKeyPEMType  = "PUBLIC KEY"
)

// Keypair is the Ed25519 signing keypair for personal API keys. It is
// logically distinct from the symmetric session master secret so the
// two credential kinds rotate independently. Generated once at
// deployment bootstrap, loaded at process start, held in memory for
// the process lifetime, and never regenerated implicitly.
type Keypair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// GenerateKeypair creates a fresh Ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("pak: generating keypair: %w", err)
	}
	return &Keypair{PrivateKey: privateKey, PublicKey: publicKey}, nil
}

// SaveKeypair writes the keypair under dir: the private key as PKCS#8
// PEM with mode 0600, the public key as PKIX PEM with mode 0644. The
// directory is created (mode 0700) if absent.
func SaveKeypair(dir string, pair *Keypair) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("pak: creating key directory: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(pair.PrivateKey)
	if err != nil {
		return fmt.Errorf("pak: encoding private key: %w", err)
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: privateKeyPEMType, Bytes: privateDER})
	if err := os.WriteFile(filepath.Join(dir, PrivateKeyFile), privatePEM, 0o600); err != nil {
		return fmt.Errorf("pak: writing private key: %w", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(pair.PublicKey)
	if err != nil {
		return fmt.Errorf("pak: encoding public key: %w", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: publicDER})
	if err := os.WriteFile(filepath.Join(dir, PublicKeyFile), publicPEM, 0o644); err != nil {
		return fmt.Errorf("pak: writing public key: %w", err)
	}

	return nil
}

// LoadKeypair reads both key files from dir and validates PEM types,
// key algorithms, and that the public key file matches the private
// key. The server binary loads and never generates; bootstrap
// generation is gatehouse-keygen's job.
func LoadKeypair(dir string) (*Keypair, error) {
	privateKey, err := loadPrivateKey(filepath.Join(dir, PrivateKeyFile))
	if err != nil {
		return nil, err
	}
	publicKey, err := loadPublicKey(filepath.Join(dir, PublicKeyFile))
	if err != nil {
		return nil, err
	}

	derived, ok := privateKey.Public().(ed25519.PublicKey)
	if !ok || !derived.Equal(publicKey) {
		return nil, fmt.Errorf("pak: public key file does not match the private key")
	}

	return &Keypair{PrivateKey: privateKey, PublicKey: publicKey}, nil
}

// LoadOrGenerateKeypair loads the keypair from dir, generating and
// saving a fresh one when the private key file is absent. The returned
// bool reports whether generation happened.
func LoadOrGenerateKeypair(dir string) (*Keypair, bool, error) {
	_, err := os.Stat(filepath.Join(dir, PrivateKeyFile))
	switch {
	case err == nil:
		pair, err := LoadKeypair(dir)
		if err != nil {
			return nil, false, err
		}
		return pair, false, nil
	case os.IsNotExist(err):
		pair, err := GenerateKeypair()
		if err != nil {
			return nil, false, err
		}
		if err := SaveKeypair(dir, pair); err != nil {
			return nil, false, err
		}
		return pair, true, nil
	default:
		return nil, false, fmt.Errorf("pak: checking for private key: %w", err)
	}
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pak: reading private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("pak: private key file %s contains no PEM block", path)
	}
	if block.Type != privateKeyPEMType {
		return nil, fmt.Errorf("pak: private key PEM type is %q, want %q", block.Type, privateKeyPEMType)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("pak: parsing private key: %w", err)
	}
	privateKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("pak: private key is %T, want Ed25519", parsed)
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("pak: private key is %d bytes, want %d", len(privateKey), ed25519.PrivateKeySize)
	}
	return privateKey, nil
}

func loadPublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pak: reading public key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("pak: public key file %s contains no PEM block", path)
	}
	if block.Type != publicKeyPEMType {
		return nil, fmt.Errorf("pak: public key PEM type is %q, want %q", block.Type, publicKeyPEMType)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("pak: parsing public key: %w", err)
	}
	publicKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("pak: public key is %T, want Ed25519", parsed)
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("pak: public key is %d bytes, want %d", len(publicKey), ed25519.PublicKeySize)
	}
	return publicKey, nil
}
