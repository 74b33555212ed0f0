// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"filippo.io/age"

	"github.com/gatehouse-project/gatehouse/lib/secret"
)

// SaveIdentity writes the keypair to an identity file in the
// age-keygen format (comment header, then the private key line),
// created with mode 0600. Fails if the file already exists: an
// identity is generated once, never silently replaced.
func SaveIdentity(path string, keypair *Keypair) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating identity file: %w", err)
	}

	header := fmt.Sprintf("# created: %s\n# public key: %s\n",
		time.Now().UTC().Format(time.RFC3339), keypair.PublicKey)
	if _, err := file.WriteString(header); err != nil {
		file.Close()
		return fmt.Errorf("writing identity file: %w", err)
	}
	if _, err := file.Write(keypair.PrivateKey.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("writing identity file: %w", err)
	}
	if _, err := file.WriteString("\n"); err != nil {
		file.Close()
		return fmt.Errorf("writing identity file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing identity file: %w", err)
	}
	return nil
}

// LoadIdentity reads an identity file and returns the keypair. Lines
// starting with "#" are comments; the first remaining line is the
// private key. The caller must Close the returned Keypair.
func LoadIdentity(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	defer secret.Zero(raw)

	var keyLine []byte
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		keyLine = line
		break
	}
	if keyLine == nil {
		return nil, fmt.Errorf("identity file %s holds no key", path)
	}
	if !strings.HasPrefix(string(keyLine), "AGE-SECRET-KEY-1") {
		return nil, fmt.Errorf("identity file %s holds no age private key", path)
	}

	privateKey, err := secret.NewFromBytes(keyLine)
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}
	publicKey, err := recipientOf(privateKey)
	if err != nil {
		privateKey.Close()
		return nil, err
	}
	return &Keypair{PrivateKey: privateKey, PublicKey: publicKey}, nil
}

func recipientOf(privateKey *secret.Buffer) (string, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}
	return identity.Recipient().String(), nil
}

// FileUnsealer unseals ciphertext with an identity file, loading the
// identity lazily on first use. It satisfies secret.Unsealer, which
// lets lib/secret decrypt the sealed local secrets file without
// importing this package.
type FileUnsealer struct {
	// Path locates the identity file.
	Path string

	once    sync.Once
	keypair *Keypair
	loadErr error
}

// Unseal decrypts ciphertext with the identity at Path.
func (f *FileUnsealer) Unseal(ciphertext []byte) (*secret.Buffer, error) {
	f.once.Do(func() {
		f.keypair, f.loadErr = LoadIdentity(f.Path)
	})
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return Unseal(ciphertext, f.keypair.PrivateKey)
}

// Close releases the loaded identity, if any.
func (f *FileUnsealer) Close() error {
	if f.keypair != nil {
		return f.keypair.Close()
	}
	return nil
}
