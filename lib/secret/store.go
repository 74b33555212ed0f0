// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound reports that resolution exhausted every source for a
// required secret. Callers must fail closed on it, never substitute
// an empty credential.
var ErrNotFound = errors.New("secret: not found")

// Unsealer decrypts an age-sealed local secrets file. Implemented by
// lib/sealed; optional.
type Unsealer interface {
	Unseal(ciphertext []byte) (*Buffer, error)
}

// Config holds the parameters for creating a secret store. All
// sources are optional; a source with an empty path or prefix is
// still probed (and recorded as absent) so audit trails stay uniform.
type Config struct {
	// MountDir is the directory holding mounted secrets, one file per
	// secret name (docker secrets, systemd credentials).
	MountDir string

	// LocalFile is the local development secrets file, KEY=value
	// lines with # comments. When the plaintext file is absent and an
	// Unsealer is configured, the sibling "<LocalFile>.age" is
	// decrypted instead.
	LocalFile string

	// EnvPrefix is prepended to derived environment variable names.
	// Example: EnvPrefix "GATEHOUSE" makes "session-master-key"
	// resolve from GATEHOUSE_SESSION_MASTER_KEY.
	EnvPrefix string

	// Unsealer enables the sealed local file. Optional.
	Unsealer Unsealer

	// Logger receives resolution events. Required.
	Logger *slog.Logger
}

// Store resolves named secrets through the configured source chain.
// Safe for concurrent use. Resolution results are cached per name;
// value buffers are owned by the store and released by Close.
type Store struct {
	probers []prober
	logger  *slog.Logger

	mu     sync.Mutex
	cache  map[string]Result
	closed bool
}

// NewStore creates a secret store probing, in order: the mount
// directory, the local secrets file, the environment.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("secret: Logger is required")
	}
	return &Store{
		probers: []prober{
			&mountedSource{dir: cfg.MountDir},
			&localFileSource{path: cfg.LocalFile, unsealer: cfg.Unsealer},
			&envSource{prefix: cfg.EnvPrefix},
		},
		logger: cfg.Logger,
		cache:  make(map[string]Result),
	}, nil
}

// Resolve runs the source chain for name. A total miss is not an
// error: Found is false and Source is SourceNone. Only I/O failures
// (unreadable file, bad seal) return an error.
func (s *Store) Resolve(name string) (Result, error) {
	return s.resolveChain(name)
}

// ResolveDefault is Resolve with a fallback value. When the chain
// misses and def is non-empty, the result carries def with
// Found=false and Source=SourceDefault. An empty def means no
// default: an empty credential never satisfies resolution.
func (s *Store) ResolveDefault(name, def string) (Result, error) {
	result, err := s.resolveChain(name)
	if err != nil || result.Found || result.Source == SourceDefault || def == "" {
		return result, err
	}

	value, err := NewFromBytes([]byte(def))
	if err != nil {
		return result, fmt.Errorf("secret: buffering default for %q: %w", name, err)
	}
	result.Value = value
	result.Source = SourceDefault
	result.Attempts = append(result.Attempts, Attempt{
		Source:   SourceDefault,
		Location: "(supplied)",
		Found:    true,
	})

	s.mu.Lock()
	if !s.closed {
		// Keep ownership of the default buffer with the store.
		s.cache[name] = result
	}
	s.mu.Unlock()
	return result, nil
}

// Require resolves name and fails closed when no source produced a
// value. The returned buffer is owned by the store.
func (s *Store) Require(name string) (*Buffer, error) {
	result, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	if !result.Found {
		s.logger.Error("required secret missing", "secret", result)
		return nil, fmt.Errorf("required secret %q: %w", name, ErrNotFound)
	}
	s.logger.Info("secret resolved", "secret", result)
	return result.Value, nil
}

// Audit resolves each name and reports provenance only. Probe errors
// are recorded on the attempt rather than returned: audit exists to
// show what is wrong, not to stop at the first problem.
func (s *Store) Audit(names []string) []AuditEntry {
	entries := make([]AuditEntry, 0, len(names))
	for _, name := range names {
		result, _ := s.resolveChain(name)
		entries = append(entries, AuditEntry{
			Name:     name,
			Found:    result.Found,
			Source:   result.Source,
			Attempts: result.Attempts,
		})
	}
	return entries
}

// Close releases every buffer the store owns. The store is unusable
// afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstError error
	for name, result := range s.cache {
		if result.Value != nil {
			if err := result.Value.Close(); err != nil && firstError == nil {
				firstError = err
			}
		}
		delete(s.cache, name)
	}
	for _, p := range s.probers {
		if closer, ok := p.(interface{ close() error }); ok {
			if err := closer.close(); err != nil && firstError == nil {
				firstError = err
			}
		}
	}
	return firstError
}

// resolveChain probes each source in order under the store lock.
// Resolution happens at startup, so serializing it is free and keeps
// the cache coherent without per-buffer ownership juggling.
func (s *Store) resolveChain(name string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}

	result := Result{Name: name, Source: SourceNone}
	for _, p := range s.probers {
		value, attempt := p.probe(name)
		result.Attempts = append(result.Attempts, attempt)
		if attempt.Err != nil {
			return result, fmt.Errorf("secret: resolving %q from %s: %w", name, attempt.Source, attempt.Err)
		}
		if value != nil {
			result.Value = value
			result.Found = true
			result.Source = attempt.Source
			break
		}
	}

	if !s.closed {
		s.cache[name] = result
	}
	return result, nil
}

// EnvKey derives the environment variable name for a secret:
// upper-cased, with "-" and "." mapped to "_", prefixed when a prefix
// is configured. "session-master-key" with prefix "GATEHOUSE" becomes
// GATEHOUSE_SESSION_MASTER_KEY.
func EnvKey(name, prefix string) string {
	key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	if prefix != "" {
		return prefix + "_" + key
	}
	return key
}

// prober is one source in the resolution chain. A nil value with a
// nil attempt error means plain absence.
type prober interface {
	probe(name string) (*Buffer, Attempt)
}

// mountedSource reads one file per secret name from a mount
// directory. Values are trimmed; empty files count as absent.
type mountedSource struct {
	dir string
}

func (m *mountedSource) probe(name string) (*Buffer, Attempt) {
	path := filepath.Join(m.dir, name)
	attempt := Attempt{Source: SourceMounted, Location: path}

	if m.dir == "" {
		attempt.Location = "(no mount dir configured)"
		return nil, attempt
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			attempt.Err = err
		}
		return nil, attempt
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, attempt
	}

	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		attempt.Err = err
		return nil, attempt
	}
	attempt.Found = true
	return buffer, attempt
}

// localFileSource reads the development secrets file: KEY=value
// lines, # comments, keys matched after EnvKey normalization without
// prefix. Loaded lazily once. When the plaintext file is absent and
// an unsealer is configured, the ".age" sibling is decrypted instead;
// a present plaintext file always wins over its sealed sibling.
type localFileSource struct {
	path     string
	unsealer Unsealer

	once    sync.Once
	loadErr error
	values  map[string]*Buffer
}

func (l *localFileSource) probe(name string) (*Buffer, Attempt) {
	attempt := Attempt{Source: SourceLocalFile, Location: l.path}
	if l.path == "" {
		attempt.Location = "(no local file configured)"
		return nil, attempt
	}

	l.once.Do(l.load)
	if l.loadErr != nil {
		attempt.Err = l.loadErr
		return nil, attempt
	}

	buffer, ok := l.values[EnvKey(name, "")]
	if !ok {
		return nil, attempt
	}
	attempt.Found = true
	return buffer, attempt
}

func (l *localFileSource) load() {
	l.values = make(map[string]*Buffer)

	raw, err := os.ReadFile(l.path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		if l.unsealer == nil {
			return
		}
		sealedPath := l.path + ".age"
		ciphertext, sealedErr := os.ReadFile(sealedPath)
		if errors.Is(sealedErr, fs.ErrNotExist) {
			return
		}
		if sealedErr != nil {
			l.loadErr = sealedErr
			return
		}
		plaintext, unsealErr := l.unsealer.Unseal(ciphertext)
		if unsealErr != nil {
			l.loadErr = fmt.Errorf("unsealing %s: %w", sealedPath, unsealErr)
			return
		}
		defer plaintext.Close()
		raw = append([]byte(nil), plaintext.Bytes()...)
	default:
		l.loadErr = err
		return
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		index := strings.Index(line, "=")
		if index <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:index])
		value := strings.TrimSpace(line[index+1:])
		if value == "" {
			continue
		}
		buffer, err := NewFromBytes([]byte(value))
		if err != nil {
			l.loadErr = err
			return
		}
		l.values[key] = buffer
	}
	Zero(raw)
}

func (l *localFileSource) close() error {
	var firstError error
	for key, buffer := range l.values {
		if err := buffer.Close(); err != nil && firstError == nil {
			firstError = err
		}
		delete(l.values, key)
	}
	return firstError
}

// envSource reads environment variables named by EnvKey. Empty
// variables count as absent.
type envSource struct {
	prefix string
}

func (e *envSource) probe(name string) (*Buffer, Attempt) {
	envName := EnvKey(name, e.prefix)
	attempt := Attempt{Source: SourceEnvironment, Location: envName}

	value := os.Getenv(envName)
	if value == "" {
		return nil, attempt
	}

	buffer, err := NewFromBytes([]byte(value))
	if err != nil {
		attempt.Err = err
		return nil, attempt
	}
	attempt.Found = true
	return buffer, attempt
}
