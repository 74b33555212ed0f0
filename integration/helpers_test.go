// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test stands up complete gatehouse deployments —
// real SQLite keystore, on-disk signing keypair, secret store, live
// HTTP listener — and drives them the way browsers and API clients do.
package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gatehouse-project/gatehouse/lib/httpboundary"
	"github.com/gatehouse-project/gatehouse/lib/keystore"
	"github.com/gatehouse-project/gatehouse/lib/pak"
	"github.com/gatehouse-project/gatehouse/lib/principal"
	"github.com/gatehouse-project/gatehouse/lib/secret"
	"github.com/gatehouse-project/gatehouse/lib/session"
	"github.com/gatehouse-project/gatehouse/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stack is one gatehouse verifier process: its own secret store,
// session service, keystore pool, verify cache, and HTTP listener.
// Two stacks built from the same stackDirs share the database file
// and the signing keypair, modeling a multi-verifier deployment.
type stack struct {
	api      *httpboundary.API
	keypair  *pak.Keypair
	keys     *pak.Service
	sessions *session.Service
	base     string
	client   *http.Client
}

// stackDirs is the on-disk state a deployment shares between verifier
// processes.
type stackDirs struct {
	keyDir   string
	mountDir string
	dbPath   string
}

// newStackDirs bootstraps the deployment: generates the PAK signing
// keypair the way gatehouse-keygen does, and mounts the session master
// key the way a container runtime would.
func newStackDirs(t *testing.T) stackDirs {
	t.Helper()
	root := t.TempDir()

	keyDir := filepath.Join(root, "keys")
	pair, err := pak.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	if err := pak.SaveKeypair(keyDir, pair); err != nil {
		t.Fatalf("SaveKeypair: %v", err)
	}

	mountDir := filepath.Join(root, "secrets")
	if err := os.MkdirAll(mountDir, 0o700); err != nil {
		t.Fatalf("creating mount dir: %v", err)
	}
	masterKey := []byte("integration master key material!!")
	if err := os.WriteFile(filepath.Join(mountDir, "session-master-key"), masterKey, 0o600); err != nil {
		t.Fatalf("writing master key: %v", err)
	}

	return stackDirs{
		keyDir:   keyDir,
		mountDir: mountDir,
		dbPath:   filepath.Join(root, "keys.db"),
	}
}

// newStack boots a verifier over the shared state. cacheTTL zero
// disables the verify cache so revocations are visible immediately;
// a positive TTL models a verifier that rides the cache until a
// pushed notice or TTL expiry catches it up.
func newStack(t *testing.T, dirs stackDirs, cacheTTL time.Duration) *stack {
	t.Helper()
	logger := testLogger()

	secrets, err := secret.NewStore(secret.Config{
		MountDir: dirs.mountDir,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("secret.NewStore: %v", err)
	}
	t.Cleanup(func() { secrets.Close() })

	masterKey, err := secrets.Require("session-master-key")
	if err != nil {
		t.Fatalf("resolving master key: %v", err)
	}

	sessions, err := session.New(session.Config{
		MasterKey: masterKey,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	keypair, err := pak.LoadKeypair(dirs.keyDir)
	if err != nil {
		t.Fatalf("LoadKeypair: %v", err)
	}

	store, err := keystore.Open(keystore.Config{
		Path:   dirs.dbPath,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("keystore.Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("keystore Close: %v", err)
		}
	})

	var cache *pak.VerifyCache
	if cacheTTL > 0 {
		cache, err = pak.NewVerifyCache(cacheTTL, nil)
		if err != nil {
			t.Fatalf("NewVerifyCache: %v", err)
		}
	}

	toucher, err := pak.NewToucher(pak.ToucherConfig{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewToucher: %v", err)
	}
	t.Cleanup(toucher.Close)

	keys, err := pak.New(pak.Config{
		Keypair: keypair,
		Store:   store,
		Logger:  logger,
		Cache:   cache,
		Toucher: toucher,
	})
	if err != nil {
		t.Fatalf("pak.New: %v", err)
	}

	resolver, err := principal.NewResolver(principal.Config{
		Sessions: sessions,
		Keys:     keys,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	api, err := httpboundary.NewAPI(httpboundary.Config{
		Sessions: sessions,
		Keys:     keys,
		Resolver: resolver,
		Logger:   logger,
		// The test listener serves plain HTTP; without this the
		// client would refuse to return Secure cookies.
		Development: true,
	})
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}

	server := httpboundary.NewServer(httpboundary.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: api.Handler(),
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	testutil.RequireClosed(t, server.Ready(), 10*time.Second, "server ready")
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, serveDone, 10*time.Second, "server shutdown"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}

	return &stack{
		api:      api,
		keypair:  keypair,
		keys:     keys,
		sessions: sessions,
		base:     "http://" + server.Addr().String(),
		client:   &http.Client{Jar: jar},
	}
}

// login establishes a session the way the external OAuth callback
// would and stores the issued cookies in the client's jar.
func (s *stack) login(t *testing.T, userID, role string) {
	t.Helper()
	recorder := httptest.NewRecorder()
	if err := s.api.EstablishSession(recorder, userID, role); err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	base, err := url.Parse(s.base)
	if err != nil {
		t.Fatalf("parsing base URL: %v", err)
	}
	s.client.Jar.SetCookies(base, recorder.Result().Cookies())
}

// csrfToken reads the double-submit token from the jar.
func (s *stack) csrfToken(t *testing.T) string {
	t.Helper()
	base, err := url.Parse(s.base)
	if err != nil {
		t.Fatalf("parsing base URL: %v", err)
	}
	for _, cookie := range s.client.Jar.Cookies(base) {
		if cookie.Name == httpboundary.CSRFTokenCookie {
			return cookie.Value
		}
	}
	t.Fatal("no csrf_token cookie in the jar")
	return ""
}

// do sends a request through the stack's cookie-carrying client.
// header pairs are alternating name, value.
func (s *stack) do(t *testing.T, method, path, body string, header ...string) *http.Response {
	t.Helper()
	if len(header)%2 != 0 {
		t.Fatalf("odd header pair count %d", len(header))
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r, err := http.NewRequest(method, s.base+path, reader)
	if err != nil {
		t.Fatalf("building %s %s: %v", method, path, err)
	}
	for i := 0; i < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}
	response, err := s.client.Do(r)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return response
}

// bareClient returns a requester on the same listener with no cookie
// jar, modeling a non-browser API client. Without it a bearer request
// would also carry the jar's session cookies, and the cookie would
// win credential precedence.
func bareClient(s *stack) *stack {
	clone := *s
	clone.client = &http.Client{}
	return &clone
}

// readBody reads and closes a response body as a string.
func readBody(t *testing.T, response *http.Response) string {
	t.Helper()
	defer response.Body.Close()
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(raw)
}

// decodeJSON decodes and closes a response body.
func decodeJSON(t *testing.T, response *http.Response, into any) {
	t.Helper()
	defer response.Body.Close()
	if err := json.NewDecoder(response.Body).Decode(into); err != nil {
		t.Fatalf("decoding %s body: %v", response.Request.URL.Path, err)
	}
}

// drain closes a response body, discarding it.
func drain(t *testing.T, response *http.Response) {
	t.Helper()
	if _, err := io.Copy(io.Discard, response.Body); err != nil {
		t.Errorf("draining body: %v", err)
	}
	response.Body.Close()
}

// principalBody mirrors the GET /v1/principal response.
type principalBody struct {
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	CredentialKind string `json:"credential_kind"`
	BucketKey      string `json:"bucket_key"`
}

// createdKey mirrors the POST /v1/keys response.
type createdKey struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	TokenID  string `json:"token_id"`
	RawToken string `json:"raw_token"`
}
