// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// gatehouse-server is the authentication service: it issues and
// verifies session tokens and personal API keys, and serves the HTTP
// boundary for credential lifecycle operations.
//
// Configuration comes from a YAML file named by --config or the
// GATEHOUSE_CONFIG environment variable. The session master key is
// resolved through the secret source chain at startup and the process
// refuses to come up without it. The PAK signing keypair must already
// exist under pak.key_dir; generate it with "gatehouse-keygen pak".
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/gatehouse-project/gatehouse/lib/config"
	"github.com/gatehouse-project/gatehouse/lib/httpboundary"
	"github.com/gatehouse-project/gatehouse/lib/keystore"
	"github.com/gatehouse-project/gatehouse/lib/pak"
	"github.com/gatehouse-project/gatehouse/lib/principal"
	"github.com/gatehouse-project/gatehouse/lib/process"
	"github.com/gatehouse-project/gatehouse/lib/sealed"
	"github.com/gatehouse-project/gatehouse/lib/secret"
	"github.com/gatehouse-project/gatehouse/lib/session"
	"github.com/gatehouse-project/gatehouse/lib/version"
)

// sessionMasterKeyName is the secret the session service derives both
// signing keys from. Resolved once at startup, fail closed.
const sessionMasterKeyName = "session-master-key"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("gatehouse-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (default: $GATEHOUSE_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if showVersion {
		version.Print("gatehouse-server")
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if cfg.DevMode() {
		level = slog.LevelDebug
	}
	logger := process.NewLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var unsealer secret.Unsealer
	if cfg.Secrets.AgeIdentity != "" {
		fileUnsealer := &sealed.FileUnsealer{Path: cfg.Secrets.AgeIdentity}
		defer fileUnsealer.Close()
		unsealer = fileUnsealer
	}

	secrets, err := secret.NewStore(secret.Config{
		MountDir:  cfg.Secrets.MountDir,
		LocalFile: cfg.Secrets.LocalFile,
		EnvPrefix: cfg.Secrets.EnvPrefix,
		Unsealer:  unsealer,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer secrets.Close()

	masterKey, err := secrets.Require(sessionMasterKeyName)
	if err != nil {
		return err
	}

	sessions, err := session.New(session.Config{
		MasterKey:  masterKey,
		AccessTTL:  cfg.Session.AccessTTL.Std(),
		RefreshTTL: cfg.Session.RefreshTTL.Std(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer sessions.Close()

	// The server loads the signing keypair and never generates one:
	// key generation is a deliberate bootstrap step, not a side effect
	// of process start.
	keypair, err := pak.LoadKeypair(cfg.PAK.KeyDir)
	if err != nil {
		return fmt.Errorf("loading PAK keypair (run \"gatehouse-keygen pak --key-dir %s\" to bootstrap): %w",
			cfg.PAK.KeyDir, err)
	}

	store, err := keystore.Open(keystore.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	// Toucher before store in shutdown order: its Close flushes
	// pending last-used marks, which still need the store open.
	toucher, err := pak.NewToucher(pak.ToucherConfig{
		Store:    store,
		Interval: cfg.PAK.TouchInterval.Std(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer toucher.Close()

	// A zero cache TTL disables caching entirely: every verification
	// re-reads the store and revocation is visible immediately.
	var cache *pak.VerifyCache
	if ttl := cfg.PAK.VerifyCacheTTL.Std(); ttl > 0 {
		cache, err = pak.NewVerifyCache(ttl, nil)
		if err != nil {
			return err
		}
	}

	keys, err := pak.New(pak.Config{
		Keypair: keypair,
		Store:   store,
		Logger:  logger,
		Cache:   cache,
		Toucher: toucher,
	})
	if err != nil {
		return err
	}

	resolver, err := principal.NewResolver(principal.Config{
		Sessions: sessions,
		Keys:     keys,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	api, err := httpboundary.NewAPI(httpboundary.Config{
		Sessions:    sessions,
		Keys:        keys,
		Resolver:    resolver,
		Logger:      logger,
		Development: cfg.DevMode(),
	})
	if err != nil {
		return err
	}

	server := httpboundary.NewServer(httpboundary.ServerConfig{
		Address: cfg.ListenAddr,
		Handler: api.Handler(),
		Logger:  logger,
	})

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()

	logger.Info("gatehouse running",
		"address", cfg.ListenAddr,
		"environment", string(cfg.Environment),
		"database", cfg.Database.Path,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := <-serveDone; err != nil {
			return err
		}
	case err := <-serveDone:
		// Serve only returns before cancellation on a bind or serve
		// failure.
		if err != nil {
			return err
		}
	}

	return nil
}
