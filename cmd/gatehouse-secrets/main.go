// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/gatehouse-project/gatehouse/lib/config"
	"github.com/gatehouse-project/gatehouse/lib/process"
	"github.com/gatehouse-project/gatehouse/lib/sealed"
	"github.com/gatehouse-project/gatehouse/lib/secret"
	"github.com/gatehouse-project/gatehouse/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch subcommand := os.Args[1]; subcommand {
	case "audit":
		return runAudit(os.Args[2:])
	case "seal":
		return runSeal(os.Args[2:])
	case "reveal":
		return runReveal(os.Args[2:])
	case "version":
		fmt.Printf("gatehouse-secrets %s\n", version.Info())
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: gatehouse-secrets <subcommand> [flags]

Subcommands:
  audit       Show where each named secret resolves from (never values)
  seal        Encrypt the local secrets file to its .age sibling
  reveal      Print one secret value (interactive terminals only)
  version     Print version information

Run 'gatehouse-secrets <subcommand> --help' for subcommand flags.
`)
}

// loadConfig resolves the config file from the flag or the environment.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// openStore builds the same secret resolution chain the server uses.
// The returned cleanup closes the store and any loaded age identity.
func openStore(configPath string) (*secret.Store, *config.Config, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	var fileUnsealer *sealed.FileUnsealer
	var unsealer secret.Unsealer
	if cfg.Secrets.AgeIdentity != "" {
		fileUnsealer = &sealed.FileUnsealer{Path: cfg.Secrets.AgeIdentity}
		unsealer = fileUnsealer
	}

	store, err := secret.NewStore(secret.Config{
		MountDir:  cfg.Secrets.MountDir,
		LocalFile: cfg.Secrets.LocalFile,
		EnvPrefix: cfg.Secrets.EnvPrefix,
		Unsealer:  unsealer,
		Logger:    process.NewLogger(slog.LevelWarn),
	})
	if err != nil {
		if fileUnsealer != nil {
			fileUnsealer.Close()
		}
		return nil, nil, nil, err
	}

	cleanup := func() {
		store.Close()
		if fileUnsealer != nil {
			fileUnsealer.Close()
		}
	}
	return store, cfg, cleanup, nil
}

// runAudit resolves each named secret and prints its provenance: the
// winning source and the full probe trail. Values never appear.
func runAudit(args []string) error {
	flags := pflag.NewFlagSet("audit", pflag.ExitOnError)
	var configPath string
	flags.StringVar(&configPath, "config", "", "path to the config file (default: $GATEHOUSE_CONFIG)")
	flags.Parse(args)

	names := flags.Args()
	if len(names) == 0 {
		flags.Usage()
		return fmt.Errorf("at least one secret name is required")
	}

	store, _, cleanup, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	missing := 0
	for _, entry := range store.Audit(names) {
		if entry.Found {
			fmt.Printf("%s: found (%s)\n", entry.Name, entry.Source)
		} else {
			fmt.Printf("%s: MISSING\n", entry.Name)
			missing++
		}
		for _, attempt := range entry.Attempts {
			fmt.Printf("    %s\n", attempt)
		}
	}

	if missing > 0 {
		return fmt.Errorf("%d of %d secrets missing", missing, len(names))
	}
	return nil
}

// runSeal encrypts the configured local secrets file to its ".age"
// sibling. Recipients are the --recipient flags plus the configured
// age identity's own public key, so the sealing operator can always
// unseal what they sealed.
func runSeal(args []string) error {
	flags := pflag.NewFlagSet("seal", pflag.ExitOnError)
	var configPath string
	var recipients []string
	flags.StringVar(&configPath, "config", "", "path to the config file (default: $GATEHOUSE_CONFIG)")
	flags.StringArrayVar(&recipients, "recipient", nil, "additional age public key to encrypt to (repeatable)")
	flags.Parse(args)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Secrets.LocalFile == "" {
		return fmt.Errorf("secrets.local_file is not configured")
	}
	for _, recipient := range recipients {
		if err := sealed.ParsePublicKey(recipient); err != nil {
			return fmt.Errorf("--recipient %q: %w", recipient, err)
		}
	}

	plaintext, err := os.ReadFile(cfg.Secrets.LocalFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cfg.Secrets.LocalFile, err)
	}
	defer secret.Zero(plaintext)

	if cfg.Secrets.AgeIdentity != "" {
		identity, err := sealed.LoadIdentity(cfg.Secrets.AgeIdentity)
		if err != nil {
			return err
		}
		recipients = append(recipients, identity.PublicKey)
		identity.Close()
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients: pass --recipient or configure secrets.age_identity")
	}

	ciphertext, err := sealed.Seal(plaintext, recipients)
	if err != nil {
		return err
	}

	sealedPath := cfg.Secrets.LocalFile + ".age"
	if err := os.WriteFile(sealedPath, ciphertext, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", sealedPath, err)
	}

	fmt.Fprintf(os.Stderr, "Sealed %s to %s (%d recipients)\n",
		cfg.Secrets.LocalFile, sealedPath, len(recipients))
	fmt.Fprintf(os.Stderr, "Remove the plaintext file once you have verified the seal:\n")
	fmt.Fprintf(os.Stderr, "  gatehouse-secrets audit <name> && rm %s\n", cfg.Secrets.LocalFile)
	return nil
}

// runReveal prints one secret value for interactive debugging. It
// refuses to run without a terminal on both stdin and stdout, so the
// value cannot end up in a pipe, log, or shell history by accident,
// and asks for confirmation before printing.
func runReveal(args []string) error {
	flags := pflag.NewFlagSet("reveal", pflag.ExitOnError)
	var configPath string
	flags.StringVar(&configPath, "config", "", "path to the config file (default: $GATEHOUSE_CONFIG)")
	flags.Parse(args)

	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("exactly one secret name is required")
	}
	name := flags.Arg(0)

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("reveal requires an interactive terminal on stdin and stdout")
	}

	store, _, cleanup, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := store.Resolve(name)
	if err != nil {
		return err
	}
	if !result.Found {
		for _, attempt := range result.Attempts {
			fmt.Fprintf(os.Stderr, "    %s\n", attempt)
		}
		return fmt.Errorf("secret %q not found", name)
	}

	fmt.Fprintf(os.Stderr, "Reveal %q (resolved from %s)? [y/N] ", name, result.Source)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
	default:
		return fmt.Errorf("aborted")
	}

	fmt.Println(result.Value.String())
	return nil
}
