// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// gatehouse-keygen generates the long-lived key material gatehouse
// needs at deployment bootstrap: the Ed25519 keypair that signs
// personal API key tokens, and the age identity that unseals the
// local development secrets file.
//
// Generation is a deliberate operator step. The server loads keys and
// refuses to invent them, so a misconfigured key directory fails loud
// at startup instead of silently minting tokens nobody else can
// verify.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/gatehouse-project/gatehouse/lib/pak"
	"github.com/gatehouse-project/gatehouse/lib/sealed"
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
	case "pak":
		return runPAK(os.Args[2:])
	case "age":
		return runAge(os.Args[2:])
	case "version":
		fmt.Printf("gatehouse-keygen %s\n", version.Info())
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
	fmt.Fprintf(os.Stderr, `Usage: gatehouse-keygen <subcommand> [flags]

Subcommands:
  pak         Generate the Ed25519 signing keypair for personal API keys
  age         Generate an age identity for sealing local secrets
  version     Print version information

Run 'gatehouse-keygen <subcommand> --help' for subcommand flags.
`)
}

// runPAK creates the PAK signing keypair in the key directory.
// Idempotent: an existing keypair is loaded and left in place. With
// --force the existing keypair is replaced, which stops every
// outstanding personal API key from verifying.
func runPAK(args []string) error {
	flags := pflag.NewFlagSet("pak", pflag.ExitOnError)
	var keyDir string
	var force bool
	flags.StringVar(&keyDir, "key-dir", "", "directory for the signing keypair (required)")
	flags.BoolVar(&force, "force", false, "replace an existing keypair (invalidates all outstanding keys)")
	flags.Parse(args)

	if keyDir == "" {
		flags.Usage()
		return fmt.Errorf("--key-dir is required")
	}

	if force {
		for _, name := range []string{pak.PrivateKeyFile, pak.PublicKeyFile} {
			path := filepath.Join(keyDir, name)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing %s: %w", path, err)
			}
		}
	}

	pair, generated, err := pak.LoadOrGenerateKeypair(keyDir)
	if err != nil {
		return err
	}

	if generated {
		fmt.Fprintf(os.Stderr, "Generated PAK signing keypair in %s\n", keyDir)
		if force {
			fmt.Fprintf(os.Stderr, "Previously issued personal API keys no longer verify.\n")
		}
	} else {
		fmt.Fprintf(os.Stderr, "PAK signing keypair already present in %s; left unchanged\n", keyDir)
	}
	fmt.Fprintf(os.Stderr, "  Private key: %s (0600)\n", filepath.Join(keyDir, pak.PrivateKeyFile))
	fmt.Fprintf(os.Stderr, "  Public key:  %s (0644)\n", filepath.Join(keyDir, pak.PublicKeyFile))

	// The public key fingerprint goes to stdout so scripts can
	// distribute it to peer verifiers.
	fmt.Printf("%x\n", pair.PublicKey)
	return nil
}

// runAge creates an age identity file and prints the matching public
// key. The public key goes to stdout: it is the recipient to pass to
// "gatehouse-secrets seal".
func runAge(args []string) error {
	flags := pflag.NewFlagSet("age", pflag.ExitOnError)
	var output string
	var force bool
	flags.StringVarP(&output, "output", "o", "", "identity file to create (required)")
	flags.BoolVar(&force, "force", false, "replace an existing identity file")
	flags.Parse(args)

	if output == "" {
		flags.Usage()
		return fmt.Errorf("--output is required")
	}

	if force {
		if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", output, err)
		}
	}

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	if err := sealed.SaveIdentity(output, keypair); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to replace it)", output)
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "Wrote age identity to %s (0600)\n", output)
	fmt.Printf("%s\n", keypair.PublicKey)
	return nil
}
