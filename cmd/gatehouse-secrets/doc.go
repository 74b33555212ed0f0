// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Gatehouse-secrets inspects and manages the secret source chain the
// server resolves from. "audit" shows where each named secret would
// come from without printing values; "seal" encrypts the local
// secrets file to its ".age" sibling; "reveal" prints one value for
// interactive debugging, gated on a real terminal and an explicit
// confirmation. Subcommands: audit, seal, reveal.
package main
