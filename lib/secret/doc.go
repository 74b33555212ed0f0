// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret resolves named secrets from an ordered chain of
// sources and holds their values in memory that is locked against
// swap and excluded from core dumps.
//
// # Resolution
//
// A [Store] probes sources in a fixed order, first hit wins:
//
//  1. a mounted-secret file (one file per name, docker/systemd style)
//  2. a local development secrets file (KEY=value lines), or its
//     age-sealed sibling when an [Unsealer] is configured
//  3. an environment variable derived from the name
//  4. the caller-supplied default, for [Store.ResolveDefault] only
//
// Every probe is recorded in [Result.Attempts] in order, even on
// success, so audit tooling can show exactly where a value came from
// and what was checked before it. A source's absence is never an
// error; only an I/O failure (unreadable file, bad seal) is. A default
// hit yields a usable value but Found=false and Source "default": the
// caller got something, but no configured source supplied it.
//
// Callers that cannot proceed without a value use [Store.Require],
// which fails closed with [ErrNotFound] instead of handing back an
// empty credential. Resolution results are cached per name inside the
// store; the server resolves everything it needs once at startup, so
// no file or env probe ever runs on a request path.
//
// [Store.Audit] reports provenance for a batch of names through
// [AuditEntry], a type that never holds a value and therefore cannot
// leak one through any logging or serialization channel. Raw values
// are displayed only by the gatehouse-secrets CLI's reveal command,
// behind an interactive TTY gate; no server code path prints them.
//
// # Buffers
//
// Values are returned as [Buffer]: memory allocated outside the Go
// heap via mmap(MAP_ANONYMOUS), locked into RAM with mlock, excluded
// from core dumps with madvise(MADV_DONTDUMP), and zeroed on Close.
// The garbage collector never sees the allocation and cannot copy or
// relocate it. Buffers handed out by a Store are owned by it and
// released by [Store.Close].
//
// Depends on golang.org/x/sys/unix. No gatehouse-internal dependencies.
package secret
