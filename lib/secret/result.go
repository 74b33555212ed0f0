// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"log/slog"
)

// Source identifies where a resolved secret value came from.
type Source string

const (
	// SourceMounted is a mounted-secret file, one file per name.
	SourceMounted Source = "docker-mount"

	// SourceLocalFile is the local development secrets file.
	SourceLocalFile Source = "local-file"

	// SourceEnvironment is an environment variable.
	SourceEnvironment Source = "environment"

	// SourceDefault is a caller-supplied default value.
	SourceDefault Source = "default"

	// SourceNone means resolution exhausted every source.
	SourceNone Source = "none"
)

// Attempt records one probe of the resolution chain.
type Attempt struct {
	// Source is the kind of source probed.
	Source Source

	// Location is what was probed: a file path for mounted and
	// local-file sources, the variable name for the environment.
	Location string

	// Found reports whether this probe produced the value.
	Found bool

	// Err is set for I/O failures other than plain absence.
	Err error
}

// String renders the attempt for audit output. Never includes a value.
func (a Attempt) String() string {
	switch {
	case a.Err != nil:
		return fmt.Sprintf("%s %s: error: %v", a.Source, a.Location, a.Err)
	case a.Found:
		return fmt.Sprintf("%s %s: hit", a.Source, a.Location)
	default:
		return fmt.Sprintf("%s %s: not found", a.Source, a.Location)
	}
}

// Result is the outcome of resolving one name. The value, when
// present, is owned by the Store that produced the result and is
// released by Store.Close.
type Result struct {
	// Name is the secret name as requested.
	Name string

	// Value holds the resolved bytes. Nil when Found is false and no
	// default was supplied.
	Value *Buffer

	// Found reports whether a configured source produced the value.
	// False for defaults: the caller got a usable value, but no
	// source supplied it.
	Found bool

	// Source is where the value came from, or SourceNone.
	Source Source

	// Attempts lists every probe made, in chain order.
	Attempts []Attempt
}

// LogValue implements slog.LogValuer. The value never appears; only
// the name, outcome, and provenance do.
func (r Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", r.Name),
		slog.Bool("found", r.Found),
		slog.String("source", string(r.Source)),
		slog.Int("attempts", len(r.Attempts)),
	)
}

// AuditEntry is the provenance-only view of a resolution, for the
// batch Audit operation. It has no value field of any kind, so no
// logging or serialization of an AuditEntry can leak a secret.
type AuditEntry struct {
	Name     string
	Found    bool
	Source   Source
	Attempts []Attempt
}
