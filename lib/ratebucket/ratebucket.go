// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package ratebucket

import (
	"fmt"

	"github.com/gatehouse-project/gatehouse/lib/principal"
)

// Key returns the rate-limit bucket key for a principal. Session
// principals share one bucket per user; each personal API key gets its
// own bucket keyed by token ID, so revoking or throttling one key
// never affects the owner's session or their other keys.
//
// Key panics on an unknown credential kind: kinds are a closed set and
// a new one must decide its bucket allocation here before it can ship.
func Key(p principal.Principal) string {
	switch p.CredentialKind {
	case principal.KindSession:
		return "session:" + p.UserID
	case principal.KindPersonalAPIKey:
		return "pak:" + p.CredentialID
	default:
		panic(fmt.Sprintf("ratebucket: unknown credential kind %q", p.CredentialKind))
	}
}
