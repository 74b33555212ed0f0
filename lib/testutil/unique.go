// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now()
// when tests need unique identifiers for user IDs, key labels, or
// secret names that must be distinguishable in shared stores.
//
//	owner := testutil.UniqueID("user")  // "user-1", "user-2", ...
//	label := testutil.UniqueID("ci")    // "ci-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
