// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability.
//
// Production code injects [Real]; tests inject [Fake] and drive time
// with Advance. Every gatehouse function that would call time.Now,
// time.After, time.NewTicker, or time.Sleep takes a Clock (or is a
// method on a struct holding one) instead of calling the time package
// directly. Token expiry, key expiry, cache staleness, and the
// last-used flush loop are all exercised in tests purely through
// Advance, with no wall-clock sleeps.
package clock
