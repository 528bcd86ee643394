// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for parley packages.
//
// [RequireReceive] and [RequireClosed] wrap the timeout safety valve
// pattern (select with a time.After fallback) so a test that would
// otherwise hang on a channel fails with a message instead. They are
// the only place tests wait on the wall clock; everything else runs
// on a clock.Fake.
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
