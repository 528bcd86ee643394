// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds Matrix access tokens outside the Go heap.
//
// A [Buffer] is an anonymous mmap region locked into RAM (mlock) and
// excluded from core dumps (MADV_DONTDUMP). Close zeroes, unlocks and
// unmaps it; any access afterwards panics. [ReadFromPath] loads a
// token file (or stdin) straight into a Buffer.
package secret
