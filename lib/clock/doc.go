// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source for components that stamp or
// wait: the timeline stash records when a modifier was parked, and the
// room follower waits between /sync retries.
//
// Production code passes [Real]. Tests pass [Fake], whose time moves
// only when Advance is called; waiters registered with After fire
// during Advance, and WaitForWaiters lets a test block until a
// goroutine has parked on the clock before advancing it.
package clock
