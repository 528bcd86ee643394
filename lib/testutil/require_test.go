// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// recorder captures Fatalf instead of stopping the test. Fatalf
// panics so the helper's unreachable panic is never hit.
type recorder struct {
	message string
}

type fatalCalled struct{}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.message = fmt.Sprintf(format, args...)
	panic(fatalCalled{})
}

func capture(run func(t *recorder)) (message string) {
	r := &recorder{}
	defer func() {
		if recovered := recover(); recovered != nil {
			if _, ok := recovered.(fatalCalled); !ok {
				panic(recovered)
			}
			message = r.message
		}
	}()
	run(r)
	return ""
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "value"); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}

	message := capture(func(r *recorder) {
		RequireReceive(r, make(chan int), time.Millisecond, "waiting for %s", "nothing")
	})
	if message != "timed out after 1ms: waiting for nothing" {
		t.Errorf("timeout message = %q", message)
	}

	closed := make(chan int)
	close(closed)
	message = capture(func(r *recorder) { RequireReceive(r, closed, time.Second) })
	if message != "channel closed without sending a value: (no message)" {
		t.Errorf("closed message = %q", message)
	}
}

func TestRequireClosed(t *testing.T) {
	done := make(chan struct{})
	close(done)
	RequireClosed(t, done, time.Second, "done")

	message := capture(func(r *recorder) {
		RequireClosed(r, make(chan struct{}), time.Millisecond, "ready")
	})
	if message != "timed out after 1ms waiting for channel close: ready" {
		t.Errorf("timeout message = %q", message)
	}
}
