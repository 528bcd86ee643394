// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"errors"
	"fmt"
)

// ErrInvalidOperation is the single failure kind of the reconciliation
// engine. Test for it with errors.Is; use errors.As with
// *InvalidOperationError for the details.
var ErrInvalidOperation = errors.New("invalid operation")

// InvalidOperationError reports a modifier that cannot be applied to
// the view model it was resolved against.
type InvalidOperationError struct {
	// Event is the rejected modifier.
	Event Event
	// ViewModel is the view model the modifier was applied to. Nil
	// when the event itself was not recognized.
	ViewModel EventViewModel
	// Reason says why the operation was rejected.
	Reason string
}

func (e *InvalidOperationError) Error() string {
	if e.ViewModel == nil {
		return fmt.Sprintf("timeline: invalid operation: %s: %s", describe(e.Event), e.Reason)
	}
	return fmt.Sprintf("timeline: invalid operation: %s on %s: %s",
		describe(e.Event), e.ViewModel.EventID(), e.Reason)
}

// Is reports whether target is ErrInvalidOperation.
func (e *InvalidOperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}
