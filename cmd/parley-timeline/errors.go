// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "fmt"

// errorCategory classifies command errors so main can pick an exit
// code without parsing message text.
type errorCategory string

const (
	// categoryUsage means bad flags or arguments. Exit code 2.
	categoryUsage errorCategory = "usage"

	// categoryNotFound means a referenced room or file does not exist.
	categoryNotFound errorCategory = "not_found"

	// categoryInternal covers I/O failures, unparseable input and
	// homeserver errors.
	categoryInternal errorCategory = "internal"
)

// toolError is a categorized error with an optional hint printed
// after the message.
type toolError struct {
	Category errorCategory
	Err      error
	Hint     string
}

func (e *toolError) Error() string { return e.Err.Error() }

func (e *toolError) Unwrap() error { return e.Err }

// ExitCode returns 2 for usage errors and 1 otherwise.
func (e *toolError) ExitCode() int {
	if e.Category == categoryUsage {
		return 2
	}
	return 1
}

// WithHint returns e with a hint attached.
func (e *toolError) WithHint(hint string) *toolError {
	e.Hint = hint
	return e
}

func usageError(format string, args ...any) *toolError {
	return &toolError{Category: categoryUsage, Err: fmt.Errorf(format, args...)}
}

func notFoundError(format string, args ...any) *toolError {
	return &toolError{Category: categoryNotFound, Err: fmt.Errorf(format, args...)}
}

func internalError(format string, args ...any) *toolError {
	return &toolError{Category: categoryInternal, Err: fmt.Errorf(format, args...)}
}
