// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/parley-chat/parley/lib/config"
)

// newLogger builds the command logger. Format "auto" picks
// slog.TextHandler when stderr is a terminal and slog.JSONHandler
// when it is piped or redirected.
func newLogger(output io.Writer, terminal bool, logConfig config.LogConfig) (*slog.Logger, error) {
	level, err := logConfig.SlogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}

	format := logConfig.Format
	if format == "" || format == "auto" {
		format = "json"
		if terminal {
			format = "text"
		}
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(output, options)
	case "json":
		handler = slog.NewJSONHandler(output, options)
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", logConfig.Format)
	}
	return slog.New(handler), nil
}
