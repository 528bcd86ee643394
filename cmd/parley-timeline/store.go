// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/parley-chat/parley/lib/config"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/snapshot"
	"github.com/parley-chat/parley/lib/timeline"
)

// frameFile is a snapshot.Store for a single room backed by frame
// files: Load reads input and Save writes output. Either may be empty.
type frameFile struct {
	input       string
	output      string
	compression snapshot.Compression
}

var _ snapshot.Store = frameFile{}

func (f frameFile) Load(ctx context.Context, roomID ref.RoomID) (timeline.Snapshot, error) {
	if f.input == "" {
		return timeline.Snapshot{}, snapshot.ErrNotFound
	}
	data, err := os.ReadFile(f.input)
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}
	return snapshot.Decode(data)
}

func (f frameFile) Save(ctx context.Context, roomID ref.RoomID, state timeline.Snapshot) error {
	if f.output == "" {
		return nil
	}
	frame, err := snapshot.Encode(state, f.compression)
	if err != nil {
		return err
	}
	return snapshot.WriteFileAtomic(f.output, frame)
}

// openStore opens the configured snapshot backend. It returns a nil
// store when persistence is disabled. The closer is never nil.
func openStore(snapshotConfig config.SnapshotConfig, logger *slog.Logger) (snapshot.Store, io.Closer, error) {
	if snapshotConfig.Backend == "" {
		return nil, nopCloser{}, nil
	}
	compression, err := snapshot.ParseCompression(snapshotConfig.Compression)
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("snapshot.compression: %w", err)
	}
	switch snapshotConfig.Backend {
	case config.BackendFile:
		store, err := snapshot.NewFileStore(snapshotConfig.Path, compression)
		return store, nopCloser{}, err
	case config.BackendPebble:
		store, err := snapshot.OpenPebbleStore(snapshotConfig.Path, compression)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return store, store, nil
	case config.BackendSQLite:
		store, err := snapshot.OpenSQLiteStore(snapshotConfig.Path, compression, logger)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return store, store, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("snapshot.backend: unknown backend %q", snapshotConfig.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
