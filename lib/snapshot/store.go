// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/timeline"
)

// ErrNotFound is returned by Store.Load when no snapshot exists for
// the room.
var ErrNotFound = errors.New("snapshot not found")

// Store saves and loads one snapshot per room. Save replaces any
// earlier snapshot for the room.
type Store interface {
	Save(ctx context.Context, roomID ref.RoomID, snapshot timeline.Snapshot) error
	Load(ctx context.Context, roomID ref.RoomID) (timeline.Snapshot, error)
}

// FileStore keeps each room's frame in its own file under a directory.
// Writes go to a temporary file that is renamed into place, so a
// reader never sees a partial frame.
type FileStore struct {
	directory   string
	compression Compression
}

// NewFileStore creates directory if needed.
func NewFileStore(directory string, compression Compression) (*FileStore, error) {
	if directory == "" {
		return nil, fmt.Errorf("snapshot: file store directory is required")
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: creating %s: %w", directory, err)
	}
	return &FileStore{directory: directory, compression: compression}, nil
}

// Path returns the file holding roomID's snapshot. Room IDs contain
// ':' and other characters that are awkward in file names, so the
// name is the base64url form of the ID.
func (s *FileStore) Path(roomID ref.RoomID) string {
	return filepath.Join(s.directory, base64.RawURLEncoding.EncodeToString([]byte(roomID.String()))+".prly")
}

func (s *FileStore) Save(ctx context.Context, roomID ref.RoomID, snapshot timeline.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := Encode(snapshot, s.compression)
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.Path(roomID), frame)
}

func (s *FileStore) Load(ctx context.Context, roomID ref.RoomID) (timeline.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return timeline.Snapshot{}, err
	}
	frame, err := os.ReadFile(s.Path(roomID))
	if errors.Is(err, fs.ErrNotExist) {
		return timeline.Snapshot{}, fmt.Errorf("snapshot: room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("snapshot: reading room %s: %w", roomID, err)
	}
	snapshot, err := Decode(frame)
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("room %s: %w", roomID, err)
	}
	return snapshot, nil
}

// WriteFileAtomic writes data to a temporary file in path's directory
// and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("snapshot: creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("snapshot: writing %s: %w", tmpPath, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("snapshot: syncing %s: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("snapshot: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: renaming into %s: %w", path, err)
	}
	success = true
	return nil
}
