// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/timeline"
)

const pebbleKeyPrefix = "snapshot/"

// PebbleStore keeps frames in a Pebble database under the key
// "snapshot/<room id>". It suits clients following many rooms, where
// one file per room becomes unwieldy.
type PebbleStore struct {
	db          *pebble.DB
	compression Compression
}

// OpenPebbleStore opens (creating if needed) the database directory.
// Close must be called when done.
func OpenPebbleStore(path string, compression Compression) (*PebbleStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot: pebble store path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: creating %s: %w", path, err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("snapshot: opening pebble store %s: %w", path, err)
	}
	return &PebbleStore{db: db, compression: compression}, nil
}

func pebbleKey(roomID ref.RoomID) []byte {
	return []byte(pebbleKeyPrefix + roomID.String())
}

func (s *PebbleStore) Save(ctx context.Context, roomID ref.RoomID, snapshot timeline.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := Encode(snapshot, s.compression)
	if err != nil {
		return err
	}
	if err := s.db.Set(pebbleKey(roomID), frame, pebble.Sync); err != nil {
		return fmt.Errorf("snapshot: storing room %s: %w", roomID, err)
	}
	return nil
}

func (s *PebbleStore) Load(ctx context.Context, roomID ref.RoomID) (timeline.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return timeline.Snapshot{}, err
	}
	value, closer, err := s.db.Get(pebbleKey(roomID))
	if errors.Is(err, pebble.ErrNotFound) {
		return timeline.Snapshot{}, fmt.Errorf("snapshot: room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("snapshot: reading room %s: %w", roomID, err)
	}
	// value is only valid until closer is closed.
	frame := bytes.Clone(value)
	closer.Close()

	snapshot, err := Decode(frame)
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("room %s: %w", roomID, err)
	}
	return snapshot, nil
}

// Rooms lists the rooms with a stored snapshot, in key order.
func (s *PebbleStore) Rooms(ctx context.Context) ([]ref.RoomID, error) {
	prefix := []byte(pebbleKeyPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: listing rooms: %w", err)
	}
	defer iter.Close()

	var rooms []ref.RoomID
	for valid := iter.First(); valid; valid = iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		roomID, err := ref.ParseRoomID(string(iter.Key()[len(prefix):]))
		if err != nil {
			return nil, fmt.Errorf("snapshot: key %q: %w", iter.Key(), err)
		}
		rooms = append(rooms, roomID)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("snapshot: listing rooms: %w", err)
	}
	return rooms, nil
}

// Delete removes roomID's snapshot. Deleting an absent snapshot is
// not an error.
func (s *PebbleStore) Delete(roomID ref.RoomID) error {
	if err := s.db.Delete(pebbleKey(roomID), pebble.Sync); err != nil {
		return fmt.Errorf("snapshot: deleting room %s: %w", roomID, err)
	}
	return nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// prefixUpperBound returns the smallest key greater than every key
// with the given prefix.
func prefixUpperBound(prefix []byte) []byte {
	upper := bytes.Clone(prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
