// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/sqlitepool"
	"github.com/parley-chat/parley/lib/timeline"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS room_snapshots (
	room_id    TEXT PRIMARY KEY,
	frame      BLOB NOT NULL,
	view_models INTEGER NOT NULL,
	stashed    INTEGER NOT NULL
);`

// SQLiteStore keeps one row per room. The view model and stash counts
// are stored alongside the frame so they can be queried without
// decoding it.
type SQLiteStore struct {
	pool        *sqlitepool.Pool
	compression Compression
}

// OpenSQLiteStore opens (creating if needed) the database file at
// path. Close must be called when done.
func OpenSQLiteStore(path string, compression Compression, logger *slog.Logger) (*SQLiteStore, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: sqliteSchema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return &SQLiteStore{pool: pool, compression: compression}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, roomID ref.RoomID, snapshot timeline.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := Encode(snapshot, s.compression)
	if err != nil {
		return err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO room_snapshots (room_id, frame, view_models, stashed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id) DO UPDATE SET
			frame = excluded.frame,
			view_models = excluded.view_models,
			stashed = excluded.stashed`,
		&sqlitex.ExecOptions{
			Args: []any{roomID.String(), frame, len(snapshot.ViewModels), len(snapshot.Stash)},
		})
	if err != nil {
		return fmt.Errorf("snapshot: storing room %s: %w", roomID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, roomID ref.RoomID) (timeline.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return timeline.Snapshot{}, err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	defer s.pool.Put(conn)

	var frame []byte
	err = sqlitex.Execute(conn, `SELECT frame FROM room_snapshots WHERE room_id = ?`, &sqlitex.ExecOptions{
		Args: []any{roomID.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			frame = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, frame)
			return nil
		},
	})
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("snapshot: reading room %s: %w", roomID, err)
	}
	if frame == nil {
		return timeline.Snapshot{}, fmt.Errorf("snapshot: room %s: %w", roomID, ErrNotFound)
	}
	snapshot, err := Decode(frame)
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("room %s: %w", roomID, err)
	}
	return snapshot, nil
}

// RoomSummary is one row of Summaries.
type RoomSummary struct {
	RoomID     ref.RoomID
	ViewModels int
	Stashed    int
}

// Summaries lists stored rooms with their counts, ordered by room ID.
func (s *SQLiteStore) Summaries(ctx context.Context) ([]RoomSummary, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer s.pool.Put(conn)

	var summaries []RoomSummary
	err = sqlitex.Execute(conn, `SELECT room_id, view_models, stashed FROM room_snapshots ORDER BY room_id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			roomID, err := ref.ParseRoomID(stmt.ColumnText(0))
			if err != nil {
				return err
			}
			summaries = append(summaries, RoomSummary{
				RoomID:     roomID,
				ViewModels: stmt.ColumnInt(1),
				Stashed:    stmt.ColumnInt(2),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: listing rooms: %w", err)
	}
	return summaries, nil
}

// Close closes the connection pool.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}
