// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/parley-chat/parley/lib/ref"
)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

var storeFactories = []storeFactory{
	{"file", func(t *testing.T) Store {
		store, err := NewFileStore(filepath.Join(t.TempDir(), "snapshots"), CompressionZstd)
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		return store
	}},
	{"pebble", func(t *testing.T) Store {
		store, err := OpenPebbleStore(filepath.Join(t.TempDir(), "pebble"), CompressionLZ4)
		if err != nil {
			t.Fatalf("OpenPebbleStore: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	}},
	{"sqlite", func(t *testing.T) Store {
		store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"), CompressionZstd, nil)
		if err != nil {
			t.Fatalf("OpenSQLiteStore: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	}},
}

func TestStoreRoundtrip(t *testing.T) {
	roomID := ref.MustParseRoomID("!room:example.org")
	for _, factory := range storeFactories {
		t.Run(factory.name, func(t *testing.T) {
			store := factory.open(t)
			ctx := context.Background()

			if _, err := store.Load(ctx, roomID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load before Save = %v, want ErrNotFound", err)
			}

			first := testSnapshot(t, 3)
			if err := store.Save(ctx, roomID, first); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := store.Load(ctx, roomID)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(loaded, first) {
				t.Errorf("loaded %+v, want %+v", loaded, first)
			}

			second := testSnapshot(t, 7)
			if err := store.Save(ctx, roomID, second); err != nil {
				t.Fatalf("second Save: %v", err)
			}
			loaded, err = store.Load(ctx, roomID)
			if err != nil {
				t.Fatalf("second Load: %v", err)
			}
			if len(loaded.ViewModels) != 7 {
				t.Errorf("loaded %d view models, want 7", len(loaded.ViewModels))
			}

			other := ref.MustParseRoomID("!other:example.org")
			if _, err := store.Load(ctx, other); !errors.Is(err, ErrNotFound) {
				t.Errorf("Load(other) = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	roomID := ref.MustParseRoomID("!room:example.org")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, factory := range storeFactories {
		t.Run(factory.name, func(t *testing.T) {
			store := factory.open(t)
			if err := store.Save(ctx, roomID, testSnapshot(t, 1)); err == nil {
				t.Error("Save succeeded with cancelled context")
			}
		})
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), CompressionNone)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	roomID := ref.MustParseRoomID("!room:example.org")
	if err := os.WriteFile(store.Path(roomID), []byte("PRLY garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := store.Load(context.Background(), roomID); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load = %v, want ErrCorrupt", err)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	directory := t.TempDir()
	store, err := NewFileStore(directory, CompressionLZ4)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save(context.Background(), ref.MustParseRoomID("!a:example.org"), testSnapshot(t, 2)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".prly" {
		t.Errorf("directory holds %v, want one .prly file", entries)
	}
}

func TestPebbleStoreRoomsAndDelete(t *testing.T) {
	store, err := OpenPebbleStore(filepath.Join(t.TempDir(), "pebble"), CompressionZstd)
	if err != nil {
		t.Fatalf("OpenPebbleStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	rooms := []ref.RoomID{
		ref.MustParseRoomID("!b:example.org"),
		ref.MustParseRoomID("!a:example.org"),
	}
	for _, roomID := range rooms {
		if err := store.Save(ctx, roomID, testSnapshot(t, 1)); err != nil {
			t.Fatalf("Save(%s): %v", roomID, err)
		}
	}
	listed, err := store.Rooms(ctx)
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}
	want := []ref.RoomID{rooms[1], rooms[0]}
	if !reflect.DeepEqual(listed, want) {
		t.Errorf("Rooms = %v, want %v", listed, want)
	}

	if err := store.Delete(rooms[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, rooms[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreSummaries(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"), CompressionNone, nil)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	roomID := ref.MustParseRoomID("!room:example.org")
	if err := store.Save(ctx, roomID, testSnapshot(t, 4)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	summaries, err := store.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	want := []RoomSummary{{RoomID: roomID, ViewModels: 4, Stashed: 1}}
	if !reflect.DeepEqual(summaries, want) {
		t.Errorf("Summaries = %+v, want %+v", summaries, want)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix, want string
	}{
		{"snapshot/", "snapshot0"},
		{"a\xff", "b"},
		{"\xff\xff", ""},
	}
	for _, test := range tests {
		got := string(prefixUpperBound([]byte(test.prefix)))
		if got != test.want {
			t.Errorf("prefixUpperBound(%q) = %q, want %q", test.prefix, got, test.want)
		}
	}
}
