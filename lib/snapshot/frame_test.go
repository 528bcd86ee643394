// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/timeline"
)

// testSnapshot builds a snapshot with enough repeated text to
// compress, plus one stashed modifier.
func testSnapshot(t *testing.T, messages int) timeline.Snapshot {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 4, 1, 8, 30, 0, 123456789, time.UTC))
	state := timeline.NewRoomState(timeline.WithClock(fake))
	sender := ref.MustParseUserID("@alice:example.org")
	var events []timeline.Event
	for i := range messages {
		events = append(events, timeline.Message{
			ID:     ref.MustParseEventID(fmt.Sprintf("$message-%04d", i)),
			Age:    timeline.Age(1000 + i),
			Sender: sender,
			Body:   strings.Repeat("the quick brown fox ", 4),
		})
	}
	events = append(events, timeline.Like{
		ID:     ref.MustParseEventID("$orphan-like"),
		Age:    5,
		Sender: sender,
		Target: ref.MustParseEventID("$not-yet-seen"),
	})
	if err := state.AddEvents(events); err != nil {
		t.Fatalf("AddEvents: %v", err)
	}
	return state.Snapshot()
}

func TestFrameRoundtrip(t *testing.T) {
	original := testSnapshot(t, 20)
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			frame, err := Encode(original, compression)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			info, err := Inspect(frame)
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if info.Compression != compression {
				t.Errorf("compression = %s, want %s", info.Compression, compression)
			}
			if compression != CompressionNone && info.CompressedSize >= info.PayloadSize {
				t.Errorf("compressed %d bytes to %d", info.PayloadSize, info.CompressedSize)
			}
			decoded, err := Decode(frame)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, original) {
				t.Errorf("decoded snapshot differs:\ngot  %+v\nwant %+v", decoded, original)
			}
		})
	}
}

func TestFrameDeterministic(t *testing.T) {
	original := testSnapshot(t, 5)
	first, err := Encode(original, CompressionZstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := Encode(original, CompressionZstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(first) != string(second) {
		t.Error("equal snapshots produced different frames")
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	empty := timeline.NewRoomState().Snapshot()
	frame, err := Encode(empty, CompressionLZ4)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	info, err := Inspect(frame)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Compression != CompressionNone {
		t.Errorf("compression = %s, want none for a tiny payload", info.Compression)
	}
	if _, err := Decode(frame); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	frame, err := Encode(testSnapshot(t, 10), CompressionNone)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	info, err := Inspect(frame)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	headerSize := len(frame) - info.CompressedSize

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"truncated header", func(b []byte) []byte { return b[:5] }},
		{"truncated checksum", func(b []byte) []byte { return b[:headerSize-4] }},
		{"flipped payload byte", func(b []byte) []byte { b[len(b)-3] ^= 0x40; return b }},
		{"flipped checksum byte", func(b []byte) []byte { b[headerSize-1] ^= 0x01; return b }},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-1] }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mutated := test.mutate(append([]byte(nil), frame...))
			_, err := Decode(mutated)
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Decode error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	frame, err := Encode(testSnapshot(t, 1), CompressionNone)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame[4] = 9
	_, err = Decode(frame)
	if err == nil || !strings.Contains(err.Error(), "unsupported frame version") {
		t.Errorf("Decode error = %v, want unsupported frame version", err)
	}
}

func TestParseCompression(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompression(compression.String())
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", compression, err)
		}
		if parsed != compression {
			t.Errorf("ParseCompression(%q) = %s", compression, parsed)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression accepted brotli")
	}
}

func TestChecksumKeyed(t *testing.T) {
	a := Checksum([]byte("payload"))
	b := Checksum([]byte("payload"))
	c := Checksum([]byte("payloae"))
	if a != b {
		t.Error("checksum not deterministic")
	}
	if a == c {
		t.Error("different payloads share a checksum")
	}
}
