// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/parley-chat/parley/lib/ref"
)

type sampleRecord struct {
	Kind   string      `json:"kind"`
	ID     ref.EventID `json:"id"`
	Sender ref.UserID  `json:"sender,omitempty"`
	Count  int         `json:"count"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Kind:   "message",
		ID:     ref.MustParseEventID("$abc"),
		Sender: ref.MustParseUserID("@alice:example.org"),
		Count:  42,
	}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"b": 2, "a": 1, "c": []any{"x", 3}}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestIdentifiersEncodeAsText(t *testing.T) {
	data, err := Marshal(ref.MustParseEventID("$abc"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if diagnostic != `"$abc"` {
		t.Errorf("diagnostic = %s, want \"$abc\"", diagnostic)
	}
}

func TestTimePrecision(t *testing.T) {
	original := time.Date(2026, 2, 3, 4, 5, 6, 789, time.UTC)
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded time.Time
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Equal(original) {
		t.Errorf("decoded %v, want %v", decoded, original)
	}
}

func TestAnyDecodesToStringMap(t *testing.T) {
	data, err := Marshal(map[string]any{"body": "hi"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	content, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if content["body"] != "hi" {
		t.Errorf("body = %v, want hi", content["body"])
	}
}

func TestStreamRoundtrip(t *testing.T) {
	records := []sampleRecord{
		{Kind: "message", ID: ref.MustParseEventID("$1"), Count: 1},
		{Kind: "like", ID: ref.MustParseEventID("$2")},
	}
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	decoder := NewDecoder(&buffer)
	for i, want := range records {
		var got sampleRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if got != want {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var decoded sampleRecord
	err := Unmarshal([]byte{0xff, 0x00}, &decoded)
	if err == nil {
		t.Fatal("Unmarshal accepted invalid CBOR")
	}
	if strings.TrimSpace(err.Error()) == "" {
		t.Error("empty error message")
	}
}
