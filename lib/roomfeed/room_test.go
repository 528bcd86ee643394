// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package roomfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/snapshot"
	"github.com/parley-chat/parley/lib/timeline"
	"github.com/parley-chat/parley/messaging"
)

var (
	testRoom = ref.MustParseRoomID("!room:example.org")
	alice    = ref.MustParseUserID("@alice:example.org")
	bob      = ref.MustParseUserID("@bob:example.org")
)

func textEvent(id string, ts int64, sender ref.UserID, body string) messaging.Event {
	return messaging.Event{
		EventID:        ref.MustParseEventID(id),
		Type:           ref.EventTypeMessage,
		Sender:         sender,
		OriginServerTS: ts,
		Content:        map[string]any{"msgtype": "m.text", "body": body},
	}
}

func editEvent(id string, ts int64, sender ref.UserID, target, body string) messaging.Event {
	return messaging.Event{
		EventID:        ref.MustParseEventID(id),
		Type:           ref.EventTypeMessage,
		Sender:         sender,
		OriginServerTS: ts,
		Content: map[string]any{
			"body":          "* " + body,
			"m.new_content": map[string]any{"body": body},
			"m.relates_to":  map[string]any{"rel_type": "m.replace", "event_id": target},
		},
	}
}

func redactionEvent(id string, ts int64, sender ref.UserID, target string) messaging.Event {
	return messaging.Event{
		EventID:        ref.MustParseEventID(id),
		Type:           ref.EventTypeRedaction,
		Sender:         sender,
		OriginServerTS: ts,
		Redacts:        ref.MustParseEventID(target),
		Content:        map[string]any{},
	}
}

func reactionEvent(id string, ts int64, sender ref.UserID, target string) messaging.Event {
	return messaging.Event{
		EventID:        ref.MustParseEventID(id),
		Type:           ref.EventTypeReaction,
		Sender:         sender,
		OriginServerTS: ts,
		Content: map[string]any{
			"m.relates_to": map[string]any{"rel_type": "m.annotation", "event_id": target, "key": "👍"},
		},
	}
}

func memberEvent(id string, ts int64, sender ref.UserID) messaging.Event {
	stateKey := sender.String()
	return messaging.Event{
		EventID:        ref.MustParseEventID(id),
		Type:           ref.EventTypeMember,
		Sender:         sender,
		OriginServerTS: ts,
		StateKey:       &stateKey,
		Content:        map[string]any{"membership": "join"},
	}
}

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	metrics, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return metrics
}

func newTestRoom(t *testing.T, config RoomConfig) *Room {
	t.Helper()
	if config.ID.IsZero() {
		config.ID = testRoom
	}
	room, err := NewRoom(config)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return room
}

func messageAt(t *testing.T, room *Room, id string) timeline.MessageViewModel {
	t.Helper()
	viewModel, ok := room.ViewModel(ref.MustParseEventID(id))
	if !ok {
		t.Fatalf("no view model for %s", id)
	}
	message, ok := viewModel.(timeline.MessageViewModel)
	if !ok {
		t.Fatalf("view model for %s is %T, want MessageViewModel", id, viewModel)
	}
	return message
}

func TestNewRoomRequiresID(t *testing.T) {
	if _, err := NewRoom(RoomConfig{}); err == nil {
		t.Fatal("NewRoom accepted a zero room ID")
	}
}

func TestApplyReconcilesOutOfOrderBatch(t *testing.T) {
	metrics := newTestMetrics(t)
	room := newTestRoom(t, RoomConfig{Metrics: metrics})

	// The edit and the like arrive before their target.
	err := room.Apply(context.Background(), []messaging.Event{
		editEvent("$e1", 20, alice, "$m1", "hello, world"),
		reactionEvent("$l1", 30, bob, "$m1"),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if room.StashedCount() != 2 {
		t.Fatalf("stashed = %d, want 2", room.StashedCount())
	}

	err = room.Apply(context.Background(), []messaging.Event{
		textEvent("$m1", 10, alice, "hello"),
		memberEvent("$j1", 5, bob),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	message := messageAt(t, room, "$m1")
	if message.Body != "hello, world" || !message.Edited || message.LikeCount != 1 {
		t.Errorf("message = %+v", message)
	}
	if room.StashedCount() != 0 {
		t.Errorf("stashed = %d after target arrived", room.StashedCount())
	}
	if got := testutil.ToFloat64(metrics.applied.WithLabelValues("edit")); got != 1 {
		t.Errorf("applied edits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.skipped); got != 1 {
		t.Errorf("skipped = %v, want 1 (the member event)", got)
	}
	if got := testutil.ToFloat64(metrics.stashed.WithLabelValues(testRoom.String())); got != 0 {
		t.Errorf("stashed gauge = %v, want 0", got)
	}
}

func TestApplySkipsDuplicates(t *testing.T) {
	metrics := newTestMetrics(t)
	room := newTestRoom(t, RoomConfig{Metrics: metrics})
	batch := []messaging.Event{
		textEvent("$m1", 10, alice, "hi"),
		reactionEvent("$l1", 11, bob, "$m1"),
	}
	for range 3 {
		if err := room.Apply(context.Background(), batch); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if got := messageAt(t, room, "$m1").LikeCount; got != 1 {
		t.Errorf("like count = %d after redelivery, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.skipped); got != 4 {
		t.Errorf("skipped = %v, want 4", got)
	}
	if groups := room.Groups(); len(groups) != 2 {
		t.Errorf("groups = %d, want 2 (message, reaction)", len(groups))
	}
}

func TestApplyContinuesPastRejection(t *testing.T) {
	metrics := newTestMetrics(t)
	room := newTestRoom(t, RoomConfig{Metrics: metrics})
	if err := room.Apply(context.Background(), []messaging.Event{
		textEvent("$m1", 10, alice, "oops"),
		redactionEvent("$r1", 20, alice, "$m1"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	err := room.Apply(context.Background(), []messaging.Event{
		editEvent("$e1", 30, alice, "$m1", "too late"),
		textEvent("$m2", 40, bob, "next"),
	})
	if !errors.Is(err, timeline.ErrInvalidOperation) {
		t.Fatalf("error = %v, want ErrInvalidOperation", err)
	}
	if _, ok := room.ViewModel(ref.MustParseEventID("$m2")); !ok {
		t.Error("event after the rejected edit was not applied")
	}
	if _, ok := room.ViewModel(ref.MustParseEventID("$m1")); !ok {
		t.Error("tombstone missing")
	}
	if got := testutil.ToFloat64(metrics.rejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
}

func TestApplySkipsMalformed(t *testing.T) {
	room := newTestRoom(t, RoomConfig{})
	broken := messaging.Event{
		EventID: ref.MustParseEventID("$r1"),
		Type:    ref.EventTypeRedaction,
		Content: map[string]any{},
	}
	if err := room.Apply(context.Background(), []messaging.Event{broken, textEvent("$m1", 1, alice, "ok")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := len(room.Timeline()); got != 1 {
		t.Errorf("timeline length = %d, want 1", got)
	}
}

func TestApplyEvictsStash(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	metrics := newTestMetrics(t)
	room := newTestRoom(t, RoomConfig{
		StashPolicy: timeline.StashPolicy{TTL: time.Minute},
		Clock:       fake,
		Metrics:     metrics,
	})

	if err := room.Apply(context.Background(), []messaging.Event{
		reactionEvent("$l1", 10, bob, "$missing"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if room.StashedCount() != 1 {
		t.Fatalf("stashed = %d, want 1", room.StashedCount())
	}

	fake.Advance(2 * time.Minute)
	if err := room.Apply(context.Background(), []messaging.Event{textEvent("$m1", 20, alice, "later")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if room.StashedCount() != 0 {
		t.Errorf("stashed = %d after TTL, want 0", room.StashedCount())
	}
	if got := testutil.ToFloat64(metrics.evicted); got != 1 {
		t.Errorf("evicted = %v, want 1", got)
	}
}

func TestEvictStashWithoutEvents(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	room := newTestRoom(t, RoomConfig{
		StashPolicy: timeline.StashPolicy{TTL: time.Second},
		Clock:       fake,
	})
	if err := room.Apply(context.Background(), []messaging.Event{
		editEvent("$e1", 10, alice, "$missing", "x"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	fake.Advance(time.Second)
	evicted := room.EvictStash()
	if len(evicted) != 1 || evicted[0].EventID() != ref.MustParseEventID("$e1") {
		t.Errorf("evicted = %v", evicted)
	}
}

func TestOpenRoomRestoresFromStore(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir(), snapshot.CompressionZstd)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	metrics := newTestMetrics(t)
	ctx := context.Background()

	room, err := OpenRoom(ctx, RoomConfig{ID: testRoom, Store: store, Metrics: metrics})
	if err != nil {
		t.Fatalf("OpenRoom (empty store): %v", err)
	}
	if err := room.Apply(ctx, []messaging.Event{
		textEvent("$m1", 10, alice, "persisted"),
		reactionEvent("$l1", 20, bob, "$m1"),
		editEvent("$e9", 30, alice, "$m9", "pending"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	reopened, err := OpenRoom(ctx, RoomConfig{ID: testRoom, Store: store, Metrics: metrics})
	if err != nil {
		t.Fatalf("OpenRoom: %v", err)
	}
	if got := messageAt(t, reopened, "$m1"); got.Body != "persisted" || got.LikeCount != 1 {
		t.Errorf("restored message = %+v", got)
	}
	if reopened.StashedCount() != 1 {
		t.Errorf("restored stash = %d, want 1", reopened.StashedCount())
	}

	// Redelivered events are recognised after a restore.
	if err := reopened.Apply(ctx, []messaging.Event{reactionEvent("$l1", 20, bob, "$m1")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := messageAt(t, reopened, "$m1").LikeCount; got != 1 {
		t.Errorf("like count after redelivery = %d, want 1", got)
	}

	// The stashed edit replays when its target finally arrives.
	if err := reopened.Apply(ctx, []messaging.Event{textEvent("$m9", 25, alice, "draft")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := messageAt(t, reopened, "$m9"); got.Body != "pending" || !got.Edited {
		t.Errorf("replayed message = %+v", got)
	}

	if got := testutil.ToFloat64(metrics.snapshots.WithLabelValues("save", "ok")); got != 2 {
		t.Errorf("saves = %v, want 2 (redelivery alone saves nothing)", got)
	}
}

func TestOpenRoomCorruptSnapshot(t *testing.T) {
	directory := t.TempDir()
	store, err := snapshot.NewFileStore(directory, snapshot.CompressionNone)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := snapshot.WriteFileAtomic(store.Path(testRoom), []byte("not a snapshot")); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}
	if _, err := OpenRoom(context.Background(), RoomConfig{ID: testRoom, Store: store}); !errors.Is(err, snapshot.ErrCorrupt) {
		t.Errorf("error = %v, want ErrCorrupt", err)
	}
}

func TestOpenRoomIgnoresRedeliveredHistory(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir(), snapshot.CompressionNone)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	history := []messaging.Event{
		textEvent("$m1", 10, alice, "hello"),
		reactionEvent("$l1", 11, bob, "$m1"),
		textEvent("$m2", 12, alice, "regret"),
		redactionEvent("$r2", 13, alice, "$m2"),
	}

	room, err := OpenRoom(ctx, RoomConfig{ID: testRoom, Store: store})
	if err != nil {
		t.Fatalf("OpenRoom: %v", err)
	}
	if err := room.Apply(ctx, history); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// A client resuming from an older sync position sees the same
	// events again.
	reopened, err := OpenRoom(ctx, RoomConfig{ID: testRoom, Store: store})
	if err != nil {
		t.Fatalf("OpenRoom: %v", err)
	}
	if err := reopened.Apply(ctx, history); err != nil {
		t.Fatalf("Apply after restore: %v", err)
	}
	if got := messageAt(t, reopened, "$m1").LikeCount; got != 1 {
		t.Errorf("like count = %d, want 1", got)
	}
	viewModel, ok := reopened.ViewModel(ref.MustParseEventID("$m2"))
	if !ok {
		t.Fatal("$m2 missing")
	}
	if _, tombstone := viewModel.(timeline.TombstoneViewModel); !tombstone {
		t.Errorf("$m2 = %T, want TombstoneViewModel", viewModel)
	}
}

func TestApplyRedactedReactionRemovesLike(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir(), snapshot.CompressionNone)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	metrics := newTestMetrics(t)
	ctx := context.Background()
	room, err := OpenRoom(ctx, RoomConfig{ID: testRoom, Store: store, Metrics: metrics})
	if err != nil {
		t.Fatalf("OpenRoom: %v", err)
	}
	if err := room.Apply(ctx, []messaging.Event{
		textEvent("$m1", 10, alice, "hello"),
		reactionEvent("$l1", 11, bob, "$m1"),
		reactionEvent("$l2", 12, alice, "$m1"),
		redactionEvent("$r1", 13, bob, "$l1"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := messageAt(t, room, "$m1").LikeCount; got != 1 {
		t.Errorf("like count = %d, want 1", got)
	}
	if room.StashedCount() != 0 {
		t.Errorf("stashed = %d, want 0", room.StashedCount())
	}

	// The reaction can still be taken back after a restore.
	reopened, err := OpenRoom(ctx, RoomConfig{ID: testRoom, Store: store, Metrics: metrics})
	if err != nil {
		t.Fatalf("OpenRoom: %v", err)
	}
	if err := reopened.Apply(ctx, []messaging.Event{redactionEvent("$r2", 14, alice, "$l2")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := messageAt(t, reopened, "$m1").LikeCount; got != 0 {
		t.Errorf("like count after restore = %d, want 0", got)
	}
	if reopened.StashedCount() != 0 {
		t.Errorf("stashed after restore = %d, want 0", reopened.StashedCount())
	}
	if got := testutil.ToFloat64(metrics.rejected); got != 0 {
		t.Errorf("rejected = %v, want 0", got)
	}
}
