// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package roomfeed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/snapshot"
	"github.com/parley-chat/parley/lib/timeline"
	"github.com/parley-chat/parley/messaging"
)

// RoomConfig configures a Room.
type RoomConfig struct {
	// ID is the room's Matrix ID. Required.
	ID ref.RoomID

	// StashPolicy bounds modifiers waiting for their target. The zero
	// policy keeps them indefinitely.
	StashPolicy timeline.StashPolicy

	// Store persists the room after each batch. Nil disables
	// persistence.
	Store snapshot.Store

	// Clock stamps and expires stashed modifiers. Nil means
	// clock.Real().
	Clock clock.Clock

	// Metrics may be nil.
	Metrics *Metrics

	// Logger nil means slog.Default().
	Logger *slog.Logger
}

// Room is the reconciled timeline of one Matrix room. It is safe for
// concurrent use; batches are applied one at a time.
type Room struct {
	id      ref.RoomID
	store   snapshot.Store
	clock   clock.Clock
	metrics *Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	state *timeline.RoomState
	seen  map[ref.EventID]struct{}
	// events holds every distinct raw event applied, in arrival order,
	// for grouping. It is not persisted.
	events []messaging.Event
}

// NewRoom returns an empty Room.
func NewRoom(config RoomConfig) (*Room, error) {
	room, err := newRoom(config)
	if err != nil {
		return nil, err
	}
	room.state = timeline.NewRoomState(room.stateOptions(config)...)
	return room, nil
}

// OpenRoom returns a Room restored from config.Store, or an empty one
// if the store has no snapshot for the room.
func OpenRoom(ctx context.Context, config RoomConfig) (*Room, error) {
	room, err := newRoom(config)
	if err != nil {
		return nil, err
	}
	if room.store == nil {
		room.state = timeline.NewRoomState(room.stateOptions(config)...)
		return room, nil
	}

	saved, err := room.store.Load(ctx, room.id)
	room.metrics.snapshotDone("load", ignoreNotFound(err))
	if errors.Is(err, snapshot.ErrNotFound) {
		room.state = timeline.NewRoomState(room.stateOptions(config)...)
		return room, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roomfeed: loading snapshot for %s: %w", room.id, err)
	}

	state, err := timeline.Restore(saved, room.stateOptions(config)...)
	if err != nil {
		return nil, fmt.Errorf("roomfeed: restoring %s: %w", room.id, err)
	}
	room.state = state
	for _, record := range saved.ViewModels {
		room.seen[record.ID] = struct{}{}
	}
	for _, record := range saved.Stash {
		room.seen[record.Event.ID] = struct{}{}
	}
	for _, record := range saved.Consumed {
		room.seen[record.ID] = struct{}{}
	}
	room.metrics.setStashed(room.id, state.StashedCount())
	room.logger.Info("room restored from snapshot",
		"room_id", room.id,
		"view_models", state.Len(),
		"stashed", state.StashedCount(),
	)
	return room, nil
}

func newRoom(config RoomConfig) (*Room, error) {
	if config.ID.IsZero() {
		return nil, fmt.Errorf("roomfeed: room ID is required")
	}
	roomClock := config.Clock
	if roomClock == nil {
		roomClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Room{
		id:      config.ID,
		store:   config.Store,
		clock:   roomClock,
		metrics: config.Metrics,
		logger:  logger,
		seen:    make(map[ref.EventID]struct{}),
	}, nil
}

func (r *Room) stateOptions(config RoomConfig) []timeline.Option {
	return []timeline.Option{
		timeline.WithClock(r.clock),
		timeline.WithStashPolicy(config.StashPolicy),
	}
}

// ID returns the room's ID.
func (r *Room) ID() ref.RoomID { return r.id }

// Apply reconciles a batch of raw events. Events already seen are
// skipped, as are events that are not timeline events. Malformed
// events are logged and skipped. The rest are applied in age order;
// an event the room state rejects does not stop the batch. After the
// batch the stash is trimmed and, with a Store, the room is saved.
//
// The returned error joins every rejection and any save failure. The
// room reflects all accepted events either way.
func (r *Room) Apply(ctx context.Context, events []messaging.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var converted []timeline.Event
	for _, event := range events {
		if !event.EventID.IsZero() {
			if _, duplicate := r.seen[event.EventID]; duplicate {
				r.metrics.eventSkipped()
				continue
			}
			r.seen[event.EventID] = struct{}{}
		}
		r.events = append(r.events, event)

		timelineEvent, err := messaging.ToTimelineEvent(event)
		if errors.Is(err, messaging.ErrNotTimelineEvent) {
			r.metrics.eventSkipped()
			continue
		}
		if err != nil {
			r.metrics.eventSkipped()
			r.logger.Warn("skipping malformed event",
				"room_id", r.id,
				"event_id", event.EventID,
				"error", err,
			)
			continue
		}
		converted = append(converted, timelineEvent)
	}

	slices.SortStableFunc(converted, func(a, b timeline.Event) int {
		return cmp.Compare(a.EventAge(), b.EventAge())
	})

	var errs []error
	for _, event := range converted {
		if err := r.state.Add(event); err != nil {
			r.metrics.eventRejected()
			r.logger.Warn("event rejected",
				"room_id", r.id,
				"event_id", event.EventID(),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		r.metrics.eventApplied(event)
	}

	r.evictLocked()

	if r.store != nil && len(converted) > 0 {
		err := r.store.Save(ctx, r.id, r.state.Snapshot())
		r.metrics.snapshotDone("save", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("roomfeed: saving snapshot for %s: %w", r.id, err))
		}
	}
	return errors.Join(errs...)
}

// EvictStash applies the stash policy now. Apply already does this
// after every batch; call it directly to expire modifiers while no
// events arrive.
func (r *Room) EvictStash() []timeline.Modifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked()
}

func (r *Room) evictLocked() []timeline.Modifier {
	evicted := r.state.EvictStash(r.clock.Now())
	for _, modifier := range evicted {
		r.logger.Info("stashed modifier evicted",
			"room_id", r.id,
			"event_id", modifier.EventID(),
			"target_id", modifier.TargetID(),
		)
	}
	r.metrics.stashEvicted(len(evicted))
	r.metrics.setStashed(r.id, r.state.StashedCount())
	return evicted
}

// Timeline returns the view models oldest first.
func (r *Room) Timeline() []timeline.EventViewModel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Timeline()
}

// ViewModel returns the view model for id.
func (r *Room) ViewModel(id ref.EventID) (timeline.EventViewModel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.ViewModel(id)
}

// Events returns the distinct raw events applied since the room was
// created or opened, in arrival order.
func (r *Room) Events() []messaging.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Groups groups the raw events applied since the room was created or
// opened. Events restored from a snapshot are not included.
func (r *Room) Groups() []timeline.Group[messaging.Event] {
	r.mu.Lock()
	events := slices.Clone(r.events)
	r.mu.Unlock()
	return timeline.GroupEvents(events)
}

// StashedCount returns the number of modifiers waiting for a target.
func (r *Room) StashedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.StashedCount()
}

// Snapshot returns a serializable copy of the room state.
func (r *Room) Snapshot() timeline.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Snapshot()
}

func ignoreNotFound(err error) error {
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil
	}
	return err
}
