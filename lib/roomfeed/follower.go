// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package roomfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/snapshot"
	"github.com/parley-chat/parley/lib/timeline"
	"github.com/parley-chat/parley/messaging"
)

// maxSyncRetries is the number of consecutive /sync failures allowed
// before Run returns an error.
const maxSyncRetries = 5

// DefaultLongPollTimeout is the server-side /sync hold time in
// milliseconds.
const DefaultLongPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds used after a
// /sync error, so the retry completes quickly.
const retryTimeout = 1000

// retryBackoff is multiplied by the attempt number to get the wait
// before a retry.
const retryBackoff = 500 * time.Millisecond

// FollowerConfig configures a Follower.
type FollowerConfig struct {
	// Syncer performs /sync requests. Required.
	Syncer messaging.Syncer

	// Filter narrows the sync. Its timeline types default to
	// messaging.TimelineEventTypes.
	Filter messaging.SyncFilter

	// Since resumes from a previous sync position. Empty starts with
	// an initial sync.
	Since string

	// LongPollTimeout is the /sync hold time in milliseconds. Zero
	// means DefaultLongPollTimeout.
	LongPollTimeout int

	// StashPolicy, Store, Clock, Metrics and Logger are passed to every
	// Room the follower opens.
	StashPolicy timeline.StashPolicy
	Store       snapshot.Store
	Clock       clock.Clock
	Metrics     *Metrics
	Logger      *slog.Logger
}

// Follower applies the /sync stream to per-room timelines.
type Follower struct {
	syncer  messaging.Syncer
	filter  string
	timeout int
	config  FollowerConfig
	clock   clock.Clock
	logger  *slog.Logger

	mu        sync.Mutex
	rooms     map[ref.RoomID]*Room
	nextBatch string
}

// NewFollower validates config and returns a Follower. No request is
// made until Run or SyncOnce.
func NewFollower(config FollowerConfig) (*Follower, error) {
	if config.Syncer == nil {
		return nil, fmt.Errorf("roomfeed: Syncer is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if len(config.Filter.TimelineTypes) == 0 {
		config.Filter.TimelineTypes = messaging.TimelineEventTypes
	}
	timeout := config.LongPollTimeout
	if timeout <= 0 {
		timeout = DefaultLongPollTimeout
	}
	return &Follower{
		syncer:    config.Syncer,
		filter:    config.Filter.Inline(),
		timeout:   timeout,
		config:    config,
		clock:     config.Clock,
		logger:    config.Logger,
		rooms:     make(map[ref.RoomID]*Room),
		nextBatch: config.Since,
	}, nil
}

// Room returns the Room for roomID, opening it (and restoring it from
// the store, if one is configured) on first use.
func (f *Follower) Room(ctx context.Context, roomID ref.RoomID) (*Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[roomID]; ok {
		return room, nil
	}
	room, err := OpenRoom(ctx, RoomConfig{
		ID:          roomID,
		StashPolicy: f.config.StashPolicy,
		Store:       f.config.Store,
		Clock:       f.clock,
		Metrics:     f.config.Metrics,
		Logger:      f.logger,
	})
	if err != nil {
		return nil, err
	}
	f.rooms[roomID] = room
	return room, nil
}

// Rooms returns the IDs of the rooms opened so far, sorted.
func (f *Follower) Rooms() []ref.RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.SortedFunc(maps.Keys(f.rooms), compareRoomIDs)
}

// SyncPosition returns the next_batch token of the last applied sync.
func (f *Follower) SyncPosition() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextBatch
}

// SyncOnce performs a single /sync with the given server-side timeout
// in milliseconds and applies the response.
func (f *Follower) SyncOnce(ctx context.Context, timeout int) error {
	response, err := f.syncer.Sync(ctx, f.syncOptions(timeout))
	if err != nil {
		return fmt.Errorf("roomfeed: sync: %w", err)
	}
	return f.apply(ctx, response)
}

// Run follows the sync stream until ctx is cancelled or /sync fails
// permanently. Transient failures are retried up to maxSyncRetries
// consecutive times, waiting a little longer after each. Errors from
// applying a batch are logged and do not stop the loop.
func (f *Follower) Run(ctx context.Context) error {
	var syncRetries int
	for {
		timeout := f.timeout
		switch {
		case syncRetries > 0:
			timeout = retryTimeout
		case f.SyncPosition() == "":
			timeout = 0
		}

		response, err := f.syncer.Sync(ctx, f.syncOptions(timeout))
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("roomfeed: following sync: %w", ctx.Err())
			}
			if messaging.IsPermanent(err) {
				return fmt.Errorf("roomfeed: sync rejected: %w", err)
			}
			syncRetries++
			f.config.Metrics.syncRetried()
			if closer, ok := f.syncer.(interface{ CloseIdleConnections() }); ok {
				closer.CloseIdleConnections()
			}
			if syncRetries > maxSyncRetries {
				return fmt.Errorf("roomfeed: sync failed %d consecutive times: %w", syncRetries, err)
			}
			f.logger.Debug("sync error, retrying",
				"attempt", syncRetries,
				"max_attempts", maxSyncRetries,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("roomfeed: following sync: %w", ctx.Err())
			case <-f.clock.After(time.Duration(syncRetries) * retryBackoff):
			}
			continue
		}
		syncRetries = 0

		if err := f.apply(ctx, response); err != nil {
			f.logger.Warn("sync batch applied with errors",
				"next_batch", response.NextBatch,
				"error", err,
			)
		}
	}
}

func (f *Follower) syncOptions(timeout int) messaging.SyncOptions {
	return messaging.SyncOptions{
		Since:      f.SyncPosition(),
		SetTimeout: true,
		Timeout:    timeout,
		Filter:     f.filter,
	}
}

// apply routes every room's timeline in response to its Room, then
// advances the sync position. Rooms are visited in ID order, joined
// rooms before left rooms.
func (f *Follower) apply(ctx context.Context, response *messaging.SyncResponse) error {
	var errs []error
	for _, roomID := range slices.SortedFunc(maps.Keys(response.Rooms.Join), compareRoomIDs) {
		errs = append(errs, f.applyTimeline(ctx, roomID, response.Rooms.Join[roomID].Timeline))
	}
	for _, roomID := range slices.SortedFunc(maps.Keys(response.Rooms.Leave), compareRoomIDs) {
		errs = append(errs, f.applyTimeline(ctx, roomID, response.Rooms.Leave[roomID].Timeline))
	}

	f.mu.Lock()
	f.nextBatch = response.NextBatch
	f.mu.Unlock()
	return errors.Join(errs...)
}

func (f *Follower) applyTimeline(ctx context.Context, roomID ref.RoomID, section messaging.TimelineSection) error {
	if len(section.Events) == 0 {
		return nil
	}
	room, err := f.Room(ctx, roomID)
	if err != nil {
		return err
	}
	if section.Limited {
		// Events between prev_batch and this batch are missing; their
		// modifiers stay stashed until the gap is filled by history.
		f.logger.Info("timeline gap",
			"room_id", roomID,
			"prev_batch", section.PrevBatch,
		)
	}
	f.logger.Debug("applying timeline events",
		"room_id", roomID,
		"events", len(section.Events),
	)
	if err := room.Apply(ctx, section.Events); err != nil {
		return fmt.Errorf("room %s: %w", roomID, err)
	}
	return nil
}

func compareRoomIDs(a, b ref.RoomID) int {
	return strings.Compare(a.String(), b.String())
}
