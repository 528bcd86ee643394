// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parley-chat/parley/lib/config"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/roomfeed"
	"github.com/parley-chat/parley/lib/secret"
	"github.com/parley-chat/parley/lib/snapshot"
	"github.com/parley-chat/parley/lib/timeline"
	"github.com/parley-chat/parley/messaging"
)

// syncPositionFile holds the follower's next_batch token under the
// state directory, so a restarted follower resumes where it stopped.
// It is written on a clean stop only; after a crash the follower starts
// from an older token and the room snapshots recognise what it has
// already applied.
const syncPositionFile = "sync-position"

// openSession connects to the configured homeserver and checks the
// access token with /whoami.
func openSession(ctx context.Context, homeserver config.HomeserverConfig, logger *slog.Logger) (*messaging.Session, error) {
	if homeserver.URL == "" {
		return nil, usageError("no homeserver configured").
			WithHint("Set homeserver.url in the config file or pass --homeserver.")
	}
	userID, err := ref.ParseUserID(homeserver.UserID)
	if err != nil {
		return nil, usageError("homeserver.user_id: %w", err)
	}
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: homeserver.URL,
		Logger:        logger,
	})
	if err != nil {
		return nil, usageError("%w", err)
	}
	token, err := secret.ReadFromPath(homeserver.AccessTokenFile)
	if err != nil {
		return nil, internalError("reading access token: %w", err)
	}
	session, err := client.SessionFromToken(userID, token)
	if err != nil {
		token.Close()
		return nil, internalError("%w", err)
	}

	whoami, err := session.WhoAmI(ctx)
	if err != nil {
		session.Close()
		return nil, internalError("checking access token: %w", err)
	}
	if whoami != userID {
		session.Close()
		return nil, usageError("access token belongs to %s, not %s", whoami, userID)
	}
	return session, nil
}

// fetchMessages returns the newest limit events of a room, newest
// first as /messages serves them.
func fetchMessages(ctx context.Context, session *messaging.Session, roomID ref.RoomID, limit int) ([]messaging.Event, error) {
	response, err := session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{
		Direction: "b",
		Limit:     limit,
	})
	if err != nil {
		if messaging.IsMatrixError(err, messaging.ErrCodeNotFound) {
			return nil, notFoundError("room %s: %w", roomID, err)
		}
		return nil, internalError("fetching messages for %s: %w", roomID, err)
	}
	return response.Chunk, nil
}

// stashPolicy converts the stash config.
func stashPolicy(stash config.StashConfig) timeline.StashPolicy {
	return timeline.StashPolicy{
		TTL:          stash.TTLDuration(),
		MaxPerTarget: stash.MaxPerTarget,
		MaxTotal:     stash.MaxTotal,
	}
}

// syncRooms parses sync.rooms.
func syncRooms(raw []string) ([]ref.RoomID, error) {
	rooms := make([]ref.RoomID, 0, len(raw))
	for _, entry := range raw {
		roomID, err := ref.ParseRoomID(entry)
		if err != nil {
			return nil, usageError("sync.rooms: %w", err)
		}
		rooms = append(rooms, roomID)
	}
	return rooms, nil
}

// follow runs a Follower until ctx is cancelled, persisting rooms to
// the configured snapshot store and the sync position to the state
// directory.
func follow(ctx context.Context, cfg *config.Config, since string, logger *slog.Logger) error {
	rooms, err := syncRooms(cfg.Sync.Rooms)
	if err != nil {
		return err
	}
	if err := cfg.EnsureStateDir(); err != nil {
		return internalError("%w", err)
	}

	store, closer, err := openStore(cfg.Snapshot, logger)
	if err != nil {
		return internalError("opening snapshot store: %w", err)
	}
	defer closer.Close()

	positionPath := filepath.Join(cfg.StateDir, syncPositionFile)
	if since == "" && store != nil {
		since, err = readSyncPosition(positionPath)
		if err != nil {
			return internalError("%w", err)
		}
	}

	var metrics *roomfeed.Metrics
	if cfg.Metrics.Listen != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err = roomfeed.NewMetrics(registry)
		if err != nil {
			return internalError("%w", err)
		}
		stop, err := serveMetrics(cfg.Metrics.Listen, registry, logger)
		if err != nil {
			return internalError("serving metrics: %w", err)
		}
		defer stop()
	}

	session, err := openSession(ctx, cfg.Homeserver, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	follower, err := roomfeed.NewFollower(roomfeed.FollowerConfig{
		Syncer: session,
		Filter: messaging.SyncFilter{
			Rooms:         rooms,
			TimelineLimit: cfg.Sync.TimelineLimit,
		},
		Since:           since,
		LongPollTimeout: int(cfg.Sync.LongPollDuration().Milliseconds()),
		StashPolicy:     stashPolicy(cfg.Stash),
		Store:           store,
		Metrics:         metrics,
		Logger:          logger,
	})
	if err != nil {
		return internalError("%w", err)
	}

	logger.Info("following sync",
		"homeserver", cfg.Homeserver.URL,
		"user_id", session.UserID(),
		"rooms", len(rooms),
		"since", since,
		"snapshot_backend", cfg.Snapshot.Backend,
	)
	runErr := follower.Run(ctx)

	// Rooms are already open, so this context is never used for I/O.
	for _, roomID := range follower.Rooms() {
		room, err := follower.Room(context.Background(), roomID)
		if err != nil {
			continue
		}
		logger.Info("room state",
			"room_id", roomID,
			"view_models", len(room.Timeline()),
			"stashed", room.StashedCount(),
		)
	}
	position := follower.SyncPosition()
	if store != nil && position != "" {
		if err := snapshot.WriteFileAtomic(positionPath, []byte(position+"\n")); err != nil {
			logger.Warn("saving sync position failed", "path", positionPath, "error", err)
		}
	}
	logger.Info("stopped following", "next_batch", position)

	if ctx.Err() != nil {
		return nil
	}
	if messaging.IsPermanent(runErr) {
		return internalError("%w", runErr).WithHint("The homeserver rejected the request; check the access token and user ID.")
	}
	return internalError("%w", runErr)
}

func readSyncPosition(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading sync position: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// serveMetrics serves registry on listen at /metrics. The returned
// function shuts the server down.
func serveMetrics(listen string, registry *prometheus.Registry, logger *slog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}, nil
}
