// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/secret"
)

// Syncer performs /sync requests. *Session implements it.
type Syncer interface {
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)
}

// Compile-time check: *Session implements Syncer.
var _ Syncer = (*Session)(nil)

// Session is an authenticated Matrix session. Close releases the
// access token.
type Session struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID
}

// UserID returns the session's user.
func (s *Session) UserID() ref.UserID { return s.userID }

// CloseIdleConnections drops the client's pooled connections.
func (s *Session) CloseIdleConnections() { s.client.CloseIdleConnections() }

// Close releases the access token memory. It is idempotent.
func (s *Session) Close() error {
	return s.accessToken.Close()
}

// WhoAmI validates the access token and returns its user.
func (s *Session) WhoAmI(ctx context.Context) (ref.UserID, error) {
	var response WhoAmIResponse
	if err := s.get(ctx, "/_matrix/client/v3/account/whoami", nil, &response); err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: whoami failed: %w", err)
	}
	return response.UserID, nil
}

// JoinedRooms lists the rooms the user has joined.
func (s *Session) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	var response JoinedRoomsResponse
	if err := s.get(ctx, "/_matrix/client/v3/joined_rooms", nil, &response); err != nil {
		return nil, fmt.Errorf("messaging: joined rooms failed: %w", err)
	}
	return response.JoinedRooms, nil
}

// RoomMessages fetches a page of room history.
func (s *Session) RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/messages", url.PathEscape(roomID.String()))
	query := url.Values{}
	if options.From != "" {
		query.Set("from", options.From)
	}
	direction := options.Direction
	if direction == "" {
		direction = "b"
	}
	query.Set("dir", direction)
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}

	var response RoomMessagesResponse
	if err := s.get(ctx, path, query, &response); err != nil {
		return nil, fmt.Errorf("messaging: room messages for %s failed: %w", roomID, err)
	}
	return &response, nil
}

// Sync performs one /sync request. Leave options.Since empty for the
// initial sync; set Timeout (and SetTimeout) to long-poll.
func (s *Session) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}
	var response SyncResponse
	if err := s.get(ctx, "/_matrix/client/v3/sync", query, &response); err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}
	return &response, nil
}

func (s *Session) get(ctx context.Context, path string, query url.Values, into any) error {
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("parsing response from %s: %w", path, err)
	}
	return nil
}
