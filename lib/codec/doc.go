// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds Parley's CBOR configuration.
//
// JSON is used at the edges: the Matrix Client-Server API and CLI
// output. CBOR is used for room snapshots at rest (see lib/snapshot).
// Every package encodes through this one so equal snapshots produce
// identical bytes, which keeps snapshot checksums stable.
//
//	data, err := codec.Marshal(snapshot)
//	err = codec.Unmarshal(data, &snapshot)
//
// Types serialized in both formats carry only `json` tags;
// fxamacker/cbor falls back to them when `cbor` tags are absent.
package codec
