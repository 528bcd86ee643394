// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot persists [timeline.Snapshot] values.
//
// A stored snapshot is a frame around the CBOR encoding of the
// snapshot (see lib/codec):
//
//	offset  size  field
//	0       4     magic "PRLY"
//	4       1     frame version (1)
//	5       1     compression tag (0 none, 1 lz4, 2 zstd)
//	6       n     uncompressed payload length, uvarint
//	6+n     32    BLAKE3 keyed checksum of the uncompressed payload
//	38+n    ...   payload, compressed per the tag
//
// The checksum is verified after decompression, so a frame that
// decodes is exactly what was written. Payloads that do not shrink
// under the requested compression are stored uncompressed.
//
// Three [Store] implementations share the frame: [FileStore] (one file
// per room), [PebbleStore] (a Pebble key per room), and [SQLiteStore]
// (a row per room).
package snapshot
