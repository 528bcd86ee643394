// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/parley-chat/parley/lib/codec"
	"github.com/parley-chat/parley/lib/timeline"
)

const (
	frameMagic   = "PRLY"
	frameVersion = 1
	checksumSize = 32

	// maxPayloadSize bounds the length a header may claim, so a
	// corrupt frame cannot force a huge allocation.
	maxPayloadSize = 256 << 20
)

// checksumKey is the BLAKE3 key for payload checksums: the ASCII
// domain name, zero-padded to 32 bytes.
var checksumKey = [32]byte{
	'p', 'a', 'r', 'l', 'e', 'y', '.', 's', 'n', 'a', 'p', 's', 'h', 'o', 't',
}

// ErrCorrupt is returned (wrapped) for frames that fail structural or
// checksum validation.
var ErrCorrupt = errors.New("corrupt snapshot frame")

// Checksum returns the keyed BLAKE3 checksum of an encoded payload.
func Checksum(payload []byte) [checksumSize]byte {
	hasher, err := blake3.NewKeyed(checksumKey[:])
	if err != nil {
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	var sum [checksumSize]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}

// Encode serializes snapshot into a frame.
func Encode(snapshot timeline.Snapshot, compression Compression) ([]byte, error) {
	payload, err := codec.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encoding: %w", err)
	}
	compressed, err := compress(payload, compression)
	if errors.Is(err, errIncompressible) {
		compression, compressed = CompressionNone, payload
	} else if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	checksum := Checksum(payload)
	frame := make([]byte, 0, len(frameMagic)+2+binary.MaxVarintLen64+checksumSize+len(compressed))
	frame = append(frame, frameMagic...)
	frame = append(frame, frameVersion, byte(compression))
	frame = binary.AppendUvarint(frame, uint64(len(payload)))
	frame = append(frame, checksum[:]...)
	frame = append(frame, compressed...)
	return frame, nil
}

// Decode parses and verifies a frame.
func Decode(frame []byte) (timeline.Snapshot, error) {
	payload, err := decodePayload(frame)
	if err != nil {
		return timeline.Snapshot{}, err
	}
	var snapshot timeline.Snapshot
	if err := codec.Unmarshal(payload, &snapshot); err != nil {
		return timeline.Snapshot{}, fmt.Errorf("snapshot: decoding payload: %w", err)
	}
	return snapshot, nil
}

// FrameInfo describes a frame header.
type FrameInfo struct {
	Version         uint8
	Compression     Compression
	PayloadSize     int
	CompressedSize  int
	PayloadChecksum [checksumSize]byte
}

// Inspect parses a frame header without decompressing the payload.
func Inspect(frame []byte) (FrameInfo, error) {
	info, _, err := parseHeader(frame)
	return info, err
}

func parseHeader(frame []byte) (FrameInfo, []byte, error) {
	if !bytes.HasPrefix(frame, []byte(frameMagic)) {
		return FrameInfo{}, nil, fmt.Errorf("snapshot: %w: bad magic", ErrCorrupt)
	}
	rest := frame[len(frameMagic):]
	if len(rest) < 2 {
		return FrameInfo{}, nil, fmt.Errorf("snapshot: %w: truncated header", ErrCorrupt)
	}
	info := FrameInfo{Version: rest[0], Compression: Compression(rest[1])}
	if info.Version != frameVersion {
		return FrameInfo{}, nil, fmt.Errorf("snapshot: unsupported frame version %d", info.Version)
	}
	rest = rest[2:]

	size, n := binary.Uvarint(rest)
	if n <= 0 {
		return FrameInfo{}, nil, fmt.Errorf("snapshot: %w: bad payload length", ErrCorrupt)
	}
	if size > maxPayloadSize {
		return FrameInfo{}, nil, fmt.Errorf("snapshot: %w: payload length %d exceeds limit", ErrCorrupt, size)
	}
	info.PayloadSize = int(size)
	rest = rest[n:]

	if len(rest) < checksumSize {
		return FrameInfo{}, nil, fmt.Errorf("snapshot: %w: truncated checksum", ErrCorrupt)
	}
	copy(info.PayloadChecksum[:], rest[:checksumSize])
	rest = rest[checksumSize:]
	info.CompressedSize = len(rest)
	return info, rest, nil
}

func decodePayload(frame []byte) ([]byte, error) {
	info, body, err := parseHeader(frame)
	if err != nil {
		return nil, err
	}
	payload, err := decompress(body, info.Compression, info.PayloadSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w: %w", ErrCorrupt, err)
	}
	checksum := Checksum(payload)
	if subtle.ConstantTimeCompare(checksum[:], info.PayloadChecksum[:]) != 1 {
		return nil, fmt.Errorf("snapshot: %w: checksum mismatch", ErrCorrupt)
	}
	return payload, nil
}
