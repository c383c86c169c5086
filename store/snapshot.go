// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/taskmesh-foundation/taskmesh/lib/codec"
	"github.com/taskmesh-foundation/taskmesh/tasklist"
)

// SchemaVersion is the current snapshot envelope schema. Decoding
// accepts the previous version as an in-place migration and rejects
// anything else.
const SchemaVersion = 2

// snapshotCodec marks the payload serialization. A snapshot written
// by a future incompatible codec fails loudly instead of producing
// garbage state.
const snapshotCodec = "cbor/v1"

// Typed failure classes for snapshot decoding. Save/load paths wrap
// these so callers can distinguish "nothing saved yet" from "data on
// disk is damaged".
var (
	// ErrCorrupted reports a snapshot that cannot be trusted: bad
	// envelope, integrity mismatch, or undecodable payload.
	ErrCorrupted = errors.New("snapshot corrupted")

	// ErrSchemaUnsupported reports an envelope schema this build
	// neither speaks nor migrates.
	ErrSchemaUnsupported = errors.New("snapshot schema unsupported")

	errIncompressible = errors.New("payload incompressible")
)

// snapshotEnvelope is the on-disk frame around a serialized task
// list. Integrity covers the uncompressed payload, so corruption is
// detected before the CBOR decoder or the decompressor sees hostile
// bytes.
type snapshotEnvelope struct {
	Schema      uint32 `cbor:"schema"`
	Codec       string `cbor:"codec"`
	Compression uint8  `cbor:"compression"`
	RawSize     uint64 `cbor:"raw_size"`
	Integrity   string `cbor:"integrity"`
	Payload     []byte `cbor:"payload"`
}

// integrityDomainKey separates snapshot digests from every other
// BLAKE3 use in the system. ASCII, zero-padded to 32 bytes.
var integrityDomainKey = [32]byte{
	't', 'a', 's', 'k', 'm', 'e', 's', 'h', '.', 's', 'n', 'a', 'p', 's', 'h', 'o',
	't', '.', 's', 'u', 'm', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func integrityDigest(payload []byte) string {
	hasher, err := blake3.NewKeyed(integrityDomainKey[:])
	if err != nil {
		panic("store: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// EncodeSnapshot serializes list into an envelope using the given
// compression. When the payload does not shrink, the envelope falls
// back to storing it uncompressed.
func EncodeSnapshot(list *tasklist.TaskList, compression CompressionTag) ([]byte, error) {
	payload, err := codec.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encoding task list: %w", err)
	}

	compressed, err := compress(payload, compression)
	if errors.Is(err, errIncompressible) {
		compressed, compression = payload, CompressionNone
	} else if err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}

	envelope := snapshotEnvelope{
		Schema:      SchemaVersion,
		Codec:       snapshotCodec,
		Compression: uint8(compression),
		RawSize:     uint64(len(payload)),
		Integrity:   integrityDigest(payload),
		Payload:     compressed,
	}
	encoded, err := codec.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot envelope: %w", err)
	}
	return encoded, nil
}

// DecodeSnapshot verifies and unwraps a snapshot file, returning the
// task list it holds. All verification failures wrap [ErrCorrupted]
// or [ErrSchemaUnsupported].
func DecodeSnapshot(data []byte) (*tasklist.TaskList, error) {
	var envelope snapshotEnvelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: undecodable envelope: %v", ErrCorrupted, err)
	}

	switch envelope.Schema {
	case SchemaVersion:
	case SchemaVersion - 1:
		// Schema 1 wrote the same frame without the raw_size field
		// and never compressed. Normalize and fall through.
		if envelope.Compression != uint8(CompressionNone) {
			return nil, fmt.Errorf("%w: schema 1 with compression tag %d", ErrCorrupted, envelope.Compression)
		}
		if envelope.RawSize == 0 {
			envelope.RawSize = uint64(len(envelope.Payload))
		}
	default:
		return nil, fmt.Errorf("%w: schema %d (current %d)", ErrSchemaUnsupported, envelope.Schema, SchemaVersion)
	}

	if envelope.Codec != snapshotCodec {
		return nil, fmt.Errorf("%w: codec %q (want %q)", ErrCorrupted, envelope.Codec, snapshotCodec)
	}

	payload, err := decompress(envelope.Payload, CompressionTag(envelope.Compression), int(envelope.RawSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if digest := integrityDigest(payload); digest != envelope.Integrity {
		return nil, fmt.Errorf("%w: integrity digest mismatch", ErrCorrupted)
	}

	var list tasklist.TaskList
	if err := codec.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("%w: undecodable task list: %v", ErrCorrupted, err)
	}
	return &list, nil
}
