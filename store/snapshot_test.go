// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/taskmesh-foundation/taskmesh/lib/codec"
	"github.com/taskmesh-foundation/taskmesh/lib/ident"
	"github.com/taskmesh-foundation/taskmesh/tasklist"
)

func agentID(b byte) ident.AgentID {
	var id ident.AgentID
	id[0] = b
	return id
}

func peerID(b byte) ident.PeerID {
	var id ident.PeerID
	id[0] = b
	return id
}

func populatedList(t *testing.T, tasks int) *tasklist.TaskList {
	t.Helper()
	list := tasklist.NewTaskList("persisted board", agentID(1), 1, tasklist.Stamp{Time: 1, Actor: peerID(1)})
	for i := 0; i < tasks; i++ {
		seq := uint64(i + 2)
		item := tasklist.NewTask(fmt.Sprintf("task %d", i), agentID(1), seq, tasklist.Stamp{Time: seq, Actor: peerID(1)})
		tag := tasklist.Tag{Peer: peerID(1), Seq: seq}
		if err := list.AddTask(item, tag, tasklist.Stamp{Time: seq, Actor: peerID(1)}); err != nil {
			t.Fatalf("AddTask: %v", err)
		}
	}
	return list
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 100, 10000} {
		list := populatedList(t, size)
		encoded, err := EncodeSnapshot(list, CompressionZstd)
		if err != nil {
			t.Fatalf("encode (%d tasks): %v", size, err)
		}
		decoded, err := DecodeSnapshot(encoded)
		if err != nil {
			t.Fatalf("decode (%d tasks): %v", size, err)
		}

		wantBytes, err := codec.Marshal(list)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		gotBytes, err := codec.Marshal(decoded)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !bytes.Equal(wantBytes, gotBytes) {
			t.Fatalf("round-trip changed state for %d tasks", size)
		}
	}
}

func TestSnapshotCompressionRoundTrips(t *testing.T) {
	list := populatedList(t, 50)
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		encoded, err := EncodeSnapshot(list, tag)
		if err != nil {
			t.Fatalf("encode with %s: %v", tag, err)
		}
		if _, err := DecodeSnapshot(encoded); err != nil {
			t.Fatalf("decode with %s: %v", tag, err)
		}
	}
}

func TestSnapshotIncompressibleFallsBackToNone(t *testing.T) {
	// A tiny list gains nothing from compression; the envelope must
	// still round-trip (with the none tag).
	list := populatedList(t, 0)
	encoded, err := EncodeSnapshot(list, CompressionZstd)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeSnapshot(encoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestSnapshotDetectsTampering(t *testing.T) {
	list := populatedList(t, 10)
	encoded, err := EncodeSnapshot(list, CompressionNone)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Flip one byte near the end, inside the payload.
	tampered := bytes.Clone(encoded)
	tampered[len(tampered)-3] ^= 0xff

	if _, err := DecodeSnapshot(tampered); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("tampered snapshot: got %v, want ErrCorrupted", err)
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	if _, err := DecodeSnapshot([]byte("not cbor at all")); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("garbage: got %v, want ErrCorrupted", err)
	}
}

func TestSnapshotRejectsUnknownSchema(t *testing.T) {
	envelope := snapshotEnvelope{
		Schema:  SchemaVersion + 1,
		Codec:   snapshotCodec,
		Payload: []byte{},
	}
	encoded, err := codec.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeSnapshot(encoded); !errors.Is(err, ErrSchemaUnsupported) {
		t.Fatalf("future schema: got %v, want ErrSchemaUnsupported", err)
	}
}

func TestSnapshotAcceptsPreviousSchema(t *testing.T) {
	// Schema 1 snapshots are uncompressed and predate raw_size.
	list := populatedList(t, 3)
	payload, err := codec.Marshal(list)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	envelope := snapshotEnvelope{
		Schema:      SchemaVersion - 1,
		Codec:       snapshotCodec,
		Compression: uint8(CompressionNone),
		Integrity:   integrityDigest(payload),
		Payload:     payload,
	}
	encoded, err := codec.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("decode schema 1: %v", err)
	}
	if decoded.Len() != list.Len() {
		t.Fatalf("migrated snapshot has %d tasks, want %d", decoded.Len(), list.Len())
	}
}

func TestSnapshotRejectsWrongCodec(t *testing.T) {
	envelope := snapshotEnvelope{
		Schema:  SchemaVersion,
		Codec:   "protobuf/v9",
		Payload: []byte{},
	}
	encoded, err := codec.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeSnapshot(encoded); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("wrong codec: got %v, want ErrCorrupted", err)
	}
}
