// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Taskmesh's standard CBOR encoding configuration.
//
// Taskmesh uses two serialization formats with a clear boundary:
//
//   - CBOR for replicated state and wire payloads: task list snapshots,
//     deltas published to gossip topics, and sealed envelope framing.
//   - JSON for human-inspectable artifacts: the store manifest and log
//     output.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Taskmesh package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes — replicas that have converged to the same CRDT state produce
// byte-identical snapshots and deltas, which is what lets convergence be
// verified by comparing encodings.
//
// For buffer-oriented operations (snapshots, deltas):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR. Examples:
//     task list state, deltas, snapshot envelopes, sealed deltas.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor` tags
//     are absent, so a single `json` tag controls field naming for both
//     formats. Example: the store manifest.
//
// Never use both `cbor` and `json` tags on the same field.
package codec
