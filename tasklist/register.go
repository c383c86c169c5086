// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import "github.com/taskmesh-foundation/taskmesh/lib/ident"

// Stamp orders register writes. Time is a logical counter from the
// writing replica's Lamport clock; Actor breaks ties so that two
// replicas writing at the same logical time still agree on a winner.
type Stamp struct {
	Time  uint64       `cbor:"time"`
	Actor ident.PeerID `cbor:"actor"`
}

// Newer reports whether s supersedes other: strictly later Time, or
// equal Time with the higher actor id.
func (s Stamp) Newer(other Stamp) bool {
	if s.Time != other.Time {
		return s.Time > other.Time
	}
	return s.Actor.Compare(other.Actor) > 0
}

// Register is a last-writer-wins cell. The write carrying the newest
// stamp wins every merge; all replicas agree because stamps are
// totally ordered.
type Register[T any] struct {
	Value T     `cbor:"value"`
	Stamp Stamp `cbor:"stamp"`
}

// NewRegister returns a register holding value with the given stamp.
func NewRegister[T any](value T, stamp Stamp) Register[T] {
	return Register[T]{Value: value, Stamp: stamp}
}

// Set overwrites the register when stamp supersedes the current one.
// A stale write (older or equal stamp) is a no-op, which keeps Set
// safe to call with replayed local operations.
func (r *Register[T]) Set(value T, stamp Stamp) {
	if stamp.Newer(r.Stamp) {
		r.Value = value
		r.Stamp = stamp
	}
}

// Merge returns the register with the newer stamp. Idempotent and
// commutative: equal stamps keep the receiver, and a replica never
// issues two different writes under one stamp.
func (r Register[T]) Merge(other Register[T]) Register[T] {
	if other.Stamp.Newer(r.Stamp) {
		return other
	}
	return r
}
