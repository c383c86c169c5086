// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"testing"

	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

func peerID(b byte) ident.PeerID {
	var id ident.PeerID
	id[0] = b
	return id
}

func TestRegisterSet(t *testing.T) {
	r := NewRegister("first", Stamp{Time: 1, Actor: peerID(1)})

	r.Set("second", Stamp{Time: 2, Actor: peerID(1)})
	if r.Value != "second" {
		t.Fatalf("newer write lost: %q", r.Value)
	}

	// Stale write is a no-op.
	r.Set("stale", Stamp{Time: 1, Actor: peerID(1)})
	if r.Value != "second" {
		t.Fatalf("stale write applied: %q", r.Value)
	}

	// Equal stamp is a no-op too.
	r.Set("same stamp", Stamp{Time: 2, Actor: peerID(1)})
	if r.Value != "second" {
		t.Fatalf("equal-stamp write applied: %q", r.Value)
	}
}

func TestRegisterMergeNewestWins(t *testing.T) {
	older := NewRegister("older", Stamp{Time: 5, Actor: peerID(2)})
	newer := NewRegister("newer", Stamp{Time: 9, Actor: peerID(1)})

	if got := older.Merge(newer); got.Value != "newer" {
		t.Fatalf("merge kept %q, want newer", got.Value)
	}
	if got := newer.Merge(older); got.Value != "newer" {
		t.Fatal("merge is not commutative")
	}
}

func TestRegisterMergeActorTieBreak(t *testing.T) {
	low := NewRegister("low actor", Stamp{Time: 7, Actor: peerID(1)})
	high := NewRegister("high actor", Stamp{Time: 7, Actor: peerID(2)})

	if got := low.Merge(high); got.Value != "high actor" {
		t.Fatalf("tie-break kept %q, want the higher actor", got.Value)
	}
	if got := high.Merge(low); got.Value != "high actor" {
		t.Fatal("tie-break is not commutative")
	}
}

func TestRegisterMergeIdempotent(t *testing.T) {
	r := NewRegister(uint8(3), Stamp{Time: 4, Actor: peerID(1)})
	if got := r.Merge(r); got != r {
		t.Fatalf("merge with self changed the register: %+v", got)
	}
}
