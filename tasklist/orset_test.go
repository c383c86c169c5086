// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"bytes"
	"testing"

	"github.com/taskmesh-foundation/taskmesh/lib/codec"
	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

func taskID(b byte) ident.TaskID {
	var id ident.TaskID
	id[0] = b
	return id
}

func TestMemberSetAddRemove(t *testing.T) {
	var m MemberSet
	id := taskID(1)

	if m.Contains(id) {
		t.Fatal("empty set contains id")
	}
	if !m.Add(id, Tag{Peer: peerID(1), Seq: 1}) {
		t.Fatal("first add reported no change")
	}
	if m.Add(id, Tag{Peer: peerID(1), Seq: 1}) {
		t.Fatal("duplicate add reported a change")
	}
	if !m.Contains(id) || m.Len() != 1 {
		t.Fatalf("Contains=%v Len=%d after add", m.Contains(id), m.Len())
	}

	removed, ok := m.Remove(id)
	if !ok || len(removed) != 1 {
		t.Fatalf("Remove = %v %v, want one tag", removed, ok)
	}
	if m.Contains(id) || m.Len() != 0 {
		t.Fatal("id still live after remove")
	}
	if _, ok := m.Remove(id); ok {
		t.Fatal("removing a dead id reported success")
	}
}

func TestMemberSetAddWins(t *testing.T) {
	// Replica A adds, replica B observes and removes, meanwhile A
	// re-adds with a fresh tag. The re-add must survive the merge.
	var a, b MemberSet
	id := taskID(1)

	a.Add(id, Tag{Peer: peerID(1), Seq: 1})
	b.Merge(&a)

	removedTags, _ := b.Remove(id)
	a.Add(id, Tag{Peer: peerID(1), Seq: 2}) // concurrent re-add

	a.Tombstone(id, removedTags)
	b.Merge(&a)

	if !a.Contains(id) {
		t.Fatal("concurrent add lost on replica A")
	}
	if !b.Contains(id) {
		t.Fatal("concurrent add lost on replica B")
	}
	// The first tag stays dead on both.
	if tags := a.LiveTags(id); len(tags) != 1 || tags[0].Seq != 2 {
		t.Fatalf("live tags on A = %v, want only seq 2", tags)
	}
}

func TestMemberSetTombstoneBeforeAdd(t *testing.T) {
	// A removal can arrive before the add it suppresses.
	var m MemberSet
	id := taskID(1)
	tag := Tag{Peer: peerID(1), Seq: 1}

	m.Tombstone(id, []Tag{tag})
	if m.Add(id, tag) {
		t.Fatal("tombstoned add reported a change")
	}
	if m.Contains(id) {
		t.Fatal("tombstoned add became live")
	}
}

func TestMemberSetMergeProperties(t *testing.T) {
	build := func(ops func(*MemberSet)) *MemberSet {
		var m MemberSet
		ops(&m)
		return &m
	}
	a := build(func(m *MemberSet) {
		m.Add(taskID(1), Tag{Peer: peerID(1), Seq: 1})
		m.Add(taskID(2), Tag{Peer: peerID(1), Seq: 2})
		m.Remove(taskID(1))
	})
	b := build(func(m *MemberSet) {
		m.Add(taskID(1), Tag{Peer: peerID(2), Seq: 1})
		m.Add(taskID(3), Tag{Peer: peerID(2), Seq: 2})
	})

	ab := a.Clone()
	ab.Merge(b)
	ba := b.Clone()
	ba.Merge(a)

	if got, want := len(ab.Live()), len(ba.Live()); got != want {
		t.Fatalf("merge not commutative: %d vs %d live", got, want)
	}
	for i, id := range ab.Live() {
		if ba.Live()[i] != id {
			t.Fatal("merge not commutative: different membership")
		}
	}

	again := ab.Clone()
	if again.Merge(b) {
		t.Fatal("re-merging the same set reported changes")
	}

	// A's removal covered only A's tag; B's tag for task 1 survives.
	if !ab.Contains(taskID(1)) {
		t.Fatal("unobserved add did not survive the remove")
	}
}

func TestMemberSetLiveCanonicalOrder(t *testing.T) {
	var m MemberSet
	m.Add(taskID(3), Tag{Peer: peerID(1), Seq: 1})
	m.Add(taskID(1), Tag{Peer: peerID(1), Seq: 2})
	m.Add(taskID(2), Tag{Peer: peerID(1), Seq: 3})

	live := m.Live()
	for i := 1; i < len(live); i++ {
		if live[i-1].Compare(live[i]) >= 0 {
			t.Fatalf("Live not in canonical order: %v", live)
		}
	}
}

func TestMemberSetCloneEncodesIdentically(t *testing.T) {
	// A clone of the empty set must encode to the same bytes as the
	// original: make([]memberEntry, 0) would turn nil entries into []
	// and split otherwise-converged replicas.
	var fresh MemberSet
	clone := fresh.Clone()

	want, err := codec.Marshal(fresh)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := codec.Marshal(clone)
	if err != nil {
		t.Fatalf("marshal clone: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Fatalf("empty-set clone encodes differently:\n  original %x\n  clone    %x", want, got)
	}

	fresh.Add(taskID(1), Tag{Peer: peerID(1), Seq: 1})
	fresh.Remove(taskID(1))
	clone = fresh.Clone()
	want, _ = codec.Marshal(fresh)
	got, _ = codec.Marshal(clone)
	if !bytes.Equal(want, got) {
		t.Fatal("tombstoned-set clone encodes differently")
	}
}
