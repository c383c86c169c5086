// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"bytes"
	"errors"
	"testing"

	"github.com/taskmesh-foundation/taskmesh/lib/codec"
	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

func TestDiffCleanListIsNil(t *testing.T) {
	l := newList(t)
	if d := l.Diff(l.Version()); d != nil {
		t.Fatalf("diff of clean list = %+v, want nil", d)
	}
}

func TestDiffCarriesOnlyChangesSinceMarker(t *testing.T) {
	l := newList(t)
	old := addTask(t, l, "old task", 1, 2)
	marker := l.Version()

	fresh := addTask(t, l, "fresh task", 1, 3)
	if err := l.ClaimTask(old.ID, agentID(1), 4); err != nil {
		t.Fatalf("claim: %v", err)
	}

	d := l.Diff(marker)
	if d == nil {
		t.Fatal("diff after mutations is nil")
	}
	if _, ok := d.Added[fresh.ID]; !ok {
		t.Fatal("diff missing the new task")
	}
	if _, ok := d.Added[old.ID]; ok {
		t.Fatal("diff re-ships an unchanged membership")
	}
	if _, ok := d.Updated[old.ID]; !ok {
		t.Fatal("diff missing the claimed task's update")
	}
	if d.Name != nil {
		t.Fatal("diff ships an unchanged name")
	}
}

func TestDiffAppliesToPeer(t *testing.T) {
	a := newList(t)
	b := a.Clone()

	marker := a.Version()
	item := addTask(t, a, "replicate me", 1, 5)
	if err := a.ClaimTask(item.ID, agentID(1), 6); err != nil {
		t.Fatalf("claim: %v", err)
	}

	d := a.Diff(marker)
	if err := b.Apply(d); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, ok := b.Get(item.ID)
	if !ok || !got.Checkbox.IsClaimed() {
		t.Fatalf("peer state after apply: ok=%v item=%+v", ok, got)
	}
}

func TestApplyIdempotentAndCommutative(t *testing.T) {
	source := newList(t)
	base := source.Clone()

	markerOne := source.Version()
	one := addTask(t, source, "first", 1, 5)
	deltaOne := source.Diff(markerOne)

	markerTwo := source.Version()
	if err := source.ClaimTask(one.ID, agentID(1), 6); err != nil {
		t.Fatalf("claim: %v", err)
	}
	addTask(t, source, "second", 1, 7)
	deltaTwo := source.Diff(markerTwo)

	forward := base.Clone()
	for _, d := range []*Delta{deltaOne, deltaTwo, deltaOne, deltaTwo} {
		if err := forward.Apply(d); err != nil {
			t.Fatalf("forward apply: %v", err)
		}
	}
	// deltaTwo before deltaOne: the update arrives before the add.
	backward := base.Clone()
	for _, d := range []*Delta{deltaTwo, deltaOne, deltaTwo} {
		if err := backward.Apply(d); err != nil {
			t.Fatalf("backward apply: %v", err)
		}
	}

	encodedForward, err := codec.Marshal(forward)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	encodedBackward, err := codec.Marshal(backward)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if !bytes.Equal(encodedForward, encodedBackward) {
		t.Fatal("delta order changed the converged state")
	}
	if forward.Len() != 2 {
		t.Fatalf("Len = %d after both deltas, want 2", forward.Len())
	}
}

func TestApplyRejectsWrongList(t *testing.T) {
	l := newList(t)
	foreign := NewTaskList("foreign", agentID(2), 9, Stamp{Time: 9, Actor: peerID(2)})
	addTask(t, foreign, "foreign task", 2, 10)

	var mergeErr *MergeError
	if err := l.Apply(foreign.FullDelta()); !errors.As(err, &mergeErr) {
		t.Fatalf("apply of foreign delta: got %v, want MergeError", err)
	}
	if l.Len() != 0 {
		t.Fatal("rejected delta mutated the list")
	}
}

func TestApplyRejectsMismatchedItemKey(t *testing.T) {
	l := newList(t)
	item := NewTask("honest", agentID(1), 2, Stamp{Time: 2, Actor: peerID(1)})

	d := &Delta{
		ListID: l.ID,
		Added: map[ident.TaskID]AddedTask{
			taskID(7): {Item: item, Tags: []Tag{{Peer: peerID(1), Seq: 1}}},
		},
	}
	var mergeErr *MergeError
	if err := l.Apply(d); !errors.As(err, &mergeErr) {
		t.Fatalf("apply with mismatched key: got %v, want MergeError", err)
	}
	if l.Len() != 0 || len(l.Items) != 0 {
		t.Fatal("rejected delta left partial state")
	}
}

func TestApplyRejectsCorruptPhase(t *testing.T) {
	l := newList(t)
	item := NewTask("corrupt", agentID(1), 2, Stamp{Time: 2, Actor: peerID(1)})
	item.Checkbox.Phase = Phase(9)

	d := &Delta{
		ListID: l.ID,
		Added: map[ident.TaskID]AddedTask{
			item.ID: {Item: item, Tags: []Tag{{Peer: peerID(1), Seq: 1}}},
		},
	}
	var mergeErr *MergeError
	if err := l.Apply(d); !errors.As(err, &mergeErr) {
		t.Fatalf("apply with corrupt phase: got %v, want MergeError", err)
	}
}

func TestRemoveTravelsInDiff(t *testing.T) {
	a := newList(t)
	item := addTask(t, a, "short lived", 1, 2)
	b := a.Clone()

	marker := a.Version()
	if err := a.RemoveTask(item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	d := a.Diff(marker)
	if d == nil || len(d.RemovedTags) != 1 {
		t.Fatalf("diff after remove = %+v, want removed tags", d)
	}
	if err := b.Apply(d); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if b.Contains(item.ID) {
		t.Fatal("peer still has the removed task")
	}
}

func TestDeltaMergeCoalesces(t *testing.T) {
	source := newList(t)

	markerOne := source.Version()
	one := addTask(t, source, "first", 1, 5)
	deltaOne := source.Diff(markerOne)

	markerTwo := source.Version()
	if err := source.ClaimTask(one.ID, agentID(1), 6); err != nil {
		t.Fatalf("claim: %v", err)
	}
	deltaTwo := source.Diff(markerTwo)

	if err := deltaOne.Merge(deltaTwo); err != nil {
		t.Fatalf("delta merge: %v", err)
	}

	target := NewTaskList("sprint board", agentID(1), 1, Stamp{Time: 1, Actor: peerID(1)})
	if err := target.Apply(deltaOne); err != nil {
		t.Fatalf("apply coalesced: %v", err)
	}
	got, ok := target.Get(one.ID)
	if !ok || !got.Checkbox.IsClaimed() {
		t.Fatal("coalesced delta lost the claim")
	}
}

func TestFullDeltaRebuildsState(t *testing.T) {
	source := newList(t)
	kept := addTask(t, source, "kept", 1, 2)
	dropped := addTask(t, source, "dropped", 1, 3)
	if err := source.RemoveTask(dropped.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	fresh := NewTaskList("sprint board", agentID(1), 1, Stamp{Time: 1, Actor: peerID(1)})
	if err := fresh.Apply(source.FullDelta()); err != nil {
		t.Fatalf("apply full delta: %v", err)
	}

	encodedSource, err := codec.Marshal(source)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	encodedFresh, err := codec.Marshal(fresh)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if !bytes.Equal(encodedSource, encodedFresh) {
		t.Fatal("full-state transfer did not reproduce the source encoding")
	}
	if !fresh.Contains(kept.ID) || fresh.Contains(dropped.ID) {
		t.Fatal("full-state transfer lost membership facts")
	}
}

func TestDeltaEncodingRoundTrip(t *testing.T) {
	source := newList(t)
	marker := source.Version()
	item := addTask(t, source, "over the wire", 1, 5)
	d := source.Diff(marker)

	encoded, err := codec.Marshal(d)
	if err != nil {
		t.Fatalf("encoding delta: %v", err)
	}
	var decoded Delta
	if err := codec.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decoding delta: %v", err)
	}

	target := NewTaskList("sprint board", agentID(1), 1, Stamp{Time: 1, Actor: peerID(1)})
	if err := target.Apply(&decoded); err != nil {
		t.Fatalf("apply decoded delta: %v", err)
	}
	if !target.Contains(item.ID) {
		t.Fatal("decoded delta did not carry the task")
	}
}
