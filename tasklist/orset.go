// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"slices"

	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

// Tag uniquely identifies one add operation: the replica that issued
// it and that replica's operation sequence number. Re-adding a removed
// task produces a fresh tag, which is what makes add-wins work.
type Tag struct {
	Peer ident.PeerID `cbor:"peer"`
	Seq  uint64       `cbor:"seq"`
}

// Compare orders tags by (peer, seq).
func (t Tag) Compare(other Tag) int {
	if c := t.Peer.Compare(other.Peer); c != 0 {
		return c
	}
	switch {
	case t.Seq < other.Seq:
		return -1
	case t.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

// memberEntry holds the observed-remove bookkeeping for one task id.
// Tags are the live add tags; Tombs the tombstoned ones. The two sets
// are disjoint, each sorted by (peer, seq). The task is a live member
// while at least one live tag remains. An entry with no live tags is
// kept: its tombstones must keep suppressing the adds they observed.
type memberEntry struct {
	ID    ident.TaskID `cbor:"id"`
	Tags  []Tag        `cbor:"tags"`
	Tombs []Tag        `cbor:"tombs"`
}

func (e memberEntry) live() bool { return len(e.Tags) > 0 }

// MemberSet is an observed-remove set of task ids with add-wins
// semantics. Entries are kept sorted by task id and tag slices sorted
// by (peer, seq), so the deterministic CBOR encoding of two converged
// sets is byte-identical.
//
// The zero value is an empty set ready for use.
type MemberSet struct {
	Entries []memberEntry `cbor:"entries"`
}

// entryIndex returns the position of id in Entries and whether it was
// found; when not found, the position is the sorted insertion point.
func (m *MemberSet) entryIndex(id ident.TaskID) (int, bool) {
	return slices.BinarySearchFunc(m.Entries, id, func(e memberEntry, target ident.TaskID) int {
		return e.ID.Compare(target)
	})
}

// Add registers tag as a live add of id. Idempotent: a tag already
// observed (live or tombstoned) changes nothing. Reports whether the
// set changed.
func (m *MemberSet) Add(id ident.TaskID, tag Tag) bool {
	i, found := m.entryIndex(id)
	if !found {
		m.Entries = slices.Insert(m.Entries, i, memberEntry{
			ID:    id,
			Tags:  []Tag{tag},
			Tombs: []Tag{},
		})
		return true
	}
	e := &m.Entries[i]
	if _, dead := slices.BinarySearchFunc(e.Tombs, tag, Tag.Compare); dead {
		return false
	}
	j, present := slices.BinarySearchFunc(e.Tags, tag, Tag.Compare)
	if present {
		return false
	}
	e.Tags = slices.Insert(e.Tags, j, tag)
	return true
}

// Remove tombstones every live tag of id and returns them. The caller
// ships the returned tags in a delta so other replicas tombstone the
// same observations. Returns false when id is not a live member.
func (m *MemberSet) Remove(id ident.TaskID) ([]Tag, bool) {
	i, found := m.entryIndex(id)
	if !found || !m.Entries[i].live() {
		return nil, false
	}
	e := &m.Entries[i]
	removed := slices.Clone(e.Tags)
	for _, tag := range removed {
		j, _ := slices.BinarySearchFunc(e.Tombs, tag, Tag.Compare)
		e.Tombs = slices.Insert(e.Tombs, j, tag)
	}
	e.Tags = []Tag{}
	return removed, true
}

// Tombstone marks the given tags of id as removed, whether or not the
// adds were observed yet. An unobserved tombstone still suppresses the
// matching add when it arrives later. Reports whether anything
// changed.
func (m *MemberSet) Tombstone(id ident.TaskID, tags []Tag) bool {
	if len(tags) == 0 {
		return false
	}
	i, found := m.entryIndex(id)
	if !found {
		e := memberEntry{ID: id, Tags: []Tag{}, Tombs: []Tag{}}
		for _, tag := range tags {
			j, present := slices.BinarySearchFunc(e.Tombs, tag, Tag.Compare)
			if !present {
				e.Tombs = slices.Insert(e.Tombs, j, tag)
			}
		}
		m.Entries = slices.Insert(m.Entries, i, e)
		return true
	}
	e := &m.Entries[i]
	changed := false
	for _, tag := range tags {
		j, dead := slices.BinarySearchFunc(e.Tombs, tag, Tag.Compare)
		if dead {
			continue
		}
		e.Tombs = slices.Insert(e.Tombs, j, tag)
		if k, present := slices.BinarySearchFunc(e.Tags, tag, Tag.Compare); present {
			e.Tags = slices.Delete(e.Tags, k, k+1)
		}
		changed = true
	}
	return changed
}

// Contains reports whether id is a live member.
func (m *MemberSet) Contains(id ident.TaskID) bool {
	i, found := m.entryIndex(id)
	return found && m.Entries[i].live()
}

// LiveTags returns the live add tags of id, nil when id is not live.
func (m *MemberSet) LiveTags(id ident.TaskID) []Tag {
	i, found := m.entryIndex(id)
	if !found || !m.Entries[i].live() {
		return nil
	}
	return slices.Clone(m.Entries[i].Tags)
}

// Tombstones returns the tombstoned tags of id, nil when none.
func (m *MemberSet) Tombstones(id ident.TaskID) []Tag {
	i, found := m.entryIndex(id)
	if !found || len(m.Entries[i].Tombs) == 0 {
		return nil
	}
	return slices.Clone(m.Entries[i].Tombs)
}

// Live returns the live member ids in canonical (byte) order.
func (m *MemberSet) Live() []ident.TaskID {
	ids := make([]ident.TaskID, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.live() {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Len returns the number of live members.
func (m *MemberSet) Len() int {
	n := 0
	for _, e := range m.Entries {
		if e.live() {
			n++
		}
	}
	return n
}

// Merge folds other into m: tombstones union, then live tags union
// minus tombstones. Commutative, associative, idempotent. Reports
// whether m changed.
func (m *MemberSet) Merge(other *MemberSet) bool {
	changed := false
	for _, e := range other.Entries {
		if m.Tombstone(e.ID, e.Tombs) {
			changed = true
		}
		for _, tag := range e.Tags {
			if m.Add(e.ID, tag) {
				changed = true
			}
		}
	}
	return changed
}

// Clone returns a deep copy. Nil-ness of Entries is preserved: a
// fresh set encodes as null and must keep doing so after cloning, or
// two converged replicas stop being byte-identical.
func (m *MemberSet) Clone() MemberSet {
	if m.Entries == nil {
		return MemberSet{}
	}
	entries := make([]memberEntry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = memberEntry{
			ID:    e.ID,
			Tags:  cloneTags(e.Tags),
			Tombs: cloneTags(e.Tombs),
		}
	}
	return MemberSet{Entries: entries}
}

// cloneTags copies a tag slice without collapsing empty to nil.
// Canonical entries always carry non-nil slices so their CBOR
// encoding is stable ([] rather than null).
func cloneTags(tags []Tag) []Tag {
	out := make([]Tag, len(tags))
	copy(out, tags)
	return out
}
