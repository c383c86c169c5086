// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"slices"

	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

// AddedTask carries a task insertion: the item state and the add tags
// proving membership.
type AddedTask struct {
	Item *TaskItem `cbor:"item"`
	Tags []Tag     `cbor:"tags"`
}

// Delta is the unit of replication: a mergeable fragment of list
// state. Deltas tolerate redelivery, duplication, and arbitrary
// reordering — applying one is a CRDT merge, not a replay. A full
// state transfer is just a Delta that happens to contain everything.
//
// Version is the sender's local change counter at emission. It is
// advisory (receivers converge without it) and lets the sender's own
// bookkeeping resume diffing from the right marker.
type Delta struct {
	ListID      ident.ListID               `cbor:"list_id"`
	Added       map[ident.TaskID]AddedTask `cbor:"added,omitempty"`
	RemovedTags map[ident.TaskID][]Tag     `cbor:"removed_tags,omitempty"`
	Updated     map[ident.TaskID]*TaskItem `cbor:"updated,omitempty"`
	Ordering    *Register[[]ident.TaskID]  `cbor:"ordering,omitempty"`
	Name        *Register[string]          `cbor:"name,omitempty"`
	Version     uint64                     `cbor:"version"`
}

// IsEmpty reports whether the delta carries no changes.
func (d *Delta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.RemovedTags) == 0 && len(d.Updated) == 0 &&
		d.Ordering == nil && d.Name == nil
}

// Merge folds other into d, producing a delta equivalent to applying
// both. Used to coalesce outbound deltas when the gossip layer
// batches.
func (d *Delta) Merge(other *Delta) error {
	if d.ListID != other.ListID {
		return mergeErrorf("delta list id mismatch: %s vs %s", d.ListID.Short(), other.ListID.Short())
	}
	for id, added := range other.Added {
		if existing, ok := d.Added[id]; ok {
			if err := existing.Item.Merge(added.Item); err != nil {
				return err
			}
			existing.Tags = unionTags(existing.Tags, added.Tags)
			d.Added[id] = existing
			continue
		}
		if d.Added == nil {
			d.Added = map[ident.TaskID]AddedTask{}
		}
		d.Added[id] = AddedTask{Item: added.Item.Clone(), Tags: cloneTags(added.Tags)}
	}
	for id, tags := range other.RemovedTags {
		if d.RemovedTags == nil {
			d.RemovedTags = map[ident.TaskID][]Tag{}
		}
		d.RemovedTags[id] = unionTags(d.RemovedTags[id], tags)
	}
	for id, item := range other.Updated {
		if existing, ok := d.Updated[id]; ok {
			if err := existing.Merge(item); err != nil {
				return err
			}
			continue
		}
		if d.Updated == nil {
			d.Updated = map[ident.TaskID]*TaskItem{}
		}
		d.Updated[id] = item.Clone()
	}
	if other.Ordering != nil {
		if d.Ordering == nil {
			merged := NewRegister(cloneOrder(other.Ordering.Value), other.Ordering.Stamp)
			d.Ordering = &merged
		} else {
			merged := d.Ordering.Merge(*other.Ordering)
			d.Ordering = &merged
		}
	}
	if other.Name != nil {
		if d.Name == nil {
			merged := *other.Name
			d.Name = &merged
		} else {
			merged := d.Name.Merge(*other.Name)
			d.Name = &merged
		}
	}
	if other.Version > d.Version {
		d.Version = other.Version
	}
	return nil
}

// unionTags merges two sorted tag slices, deduplicating.
func unionTags(a, b []Tag) []Tag {
	out := cloneTags(a)
	for _, tag := range b {
		i, present := slices.BinarySearchFunc(out, tag, Tag.Compare)
		if !present {
			out = slices.Insert(out, i, tag)
		}
	}
	return out
}

// Diff assembles the minimal delta covering every change after the
// since marker, or nil when the list is clean. The marker is a value
// previously returned by [TaskList.Version] on this same in-memory
// list.
func (l *TaskList) Diff(since uint64) *Delta {
	if l.version <= since {
		return nil
	}
	delta := &Delta{ListID: l.ID, Version: l.version}

	for id, changedAt := range l.memberVersions {
		if changedAt <= since {
			continue
		}
		if tags := l.Members.LiveTags(id); tags != nil {
			item := l.Items[id]
			if item == nil {
				continue
			}
			if delta.Added == nil {
				delta.Added = map[ident.TaskID]AddedTask{}
			}
			delta.Added[id] = AddedTask{Item: item.Clone(), Tags: tags}
		}
		if tombs := l.Members.Tombstones(id); tombs != nil {
			if delta.RemovedTags == nil {
				delta.RemovedTags = map[ident.TaskID][]Tag{}
			}
			delta.RemovedTags[id] = tombs
		}
	}
	for id, changedAt := range l.itemVersions {
		if changedAt <= since {
			continue
		}
		if _, added := delta.Added[id]; added {
			continue
		}
		if item, ok := l.Items[id]; ok {
			if delta.Updated == nil {
				delta.Updated = map[ident.TaskID]*TaskItem{}
			}
			delta.Updated[id] = item.Clone()
		}
	}
	if l.orderVersion > since {
		ordering := NewRegister(cloneOrder(l.Ordering.Value), l.Ordering.Stamp)
		delta.Ordering = &ordering
	}
	if l.nameVersion > since {
		name := l.Name
		delta.Name = &name
	}
	if delta.IsEmpty() {
		return nil
	}
	return delta
}

// FullDelta packages the entire list state for full-state sync.
// Applying it to a fresh list reproduces the CRDT payload exactly.
func (l *TaskList) FullDelta() *Delta {
	delta := &Delta{ListID: l.ID, Version: l.version}

	for _, e := range l.Members.Entries {
		if e.live() {
			item := l.Items[e.ID]
			if item != nil {
				if delta.Added == nil {
					delta.Added = map[ident.TaskID]AddedTask{}
				}
				delta.Added[e.ID] = AddedTask{Item: item.Clone(), Tags: cloneTags(e.Tags)}
			}
		}
		if len(e.Tombs) > 0 {
			if delta.RemovedTags == nil {
				delta.RemovedTags = map[ident.TaskID][]Tag{}
			}
			delta.RemovedTags[e.ID] = cloneTags(e.Tombs)
		}
	}
	// Items for tasks with no live membership still travel: their
	// registers matter if a concurrent re-add revives the id.
	for id, item := range l.Items {
		if _, added := delta.Added[id]; added {
			continue
		}
		if delta.Updated == nil {
			delta.Updated = map[ident.TaskID]*TaskItem{}
		}
		delta.Updated[id] = item.Clone()
	}
	ordering := NewRegister(cloneOrder(l.Ordering.Value), l.Ordering.Stamp)
	delta.Ordering = &ordering
	name := l.Name
	delta.Name = &name
	return delta
}

// Apply folds a delta into the list. Validation happens before any
// mutation: a rejected delta leaves the list untouched. Applying the
// same delta twice, or two deltas in either order, converges to the
// same state.
func (l *TaskList) Apply(delta *Delta) error {
	if delta.ListID != l.ID {
		return mergeErrorf("delta for list %s applied to list %s", delta.ListID.Short(), l.ID.Short())
	}
	for id, added := range delta.Added {
		if added.Item == nil {
			return mergeErrorf("added task %s has no item", id.Short())
		}
		if added.Item.ID != id {
			return mergeErrorf("added task keyed %s carries item %s", id.Short(), added.Item.ID.Short())
		}
		if err := added.Item.validate(); err != nil {
			return err
		}
	}
	for id, item := range delta.Updated {
		if item == nil {
			return mergeErrorf("updated task %s has no item", id.Short())
		}
		if item.ID != id {
			return mergeErrorf("updated task keyed %s carries item %s", id.Short(), item.ID.Short())
		}
		if err := item.validate(); err != nil {
			return err
		}
	}

	if l.Items == nil {
		l.Items = map[ident.TaskID]*TaskItem{}
	}
	version := l.bump()

	for id, added := range delta.Added {
		for _, tag := range added.Tags {
			if l.Members.Add(id, tag) {
				l.trackMember(id, version)
			}
		}
		l.mergeItem(id, added.Item, version)
	}
	for id, tags := range delta.RemovedTags {
		if l.Members.Tombstone(id, tags) {
			l.trackMember(id, version)
		}
	}
	for id, item := range delta.Updated {
		l.mergeItem(id, item, version)
	}
	if delta.Ordering != nil {
		merged := l.Ordering.Merge(*delta.Ordering)
		if merged.Stamp != l.Ordering.Stamp {
			l.Ordering = NewRegister(cloneOrder(merged.Value), merged.Stamp)
			l.orderVersion = version
		}
	}
	if delta.Name != nil {
		merged := l.Name.Merge(*delta.Name)
		if merged.Stamp != l.Name.Stamp {
			l.Name = merged
			l.nameVersion = version
		}
	}
	return nil
}

// mergeItem folds an incoming item into the stored one, inserting a
// clone when the id is new, and tracks the change when state moved.
func (l *TaskList) mergeItem(id ident.TaskID, incoming *TaskItem, version uint64) {
	existing, ok := l.Items[id]
	if !ok {
		l.Items[id] = incoming.Clone()
		l.trackItem(id, version)
		return
	}
	before := *existing
	// IDs already validated equal; Merge cannot fail here.
	_ = existing.Merge(incoming)
	if before != *existing {
		l.trackItem(id, version)
	}
}
