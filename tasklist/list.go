// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"slices"

	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

// TaskList is the replicated state of one collaboration list. The
// exported fields are the CRDT payload and serialize with
// deterministic CBOR; the unexported fields are local change tracking
// for [TaskList.Diff] and never leave the process.
//
// TaskList does no locking; the replica package wraps it in a mutex.
type TaskList struct {
	ID       ident.ListID               `cbor:"id"`
	Name     Register[string]           `cbor:"name"`
	Members  MemberSet                  `cbor:"members"`
	Items    map[ident.TaskID]*TaskItem `cbor:"items"`
	Ordering Register[[]ident.TaskID]   `cbor:"ordering"`

	// version counts local state changes (mutations and applied
	// deltas). The maps record the version at which each piece last
	// changed, so Diff(since) can assemble a minimal delta. Nil after
	// CBOR decode; lazily rebuilt.
	version        uint64
	itemVersions   map[ident.TaskID]uint64
	memberVersions map[ident.TaskID]uint64
	nameVersion    uint64
	orderVersion   uint64
}

// NewTaskList creates a list with a content-addressed id derived from
// (name, creator, createdAt).
func NewTaskList(name string, creator ident.AgentID, createdAt uint64, stamp Stamp) *TaskList {
	return &TaskList{
		ID:       ident.DeriveListID(name, creator, createdAt),
		Name:     NewRegister(name, stamp),
		Items:    map[ident.TaskID]*TaskItem{},
		Ordering: NewRegister([]ident.TaskID{}, Stamp{}),
	}
}

// Version returns the local change counter. It is process-local and
// never serialized: use it only as a Diff marker against this same
// in-memory list.
func (l *TaskList) Version() uint64 { return l.version }

// bump advances the change counter and returns the new version.
func (l *TaskList) bump() uint64 {
	l.version++
	return l.version
}

func (l *TaskList) trackItem(id ident.TaskID, version uint64) {
	if l.itemVersions == nil {
		l.itemVersions = map[ident.TaskID]uint64{}
	}
	l.itemVersions[id] = version
}

func (l *TaskList) trackMember(id ident.TaskID, version uint64) {
	if l.memberVersions == nil {
		l.memberVersions = map[ident.TaskID]uint64{}
	}
	l.memberVersions[id] = version
}

// AddTask inserts item under the add tag. Re-adding an existing id is
// idempotent: the incoming item merges into the stored one and the
// fresh tag joins the membership. The ordering register gets the id
// appended under stamp when it is not already listed.
func (l *TaskList) AddTask(item *TaskItem, tag Tag, stamp Stamp) error {
	if err := item.validate(); err != nil {
		return err
	}
	if l.Items == nil {
		l.Items = map[ident.TaskID]*TaskItem{}
	}

	version := l.bump()
	if existing, ok := l.Items[item.ID]; ok {
		if err := existing.Merge(item); err != nil {
			return err
		}
	} else {
		l.Items[item.ID] = item.Clone()
	}
	l.Members.Add(item.ID, tag)
	l.trackItem(item.ID, version)
	l.trackMember(item.ID, version)

	if !slices.Contains(l.Ordering.Value, item.ID) {
		order := append(cloneOrder(l.Ordering.Value), item.ID)
		l.Ordering.Set(order, stamp)
		l.orderVersion = version
	}
	return nil
}

// RemoveTask tombstones every observed add of id. The ordering
// register is left untouched; dead ids are filtered at read time so
// the register stays a plain LWW value. Returns TaskNotFoundError when
// id is not a live member.
func (l *TaskList) RemoveTask(id ident.TaskID) error {
	if _, ok := l.Members.Remove(id); !ok {
		return &TaskNotFoundError{ID: id}
	}
	l.trackMember(id, l.bump())
	return nil
}

// ClaimTask transitions the task to claimed on behalf of agent.
func (l *TaskList) ClaimTask(id ident.TaskID, agent ident.AgentID, timestamp uint64) error {
	item, err := l.liveItem(id)
	if err != nil {
		return err
	}
	if err := item.Claim(agent, timestamp); err != nil {
		return err
	}
	l.trackItem(id, l.bump())
	return nil
}

// CompleteTask transitions the task to done on behalf of agent.
func (l *TaskList) CompleteTask(id ident.TaskID, agent ident.AgentID, timestamp uint64) error {
	item, err := l.liveItem(id)
	if err != nil {
		return err
	}
	if err := item.Complete(agent, timestamp); err != nil {
		return err
	}
	l.trackItem(id, l.bump())
	return nil
}

// UpdateTitle writes the task's title register.
func (l *TaskList) UpdateTitle(id ident.TaskID, title string, stamp Stamp) error {
	return l.updateItem(id, func(item *TaskItem) { item.SetTitle(title, stamp) })
}

// UpdateDescription writes the task's description register.
func (l *TaskList) UpdateDescription(id ident.TaskID, description string, stamp Stamp) error {
	return l.updateItem(id, func(item *TaskItem) { item.SetDescription(description, stamp) })
}

// UpdateAssignee writes the task's assignee register.
func (l *TaskList) UpdateAssignee(id ident.TaskID, agent ident.AgentID, stamp Stamp) error {
	return l.updateItem(id, func(item *TaskItem) { item.SetAssignee(agent, stamp) })
}

// UpdatePriority writes the task's priority register.
func (l *TaskList) UpdatePriority(id ident.TaskID, priority uint8, stamp Stamp) error {
	return l.updateItem(id, func(item *TaskItem) { item.SetPriority(priority, stamp) })
}

func (l *TaskList) updateItem(id ident.TaskID, mutate func(*TaskItem)) error {
	item, err := l.liveItem(id)
	if err != nil {
		return err
	}
	mutate(item)
	l.trackItem(id, l.bump())
	return nil
}

func (l *TaskList) liveItem(id ident.TaskID) (*TaskItem, error) {
	item, ok := l.Items[id]
	if !ok || !l.Members.Contains(id) {
		return nil, &TaskNotFoundError{ID: id}
	}
	return item, nil
}

// Rename writes the list name register.
func (l *TaskList) Rename(name string, stamp Stamp) {
	l.Name.Set(name, stamp)
	l.nameVersion = l.bump()
}

// Reorder replaces the ordering register unconditionally under stamp.
// Unknown or dead ids are not rejected here; they are filtered at
// read time, which keeps the register a plain mergeable value.
func (l *TaskList) Reorder(order []ident.TaskID, stamp Stamp) {
	l.Ordering.Set(cloneOrder(order), stamp)
	l.orderVersion = l.bump()
}

// Get returns the live task with the given id. The pointer aliases
// list state; callers needing isolation go through Clone or the
// replica's snapshot.
func (l *TaskList) Get(id ident.TaskID) (*TaskItem, bool) {
	item, err := l.liveItem(id)
	if err != nil {
		return nil, false
	}
	return item, true
}

// Contains reports whether id is a live member.
func (l *TaskList) Contains(id ident.TaskID) bool { return l.Members.Contains(id) }

// Len returns the number of live tasks.
func (l *TaskList) Len() int { return l.Members.Len() }

// TasksOrdered returns the live task ids in presentation order: the
// ordering register filtered to live members, then any live member the
// register does not mention appended in canonical byte order. The
// result is derived fresh on every call, so a removal concurrent with
// a reorder simply drops out.
func (l *TaskList) TasksOrdered() []ident.TaskID {
	ordered := make([]ident.TaskID, 0, l.Members.Len())
	seen := map[ident.TaskID]bool{}
	for _, id := range l.Ordering.Value {
		if seen[id] || !l.Members.Contains(id) {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	for _, id := range l.Members.Live() {
		if !seen[id] {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// Merge folds other into l. Equivalent to applying other's full
// state as a delta: one code path serves both incremental and
// full-state sync.
func (l *TaskList) Merge(other *TaskList) error {
	if l.ID != other.ID {
		return mergeErrorf("list id mismatch: %s vs %s", l.ID.Short(), other.ID.Short())
	}
	return l.Apply(other.FullDelta())
}

// Clone returns a deep copy, change tracking included.
func (l *TaskList) Clone() *TaskList {
	items := make(map[ident.TaskID]*TaskItem, len(l.Items))
	for id, item := range l.Items {
		items[id] = item.Clone()
	}
	clone := &TaskList{
		ID:           l.ID,
		Name:         l.Name,
		Members:      l.Members.Clone(),
		Items:        items,
		Ordering:     NewRegister(cloneOrder(l.Ordering.Value), l.Ordering.Stamp),
		version:      l.version,
		nameVersion:  l.nameVersion,
		orderVersion: l.orderVersion,
	}
	if l.itemVersions != nil {
		clone.itemVersions = make(map[ident.TaskID]uint64, len(l.itemVersions))
		for id, v := range l.itemVersions {
			clone.itemVersions[id] = v
		}
	}
	if l.memberVersions != nil {
		clone.memberVersions = make(map[ident.TaskID]uint64, len(l.memberVersions))
		for id, v := range l.memberVersions {
			clone.memberVersions[id] = v
		}
	}
	return clone
}

// cloneOrder copies an ordering slice, keeping empty distinct from
// nil for encoding stability.
func cloneOrder(order []ident.TaskID) []ident.TaskID {
	out := make([]ident.TaskID, len(order))
	copy(out, order)
	return out
}
