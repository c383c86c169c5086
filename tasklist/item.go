// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import "github.com/taskmesh-foundation/taskmesh/lib/ident"

// TaskItem is one task. ID, CreatedBy, and CreatedAt are immutable
// creation facts (the ID is derived from them); everything else is a
// mergeable CRDT field.
type TaskItem struct {
	ID        ident.TaskID  `cbor:"id"`
	CreatedBy ident.AgentID `cbor:"created_by"`
	CreatedAt uint64        `cbor:"created_at"`

	Checkbox    CheckboxState           `cbor:"checkbox"`
	Title       Register[string]        `cbor:"title"`
	Description Register[string]        `cbor:"description"`
	Assignee    Register[ident.AgentID] `cbor:"assignee"`
	Priority    Register[uint8]         `cbor:"priority"`
}

// NewTask creates a task with a content-addressed id derived from
// (title, creator, createdAt). The title register is stamped with the
// creation stamp; the other registers start at their zero value with a
// zero stamp so any later write supersedes them.
func NewTask(title string, creator ident.AgentID, createdAt uint64, stamp Stamp) *TaskItem {
	return &TaskItem{
		ID:        ident.DeriveTaskID(title, creator, createdAt),
		CreatedBy: creator,
		CreatedAt: createdAt,
		Title:     NewRegister(title, stamp),
	}
}

// Claim validates empty → claimed against the current checkbox, then
// folds the transition in through the register merge.
func (t *TaskItem) Claim(agent ident.AgentID, timestamp uint64) error {
	next, err := t.Checkbox.TransitionClaim(agent, timestamp)
	if err != nil {
		return err
	}
	t.Checkbox = MergeCheckbox(t.Checkbox, next)
	return nil
}

// Complete validates claimed → done, then folds the transition in.
func (t *TaskItem) Complete(agent ident.AgentID, timestamp uint64) error {
	next, err := t.Checkbox.TransitionComplete(agent, timestamp)
	if err != nil {
		return err
	}
	t.Checkbox = MergeCheckbox(t.Checkbox, next)
	return nil
}

// SetTitle writes the title register; stale stamps are no-ops.
func (t *TaskItem) SetTitle(title string, stamp Stamp) { t.Title.Set(title, stamp) }

// SetDescription writes the description register.
func (t *TaskItem) SetDescription(description string, stamp Stamp) {
	t.Description.Set(description, stamp)
}

// SetAssignee writes the assignee register. A zero AgentID clears the
// assignment.
func (t *TaskItem) SetAssignee(agent ident.AgentID, stamp Stamp) { t.Assignee.Set(agent, stamp) }

// SetPriority writes the priority register. Higher is more urgent.
func (t *TaskItem) SetPriority(priority uint8, stamp Stamp) { t.Priority.Set(priority, stamp) }

// Merge folds other into t field by field. Pure CRDT merge: no state
// machine validation, because both inputs were validated at their
// origin and merge order must not matter. Returns a MergeError when
// the ids differ.
func (t *TaskItem) Merge(other *TaskItem) error {
	if t.ID != other.ID {
		return mergeErrorf("task id mismatch: %s vs %s", t.ID.Short(), other.ID.Short())
	}
	t.Checkbox = MergeCheckbox(t.Checkbox, other.Checkbox)
	t.Title = t.Title.Merge(other.Title)
	t.Description = t.Description.Merge(other.Description)
	t.Assignee = t.Assignee.Merge(other.Assignee)
	t.Priority = t.Priority.Merge(other.Priority)
	return nil
}

// Equal reports field-wise equality.
func (t *TaskItem) Equal(other *TaskItem) bool {
	return *t == *other
}

// Clone returns a copy sharing no mutable state with t.
func (t *TaskItem) Clone() *TaskItem {
	clone := *t
	return &clone
}

// validate checks internal consistency of an item received in a
// delta.
func (t *TaskItem) validate() error {
	if t.ID.IsZero() {
		return mergeErrorf("task has zero id")
	}
	if !t.Checkbox.Phase.valid() {
		return mergeErrorf("task %s has corrupt checkbox phase %d", t.ID.Short(), uint8(t.Checkbox.Phase))
	}
	return nil
}
