// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package store

import "time"

// CheckpointDecision is the scheduler's verdict on whether to flush
// now.
type CheckpointDecision int

const (
	// SkipClean: nothing changed since the last save.
	SkipClean CheckpointDecision = iota

	// SkipDebounced: dirty, but the last save is too recent. A
	// mutation burst becomes one write once the debounce floor
	// passes.
	SkipDebounced

	// SkipPolicy: dirty and out of debounce, but neither the
	// mutation threshold nor the dirty-time floor is reached yet.
	SkipPolicy

	// Persist: flush now.
	Persist
)

func (d CheckpointDecision) String() string {
	switch d {
	case SkipClean:
		return "skip-clean"
	case SkipDebounced:
		return "skip-debounced"
	case SkipPolicy:
		return "skip-policy"
	case Persist:
		return "persist"
	default:
		return "unknown"
	}
}

// CheckpointScheduler tracks mutation pressure for one list and
// decides when it is worth a disk write. Not safe for concurrent use;
// the replica drives it under its own lock.
type CheckpointScheduler struct {
	policy CheckpointPolicy

	mutations  int
	dirtySince time.Time
	lastSave   time.Time
	hasSaved   bool
}

// NewCheckpointScheduler returns a clean scheduler under the given
// policy.
func NewCheckpointScheduler(policy CheckpointPolicy) *CheckpointScheduler {
	return &CheckpointScheduler{policy: policy}
}

// NoteMutation records one local or remote state change at now.
func (c *CheckpointScheduler) NoteMutation(now time.Time) {
	if c.mutations == 0 {
		c.dirtySince = now
	}
	c.mutations++
}

// NoteSaved resets the dirty state after a successful flush at now.
func (c *CheckpointScheduler) NoteSaved(now time.Time) {
	c.mutations = 0
	c.dirtySince = time.Time{}
	c.lastSave = now
	c.hasSaved = true
}

// Dirty reports whether unsaved changes exist.
func (c *CheckpointScheduler) Dirty() bool { return c.mutations > 0 }

// Decide returns the verdict for a flush attempt at now. Pure with
// respect to the clock: the caller supplies the time.
func (c *CheckpointScheduler) Decide(now time.Time) CheckpointDecision {
	if c.mutations == 0 {
		return SkipClean
	}
	if c.hasSaved && now.Sub(c.lastSave) < c.policy.DebounceFloor {
		return SkipDebounced
	}
	if c.mutations >= c.policy.MutationThreshold {
		return Persist
	}
	if now.Sub(c.dirtySince) >= c.policy.DirtyTimeFloor {
		return Persist
	}
	return SkipPolicy
}
