// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

// Package tasklist implements the conflict-free replicated task list
// that agent groups collaborate on.
//
// A TaskList is a state-based CRDT: replicas mutate their local copy
// without coordination and exchange deltas (or full state) in any
// order, with duplicates and redelivery, and still converge to the
// same state. Convergence is bit-exact: two converged replicas produce
// identical deterministic CBOR encodings, so state digests can be
// compared directly during anti-entropy.
//
// The pieces:
//
//   - CheckboxState: a three-phase state machine (empty, claimed,
//     done) with a total order that makes concurrent claims resolve
//     identically on every replica. Claims are advisory, not locks: a
//     losing claimant is silently superseded.
//   - Register: a generic last-writer-wins cell used for task titles,
//     descriptions, assignees, priorities, the list name, and the
//     manual ordering.
//   - MemberSet: an observed-remove set with add-wins semantics
//     governing which tasks are live. Removal tombstones only the add
//     tags the remover has observed, so a concurrent add survives.
//   - TaskItem: one task; field-wise merge of its registers and
//     checkbox.
//   - Delta: the unit of replication. Diff produces a minimal delta
//     since a local version marker, FullDelta produces the whole
//     state, and Apply folds either into a list. Merge of two lists
//     is Apply(other.FullDelta()) — one code path for both sync
//     shapes.
//
// Timestamps throughout are logical Lamport-style counters supplied
// by the caller (the replica layer maintains them); they carry no
// wall-clock meaning.
//
// Nothing in this package locks: TaskList is a plain data structure.
// The replica package owns the mutex and the outbound delta channel.
package tasklist
