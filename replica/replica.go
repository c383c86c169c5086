// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

// Package replica wires one task list into the mesh: it owns the
// authoritative in-memory state, stamps local operations with a
// Lamport clock, emits deltas for the gossip layer, folds remote
// deltas in, and checkpoints to the snapshot store.
//
// All state lives behind one RWMutex. The lock is never held across a
// blocking call: store writes happen on a copy taken under the read
// lock, and outbound sends are non-blocking (a full channel drops the
// delta with a warning; gossip anti-entropy repairs the gap with a
// later full-state exchange).
package replica

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/taskmesh-foundation/taskmesh/lib/clock"
	"github.com/taskmesh-foundation/taskmesh/lib/codec"
	"github.com/taskmesh-foundation/taskmesh/lib/ident"
	"github.com/taskmesh-foundation/taskmesh/store"
	"github.com/taskmesh-foundation/taskmesh/tasklist"
)

// Store is the slice of the snapshot store the replica needs.
// *store.Store satisfies it.
type Store interface {
	Save(ctx context.Context, list *tasklist.TaskList) error
	LoadLatest(ctx context.Context, id ident.ListID) (*tasklist.TaskList, error)
}

// Config carries the dependencies for a replica.
type Config struct {
	// List is the task list this replica owns. Required.
	List *tasklist.TaskList

	// Peer is this replica's identity on the mesh. Required,
	// non-zero.
	Peer ident.PeerID

	// Store receives checkpoints. Nil disables persistence;
	// Checkpoint and Close become no-ops.
	Store Store

	// Checkpoint tunes the flush scheduler. Zero value means the
	// store defaults.
	Checkpoint store.CheckpointPolicy

	// Clock drives checkpoint scheduling. Nil means the real clock.
	Clock clock.Clock

	// Logger, nil means slog.Default().
	Logger *slog.Logger

	// OutboundBuffer is the capacity of the delta channel. Zero
	// means 64.
	OutboundBuffer int
}

// Replica coordinates one task list's local mutations, remote merges,
// and persistence. Safe for concurrent use.
type Replica struct {
	peer   ident.PeerID
	clk    clock.Clock
	logger *slog.Logger
	stor   Store

	policy store.CheckpointPolicy

	mu          sync.RWMutex
	list        *tasklist.TaskList
	lamport     uint64
	seq         uint64
	lastEmitted uint64
	sched       *store.CheckpointScheduler
	closed      bool

	outbound chan *tasklist.Delta
}

// New builds a replica around cfg.List.
func New(cfg Config) (*Replica, error) {
	if cfg.List == nil {
		return nil, fmt.Errorf("replica: list required")
	}
	if cfg.Peer.IsZero() {
		return nil, fmt.Errorf("replica: peer id required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Checkpoint
	if policy == (store.CheckpointPolicy{}) {
		policy = store.DefaultPolicy().Checkpoint
	}
	buffer := cfg.OutboundBuffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Replica{
		peer:        cfg.Peer,
		clk:         clk,
		logger:      logger.With("list", cfg.List.ID.Short(), "peer", cfg.Peer.Short()),
		stor:        cfg.Store,
		policy:      policy,
		list:        cfg.List,
		lastEmitted: cfg.List.Version(),
		sched:       store.NewCheckpointScheduler(policy),
		outbound:    make(chan *tasklist.Delta, buffer),
	}, nil
}

// Open restores a replica from the newest snapshot in the store.
func Open(ctx context.Context, cfg Config, id ident.ListID) (*Replica, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("replica: store required to open %s", id.Short())
	}
	list, err := cfg.Store.LoadLatest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restoring list %s: %w", id.Short(), err)
	}
	cfg.List = list
	return New(cfg)
}

// ID returns the replicated list's id.
func (r *Replica) ID() ident.ListID {
	return r.list.ID
}

// Peer returns this replica's mesh identity.
func (r *Replica) Peer() ident.PeerID { return r.peer }

// Outbound returns the channel on which locally produced deltas are
// emitted for the gossip layer. Closed by Close.
func (r *Replica) Outbound() <-chan *tasklist.Delta { return r.outbound }

// tick advances the Lamport clock for one local operation. Caller
// holds the write lock.
func (r *Replica) tick() uint64 {
	r.lamport++
	return r.lamport
}

// observe folds a remote logical time into the Lamport clock. Caller
// holds the write lock.
func (r *Replica) observe(remote uint64) {
	if remote > r.lamport {
		r.lamport = remote
	}
}

// stamp returns a register stamp for a local write at time.
func (r *Replica) stamp(time uint64) tasklist.Stamp {
	return tasklist.Stamp{Time: time, Actor: r.peer}
}

// nextTag returns a fresh OR-set add tag. Caller holds the write
// lock.
func (r *Replica) nextTag() tasklist.Tag {
	r.seq++
	return tasklist.Tag{Peer: r.peer, Seq: r.seq}
}

// mutate runs op under the write lock, then emits the resulting diff
// and marks the scheduler dirty when op succeeded and changed state.
func (r *Replica) mutate(op func(now uint64) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	now := r.tick()
	before := r.list.Version()
	err := op(now)
	if err == nil && r.list.Version() != before {
		delta := r.list.Diff(r.lastEmitted)
		r.lastEmitted = r.list.Version()
		r.sched.NoteMutation(r.clk.Now())
		if delta != nil {
			r.emit(delta)
		}
	}
	return err
}

// emit hands a delta to the gossip layer without blocking. Caller
// holds the write lock: the lock serializes sends against Close's
// close of the channel, and the select keeps the send from ever
// blocking under it.
func (r *Replica) emit(delta *tasklist.Delta) {
	select {
	case r.outbound <- delta:
	default:
		r.logger.Warn("outbound delta dropped, consumer lagging",
			"version", delta.Version)
	}
}

// AddTask creates a task with the given title on behalf of agent and
// returns its id.
func (r *Replica) AddTask(title string, agent ident.AgentID) (ident.TaskID, error) {
	var id ident.TaskID
	err := r.mutate(func(now uint64) error {
		item := tasklist.NewTask(title, agent, now, r.stamp(now))
		id = item.ID
		return r.list.AddTask(item, r.nextTag(), r.stamp(now))
	})
	return id, err
}

// Claim marks the task as being worked on by agent.
func (r *Replica) Claim(id ident.TaskID, agent ident.AgentID) error {
	return r.mutate(func(now uint64) error {
		return r.list.ClaimTask(id, agent, now)
	})
}

// Complete marks the task done on behalf of agent.
func (r *Replica) Complete(id ident.TaskID, agent ident.AgentID) error {
	return r.mutate(func(now uint64) error {
		return r.list.CompleteTask(id, agent, now)
	})
}

// Remove drops the task from the list.
func (r *Replica) Remove(id ident.TaskID) error {
	return r.mutate(func(uint64) error {
		return r.list.RemoveTask(id)
	})
}

// Rename sets the list name.
func (r *Replica) Rename(name string) error {
	return r.mutate(func(now uint64) error {
		r.list.Rename(name, r.stamp(now))
		return nil
	})
}

// Reorder replaces the presentation order.
func (r *Replica) Reorder(order []ident.TaskID) error {
	return r.mutate(func(now uint64) error {
		r.list.Reorder(order, r.stamp(now))
		return nil
	})
}

// UpdateTitle sets the task's title.
func (r *Replica) UpdateTitle(id ident.TaskID, title string) error {
	return r.mutate(func(now uint64) error {
		return r.list.UpdateTitle(id, title, r.stamp(now))
	})
}

// UpdateDescription sets the task's description.
func (r *Replica) UpdateDescription(id ident.TaskID, description string) error {
	return r.mutate(func(now uint64) error {
		return r.list.UpdateDescription(id, description, r.stamp(now))
	})
}

// UpdateAssignee sets the task's assignee.
func (r *Replica) UpdateAssignee(id ident.TaskID, agent ident.AgentID) error {
	return r.mutate(func(now uint64) error {
		return r.list.UpdateAssignee(id, agent, r.stamp(now))
	})
}

// UpdatePriority sets the task's priority.
func (r *Replica) UpdatePriority(id ident.TaskID, priority uint8) error {
	return r.mutate(func(now uint64) error {
		return r.list.UpdatePriority(id, priority, r.stamp(now))
	})
}

// ApplyRemote merges a delta received from peer. A malformed delta is
// rejected with the state untouched; duplicates and reordered
// delivery converge silently. The Lamport clock absorbs every logical
// time the delta carries.
func (r *Replica) ApplyRemote(from ident.PeerID, delta *tasklist.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	before := r.list.Version()
	if err := r.list.Apply(delta); err != nil {
		return fmt.Errorf("delta from %s: %w", from.Short(), err)
	}
	r.observe(maxLogicalTime(delta))
	if r.list.Version() != before {
		// Remote changes count toward checkpoint pressure, and
		// lastEmitted moves past them: the sender's own gossip
		// distributes them, this replica only forwards what it
		// authored.
		r.lastEmitted = r.list.Version()
		r.sched.NoteMutation(r.clk.Now())
	}
	return nil
}

// ApplyRemoteBytes decodes a CBOR delta from the gossip layer and
// merges it.
func (r *Replica) ApplyRemoteBytes(from ident.PeerID, data []byte) error {
	var delta tasklist.Delta
	if err := codec.Unmarshal(data, &delta); err != nil {
		return fmt.Errorf("decoding delta from %s: %w", from.Short(), err)
	}
	return r.ApplyRemote(from, &delta)
}

// FullDelta packages the whole list state for anti-entropy exchange.
func (r *Replica) FullDelta() *tasklist.Delta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list.FullDelta()
}

// Snapshot returns a deep copy of the list. Readers never observe a
// mid-merge state.
func (r *Replica) Snapshot() *tasklist.TaskList {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list.Clone()
}

// View runs fn under the read lock. fn must not retain the list or
// anything reachable from it past its return.
func (r *Replica) View(fn func(*tasklist.TaskList)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.list)
}

// Dirty reports whether unsaved changes exist.
func (r *Replica) Dirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sched.Dirty()
}

// maxLogicalTime scans a delta for the largest Lamport time it
// carries.
func maxLogicalTime(delta *tasklist.Delta) uint64 {
	max := uint64(0)
	note := func(t uint64) {
		if t > max {
			max = t
		}
	}
	noteItem := func(item *tasklist.TaskItem) {
		note(item.CreatedAt)
		note(item.Checkbox.Timestamp)
		note(item.Title.Stamp.Time)
		note(item.Description.Stamp.Time)
		note(item.Assignee.Stamp.Time)
		note(item.Priority.Stamp.Time)
	}
	for _, added := range delta.Added {
		noteItem(added.Item)
	}
	for _, item := range delta.Updated {
		noteItem(item)
	}
	if delta.Ordering != nil {
		note(delta.Ordering.Stamp.Time)
	}
	if delta.Name != nil {
		note(delta.Name.Stamp.Time)
	}
	return max
}
