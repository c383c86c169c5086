// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"context"
	"errors"

	"github.com/taskmesh-foundation/taskmesh/store"
)

// ErrClosed rejects operations on a closed replica.
var ErrClosed = errors.New("replica closed")

// Checkpoint flushes the current state to the store if anything is
// unsaved. The snapshot is a copy taken under the lock; the store
// write runs without it. A failed save keeps the replica dirty.
func (r *Replica) Checkpoint(ctx context.Context) error {
	if r.stor == nil {
		return nil
	}

	r.mu.Lock()
	if !r.sched.Dirty() {
		r.mu.Unlock()
		return nil
	}
	snapshot := r.list.Clone()
	savedVersion := r.list.Version()
	r.mu.Unlock()

	if err := r.stor.Save(ctx, snapshot); err != nil {
		return err
	}

	r.mu.Lock()
	// A mutation may have landed while the save ran; only a save of
	// the current version clears the dirty state.
	if r.list.Version() == savedVersion {
		r.sched.NoteSaved(r.clk.Now())
	}
	r.mu.Unlock()

	r.logger.Debug("checkpoint persisted", "version", savedVersion)
	return nil
}

// Run drives scheduled checkpoints until ctx is canceled. The poll
// interval is the debounce floor: finer granularity would never
// produce an earlier flush.
func (r *Replica) Run(ctx context.Context) error {
	ticker := r.clk.NewTicker(r.policy.DebounceFloor)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.mu.RLock()
			decision := r.sched.Decide(now)
			r.mu.RUnlock()
			if decision != store.Persist {
				continue
			}
			if err := r.Checkpoint(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Warn("scheduled checkpoint failed", "error", err)
			}
		}
	}
}

// Close closes the outbound channel and performs a final checkpoint.
// Mutations after Close fail with ErrClosed. The channel is closed
// under the write lock, so it is ordered after every delta an earlier
// mutation emitted.
func (r *Replica) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	close(r.outbound)
	r.mu.Unlock()

	return r.Checkpoint(ctx)
}
