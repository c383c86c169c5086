// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of calling
// time.Now, time.After, time.NewTicker, or time.Sleep directly. In
// production, Real() provides the standard library behavior. In tests,
// Fake() provides a deterministic clock that advances only when Advance
// is called.
//
// The checkpoint scheduler and the replica's periodic flush loop are the
// time consumers in this module; their tests drive a FakeClock so that
// debounce floors and dirty-time windows can be crossed instantly and
// deterministically.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Replica struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	r := replica.New(replica.Config{Clock: clock.Real()})
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	c.Advance(5 * time.Minute) // cross the dirty-time floor
//
// # FakeClock Synchronization
//
// When a goroutine calls Sleep, After, or NewTicker on a FakeClock, it
// registers a pending waiter. Use WaitForWaiters to block until a
// specific number of waiters are registered before calling Advance.
// This eliminates the race between timer registration and time
// advancement.
package clock
