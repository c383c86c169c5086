// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock for tests. Time is frozen at construction and
// moves only when Advance is called. All methods are safe for
// concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter

	// waitersChanged is broadcast whenever a waiter is added or
	// removed, waking WaitForWaiters.
	waitersChanged *sync.Cond
}

// fakeWaiter is a pending timer on a FakeClock: a one-shot After/Sleep
// channel, or a repeating ticker when interval > 0.
type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time

	// interval is the re-arm period for tickers, zero for one-shots.
	interval time.Duration
	stopped  bool
}

// Fake returns a FakeClock frozen at the given time.
func Fake(at time.Time) *FakeClock {
	c := &FakeClock{current: at}
	c.waitersChanged = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake clock's current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives the fake time once Advance has
// moved the clock at least d past the current time. If d <= 0 the
// channel receives immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.addWaiterLocked(&fakeWaiter{deadline: c.current.Add(d), ch: ch})
	return ch
}

// NewTicker returns a Ticker that fires every time Advance crosses a
// multiple of d. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &fakeWaiter{
		deadline: c.current.Add(d),
		ch:       make(chan time.Time, 1),
		interval: d,
	}
	c.addWaiterLocked(w)
	return &Ticker{
		C: w.ch,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.removeWaiterLocked(w)
		},
		resetFunc: func(nd time.Duration) {
			if nd <= 0 {
				panic("non-positive interval for Reset")
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			w.interval = nd
			w.deadline = c.current.Add(nd)
		},
	}
}

// Sleep blocks until Advance moves the clock at least d past the
// current time. Returns immediately if d <= 0.
func (c *FakeClock) Sleep(d time.Duration) {
	<-c.After(d)
}

// Advance moves the fake clock forward by d, firing every timer whose
// deadline is reached, in deadline order. Tickers fire once per elapsed
// interval and re-arm.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.current.Add(d)
	for {
		w := c.nextDueLocked(target)
		if w == nil {
			break
		}
		c.current = w.deadline
		// Non-blocking send: a ticker whose consumer is behind drops
		// the tick, matching time.Ticker.
		select {
		case w.ch <- c.current:
		default:
		}
		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
		} else {
			c.removeWaiterLocked(w)
		}
	}
	c.current = target
}

// WaitForWaiters blocks until at least n timers are registered on the
// clock. Call this before Advance when the timers are created by other
// goroutines, so that Advance cannot run before they are armed.
func (c *FakeClock) WaitForWaiters(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.waitersChanged.Wait()
	}
}

func (c *FakeClock) addWaiterLocked(w *fakeWaiter) {
	c.waiters = append(c.waiters, w)
	c.waitersChanged.Broadcast()
}

func (c *FakeClock) removeWaiterLocked(w *fakeWaiter) {
	if w.stopped {
		return
	}
	w.stopped = true
	for i, candidate := range c.waiters {
		if candidate == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	c.waitersChanged.Broadcast()
}

// nextDueLocked returns the waiter with the earliest deadline at or
// before target, or nil if none is due.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeWaiter {
	var due *fakeWaiter
	for _, w := range c.waiters {
		if w.deadline.After(target) {
			continue
		}
		if due == nil || w.deadline.Before(due.deadline) {
			due = w
		}
	}
	return due
}
