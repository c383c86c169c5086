// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now() when
// tests need unique identifiers for task titles or agent names that
// must be distinguishable across subtests.
//
//	title := testutil.UniqueID("task")   // "task-1", "task-2", ...
//	agent := testutil.UniqueID("agent")  // "agent-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
