// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"errors"
	"fmt"

	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

// Sentinel errors for checkbox transitions.
var (
	// ErrAlreadyDone rejects any transition attempted on a completed
	// task. Done is terminal.
	ErrAlreadyDone = errors.New("task is already done")

	// ErrMustClaimFirst rejects completing a task that was never
	// claimed.
	ErrMustClaimFirst = errors.New("task must be claimed before completion")
)

// AlreadyClaimedError rejects claiming a task that another agent
// already holds. The holding agent is carried so callers can report
// who won.
type AlreadyClaimedError struct {
	Agent ident.AgentID
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("task already claimed by agent %s", e.Agent.Short())
}

// TaskNotFoundError reports an operation against a task id that is not
// a live member of the list.
type TaskNotFoundError struct {
	ID ident.TaskID
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.ID.Short())
}

// InvalidTransitionError reports a checkbox phase value outside the
// state machine, either from a corrupt delta or a skipped transition.
type InvalidTransitionError struct {
	Current   Phase
	Attempted Phase
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid checkbox transition from %s to %s", e.Current, e.Attempted)
}

// MergeError reports a delta or list that cannot be merged: wrong list
// id, an item whose id does not match its key, or a corrupt phase.
// The local state is left untouched.
type MergeError struct {
	Reason string
}

func (e *MergeError) Error() string {
	return "merge rejected: " + e.Reason
}

func mergeErrorf(format string, args ...any) error {
	return &MergeError{Reason: fmt.Sprintf(format, args...)}
}
