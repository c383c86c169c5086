// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"fmt"

	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

// Phase is the checkbox position in the task lifecycle.
type Phase uint8

const (
	// PhaseEmpty is the initial phase: no agent has claimed the task.
	PhaseEmpty Phase = iota

	// PhaseClaimed means an agent has announced it is working on the
	// task. A claim is advisory, not a lock: a concurrent claim by
	// another agent resolves deterministically and the loser is
	// silently superseded.
	PhaseClaimed

	// PhaseDone is terminal. No transition leaves it.
	PhaseDone
)

func (p Phase) valid() bool { return p <= PhaseDone }

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseClaimed:
		return "claimed"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// CheckboxState is the replicated claim/completion state of a task.
// Agent and Timestamp are meaningful only when Phase is not empty:
// they record who moved the checkbox and at what logical time.
//
// CheckboxState is a register CRDT over the total order defined by
// [CheckboxState.Compare]: merging two states keeps the greater one.
// The order ranks a more progressed phase above a less progressed
// one, and within a phase the EARLIER timestamp above the later —
// the first claim to happen (in logical time) is the one every
// replica settles on.
type CheckboxState struct {
	Phase     Phase         `cbor:"phase"`
	Agent     ident.AgentID `cbor:"agent"`
	Timestamp uint64        `cbor:"timestamp"`
}

// EmptyCheckbox returns the initial state.
func EmptyCheckbox() CheckboxState { return CheckboxState{} }

// IsEmpty reports whether no agent has claimed the task.
func (s CheckboxState) IsEmpty() bool { return s.Phase == PhaseEmpty }

// IsClaimed reports whether an agent holds the task.
func (s CheckboxState) IsClaimed() bool { return s.Phase == PhaseClaimed }

// IsDone reports whether the task is complete.
func (s CheckboxState) IsDone() bool { return s.Phase == PhaseDone }

// ClaimedBy returns the claiming agent when the phase is claimed.
func (s CheckboxState) ClaimedBy() (ident.AgentID, bool) {
	if s.Phase != PhaseClaimed {
		return ident.AgentID{}, false
	}
	return s.Agent, true
}

// TransitionClaim validates and performs empty → claimed. The returned
// state is the input for the register merge; s is unchanged.
func (s CheckboxState) TransitionClaim(agent ident.AgentID, timestamp uint64) (CheckboxState, error) {
	switch s.Phase {
	case PhaseEmpty:
		return CheckboxState{Phase: PhaseClaimed, Agent: agent, Timestamp: timestamp}, nil
	case PhaseClaimed:
		return s, &AlreadyClaimedError{Agent: s.Agent}
	case PhaseDone:
		return s, ErrAlreadyDone
	default:
		return s, &InvalidTransitionError{Current: s.Phase, Attempted: PhaseClaimed}
	}
}

// TransitionComplete validates and performs claimed → done.
func (s CheckboxState) TransitionComplete(agent ident.AgentID, timestamp uint64) (CheckboxState, error) {
	switch s.Phase {
	case PhaseClaimed:
		return CheckboxState{Phase: PhaseDone, Agent: agent, Timestamp: timestamp}, nil
	case PhaseEmpty:
		return s, ErrMustClaimFirst
	case PhaseDone:
		return s, ErrAlreadyDone
	default:
		return s, &InvalidTransitionError{Current: s.Phase, Attempted: PhaseDone}
	}
}

// Compare totally orders checkbox states: -1 when s ranks below other,
// 0 when equal, +1 when s ranks above. Merge keeps the higher-ranked
// state. Phases rank empty < claimed < done; within a non-empty phase
// the earlier timestamp ranks higher, with the lexicographically
// smaller agent id breaking timestamp ties.
func (s CheckboxState) Compare(other CheckboxState) int {
	if s.Phase != other.Phase {
		if s.Phase < other.Phase {
			return -1
		}
		return 1
	}
	if s.Phase == PhaseEmpty {
		return 0
	}
	if s.Timestamp != other.Timestamp {
		// Earlier wins: the first transition in logical time holds.
		if s.Timestamp < other.Timestamp {
			return 1
		}
		return -1
	}
	// Smaller agent id wins.
	return -s.Agent.Compare(other.Agent)
}

// MergeCheckbox returns the winner of the two states. Commutative,
// associative, and idempotent; pure function of its inputs.
func MergeCheckbox(a, b CheckboxState) CheckboxState {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}
