// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package tasklist

import (
	"errors"
	"testing"

	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

func agentID(b byte) ident.AgentID {
	var id ident.AgentID
	id[0] = b
	return id
}

func TestCheckboxTransitionMatrix(t *testing.T) {
	alice := agentID(1)
	bob := agentID(2)

	empty := EmptyCheckbox()
	claimed, err := empty.TransitionClaim(alice, 10)
	if err != nil {
		t.Fatalf("claim from empty: %v", err)
	}
	if !claimed.IsClaimed() {
		t.Fatalf("phase after claim = %s, want claimed", claimed.Phase)
	}
	if holder, ok := claimed.ClaimedBy(); !ok || holder != alice {
		t.Fatalf("ClaimedBy = %v %v, want alice true", holder, ok)
	}

	// Claiming a claimed task fails with the holder attached.
	_, err = claimed.TransitionClaim(bob, 11)
	var alreadyClaimed *AlreadyClaimedError
	if !errors.As(err, &alreadyClaimed) {
		t.Fatalf("claim on claimed: got %v, want AlreadyClaimedError", err)
	}
	if alreadyClaimed.Agent != alice {
		t.Fatalf("AlreadyClaimedError.Agent = %s, want alice", alreadyClaimed.Agent.Short())
	}

	// Completing an unclaimed task fails.
	if _, err := empty.TransitionComplete(alice, 12); !errors.Is(err, ErrMustClaimFirst) {
		t.Fatalf("complete on empty: got %v, want ErrMustClaimFirst", err)
	}

	done, err := claimed.TransitionComplete(alice, 12)
	if err != nil {
		t.Fatalf("complete from claimed: %v", err)
	}
	if !done.IsDone() {
		t.Fatalf("phase after complete = %s, want done", done.Phase)
	}

	// Done is terminal.
	if _, err := done.TransitionClaim(bob, 13); !errors.Is(err, ErrAlreadyDone) {
		t.Fatalf("claim on done: got %v, want ErrAlreadyDone", err)
	}
	if _, err := done.TransitionComplete(bob, 13); !errors.Is(err, ErrAlreadyDone) {
		t.Fatalf("complete on done: got %v, want ErrAlreadyDone", err)
	}
}

func TestCheckboxTransitionsAreValueSemantics(t *testing.T) {
	empty := EmptyCheckbox()
	if _, err := empty.TransitionClaim(agentID(1), 5); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !empty.IsEmpty() {
		t.Fatal("TransitionClaim mutated its receiver")
	}
}

func TestCheckboxMergeProgressWins(t *testing.T) {
	alice := agentID(1)
	claimed := CheckboxState{Phase: PhaseClaimed, Agent: alice, Timestamp: 50}
	done := CheckboxState{Phase: PhaseDone, Agent: alice, Timestamp: 5}

	// Done outranks claimed regardless of timestamps.
	if got := MergeCheckbox(claimed, done); !got.IsDone() {
		t.Fatalf("merge(claimed, done) = %s, want done", got.Phase)
	}
	if got := MergeCheckbox(done, claimed); !got.IsDone() {
		t.Fatalf("merge(done, claimed) = %s, want done", got.Phase)
	}
}

func TestCheckboxMergeEarliestClaimWins(t *testing.T) {
	early := CheckboxState{Phase: PhaseClaimed, Agent: agentID(2), Timestamp: 10}
	late := CheckboxState{Phase: PhaseClaimed, Agent: agentID(1), Timestamp: 20}

	if got := MergeCheckbox(early, late); got != early {
		t.Fatalf("merge picked the later claim: %+v", got)
	}
	if got := MergeCheckbox(late, early); got != early {
		t.Fatal("merge is not commutative")
	}
}

func TestCheckboxMergeAgentTieBreak(t *testing.T) {
	alice := CheckboxState{Phase: PhaseClaimed, Agent: agentID(1), Timestamp: 10}
	bob := CheckboxState{Phase: PhaseClaimed, Agent: agentID(2), Timestamp: 10}

	if got := MergeCheckbox(alice, bob); got != alice {
		t.Fatalf("tie-break picked %s, want the smaller agent id", got.Agent.Short())
	}
	if got := MergeCheckbox(bob, alice); got != alice {
		t.Fatal("tie-break is not commutative")
	}
}

func TestCheckboxMergeProperties(t *testing.T) {
	states := []CheckboxState{
		{},
		{Phase: PhaseClaimed, Agent: agentID(1), Timestamp: 10},
		{Phase: PhaseClaimed, Agent: agentID(2), Timestamp: 10},
		{Phase: PhaseClaimed, Agent: agentID(1), Timestamp: 3},
		{Phase: PhaseDone, Agent: agentID(2), Timestamp: 99},
		{Phase: PhaseDone, Agent: agentID(1), Timestamp: 99},
	}
	for _, a := range states {
		if got := MergeCheckbox(a, a); got != a {
			t.Fatalf("merge not idempotent for %+v", a)
		}
		for _, b := range states {
			ab, ba := MergeCheckbox(a, b), MergeCheckbox(b, a)
			if ab != ba {
				t.Fatalf("merge not commutative for %+v and %+v", a, b)
			}
			for _, c := range states {
				left := MergeCheckbox(MergeCheckbox(a, b), c)
				right := MergeCheckbox(a, MergeCheckbox(b, c))
				if left != right {
					t.Fatalf("merge not associative for %+v, %+v, %+v", a, b, c)
				}
			}
		}
	}
}
