package graph

import (
	"context"
	"testing"

	"github.com/dropbox/agentgraph/graph/emit"
	"github.com/dropbox/agentgraph/graph/store"
)

type turnState struct {
	Count  int
	Max    int
	Status Status
}

func (s turnState) Turns() int                { return s.Count }
func (s turnState) MaxTurns() int              { return s.Max }
func (s turnState) WithTurns(n int) turnState  { s.Count = n; return s }
func (s turnState) WithStatus(st Status) turnState {
	s.Status = st
	return s
}

func turnReducer(prev, delta turnState) turnState {
	if delta.Max != 0 {
		prev.Max = delta.Max
	}
	return prev
}

// reasoningFunc adapts a plain function into a Node[turnState] that also
// satisfies ReasoningNode, so its completions advance turn_count.
type reasoningFunc func(ctx context.Context, s turnState) NodeResult[turnState]

func (f reasoningFunc) Run(ctx context.Context, s turnState) NodeResult[turnState] {
	return f(ctx, s)
}

func (f reasoningFunc) Turn() bool { return true }

func TestAccountForTurn_NonReasoningNodeLeavesStateUnchanged(t *testing.T) {
	node := NodeFunc[turnState](func(ctx context.Context, s turnState) NodeResult[turnState] {
		return NodeResult[turnState]{Delta: s, Route: Stop()}
	})

	state, limitReached := accountForTurn[turnState](node, turnState{Count: 0, Max: 2})
	if limitReached {
		t.Fatalf("non-reasoning node must never trigger TurnLimitReached")
	}
	if state.Count != 0 {
		t.Fatalf("expected turn count unchanged, got %d", state.Count)
	}
}

func TestAccountForTurn_ReasoningNodeIncrements(t *testing.T) {
	node := reasoningFunc(func(ctx context.Context, s turnState) NodeResult[turnState] {
		return NodeResult[turnState]{Delta: s, Route: Stop()}
	})

	state, limitReached := accountForTurn[turnState](node, turnState{Count: 0, Max: 2})
	if limitReached {
		t.Fatalf("turn 1 of 2 must not reach the limit")
	}
	if state.Count != 1 {
		t.Fatalf("expected turn count 1, got %d", state.Count)
	}

	state, limitReached = accountForTurn[turnState](node, state)
	if !limitReached {
		t.Fatalf("turn 2 of 2 must reach the limit")
	}
	if state.Count != 2 {
		t.Fatalf("expected turn count 2, got %d", state.Count)
	}
	if state.Status != StatusTurnLimitReached {
		t.Fatalf("expected status TurnLimitReached, got %q", state.Status)
	}
}

func TestAccountForTurn_ZeroMaxTurnsNeverReachesLimit(t *testing.T) {
	node := reasoningFunc(func(ctx context.Context, s turnState) NodeResult[turnState] {
		return NodeResult[turnState]{Delta: s, Route: Stop()}
	})

	state := turnState{Count: 0, Max: 0}
	for i := 0; i < 50; i++ {
		var limitReached bool
		state, limitReached = accountForTurn[turnState](node, state)
		if limitReached {
			t.Fatalf("max_turns=0 must never trigger TurnLimitReached (turn %d)", i)
		}
	}
	if state.Count != 50 {
		t.Fatalf("expected turn count 50, got %d", state.Count)
	}
}

// TestEngine_TurnLimitReached exercises the full dispatch loop: a
// reasoning node that always loops back to itself must be stopped by the
// executor once max_turns is reached, without ever consulting routing.
func TestEngine_TurnLimitReached(t *testing.T) {
	st := store.NewMemStore[turnState]()
	engine := New(turnReducer, st, emit.NewNullEmitter(), Options{MaxSteps: 1000})

	loop := reasoningFunc(func(ctx context.Context, s turnState) NodeResult[turnState] {
		return NodeResult[turnState]{Route: Goto("loop")}
	})
	if err := engine.Add("loop", loop); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := engine.StartAt("loop"); err != nil {
		t.Fatalf("StartAt: %v", err)
	}

	final, err := engine.Run(context.Background(), "turn-limit-001", turnState{Max: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final.Count != 3 {
		t.Fatalf("expected turn count 3 at the cap, got %d", final.Count)
	}
	if final.Status != StatusTurnLimitReached {
		t.Fatalf("expected status TurnLimitReached, got %q", final.Status)
	}
}

// TestEngine_UnboundedTurnsWhenMaxIsZero verifies max_turns=0 lets a
// reasoning node loop past what would otherwise be a turn cap, relying
// on its own routing (not the turn limit) to terminate.
func TestEngine_UnboundedTurnsWhenMaxIsZero(t *testing.T) {
	st := store.NewMemStore[turnState]()
	engine := New(turnReducer, st, emit.NewNullEmitter(), Options{MaxSteps: 1000})

	loop := reasoningFunc(func(ctx context.Context, s turnState) NodeResult[turnState] {
		if s.Count >= 10 {
			return NodeResult[turnState]{Route: Stop()}
		}
		return NodeResult[turnState]{Route: Goto("loop")}
	})
	if err := engine.Add("loop", loop); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := engine.StartAt("loop"); err != nil {
		t.Fatalf("StartAt: %v", err)
	}

	final, err := engine.Run(context.Background(), "turn-unbounded-001", turnState{Max: 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The node sees Count 0..10 and stops on its 11th run; that completion
	// is counted too, so the run ends at 11 turns.
	if final.Count != 11 {
		t.Fatalf("expected turn count 11, got %d", final.Count)
	}
	if final.Status == StatusTurnLimitReached {
		t.Fatalf("max_turns=0 must never produce TurnLimitReached")
	}
}
