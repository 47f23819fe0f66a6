package inventory

import (
	"testing"

	"stackhold.gg/internal/protocol"
)

func newTestEngine(t *testing.T) (*Engine, Handle, Handle) {
	t.Helper()
	reg := NewRegistry()
	a := reg.Create("P1", 16, RoleMain)
	b := reg.Create("P1", 4, RoleEquip)
	return NewEngine(reg), a, b
}

func mustGet(t *testing.T, e *Engine, h Handle, slot int) Stack {
	t.Helper()
	c := e.Registry().Resolve(h)
	if c == nil {
		t.Fatalf("container %s not resolvable", h)
	}
	s, ok := c.Get(slot)
	if !ok {
		t.Fatalf("slot %d of %s is empty", slot, h)
	}
	return s
}

func mustEmpty(t *testing.T, e *Engine, h Handle, slot int) {
	t.Helper()
	c := e.Registry().Resolve(h)
	if c == nil {
		t.Fatalf("container %s not resolvable", h)
	}
	if s, ok := c.Get(slot); ok {
		t.Fatalf("slot %d of %s should be empty, holds %+v", slot, h, s)
	}
}

func TestEngineSetAndClear(t *testing.T) {
	e, a, _ := newTestEngine(t)

	e.Submit(Command{ID: 1, Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 3, Count: 40, MaxStack: 64}})
	results, updates := e.ApplyPass()
	if len(results) != 1 || !results[0].OK || results[0].ID != 1 {
		t.Fatalf("results = %+v", results)
	}
	got := mustGet(t, e, a, 0)
	if got.Item != 3 || got.Count != 40 || got.MaxStack != 64 {
		t.Fatalf("slot 0 = %+v", got)
	}
	if len(updates) != 1 || updates[0].Container != a {
		t.Fatalf("updates = %+v", updates)
	}
	if len(updates[0].Changes) != 1 || updates[0].Changes[0].Slot != 0 || updates[0].Changes[0].Stack == nil {
		t.Fatalf("changes = %+v", updates[0].Changes)
	}

	// nil stack clears, and the change reports the now-empty slot.
	e.Submit(Command{ID: 2, Op: OpSet, Container: a, Slot: 0, Stack: nil})
	results, updates = e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("clear failed: %+v", results[0])
	}
	mustEmpty(t, e, a, 0)
	if updates[0].Changes[0].Stack != nil {
		t.Fatalf("clear change should carry nil stack")
	}
}

func TestEngineSetClearOnAlreadyEmptySlot(t *testing.T) {
	e, a, _ := newTestEngine(t)

	// Clearing an empty slot succeeds and still notifies: the payload is
	// authoritative, not a delta.
	e.Submit(Command{ID: 1, Op: OpSet, Container: a, Slot: 5, Stack: nil})
	results, updates := e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("result = %+v", results[0])
	}
	if len(updates) != 1 || updates[0].Changes[0].Slot != 5 || updates[0].Changes[0].Stack != nil {
		t.Fatalf("updates = %+v", updates)
	}
}

func TestEngineSetIdempotent(t *testing.T) {
	e, a, _ := newTestEngine(t)
	payload := &Stack{Item: 2, Count: 7, MaxStack: 64}

	e.Submit(Command{ID: 1, Op: OpSet, Container: a, Slot: 3, Stack: payload})
	e.Submit(Command{ID: 2, Op: OpSet, Container: a, Slot: 3, Stack: payload})
	results, _ := e.ApplyPass()
	for _, r := range results {
		if !r.OK {
			t.Fatalf("result = %+v", r)
		}
	}
	got := mustGet(t, e, a, 3)
	if got.Count != 7 {
		t.Fatalf("repeated set changed the outcome: %+v", got)
	}
}

func TestEngineSetClampsOverfullPayload(t *testing.T) {
	e, a, _ := newTestEngine(t)

	e.Submit(Command{ID: 1, Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 1, Count: 100, MaxStack: 64}})
	results, _ := e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("result = %+v", results[0])
	}
	got := mustGet(t, e, a, 0)
	if got.Count != 64 {
		t.Fatalf("count = %d, want clamp to 64", got.Count)
	}
}

func TestEngineSetErrors(t *testing.T) {
	e, a, _ := newTestEngine(t)

	e.Submit(Command{ID: 1, Op: OpSet, Container: NilHandle, Slot: 0, Stack: &Stack{Item: 1, Count: 1, MaxStack: 64}})
	e.Submit(Command{ID: 2, Op: OpSet, Container: a, Slot: 99, Stack: &Stack{Item: 1, Count: 1, MaxStack: 64}})
	e.Submit(Command{ID: 3, Op: "FROBNICATE", Container: a})
	results, updates := e.ApplyPass()

	if results[0].OK || results[0].Code != protocol.ErrContainerNotFound {
		t.Fatalf("results[0] = %+v", results[0])
	}
	if results[1].OK || results[1].Code != protocol.ErrSlotOutOfBounds {
		t.Fatalf("results[1] = %+v", results[1])
	}
	if results[2].OK || results[2].Code != protocol.ErrBadRequest {
		t.Fatalf("results[2] = %+v", results[2])
	}
	if len(updates) != 0 {
		t.Fatalf("failed commands must not notify: %+v", updates)
	}
}

func TestEngineMoveToEmptySlot(t *testing.T) {
	e, a, b := newTestEngine(t)
	e.Submit(Command{Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 3, Count: 40, MaxStack: 64}})
	e.ApplyPass()

	e.Submit(Command{ID: 1, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 2, Amount: 15})
	results, updates := e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("result = %+v", results[0])
	}
	if got := mustGet(t, e, a, 0); got.Count != 25 {
		t.Fatalf("source count = %d, want 25", got.Count)
	}
	placed := mustGet(t, e, b, 2)
	if placed.Item != 3 || placed.Count != 15 || placed.MaxStack != 64 {
		t.Fatalf("dest = %+v", placed)
	}
	if len(updates) != 2 {
		t.Fatalf("expected updates for both containers: %+v", updates)
	}
}

func TestEngineMoveWholeStackEmptiesSource(t *testing.T) {
	e, a, b := newTestEngine(t)
	e.Submit(Command{Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 3, Count: 10, MaxStack: 64}})
	e.ApplyPass()

	// Amount above the source count moves what is there.
	e.Submit(Command{ID: 1, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 0, Amount: 999})
	results, _ := e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("result = %+v", results[0])
	}
	mustEmpty(t, e, a, 0)
	if got := mustGet(t, e, b, 0); got.Count != 10 {
		t.Fatalf("dest count = %d, want 10", got.Count)
	}
}

func TestEngineMovePartialMerge(t *testing.T) {
	e, a, _ := newTestEngine(t)
	e.Submit(Command{Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 3, Count: 40, MaxStack: 64}})
	e.Submit(Command{Op: OpSet, Container: a, Slot: 1, Stack: &Stack{Item: 3, Count: 30, MaxStack: 64}})
	e.ApplyPass()

	// Only 24 units fit; the rest stays put and the move still succeeds.
	e.Submit(Command{ID: 1, Op: OpMove, From: a, FromSlot: 1, To: a, ToSlot: 0, Amount: 30})
	results, updates := e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("result = %+v", results[0])
	}
	if got := mustGet(t, e, a, 0); got.Count != 64 {
		t.Fatalf("dest count = %d, want 64", got.Count)
	}
	if got := mustGet(t, e, a, 1); got.Count != 6 {
		t.Fatalf("source count = %d, want 6", got.Count)
	}
	// Same container: one coalesced update covering both slots.
	if len(updates) != 1 || len(updates[0].Changes) != 2 {
		t.Fatalf("updates = %+v", updates)
	}
}

func TestEngineMoveMergeIntoFullStack(t *testing.T) {
	e, a, _ := newTestEngine(t)
	e.Submit(Command{Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 3, Count: 64, MaxStack: 64}})
	e.Submit(Command{Op: OpSet, Container: a, Slot: 1, Stack: &Stack{Item: 3, Count: 5, MaxStack: 64}})
	e.ApplyPass()

	e.Submit(Command{ID: 1, Op: OpMove, From: a, FromSlot: 1, To: a, ToSlot: 0, Amount: 5})
	results, updates := e.ApplyPass()
	if results[0].OK || results[0].Code != protocol.ErrDestinationFull {
		t.Fatalf("result = %+v", results[0])
	}
	if got := mustGet(t, e, a, 1); got.Count != 5 {
		t.Fatalf("failed move mutated the source: %+v", got)
	}
	if len(updates) != 0 {
		t.Fatalf("failed move must not notify: %+v", updates)
	}
}

func TestEngineMoveSwap(t *testing.T) {
	e, a, b := newTestEngine(t)
	e.Submit(Command{Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 3, Count: 40, MaxStack: 64}})
	e.Submit(Command{Op: OpSet, Container: b, Slot: 1, Stack: &Stack{Item: 7, Count: 2, MaxStack: 16}})
	e.ApplyPass()

	// Without allow_swap a different item is incompatible.
	e.Submit(Command{ID: 1, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 1, Amount: 40})
	results, _ := e.ApplyPass()
	if results[0].OK || results[0].Code != protocol.ErrIncompatibleDestination {
		t.Fatalf("result = %+v", results[0])
	}

	// A partial amount cannot swap even when allowed.
	e.Submit(Command{ID: 2, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 1, Amount: 10, AllowSwap: true})
	results, _ = e.ApplyPass()
	if results[0].OK || results[0].Code != protocol.ErrIncompatibleDestination {
		t.Fatalf("result = %+v", results[0])
	}

	// Whole-stack with allow_swap exchanges the two stacks.
	e.Submit(Command{ID: 3, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 1, Amount: 40, AllowSwap: true})
	results, _ = e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("result = %+v", results[0])
	}
	if got := mustGet(t, e, a, 0); got.Item != 7 || got.Count != 2 {
		t.Fatalf("a[0] = %+v", got)
	}
	if got := mustGet(t, e, b, 1); got.Item != 3 || got.Count != 40 {
		t.Fatalf("b[1] = %+v", got)
	}

	// Swapping back restores the original layout.
	e.Submit(Command{ID: 4, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 1, Amount: 2, AllowSwap: true})
	results, _ = e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("result = %+v", results[0])
	}
	if got := mustGet(t, e, a, 0); got.Item != 3 || got.Count != 40 {
		t.Fatalf("a[0] after swap back = %+v", got)
	}
	if got := mustGet(t, e, b, 1); got.Item != 7 || got.Count != 2 {
		t.Fatalf("b[1] after swap back = %+v", got)
	}
}

func TestEngineMoveSameSlotNoOp(t *testing.T) {
	e, a, _ := newTestEngine(t)
	e.Submit(Command{Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 3, Count: 40, MaxStack: 64}})
	e.ApplyPass()

	e.Submit(Command{ID: 1, Op: OpMove, From: a, FromSlot: 0, To: a, ToSlot: 0, Amount: 10})
	results, updates := e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("self-move should succeed: %+v", results[0])
	}
	if got := mustGet(t, e, a, 0); got.Count != 40 {
		t.Fatalf("self-move changed content: %+v", got)
	}
	if len(updates) != 0 {
		t.Fatalf("self-move must not notify: %+v", updates)
	}

	// Validation still runs: an empty source slot fails the same way.
	e.Submit(Command{ID: 2, Op: OpMove, From: a, FromSlot: 5, To: a, ToSlot: 5, Amount: 1})
	results, _ = e.ApplyPass()
	if results[0].OK || results[0].Code != protocol.ErrSourceSlotEmpty {
		t.Fatalf("result = %+v", results[0])
	}
}

func TestEngineMoveErrors(t *testing.T) {
	e, a, b := newTestEngine(t)
	e.Submit(Command{Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 3, Count: 40, MaxStack: 64}})
	e.ApplyPass()

	cases := []struct {
		name string
		cmd  Command
		code string
	}{
		{"bad source container", Command{ID: 1, Op: OpMove, From: NilHandle, To: b, Amount: 1}, protocol.ErrContainerNotFound},
		{"bad dest container", Command{ID: 2, Op: OpMove, From: a, To: NilHandle, Amount: 1}, protocol.ErrContainerNotFound},
		{"source slot out of bounds", Command{ID: 3, Op: OpMove, From: a, FromSlot: 99, To: b, Amount: 1}, protocol.ErrSlotOutOfBounds},
		{"dest slot out of bounds", Command{ID: 4, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 99, Amount: 1}, protocol.ErrSlotOutOfBounds},
		{"empty source slot", Command{ID: 5, Op: OpMove, From: a, FromSlot: 8, To: b, ToSlot: 0, Amount: 1}, protocol.ErrSourceSlotEmpty},
		{"zero amount", Command{ID: 6, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 0, Amount: 0}, protocol.ErrZeroAmount},
		{"negative amount", Command{ID: 7, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 0, Amount: -3}, protocol.ErrZeroAmount},
	}
	for _, tc := range cases {
		e.Submit(tc.cmd)
		results, updates := e.ApplyPass()
		if results[0].OK || results[0].Code != tc.code {
			t.Fatalf("%s: result = %+v, want code %s", tc.name, results[0], tc.code)
		}
		if len(updates) != 0 {
			t.Fatalf("%s: failed move must not notify", tc.name)
		}
	}

	if got := mustGet(t, e, a, 0); got.Count != 40 {
		t.Fatalf("failures mutated state: %+v", got)
	}
}

func TestEngineOrderingAndCoalescing(t *testing.T) {
	e, a, _ := newTestEngine(t)

	// Three commands against the same slot in one pass: results stay
	// per-command and in order, notifications collapse to the end state.
	e.Submit(Command{ID: 1, Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 1, Count: 5, MaxStack: 64}})
	e.Submit(Command{ID: 2, Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 2, Count: 9, MaxStack: 64}})
	e.Submit(Command{ID: 3, Op: OpSet, Container: a, Slot: 0, Stack: nil})
	results, updates := e.ApplyPass()

	if len(results) != 3 {
		t.Fatalf("results = %+v", results)
	}
	for i, r := range results {
		if r.ID != uint64(i+1) || !r.OK {
			t.Fatalf("results[%d] = %+v", i, r)
		}
	}
	if len(updates) != 1 || len(updates[0].Changes) != 1 {
		t.Fatalf("updates = %+v", updates)
	}
	if updates[0].Changes[0].Stack != nil {
		t.Fatalf("coalesced change should be the final (empty) state")
	}
	mustEmpty(t, e, a, 0)
}

func TestEngineMidPassSubmitLandsNextPass(t *testing.T) {
	e, a, _ := newTestEngine(t)
	e.Submit(Command{ID: 1, Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 1, Count: 1, MaxStack: 64}})
	results, _ := e.ApplyPass()
	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}

	// Nothing queued: an apply pass is empty, not an error.
	results, updates := e.ApplyPass()
	if len(results) != 0 || len(updates) != 0 {
		t.Fatalf("empty pass produced output: %+v %+v", results, updates)
	}
	if e.QueueLen() != 0 {
		t.Fatalf("queue should be drained")
	}
}

func TestEngineMoveAcrossOwners(t *testing.T) {
	reg := NewRegistry()
	a := reg.Create("P1", 8, RoleMain)
	b := reg.Create("P2", 8, RoleMain)
	e := NewEngine(reg)

	e.Submit(Command{Op: OpSet, Container: a, Slot: 0, Stack: &Stack{Item: 4, Count: 12, MaxStack: 64}})
	e.ApplyPass()

	// The engine has no concept of ownership; moves across owners are the
	// caller's policy question.
	e.Submit(Command{ID: 1, Op: OpMove, From: a, FromSlot: 0, To: b, ToSlot: 0, Amount: 12})
	results, updates := e.ApplyPass()
	if !results[0].OK {
		t.Fatalf("result = %+v", results[0])
	}
	if len(updates) != 2 {
		t.Fatalf("expected one update per container: %+v", updates)
	}
}
