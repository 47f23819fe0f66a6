package inventory

import (
	"fmt"
	"sort"

	"stackhold.gg/internal/protocol"
)

// Engine is the single authority over container mutation. Callers queue
// commands; once per tick the owner drains the queue with ApplyPass, which
// executes each command to completion or failure in submission order. The
// engine is not safe for concurrent use: one goroutine owns it, full stop.
type Engine struct {
	reg *Registry

	queue []Command

	// Per-pass notification accumulator: container -> touched slot set.
	touched map[Handle]map[int]struct{}
	order   []Handle
}

func NewEngine(reg *Registry) *Engine {
	return &Engine{reg: reg, touched: map[Handle]map[int]struct{}{}}
}

func (e *Engine) Registry() *Registry { return e.reg }

// Submit queues a command for the next apply pass.
func (e *Engine) Submit(cmd Command) { e.queue = append(e.queue, cmd) }

// QueueLen reports how many commands are waiting for the next pass.
func (e *Engine) QueueLen() int { return len(e.queue) }

// ApplyPass drains the queue, emitting exactly one Result per command and one
// coalesced ContainerUpdate per touched container. Commands submitted while a
// pass runs land in the next pass. A failed command mutates nothing.
func (e *Engine) ApplyPass() ([]Result, []ContainerUpdate) {
	cmds := e.queue
	e.queue = nil

	results := make([]Result, 0, len(cmds))
	for _, cmd := range cmds {
		switch cmd.Op {
		case OpSet:
			results = append(results, e.applySet(cmd))
		case OpMove:
			results = append(results, e.applyMove(cmd))
		default:
			results = append(results, fail(cmd.ID, protocol.ErrBadRequest, fmt.Sprintf("unknown op %q", cmd.Op)))
		}
	}
	return results, e.flushUpdates()
}

func (e *Engine) applySet(cmd Command) Result {
	c := e.reg.Resolve(cmd.Container)
	if c == nil {
		return fail(cmd.ID, protocol.ErrContainerNotFound, "container not found")
	}
	if !c.InBounds(cmd.Slot) {
		return fail(cmd.ID, protocol.ErrSlotOutOfBounds, fmt.Sprintf("slot %d out of bounds (capacity %d)", cmd.Slot, c.Capacity()))
	}
	// A raw authoritative write: no merge to resolve. Zero-count payloads
	// clear the slot; counts above the stack bound clamp to it so the stored
	// stack always satisfies 0 < count <= max.
	st := normalizeStack(cmd.Stack)
	c.Set(cmd.Slot, st)
	e.recordTouch(cmd.Container, cmd.Slot)
	return ok(cmd.ID)
}

func (e *Engine) applyMove(cmd Command) Result {
	src, dst, same := e.reg.ResolvePair(cmd.From, cmd.To)
	if src == nil {
		return fail(cmd.ID, protocol.ErrContainerNotFound, "source container not found")
	}
	if dst == nil {
		return fail(cmd.ID, protocol.ErrContainerNotFound, "destination container not found")
	}
	if !src.InBounds(cmd.FromSlot) {
		return fail(cmd.ID, protocol.ErrSlotOutOfBounds, fmt.Sprintf("source slot %d out of bounds (capacity %d)", cmd.FromSlot, src.Capacity()))
	}
	if !dst.InBounds(cmd.ToSlot) {
		return fail(cmd.ID, protocol.ErrSlotOutOfBounds, fmt.Sprintf("destination slot %d out of bounds (capacity %d)", cmd.ToSlot, dst.Capacity()))
	}

	from, okFrom := src.Get(cmd.FromSlot)
	if !okFrom {
		return fail(cmd.ID, protocol.ErrSourceSlotEmpty, "source slot is empty")
	}
	moveN := cmd.Amount
	if moveN > from.Count {
		moveN = from.Count
	}
	if moveN <= 0 {
		return fail(cmd.ID, protocol.ErrZeroAmount, "no units to move")
	}

	// Moving a slot onto itself: every rule above has been checked, and the
	// net effect is nothing. Succeed without taking two views of the stack.
	if same && cmd.FromSlot == cmd.ToSlot {
		return ok(cmd.ID)
	}

	to, okTo := dst.Get(cmd.ToSlot)
	switch {
	case !okTo:
		placed := Stack{Item: from.Item, Count: moveN, MaxStack: from.MaxStack}
		from.Count -= moveN
		src.Set(cmd.FromSlot, &from)
		dst.Set(cmd.ToSlot, &placed)

	case to.Item == from.Item:
		take := moveN
		if space := to.SpaceLeft(); take > space {
			take = space
		}
		if take == 0 {
			return fail(cmd.ID, protocol.ErrDestinationFull, "destination stack is full")
		}
		to.Count += take
		from.Count -= take
		src.Set(cmd.FromSlot, &from)
		dst.Set(cmd.ToSlot, &to)

	default:
		// Different items: a swap moves the whole source stack or nothing.
		if !cmd.AllowSwap || moveN != from.Count {
			return fail(cmd.ID, protocol.ErrIncompatibleDestination, "destination holds a different item")
		}
		src.Set(cmd.FromSlot, &to)
		dst.Set(cmd.ToSlot, &from)
	}

	e.recordTouch(cmd.From, cmd.FromSlot)
	e.recordTouch(cmd.To, cmd.ToSlot)
	return ok(cmd.ID)
}

func (e *Engine) recordTouch(h Handle, slot int) {
	set := e.touched[h]
	if set == nil {
		set = map[int]struct{}{}
		e.touched[h] = set
		e.order = append(e.order, h)
	}
	set[slot] = struct{}{}
}

// flushUpdates reads the final content of every touched slot, so multiple
// commands hitting the same slot in one pass coalesce into its end state.
func (e *Engine) flushUpdates() []ContainerUpdate {
	if len(e.order) == 0 {
		return nil
	}
	updates := make([]ContainerUpdate, 0, len(e.order))
	for _, h := range e.order {
		c := e.reg.Resolve(h)
		if c == nil {
			continue
		}
		slots := make([]int, 0, len(e.touched[h]))
		for s := range e.touched[h] {
			slots = append(slots, s)
		}
		sort.Ints(slots)
		changes := make([]SlotChange, 0, len(slots))
		for _, s := range slots {
			if st, ok := c.Get(s); ok {
				cp := st
				changes = append(changes, SlotChange{Slot: s, Stack: &cp})
			} else {
				changes = append(changes, SlotChange{Slot: s, Stack: nil})
			}
		}
		updates = append(updates, ContainerUpdate{Container: h, Changes: changes})
	}
	e.touched = map[Handle]map[int]struct{}{}
	e.order = nil
	return updates
}

func normalizeStack(s *Stack) *Stack {
	if s == nil || s.Count <= 0 || s.MaxStack <= 0 {
		return nil
	}
	st := *s
	if st.Count > st.MaxStack {
		st.Count = st.MaxStack
	}
	return &st
}

func ok(id uint64) Result { return Result{ID: id, OK: true} }

func fail(id uint64, code, msg string) Result {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
	}
	return Result{ID: id, OK: false, Code: code, Message: msg}
}
