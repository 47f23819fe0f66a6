package inventory

import "testing"

func TestContainerSetGetClear(t *testing.T) {
	c := newContainer(8)
	if c.Capacity() != 8 {
		t.Fatalf("capacity = %d, want 8", c.Capacity())
	}

	if _, ok := c.Get(3); ok {
		t.Fatalf("fresh slot should be empty")
	}

	c.Set(3, &Stack{Item: 2, Count: 10, MaxStack: 64})
	got, ok := c.Get(3)
	if !ok || got.Item != 2 || got.Count != 10 {
		t.Fatalf("Get(3) = %+v %v", got, ok)
	}

	// Writing nil clears.
	c.Set(3, nil)
	if _, ok := c.Get(3); ok {
		t.Fatalf("cleared slot should be empty")
	}

	// A zero-count stack is never stored.
	c.Set(4, &Stack{Item: 2, Count: 0, MaxStack: 64})
	if _, ok := c.Get(4); ok {
		t.Fatalf("zero-count write should clear")
	}
}

func TestContainerBounds(t *testing.T) {
	c := newContainer(4)
	for _, slot := range []int{0, 3} {
		if !c.InBounds(slot) {
			t.Fatalf("slot %d should be in bounds", slot)
		}
	}
	for _, slot := range []int{-1, 4, 100} {
		if c.InBounds(slot) {
			t.Fatalf("slot %d should be out of bounds", slot)
		}
	}
	// Out-of-range reads are just empty.
	if _, ok := c.Get(99); ok {
		t.Fatalf("out-of-range read should be empty")
	}
}

func TestContainerSlotsSparse(t *testing.T) {
	c := newContainer(16)
	c.Set(0, &Stack{Item: 1, Count: 1, MaxStack: 64})
	c.Set(7, &Stack{Item: 2, Count: 5, MaxStack: 64})
	c.Set(15, &Stack{Item: 3, Count: 9, MaxStack: 64})

	slots := c.Slots()
	if len(slots) != 3 {
		t.Fatalf("Slots() = %v, want 3 entries", slots)
	}
	seen := map[int]bool{}
	for _, s := range slots {
		seen[s] = true
	}
	for _, want := range []int{0, 7, 15} {
		if !seen[want] {
			t.Fatalf("missing slot %d in %v", want, slots)
		}
	}
}
