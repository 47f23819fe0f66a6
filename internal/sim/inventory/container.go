package inventory

// Role tags what a container is for. The registry is the only place that
// cares; the engine treats all containers alike.
type Role string

const (
	RoleMain   Role = "MAIN"
	RoleInput  Role = "INPUT"
	RoleOutput Role = "OUTPUT"
	RoleEquip  Role = "EQUIP"
)

var knownRoles = map[Role]struct{}{
	RoleMain:   {},
	RoleInput:  {},
	RoleOutput: {},
	RoleEquip:  {},
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := knownRoles[r]
	return r, ok
}

// Container is a fixed-capacity slot array, stored sparsely. Empty slots are
// absent keys; a stack with count 0 is never stored.
type Container struct {
	capacity int
	slots    map[int]Stack
}

func newContainer(capacity int) *Container {
	return &Container{capacity: capacity, slots: map[int]Stack{}}
}

func (c *Container) Capacity() int { return c.capacity }

func (c *Container) InBounds(slot int) bool { return slot >= 0 && slot < c.capacity }

// Get returns the stack at slot. Out-of-range reads just come back empty;
// bounds are enforced before mutation, not on read.
func (c *Container) Get(slot int) (Stack, bool) {
	s, ok := c.slots[slot]
	return s, ok
}

// Set writes or clears a slot. The caller has already validated the index;
// an out-of-bounds write here is an engine bug, not a runtime condition.
func (c *Container) Set(slot int, s *Stack) {
	if s == nil || s.Count == 0 {
		delete(c.slots, slot)
		return
	}
	c.slots[slot] = *s
}

// Slots returns the occupied slot indices in no particular order.
func (c *Container) Slots() []int {
	out := make([]int, 0, len(c.slots))
	for i := range c.slots {
		out = append(out, i)
	}
	return out
}
