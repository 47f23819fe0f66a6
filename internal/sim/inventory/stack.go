package inventory

// ItemID indexes the item palette from the catalog. The engine never looks at
// item definitions; identity is all it needs.
type ItemID uint16

// Stack is a quantity of one item identity bounded by MaxStack. Stacks are
// plain values: copying one duplicates the amount.
type Stack struct {
	Item     ItemID `json:"item"`
	Count    int    `json:"count"`
	MaxStack int    `json:"max_stack"`
}

func (s Stack) SpaceLeft() int {
	if s.Count >= s.MaxStack {
		return 0
	}
	return s.MaxStack - s.Count
}

func (s Stack) IsFull() bool { return s.Count >= s.MaxStack }

func (s Stack) IsEmpty() bool { return s.Count == 0 }
