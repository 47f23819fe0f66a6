package inventory

// Command ops.
const (
	OpSet  = "SET"
	OpMove = "MOVE"
)

// Command is a tagged request against the registry's containers. It carries
// handles, indices and value payloads only, never container internals. ID is
// a caller-supplied correlation token (0 = fire-and-forget); the engine hands
// it back on the matching Result untouched.
type Command struct {
	ID uint64
	Op string

	// SET: overwrite one slot, authoritative.
	Container Handle
	Slot      int
	Stack     *Stack // nil clears the slot

	// MOVE: shift Amount units between two slots.
	From      Handle
	FromSlot  int
	To        Handle
	ToSlot    int
	Amount    int
	AllowSwap bool
}

// Result is the one-per-command outcome. Code is a stable reason from the
// protocol error set when OK is false.
type Result struct {
	ID      uint64
	OK      bool
	Code    string
	Message string
}

// SlotChange reports the post-pass content of one slot. A nil Stack means
// the slot ended the pass empty.
type SlotChange struct {
	Slot  int
	Stack *Stack
}

// ContainerUpdate is the net effect of one apply pass on one container. All
// slot changes to a container within a pass coalesce into a single update.
type ContainerUpdate struct {
	Container Handle
	Changes   []SlotChange
}
