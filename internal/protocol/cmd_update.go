package protocol

// Command ops.
const (
	OpSet  = "SET"
	OpMove = "MOVE"
)

// CMD (client -> server): a batch of storage commands. Commands apply on the
// next tick in submission order; each yields exactly one result.
type CmdMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	PlayerID        string       `json:"player_id,omitempty"` // overwritten by session identity
	Commands        []CommandReq `json:"commands"`
}

// CommandReq carries only handles, indices and value payloads. ID is the
// caller's correlation token; 0 means fire-and-forget.
type CommandReq struct {
	ID uint64 `json:"id,omitempty"`
	Op string `json:"op"`

	// SET
	Container string     `json:"container,omitempty"`
	Slot      int        `json:"slot,omitempty"`
	Stack     *ItemStack `json:"stack,omitempty"` // null clears the slot

	// MOVE
	From      string `json:"from,omitempty"`
	FromSlot  int    `json:"from_slot,omitempty"`
	To        string `json:"to,omitempty"`
	ToSlot    int    `json:"to_slot,omitempty"`
	Amount    int    `json:"amount,omitempty"`
	AllowSwap bool   `json:"allow_swap,omitempty"`
}

// UPDATE (server -> client): sent once per tick to each session that had
// results or whose containers changed.
type UpdateMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Tick            uint64            `json:"t"`
	Results         []CommandResult   `json:"results,omitempty"`
	Containers      []ContainerUpdate `json:"containers,omitempty"`
}

type CommandResult struct {
	ID      uint64 `json:"id"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ContainerUpdate is the coalesced net effect on one container during one
// apply pass.
type ContainerUpdate struct {
	Container string       `json:"container"`
	Changes   []SlotChange `json:"changes"`
}

type SlotChange struct {
	Slot  int        `json:"slot"`
	Stack *ItemStack `json:"stack"` // null means the slot is now empty
}
