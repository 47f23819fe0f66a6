package inventory

import (
	"fmt"
	"strconv"
	"strings"
)

// Handle is an opaque, generation-checked reference to a container in the
// registry arena. A handle outlives nothing: once its container is destroyed
// the generation no longer matches and the handle stops resolving.
type Handle struct {
	Index uint32
	Gen   uint32
}

// NilHandle never resolves.
var NilHandle = Handle{}

func (h Handle) IsNil() bool { return h.Gen == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("c%d.%d", h.Index, h.Gen)
}

func ParseHandle(id string) (Handle, bool) {
	if !strings.HasPrefix(id, "c") {
		return Handle{}, false
	}
	parts := strings.SplitN(id[1:], ".", 2)
	if len(parts) != 2 {
		return Handle{}, false
	}
	idx, err1 := strconv.ParseUint(parts[0], 10, 32)
	gen, err2 := strconv.ParseUint(parts[1], 10, 32)
	if err1 != nil || err2 != nil || gen == 0 {
		return Handle{}, false
	}
	return Handle{Index: uint32(idx), Gen: uint32(gen)}, true
}
