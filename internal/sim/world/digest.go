package world

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// stateDigest hashes the full container state in a canonical order:
// players sorted by id, each player's containers in creation order, slots
// ascending. Two worlds that applied the same commands in the same order
// produce the same digest, which is what the tick log leans on for replay
// verification.
func (w *World) stateDigest() string {
	h := sha256.New()

	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := w.players[id]
		fmt.Fprintf(h, "P|%s|%s\n", p.ID, p.Name)
		for _, owned := range w.reg.ContainersOf(id) {
			c := w.reg.Resolve(owned.Handle)
			if c == nil {
				continue
			}
			fmt.Fprintf(h, "C|%s|%s|%d\n", owned.Handle, owned.Role, c.Capacity())
			slots := c.Slots()
			sort.Ints(slots)
			for _, s := range slots {
				st, ok := c.Get(s)
				if !ok {
					continue
				}
				fmt.Fprintf(h, "S|%d|%d|%d|%d\n", s, st.Item, st.Count, st.MaxStack)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
