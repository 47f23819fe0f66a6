package world

import (
	"fmt"
	"sort"

	"stackhold.gg/internal/persistence/snapshot"
	"stackhold.gg/internal/sim/inventory"
)

// ExportSnapshot captures the full store state at the given tick. Runs on
// the sim goroutine.
func (w *World) ExportSnapshot(tick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: 1,
			StoreID: w.cfg.ID,
			Tick:    tick,
		},
		TickRate:           w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		Counters:           snapshot.CountersV1{NextPlayer: w.nextPlayerNum.Load()},
	}

	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := w.players[id]
		snap.Players = append(snap.Players, snapshot.PlayerV1{PlayerID: p.ID, Name: p.Name})
		for _, owned := range w.reg.ContainersOf(id) {
			c := w.reg.Resolve(owned.Handle)
			if c == nil {
				continue
			}
			cv := snapshot.ContainerV1{
				Owner:    id,
				Role:     string(owned.Role),
				Capacity: c.Capacity(),
			}
			slots := c.Slots()
			sort.Ints(slots)
			for _, s := range slots {
				st, ok := c.Get(s)
				if !ok {
					continue
				}
				cv.Slots = append(cv.Slots, snapshot.SlotV1{
					Slot:     s,
					Item:     uint16(st.Item),
					Count:    st.Count,
					MaxStack: st.MaxStack,
				})
			}
			snap.Containers = append(snap.Containers, cv)
		}
	}
	return snap
}

// ImportSnapshot replaces the world's state with the snapshot's. Must run
// before the sim loop starts; handles are re-minted in snapshot order, so
// sessions from the previous process cannot resume and rejoin by name.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	reg := inventory.NewRegistry()
	players := map[string]*Player{}
	byName := map[string]string{}

	for _, pv := range snap.Players {
		if pv.PlayerID == "" {
			return fmt.Errorf("snapshot player with empty id")
		}
		players[pv.PlayerID] = &Player{ID: pv.PlayerID, Name: pv.Name}
		byName[pv.Name] = pv.PlayerID
	}

	for _, cv := range snap.Containers {
		if _, ok := players[cv.Owner]; !ok {
			return fmt.Errorf("snapshot container owned by unknown player %s", cv.Owner)
		}
		role, ok := inventory.ParseRole(cv.Role)
		if !ok {
			return fmt.Errorf("snapshot container with unknown role %q", cv.Role)
		}
		h := reg.Create(cv.Owner, cv.Capacity, role)
		c := reg.Resolve(h)
		for _, sv := range cv.Slots {
			if !c.InBounds(sv.Slot) {
				return fmt.Errorf("snapshot slot %d out of bounds for %s container of %s", sv.Slot, cv.Role, cv.Owner)
			}
			st := inventory.Stack{Item: inventory.ItemID(sv.Item), Count: sv.Count, MaxStack: sv.MaxStack}
			c.Set(sv.Slot, &st)
		}
	}

	w.reg = reg
	w.eng = inventory.NewEngine(reg)
	w.players = players
	w.byName = byName
	w.clients = map[string]*clientState{}
	w.origins = nil
	w.tick.Store(snap.Header.Tick)
	w.nextPlayerNum.Store(snap.Counters.NextPlayer)
	return nil
}
