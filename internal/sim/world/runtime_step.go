package world

import (
	"encoding/json"
	"sort"
	"time"

	"stackhold.gg/internal/protocol"
	"stackhold.gg/internal/sim/inventory"
)

func (w *World) stepInternal(joins []JoinRequest, leaves []string, commands []CommandEnvelope, removals []removePlayerReq) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Leaves and joins apply deterministically at the tick boundary, before
	// any command of this pass runs.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.clients[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}

	recordedJoins := make([]RecordedJoin, 0, len(joins))
	refresh := make([]string, 0, len(joins))
	for _, req := range joins {
		resp := w.joinPlayer(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{PlayerID: resp.Welcome.PlayerID, Name: req.Name})
		refresh = append(refresh, resp.Welcome.PlayerID)
	}

	// Owner teardown cascades through the registry.
	for _, req := range removals {
		p := w.players[req.PlayerID]
		if p == nil {
			req.Resp <- removePlayerResp{}
			continue
		}
		n := w.reg.DestroyOwner(p.ID)
		delete(w.players, p.ID)
		delete(w.byName, p.Name)
		delete(w.clients, p.ID)
		req.Resp <- removePlayerResp{Removed: true, Containers: n}
	}

	// Queue commands in submission order. Identity comes from the session
	// envelope; results route back to it.
	recorded := make([]RecordedCommand, 0, len(commands))
	for _, env := range commands {
		if _, ok := w.players[env.PlayerID]; !ok {
			continue
		}
		for _, req := range env.Msg.Commands {
			w.eng.Submit(decodeCommand(req))
			w.origins = append(w.origins, cmdOrigin{PlayerID: env.PlayerID, Op: req.Op})
		}
	}

	origins := w.origins
	w.origins = nil
	results, updates := w.eng.ApplyPass()

	// Fan out per session: results by origin, container updates by owner.
	perPlayer := map[string]*protocol.UpdateMsg{}
	get := func(playerID string) *protocol.UpdateMsg {
		u := perPlayer[playerID]
		if u == nil {
			u = &protocol.UpdateMsg{
				Type:            protocol.TypeUpdate,
				ProtocolVersion: protocol.Version,
				Tick:            nowTick,
			}
			perPlayer[playerID] = u
		}
		return u
	}

	for i, res := range results {
		var origin cmdOrigin
		if i < len(origins) {
			origin = origins[i]
		}
		if origin.PlayerID == "" {
			continue
		}
		get(origin.PlayerID).Results = append(get(origin.PlayerID).Results, protocol.CommandResult{
			ID:      res.ID,
			OK:      res.OK,
			Code:    res.Code,
			Message: res.Message,
		})
		recorded = append(recorded, RecordedCommand{PlayerID: origin.PlayerID, ID: res.ID, Op: origin.Op, OK: res.OK, Code: res.Code})
		if w.auditLogger != nil {
			_ = w.auditLogger.WriteAudit(AuditEntry{
				Tick:     nowTick,
				PlayerID: origin.PlayerID,
				ID:       res.ID,
				Op:       origin.Op,
				OK:       res.OK,
				Code:     res.Code,
				Message:  res.Message,
			})
		}
	}

	refreshing := map[string]bool{}
	for _, id := range refresh {
		refreshing[id] = true
	}

	for _, up := range updates {
		owner, _, ok := w.reg.Owner(up.Container)
		if !ok || refreshing[owner] {
			continue
		}
		if _, listens := w.clients[owner]; !listens {
			continue
		}
		get(owner).Containers = append(get(owner).Containers, encodeUpdate(up))
	}

	// Freshly joined sessions get the full contents of their containers
	// instead of this pass's deltas.
	for _, id := range refresh {
		if _, listens := w.clients[id]; !listens {
			continue
		}
		get(id).Containers = append(get(id).Containers, w.fullContents(id)...)
	}

	for playerID, u := range perPlayer {
		cl := w.clients[playerID]
		if cl == nil {
			continue
		}
		if len(u.Results) == 0 && len(u.Containers) == 0 {
			continue
		}
		b, err := json.Marshal(u)
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:     nowTick,
			Joins:    recordedJoins,
			Leaves:   recordedLeaves,
			Commands: recorded,
			Digest:   w.stateDigest(),
		})
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop the snapshot if the sink is backed up.
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.tick.Add(1)

	w.metrics.Store(WorldMetrics{
		Tick:       w.tick.Load(),
		Players:    len(w.players),
		Clients:    len(w.clients),
		Containers: w.reg.Len(),
		StepMS:     stepMS,
		QueueDepths: QueueDepths{
			Inbox:  len(w.inbox),
			Join:   len(w.join),
			Leave:  len(w.leave),
			Attach: len(w.attach),
		},
	})
}

func decodeCommand(req protocol.CommandReq) inventory.Command {
	cmd := inventory.Command{
		ID:        req.ID,
		Op:        req.Op,
		Slot:      req.Slot,
		FromSlot:  req.FromSlot,
		ToSlot:    req.ToSlot,
		Amount:    req.Amount,
		AllowSwap: req.AllowSwap,
	}
	// Unparseable handles stay nil and fail resolution inside the engine.
	cmd.Container, _ = inventory.ParseHandle(req.Container)
	cmd.From, _ = inventory.ParseHandle(req.From)
	cmd.To, _ = inventory.ParseHandle(req.To)
	if req.Stack != nil {
		cmd.Stack = &inventory.Stack{
			Item:     inventory.ItemID(req.Stack.Item),
			Count:    req.Stack.Count,
			MaxStack: req.Stack.MaxStack,
		}
	}
	return cmd
}

func encodeUpdate(up inventory.ContainerUpdate) protocol.ContainerUpdate {
	out := protocol.ContainerUpdate{
		Container: up.Container.String(),
		Changes:   make([]protocol.SlotChange, 0, len(up.Changes)),
	}
	for _, ch := range up.Changes {
		out.Changes = append(out.Changes, protocol.SlotChange{Slot: ch.Slot, Stack: encodeStack(ch.Stack)})
	}
	return out
}

func encodeStack(s *inventory.Stack) *protocol.ItemStack {
	if s == nil {
		return nil
	}
	return &protocol.ItemStack{Item: uint16(s.Item), Count: s.Count, MaxStack: s.MaxStack}
}

// fullContents reports every occupied slot of every container the player
// owns, in the shape of a per-container update.
func (w *World) fullContents(playerID string) []protocol.ContainerUpdate {
	var out []protocol.ContainerUpdate
	for _, owned := range w.reg.ContainersOf(playerID) {
		c := w.reg.Resolve(owned.Handle)
		if c == nil {
			continue
		}
		slots := c.Slots()
		if len(slots) == 0 {
			continue
		}
		sort.Ints(slots)
		up := protocol.ContainerUpdate{Container: owned.Handle.String()}
		for _, s := range slots {
			st, _ := c.Get(s)
			up.Changes = append(up.Changes, protocol.SlotChange{Slot: s, Stack: encodeStack(&st)})
		}
		out = append(out, up)
	}
	return out
}
