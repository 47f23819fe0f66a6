package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCommands []CommandEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []adminSnapshotReq
	var pendingRemovals []removePlayerReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.attach:
			w.handleAttach(req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.removeReq:
			pendingRemovals = append(pendingRemovals, req)
		case env := <-w.inbox:
			pendingCommands = append(pendingCommands, env)
		case <-ticker.C:
			w.stepInternal(pendingJoins, pendingLeaves, pendingCommands, pendingRemovals)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCommands = pendingCommands[:0]
			pendingAdmin = pendingAdmin[:0]
			pendingRemovals = pendingRemovals[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick with the same ordering as the
// server loop. Intended for deterministic replays and tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, commands []CommandEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.stepInternal(joins, leaves, commands, nil)
	return tick, w.stateDigest()
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	for _, req := range reqs {
		tick := w.tick.Load()
		if w.snapshotSink == nil {
			req.Resp <- adminSnapshotResp{Tick: tick, Err: "no snapshot sink configured"}
			continue
		}
		snap := w.ExportSnapshot(tick)
		select {
		case w.snapshotSink <- snap:
			req.Resp <- adminSnapshotResp{Tick: tick}
		default:
			req.Resp <- adminSnapshotResp{Tick: tick, Err: "snapshot sink busy"}
		}
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
