package world

import (
	"stackhold.gg/internal/protocol"
)

// CommandEnvelope pairs a wire command batch with the session identity that
// sent it. The transport fills PlayerID from the session, never from the
// message body.
type CommandEnvelope struct {
	PlayerID string
	Msg      protocol.CmdMsg
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type AttachRequest struct {
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type clientState struct {
	Out chan []byte
}

// cmdOrigin ties a queued engine command back to the session that sent it.
type cmdOrigin struct {
	PlayerID string
	Op       string
}

// RecordedCommand is the tick-log form of one applied command.
type RecordedCommand struct {
	PlayerID string `json:"player_id"`
	ID       uint64 `json:"id"`
	Op       string `json:"op"`
	OK       bool   `json:"ok"`
	Code     string `json:"code,omitempty"`
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Joins    []RecordedJoin    `json:"joins,omitempty"`
	Leaves   []string          `json:"leaves,omitempty"`
	Commands []RecordedCommand `json:"commands,omitempty"`
	Digest   string            `json:"digest"`
}

// AuditEntry records one command outcome for the audit stream.
type AuditEntry struct {
	Tick     uint64 `json:"tick"`
	PlayerID string `json:"player_id"`
	ID       uint64 `json:"id"`
	Op       string `json:"op"`
	OK       bool   `json:"ok"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// WorldMetrics is a point-in-time operational summary for /metrics.
type WorldMetrics struct {
	Tick        uint64      `json:"tick"`
	Players     int         `json:"players"`
	Clients     int         `json:"clients"`
	Containers  int         `json:"containers"`
	StepMS      float64     `json:"step_ms"`
	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox  int `json:"inbox"`
	Join   int `json:"join"`
	Leave  int `json:"leave"`
	Attach int `json:"attach"`
}

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

type removePlayerReq struct {
	PlayerID string
	Resp     chan removePlayerResp
}

type removePlayerResp struct {
	Removed    bool
	Containers int
}
