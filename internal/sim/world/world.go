package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"stackhold.gg/internal/persistence/snapshot"
	"stackhold.gg/internal/protocol"
	"stackhold.gg/internal/sim/catalogs"
	"stackhold.gg/internal/sim/inventory"
)

// Config shapes a store world. Role strings are validated in New.
type Config struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int

	// Containers created per player on join, in order.
	SpawnContainers []SpawnContainer

	// Item id -> count seeded into the player's first MAIN container.
	StarterItems map[string]int
}

type SpawnContainer struct {
	Role     inventory.Role
	Capacity int
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "store_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 10
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 3000
	}
	if len(c.SpawnContainers) == 0 {
		c.SpawnContainers = []SpawnContainer{
			{Role: inventory.RoleMain, Capacity: 16},
			{Role: inventory.RoleEquip, Capacity: 4},
			{Role: inventory.RoleInput, Capacity: 4},
			{Role: inventory.RoleOutput, Capacity: 4},
		}
	}
}

// Player is an owner entity. Containers hang off the registry's ownership
// index keyed by the player id; the player itself only keeps session bits.
type Player struct {
	ID          string
	Name        string
	ResumeToken string
}

// World owns the registry, the engine and every session. A single goroutine
// (Run) touches all of it; everything external goes through channels.
type World struct {
	cfg      Config
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	reg *inventory.Registry
	eng *inventory.Engine

	players map[string]*Player
	byName  map[string]string
	clients map[string]*clientState

	// Origin session for every command queued this pass, aligned with the
	// engine queue. An empty PlayerID marks internal commands whose results
	// are not routed.
	origins []cmdOrigin

	inbox     chan CommandEnvelope
	join      chan JoinRequest
	attach    chan AttachRequest
	leave     chan string
	admin     chan adminSnapshotReq
	removeReq chan removePlayerReq
	stop      chan struct{}

	nextPlayerNum atomic.Uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing is off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // WorldMetrics
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

func New(cfg Config, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()
	for _, spec := range cfg.SpawnContainers {
		if _, ok := inventory.ParseRole(string(spec.Role)); !ok {
			return nil, fmt.Errorf("unknown container role %q", spec.Role)
		}
		if spec.Capacity <= 0 {
			return nil, fmt.Errorf("container role %s: capacity must be positive", spec.Role)
		}
	}
	for id := range cfg.StarterItems {
		if _, ok := cats.Items.Index[id]; !ok {
			return nil, fmt.Errorf("starter item not in catalog: %s", id)
		}
	}

	reg := inventory.NewRegistry()
	w := &World{
		cfg:       cfg,
		catalogs:  cats,
		reg:       reg,
		eng:       inventory.NewEngine(reg),
		players:   map[string]*Player{},
		byName:    map[string]string{},
		clients:   map[string]*clientState{},
		inbox:     make(chan CommandEnvelope, 1024),
		join:      make(chan JoinRequest, 64),
		attach:    make(chan AttachRequest, 64),
		leave:     make(chan string, 64),
		admin:     make(chan adminSnapshotReq, 8),
		removeReq: make(chan removePlayerReq, 8),
		stop:      make(chan struct{}),
	}
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest      { return w.join }
func (w *World) Attach() chan<- AttachRequest  { return w.attach }
func (w *World) Leave() chan<- string          { return w.leave }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Metrics() WorldMetrics {
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

// RequestSnapshot asks the sim loop to export a snapshot at the next tick
// boundary. Safe from any goroutine.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	req := adminSnapshotReq{Resp: make(chan adminSnapshotResp, 1)}
	select {
	case w.admin <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-req.Resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// RequestRemovePlayer destroys a player and, by cascade, every container the
// player owns. Applied at the next tick boundary.
func (w *World) RequestRemovePlayer(ctx context.Context, playerID string) (removed bool, containers int, err error) {
	req := removePlayerReq{PlayerID: playerID, Resp: make(chan removePlayerResp, 1)}
	select {
	case w.removeReq <- req:
	case <-ctx.Done():
		return false, 0, ctx.Err()
	}
	select {
	case r := <-req.Resp:
		return r.Removed, r.Containers, nil
	case <-ctx.Done():
		return false, 0, ctx.Err()
	}
}

// joinPlayer runs on the sim goroutine. Rejoining under a known name
// reclaims that player's containers instead of minting a fresh owner.
func (w *World) joinPlayer(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "player"
	}

	var p *Player
	if id, ok := w.byName[name]; ok {
		p = w.players[id]
	}
	if p == nil {
		idNum := w.nextPlayerNum.Add(1)
		p = &Player{
			ID:   fmt.Sprintf("P%d", idNum),
			Name: name,
		}
		w.players[p.ID] = p
		w.byName[name] = p.ID

		for _, spec := range w.cfg.SpawnContainers {
			w.reg.Create(p.ID, spec.Capacity, spec.Role)
		}
		w.seedStarterItems(p.ID)
	}

	p.ResumeToken = uuid.NewString()
	if out != nil {
		w.clients[p.ID] = &clientState{Out: out}
	}
	return w.buildJoinResponse(p)
}

func (w *World) handleAttach(req AttachRequest) {
	var found *Player
	for _, p := range w.players {
		if p.ResumeToken != "" && p.ResumeToken == req.ResumeToken {
			found = p
			break
		}
	}
	if found == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}
	if req.Out != nil {
		w.clients[found.ID] = &clientState{Out: req.Out}
		// A reattached session missed every delta since it left; push the
		// full contents of its containers instead of waiting for a change.
		full := protocol.UpdateMsg{
			Type:            protocol.TypeUpdate,
			ProtocolVersion: protocol.Version,
			Tick:            w.tick.Load(),
			Containers:      w.fullContents(found.ID),
		}
		if len(full.Containers) > 0 {
			if b, err := json.Marshal(full); err == nil {
				sendLatest(req.Out, b)
			}
		}
	}
	if req.Resp != nil {
		req.Resp <- w.buildJoinResponse(found)
	}
}

func (w *World) handleLeave(playerID string) {
	delete(w.clients, playerID)
}

// seedStarterItems queues fire-and-forget SET commands so starter stacks
// flow through the engine like any other mutation and show up in the first
// UPDATE the client sees.
func (w *World) seedStarterItems(playerID string) {
	if len(w.cfg.StarterItems) == 0 {
		return
	}
	var main inventory.Handle
	for _, owned := range w.reg.ContainersOf(playerID) {
		if owned.Role == inventory.RoleMain {
			main = owned.Handle
			break
		}
	}
	if main.IsNil() {
		return
	}
	c := w.reg.Resolve(main)
	slot := 0
	for _, id := range w.catalogs.Items.Palette {
		count, ok := w.cfg.StarterItems[id]
		if !ok || count <= 0 {
			continue
		}
		def := w.catalogs.Items.Defs[id]
		item := w.catalogs.Items.Index[id]
		for count > 0 && slot < c.Capacity() {
			n := count
			if n > def.MaxStack {
				n = def.MaxStack
			}
			w.submitInternal(inventory.Command{
				Op:        inventory.OpSet,
				Container: main,
				Slot:      slot,
				Stack:     &inventory.Stack{Item: inventory.ItemID(item), Count: n, MaxStack: def.MaxStack},
			})
			count -= n
			slot++
		}
	}
}

func (w *World) submitInternal(cmd inventory.Command) {
	w.eng.Submit(cmd)
	w.origins = append(w.origins, cmdOrigin{Op: cmd.Op})
}

func (w *World) buildJoinResponse(p *Player) JoinResponse {
	refs := make([]protocol.ContainerRef, 0, len(w.cfg.SpawnContainers))
	for _, owned := range w.reg.ContainersOf(p.ID) {
		c := w.reg.Resolve(owned.Handle)
		if c == nil {
			continue
		}
		refs = append(refs, protocol.ContainerRef{
			Container: owned.Handle.String(),
			Role:      string(owned.Role),
			Capacity:  c.Capacity(),
		})
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        p.ID,
		ResumeToken:     p.ResumeToken,
		StoreParams: protocol.StoreParams{
			TickRateHz: w.cfg.TickRateHz,
		},
		Containers: refs,
		Catalogs: protocol.CatalogDigests{
			ItemPalette: protocol.DigestRef{
				Digest: w.catalogs.Items.PaletteDigest,
				Count:  len(w.catalogs.Items.Palette),
			},
			ItemDefs: w.catalogs.Items.DefsDigest,
		},
	}

	defs := make([]catalogs.ItemDef, 0, len(w.catalogs.Items.Palette))
	for _, id := range w.catalogs.Items.Palette {
		defs = append(defs, w.catalogs.Items.Defs[id])
	}
	catalogMsgs := []protocol.CatalogMsg{
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "item_palette",
			Digest:          w.catalogs.Items.PaletteDigest,
			Data:            w.catalogs.Items.Palette,
		},
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "item_defs",
			Digest:          w.catalogs.Items.DefsDigest,
			Data:            defs,
		},
	}
	return JoinResponse{Welcome: welcome, Catalogs: catalogMsgs}
}
