package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"stackhold.gg/internal/persistence/indexdb"
	persistlog "stackhold.gg/internal/persistence/log"
	"stackhold.gg/internal/persistence/snapshot"
	"stackhold.gg/internal/sim/catalogs"
	"stackhold.gg/internal/sim/config"
	"stackhold.gg/internal/sim/inventory"
	"stackhold.gg/internal/sim/world"
	"stackhold.gg/internal/transport/ws"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		storeID   = flag.String("store", "store_1", "store id")
		configDir = flag.String("configs", "./configs", "config directory")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		disableDB = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit/catalogs/snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	cfg, err := config.Load(filepath.Join(*configDir, "server.yaml"))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	storeDir := filepath.Join(*dataDir, "stores", *storeID)
	_ = os.MkdirAll(storeDir, 0o755)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(storeDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats); err != nil {
			logger.Printf("index db: upsert catalogs: %v", err)
		}
	}

	spawn := make([]world.SpawnContainer, 0, len(cfg.SpawnContainers))
	for _, spec := range cfg.SpawnContainers {
		spawn = append(spawn, world.SpawnContainer{
			Role:     inventory.Role(spec.Role),
			Capacity: spec.Capacity,
		})
	}

	w, err := world.New(world.Config{
		ID:                 *storeID,
		TickRateHz:         cfg.TickRateHz,
		SnapshotEveryTicks: cfg.SnapshotEveryTicks,
		SpawnContainers:    spawn,
		StarterItems:       cfg.StarterItems,
	}, cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(storeDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.StoreID != "" && snap.Header.StoreID != *storeID {
			logger.Fatalf("snapshot store id mismatch: flag=%s snap=%s", *storeID, snap.Header.StoreID)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(storeDir)
	auditLog := persistlog.NewAuditLogger(storeDir)
	defer tickLog.Close()
	defer auditLog.Close()
	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetAuditLogger(auditLog)
	}

	// Snapshot writer, off the sim goroutine.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(storeDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP stackhold_store_tick Current store tick.\n")
		fmt.Fprintf(rw, "# TYPE stackhold_store_tick gauge\n")
		fmt.Fprintf(rw, "stackhold_store_tick{store=%q} %d\n", *storeID, tick)

		fmt.Fprintf(rw, "# HELP stackhold_store_players Current number of players.\n")
		fmt.Fprintf(rw, "# TYPE stackhold_store_players gauge\n")
		fmt.Fprintf(rw, "stackhold_store_players{store=%q} %d\n", *storeID, m.Players)

		fmt.Fprintf(rw, "# HELP stackhold_store_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE stackhold_store_clients gauge\n")
		fmt.Fprintf(rw, "stackhold_store_clients{store=%q} %d\n", *storeID, m.Clients)

		fmt.Fprintf(rw, "# HELP stackhold_store_containers Live container count.\n")
		fmt.Fprintf(rw, "# TYPE stackhold_store_containers gauge\n")
		fmt.Fprintf(rw, "stackhold_store_containers{store=%q} %d\n", *storeID, m.Containers)

		fmt.Fprintf(rw, "# HELP stackhold_store_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE stackhold_store_queue_depth gauge\n")
		fmt.Fprintf(rw, "stackhold_store_queue_depth{store=%q,queue=%q} %d\n", *storeID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "stackhold_store_queue_depth{store=%q,queue=%q} %d\n", *storeID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "stackhold_store_queue_depth{store=%q,queue=%q} %d\n", *storeID, "leave", m.QueueDepths.Leave)
		fmt.Fprintf(rw, "stackhold_store_queue_depth{store=%q,queue=%q} %d\n", *storeID, "attach", m.QueueDepths.Attach)

		fmt.Fprintf(rw, "# HELP stackhold_store_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE stackhold_store_step_ms gauge\n")
		fmt.Fprintf(rw, "stackhold_store_step_ms{store=%q} %.3f\n", *storeID, m.StepMS)
	})

	// Local-only admin endpoints (do not affect simulation determinism).
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			StoreID string             `json:"store_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			StoreID: *storeID,
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		tick, err := w.RequestSnapshot(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	})
	mux.HandleFunc("/admin/v1/remove_player", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		playerID := strings.TrimSpace(r.URL.Query().Get("player_id"))
		if playerID == "" {
			http.Error(rw, "missing player_id", http.StatusBadRequest)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		removed, containers, err := w.RequestRemovePlayer(ctx2, playerID)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "removed": removed, "containers": containers})
	})

	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
