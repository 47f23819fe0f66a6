package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	StoreID string `json:"store_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures everything needed to resume a store: config knobs that
// shaped the state, every player, every container with its slots, and the
// allocation counters.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int `json:"tick_rate_hz"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	Players    []PlayerV1    `json:"players"`
	Containers []ContainerV1 `json:"containers"`

	Counters CountersV1 `json:"counters"`
}

type PlayerV1 struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type ContainerV1 struct {
	Owner    string   `json:"owner"`
	Role     string   `json:"role"`
	Capacity int      `json:"capacity"`
	Slots    []SlotV1 `json:"slots"`
}

type SlotV1 struct {
	Slot     int    `json:"slot"`
	Item     uint16 `json:"item"`
	Count    int    `json:"count"`
	MaxStack int    `json:"max_stack"`
}

type CountersV1 struct {
	NextPlayer uint64 `json:"next_player"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	// A plain-JSON header line first so tools can peek without gob.
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; gob carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Latest returns the highest-tick snapshot under dir/snapshots, or "".
func Latest(dir string) string {
	ents, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best = filepath.Join(dir, "snapshots", name)
			bestTick = tick
		}
	}
	return best
}
