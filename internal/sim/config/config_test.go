package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "server.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickRateHz != 10 || cfg.SnapshotEveryTicks != 3000 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.SpawnContainers) != 4 || cfg.SpawnContainers[0].Role != "MAIN" {
		t.Fatalf("spawn = %+v", cfg.SpawnContainers)
	}
	if cfg.StarterItems["WOOD"] != 40 {
		t.Fatalf("starter = %+v", cfg.StarterItems)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	body := `
tick_rate_hz: 5
snapshot_every_ticks: 100
spawn_containers:
  - role: MAIN
    capacity: 8
starter_items:
  STONE: 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickRateHz != 5 || cfg.SnapshotEveryTicks != 100 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.SpawnContainers) != 1 || cfg.SpawnContainers[0].Capacity != 8 {
		t.Fatalf("spawn = %+v", cfg.SpawnContainers)
	}
	if len(cfg.StarterItems) != 1 || cfg.StarterItems["STONE"] != 3 {
		t.Fatalf("starter = %+v", cfg.StarterItems)
	}
}

func TestLoadStarterItemsReplaceDefaults(t *testing.T) {
	// A starter_items mapping in the file is the whole list: defaults must
	// not leak in alongside it, and an empty mapping means players start
	// bare. Only a file with no starter_items key at all gets defaults.
	write := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "server.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}

	cfg, err := Load(write(t, "starter_items:\n  STONE: 3\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.StarterItems) != 1 || cfg.StarterItems["STONE"] != 3 {
		t.Fatalf("starter = %+v", cfg.StarterItems)
	}

	cfg, err = Load(write(t, "starter_items: {}\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.StarterItems) != 0 {
		t.Fatalf("starter = %+v, want empty", cfg.StarterItems)
	}

	cfg, err = Load(write(t, "tick_rate_hz: 5\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StarterItems["WOOD"] != 40 {
		t.Fatalf("starter = %+v, want defaults", cfg.StarterItems)
	}
}

func TestLoadRejectsBadSpawnContainers(t *testing.T) {
	for name, body := range map[string]string{
		"empty role": `
spawn_containers:
  - role: ""
    capacity: 8
`,
		"zero capacity": `
spawn_containers:
  - role: MAIN
    capacity: 0
`,
		"negative starter": `
starter_items:
  WOOD: -1
`,
	} {
		path := filepath.Join(t.TempDir(), "server.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
