package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the server.yaml shape. Everything has a default so an absent or
// empty file still yields a runnable server.
type Config struct {
	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// Containers created for each player on join, in order.
	SpawnContainers []ContainerSpec `yaml:"spawn_containers"`

	// Item id -> count seeded into the first MAIN container on join.
	// nil means defaults; non-nil but empty means players start bare.
	StarterItems map[string]int `yaml:"starter_items"`
}

type ContainerSpec struct {
	Role     string `yaml:"role"`
	Capacity int    `yaml:"capacity"`
}

func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return defaults(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return defaults(), err
	}
	// Unmarshal into a zero Config so a starter_items mapping in the file
	// replaces the default map instead of merging into it. normalize fills
	// in defaults only for keys the file left out entirely.
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return defaults(), fmt.Errorf("server.yaml: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		TickRateHz:         10,
		SnapshotEveryTicks: 3000,
		SpawnContainers: []ContainerSpec{
			{Role: "MAIN", Capacity: 16},
			{Role: "EQUIP", Capacity: 4},
			{Role: "INPUT", Capacity: 4},
			{Role: "OUTPUT", Capacity: 4},
		},
		StarterItems: map[string]int{
			"WOOD":  40,
			"STONE": 20,
			"PLANK": 10,
		},
	}
}

func (c *Config) normalize() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 10
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 3000
	}
	if len(c.SpawnContainers) == 0 {
		c.SpawnContainers = defaults().SpawnContainers
	}
	if c.StarterItems == nil {
		c.StarterItems = defaults().StarterItems
	}
}

func (c *Config) Validate() error {
	for i, spec := range c.SpawnContainers {
		if strings.TrimSpace(spec.Role) == "" {
			return fmt.Errorf("spawn_containers[%d]: empty role", i)
		}
		if spec.Capacity <= 0 {
			return fmt.Errorf("spawn_containers[%d]: capacity must be positive", i)
		}
	}
	for id, n := range c.StarterItems {
		if n < 0 {
			return fmt.Errorf("starter_items[%s]: negative count", id)
		}
	}
	return nil
}
