package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Catalogs holds the item definitions the engine references by palette index.
// The engine itself never sees a definition, only the numeric identity.
type Catalogs struct {
	Items ItemCatalog
}

type ItemCatalog struct {
	Palette       []string // stable order: sorted ids
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MaxStack int      `json:"max_stack"`
	Tags     []string `json:"tags,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if d.MaxStack <= 0 {
			return fmt.Errorf("items.json: %s: max_stack must be positive", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// DefByIndex resolves a palette index back to its definition.
func (c *ItemCatalog) DefByIndex(i uint16) (ItemDef, bool) {
	if int(i) >= len(c.Palette) {
		return ItemDef{}, false
	}
	d, ok := c.Defs[c.Palette[i]]
	return d, ok
}
