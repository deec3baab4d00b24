// Package catalog loads the immutable achievement catalog.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"hookstudio/internal/domain/model"

	"gopkg.in/yaml.v3"
)

//go:embed achievements.yaml
var defaultCatalog []byte

// Catalog is an ordered, read-only set of achievement definitions.
type Catalog struct {
	defs []model.AchievementDefinition
	byID map[string]int
}

type file struct {
	Achievements []model.AchievementDefinition `yaml:"achievements"`
}

// Load reads the catalog at path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

func Default() (*Catalog, error) { return Parse(defaultCatalog) }

func Parse(b []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Achievements)
}

// New validates defs and freezes them in the given order.
func New(defs []model.AchievementDefinition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]model.AchievementDefinition, 0, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		switch {
		case d.ID == "":
			return nil, fmt.Errorf("catalog: achievement without id")
		case !d.Category.Valid():
			return nil, fmt.Errorf("catalog: %s: unknown category %q", d.ID, d.Category)
		case d.Requirement < 1:
			return nil, fmt.Errorf("catalog: %s: requirement must be >= 1", d.ID)
		case d.XP < 0:
			return nil, fmt.Errorf("catalog: %s: xp must be >= 0", d.ID)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %s", d.ID)
		}
		c.byID[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	return c, nil
}

// All returns a copy of the definitions in catalog order.
func (c *Catalog) All() []model.AchievementDefinition {
	out := make([]model.AchievementDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) Get(id string) (model.AchievementDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.AchievementDefinition{}, false
	}
	return c.defs[i], true
}

func (c *Catalog) Len() int { return len(c.defs) }
