package services

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/Stride/internal/models"
)

//go:embed checklist.yaml
var defaultChecklistYAML []byte

// CategoryCount is fixed: every checklist has exactly three categories.
const CategoryCount = 3

type ChecklistItem struct {
	Label            string   `yaml:"label" json:"label"`
	Type             ItemType `yaml:"type" json:"type"`
	Options          []string `yaml:"options" json:"options"`
	Subchecks        []string `yaml:"subchecks" json:"subchecks,omitempty"`
	SubcheckTriggers []int    `yaml:"subcheck_triggers" json:"subcheckTriggers,omitempty"`
}

// ShowsSubchecks reports whether raw activates the sub-check list.
func (it ChecklistItem) ShowsSubchecks(raw int) bool {
	for _, v := range it.SubcheckTriggers {
		if v == raw {
			return true
		}
	}
	return false
}

type Category struct {
	Name  string          `yaml:"name" json:"name"`
	Items []ChecklistItem `yaml:"items" json:"items"`
}

// Checklist is the static evaluation configuration.
type Checklist struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// DefaultChecklist returns the embedded checklist. It panics if the
// embedded file is broken, which is a build defect.
func DefaultChecklist() *Checklist {
	cl, err := ParseChecklist(defaultChecklistYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded checklist: %v", err))
	}
	return cl
}

// LoadChecklist reads a checklist from path, or the embedded default when
// path is empty.
func LoadChecklist(path string) (*Checklist, error) {
	if strings.TrimSpace(path) == "" {
		return ParseChecklist(defaultChecklistYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist %s: %w", path, err)
	}
	return ParseChecklist(data)
}

func ParseChecklist(data []byte) (*Checklist, error) {
	var cl Checklist
	if err := yaml.Unmarshal(data, &cl); err != nil {
		return nil, fmt.Errorf("parse checklist: %w", err)
	}
	if err := cl.Validate(); err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *Checklist) Validate() error {
	if len(c.Categories) != CategoryCount {
		return fmt.Errorf("checklist must have %d categories, got %d", CategoryCount, len(c.Categories))
	}
	for ci, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("category %d has no name", ci)
		}
		if len(cat.Items) == 0 {
			return fmt.Errorf("category %q has no items", cat.Name)
		}
		for ii, it := range cat.Items {
			points := it.Type.Points()
			if points == 0 {
				return fmt.Errorf("%s item %d: unknown type %q", cat.Name, ii, it.Type)
			}
			if len(it.Options) != points {
				return fmt.Errorf("%s item %d: %s needs %d options, got %d", cat.Name, ii, it.Type, points, len(it.Options))
			}
			if it.Type.HasSubchecks() && len(it.Subchecks) == 0 {
				return fmt.Errorf("%s item %d: %s needs sub-checks", cat.Name, ii, it.Type)
			}
			for _, v := range it.SubcheckTriggers {
				if v < 1 || v > points {
					return fmt.Errorf("%s item %d: trigger %d out of range", cat.Name, ii, v)
				}
			}
		}
	}
	return nil
}

// TotalItems counts every item across all categories.
func (c *Checklist) TotalItems() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Items)
	}
	return n
}

func (c *Checklist) Item(category, item int) (ChecklistItem, bool) {
	if category < 0 || category >= len(c.Categories) {
		return ChecklistItem{}, false
	}
	items := c.Categories[category].Items
	if item < 0 || item >= len(items) {
		return ChecklistItem{}, false
	}
	return items[item], true
}

// CategoryIndex finds a category by name; -1 when absent.
func (c *Checklist) CategoryIndex(name string) int {
	for i, cat := range c.Categories {
		if cat.Name == name {
			return i
		}
	}
	return -1
}

// CheckResponse validates a single raw answer against the checklist.
func (c *Checklist) CheckResponse(key models.ResponseKey, raw int) error {
	it, ok := c.Item(key.Category, key.Item)
	if !ok {
		return fmt.Errorf("%w: no item at %s", ErrInvalidResponse, key)
	}
	if raw < 0 || raw > len(it.Options) {
		return fmt.Errorf("%w: %d not in [0,%d] at %s", ErrInvalidResponse, raw, len(it.Options), key)
	}
	return nil
}

// CheckSubCheck validates that a sub-check index exists on its item.
func (c *Checklist) CheckSubCheck(key models.SubCheckKey) error {
	it, ok := c.Item(key.Category, key.Item)
	if !ok {
		return fmt.Errorf("%w: no item at %s", ErrInvalidResponse, key.ResponseKey)
	}
	if key.Sub < 0 || key.Sub >= len(it.Subchecks) {
		return fmt.Errorf("%w: no sub-check at %s", ErrInvalidResponse, key)
	}
	return nil
}

// CheckResponses validates every entry of rs. Used before any write so
// corrupt input never reaches the store.
func (c *Checklist) CheckResponses(rs models.ResponseSet) error {
	for k, v := range rs.Values {
		if err := c.CheckResponse(k, v); err != nil {
			return err
		}
	}
	for k := range rs.SubChecks {
		if err := c.CheckSubCheck(k); err != nil {
			return err
		}
	}
	for k := range rs.Comments {
		if _, ok := c.Item(k.Category, k.Item); !ok {
			return fmt.Errorf("%w: comment on missing item %s", ErrInvalidResponse, k)
		}
	}
	return nil
}
