// internal/catalog/static.go
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// StaticLookup serves entries from an in-memory table. It is read-only after
// construction and safe for concurrent use.
type StaticLookup struct {
	entries map[string][]Entry
}

func NewStaticLookup(entries map[string][]Entry) *StaticLookup {
	copied := make(map[string][]Entry, len(entries))
	for k, v := range entries {
		copied[k] = append([]Entry(nil), v...)
	}
	return &StaticLookup{entries: copied}
}

// DefaultStatic returns the built-in catalog.
func DefaultStatic() (*StaticLookup, error) {
	return ParseStatic(defaultCatalogYAML)
}

// LoadStatic reads a catalog file in the same layout as the built-in one.
func LoadStatic(path string) (*StaticLookup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %s: %w", path, err)
	}
	return ParseStatic(data)
}

func ParseStatic(data []byte) (*StaticLookup, error) {
	var entries map[string][]Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for key, list := range entries {
		for _, e := range list {
			if e.Code == "" {
				return nil, fmt.Errorf("parse catalog: entry under %s has no code", key)
			}
			if e.UnitTimeMinutes < 0 || e.UnitCost < 0 {
				return nil, fmt.Errorf("parse catalog: entry %s has negative values", e.Code)
			}
		}
	}
	return &StaticLookup{entries: entries}, nil
}

func (s *StaticLookup) Lookup(ctx context.Context, key string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Entry(nil), s.entries[key]...), nil
}

// Keys lists every key with at least one entry.
func (s *StaticLookup) Keys() []string {
	out := make([]string, 0, len(s.entries))
	for k, v := range s.entries {
		if len(v) > 0 {
			out = append(out, k)
		}
	}
	return out
}
