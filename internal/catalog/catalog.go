// internal/catalog/catalog.go
package catalog

import (
	"context"
	"errors"
)

var (
	ErrLookupFailed = errors.New("CATALOG_LOOKUP_FAILED")
)

// Entry is one catalog line. An entry with a unit time yields labor, an
// entry with a unit cost yields material; many entries carry both.
type Entry struct {
	Code            string  `json:"code" yaml:"code"`
	Name            string  `json:"name" yaml:"name"`
	Category        string  `json:"category" yaml:"category"`
	Unit            string  `json:"unit" yaml:"unit"`
	UnitTimeMinutes float64 `json:"unitTimeMinutes" yaml:"unit_time_minutes"`
	UnitCost        float64 `json:"unitCost" yaml:"unit_cost"`
}

// Lookup resolves a key to zero or more catalog entries. A miss is an empty
// slice and a nil error; errors are reserved for backend failures.
type Lookup interface {
	Lookup(ctx context.Context, key string) ([]Entry, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, key string) ([]Entry, error)

func (f LookupFunc) Lookup(ctx context.Context, key string) ([]Entry, error) {
	return f(ctx, key)
}

func PointKey(kind string) string {
	return "point:" + kind
}

func CableKey(gauge string) string {
	return "cable:" + gauge
}

const (
	PanelGroup   = "panel:group"
	PanelUpgrade = "panel:upgrade"
	PanelNew     = "panel:new"
)
