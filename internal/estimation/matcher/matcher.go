// internal/estimation/matcher/matcher.go
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"offer-estimation/internal/catalog"
	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/models"
)

// MatchResult holds calculation-ready line items for one interpretation.
type MatchResult struct {
	Components           []models.CalculationComponent `json:"components"`
	Materials            []models.CalculationMaterial  `json:"materials"`
	ComplexityMultiplier float64                       `json:"complexityMultiplier"`
	Notes                []string                      `json:"notes,omitempty"`
}

// Matcher maps interpreted points, cables and panel work onto catalog entries.
type Matcher struct {
	lookup       catalog.Lookup
	coefficients calculation.Coefficients
	logger       logger.Logger
}

func New(lookup catalog.Lookup, coefficients calculation.Coefficients, log logger.Logger) *Matcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Matcher{
		lookup:       lookup,
		coefficients: coefficients,
		logger:       log.WithFields(map[string]interface{}{"component": "matcher"}),
	}
}

// demand is one catalog key to resolve. Point and cable labor scales with
// the complexity multiplier; panel work does not.
type demand struct {
	key      string
	quantity float64
	scaled   bool
}

// Match looks up every demanded key. Catalog misses become notes. Backend
// failures are collected and returned next to the partial result.
func (m *Matcher) Match(ctx context.Context, interp models.Interpretation) (MatchResult, error) {
	multiplier := m.complexityMultiplier(interp)
	result := MatchResult{
		Components:           []models.CalculationComponent{},
		Materials:            []models.CalculationMaterial{},
		ComplexityMultiplier: multiplier,
	}

	var errs []error
	for _, d := range demands(interp) {
		entries, err := m.lookup.Lookup(ctx, d.key)
		if err != nil {
			errs = append(errs, err)
			result.Notes = append(result.Notes, fmt.Sprintf("catalog lookup failed for %s", d.key))
			continue
		}
		if len(entries) == 0 {
			result.Notes = append(result.Notes, fmt.Sprintf("no catalog entry for %s", d.key))
			continue
		}
		for _, e := range entries {
			if e.UnitTimeMinutes > 0 {
				unitTime := e.UnitTimeMinutes
				if d.scaled {
					unitTime = calculation.Round(unitTime * multiplier)
				}
				result.Components = append(result.Components, models.CalculationComponent{
					Code:            e.Code,
					Name:            e.Name,
					Category:        e.Category,
					Quantity:        d.quantity,
					Unit:            e.Unit,
					UnitTimeMinutes: unitTime,
				})
			}
			if e.UnitCost > 0 {
				result.Materials = append(result.Materials, models.CalculationMaterial{
					Code:     e.Code,
					Name:     e.Name,
					Category: e.Category,
					Quantity: d.quantity,
					Unit:     e.Unit,
					UnitCost: e.UnitCost,
				})
			}
		}
	}

	m.logger.Debug("components matched", map[string]interface{}{
		"components": len(result.Components),
		"materials":  len(result.Materials),
		"notes":      len(result.Notes),
		"multiplier": multiplier,
	})

	if len(errs) > 0 {
		return result, fmt.Errorf("%w: %v", catalog.ErrLookupFailed, errors.Join(errs...))
	}
	return result, nil
}

// complexityMultiplier averages the detected factors, using calibrated
// multipliers where the coefficients carry one.
func (m *Matcher) complexityMultiplier(interp models.Interpretation) float64 {
	if len(interp.ComplexityFactors) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, f := range interp.ComplexityFactors {
		sum += m.coefficients.ComplexityMultiplier(f.Code, f.Multiplier)
	}
	return sum / float64(len(interp.ComplexityFactors))
}

// demands lists lookup keys in a stable order: points, cables, then panel work.
func demands(interp models.Interpretation) []demand {
	var out []demand

	for _, kind := range sortedKeys(interp.ElectricalPoints) {
		if n := interp.ElectricalPoints[kind]; n > 0 {
			out = append(out, demand{key: catalog.PointKey(kind), quantity: float64(n), scaled: true})
		}
	}
	for _, gauge := range sortedKeys(interp.CableRequirements) {
		if meters := interp.CableRequirements[gauge]; meters > 0 {
			out = append(out, demand{key: catalog.CableKey(gauge), quantity: meters, scaled: true})
		}
	}

	panel := interp.PanelRequirements
	switch {
	case panel.NewPanelNeeded:
		out = append(out, demand{key: catalog.PanelNew, quantity: 1})
	case panel.UpgradeNeeded:
		out = append(out, demand{key: catalog.PanelUpgrade, quantity: 1})
	}
	if (panel.NewPanelNeeded || panel.UpgradeNeeded) && panel.RequiredGroups > 0 {
		out = append(out, demand{key: catalog.PanelGroup, quantity: float64(panel.RequiredGroups)})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
