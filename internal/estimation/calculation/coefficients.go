// internal/estimation/calculation/coefficients.go
package calculation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"offer-estimation/internal/models"
)

var (
	ErrInvalidAdjustment = errors.New("ADJUSTMENT_INVALID")
)

// Factor names used as Adjustment.ComponentOrFactor for non-component adjustments.
const (
	FactorMaterialCost     = "material_cost_factor"
	FactorMinimumMargin    = "minimum_margin_pct"
	riskBufferFactorPrefix = "complexity_"
)

// RiskBufferFactor names the risk buffer entry for a complexity score.
func RiskBufferFactor(score int) string {
	return riskBufferFactorPrefix + strconv.Itoa(score)
}

// Coefficients are the tunable inputs of the calculation. A value is never
// modified in place; Apply returns a new value so history stays auditable.
type Coefficients struct {
	HourlyRate            float64            `json:"hourlyRate" mapstructure:"hourly_rate"`
	ComponentTimeFactors  map[string]float64 `json:"componentTimeFactors" mapstructure:"component_time_factors"`
	ComplexityMultipliers map[string]float64 `json:"complexityMultipliers" mapstructure:"complexity_multipliers"`
	MaterialCostFactor    float64            `json:"materialCostFactor" mapstructure:"material_cost_factor"`
	RiskBufferTable       []float64          `json:"riskBufferTable" mapstructure:"risk_buffer_table"`
	MinimumMarginPct      float64            `json:"minimumMarginPct" mapstructure:"minimum_margin_pct"`
	DefaultMarginPct      float64            `json:"defaultMarginPct" mapstructure:"default_margin_pct"`
}

// DefaultRiskBufferTable is indexed by complexity score 0..5.
var DefaultRiskBufferTable = []float64{0, 3, 5, 7.5, 10, 15}

func DefaultCoefficients() Coefficients {
	return Coefficients{
		HourlyRate:            550,
		ComponentTimeFactors:  map[string]float64{},
		ComplexityMultipliers: map[string]float64{},
		MaterialCostFactor:    1.0,
		RiskBufferTable:       append([]float64(nil), DefaultRiskBufferTable...),
		MinimumMarginPct:      15,
		DefaultMarginPct:      25,
	}
}

// TimeFactor returns the calibrated time multiplier for a component code.
func (c Coefficients) TimeFactor(code string) float64 {
	if f, ok := c.ComponentTimeFactors[code]; ok && f > 0 {
		return f
	}
	return 1.0
}

// ComplexityMultiplier returns the calibrated multiplier for a complexity
// factor, falling back to the multiplier the interpreter detected.
func (c Coefficients) ComplexityMultiplier(code string, detected float64) float64 {
	if m, ok := c.ComplexityMultipliers[code]; ok && m > 0 {
		return m
	}
	return detected
}

// RiskBuffer returns the buffer percentage for a complexity score, clamping
// the score into the table.
func (c Coefficients) RiskBuffer(score int) float64 {
	table := c.RiskBufferTable
	if len(table) == 0 {
		table = DefaultRiskBufferTable
	}
	if score < 0 {
		score = 0
	}
	if score >= len(table) {
		score = len(table) - 1
	}
	return table[score]
}

// CurrentValue reports the value an adjustment of the given type and target
// would replace.
func (c Coefficients) CurrentValue(t models.AdjustmentType, target string) (float64, error) {
	switch t {
	case models.AdjustmentTime:
		return c.TimeFactor(target), nil
	case models.AdjustmentMaterial:
		return c.MaterialCostFactor, nil
	case models.AdjustmentMargin:
		return c.MinimumMarginPct, nil
	case models.AdjustmentRiskBuffer:
		score, err := parseRiskBufferFactor(target)
		if err != nil {
			return 0, err
		}
		return c.RiskBuffer(score), nil
	case models.AdjustmentComplexity:
		return c.ComplexityMultiplier(target, 1.0), nil
	}
	return 0, fmt.Errorf("%w: unknown adjustment type %q", ErrInvalidAdjustment, t)
}

// Apply returns a copy of c with the adjustment applied. c is left untouched.
func (c Coefficients) Apply(adj models.Adjustment) (Coefficients, error) {
	if err := ValidateAdjustment(adj); err != nil {
		return c, err
	}

	next := c.clone()
	switch adj.Type {
	case models.AdjustmentTime:
		next.ComponentTimeFactors[adj.ComponentOrFactor] = adj.NewValue
	case models.AdjustmentMaterial:
		next.MaterialCostFactor = adj.NewValue
	case models.AdjustmentMargin:
		next.MinimumMarginPct = adj.NewValue
	case models.AdjustmentRiskBuffer:
		score, _ := parseRiskBufferFactor(adj.ComponentOrFactor)
		for len(next.RiskBufferTable) <= score {
			next.RiskBufferTable = append(next.RiskBufferTable, 0)
		}
		next.RiskBufferTable[score] = adj.NewValue
	case models.AdjustmentComplexity:
		next.ComplexityMultipliers[adj.ComponentOrFactor] = adj.NewValue
	}
	return next, nil
}

// ApplyAll folds a trail of adjustments, oldest first.
func (c Coefficients) ApplyAll(trail []models.Adjustment) (Coefficients, error) {
	out := c
	for i, adj := range trail {
		next, err := out.Apply(adj)
		if err != nil {
			return c, fmt.Errorf("adjustment %d (%s): %w", i, adj.ID, err)
		}
		out = next
	}
	return out, nil
}

// ValidateAdjustment checks that an adjustment can be applied to Coefficients.
func ValidateAdjustment(adj models.Adjustment) error {
	if !adj.Type.Valid() {
		return fmt.Errorf("%w: unknown adjustment type %q", ErrInvalidAdjustment, adj.Type)
	}
	if math.IsNaN(adj.NewValue) || math.IsInf(adj.NewValue, 0) || adj.NewValue < 0 {
		return fmt.Errorf("%w: new value %v is not a finite non-negative number", ErrInvalidAdjustment, adj.NewValue)
	}
	if strings.TrimSpace(adj.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidAdjustment)
	}

	switch adj.Type {
	case models.AdjustmentTime, models.AdjustmentComplexity:
		if adj.ComponentOrFactor == "" {
			return fmt.Errorf("%w: %s adjustment needs a target", ErrInvalidAdjustment, adj.Type)
		}
		if adj.NewValue == 0 {
			return fmt.Errorf("%w: %s factor must be positive", ErrInvalidAdjustment, adj.Type)
		}
	case models.AdjustmentMaterial:
		if adj.NewValue == 0 {
			return fmt.Errorf("%w: material factor must be positive", ErrInvalidAdjustment)
		}
	case models.AdjustmentMargin:
		if adj.NewValue < models.MarginFloorPct {
			return fmt.Errorf("%w: minimum margin %v is below %v%%", ErrInvalidAdjustment, adj.NewValue, models.MarginFloorPct)
		}
	case models.AdjustmentRiskBuffer:
		if _, err := parseRiskBufferFactor(adj.ComponentOrFactor); err != nil {
			return err
		}
	}
	return nil
}

func parseRiskBufferFactor(target string) (int, error) {
	score, err := strconv.Atoi(strings.TrimPrefix(target, riskBufferFactorPrefix))
	if err != nil || !strings.HasPrefix(target, riskBufferFactorPrefix) || score < 0 || score > 5 {
		return 0, fmt.Errorf("%w: risk buffer target %q must be %s<0-5>", ErrInvalidAdjustment, target, riskBufferFactorPrefix)
	}
	return score, nil
}

func (c Coefficients) clone() Coefficients {
	out := c
	out.ComponentTimeFactors = make(map[string]float64, len(c.ComponentTimeFactors))
	for k, v := range c.ComponentTimeFactors {
		out.ComponentTimeFactors[k] = v
	}
	out.ComplexityMultipliers = make(map[string]float64, len(c.ComplexityMultipliers))
	for k, v := range c.ComplexityMultipliers {
		out.ComplexityMultipliers[k] = v
	}
	out.RiskBufferTable = append([]float64(nil), c.RiskBufferTable...)
	return out
}
