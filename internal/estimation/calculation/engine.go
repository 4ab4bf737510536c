// internal/estimation/calculation/engine.go
package calculation

import (
	"errors"
	"fmt"
	"math"

	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/models"
)

var (
	ErrInvalidInput = errors.New("CALCULATION_INPUT_INVALID")
)

// Engine turns matched components and materials into time and price.
type Engine struct {
	coefficients Coefficients
	logger       logger.Logger
}

func NewEngine(coefficients Coefficients, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Engine{
		coefficients: coefficients,
		logger:       log.WithFields(map[string]interface{}{"component": "calculation"}),
	}
}

func (e *Engine) Coefficients() Coefficients {
	return e.coefficients
}

// Calculate sums labor minutes and material cost, then applies the risk
// buffer and the margin to the unrounded subtotal. Each returned component
// carries the time factor it was priced with. Every reported figure is
// rounded once, to two decimals, from unrounded sums.
func (e *Engine) Calculate(
	components []models.CalculationComponent,
	materials []models.CalculationMaterial,
	riskBufferPct, marginPct float64,
) (models.Calculation, error) {
	if err := validatePct("risk buffer", riskBufferPct); err != nil {
		return models.Calculation{}, err
	}
	if err := validatePct("margin", marginPct); err != nil {
		return models.Calculation{}, err
	}

	var (
		totalMinutes float64
		order        []string
		byCategory   = make(map[string]float64)
		priced       = make([]models.CalculationComponent, 0, len(components))
	)
	for _, c := range components {
		if !finiteNonNegative(c.Quantity) || !finiteNonNegative(c.UnitTimeMinutes) {
			return models.Calculation{}, fmt.Errorf("%w: component %s has invalid quantity or unit time", ErrInvalidInput, c.Code)
		}
		c.TimeFactor = e.coefficients.TimeFactor(c.Code)
		priced = append(priced, c)
		minutes := c.Quantity * c.UnitTimeMinutes * c.TimeFactor
		totalMinutes += minutes
		if _, seen := byCategory[c.Category]; !seen {
			order = append(order, c.Category)
		}
		byCategory[c.Category] += minutes
	}

	var materialRaw float64
	for _, m := range materials {
		if !finiteNonNegative(m.Quantity) || !finiteNonNegative(m.UnitCost) {
			return models.Calculation{}, fmt.Errorf("%w: material %s has invalid quantity or unit cost", ErrInvalidInput, m.Code)
		}
		materialRaw += m.Quantity * m.UnitCost
	}
	materialRaw *= e.coefficients.MaterialCostFactor

	laborRaw := totalMinutes / 60 * e.coefficients.HourlyRate
	subtotalRaw := materialRaw + laborRaw
	bufferRaw := subtotalRaw * riskBufferPct / 100
	marginRaw := (subtotalRaw + bufferRaw) * marginPct / 100
	totalRaw := subtotalRaw * (1 + riskBufferPct/100) * (1 + marginPct/100)

	if !finiteNonNegative(totalRaw) {
		return models.Calculation{}, fmt.Errorf("%w: total is not a finite amount", ErrInvalidInput)
	}

	breakdown := make([]models.TimeBreakdownItem, 0, len(order))
	for _, cat := range order {
		breakdown = append(breakdown, models.TimeBreakdownItem{
			Category: cat,
			Minutes:  Round(byCategory[cat]),
			Hours:    Round(byCategory[cat] / 60),
		})
	}

	calc := models.Calculation{
		Components: priced,
		Materials:  materials,
		Time: models.TimeSummary{
			TotalMinutes: Round(totalMinutes),
			TotalHours:   Round(totalMinutes / 60),
			Breakdown:    breakdown,
		},
		Price: models.PriceSummary{
			MaterialCost:       Round(materialRaw),
			MaterialCostFactor: e.coefficients.MaterialCostFactor,
			LaborCost:          Round(laborRaw),
			Subtotal:           Round(subtotalRaw),
			RiskBufferPct:      riskBufferPct,
			RiskBufferAmount:   Round(bufferRaw),
			MarginPct:          marginPct,
			MarginAmount:       Round(marginRaw),
			TotalPrice:         Round(totalRaw),
		},
	}

	e.logger.Debug("calculation completed", map[string]interface{}{
		"components": len(components),
		"materials":  len(materials),
		"totalHours": calc.Time.TotalHours,
		"totalPrice": calc.Price.TotalPrice,
	})
	return calc, nil
}

// Round rounds a monetary or time figure to two decimals.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// VariancePercentage returns (actual-estimated)/estimated*100. ok is false
// when estimated is zero or either value is not finite.
func VariancePercentage(estimated, actual float64) (float64, bool) {
	if estimated == 0 || math.IsNaN(estimated) || math.IsInf(estimated, 0) ||
		math.IsNaN(actual) || math.IsInf(actual, 0) {
		return 0, false
	}
	return (actual - estimated) / estimated * 100, true
}

func validatePct(name string, v float64) error {
	if !finiteNonNegative(v) || v > 1000 {
		return fmt.Errorf("%w: %s percentage %v out of range", ErrInvalidInput, name, v)
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
