// internal/estimation/learning/calibration.go
package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/models"
)

// ComponentCalibration is a suggested time factor for one component.
//
// Per-component actuals are not measured. Each calculation's overall
// actual/estimated hour ratio is spread uniformly over all of its
// components, so a component's variance reflects the projects it appeared
// in rather than its own labor time.
//
// Actual minutes are projected from the time factor each line was priced
// with, then compared with what the current factor would estimate. Feedback
// priced before an adjustment therefore stops counting as variance once the
// adjustment has absorbed it.
type ComponentCalibration struct {
	Code                    string  `json:"code"`
	Name                    string  `json:"name"`
	Samples                 int     `json:"samples"`
	AverageEstimatedMinutes float64 `json:"averageEstimatedMinutes"`
	AverageActualMinutes    float64 `json:"averageActualMinutes"`
	VariancePct             float64 `json:"variancePct"`
	CurrentTimeFactor       float64 `json:"currentTimeFactor"`
	SuggestedTimeFactor     float64 `json:"suggestedTimeFactor"`
	Confidence              float64 `json:"confidence"`
}

type componentAggregate struct {
	name      string
	samples   int
	estimated float64
	actual    float64
}

// AnalyzeComponentCalibration aggregates the distributed variance per
// component code. Components below the sample minimum or within the variance
// threshold produce nothing.
func (e *Engine) AnalyzeComponentCalibration(ctx context.Context) ([]ComponentCalibration, error) {
	rows, err := e.loadFeedback(ctx)
	if err != nil {
		return nil, err
	}
	trail, err := e.loadTrail(ctx)
	if err != nil {
		return nil, err
	}
	current, err := e.coefficients.ApplyAll(trail)
	if err != nil {
		return nil, err
	}

	aggregates := make(map[string]*componentAggregate)
	for _, fb := range rows {
		if fb.ActualHours == nil || fb.EstimatedHours <= 0 || !isFinite(*fb.ActualHours) {
			continue
		}
		calc, err := e.store.GetCalculation(ctx, fb.CalculationID)
		if err != nil {
			return nil, fmt.Errorf("%w: calculation %s: %v", ErrFeedbackQuery, fb.CalculationID, err)
		}
		if calc == nil {
			e.logger.Warn("feedback references unknown calculation", map[string]interface{}{
				"feedbackId":    fb.ID,
				"calculationId": fb.CalculationID,
			})
			continue
		}

		ratio := *fb.ActualHours / fb.EstimatedHours
		var priced *calculation.Coefficients
		for _, comp := range calc.Components {
			baseMinutes := comp.Quantity * comp.UnitTimeMinutes
			if baseMinutes <= 0 {
				continue
			}
			factor := comp.TimeFactor
			if factor <= 0 {
				if priced == nil {
					at := e.coefficientsAt(trail, calc.CreatedAt)
					priced = &at
				}
				factor = priced.TimeFactor(comp.Code)
			}

			agg, ok := aggregates[comp.Code]
			if !ok {
				agg = &componentAggregate{name: comp.Name}
				aggregates[comp.Code] = agg
			}
			agg.samples++
			agg.estimated += baseMinutes * current.TimeFactor(comp.Code)
			agg.actual += baseMinutes * factor * ratio
		}
	}

	var out []ComponentCalibration
	for code, agg := range aggregates {
		if agg.samples < e.cfg.MinComponentSamples {
			continue
		}
		variance, ok := calculation.VariancePercentage(agg.estimated, agg.actual)
		if !ok || math.Abs(variance) <= e.cfg.ComponentVarianceThreshold {
			continue
		}
		factor := current.TimeFactor(code)
		out = append(out, ComponentCalibration{
			Code:                    code,
			Name:                    agg.name,
			Samples:                 agg.samples,
			AverageEstimatedMinutes: calculation.Round(agg.estimated / float64(agg.samples)),
			AverageActualMinutes:    calculation.Round(agg.actual / float64(agg.samples)),
			VariancePct:             calculation.Round(variance),
			CurrentTimeFactor:       factor,
			SuggestedTimeFactor:     roundFactor(factor * agg.actual / agg.estimated),
			Confidence:              sampleConfidence(agg.samples),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if math.Abs(out[i].VariancePct) != math.Abs(out[j].VariancePct) {
			return math.Abs(out[i].VariancePct) > math.Abs(out[j].VariancePct)
		}
		return out[i].Code < out[j].Code
	})

	e.logger.Info("component calibration analyzed", map[string]interface{}{
		"feedbackRows": len(rows),
		"components":   len(aggregates),
		"suggestions":  len(out),
	})
	return out, nil
}

// coefficientsAt folds the adjustments applied up to t over the base. It
// stands in for calculations stored without per-line time factors.
func (e *Engine) coefficientsAt(trail []models.Adjustment, t time.Time) calculation.Coefficients {
	var applied []models.Adjustment
	for _, adj := range trail {
		if adj.AppliedAt != nil && !adj.AppliedAt.After(t) {
			applied = append(applied, adj)
		}
	}
	at, err := e.coefficients.ApplyAll(applied)
	if err != nil {
		return e.coefficients
	}
	return at
}

// sampleConfidence grows with the sample count: 3 samples give 0.65, six
// give 0.8, nine or more give 0.95.
func sampleConfidence(samples int) float64 {
	return calculation.Round(math.Min(0.95, 0.5+0.05*float64(samples)))
}

func roundFactor(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// GetSuggestedRiskBuffer returns the risk buffer percentage for a complexity
// score. With too few samples it falls back to the calibrated table;
// otherwise it takes a percentile of the positive overruns and scales it by
// 1+(score-3)*0.1.
func (e *Engine) GetSuggestedRiskBuffer(ctx context.Context, complexityScore int) (float64, error) {
	rows, err := e.loadFeedback(ctx)
	if err != nil {
		return 0, err
	}

	var (
		samples  int
		overruns []float64
	)
	for _, fb := range rows {
		hours, hoursOK := hoursVariance(fb)
		material, materialOK := materialVariance(fb)
		if !hoursOK && !materialOK {
			continue
		}
		samples++

		worst := math.Inf(-1)
		if hoursOK {
			worst = hours
		}
		if materialOK && material > worst {
			worst = material
		}
		if worst > 0 {
			overruns = append(overruns, worst)
		}
	}

	if samples < e.cfg.MinRiskBufferSamples {
		current, err := e.CurrentCoefficients(ctx, e.coefficients)
		if err != nil {
			return 0, err
		}
		return current.RiskBuffer(complexityScore), nil
	}

	score := complexityScore
	if score < 1 {
		score = 1
	}
	if score > 5 {
		score = 5
	}
	adjustment := 1 + float64(score-3)*0.1
	return calculation.Round(percentile(overruns, e.cfg.RiskBufferPercentile) * adjustment), nil
}

// percentile uses the nearest-rank method. An empty slice yields 0.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// AutoCalibrate proposes adjustments for confident, large variances. The
// proposals are not applied or stored; RecordAdjustment does that.
func (e *Engine) AutoCalibrate(ctx context.Context) ([]models.Adjustment, error) {
	calibrations, err := e.AnalyzeComponentCalibration(ctx)
	if err != nil {
		return nil, err
	}

	proposals := []models.Adjustment{}
	for _, c := range calibrations {
		if c.Confidence < e.cfg.AutoCalibrateMinConfidence || math.Abs(c.VariancePct) <= e.cfg.AutoCalibrateMinVariance {
			continue
		}
		proposals = append(proposals, models.Adjustment{
			Type:              models.AdjustmentTime,
			ComponentOrFactor: c.Code,
			OldValue:          c.CurrentTimeFactor,
			NewValue:          c.SuggestedTimeFactor,
			Reason: fmt.Sprintf("%s deviates %.1f%% from actual hours over %d projects",
				c.Code, c.VariancePct, c.Samples),
			Confidence:         c.Confidence,
			VariancePercentage: c.VariancePct,
		})
	}

	material, err := e.materialCalibration(ctx)
	if err != nil {
		return nil, err
	}
	if material != nil {
		proposals = append(proposals, *material)
	}

	e.logger.Info("auto calibration proposed adjustments", map[string]interface{}{
		"proposals": len(proposals),
	})
	return proposals, nil
}

// materialCalibration projects each material overrun onto the current
// material cost factor, the same way AnalyzeComponentCalibration does for
// time factors. It returns nil when no confident, large variance remains.
func (e *Engine) materialCalibration(ctx context.Context) (*models.Adjustment, error) {
	rows, err := e.loadFeedback(ctx)
	if err != nil {
		return nil, err
	}
	trail, err := e.loadTrail(ctx)
	if err != nil {
		return nil, err
	}
	current, err := e.coefficients.ApplyAll(trail)
	if err != nil {
		return nil, err
	}
	if current.MaterialCostFactor <= 0 {
		return nil, nil
	}

	var variances []float64
	for _, fb := range rows {
		v, ok := materialVariance(fb)
		if !ok {
			continue
		}
		factor := 0.0
		calc, err := e.store.GetCalculation(ctx, fb.CalculationID)
		if err != nil {
			return nil, fmt.Errorf("%w: calculation %s: %v", ErrFeedbackQuery, fb.CalculationID, err)
		}
		if calc != nil {
			factor = calc.Price.MaterialCostFactor
			if factor <= 0 {
				factor = e.coefficientsAt(trail, calc.CreatedAt).MaterialCostFactor
			}
		}
		if factor <= 0 {
			factor = current.MaterialCostFactor
		}
		variances = append(variances, ((1+v/100)*factor/current.MaterialCostFactor-1)*100)
	}
	if len(variances) == 0 {
		return nil, nil
	}

	variance := calculation.Round(mean(variances))
	confidence := sampleConfidence(len(variances))
	if confidence < e.cfg.AutoCalibrateMinConfidence || math.Abs(variance) <= e.cfg.AutoCalibrateMinVariance {
		return nil, nil
	}
	return &models.Adjustment{
		Type:               models.AdjustmentMaterial,
		ComponentOrFactor:  calculation.FactorMaterialCost,
		OldValue:           current.MaterialCostFactor,
		NewValue:           roundFactor(current.MaterialCostFactor * (1 + variance/100)),
		Reason:             fmt.Sprintf("material cost deviates %.1f%% over %d projects", variance, len(variances)),
		Confidence:         confidence,
		VariancePercentage: variance,
	}, nil
}
