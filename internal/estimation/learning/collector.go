// internal/estimation/learning/collector.go
package learning

import (
	"context"
	"errors"
	"fmt"

	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/models"
)

// CollectResult reports one collection run.
type CollectResult struct {
	Scanned  int `json:"scanned"`
	Inserted int `json:"inserted"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// CollectFeedbackFromProjects creates one feedback row per calculation of a
// completed project. A row that already exists is left alone, so repeated
// runs insert nothing new. Failures for single projects are collected and
// returned together with the counts.
func (e *Engine) CollectFeedbackFromProjects(ctx context.Context) (CollectResult, error) {
	var (
		result CollectResult
		errs   []error
	)

	for offset := 0; offset < e.cfg.MaxRows; offset += e.cfg.PageSize {
		limit := minInt(e.cfg.PageSize, e.cfg.MaxRows-offset)
		projects, err := e.store.ListCompletedProjects(ctx, limit, offset)
		if err != nil {
			return result, fmt.Errorf("%w: completed projects: %v", ErrFeedbackQuery, err)
		}

		for _, p := range projects {
			result.Scanned++
			outcome, err := e.collectProject(ctx, p)
			switch {
			case err != nil:
				result.Failed++
				errs = append(errs, fmt.Errorf("project %s: %w", p.ID, err))
			case outcome == collectInserted:
				result.Inserted++
			case outcome == collectExisting:
				result.Existing++
			default:
				result.Skipped++
			}
		}
		if len(projects) < limit {
			break
		}
	}

	e.logger.Info("feedback collected", map[string]interface{}{
		"scanned":  result.Scanned,
		"inserted": result.Inserted,
		"existing": result.Existing,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	})
	return result, errors.Join(errs...)
}

type collectOutcome int

const (
	collectSkipped collectOutcome = iota
	collectInserted
	collectExisting
)

func (e *Engine) collectProject(ctx context.Context, p models.CompletedProject) (collectOutcome, error) {
	if p.ActualHours <= 0 || p.OfferID == "" {
		return collectSkipped, nil
	}
	calc, err := e.store.LatestCalculationForOffer(ctx, p.OfferID)
	if err != nil {
		return collectSkipped, fmt.Errorf("%w: calculation for offer %s: %v", ErrFeedbackQuery, p.OfferID, err)
	}
	if calc == nil || calc.ID == "" {
		return collectSkipped, nil
	}

	// Lookup and insert for one calculation id run as one unit per process;
	// the unique constraint on calculation_id covers other processes.
	v, err, _ := e.inflight.Do(calc.ID, func() (interface{}, error) {
		existing, err := e.store.GetFeedbackByCalculationID(ctx, calc.ID)
		if err != nil {
			return collectSkipped, fmt.Errorf("%w: %v", ErrFeedbackQuery, err)
		}
		if existing != nil {
			return collectExisting, nil
		}

		err = e.store.InsertFeedback(ctx, e.newFeedback(p, *calc))
		switch {
		case errors.Is(err, ErrDuplicateFeedback):
			return collectExisting, nil
		case err != nil:
			return collectSkipped, fmt.Errorf("%w: %v", ErrFeedbackInsert, err)
		}
		return collectInserted, nil
	})
	if err != nil {
		return collectSkipped, err
	}
	return v.(collectOutcome), nil
}

func (e *Engine) newFeedback(p models.CompletedProject, calc models.Calculation) models.Feedback {
	actual := p.ActualHours
	fb := models.Feedback{
		ID:                    e.newID(),
		CalculationID:         calc.ID,
		ProjectID:             p.ID,
		EstimatedHours:        calc.Time.TotalHours,
		ActualHours:           &actual,
		EstimatedMaterialCost: calc.Price.MaterialCost,
		OfferAccepted:         true,
		ComplexityScore:       calc.ComplexityScore,
		AdjustmentSuggestions: []models.Adjustment{},
		CreatedAt:             e.now().UTC(),
	}
	if v, ok := calculation.VariancePercentage(calc.Time.TotalHours, actual); ok {
		v = calculation.Round(v)
		fb.HoursVariancePercentage = &v
	}
	return fb
}

// RecordAdjustment validates an adjustment, stamps it and appends it to the
// audit trail. Coefficients are not touched.
func (e *Engine) RecordAdjustment(ctx context.Context, adj models.Adjustment, appliedBy string) (models.Adjustment, error) {
	if err := calculation.ValidateAdjustment(adj); err != nil {
		return models.Adjustment{}, err
	}
	if adj.ID == "" {
		adj.ID = e.newID()
	}
	if appliedBy != "" {
		adj.AppliedBy = appliedBy
	}
	now := e.now().UTC()
	adj.AppliedAt = &now

	if err := e.store.AppendAdjustment(ctx, adj); err != nil {
		return models.Adjustment{}, fmt.Errorf("%w: %v", ErrAdjustmentRecord, err)
	}

	e.logger.Info("adjustment recorded", map[string]interface{}{
		"adjustmentId": adj.ID,
		"type":         adj.Type,
		"target":       adj.ComponentOrFactor,
		"oldValue":     adj.OldValue,
		"newValue":     adj.NewValue,
	})
	return adj, nil
}

// CurrentCoefficients folds the recorded trail over base, oldest first.
func (e *Engine) CurrentCoefficients(ctx context.Context, base calculation.Coefficients) (calculation.Coefficients, error) {
	trail, err := e.loadTrail(ctx)
	if err != nil {
		return base, err
	}
	return base.ApplyAll(trail)
}

// loadTrail pages through the recorded adjustments, oldest first.
func (e *Engine) loadTrail(ctx context.Context) ([]models.Adjustment, error) {
	var trail []models.Adjustment
	for offset := 0; offset < e.cfg.MaxRows; offset += e.cfg.PageSize {
		limit := minInt(e.cfg.PageSize, e.cfg.MaxRows-offset)
		page, err := e.store.ListAdjustments(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: adjustments: %v", ErrFeedbackQuery, err)
		}
		trail = append(trail, page...)
		if len(page) < limit {
			break
		}
	}
	return trail, nil
}
