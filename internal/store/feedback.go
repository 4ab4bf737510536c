// internal/store/feedback.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/models"
)

const feedbackColumns = `id, calculation_id, project_id, estimated_hours, actual_hours,
	hours_variance_percentage, estimated_material_cost, actual_material_cost,
	material_variance_percentage, offer_accepted, project_profitable,
	customer_satisfaction, complexity_score, adjustment_suggestions, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLStore) ListFeedbackWithActuals(ctx context.Context, limit, offset int) ([]models.Feedback, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM calculation_feedback
		WHERE actual_hours IS NOT NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list feedback: %v", learning.ErrFeedbackQuery, err)
	}
	defer rows.Close()

	out := []models.Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list feedback: %v", learning.ErrFeedbackQuery, err)
	}
	return out, nil
}

func (s *SQLStore) GetFeedbackByCalculationID(ctx context.Context, calculationID string) (*models.Feedback, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM calculation_feedback
		WHERE calculation_id = $1`, calculationID)
	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// InsertFeedback appends a feedback row. The unique index on calculation_id
// turns a second row for the same calculation into ErrDuplicateFeedback.
func (s *SQLStore) InsertFeedback(ctx context.Context, fb models.Feedback) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	suggestions := fb.AdjustmentSuggestions
	if suggestions == nil {
		suggestions = []models.Adjustment{}
	}
	suggestionsJSON, err := marshalJSON(suggestions)
	if err != nil {
		return fmt.Errorf("%w: %v", learning.ErrFeedbackInsert, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculation_feedback (`+feedbackColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		fb.ID,
		fb.CalculationID,
		fb.ProjectID,
		fb.EstimatedHours,
		nullFloat(fb.ActualHours),
		nullFloat(fb.HoursVariancePercentage),
		fb.EstimatedMaterialCost,
		nullFloat(fb.ActualMaterialCost),
		nullFloat(fb.MaterialVariancePercentage),
		fb.OfferAccepted,
		nullBool(fb.ProjectProfitable),
		nullInt(fb.CustomerSatisfaction),
		fb.ComplexityScore,
		suggestionsJSON,
		fb.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: calculation %s", learning.ErrDuplicateFeedback, fb.CalculationID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", learning.ErrFeedbackInsert, err)
	}

	s.logger.Debug("feedback inserted", map[string]interface{}{
		"feedbackId":    fb.ID,
		"calculationId": fb.CalculationID,
	})
	return nil
}

// scanFeedback returns sql.ErrNoRows unwrapped so callers can detect a miss.
func scanFeedback(row rowScanner) (models.Feedback, error) {
	var (
		fb                               models.Feedback
		projectID                        sql.NullString
		actualHours, hoursVariance       sql.NullFloat64
		actualMaterial, materialVariance sql.NullFloat64
		profitable                       sql.NullBool
		satisfaction                     sql.NullInt64
		suggestions                      []byte
	)
	err := row.Scan(
		&fb.ID, &fb.CalculationID, &projectID, &fb.EstimatedHours, &actualHours,
		&hoursVariance, &fb.EstimatedMaterialCost, &actualMaterial,
		&materialVariance, &fb.OfferAccepted, &profitable,
		&satisfaction, &fb.ComplexityScore, &suggestions, &fb.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fb, err
	}
	if err != nil {
		return fb, fmt.Errorf("%w: scan feedback: %v", learning.ErrFeedbackQuery, err)
	}

	fb.ProjectID = projectID.String
	fb.ActualHours = floatPtr(actualHours)
	fb.HoursVariancePercentage = floatPtr(hoursVariance)
	fb.ActualMaterialCost = floatPtr(actualMaterial)
	fb.MaterialVariancePercentage = floatPtr(materialVariance)
	fb.ProjectProfitable = boolPtr(profitable)
	fb.CustomerSatisfaction = intPtr(satisfaction)
	if err := unmarshalJSON(suggestions, &fb.AdjustmentSuggestions); err != nil {
		return fb, fmt.Errorf("%w: feedback %s: %v", learning.ErrFeedbackQuery, fb.ID, err)
	}
	if fb.AdjustmentSuggestions == nil {
		fb.AdjustmentSuggestions = []models.Adjustment{}
	}
	return fb, nil
}
