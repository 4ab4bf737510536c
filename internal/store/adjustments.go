// internal/store/adjustments.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/models"
)

// AppendAdjustment adds one entry to the calibration audit trail.
func (s *SQLStore) AppendAdjustment(ctx context.Context, adj models.Adjustment) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var appliedAt sql.NullTime
	if adj.AppliedAt != nil {
		appliedAt = sql.NullTime{Time: adj.AppliedAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calibration_adjustments (
			id, adjustment_type, component_or_factor, old_value, new_value,
			reason, confidence, variance_percentage, feedback_id, applied_by, applied_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		adj.ID,
		string(adj.Type),
		adj.ComponentOrFactor,
		adj.OldValue,
		adj.NewValue,
		adj.Reason,
		adj.Confidence,
		adj.VariancePercentage,
		sql.NullString{String: adj.FeedbackID, Valid: adj.FeedbackID != ""},
		adj.AppliedBy,
		appliedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert %s: %v", learning.ErrAdjustmentRecord, adj.ID, err)
	}
	return nil
}

// ListAdjustments returns the trail in the order it was recorded.
func (s *SQLStore) ListAdjustments(ctx context.Context, limit, offset int) ([]models.Adjustment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, adjustment_type, component_or_factor, old_value, new_value,
		       reason, confidence, variance_percentage, feedback_id, applied_by, applied_at
		FROM calibration_adjustments
		ORDER BY applied_at ASC, id ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list adjustments: %v", learning.ErrFeedbackQuery, err)
	}
	defer rows.Close()

	out := []models.Adjustment{}
	for rows.Next() {
		var (
			adj        models.Adjustment
			adjType    string
			feedbackID sql.NullString
			appliedBy  sql.NullString
			appliedAt  sql.NullTime
		)
		if err := rows.Scan(
			&adj.ID, &adjType, &adj.ComponentOrFactor, &adj.OldValue, &adj.NewValue,
			&adj.Reason, &adj.Confidence, &adj.VariancePercentage, &feedbackID, &appliedBy, &appliedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan adjustment: %v", learning.ErrFeedbackQuery, err)
		}
		adj.Type = models.AdjustmentType(adjType)
		adj.FeedbackID = feedbackID.String
		adj.AppliedBy = appliedBy.String
		if appliedAt.Valid {
			t := appliedAt.Time
			adj.AppliedAt = &t
		}
		out = append(out, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list adjustments: %v", learning.ErrFeedbackQuery, err)
	}
	return out, nil
}
