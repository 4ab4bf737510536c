// internal/estimation/learning/store.go
package learning

import (
	"context"
	"errors"

	"offer-estimation/internal/models"
)

var (
	ErrFeedbackQuery     = errors.New("FEEDBACK_QUERY_FAILED")
	ErrFeedbackInsert    = errors.New("FEEDBACK_INSERT_FAILED")
	ErrDuplicateFeedback = errors.New("DUPLICATE_FEEDBACK")
	ErrAdjustmentRecord  = errors.New("ADJUSTMENT_RECORD_FAILED")
)

// FeedbackStore is the append-only feedback repository. Rows are keyed
// uniquely by calculation id; InsertFeedback returns ErrDuplicateFeedback
// when a row for the calculation already exists.
type FeedbackStore interface {
	// ListFeedbackWithActuals returns rows with non-null actual hours,
	// newest first.
	ListFeedbackWithActuals(ctx context.Context, limit, offset int) ([]models.Feedback, error)
	// GetFeedbackByCalculationID returns nil and no error when none exists.
	GetFeedbackByCalculationID(ctx context.Context, calculationID string) (*models.Feedback, error)
	InsertFeedback(ctx context.Context, fb models.Feedback) error
}

type CalculationStore interface {
	// GetCalculation returns nil and no error when the id is unknown.
	GetCalculation(ctx context.Context, id string) (*models.Calculation, error)
	// LatestCalculationForOffer returns nil and no error when the offer has none.
	LatestCalculationForOffer(ctx context.Context, offerID string) (*models.Calculation, error)
}

// ProjectSource lists completed projects with positive actual hours.
type ProjectSource interface {
	ListCompletedProjects(ctx context.Context, limit, offset int) ([]models.CompletedProject, error)
}

// AdjustmentStore is the audit trail of recorded adjustments. Entries are
// only ever appended.
type AdjustmentStore interface {
	AppendAdjustment(ctx context.Context, adj models.Adjustment) error
	// ListAdjustments returns recorded adjustments, oldest first.
	ListAdjustments(ctx context.Context, limit, offset int) ([]models.Adjustment, error)
}

// Store bundles the repositories the engine reads and writes.
type Store interface {
	FeedbackStore
	CalculationStore
	ProjectSource
	AdjustmentStore
}
