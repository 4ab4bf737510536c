// internal/workers/learning/record-calibration-adjustment/models.go
package recordcalibrationadjustment

import (
	"time"

	"offer-estimation/internal/models"
)

// AdjustmentInput is an adjustment as approved in the process. A missing
// oldValue is read from the current coefficients.
type AdjustmentInput struct {
	ID                 string                `json:"id,omitempty"`
	Type               models.AdjustmentType `json:"type"`
	ComponentOrFactor  string                `json:"componentOrFactor"`
	OldValue           *float64              `json:"oldValue"`
	NewValue           float64               `json:"newValue"`
	Reason             string                `json:"reason"`
	Confidence         float64               `json:"confidence,omitempty"`
	VariancePercentage float64               `json:"variancePercentage,omitempty"`
	FeedbackID         string                `json:"feedbackId,omitempty"`
}

type Input struct {
	Adjustment AdjustmentInput `json:"adjustment"`
	AppliedBy  string          `json:"appliedBy,omitempty"`
}

type Output struct {
	Adjustment   models.Adjustment `json:"recordedAdjustment"`
	AdjustmentID string            `json:"adjustmentId"`
	AppliedAt    time.Time         `json:"appliedAt"`
}
