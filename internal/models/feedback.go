// internal/models/feedback.go
package models

import "time"

type AdjustmentType string

const (
	AdjustmentTime       AdjustmentType = "time"
	AdjustmentMaterial   AdjustmentType = "material"
	AdjustmentMargin     AdjustmentType = "margin"
	AdjustmentRiskBuffer AdjustmentType = "risk_buffer"
	AdjustmentComplexity AdjustmentType = "complexity"
)

// Valid reports whether t is one of the known adjustment types.
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentTime, AdjustmentMaterial, AdjustmentMargin, AdjustmentRiskBuffer, AdjustmentComplexity:
		return true
	}
	return false
}

// Adjustment is a proposed change to one estimation coefficient. Proposals
// carry a zero AppliedAt; recording one stamps it and appends it to the
// audit trail.
type Adjustment struct {
	ID                 string         `json:"id,omitempty"`
	Type               AdjustmentType `json:"type"`
	ComponentOrFactor  string         `json:"componentOrFactor"`
	OldValue           float64        `json:"oldValue"`
	NewValue           float64        `json:"newValue"`
	Reason             string         `json:"reason"`
	Confidence         float64        `json:"confidence,omitempty"`
	VariancePercentage float64        `json:"variancePercentage,omitempty"`
	FeedbackID         string         `json:"feedbackId,omitempty"`
	AppliedBy          string         `json:"appliedBy,omitempty"`
	AppliedAt          *time.Time     `json:"appliedAt,omitempty"`
}

// Feedback compares one calculation's estimate with the project's outcome.
type Feedback struct {
	ID                         string       `json:"id"`
	CalculationID              string       `json:"calculationId"`
	ProjectID                  string       `json:"projectId,omitempty"`
	EstimatedHours             float64      `json:"estimatedHours"`
	ActualHours                *float64     `json:"actualHours"`
	HoursVariancePercentage    *float64     `json:"hoursVariancePercentage"`
	EstimatedMaterialCost      float64      `json:"estimatedMaterialCost"`
	ActualMaterialCost         *float64     `json:"actualMaterialCost"`
	MaterialVariancePercentage *float64     `json:"materialVariancePercentage"`
	OfferAccepted              bool         `json:"offerAccepted"`
	ProjectProfitable          *bool        `json:"projectProfitable"`
	CustomerSatisfaction       *int         `json:"customerSatisfaction"`
	ComplexityScore            int          `json:"complexityScore"`
	AdjustmentSuggestions      []Adjustment `json:"adjustmentSuggestions"`
	CreatedAt                  time.Time    `json:"createdAt"`
}

// CompletedProject is the read model of a finished project.
type CompletedProject struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ActualHours float64 `json:"actualHours"`
	OfferID     string  `json:"offerId"`
}
