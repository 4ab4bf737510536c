// internal/workers/learning/auto-calibrate-estimates/models.go
package autocalibrateestimates

import (
	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/models"
)

// EventCalibrationProposed is the notification event type for new proposals.
const EventCalibrationProposed = "calibration.proposed"

type Input struct {
	RequestedBy string `json:"requestedBy,omitempty"`
}

type Output struct {
	Proposals       []models.Adjustment `json:"calibrationProposals"`
	ProposalCount   int                 `json:"proposalCount"`
	LearningMetrics learning.Metrics    `json:"learningMetrics"`
	Published       bool                `json:"proposalsPublished"`
	MessageID       string              `json:"notificationMessageId,omitempty"`
}

// ProposalEvent is the published notification payload.
type ProposalEvent struct {
	Proposals   []models.Adjustment `json:"proposals"`
	Metrics     learning.Metrics    `json:"metrics"`
	RequestedBy string              `json:"requestedBy,omitempty"`
}
