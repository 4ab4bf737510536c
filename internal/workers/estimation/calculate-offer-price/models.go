// internal/workers/estimation/calculate-offer-price/models.go
package calculateofferprice

import "offer-estimation/internal/models"

type Input struct {
	OfferID         string                        `json:"offerId,omitempty"`
	ComplexityScore int                           `json:"complexityScore"`
	Components      []models.CalculationComponent `json:"components"`
	Materials       []models.CalculationMaterial  `json:"materials"`
	RiskBufferPct   *float64                      `json:"riskBufferPct"`
	MarginPct       *float64                      `json:"marginPct"`
}

// Risk buffer sources reported in Output.RiskBufferSource.
const (
	RiskBufferFromInput   = "input"
	RiskBufferFromLearned = "learned"
	RiskBufferFromTable   = "table"
)

type Output struct {
	CalculationID    string             `json:"calculationId"`
	Calculation      models.Calculation `json:"calculation"`
	TotalPrice       float64            `json:"totalPrice"`
	TotalHours       float64            `json:"totalHours"`
	RiskBufferSource string             `json:"riskBufferSource"`
	Persisted        bool               `json:"persisted"`
}
