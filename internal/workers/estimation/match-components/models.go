// internal/workers/estimation/match-components/models.go
package matchcomponents

import "offer-estimation/internal/models"

type Input struct {
	OfferID        string                `json:"offerId,omitempty"`
	Interpretation models.Interpretation `json:"interpretation"`
}

type Output struct {
	Components           []models.CalculationComponent `json:"components"`
	Materials            []models.CalculationMaterial  `json:"materials"`
	ComplexityMultiplier float64                       `json:"complexityMultiplier"`
	MatchNotes           []string                      `json:"matchNotes"`
	PartialMatch         bool                          `json:"partialMatch"`
}
