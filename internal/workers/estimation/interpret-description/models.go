// internal/workers/estimation/interpret-description/models.go
package interpretdescription

import "offer-estimation/internal/models"

type Input struct {
	OfferID     string `json:"offerId,omitempty"`
	Description string `json:"description"`
}

type Output struct {
	Interpretation         models.Interpretation `json:"interpretation"`
	Confidence             float64               `json:"interpretationConfidence"`
	InterpretationWarnings []string              `json:"interpretationWarnings"`
	ComplexityScore        int                   `json:"complexityScore"`
	RiskScore              int                   `json:"riskScore"`
}
