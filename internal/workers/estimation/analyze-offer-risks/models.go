// internal/workers/estimation/analyze-offer-risks/models.go
package analyzeofferrisks

import (
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/models"
)

type Input struct {
	OfferID        string                `json:"offerId,omitempty"`
	Interpretation models.Interpretation `json:"interpretation"`
	Calculation    *models.Calculation   `json:"calculation"`
}

type Output struct {
	RiskAnalysis         risk.Analysis    `json:"riskAnalysis"`
	OverallRiskLevel     models.RiskLevel `json:"overallRiskLevel"`
	RecommendedMarginPct float64          `json:"recommendedMarginPct"`
	// RequiresReview routes the offer to manual review in the process.
	RequiresReview bool `json:"requiresReview"`
}
