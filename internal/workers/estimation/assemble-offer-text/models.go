// internal/workers/estimation/assemble-offer-text/models.go
package assembleoffertext

import (
	"offer-estimation/internal/estimation/offertext"
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/models"
)

type Input struct {
	OfferID        string                `json:"offerId,omitempty"`
	Interpretation models.Interpretation `json:"interpretation"`
	Calculation    *models.Calculation   `json:"calculation"`
	RiskAnalysis   *risk.Analysis        `json:"riskAnalysis"`
}

type Output struct {
	OfferTexts   offertext.AssembledTexts `json:"offerTexts"`
	OfferText    string                   `json:"offerText"`
	SectionCount int                      `json:"sectionCount"`
	// UsedDefaultsOnly is set when stored templates could not be read.
	UsedDefaultsOnly bool `json:"usedDefaultsOnly"`
}
