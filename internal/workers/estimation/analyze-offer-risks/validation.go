// internal/workers/estimation/analyze-offer-risks/validation.go
package analyzeofferrisks

import "offer-estimation/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"interpretation"},
		Properties: map[string]validation.Property{
			"offerId": {Type: "string"},
			"interpretation": {
				Type:     "object",
				Required: []string{"buildingType"},
				Properties: map[string]validation.Property{
					"buildingType": {
						Type: "string",
						Enum: []string{"house", "apartment", "commercial", "industrial", "unknown"},
					},
					"riskFactors": {Type: []string{"array", "null"}},
				},
			},
			"calculation": {
				Type:        []string{"object", "null"},
				Description: "Priced calculation; without it price based rules do not fire",
			},
		},
	}
}
