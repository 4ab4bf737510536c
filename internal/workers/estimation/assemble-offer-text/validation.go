// internal/workers/estimation/assemble-offer-text/validation.go
package assembleoffertext

import "offer-estimation/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"interpretation", "calculation"},
		Properties: map[string]validation.Property{
			"offerId":        {Type: "string"},
			"interpretation": {Type: "object"},
			"calculation": {
				Type:     "object",
				Required: []string{"price"},
			},
			"riskAnalysis": {
				Type: []string{"object", "null"},
				Properties: map[string]validation.Property{
					"obsPoints": {
						Type:  []string{"array", "null"},
						Items: &validation.Property{Type: "string"},
					},
				},
			},
		},
	}
}
