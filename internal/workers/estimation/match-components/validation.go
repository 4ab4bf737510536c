// internal/workers/estimation/match-components/validation.go
package matchcomponents

import "offer-estimation/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"interpretation"},
		Properties: map[string]validation.Property{
			"offerId": {Type: "string"},
			"interpretation": {
				Type:        "object",
				Description: "Output of interpret-description",
				Required:    []string{"electricalPoints"},
				Properties: map[string]validation.Property{
					"electricalPoints":  {Type: []string{"object", "null"}},
					"cableRequirements": {Type: []string{"object", "null"}},
					"panelRequirements": {Type: "object"},
					"complexityFactors": {Type: []string{"array", "null"}},
				},
			},
		},
	}
}
