// internal/workers/estimation/interpret-description/validation.go
package interpretdescription

import "offer-estimation/internal/common/validation"

// Descriptions may be empty; the interpreter reports that as a warning.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"description"},
		Properties: map[string]validation.Property{
			"description": {
				Type:        "string",
				Description: "Free-text project description",
				MaxLength:   validation.IntPtr(20000),
			},
			"offerId": {
				Type:        "string",
				Description: "Offer the description belongs to",
				MaxLength:   validation.IntPtr(100),
			},
		},
	}
}
