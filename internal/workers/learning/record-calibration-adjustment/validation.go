// internal/workers/learning/record-calibration-adjustment/validation.go
package recordcalibrationadjustment

import "offer-estimation/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"adjustment"},
		Properties: map[string]validation.Property{
			"adjustment": {
				Type:     "object",
				Required: []string{"type", "componentOrFactor", "newValue", "reason"},
				Properties: map[string]validation.Property{
					"id": {Type: "string"},
					"type": {
						Type: "string",
						Enum: []string{"time", "material", "margin", "risk_buffer", "complexity"},
					},
					"componentOrFactor": {Type: "string"},
					"oldValue":          {Type: []string{"number", "null"}},
					"newValue":          {Type: "number", Minimum: validation.Float64Ptr(0)},
					"reason":            {Type: "string", MinLength: validation.IntPtr(1), MaxLength: validation.IntPtr(2000)},
					"confidence": {
						Type:    "number",
						Minimum: validation.Float64Ptr(0),
						Maximum: validation.Float64Ptr(1),
					},
					"variancePercentage": {Type: "number"},
					"feedbackId":         {Type: "string"},
				},
			},
			"appliedBy": {Type: "string", MaxLength: validation.IntPtr(200)},
		},
	}
}
