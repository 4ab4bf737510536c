// internal/workers/learning/auto-calibrate-estimates/validation.go
package autocalibrateestimates

import "offer-estimation/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"requestedBy": {Type: "string", MaxLength: validation.IntPtr(200)},
		},
	}
}
