// internal/workers/estimation/calculate-offer-price/validation.go
package calculateofferprice

import "offer-estimation/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"complexityScore", "components", "materials"},
		Properties: map[string]validation.Property{
			"offerId": {Type: "string"},
			"complexityScore": {
				Type:    "integer",
				Minimum: validation.Float64Ptr(1),
				Maximum: validation.Float64Ptr(5),
			},
			"components": {
				Type: "array",
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"code", "quantity", "unitTimeMinutes"},
					Properties: map[string]validation.Property{
						"code":            {Type: "string", MinLength: validation.IntPtr(1)},
						"quantity":        {Type: "number", Minimum: validation.Float64Ptr(0)},
						"unitTimeMinutes": {Type: "number", Minimum: validation.Float64Ptr(0)},
					},
				},
			},
			"materials": {
				Type: "array",
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"code", "quantity", "unitCost"},
					Properties: map[string]validation.Property{
						"code":     {Type: "string", MinLength: validation.IntPtr(1)},
						"quantity": {Type: "number", Minimum: validation.Float64Ptr(0)},
						"unitCost": {Type: "number", Minimum: validation.Float64Ptr(0)},
					},
				},
			},
			"riskBufferPct": {
				Type:    []string{"number", "null"},
				Minimum: validation.Float64Ptr(0),
				Maximum: validation.Float64Ptr(100),
			},
			"marginPct": {
				Type:    []string{"number", "null"},
				Minimum: validation.Float64Ptr(0),
				Maximum: validation.Float64Ptr(100),
			},
		},
	}
}
