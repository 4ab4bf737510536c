// internal/models/calculation.go
package models

import "time"

type CalculationComponent struct {
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
	UnitTimeMinutes float64 `json:"unitTimeMinutes"`
	// TimeFactor is the calibrated time factor the line was priced with.
	TimeFactor      float64 `json:"timeFactor,omitempty"`
}

type CalculationMaterial struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	UnitCost float64 `json:"unitCost"`
}

type TimeBreakdownItem struct {
	Category string  `json:"category"`
	Minutes  float64 `json:"minutes"`
	Hours    float64 `json:"hours"`
}

type TimeSummary struct {
	TotalMinutes float64             `json:"totalMinutes"`
	TotalHours   float64             `json:"totalHours"`
	Breakdown    []TimeBreakdownItem `json:"breakdown"`
}

type PriceSummary struct {
	MaterialCost       float64 `json:"materialCost"`
	// MaterialCostFactor is the calibrated factor MaterialCost includes.
	MaterialCostFactor float64 `json:"materialCostFactor,omitempty"`
	LaborCost          float64 `json:"laborCost"`
	Subtotal           float64 `json:"subtotal"`
	RiskBufferPct      float64 `json:"riskBufferPct"`
	RiskBufferAmount   float64 `json:"riskBufferAmount"`
	MarginPct          float64 `json:"marginPct"`
	MarginAmount       float64 `json:"marginAmount"`
	TotalPrice         float64 `json:"totalPrice"`
}

// Calculation is the priced result for one offer/interpretation pair. A
// persisted calculation is never edited; recalculation stores a new one.
type Calculation struct {
	ID              string                 `json:"id,omitempty"`
	OfferID         string                 `json:"offerId,omitempty"`
	Components      []CalculationComponent `json:"components"`
	Materials       []CalculationMaterial  `json:"materials"`
	Time            TimeSummary            `json:"time"`
	Price           PriceSummary           `json:"price"`
	ComplexityScore int                    `json:"complexityScore,omitempty"`
	CreatedAt       time.Time              `json:"createdAt,omitempty"`
}
