// internal/models/risk.go
package models

// MarginFloorPct is the lowest minimum margin an offer may be recommended.
const MarginFloorPct = 15.0

type RiskCategory string

const (
	RiskTechnical RiskCategory = "technical"
	RiskSafety    RiskCategory = "safety"
	RiskLegal     RiskCategory = "legal"
	RiskTime      RiskCategory = "time"
	RiskMargin    RiskCategory = "margin"
	RiskAccess    RiskCategory = "access"
	RiskScope     RiskCategory = "scope"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight orders severities for sorting: info=0 ... critical=4.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type RiskAssessment struct {
	Category        RiskCategory `json:"category"`
	Severity        Severity     `json:"severity"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	DetectionRule   string       `json:"detectionRule"`
	Confidence      float64      `json:"confidence"`
	ShowToCustomer  bool         `json:"showToCustomer"`
	CustomerMessage string       `json:"customerMessage,omitempty"`
}

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)
