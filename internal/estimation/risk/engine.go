// internal/estimation/risk/engine.go
package risk

import (
	"fmt"
	"sort"

	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/models"
)

// Context is the project view the rules run against. Nil pointers mean the
// value is unknown; rules that need an unknown value do not fire.
type Context struct {
	BuildingType      models.BuildingType      `json:"buildingType"`
	BuildingAgeYears  *int                     `json:"buildingAgeYears,omitempty"`
	BuildingSizeM2    *float64                 `json:"buildingSizeM2,omitempty"`
	RoomTypes         []string                 `json:"roomTypes,omitempty"`
	ElectricalPoints  map[string]int           `json:"electricalPoints,omitempty"`
	PanelRequirements models.PanelRequirements `json:"panelRequirements"`
	ComplexityScore   int                      `json:"complexityScore"`
	InterpretedRisks  []models.RiskFactor      `json:"interpretedRisks,omitempty"`
	Confidence        *float64                 `json:"confidence,omitempty"`
	TotalHours        *float64                 `json:"totalHours,omitempty"`
	TotalPrice        *float64                 `json:"totalPrice,omitempty"`
	MarginPct         *float64                 `json:"marginPct,omitempty"`
}

// NewContext builds a context from an interpretation and, when available,
// the calculation priced from it.
func NewContext(interp models.Interpretation, calc *models.Calculation) Context {
	c := Context{
		BuildingType:      interp.BuildingType,
		BuildingAgeYears:  interp.BuildingAgeYears,
		BuildingSizeM2:    interp.BuildingSizeM2,
		RoomTypes:         interp.RoomTypes(),
		ElectricalPoints:  interp.ElectricalPoints,
		PanelRequirements: interp.PanelRequirements,
		ComplexityScore:   interp.ComplexityScore,
		InterpretedRisks:  interp.RiskFactors,
	}
	if interp.Confidence > 0 {
		confidence := interp.Confidence
		c.Confidence = &confidence
	}
	if calc != nil {
		hours := calc.Time.TotalHours
		price := calc.Price.TotalPrice
		margin := calc.Price.MarginPct
		c.TotalHours = &hours
		c.TotalPrice = &price
		c.MarginPct = &margin
	}
	return c
}

func (c Context) hasRoomType(roomType string) bool {
	for _, rt := range c.RoomTypes {
		if rt == roomType {
			return true
		}
	}
	return false
}

func (c Context) points(kind string) int {
	return c.ElectricalPoints[kind]
}

// Analysis is the outcome of one run. Risks are ordered by descending
// severity, ties kept in detection order.
type Analysis struct {
	Risks                []models.RiskAssessment `json:"risks"`
	OverallRiskLevel     models.RiskLevel        `json:"overallRiskLevel"`
	CustomerVisibleRisks []models.RiskAssessment `json:"customerVisibleRisks"`
	Recommendations      []string                `json:"recommendations"`
	RecommendedMarginPct float64                 `json:"recommendedMarginPct"`
	ObsPoints            []string                `json:"obsPoints"`
}

// Engine evaluates every rule against a context. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	rules      []Rule
	thresholds Thresholds
	logger     logger.Logger
}

func NewEngine(rules []Rule, thresholds Thresholds, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Engine{
		rules:      append([]Rule(nil), rules...),
		thresholds: thresholds,
		logger:     log.WithFields(map[string]interface{}{"component": "risk"}),
	}
}

func NewDefaultEngine(log logger.Logger) *Engine {
	return NewEngine(DefaultRules(), DefaultThresholds(), log)
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Analyze runs all rules without short-circuiting, then every risk the
// interpreter found in the text.
func (e *Engine) Analyze(c Context) Analysis {
	rules := make([]Rule, 0, len(e.rules)+len(c.InterpretedRisks))
	rules = append(rules, e.rules...)
	for _, f := range c.InterpretedRisks {
		rules = append(rules, interpretedRule(f))
	}

	var (
		risks           []models.RiskAssessment
		recommendations []string
		seenRec         = make(map[string]bool)
	)
	for _, r := range rules {
		sev, ok := r.Assess(c, e.thresholds)
		if !ok {
			continue
		}
		if !sev.Valid() {
			sev = models.SeverityInfo
		}
		a := models.RiskAssessment{
			Category:       r.Category,
			Severity:       sev,
			Title:          r.Title,
			Description:    r.Description,
			DetectionRule:  r.Code,
			Confidence:     r.Confidence,
			ShowToCustomer: r.ShowToCustomer && r.CustomerMessage != "",
		}
		if a.ShowToCustomer {
			a.CustomerMessage = r.CustomerMessage
		}
		risks = append(risks, a)

		if r.Recommendation != "" && !seenRec[r.Recommendation] {
			seenRec[r.Recommendation] = true
			recommendations = append(recommendations, r.Recommendation)
		}
	}

	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].Severity.Weight() > risks[j].Severity.Weight()
	})

	out := Analysis{
		Risks:                nonNil(risks),
		OverallRiskLevel:     OverallLevel(risks),
		CustomerVisibleRisks: []models.RiskAssessment{},
		ObsPoints:            []string{},
		RecommendedMarginPct: RecommendMargin(e.thresholds.MinimumMarginPct, risks),
	}

	seenObs := make(map[string]bool)
	for _, r := range out.Risks {
		if !r.ShowToCustomer {
			continue
		}
		out.CustomerVisibleRisks = append(out.CustomerVisibleRisks, r)
		if !seenObs[r.CustomerMessage] {
			seenObs[r.CustomerMessage] = true
			out.ObsPoints = append(out.ObsPoints, r.CustomerMessage)
		}
	}

	if c.MarginPct != nil && *c.MarginPct < out.RecommendedMarginPct {
		recommendations = append(recommendations,
			fmt.Sprintf("Raise the margin from %.1f%% to %.1f%%.", *c.MarginPct, out.RecommendedMarginPct))
	}
	out.Recommendations = nonNilStrings(recommendations)

	e.logger.Debug("risk analysis completed", map[string]interface{}{
		"risks":             len(out.Risks),
		"overallRiskLevel":  out.OverallRiskLevel,
		"recommendedMargin": out.RecommendedMarginPct,
	})
	return out
}

// OverallLevel is high with any critical or two high risks, medium with one
// high or three medium risks, and low otherwise.
func OverallLevel(risks []models.RiskAssessment) models.RiskLevel {
	counts := make(map[models.Severity]int)
	for _, r := range risks {
		counts[r.Severity]++
	}
	switch {
	case counts[models.SeverityCritical] > 0 || counts[models.SeverityHigh] >= 2:
		return models.RiskLevelHigh
	case counts[models.SeverityHigh] >= 1 || counts[models.SeverityMedium] >= 3:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

// RecommendMargin never returns less than minimum or models.MarginFloorPct. Each
// category with a matched risk proposes minimum plus its delta; the largest
// proposal wins.
func RecommendMargin(minimum float64, risks []models.RiskAssessment) float64 {
	if minimum < models.MarginFloorPct {
		minimum = models.MarginFloorPct
	}
	out := minimum
	for _, r := range risks {
		if candidate := minimum + MarginDeltas[r.Category]; candidate > out {
			out = candidate
		}
	}
	return out
}

func nonNil(in []models.RiskAssessment) []models.RiskAssessment {
	if in == nil {
		return []models.RiskAssessment{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
