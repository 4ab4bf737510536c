// internal/estimation/risk/rules.go
package risk

import (
	"fmt"

	"offer-estimation/internal/models"
)

// Thresholds parameterize the built-in rules.
type Thresholds struct {
	OldInstallationYears     int     `json:"oldInstallationYears" mapstructure:"old_installation_years"`
	VeryOldInstallationYears int     `json:"veryOldInstallationYears" mapstructure:"very_old_installation_years"`
	LargeProjectHours        float64 `json:"largeProjectHours" mapstructure:"large_project_hours"`
	HighValuePrice           float64 `json:"highValuePrice" mapstructure:"high_value_price"`
	SmallJobPrice            float64 `json:"smallJobPrice" mapstructure:"small_job_price"`
	LowConfidence            float64 `json:"lowConfidence" mapstructure:"low_confidence"`
	MinimumMarginPct         float64 `json:"minimumMarginPct" mapstructure:"minimum_margin_pct"`
	LargeBuildingM2          float64 `json:"largeBuildingM2" mapstructure:"large_building_m2"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		OldInstallationYears:     40,
		VeryOldInstallationYears: 60,
		LargeProjectHours:        80,
		HighValuePrice:           250000,
		SmallJobPrice:            5000,
		LowConfidence:            0.7,
		MinimumMarginPct:         15,
		LargeBuildingM2:          300,
	}
}

// WithMinimumMargin returns t with a calibrated minimum margin. Values below
// models.MarginFloorPct are raised to it; zero keeps the configured minimum.
func (t Thresholds) WithMinimumMargin(pct float64) Thresholds {
	if pct <= 0 {
		return t
	}
	if pct < models.MarginFloorPct {
		pct = models.MarginFloorPct
	}
	t.MinimumMarginPct = pct
	return t
}

// MarginDeltas are added to the minimum margin for each category with at
// least one matched risk. The recommendation is the largest resulting value.
var MarginDeltas = map[models.RiskCategory]float64{
	models.RiskTechnical: 3,
	models.RiskSafety:    5,
	models.RiskLegal:     2,
	models.RiskTime:      2,
	models.RiskMargin:    5,
	models.RiskAccess:    3,
	models.RiskScope:     4,
}

// Rule is one independent detection predicate. Assess reports the severity
// and whether the rule fired for the context.
type Rule struct {
	Code            string
	Category        models.RiskCategory
	Title           string
	Description     string
	Confidence      float64
	ShowToCustomer  bool
	CustomerMessage string
	Recommendation  string
	Assess          func(c Context, t Thresholds) (models.Severity, bool)
}

func fixed(sev models.Severity, pred func(c Context, t Thresholds) bool) func(Context, Thresholds) (models.Severity, bool) {
	return func(c Context, t Thresholds) (models.Severity, bool) {
		return sev, pred(c, t)
	}
}

// DefaultRules returns the built-in rule set in detection order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Code:            "old_installation",
			Category:        models.RiskTechnical,
			Title:           "Old installation",
			Description:     "Building age suggests an installation that does not meet current requirements.",
			Confidence:      0.8,
			ShowToCustomer:  true,
			CustomerMessage: "Eksisterende installationer i ældre bygninger kan have skjulte fejl, som først opdages under arbejdet.",
			Recommendation:  "Inspect the existing installation before work starts.",
			Assess: func(c Context, t Thresholds) (models.Severity, bool) {
				if c.BuildingAgeYears == nil || *c.BuildingAgeYears <= t.OldInstallationYears {
					return "", false
				}
				if *c.BuildingAgeYears > t.VeryOldInstallationYears {
					return models.SeverityHigh, true
				}
				return models.SeverityMedium, true
			},
		},
		{
			Code:            "new_panel",
			Category:        models.RiskTechnical,
			Title:           "New distribution board",
			Description:     "Group count or required amperage calls for a new board.",
			Confidence:      0.9,
			ShowToCustomer:  true,
			CustomerMessage: "Tilbuddet omfatter udskiftning af eltavlen, hvilket kræver afbrydelse af strømmen i en periode.",
			Recommendation:  "Coordinate the board replacement and supply cable with the grid operator.",
			Assess: fixed(models.SeverityHigh, func(c Context, _ Thresholds) bool {
				return c.PanelRequirements.NewPanelNeeded
			}),
		},
		{
			Code:           "panel_upgrade",
			Category:       models.RiskTechnical,
			Title:          "Board extension",
			Description:    "The existing board needs additional groups.",
			Confidence:     0.8,
			Recommendation: "Check free space in the existing board during the site visit.",
			Assess: fixed(models.SeverityMedium, func(c Context, _ Thresholds) bool {
				return c.PanelRequirements.UpgradeNeeded && !c.PanelRequirements.NewPanelNeeded
			}),
		},
		{
			Code:            "wet_room",
			Category:        models.RiskSafety,
			Title:           "Wet room installation",
			Description:     "Bathroom work is subject to zone and residual current requirements.",
			Confidence:      0.9,
			ShowToCustomer:  true,
			CustomerMessage: "Installationer i vådrum udføres efter gældende zonekrav, hvilket kan påvirke placeringen af udtag.",
			Recommendation:  "Agree outlet placement against the bathroom zones.",
			Assess: fixed(models.SeverityMedium, func(c Context, _ Thresholds) bool {
				return c.hasRoomType(models.RoomBathroom)
			}),
		},
		{
			Code:           "outdoor_work",
			Category:       models.RiskAccess,
			Title:          "Outdoor work",
			Description:    "Outdoor installations depend on weather and access.",
			Confidence:     0.7,
			Recommendation: "Schedule outdoor work with a weather reservation.",
			Assess: fixed(models.SeverityLow, func(c Context, _ Thresholds) bool {
				return c.hasRoomType(models.RoomOutdoor) || c.points(models.PointOutdoorLight) > 0
			}),
		},
		{
			Code:            "high_load",
			Category:        models.RiskTechnical,
			Title:           "High load",
			Description:     "An EV charger or heat pump increases the load on the supply cable and main fuse.",
			Confidence:      0.8,
			ShowToCustomer:  true,
			CustomerMessage: "Ladestander og varmepumpe forudsætter, at husets hovedsikring kan bære belastningen. Det kontrolleres før montage.",
			Recommendation:  "Calculate the load and check the main fuse rating.",
			Assess: fixed(models.SeverityMedium, func(c Context, _ Thresholds) bool {
				return c.points(models.PointEVCharger) > 0 || c.points(models.PointHeatPump) > 0
			}),
		},
		{
			Code:           "large_project",
			Category:       models.RiskTime,
			Title:          "Large project",
			Description:    "The estimated hours carry a risk of delays and overruns.",
			Confidence:     0.7,
			Recommendation: "Split the project into stages with partial invoicing.",
			Assess: fixed(models.SeverityMedium, func(c Context, t Thresholds) bool {
				return c.TotalHours != nil && *c.TotalHours > t.LargeProjectHours
			}),
		},
		{
			Code:           "low_margin",
			Category:       models.RiskMargin,
			Title:          "Low margin",
			Description:    "The chosen margin is below the minimum margin.",
			Confidence:     1.0,
			Recommendation: "Raise the margin to at least the minimum margin.",
			Assess: fixed(models.SeverityHigh, func(c Context, t Thresholds) bool {
				return c.MarginPct != nil && *c.MarginPct < t.MinimumMarginPct
			}),
		},
		{
			Code:           "high_value",
			Category:       models.RiskMargin,
			Title:          "High offer value",
			Description:    "The offer value is high, so deviations have a large financial impact.",
			Confidence:     0.9,
			Recommendation: "Have a colleague review the calculation before sending.",
			Assess: fixed(models.SeverityMedium, func(c Context, t Thresholds) bool {
				return c.TotalPrice != nil && *c.TotalPrice > t.HighValuePrice
			}),
		},
		{
			Code:           "small_job",
			Category:       models.RiskMargin,
			Title:          "Small job",
			Description:    "Travel and setup make up a large share of a small job.",
			Confidence:     0.8,
			Recommendation: "Consider a fixed call-out fee.",
			Assess: fixed(models.SeverityLow, func(c Context, t Thresholds) bool {
				return c.TotalPrice != nil && *c.TotalPrice > 0 && *c.TotalPrice < t.SmallJobPrice
			}),
		},
		{
			Code:           "large_building",
			Category:       models.RiskAccess,
			Title:          "Large building",
			Description:    "Long cable runs and several floors increase the time spent.",
			Confidence:     0.6,
			Recommendation: "Check cable routes and access to every floor.",
			Assess: fixed(models.SeverityLow, func(c Context, t Thresholds) bool {
				return c.BuildingSizeM2 != nil && *c.BuildingSizeM2 > t.LargeBuildingM2
			}),
		},
		{
			Code:           "commercial_requirements",
			Category:       models.RiskLegal,
			Title:          "Commercial building",
			Description:    "Commercial and industrial buildings can carry additional regulatory requirements.",
			Confidence:     0.7,
			Recommendation: "Clarify regulatory and documentation requirements with the client.",
			Assess: fixed(models.SeverityLow, func(c Context, _ Thresholds) bool {
				return c.BuildingType == models.BuildingCommercial || c.BuildingType == models.BuildingIndustrial
			}),
		},
		{
			Code:           "high_complexity",
			Category:       models.RiskTechnical,
			Title:          "High complexity",
			Description:    "The building construction makes installation work harder than usual.",
			Confidence:     0.7,
			Recommendation: "Visit the site before fixing the price.",
			Assess: fixed(models.SeverityMedium, func(c Context, _ Thresholds) bool {
				return c.ComplexityScore >= 4
			}),
		},
		{
			Code:           "unknown_building",
			Category:       models.RiskScope,
			Title:          "Unknown building type",
			Description:    "The building type could not be determined from the description.",
			Confidence:     1.0,
			Recommendation: "Ask the customer for the building type.",
			Assess: fixed(models.SeverityLow, func(c Context, _ Thresholds) bool {
				return c.BuildingType == "" || c.BuildingType == models.BuildingUnknown
			}),
		},
		{
			Code:           "missing_size",
			Category:       models.RiskScope,
			Title:          "Missing floor area",
			Description:    "The floor area is unknown, so cable lengths use reference values.",
			Confidence:     1.0,
			Recommendation: "Ask the customer for the floor area.",
			Assess: fixed(models.SeverityInfo, func(c Context, _ Thresholds) bool {
				return c.BuildingSizeM2 == nil
			}),
		},
		{
			Code:            "low_confidence",
			Category:        models.RiskScope,
			Title:           "Uncertain interpretation",
			Description:     "The description carries little information, so the estimate is uncertain.",
			Confidence:      0.9,
			ShowToCustomer:  true,
			CustomerMessage: "Tilbuddet er baseret på en kort beskrivelse. Endelig pris fastlægges efter besigtigelse.",
			Recommendation:  "Book a site visit before the final offer.",
			Assess: fixed(models.SeverityMedium, func(c Context, t Thresholds) bool {
				return c.Confidence != nil && *c.Confidence < t.LowConfidence
			}),
		},
	}
}

// customerMessages are the offer caveats for risks found in the description.
// Risks without an entry stay internal.
var customerMessages = map[string]string{
	"asbestos":                 "Der kan være asbest i bygningen. Arbejdet stoppes, hvis der findes asbest, indtil det er håndteret korrekt.",
	"burn_marks":               "Der er tegn på overophedning i installationen. Fejlen udbedres før øvrigt arbejde.",
	"aluminium_wiring":         "Installationen indeholder aluminiumsledninger, som kan kræve udskiftning.",
	"missing_grounding":        "Installationen mangler jording eller HPFI-beskyttelse, som skal etableres.",
	"diy_work":                 "Eksisterende arbejde udført af ikke-autoriserede skal gennemgås og kan kræve udbedring.",
	"moisture":                 "Fugt ved installationen kan kræve ekstra arbejde og materialer.",
	"listed_building_approval": "Arbejde i fredede bygninger kræver tilladelse, som kan forlænge tidsplanen.",
}

// interpretedRule wraps a risk factor found in the description text.
func interpretedRule(f models.RiskFactor) Rule {
	confidence := 0.75
	if f.Inferred {
		confidence = 0.6
	}
	message, visible := customerMessages[f.Code]
	return Rule{
		Code:            "interpreter:" + f.Code,
		Category:        f.Category,
		Title:           f.Description,
		Description:     describeFactor(f),
		Confidence:      confidence,
		ShowToCustomer:  visible,
		CustomerMessage: message,
		Assess: func(Context, Thresholds) (models.Severity, bool) {
			return f.Severity, true
		},
	}
}

func describeFactor(f models.RiskFactor) string {
	if f.Inferred {
		return fmt.Sprintf("%s (inferred from %s)", f.Description, f.DetectedFrom)
	}
	return fmt.Sprintf("%s (matched %q)", f.Description, f.DetectedFrom)
}
