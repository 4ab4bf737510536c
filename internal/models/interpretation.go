// internal/models/interpretation.go
package models

// BuildingType classifies the building described in a project description.
type BuildingType string

const (
	BuildingHouse      BuildingType = "house"
	BuildingApartment  BuildingType = "apartment"
	BuildingCommercial BuildingType = "commercial"
	BuildingIndustrial BuildingType = "industrial"
	BuildingUnknown    BuildingType = "unknown"
)

// RoomType values used by the interpreter rule tables.
const (
	RoomKitchen    = "kitchen"
	RoomBathroom   = "bathroom"
	RoomBedroom    = "bedroom"
	RoomLivingRoom = "living_room"
	RoomOffice     = "office"
	RoomHallway    = "hallway"
	RoomUtility    = "utility"
	RoomGarage     = "garage"
	RoomBasement   = "basement"
	RoomOutdoor    = "outdoor"
	RoomOther      = "other"
)

// PointKind values for electrical points.
const (
	PointOutlet       = "outlet"
	PointSwitch       = "switch"
	PointLight        = "light"
	PointData         = "data"
	PointStove        = "stove"
	PointAppliance    = "appliance"
	PointEVCharger    = "ev_charger"
	PointHeatPump     = "heat_pump"
	PointFloorHeating = "floor_heating"
	PointOutdoorLight = "outdoor_light"
)

type Room struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type PanelRequirements struct {
	UpgradeNeeded    bool `json:"upgradeNeeded"`
	RequiredGroups   int  `json:"requiredGroups"`
	RequiredAmperage int  `json:"requiredAmperage"`
	NewPanelNeeded   bool `json:"newPanelNeeded"`
}

type ComplexityFactor struct {
	Code         string  `json:"code"`
	Category     string  `json:"category"`
	Multiplier   float64 `json:"multiplier"`
	DetectedFrom string  `json:"detectedFrom"`
}

// RiskFactor is a risk detected while interpreting text. Severity uses the
// same scale as RiskAssessment.
type RiskFactor struct {
	Code         string       `json:"code"`
	Category     RiskCategory `json:"category"`
	Severity     Severity     `json:"severity"`
	Description  string       `json:"description"`
	DetectedFrom string       `json:"detectedFrom"`
	Inferred     bool         `json:"inferred"`
}

// Interpretation holds the facts extracted from one project description.
// It is built once and never modified afterwards; consumers read it by value.
type Interpretation struct {
	RawDescription    string             `json:"rawDescription"`
	BuildingType      BuildingType       `json:"buildingType"`
	BuildingSizeM2    *float64           `json:"buildingSizeM2"`
	BuildingAgeYears  *int               `json:"buildingAgeYears"`
	Rooms             []Room             `json:"rooms"`
	ElectricalPoints  map[string]int     `json:"electricalPoints"`
	CableRequirements map[string]float64 `json:"cableRequirements"`
	PanelRequirements PanelRequirements  `json:"panelRequirements"`
	ComplexityFactors []ComplexityFactor `json:"complexityFactors"`
	ComplexityScore   int                `json:"complexityScore"`
	RiskFactors       []RiskFactor       `json:"riskFactors"`
	RiskScore         int                `json:"riskScore"`
	Confidence        float64            `json:"confidence"`
}

// RoomTypes returns the distinct room types in detection order.
func (i Interpretation) RoomTypes() []string {
	seen := make(map[string]bool, len(i.Rooms))
	out := make([]string, 0, len(i.Rooms))
	for _, r := range i.Rooms {
		if seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		out = append(out, r.Type)
	}
	return out
}

// TotalPoints sums all electrical point counts.
func (i Interpretation) TotalPoints() int {
	total := 0
	for _, n := range i.ElectricalPoints {
		total += n
	}
	return total
}

// AverageComplexityMultiplier returns the mean multiplier of the detected
// complexity factors, or 1.0 when none were detected.
func (i Interpretation) AverageComplexityMultiplier() float64 {
	if len(i.ComplexityFactors) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, f := range i.ComplexityFactors {
		sum += f.Multiplier
	}
	return sum / float64(len(i.ComplexityFactors))
}
