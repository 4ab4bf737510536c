// internal/estimation/rules/rules.go
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

var (
	ErrInvalidRuleSet = errors.New("INVALID_RULE_SET")
)

type BuildingTypeRule struct {
	Type     string   `yaml:"type"`
	Patterns []string `yaml:"patterns"`
}

type AgeKeywordRule struct {
	Pattern string `yaml:"pattern"`
	Age     int    `yaml:"age"`
}

type RoomRule struct {
	Type     string   `yaml:"type"`
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

type PointRule struct {
	Kind             string   `yaml:"kind"`
	Patterns         []string `yaml:"patterns"`
	MentionCountsOne bool     `yaml:"mention_counts_one"`
}

type CableRule struct {
	PointKind      string  `yaml:"point_kind"`
	Gauge          string  `yaml:"gauge"`
	MetersPerPoint float64 `yaml:"meters_per_point"`
}

type CableScale struct {
	ReferenceSizeM2 float64 `yaml:"reference_size_m2"`
	Min             float64 `yaml:"min"`
	Max             float64 `yaml:"max"`
}

type AmperageStep struct {
	MaxGroups int `yaml:"max_groups"`
	Amperage  int `yaml:"amperage"`
}

type PanelRules struct {
	OutletsPerGroup      int            `yaml:"outlets_per_group"`
	LightsPerGroup       int            `yaml:"lights_per_group"`
	DedicatedGroupKinds  []string       `yaml:"dedicated_group_kinds"`
	AmperageSteps        []AmperageStep `yaml:"amperage_steps"`
	HighLoadKinds        []string       `yaml:"high_load_kinds"`
	HighLoadMinAmperage  int            `yaml:"high_load_min_amperage"`
	UpgradeGroupsOver    int            `yaml:"upgrade_groups_over"`
	UpgradeAgeOver       int            `yaml:"upgrade_age_over"`
	NewPanelGroupsOver   int            `yaml:"new_panel_groups_over"`
	NewPanelAmperageOver int            `yaml:"new_panel_amperage_over"`
}

type ComplexityRule struct {
	Code       string   `yaml:"code"`
	Category   string   `yaml:"category"`
	Multiplier float64  `yaml:"multiplier"`
	Patterns   []string `yaml:"patterns"`
}

// Band maps a value to a score. A Max of zero closes the table.
type Band struct {
	Max   float64 `yaml:"max"`
	Score int     `yaml:"score"`
}

type RiskRule struct {
	Code        string   `yaml:"code"`
	Category    string   `yaml:"category"`
	Severity    string   `yaml:"severity"`
	Description string   `yaml:"description"`
	Patterns    []string `yaml:"patterns,omitempty"`
}

type InferredRiskRules struct {
	OldWiringAgeOver        int      `yaml:"old_wiring_age_over"`
	OldWiring               RiskRule `yaml:"old_wiring"`
	NewPanel                RiskRule `yaml:"new_panel"`
	MinimalDescriptionWords int      `yaml:"minimal_description_words"`
	MinimalDescription      RiskRule `yaml:"minimal_description"`
}

type ConfidenceRules struct {
	Base              float64 `yaml:"base"`
	KnownBuildingType float64 `yaml:"known_building_type"`
	SizeFound         float64 `yaml:"size_found"`
	MultipleRooms     float64 `yaml:"multiple_rooms"`
	PointKindsOver    int     `yaml:"point_kinds_over"`
	PointKinds        float64 `yaml:"point_kinds"`
	ComplexityFactor  float64 `yaml:"complexity_factor"`
	RiskFactor        float64 `yaml:"risk_factor"`
	Max               float64 `yaml:"max"`
}

// RuleSet is the full table of extraction rules used by the interpreter.
// A RuleSet is read-only once loaded; reloading means building a new one.
type RuleSet struct {
	BuildingTypes          []BuildingTypeRule        `yaml:"building_types"`
	SizePattern            string                    `yaml:"size_pattern"`
	YearPattern            string                    `yaml:"year_pattern"`
	MinPlausibleYear       int                       `yaml:"min_plausible_year"`
	AgeKeywords            []AgeKeywordRule          `yaml:"age_keywords"`
	NumberWords            map[string]int            `yaml:"number_words"`
	MaxRoomsPerType        int                       `yaml:"max_rooms_per_type"`
	Rooms                  []RoomRule                `yaml:"rooms"`
	FallbackRoom           RoomRule                  `yaml:"fallback_room"`
	Points                 []PointRule               `yaml:"points"`
	PointFloor             int                       `yaml:"point_floor"`
	RoomDefaultPoints      map[string]map[string]int `yaml:"room_default_points"`
	Cables                 []CableRule               `yaml:"cables"`
	CableScale             CableScale                `yaml:"cable_scale"`
	Panel                  PanelRules                `yaml:"panel"`
	ComplexityFactors      []ComplexityRule          `yaml:"complexity_factors"`
	ComplexityBands        []Band                    `yaml:"complexity_bands"`
	NeutralComplexityScore int                       `yaml:"neutral_complexity_score"`
	RiskPatterns           []RiskRule                `yaml:"risk_patterns"`
	Inferred               InferredRiskRules         `yaml:"inferred_risks"`
	RiskBands              []Band                    `yaml:"risk_bands"`
	NeutralRiskScore       int                       `yaml:"neutral_risk_score"`
	Confidence             ConfidenceRules           `yaml:"confidence"`
}

var (
	defaultOnce sync.Once
	defaultSet  *RuleSet
	defaultErr  error
)

// Default returns the embedded rule set. It is parsed once per process.
func Default() (*RuleSet, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Parse(defaultRulesYAML)
	})
	return defaultSet, defaultErr
}

// MustDefault is Default for callers that treat a broken embedded table as fatal.
func MustDefault() *RuleSet {
	rs, err := Default()
	if err != nil {
		panic(err)
	}
	return rs
}

// Load reads a rule set from disk. An empty path yields the embedded defaults.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleSet, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks the tables the interpreter relies on and compiles every pattern once.
func (rs *RuleSet) Validate() error {
	var problems []string

	check := func(where, pattern string) {
		if _, err := regexp.Compile(pattern); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", where, err))
		}
	}

	if rs.SizePattern == "" {
		problems = append(problems, "size_pattern is required")
	}
	check("size_pattern", rs.SizePattern)
	if rs.YearPattern == "" {
		problems = append(problems, "year_pattern is required")
	}
	check("year_pattern", rs.YearPattern)

	for _, bt := range rs.BuildingTypes {
		for _, p := range bt.Patterns {
			check("building_types."+bt.Type, p)
		}
	}
	for i, ak := range rs.AgeKeywords {
		check(fmt.Sprintf("age_keywords[%d]", i), ak.Pattern)
	}
	for _, r := range rs.Rooms {
		if r.Type == "" || r.Name == "" {
			problems = append(problems, "rooms entries need type and name")
		}
		for _, p := range r.Patterns {
			check("rooms."+r.Type, p)
		}
	}
	if rs.FallbackRoom.Type == "" {
		problems = append(problems, "fallback_room.type is required")
	}
	for _, pt := range rs.Points {
		for _, p := range pt.Patterns {
			check("points."+pt.Kind, p)
		}
	}
	for _, cf := range rs.ComplexityFactors {
		if cf.Multiplier <= 0 {
			problems = append(problems, fmt.Sprintf("complexity_factors.%s: multiplier must be positive", cf.Code))
		}
		for _, p := range cf.Patterns {
			check("complexity_factors."+cf.Code, p)
		}
	}
	for _, rr := range rs.RiskPatterns {
		for _, p := range rr.Patterns {
			check("risk_patterns."+rr.Code, p)
		}
	}

	if len(rs.ComplexityBands) == 0 || len(rs.RiskBands) == 0 {
		problems = append(problems, "complexity_bands and risk_bands are required")
	}
	if err := checkScore("neutral_complexity_score", rs.NeutralComplexityScore); err != "" {
		problems = append(problems, err)
	}
	if err := checkScore("neutral_risk_score", rs.NeutralRiskScore); err != "" {
		problems = append(problems, err)
	}
	for _, b := range append(append([]Band{}, rs.ComplexityBands...), rs.RiskBands...) {
		if err := checkScore("band score", b.Score); err != "" {
			problems = append(problems, err)
		}
	}
	if rs.Panel.OutletsPerGroup <= 0 || rs.Panel.LightsPerGroup <= 0 {
		problems = append(problems, "panel group sizes must be positive")
	}
	if len(rs.Panel.AmperageSteps) == 0 {
		problems = append(problems, "panel.amperage_steps is required")
	}
	if rs.Confidence.Max <= 0 || rs.Confidence.Max >= 1 {
		problems = append(problems, "confidence.max must be in (0, 1)")
	}
	if rs.Confidence.Base > rs.Confidence.Max {
		problems = append(problems, "confidence.base must not exceed confidence.max")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRuleSet, strings.Join(problems, "; "))
	}
	return nil
}

func checkScore(name string, score int) string {
	if score < 1 || score > 5 {
		return fmt.Sprintf("%s must be between 1 and 5, got %d", name, score)
	}
	return ""
}

// Score walks an ordered band table and returns the first band whose Max covers v.
func Score(bands []Band, v float64) int {
	for _, b := range bands {
		if b.Max == 0 || v <= b.Max {
			return b.Score
		}
	}
	return bands[len(bands)-1].Score
}

// Amperage returns the smallest fuse rating that carries the given number of groups.
func (p PanelRules) Amperage(groups int) int {
	for _, step := range p.AmperageSteps {
		if step.MaxGroups == 0 || groups <= step.MaxGroups {
			return step.Amperage
		}
	}
	return p.AmperageSteps[len(p.AmperageSteps)-1].Amperage
}
