// internal/estimation/offertext/engine.go
package offertext

import (
	"sort"
	"strconv"
	"strings"

	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ObsPointsKey is the section key carrying customer-visible risk caveats.
const ObsPointsKey = "obs_points"

var scopeBonus = map[models.TemplateScope]int{
	models.ScopeComponent: 40,
	models.ScopeCategory:  30,
	models.ScopeRoomType:  20,
	models.ScopeGlobal:    10,
}

var buildingLabels = map[models.BuildingType]string{
	models.BuildingHouse:      "hus",
	models.BuildingApartment:  "lejlighed",
	models.BuildingCommercial: "erhvervsbygning",
	models.BuildingIndustrial: "industribygning",
	models.BuildingUnknown:    "bygning",
}

var roomLabels = map[string]string{
	models.RoomKitchen:    "køkken",
	models.RoomBathroom:   "badeværelse",
	models.RoomBedroom:    "soveværelse",
	models.RoomLivingRoom: "stue",
	models.RoomOffice:     "kontor",
	models.RoomHallway:    "gang",
	models.RoomUtility:    "bryggers",
	models.RoomGarage:     "garage",
	models.RoomBasement:   "kælder",
	models.RoomOutdoor:    "udendørs",
	models.RoomOther:      "øvrige rum",
}

// Context is what templates are filtered against and rendered with. A nil
// TotalPrice leaves the total_price token unrendered.
type Context struct {
	BuildingType models.BuildingType           `json:"buildingType"`
	RoomTypes    []string                      `json:"roomTypes"`
	RoomCount    int                           `json:"roomCount"`
	Components   []models.CalculationComponent `json:"components"`
	Materials    []models.CalculationMaterial  `json:"materials"`
	TotalPrice   *float64                      `json:"totalPrice,omitempty"`
	ObsPoints    []string                      `json:"obsPoints,omitempty"`
}

// NewContext derives the text context from the upstream results. calc and
// analysis are optional.
func NewContext(interp models.Interpretation, calc *models.Calculation, analysis *risk.Analysis) Context {
	c := Context{
		BuildingType: interp.BuildingType,
		RoomTypes:    interp.RoomTypes(),
		RoomCount:    len(interp.Rooms),
	}
	if calc != nil {
		c.Components = calc.Components
		c.Materials = calc.Materials
		price := calc.Price.TotalPrice
		c.TotalPrice = &price
	}
	if analysis != nil {
		c.ObsPoints = analysis.ObsPoints
	}
	return c
}

func (c Context) componentCodes() map[string]bool {
	codes := make(map[string]bool, len(c.Components)+len(c.Materials))
	for _, comp := range c.Components {
		codes[comp.Code] = true
	}
	for _, m := range c.Materials {
		codes[m.Code] = true
	}
	return codes
}

// quantity is the amount a template's min/max conditions compare against:
// the matching component, the matching category, or everything.
func (c Context) quantity(t models.OfferTextTemplate) float64 {
	total := 0.0
	for _, comp := range c.Components {
		switch t.ScopeType {
		case models.ScopeComponent:
			if comp.Code != t.ScopeID {
				continue
			}
		case models.ScopeCategory:
			if comp.Category != t.ScopeID {
				continue
			}
		}
		total += comp.Quantity
	}
	return total
}

// Section is one rendered text block.
type Section struct {
	Key        string               `json:"key"`
	TemplateID string               `json:"templateId,omitempty"`
	ScopeType  models.TemplateScope `json:"scopeType,omitempty"`
	ScopeID    string               `json:"scopeId,omitempty"`
	Content    string               `json:"content"`
	Score      int                  `json:"score"`
	Required   bool                 `json:"required"`
}

// AssembledTexts holds the sections in descending score order, with the
// obs points section last.
type AssembledTexts struct {
	Sections []Section `json:"sections"`
}

// Text joins the content of every section with the given key.
func (a AssembledTexts) Text(key string) string {
	var parts []string
	for _, s := range a.Sections {
		if s.Key == key {
			parts = append(parts, s.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (a AssembledTexts) Has(key string) bool {
	for _, s := range a.Sections {
		if s.Key == key {
			return true
		}
	}
	return false
}

// Render joins every section into one customer-facing text.
func (a AssembledTexts) Render() string {
	parts := make([]string, 0, len(a.Sections))
	for _, s := range a.Sections {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Engine assembles offer texts. It is read-only after construction.
type Engine struct {
	defaults []models.OfferTextTemplate
	printer  *message.Printer
	logger   logger.Logger
}

func NewEngine(defaults []models.OfferTextTemplate, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Engine{
		defaults: append([]models.OfferTextTemplate(nil), defaults...),
		printer:  message.NewPrinter(language.Danish),
		logger:   log.WithFields(map[string]interface{}{"component": "offertext"}),
	}
}

func NewDefaultEngine(log logger.Logger) *Engine {
	return NewEngine(DefaultTemplates(), log)
}

type candidate struct {
	tmpl  models.OfferTextTemplate
	score int
}

// Assemble filters, scores and deduplicates the given templates together
// with the built-in defaults, then renders the survivors.
func (e *Engine) Assemble(templates []models.OfferTextTemplate, c Context) AssembledTexts {
	all := make([]models.OfferTextTemplate, 0, len(templates)+len(e.defaults))
	all = append(all, templates...)
	all = append(all, e.defaults...)

	codes := c.componentCodes()
	var candidates []candidate
	for _, t := range all {
		if !t.IsActive || !conditionsHold(t, c, codes) {
			continue
		}
		candidates = append(candidates, candidate{tmpl: t, score: Score(t)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	vars := e.variables(c)
	out := AssembledTexts{Sections: []Section{}}
	for _, cand := range dedupe(candidates) {
		t := cand.tmpl
		out.Sections = append(out.Sections, Section{
			Key:        t.TemplateKey,
			TemplateID: t.ID,
			ScopeType:  t.ScopeType,
			ScopeID:    t.ScopeID,
			Content:    vars.Replace(t.Content),
			Score:      cand.score,
			Required:   t.IsRequired,
		})
	}

	if len(c.ObsPoints) > 0 {
		var b strings.Builder
		b.WriteString("Vær opmærksom på:")
		for _, p := range c.ObsPoints {
			b.WriteString("\n- ")
			b.WriteString(p)
		}
		out.Sections = append(out.Sections, Section{Key: ObsPointsKey, Content: b.String()})
	}

	e.logger.Debug("offer texts assembled", map[string]interface{}{
		"templates":  len(all),
		"candidates": len(candidates),
		"sections":   len(out.Sections),
	})
	return out
}

// dedupe keeps every required template and, per (template_key, scope_id),
// the highest-scored optional one. Candidates must be sorted by score.
func dedupe(candidates []candidate) []candidate {
	keptOptional := make(map[string]bool)
	out := make([]candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.tmpl.IsRequired {
			out = append(out, cand)
			continue
		}
		key := cand.tmpl.TemplateKey + "\x00" + cand.tmpl.ScopeID
		if keptOptional[key] {
			continue
		}
		keptOptional[key] = true
		out = append(out, cand)
	}
	return out
}

// Score ranks a template by priority, scope specificity and the number of
// declared conditions.
func Score(t models.OfferTextTemplate) int {
	return t.Priority*10 + scopeBonus[t.ScopeType] + 5*t.Conditions.DeclaredCount()
}

func conditionsHold(t models.OfferTextTemplate, c Context, codes map[string]bool) bool {
	cond := t.Conditions
	if cond.MinQuantity != nil || cond.MaxQuantity != nil {
		q := c.quantity(t)
		if cond.MinQuantity != nil && q < *cond.MinQuantity {
			return false
		}
		if cond.MaxQuantity != nil && q > *cond.MaxQuantity {
			return false
		}
	}
	if len(cond.BuildingProfiles) > 0 && !contains(cond.BuildingProfiles, string(c.BuildingType)) {
		return false
	}
	if len(cond.RoomTypes) > 0 && !intersects(cond.RoomTypes, c.RoomTypes) {
		return false
	}
	if len(cond.ComponentCodes) > 0 {
		found := false
		for _, code := range cond.ComponentCodes {
			if codes[code] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// variables builds the literal token replacer. Tokens outside this set stay
// in the text as written.
func (e *Engine) variables(c Context) *strings.Replacer {
	buildingType := c.BuildingType
	if buildingType == "" {
		buildingType = models.BuildingUnknown
	}
	label, ok := buildingLabels[buildingType]
	if !ok {
		label = string(buildingType)
	}

	roomNames := make([]string, 0, len(c.RoomTypes))
	for _, rt := range c.RoomTypes {
		if name, ok := roomLabels[rt]; ok {
			roomNames = append(roomNames, name)
			continue
		}
		roomNames = append(roomNames, rt)
	}

	pairs := []string{
		"{{room_count}}", strconv.Itoa(c.RoomCount),
		"{{component_count}}", strconv.Itoa(len(c.Components)),
		"{{building_type}}", label,
		"{{room_types}}", strings.Join(roomNames, ", "),
	}
	if c.TotalPrice != nil {
		pairs = append(pairs, "{{total_price}}", e.FormatDKK(*c.TotalPrice))
	}
	return strings.NewReplacer(pairs...)
}

// FormatDKK formats an amount the Danish way, e.g. "18.750,50 kr.".
func (e *Engine) FormatDKK(amount float64) string {
	return e.printer.Sprintf("%.2f kr.", amount)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
