// internal/estimation/offertext/engine_test.go
package offertext

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func tmpl(id string, scope models.TemplateScope, scopeID, key, content string, priority int) models.OfferTextTemplate {
	return models.OfferTextTemplate{
		ID:          id,
		ScopeType:   scope,
		ScopeID:     scopeID,
		TemplateKey: key,
		Content:     content,
		Priority:    priority,
		IsActive:    true,
	}
}

func sectionIDs(a AssembledTexts) []string {
	out := make([]string, 0, len(a.Sections))
	for _, s := range a.Sections {
		out = append(out, s.TemplateID)
	}
	return out
}

// ==========================
// Scoring
// ==========================

func TestScore(t *testing.T) {
	withConditions := tmpl("c", models.ScopeComponent, "EL-OUTLET", "k", "", 2)
	withConditions.Conditions = models.TemplateConditions{
		MinQuantity:    floatPtr(1),
		ComponentCodes: []string{"EL-OUTLET"},
		RoomTypes:      []string{},
	}

	tests := []struct {
		name string
		t    models.OfferTextTemplate
		want int
	}{
		{"global", tmpl("g", models.ScopeGlobal, "", "k", "", 0), 10},
		{"room type", tmpl("r", models.ScopeRoomType, "kitchen", "k", "", 1), 30},
		{"category", tmpl("cat", models.ScopeCategory, "dedicated", "k", "", 3), 60},
		{"component with two declared conditions", withConditions, 70},
		{"unknown scope", tmpl("u", "other", "", "k", "", 1), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.t))
		})
	}
}

// ==========================
// Filtering
// ==========================

func TestAssemble_Conditions(t *testing.T) {
	c := Context{
		BuildingType: models.BuildingHouse,
		RoomTypes:    []string{models.RoomKitchen, models.RoomBedroom},
		RoomCount:    3,
		Components: []models.CalculationComponent{
			{Code: "EL-OUTLET", Category: "installation", Quantity: 12},
			{Code: "EL-STOVE", Category: "dedicated", Quantity: 1},
		},
		Materials: []models.CalculationMaterial{{Code: "MAT-EV-CHARGER", Quantity: 1}},
	}

	inactive := tmpl("inactive", models.ScopeGlobal, "", "a", "", 0)
	inactive.IsActive = false

	minOK := tmpl("min-ok", models.ScopeComponent, "EL-OUTLET", "b", "", 0)
	minOK.Conditions.MinQuantity = floatPtr(10)
	minFail := tmpl("min-fail", models.ScopeComponent, "EL-STOVE", "c", "", 0)
	minFail.Conditions.MinQuantity = floatPtr(2)
	maxFail := tmpl("max-fail", models.ScopeGlobal, "", "d", "", 0)
	maxFail.Conditions.MaxQuantity = floatPtr(5)
	categoryOK := tmpl("category-ok", models.ScopeCategory, "dedicated", "e", "", 0)
	categoryOK.Conditions.MaxQuantity = floatPtr(1)

	profileOK := tmpl("profile-ok", models.ScopeGlobal, "", "f", "", 0)
	profileOK.Conditions.BuildingProfiles = []string{"apartment", "house"}
	profileFail := tmpl("profile-fail", models.ScopeGlobal, "", "g", "", 0)
	profileFail.Conditions.BuildingProfiles = []string{"commercial"}

	roomOK := tmpl("room-ok", models.ScopeRoomType, "kitchen", "h", "", 0)
	roomOK.Conditions.RoomTypes = []string{models.RoomBathroom, models.RoomKitchen}
	roomFail := tmpl("room-fail", models.ScopeRoomType, "bathroom", "i", "", 0)
	roomFail.Conditions.RoomTypes = []string{models.RoomBathroom}

	materialCode := tmpl("material-code", models.ScopeComponent, "MAT-EV-CHARGER", "j", "", 0)
	materialCode.Conditions.ComponentCodes = []string{"MAT-EV-CHARGER"}
	codeFail := tmpl("code-fail", models.ScopeComponent, "EL-PANEL-NEW", "k", "", 0)
	codeFail.Conditions.ComponentCodes = []string{"EL-PANEL-NEW"}

	bothMustHold := tmpl("both", models.ScopeGlobal, "", "l", "", 0)
	bothMustHold.Conditions.BuildingProfiles = []string{"house"}
	bothMustHold.Conditions.RoomTypes = []string{models.RoomGarage}

	engine := NewEngine(nil, logger.NewTestLogger(t))
	out := engine.Assemble([]models.OfferTextTemplate{
		inactive, minOK, minFail, maxFail, categoryOK, profileOK, profileFail,
		roomOK, roomFail, materialCode, codeFail, bothMustHold,
	}, c)

	assert.ElementsMatch(t,
		[]string{"min-ok", "category-ok", "profile-ok", "room-ok", "material-code"},
		sectionIDs(out))
}

// ==========================
// Deduplication and Order
// ==========================

func TestAssemble_DedupeAndOrder(t *testing.T) {
	low := tmpl("low", models.ScopeGlobal, "", "intro", "low", 0)
	high := tmpl("high", models.ScopeGlobal, "", "intro", "high", 3)
	required := tmpl("required", models.ScopeGlobal, "", "intro", "required", 0)
	required.IsRequired = true
	otherScope := tmpl("other-scope", models.ScopeRoomType, "kitchen", "intro", "kitchen", 0)
	component := tmpl("component", models.ScopeComponent, "EL-OUTLET", "outlets", "outlets", 0)

	out := NewEngine(nil, nil).Assemble(
		[]models.OfferTextTemplate{low, required, high, otherScope, component},
		Context{},
	)

	assert.Equal(t, []string{"high", "component", "other-scope", "required"}, sectionIDs(out))
	for i := 1; i < len(out.Sections); i++ {
		assert.GreaterOrEqual(t, out.Sections[i-1].Score, out.Sections[i].Score)
	}
}

func TestAssemble_StoredTemplateOverridesDefault(t *testing.T) {
	stored := tmpl("stored-scope", models.ScopeGlobal, "", "technical_scope", "Vores egen tekst", 5)

	out := NewDefaultEngine(nil).Assemble([]models.OfferTextTemplate{stored}, Context{})

	assert.Equal(t, "Vores egen tekst", out.Text("technical_scope"))
	assert.True(t, out.Has("terms"))
}

// ==========================
// Substitution
// ==========================

func TestAssemble_Variables(t *testing.T) {
	c := Context{
		BuildingType: models.BuildingHouse,
		RoomTypes:    []string{models.RoomKitchen, models.RoomBedroom, "wine_cellar"},
		RoomCount:    4,
		Components:   []models.CalculationComponent{{Code: "A"}, {Code: "B"}},
		TotalPrice:   floatPtr(18750.5),
	}
	content := "{{room_count}} rum ({{room_types}}) i {{building_type}}, {{component_count}} linjer, {{total_price}} {{customer_name}}"

	out := NewEngine(nil, nil).Assemble([]models.OfferTextTemplate{tmpl("t", models.ScopeGlobal, "", "k", content, 0)}, c)

	require.Len(t, out.Sections, 1)
	assert.Equal(t,
		"4 rum (køkken, soveværelse, wine_cellar) i hus, 2 linjer, 18.750,50 kr. {{customer_name}}",
		out.Sections[0].Content)
}

func TestAssemble_MissingPriceLeavesToken(t *testing.T) {
	out := NewEngine(nil, nil).Assemble(
		[]models.OfferTextTemplate{tmpl("t", models.ScopeGlobal, "", "k", "Pris: {{total_price}} for {{building_type}}", 0)},
		Context{},
	)
	require.Len(t, out.Sections, 1)
	assert.Equal(t, "Pris: {{total_price}} for bygning", out.Sections[0].Content)
}

func TestFormatDKK(t *testing.T) {
	e := NewEngine(nil, nil)
	assert.Equal(t, "18.750,50 kr.", e.FormatDKK(18750.5))
	assert.Equal(t, "0,00 kr.", e.FormatDKK(0))
	assert.Equal(t, "1.234.567,89 kr.", e.FormatDKK(1234567.891))
}

// ==========================
// Defaults and OBS Points
// ==========================

func TestAssemble_DefaultsGuaranteeTechnicalScope(t *testing.T) {
	interp := models.Interpretation{
		BuildingType: models.BuildingHouse,
		Rooms:        []models.Room{{Name: "Køkken", Type: models.RoomKitchen}},
	}
	calc := models.Calculation{
		Components: []models.CalculationComponent{
			{Code: "EL-OUTLET", Category: "installation", Quantity: 8},
			{Code: "EL-PANEL-NEW", Category: "panel", Quantity: 1},
		},
		Price: models.PriceSummary{TotalPrice: 42000},
	}
	analysis := risk.Analysis{ObsPoints: []string{"Eltavlen udskiftes."}}

	out := NewDefaultEngine(nil).Assemble(nil, NewContext(interp, &calc, &analysis))

	assert.True(t, out.Has("technical_scope"))
	assert.Contains(t, out.Text("technical_scope"), "hus med 1 rum (køkken)")
	assert.Contains(t, out.Text("price_summary"), "42.000,00 kr.")
	assert.True(t, out.Has("panel"))
	assert.True(t, out.Has("room_kitchen"))
	assert.False(t, out.Has("room_bathroom"))

	last := out.Sections[len(out.Sections)-1]
	assert.Equal(t, ObsPointsKey, last.Key)
	assert.Contains(t, last.Content, "- Eltavlen udskiftes.")
}

func TestAssemble_NoObsSectionWithoutPoints(t *testing.T) {
	out := NewDefaultEngine(nil).Assemble(nil, Context{})
	assert.False(t, out.Has(ObsPointsKey))
	assert.True(t, out.Has("technical_scope"))
}

// ==========================
// Template Loading
// ==========================

func TestDefaultTemplates_Valid(t *testing.T) {
	templates := DefaultTemplates()
	require.NotEmpty(t, templates)
	for _, tpl := range templates {
		assert.NoError(t, ValidateTemplate(tpl), tpl.ID)
	}
}

func TestParseTemplates_Rejects(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "- id: [",
		"unknown scope":   "- {id: a, scope_type: building, template_key: k}",
		"missing scopeID": "- {id: a, scope_type: component, template_key: k}",
		"missing key":     "- {id: a, scope_type: global}",
		"min above max":   "- {id: a, scope_type: global, template_key: k, conditions: {min_quantity: 5, max_quantity: 1}}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTemplates([]byte(doc))
			assert.True(t, errors.Is(err, ErrTemplateLoad))
		})
	}
}

func TestLoadTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- {id: a, scope_type: global, template_key: k, content: hej, is_active: true}\n"), 0o600))

	templates, err := LoadTemplates(path)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "hej", templates[0].Content)

	_, err = LoadTemplates(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrTemplateLoad)
}

func TestLoadTemplatesOverDefaults_KeepsBuiltInKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"- {id: own-price, scope_type: global, template_key: price_summary, content: 'Fast pris: {{total_price}}', is_active: true}\n"), 0o600))

	templates, err := LoadTemplatesOverDefaults(path)
	require.NoError(t, err)
	assert.Len(t, templates, len(DefaultTemplates())+1)
	assert.Equal(t, "own-price", templates[0].ID)

	price := 18750.5
	out := NewEngine(templates, nil).Assemble(nil, Context{TotalPrice: &price})

	assert.True(t, out.Has("technical_scope"))
	assert.True(t, out.Has("terms"))
	assert.Equal(t, "Fast pris: 18.750,50 kr.", out.Text("price_summary"))

	_, err = LoadTemplatesOverDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrTemplateLoad)
}
