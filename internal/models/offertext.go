// internal/models/offertext.go
package models

type TemplateScope string

const (
	ScopeComponent TemplateScope = "component"
	ScopeCategory  TemplateScope = "category"
	ScopeRoomType  TemplateScope = "room_type"
	ScopeGlobal    TemplateScope = "global"
)

// TemplateConditions are optional filters. A nil pointer or empty list means
// the condition was not declared and always holds.
type TemplateConditions struct {
	MinQuantity      *float64 `json:"minQuantity,omitempty" yaml:"min_quantity,omitempty"`
	MaxQuantity      *float64 `json:"maxQuantity,omitempty" yaml:"max_quantity,omitempty"`
	BuildingProfiles []string `json:"buildingProfiles,omitempty" yaml:"building_profiles,omitempty"`
	RoomTypes        []string `json:"roomTypes,omitempty" yaml:"room_types,omitempty"`
	ComponentCodes   []string `json:"componentCodes,omitempty" yaml:"component_codes,omitempty"`
}

// DeclaredCount returns how many conditions carry a value.
func (c TemplateConditions) DeclaredCount() int {
	n := 0
	if c.MinQuantity != nil {
		n++
	}
	if c.MaxQuantity != nil {
		n++
	}
	if len(c.BuildingProfiles) > 0 {
		n++
	}
	if len(c.RoomTypes) > 0 {
		n++
	}
	if len(c.ComponentCodes) > 0 {
		n++
	}
	return n
}

type OfferTextTemplate struct {
	ID          string             `json:"id" yaml:"id"`
	ScopeType   TemplateScope      `json:"scopeType" yaml:"scope_type"`
	ScopeID     string             `json:"scopeId" yaml:"scope_id"`
	TemplateKey string             `json:"templateKey" yaml:"template_key"`
	Content     string             `json:"content" yaml:"content"`
	Conditions  TemplateConditions `json:"conditions" yaml:"conditions"`
	Priority    int                `json:"priority" yaml:"priority"`
	IsRequired  bool               `json:"isRequired" yaml:"is_required"`
	IsActive    bool               `json:"isActive" yaml:"is_active"`
}
