// internal/estimation/offertext/templates.go
package offertext

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"offer-estimation/internal/models"

	"gopkg.in/yaml.v3"
)

var (
	ErrTemplateLoad = errors.New("TEMPLATE_LOAD_FAILED")
)

//go:embed default_templates.yaml
var defaultTemplatesYAML []byte

// DefaultTemplates returns a fresh copy of the built-in templates.
func DefaultTemplates() []models.OfferTextTemplate {
	templates, err := ParseTemplates(defaultTemplatesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded offer templates are invalid: %v", err))
	}
	return templates
}

// LoadTemplatesOverDefaults reads a template file and lists its templates
// ahead of the built-ins, so a file template wins a tie for its key and
// every built-in key stays covered.
func LoadTemplatesOverDefaults(path string) ([]models.OfferTextTemplate, error) {
	templates, err := LoadTemplates(path)
	if err != nil {
		return nil, err
	}
	return append(templates, DefaultTemplates()...), nil
}

// LoadTemplates reads a YAML template list from disk.
func LoadTemplates(path string) ([]models.OfferTextTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateLoad, err)
	}
	return ParseTemplates(data)
}

func ParseTemplates(data []byte) ([]models.OfferTextTemplate, error) {
	var templates []models.OfferTextTemplate
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateLoad, err)
	}
	for i, t := range templates {
		if err := ValidateTemplate(t); err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
	}
	return templates, nil
}

// ValidateTemplate checks the fields the engine relies on.
func ValidateTemplate(t models.OfferTextTemplate) error {
	switch t.ScopeType {
	case models.ScopeComponent, models.ScopeCategory, models.ScopeRoomType:
		if t.ScopeID == "" {
			return fmt.Errorf("%w: %s template %q needs a scope id", ErrTemplateLoad, t.ScopeType, t.ID)
		}
	case models.ScopeGlobal:
	default:
		return fmt.Errorf("%w: template %q has unknown scope type %q", ErrTemplateLoad, t.ID, t.ScopeType)
	}
	if t.TemplateKey == "" {
		return fmt.Errorf("%w: template %q has no key", ErrTemplateLoad, t.ID)
	}
	c := t.Conditions
	if c.MinQuantity != nil && c.MaxQuantity != nil && *c.MinQuantity > *c.MaxQuantity {
		return fmt.Errorf("%w: template %q has min quantity above max quantity", ErrTemplateLoad, t.ID)
	}
	return nil
}
