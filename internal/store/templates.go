// internal/store/templates.go
package store

import (
	"context"
	"fmt"

	"offer-estimation/internal/models"
)

// ListActiveTemplates loads every active offer text template. Inactive rows
// are filtered here and again by the offer text engine.
func (s *SQLStore) ListActiveTemplates(ctx context.Context) ([]models.OfferTextTemplate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope_type, scope_id, template_key, content, conditions,
		       priority, is_required, is_active
		FROM offer_text_templates
		WHERE is_active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateQuery, err)
	}
	defer rows.Close()

	out := []models.OfferTextTemplate{}
	for rows.Next() {
		var (
			t          models.OfferTextTemplate
			scopeType  string
			conditions []byte
		)
		if err := rows.Scan(
			&t.ID, &scopeType, &t.ScopeID, &t.TemplateKey, &t.Content, &conditions,
			&t.Priority, &t.IsRequired, &t.IsActive,
		); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrTemplateQuery, err)
		}
		t.ScopeType = models.TemplateScope(scopeType)
		if err := unmarshalJSON(conditions, &t.Conditions); err != nil {
			return nil, fmt.Errorf("%w: template %s conditions: %v", ErrTemplateQuery, t.ID, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateQuery, err)
	}
	return out, nil
}

// SaveTemplate inserts or replaces a template by id.
func (s *SQLStore) SaveTemplate(ctx context.Context, t models.OfferTextTemplate) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	conditions, err := marshalJSON(t.Conditions)
	if err != nil {
		return fmt.Errorf("%w: template %s: %v", ErrTemplateQuery, t.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offer_text_templates (
			id, scope_type, scope_id, template_key, content, conditions,
			priority, is_required, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET scope_type = excluded.scope_type, scope_id = excluded.scope_id,
		    template_key = excluded.template_key, content = excluded.content,
		    conditions = excluded.conditions, priority = excluded.priority,
		    is_required = excluded.is_required, is_active = excluded.is_active`,
		t.ID, string(t.ScopeType), t.ScopeID, t.TemplateKey, t.Content, conditions,
		t.Priority, t.IsRequired, t.IsActive,
	)
	if err != nil {
		return fmt.Errorf("%w: save template %s: %v", ErrTemplateQuery, t.ID, err)
	}
	return nil
}
