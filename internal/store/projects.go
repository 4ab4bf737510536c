// internal/store/projects.go
package store

import (
	"context"
	"fmt"

	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/models"
)

const projectStatusCompleted = "completed"

// ListCompletedProjects pages through completed projects with positive
// actual hours, oldest id first so paging is stable.
func (s *SQLStore) ListCompletedProjects(ctx context.Context, limit, offset int) ([]models.CompletedProject, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, actual_hours, offer_id
		FROM projects
		WHERE status = $1 AND actual_hours > 0 AND offer_id IS NOT NULL
		ORDER BY id
		LIMIT $2 OFFSET $3`, projectStatusCompleted, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list projects: %v", learning.ErrFeedbackQuery, err)
	}
	defer rows.Close()

	out := []models.CompletedProject{}
	for rows.Next() {
		var p models.CompletedProject
		if err := rows.Scan(&p.ID, &p.Name, &p.ActualHours, &p.OfferID); err != nil {
			return nil, fmt.Errorf("%w: scan project: %v", learning.ErrFeedbackQuery, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list projects: %v", learning.ErrFeedbackQuery, err)
	}
	return out, nil
}

// CompleteProject records a project as completed with its actual hours.
// Re-completing a project overwrites the hours.
func (s *SQLStore) CompleteProject(ctx context.Context, p models.CompletedProject) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, offer_id, status, actual_hours)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name, offer_id = excluded.offer_id,
		    status = excluded.status, actual_hours = excluded.actual_hours`,
		p.ID, p.Name, p.OfferID, projectStatusCompleted, p.ActualHours,
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProjectSave, p.ID, err)
	}

	s.logger.Info("project completed", map[string]interface{}{
		"projectId":   p.ID,
		"offerId":     p.OfferID,
		"actualHours": p.ActualHours,
	})
	return nil
}
