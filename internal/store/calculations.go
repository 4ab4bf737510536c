// internal/store/calculations.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/models"
)

const calculationColumns = `id, offer_id, complexity_score, components, materials,
	time_summary, price_summary, total_hours, total_price, created_at`

// SaveCalculation inserts a calculation. Calculations are immutable; saving
// an existing id fails.
func (s *SQLStore) SaveCalculation(ctx context.Context, calc models.Calculation) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	components, err := marshalJSON(calc.Components)
	if err != nil {
		return fmt.Errorf("%w: components: %v", ErrCalculationSave, err)
	}
	materials, err := marshalJSON(calc.Materials)
	if err != nil {
		return fmt.Errorf("%w: materials: %v", ErrCalculationSave, err)
	}
	timeSummary, err := marshalJSON(calc.Time)
	if err != nil {
		return fmt.Errorf("%w: time: %v", ErrCalculationSave, err)
	}
	price, err := marshalJSON(calc.Price)
	if err != nil {
		return fmt.Errorf("%w: price: %v", ErrCalculationSave, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculations (`+calculationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		calc.ID,
		calc.OfferID,
		calc.ComplexityScore,
		components,
		materials,
		timeSummary,
		price,
		calc.Time.TotalHours,
		calc.Price.TotalPrice,
		calc.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert %s: %v", ErrCalculationSave, calc.ID, err)
	}

	s.logger.Debug("calculation saved", map[string]interface{}{
		"calculationId": calc.ID,
		"offerId":       calc.OfferID,
		"totalPrice":    calc.Price.TotalPrice,
	})
	return nil
}

func (s *SQLStore) GetCalculation(ctx context.Context, id string) (*models.Calculation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+calculationColumns+`
		FROM calculations
		WHERE id = $1`, id)
	return scanCalculation(row)
}

func (s *SQLStore) LatestCalculationForOffer(ctx context.Context, offerID string) (*models.Calculation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+calculationColumns+`
		FROM calculations
		WHERE offer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, offerID)
	return scanCalculation(row)
}

func scanCalculation(row *sql.Row) (*models.Calculation, error) {
	var (
		calc                                           models.Calculation
		offerID                                        sql.NullString
		components, materials, timeSummary, priceBytes []byte
		totalHours, totalPrice                         float64
	)
	err := row.Scan(
		&calc.ID, &offerID, &calc.ComplexityScore,
		&components, &materials, &timeSummary, &priceBytes,
		&totalHours, &totalPrice, &calc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan calculation: %v", learning.ErrFeedbackQuery, err)
	}
	calc.OfferID = offerID.String

	for _, col := range []struct {
		data []byte
		dest interface{}
	}{
		{components, &calc.Components},
		{materials, &calc.Materials},
		{timeSummary, &calc.Time},
		{priceBytes, &calc.Price},
	} {
		if err := unmarshalJSON(col.data, col.dest); err != nil {
			return nil, fmt.Errorf("%w: calculation %s: %v", learning.ErrFeedbackQuery, calc.ID, err)
		}
	}
	if calc.Components == nil {
		calc.Components = []models.CalculationComponent{}
	}
	if calc.Materials == nil {
		calc.Materials = []models.CalculationMaterial{}
	}
	return &calc, nil
}
