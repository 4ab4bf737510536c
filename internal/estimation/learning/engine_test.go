// internal/estimation/learning/engine_test.go
package learning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// In-memory store
// ==========================

type memStore struct {
	mu           sync.Mutex
	feedback     []models.Feedback
	calculations map[string]models.Calculation
	offerCalc    map[string]string
	projects     []models.CompletedProject
	adjustments  []models.Adjustment

	insertErr error
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		calculations: map[string]models.Calculation{},
		offerCalc:    map[string]string{},
	}
}

func (s *memStore) ListFeedbackWithActuals(ctx context.Context, limit, offset int) ([]models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.Feedback
	for _, fb := range s.feedback {
		if fb.ActualHours != nil {
			rows = append(rows, fb)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (s *memStore) GetFeedbackByCalculationID(ctx context.Context, calculationID string) (*models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fb := range s.feedback {
		if fb.CalculationID == calculationID {
			found := fb
			return &found, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertFeedback(ctx context.Context, fb models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, existing := range s.feedback {
		if existing.CalculationID == fb.CalculationID {
			return ErrDuplicateFeedback
		}
	}
	s.feedback = append(s.feedback, fb)
	return nil
}

func (s *memStore) GetCalculation(ctx context.Context, id string) (*models.Calculation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	calc, ok := s.calculations[id]
	if !ok {
		return nil, nil
	}
	return &calc, nil
}

func (s *memStore) LatestCalculationForOffer(ctx context.Context, offerID string) (*models.Calculation, error) {
	s.mu.Lock()
	id, ok := s.offerCalc[offerID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return s.GetCalculation(ctx, id)
}

func (s *memStore) ListCompletedProjects(ctx context.Context, limit, offset int) ([]models.CompletedProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.projects) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.projects) {
		end = len(s.projects)
	}
	return s.projects[offset:end], nil
}

func (s *memStore) AppendAdjustment(ctx context.Context, adj models.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.adjustments = append(s.adjustments, adj)
	return nil
}

func (s *memStore) ListAdjustments(ctx context.Context, limit, offset int) ([]models.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.adjustments) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.adjustments) {
		end = len(s.adjustments)
	}
	return s.adjustments[offset:end], nil
}

// ==========================
// Helpers
// ==========================

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func floatPtr(v float64) *float64 { return &v }

func newTestEngine(t *testing.T, store *memStore, cfg Config) *Engine {
	t.Helper()
	n := 0
	return NewEngine(store, calculation.DefaultCoefficients(), cfg, logger.NewTestLogger(t),
		WithClock(func() time.Time { return baseTime }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
}

// addFeedback appends rows newest first with the given hour variances.
func addFeedback(store *memStore, variances ...float64) {
	for _, v := range variances {
		estimated := 10.0
		actual := estimated * (1 + v/100)
		store.feedback = append(store.feedback, models.Feedback{
			ID:             fmt.Sprintf("fb-%d", len(store.feedback)),
			CalculationID:  fmt.Sprintf("calc-%d", len(store.feedback)),
			EstimatedHours: estimated,
			ActualHours:    floatPtr(actual),
			OfferAccepted:  true,
			CreatedAt:      baseTime.Add(-time.Duration(len(store.feedback)) * time.Hour),
		})
	}
}

// addCalibrationRow stores a calculation with the given components and a
// feedback row whose actual hours are ratio times the estimate.
func addCalibrationRow(store *memStore, id string, ratio float64, components ...models.CalculationComponent) {
	minutes := 0.0
	for _, c := range components {
		minutes += c.Quantity * c.UnitTimeMinutes
	}
	store.calculations[id] = models.Calculation{ID: id, Components: components}
	estimated := minutes / 60
	store.feedback = append(store.feedback, models.Feedback{
		ID:             "fb-" + id,
		CalculationID:  id,
		EstimatedHours: estimated,
		ActualHours:    floatPtr(estimated * ratio),
		CreatedAt:      baseTime.Add(-time.Duration(len(store.feedback)) * time.Hour),
	})
}

var (
	outlet = models.CalculationComponent{Code: "EL-OUTLET", Name: "Stikkontakt", Quantity: 10, UnitTimeMinutes: 30}
	light  = models.CalculationComponent{Code: "EL-LIGHT", Name: "Lampeudtag", Quantity: 4, UnitTimeMinutes: 25}
)

// ==========================
// Learning Metrics
// ==========================

func TestAnalyzeLearningMetrics_FewRows(t *testing.T) {
	store := newMemStore()
	addFeedback(store, 10, -20, 30)

	m, err := newTestEngine(t, store, Config{}).AnalyzeLearningMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, m.SampleCount)
	assert.InDelta(t, 6.67, m.AverageHoursVariancePct, 0.001)
	assert.InDelta(t, 20.0, m.AverageAbsHoursVariancePct, 0.001)
	assert.InDelta(t, 20.0, m.RecentAbsVariancePct, 0.001)
	assert.Nil(t, m.PreviousAbsVariancePct)
	assert.False(t, m.Improving)
	assert.Equal(t, 1.0, m.AcceptanceRate)
	assert.Nil(t, m.AverageMaterialVariancePct)
}

func TestAnalyzeLearningMetrics_Empty(t *testing.T) {
	m, err := newTestEngine(t, newMemStore(), Config{}).AnalyzeLearningMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Metrics{}, m)
}

func TestAnalyzeLearningMetrics_Trend(t *testing.T) {
	store := newMemStore()
	recent := []float64{5, -5, 5, -5, 5, -5, 5, -5, 5, -5}
	previous := []float64{20, -20, 20, -20, 20, -20, 20, -20, 20, -20}
	older := []float64{90, 90, 90}
	addFeedback(store, append(append(recent, previous...), older...)...)

	m, err := newTestEngine(t, store, Config{PageSize: 7}).AnalyzeLearningMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 23, m.SampleCount)
	assert.InDelta(t, 5.0, m.RecentAbsVariancePct, 0.001)
	require.NotNil(t, m.PreviousAbsVariancePct)
	assert.InDelta(t, 20.0, *m.PreviousAbsVariancePct, 0.001)
	assert.True(t, m.Improving)
}

func TestAnalyzeLearningMetrics_ZeroEstimateIsSkipped(t *testing.T) {
	store := newMemStore()
	addFeedback(store, 10)
	store.feedback = append(store.feedback, models.Feedback{
		ID:             "zero",
		CalculationID:  "calc-zero",
		EstimatedHours: 0,
		ActualHours:    floatPtr(8),
		CreatedAt:      baseTime.Add(-48 * time.Hour),
	})

	m, err := newTestEngine(t, store, Config{}).AnalyzeLearningMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.SampleCount)
	assert.InDelta(t, 10.0, m.AverageHoursVariancePct, 0.001)
}

func TestAnalyzeLearningMetrics_RowCap(t *testing.T) {
	store := newMemStore()
	addFeedback(store, 1, 2, 3, 4, 5, 6, 7, 8)

	m, err := newTestEngine(t, store, Config{PageSize: 3, MaxRows: 5}).AnalyzeLearningMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, m.SampleCount)
}

// ==========================
// Component Calibration
// ==========================

func TestAnalyzeComponentCalibration_ProportionalDistribution(t *testing.T) {
	store := newMemStore()
	addCalibrationRow(store, "c1", 1.2, outlet, light)
	addCalibrationRow(store, "c2", 1.2, outlet, light)
	addCalibrationRow(store, "c3", 1.2, outlet)

	calibrations, err := newTestEngine(t, store, Config{}).AnalyzeComponentCalibration(context.Background())
	require.NoError(t, err)

	// EL-LIGHT has two samples and is left out. EL-OUTLET inherits the overall
	// 20% overrun of every project it appeared in, whatever its own time was.
	require.Len(t, calibrations, 1)
	c := calibrations[0]
	assert.Equal(t, "EL-OUTLET", c.Code)
	assert.Equal(t, 3, c.Samples)
	assert.InDelta(t, 20.0, c.VariancePct, 0.001)
	assert.InDelta(t, 300.0, c.AverageEstimatedMinutes, 0.001)
	assert.InDelta(t, 360.0, c.AverageActualMinutes, 0.001)
	assert.InDelta(t, 1.2, c.SuggestedTimeFactor, 0.0001)
	assert.Equal(t, 1.0, c.CurrentTimeFactor)
	assert.Equal(t, 0.65, c.Confidence)
}

func TestAnalyzeComponentCalibration_SmallVarianceIgnored(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 4; i++ {
		addCalibrationRow(store, fmt.Sprintf("c%d", i), 1.05, outlet)
	}

	calibrations, err := newTestEngine(t, store, Config{}).AnalyzeComponentCalibration(context.Background())
	require.NoError(t, err)
	assert.Empty(t, calibrations)
}

func TestAnalyzeComponentCalibration_NeverBelowMinimumSamples(t *testing.T) {
	for rows := 0; rows < 3; rows++ {
		store := newMemStore()
		for i := 0; i < rows; i++ {
			addCalibrationRow(store, fmt.Sprintf("c%d", i), 2.0, outlet, light)
		}
		calibrations, err := newTestEngine(t, store, Config{}).AnalyzeComponentCalibration(context.Background())
		require.NoError(t, err)
		assert.Empty(t, calibrations, "rows=%d", rows)
	}
}

func TestAnalyzeComponentCalibration_MissingCalculationSkipped(t *testing.T) {
	store := newMemStore()
	addCalibrationRow(store, "c1", 1.5, outlet)
	addCalibrationRow(store, "c2", 1.5, outlet)
	addCalibrationRow(store, "c3", 1.5, outlet)
	delete(store.calculations, "c3")

	calibrations, err := newTestEngine(t, store, Config{}).AnalyzeComponentCalibration(context.Background())
	require.NoError(t, err)
	assert.Empty(t, calibrations)
}

// ==========================
// Risk Buffer
// ==========================

func TestGetSuggestedRiskBuffer_FallbackTable(t *testing.T) {
	store := newMemStore()
	addFeedback(store, 50, 60, 70, 80)
	engine := newTestEngine(t, store, Config{})

	for score, want := range []float64{0, 3, 5, 7.5, 10, 15} {
		got, err := engine.GetSuggestedRiskBuffer(context.Background(), score)
		require.NoError(t, err)
		assert.Equal(t, want, got, "score=%d", score)
	}
}

func TestGetSuggestedRiskBuffer_FromHistory(t *testing.T) {
	store := newMemStore()
	addFeedback(store, 10, 20, -5, 30, 40)
	engine := newTestEngine(t, store, Config{})

	tests := map[int]float64{3: 40, 5: 48, 1: 32}
	for score, want := range tests {
		got, err := engine.GetSuggestedRiskBuffer(context.Background(), score)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 0.001, "score=%d", score)
	}
}

func TestGetSuggestedRiskBuffer_MaterialOverrunCounts(t *testing.T) {
	store := newMemStore()
	addFeedback(store, -10, -10, -10, -10, 5)
	store.feedback[0].MaterialVariancePercentage = floatPtr(50)

	got, err := newTestEngine(t, store, Config{}).GetSuggestedRiskBuffer(context.Background(), 3)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got, 0.001)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 80))
	assert.Equal(t, 7.0, percentile([]float64{7}, 80))
	assert.Equal(t, 40.0, percentile([]float64{40, 10, 30, 20}, 80))
	assert.Equal(t, 8.0, percentile([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 80))
}

// ==========================
// Feedback Collection
// ==========================

func collectionStore() *memStore {
	store := newMemStore()
	store.calculations["calc-1"] = models.Calculation{ID: "calc-1", Time: models.TimeSummary{TotalHours: 20}, Price: models.PriceSummary{MaterialCost: 5000}, ComplexityScore: 3}
	store.calculations["calc-2"] = models.Calculation{ID: "calc-2", Time: models.TimeSummary{TotalHours: 0}}
	store.offerCalc["offer-1"] = "calc-1"
	store.offerCalc["offer-2"] = "calc-2"
	store.projects = []models.CompletedProject{
		{ID: "p1", Name: "Villa", ActualHours: 25, OfferID: "offer-1"},
		{ID: "p2", Name: "Lejlighed", ActualHours: 8, OfferID: "offer-2"},
		{ID: "p3", Name: "Uden tilbud", ActualHours: 8, OfferID: "offer-unknown"},
		{ID: "p4", Name: "Uden timer", ActualHours: 0, OfferID: "offer-1"},
		{ID: "p5", Name: "Samme tilbud", ActualHours: 30, OfferID: "offer-1"},
	}
	return store
}

func TestCollectFeedbackFromProjects_Idempotent(t *testing.T) {
	store := collectionStore()
	engine := newTestEngine(t, store, Config{PageSize: 2})

	first, err := engine.CollectFeedbackFromProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CollectResult{Scanned: 5, Inserted: 2, Existing: 1, Skipped: 2}, first)
	require.Len(t, store.feedback, 2)

	second, err := engine.CollectFeedbackFromProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Existing)
	assert.Len(t, store.feedback, 2)

	fb := store.feedback[0]
	assert.Equal(t, "calc-1", fb.CalculationID)
	assert.Equal(t, "p1", fb.ProjectID)
	assert.Equal(t, 20.0, fb.EstimatedHours)
	require.NotNil(t, fb.HoursVariancePercentage)
	assert.Equal(t, 25.0, *fb.HoursVariancePercentage)
	assert.Equal(t, baseTime, fb.CreatedAt)

	zero := store.feedback[1]
	assert.Equal(t, "calc-2", zero.CalculationID)
	assert.Nil(t, zero.HoursVariancePercentage)
}

func TestCollectFeedbackFromProjects_Concurrent(t *testing.T) {
	store := collectionStore()
	engine := newTestEngine(t, store, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CollectFeedbackFromProjects(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.feedback, 2)
}

func TestCollectFeedbackFromProjects_InsertFailure(t *testing.T) {
	store := collectionStore()
	store.insertErr = errors.New("disk full")

	result, err := newTestEngine(t, store, Config{}).CollectFeedbackFromProjects(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeedbackInsert)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, 0, result.Inserted)
	assert.Empty(t, store.feedback)
}

// ==========================
// Auto Calibration and Adjustments
// ==========================

func TestAutoCalibrate_ProposesWithoutApplying(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 6; i++ {
		addCalibrationRow(store, fmt.Sprintf("c%d", i), 1.3, outlet)
		store.feedback[i].MaterialVariancePercentage = floatPtr(20)
	}
	// Three samples is below the confidence threshold.
	for i := 0; i < 3; i++ {
		addCalibrationRow(store, fmt.Sprintf("l%d", i), 1.5, light)
	}

	engine := newTestEngine(t, store, Config{})
	proposals, err := engine.AutoCalibrate(context.Background())
	require.NoError(t, err)

	require.Len(t, proposals, 2)
	timeAdj := proposals[0]
	assert.Equal(t, models.AdjustmentTime, timeAdj.Type)
	assert.Equal(t, "EL-OUTLET", timeAdj.ComponentOrFactor)
	assert.Equal(t, 1.0, timeAdj.OldValue)
	assert.InDelta(t, 1.3, timeAdj.NewValue, 0.0001)
	assert.Equal(t, 0.8, timeAdj.Confidence)
	assert.Nil(t, timeAdj.AppliedAt)

	materialAdj := proposals[1]
	assert.Equal(t, models.AdjustmentMaterial, materialAdj.Type)
	assert.Equal(t, calculation.FactorMaterialCost, materialAdj.ComponentOrFactor)
	assert.InDelta(t, 1.2, materialAdj.NewValue, 0.0001)

	assert.Empty(t, store.adjustments)
	assert.Equal(t, 1.0, engine.coefficients.TimeFactor("EL-OUTLET"))
}

func TestRecordAdjustment(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(t, store, Config{})

	_, err := engine.RecordAdjustment(context.Background(), models.Adjustment{Type: models.AdjustmentTime, NewValue: 1.2}, "ops")
	assert.ErrorIs(t, err, calculation.ErrInvalidAdjustment)
	assert.Empty(t, store.adjustments)

	recorded, err := engine.RecordAdjustment(context.Background(), models.Adjustment{
		Type:              models.AdjustmentTime,
		ComponentOrFactor: "EL-OUTLET",
		OldValue:          1.0,
		NewValue:          1.2,
		Reason:            "outlets run 20% over",
	}, "ops")
	require.NoError(t, err)
	assert.Equal(t, "id-1", recorded.ID)
	assert.Equal(t, "ops", recorded.AppliedBy)
	require.NotNil(t, recorded.AppliedAt)
	assert.Equal(t, baseTime, *recorded.AppliedAt)
	require.Len(t, store.adjustments, 1)

	store.appendErr = errors.New("read-only")
	_, err = engine.RecordAdjustment(context.Background(), models.Adjustment{
		Type: models.AdjustmentMargin, NewValue: 18, Reason: "margin review",
	}, "")
	assert.ErrorIs(t, err, ErrAdjustmentRecord)
	assert.Len(t, store.adjustments, 1)
}

func TestCurrentCoefficients_FoldsTrail(t *testing.T) {
	store := newMemStore()
	store.adjustments = []models.Adjustment{
		{ID: "a1", Type: models.AdjustmentTime, ComponentOrFactor: "EL-OUTLET", NewValue: 1.2, Reason: "first"},
		{ID: "a2", Type: models.AdjustmentTime, ComponentOrFactor: "EL-OUTLET", NewValue: 1.1, Reason: "second"},
		{ID: "a3", Type: models.AdjustmentRiskBuffer, ComponentOrFactor: calculation.RiskBufferFactor(2), NewValue: 6, Reason: "third"},
	}
	base := calculation.DefaultCoefficients()

	current, err := newTestEngine(t, store, Config{PageSize: 2}).CurrentCoefficients(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, 1.1, current.TimeFactor("EL-OUTLET"))
	assert.Equal(t, 6.0, current.RiskBuffer(2))
	assert.Equal(t, 1.0, base.TimeFactor("EL-OUTLET"))
}

// ==========================
// Calibrating After Adjustments
// ==========================

func pricedAt(c models.CalculationComponent, factor float64) models.CalculationComponent {
	c.TimeFactor = factor
	return c
}

func recordedOutletFactor(store *memStore, factor float64) {
	applied := baseTime.Add(-1000 * time.Hour)
	store.adjustments = append(store.adjustments, models.Adjustment{
		ID:                fmt.Sprintf("adj-%d", len(store.adjustments)),
		Type:              models.AdjustmentTime,
		ComponentOrFactor: "EL-OUTLET",
		OldValue:          1.0,
		NewValue:          factor,
		Reason:            "outlets ran over",
		AppliedAt:         &applied,
	})
}

func TestAutoCalibrate_StartsFromRecordedFactor(t *testing.T) {
	store := newMemStore()
	recordedOutletFactor(store, 1.3)
	for i := 0; i < 6; i++ {
		addCalibrationRow(store, fmt.Sprintf("c%d", i), 1.2, pricedAt(outlet, 1.3))
	}

	proposals, err := newTestEngine(t, store, Config{}).AutoCalibrate(context.Background())
	require.NoError(t, err)

	require.Len(t, proposals, 1)
	assert.Equal(t, "EL-OUTLET", proposals[0].ComponentOrFactor)
	assert.Equal(t, 1.3, proposals[0].OldValue)
	assert.InDelta(t, 1.56, proposals[0].NewValue, 0.0001)
	assert.InDelta(t, 20.0, proposals[0].VariancePercentage, 0.001)
}

func TestAutoCalibrate_AbsorbedOverrunIsNotProposedAgain(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 6; i++ {
		addCalibrationRow(store, fmt.Sprintf("c%d", i), 1.3, pricedAt(outlet, 1.0))
	}
	engine := newTestEngine(t, store, Config{})

	before, err := engine.AutoCalibrate(context.Background())
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.InDelta(t, 1.3, before[0].NewValue, 0.0001)

	recordedOutletFactor(store, 1.3)
	after, err := engine.AutoCalibrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, after)

	calibrations, err := engine.AnalyzeComponentCalibration(context.Background())
	require.NoError(t, err)
	assert.Empty(t, calibrations)
}

func TestAnalyzeComponentCalibration_LegacyRowsUseFactorAtCreation(t *testing.T) {
	store := newMemStore()
	recordedOutletFactor(store, 1.3)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("c%d", i)
		addCalibrationRow(store, id, 1.2, outlet)
		calc := store.calculations[id]
		calc.CreatedAt = baseTime
		store.calculations[id] = calc
	}

	calibrations, err := newTestEngine(t, store, Config{}).AnalyzeComponentCalibration(context.Background())
	require.NoError(t, err)

	require.Len(t, calibrations, 1)
	assert.Equal(t, 1.3, calibrations[0].CurrentTimeFactor)
	assert.InDelta(t, 1.56, calibrations[0].SuggestedTimeFactor, 0.0001)
}

func TestAutoCalibrate_MaterialProjectedOntoRecordedFactor(t *testing.T) {
	applied := baseTime.Add(-1000 * time.Hour)
	materialAdj := models.Adjustment{
		ID: "adj-material", Type: models.AdjustmentMaterial, ComponentOrFactor: calculation.FactorMaterialCost,
		OldValue: 1.0, NewValue: 1.2, Reason: "cable prices", AppliedAt: &applied,
	}

	tests := []struct {
		name      string
		pricedAt  float64
		wantAdj   bool
		wantValue float64
	}{
		{name: "priced before the adjustment", pricedAt: 1.0},
		{name: "priced after the adjustment", pricedAt: 1.2, wantAdj: true, wantValue: 1.44},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.adjustments = []models.Adjustment{materialAdj}
			for i := 0; i < 6; i++ {
				id := fmt.Sprintf("c%d", i)
				addCalibrationRow(store, id, 1.0, light)
				calc := store.calculations[id]
				calc.Price.MaterialCostFactor = tt.pricedAt
				store.calculations[id] = calc
				store.feedback[i].MaterialVariancePercentage = floatPtr(20)
			}

			proposals, err := newTestEngine(t, store, Config{}).AutoCalibrate(context.Background())
			require.NoError(t, err)
			if !tt.wantAdj {
				assert.Empty(t, proposals)
				return
			}
			require.Len(t, proposals, 1)
			assert.Equal(t, models.AdjustmentMaterial, proposals[0].Type)
			assert.Equal(t, 1.2, proposals[0].OldValue)
			assert.InDelta(t, tt.wantValue, proposals[0].NewValue, 0.0001)
		})
	}
}

func TestGetSuggestedRiskBuffer_FallbackUsesRecordedTable(t *testing.T) {
	store := newMemStore()
	addFeedback(store, 50, 60)
	store.adjustments = []models.Adjustment{{
		ID: "adj-rb", Type: models.AdjustmentRiskBuffer, ComponentOrFactor: calculation.RiskBufferFactor(3),
		OldValue: 7.5, NewValue: 12, Reason: "more surprises than budgeted",
	}}

	got, err := newTestEngine(t, store, Config{}).GetSuggestedRiskBuffer(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 12.0, got)
}
