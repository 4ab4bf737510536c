// internal/workers/estimation/calculate-offer-price/handler_test.go
package calculateofferprice

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"offer-estimation/internal/common/config"
	"offer-estimation/internal/common/database"
	"offer-estimation/internal/common/errors"
	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/models"
	"offer-estimation/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSaver struct {
	saved []models.Calculation
	err   error
}

func (f *fakeSaver) SaveCalculation(ctx context.Context, calc models.Calculation) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, calc)
	return nil
}

type fakeSuggester struct {
	value float64
	err   error
	calls int
}

func (f *fakeSuggester) GetSuggestedRiskBuffer(ctx context.Context, complexityScore int) (float64, error) {
	f.calls++
	return f.value, f.err
}

type MockSuggester struct {
	mock.Mock
}

func (m *MockSuggester) GetSuggestedRiskBuffer(ctx context.Context, complexityScore int) (float64, error) {
	args := m.Called(ctx, complexityScore)
	return args.Get(0).(float64), args.Error(1)
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, cfg *Config, saver CalculationSaver, suggester RiskBufferSuggester) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	h := NewHandler(cfg, calculation.NewEngine(calculation.DefaultCoefficients(), log), saver, suggester, log)
	h.now = func() time.Time { return fixedTime }
	h.newID = func() string { return "calc-1" }
	return h
}

func jobWithVariables(vars string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Type: TaskType, Variables: vars, Retries: 3}}
}

func sampleInput() *Input {
	return &Input{
		OfferID:         "offer-1",
		ComplexityScore: 3,
		Components: []models.CalculationComponent{
			{Code: "EL-OUTLET", Name: "Stikkontakt", Category: "outlet", Quantity: 10, Unit: "stk", UnitTimeMinutes: 30},
		},
		Materials: []models.CalculationMaterial{
			{Code: "EL-OUTLET", Name: "Stikkontakt", Category: "outlet", Quantity: 10, Unit: "stk", UnitCost: 45},
		},
	}
}

func pct(v float64) *float64 { return &v }

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ExplicitPercentages(t *testing.T) {
	saver := &fakeSaver{}
	suggester := &fakeSuggester{value: 40}
	h := newTestHandler(t, LoadConfig(), saver, suggester)

	input := sampleInput()
	input.RiskBufferPct = pct(10)
	input.MarginPct = pct(25)

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "calc-1", out.CalculationID)
	assert.Equal(t, RiskBufferFromInput, out.RiskBufferSource)
	assert.Equal(t, 0, suggester.calls)
	assert.Equal(t, 5.0, out.TotalHours)
	assert.Equal(t, 4400.0, out.TotalPrice)

	price := out.Calculation.Price
	assert.Equal(t, 450.0, price.MaterialCost)
	assert.Equal(t, 2750.0, price.LaborCost)
	assert.Equal(t, 3200.0, price.Subtotal)
	assert.Equal(t, 320.0, price.RiskBufferAmount)
	assert.Equal(t, 880.0, price.MarginAmount)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "offer-1", saver.saved[0].OfferID)
	assert.Equal(t, 3, saver.saved[0].ComplexityScore)
	assert.True(t, saver.saved[0].CreatedAt.Equal(fixedTime))
	assert.True(t, out.Persisted)
}

func TestHandler_Execute_RiskBufferSources(t *testing.T) {
	tests := []struct {
		name       string
		useLearned bool
		suggester  *fakeSuggester
		wantPct    float64
		wantSource string
	}{
		{"learned", true, &fakeSuggester{value: 12.5}, 12.5, RiskBufferFromLearned},
		{"learned disabled", false, &fakeSuggester{value: 12.5}, 7.5, RiskBufferFromTable},
		{"learned failing", true, &fakeSuggester{err: stderrors.New("FEEDBACK_QUERY_FAILED")}, 7.5, RiskBufferFromTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			cfg.UseLearnedRiskBuffer = tt.useLearned
			h := newTestHandler(t, cfg, nil, tt.suggester)

			out, err := h.Execute(context.Background(), sampleInput())
			require.NoError(t, err)

			assert.Equal(t, tt.wantSource, out.RiskBufferSource)
			assert.Equal(t, tt.wantPct, out.Calculation.Price.RiskBufferPct)
			assert.Equal(t, 25.0, out.Calculation.Price.MarginPct)
			assert.False(t, out.Persisted)
		})
	}
}

func TestHandler_Execute_AsksSuggesterWithComplexity(t *testing.T) {
	suggester := new(MockSuggester)
	suggester.On("GetSuggestedRiskBuffer", mock.Anything, 4).Return(18.0, nil).Once()
	h := newTestHandler(t, LoadConfig(), nil, suggester)

	input := sampleInput()
	input.ComplexityScore = 4

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 18.0, out.Calculation.Price.RiskBufferPct)
	assert.Equal(t, RiskBufferFromLearned, out.RiskBufferSource)

	suggester.AssertExpectations(t)
}

func TestHandler_Execute_RecordedRiskBufferReachesPrice(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	db, err := database.NewSQLite(ctx, config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.EnsureSQLiteSchema(ctx, db))
	s := store.New(db, log)

	learner := learning.NewEngine(s, calculation.DefaultCoefficients(), learning.DefaultConfig(), log)
	_, err = learner.RecordAdjustment(ctx, models.Adjustment{
		Type:              models.AdjustmentRiskBuffer,
		ComponentOrFactor: calculation.RiskBufferFactor(3),
		OldValue:          7.5,
		NewValue:          11,
		Reason:            "villas keep surprising us",
	}, "ops")
	require.NoError(t, err)

	h := newTestHandler(t, LoadConfig(), s, learner)
	out, err := h.Execute(ctx, sampleInput())
	require.NoError(t, err)

	assert.Equal(t, 11.0, out.Calculation.Price.RiskBufferPct)
	assert.Equal(t, RiskBufferFromLearned, out.RiskBufferSource)
	require.Len(t, out.Calculation.Components, 1)
	assert.Equal(t, 1.0, out.Calculation.Components[0].TimeFactor)

	saved, err := s.GetCalculation(ctx, out.CalculationID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 1.0, saved.Components[0].TimeFactor)
}

func TestHandler_Execute_NilSuggesterUsesTable(t *testing.T) {
	h := newTestHandler(t, LoadConfig(), nil, nil)

	input := sampleInput()
	input.ComplexityScore = 5

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 15.0, out.Calculation.Price.RiskBufferPct)
	assert.Equal(t, RiskBufferFromTable, out.RiskBufferSource)
}

func TestHandler_Execute_InvalidComponentIsNotRetried(t *testing.T) {
	h := newTestHandler(t, LoadConfig(), &fakeSaver{}, nil)

	input := sampleInput()
	input.Components[0].Quantity = -1

	_, err := h.Execute(context.Background(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, calculation.ErrInvalidInput)

	stdErr := errors.FromError(err)
	assert.Equal(t, errors.ErrCodeCalculationInputInvalid, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestHandler_Execute_SaveFailureIsRetryable(t *testing.T) {
	saveErr := stderrors.New("CALCULATION_SAVE_FAILED")
	h := newTestHandler(t, LoadConfig(), &fakeSaver{err: saveErr}, nil)

	_, err := h.Execute(context.Background(), sampleInput())
	require.Error(t, err)

	stdErr := errors.FromError(err)
	assert.Equal(t, errors.ErrCodeCalculationSaveFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_PersistDisabled(t *testing.T) {
	cfg := LoadConfig()
	cfg.PersistCalculation = false
	saver := &fakeSaver{}
	h := newTestHandler(t, cfg, saver, nil)

	out, err := h.Execute(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Empty(t, saver.saved)
	assert.False(t, out.Persisted)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, LoadConfig(), nil, nil)

	input, err := h.parseInput(jobWithVariables(`{
		"offerId": "offer-2",
		"complexityScore": 4,
		"components": [{"code": "EL-LIGHT", "quantity": 4, "unitTimeMinutes": 45}],
		"materials": [],
		"riskBufferPct": null,
		"marginPct": 30
	}`))
	require.NoError(t, err)

	assert.Equal(t, 4, input.ComplexityScore)
	require.Len(t, input.Components, 1)
	assert.Nil(t, input.RiskBufferPct)
	require.NotNil(t, input.MarginPct)
	assert.Equal(t, 30.0, *input.MarginPct)
}

func TestHandler_ParseInput_Invalid(t *testing.T) {
	h := newTestHandler(t, LoadConfig(), nil, nil)

	tests := []struct {
		name string
		vars string
	}{
		{"missing components", `{"complexityScore": 3, "materials": []}`},
		{"missing complexity", `{"components": [], "materials": []}`},
		{"complexity out of range", `{"complexityScore": 9, "components": [], "materials": []}`},
		{"negative quantity", `{"complexityScore": 3, "components": [{"code": "X", "quantity": -1, "unitTimeMinutes": 1}], "materials": []}`},
		{"margin above 100", `{"complexityScore": 3, "components": [], "materials": [], "marginPct": 150}`},
		{"risk buffer as string", `{"complexityScore": 3, "components": [], "materials": [], "riskBufferPct": "10"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput(jobWithVariables(tt.vars))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.FromError(err).Code)
		})
	}
}
