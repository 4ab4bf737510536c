// internal/workers/learning/collect-project-feedback/handler_test.go
package collectprojectfeedback

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
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) *store.SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.EnsureSQLiteSchema(ctx, db))
	return store.New(db, logger.NewTestLogger(t))
}

// flakyStore fails single operations on top of a real store.
type flakyStore struct {
	*store.SQLStore
	failInsertFor string
	failListing   bool
}

func (f *flakyStore) InsertFeedback(ctx context.Context, fb models.Feedback) error {
	if fb.CalculationID == f.failInsertFor {
		return stderrors.New("disk I/O error")
	}
	return f.SQLStore.InsertFeedback(ctx, fb)
}

func (f *flakyStore) ListCompletedProjects(ctx context.Context, limit, offset int) ([]models.CompletedProject, error) {
	if f.failListing {
		return nil, stderrors.New("connection reset")
	}
	return f.SQLStore.ListCompletedProjects(ctx, limit, offset)
}

func newTestHandler(t *testing.T, cfg *Config, s learning.Store) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	engine := learning.NewEngine(s, calculation.DefaultCoefficients(), learning.DefaultConfig(), log,
		learning.WithClock(func() time.Time { return fixedTime }))
	return NewHandler(cfg, engine, log)
}

func seedProject(t *testing.T, s *store.SQLStore, calcID, offerID, projectID string, estimatedHours, actualHours float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveCalculation(ctx, models.Calculation{
		ID:      calcID,
		OfferID: offerID,
		Components: []models.CalculationComponent{
			{Code: "EL-OUTLET", Name: "Stikkontakt", Category: "installation", Quantity: 10, Unit: "stk", UnitTimeMinutes: estimatedHours * 6},
		},
		Materials:       []models.CalculationMaterial{},
		Time:            models.TimeSummary{TotalMinutes: estimatedHours * 60, TotalHours: estimatedHours, Breakdown: []models.TimeBreakdownItem{}},
		Price:           models.PriceSummary{MaterialCost: 450, TotalPrice: 4000},
		ComplexityScore: 3,
		CreatedAt:       fixedTime,
	}))
	require.NoError(t, s.CompleteProject(ctx, models.CompletedProject{
		ID: projectID, Name: projectID, OfferID: offerID, ActualHours: actualHours,
	}))
}

func jobWithVariables(vars string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Type: TaskType, Variables: vars, Retries: 3}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_CollectsOnce(t *testing.T) {
	s := newSQLiteStore(t)
	seedProject(t, s, "calc-1", "offer-1", "proj-1", 5, 6)
	seedProject(t, s, "calc-2", "offer-2", "proj-2", 10, 8)
	require.NoError(t, s.CompleteProject(context.Background(), models.CompletedProject{
		ID: "proj-3", Name: "uden tilbud", OfferID: "offer-missing", ActualHours: 4,
	}))

	h := newTestHandler(t, LoadConfig(), s)

	first, err := h.Execute(context.Background(), &Input{RequestedBy: "scheduler"})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Scanned)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 1, first.Skipped)
	assert.Empty(t, first.FailureDetails)

	second, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Existing)

	rows, err := s.ListFeedbackWithActuals(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestHandler_Execute_ProjectFailure(t *testing.T) {
	s := newSQLiteStore(t)
	seedProject(t, s, "calc-1", "offer-1", "proj-1", 5, 6)
	seedProject(t, s, "calc-2", "offer-2", "proj-2", 10, 8)
	flaky := &flakyStore{SQLStore: s, failInsertFor: "calc-2"}

	t.Run("completes with failure details", func(t *testing.T) {
		h := newTestHandler(t, LoadConfig(), flaky)

		out, err := h.Execute(context.Background(), &Input{})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Failed)
		require.Len(t, out.FailureDetails, 1)
		assert.Contains(t, out.FailureDetails[0], "proj-2")
	})

	t.Run("fails for retry when configured", func(t *testing.T) {
		cfg := LoadConfig()
		cfg.CompleteOnProjectFailure = false
		h := newTestHandler(t, cfg, flaky)

		_, err := h.Execute(context.Background(), &Input{})
		require.Error(t, err)

		stdErr := errors.FromError(err)
		assert.Equal(t, errors.ErrCodeFeedbackInsertFailed, stdErr.Code)
		assert.True(t, stdErr.Retryable)
	})
}

func TestHandler_Execute_ListingFailure(t *testing.T) {
	h := newTestHandler(t, LoadConfig(), &flakyStore{SQLStore: newSQLiteStore(t), failListing: true})

	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.ErrorIs(t, err, learning.ErrFeedbackQuery)
	assert.Equal(t, errors.ErrCodeFeedbackQueryFailed, errors.FromError(err).Code)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, LoadConfig(), newSQLiteStore(t))

	input, err := h.parseInput(jobWithVariables(`{"requestedBy": "ops"}`))
	require.NoError(t, err)
	assert.Equal(t, "ops", input.RequestedBy)

	input, err = h.parseInput(jobWithVariables(``))
	require.NoError(t, err)
	assert.Empty(t, input.RequestedBy)

	_, err = h.parseInput(jobWithVariables(`{"requestedBy": 7}`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.FromError(err).Code)
}
