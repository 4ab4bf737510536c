// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-estimation/internal/catalog"
	"offer-estimation/internal/common/config"
	"offer-estimation/internal/common/database"
	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/estimation/interpreter"
	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/estimation/matcher"
	"offer-estimation/internal/estimation/offertext"
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/models"
	"offer-estimation/internal/store"

	analyzeofferrisks "offer-estimation/internal/workers/estimation/analyze-offer-risks"
	assembleoffertext "offer-estimation/internal/workers/estimation/assemble-offer-text"
	calculateofferprice "offer-estimation/internal/workers/estimation/calculate-offer-price"
	interpretdescription "offer-estimation/internal/workers/estimation/interpret-description"
	matchcomponents "offer-estimation/internal/workers/estimation/match-components"
	autocalibrateestimates "offer-estimation/internal/workers/learning/auto-calibrate-estimates"
	collectprojectfeedback "offer-estimation/internal/workers/learning/collect-project-feedback"
	recordcalibrationadjustment "offer-estimation/internal/workers/learning/record-calibration-adjustment"
)

const villa = "Villa fra 1975 på 140 m2 med nyt køkken, badeværelse og 2 soveværelser. " +
	"Ny eltavle og lader til elbil i carporten."

// overrun is how much longer every finished project takes than estimated.
const overrun = 1.3

// ==========================
// Test Helper Functions
// ==========================

type harness struct {
	log     logger.Logger
	store   *store.SQLStore
	learner *learning.Engine
	base    calculation.Coefficients
	lookup  catalog.Lookup
}

func newHarness(t testing.TB) *harness {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	db, err := database.NewSQLite(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "e2e.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.EnsureSQLiteSchema(ctx, db))

	st := store.New(db, log)
	base := calculation.DefaultCoefficients()
	lookup, err := catalog.DefaultStatic()
	require.NoError(t, err)

	return &harness{
		log:     log,
		store:   st,
		learner: learning.NewEngine(st, base, learning.DefaultConfig(), log),
		base:    base,
		lookup:  lookup,
	}
}

// estimation chains the five estimation workers over one set of
// coefficients.
type estimation struct {
	interpret *interpretdescription.Handler
	match     *matchcomponents.Handler
	calculate *calculateofferprice.Handler
	risks     *analyzeofferrisks.Handler
	text      *assembleoffertext.Handler
}

func (h *harness) estimation(t testing.TB, coefficients calculation.Coefficients) *estimation {
	t.Helper()
	interp, err := interpreter.NewDefault(interpreter.WithLogger(h.log))
	require.NoError(t, err)

	return &estimation{
		interpret: interpretdescription.NewHandler(interpretdescription.LoadConfig(), interp, h.log),
		match:     matchcomponents.NewHandler(matchcomponents.LoadConfig(), matcher.New(h.lookup, coefficients, h.log), h.log),
		calculate: calculateofferprice.NewHandler(calculateofferprice.LoadConfig(),
			calculation.NewEngine(coefficients, h.log), h.store, h.learner, h.log),
		risks: analyzeofferrisks.NewHandler(analyzeofferrisks.LoadConfig(),
			risk.NewEngine(risk.DefaultRules(), risk.DefaultThresholds().WithMinimumMargin(coefficients.MinimumMarginPct), h.log), h.log),
		text: assembleoffertext.NewHandler(assembleoffertext.LoadConfig(),
			offertext.NewDefaultEngine(h.log), h.store, h.log),
	}
}

type offerResult struct {
	interpreted *interpretdescription.Output
	matched     *matchcomponents.Output
	priced      *calculateofferprice.Output
	risks       *analyzeofferrisks.Output
	text        *assembleoffertext.Output
}

func (e *estimation) run(t testing.TB, offerID, description string) offerResult {
	t.Helper()
	ctx := context.Background()

	interpreted, err := e.interpret.Execute(ctx, &interpretdescription.Input{OfferID: offerID, Description: description})
	require.NoError(t, err)

	matched, err := e.match.Execute(ctx, &matchcomponents.Input{OfferID: offerID, Interpretation: interpreted.Interpretation})
	require.NoError(t, err)

	priced, err := e.calculate.Execute(ctx, &calculateofferprice.Input{
		OfferID:         offerID,
		ComplexityScore: interpreted.ComplexityScore,
		Components:      matched.Components,
		Materials:       matched.Materials,
	})
	require.NoError(t, err)

	risks, err := e.risks.Execute(ctx, &analyzeofferrisks.Input{
		OfferID:        offerID,
		Interpretation: interpreted.Interpretation,
		Calculation:    &priced.Calculation,
	})
	require.NoError(t, err)

	text, err := e.text.Execute(ctx, &assembleoffertext.Input{
		OfferID:        offerID,
		Interpretation: interpreted.Interpretation,
		Calculation:    &priced.Calculation,
		RiskAnalysis:   &risks.RiskAnalysis,
	})
	require.NoError(t, err)

	return offerResult{interpreted: interpreted, matched: matched, priced: priced, risks: risks, text: text}
}

// ==========================
// In-Process Flow
// ==========================

func TestEstimationFlow(t *testing.T) {
	h := newHarness(t)

	res := h.estimation(t, h.base).run(t, "offer-1", villa)

	assert.Equal(t, models.BuildingHouse, res.interpreted.Interpretation.BuildingType)
	assert.NotEmpty(t, res.matched.Components)
	assert.False(t, res.matched.PartialMatch)
	assert.True(t, res.priced.Persisted)
	assert.Equal(t, calculateofferprice.RiskBufferFromLearned, res.priced.RiskBufferSource)
	assert.Greater(t, res.priced.TotalPrice, 0.0)
	assert.NotEmpty(t, res.risks.OverallRiskLevel)
	assert.NotEmpty(t, res.text.OfferText)
	assert.NotContains(t, res.text.OfferText, "{{")

	stored, err := h.store.LatestCalculationForOffer(context.Background(), "offer-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, res.priced.CalculationID, stored.ID)
	assert.Equal(t, res.priced.TotalHours, stored.Time.TotalHours)
}

func TestLearningLoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	before := h.estimation(t, h.base)

	t.Log("🏗️ Estimating and completing six projects...")
	var firstHours float64
	for i := 1; i <= 6; i++ {
		offerID := fmt.Sprintf("offer-%d", i)
		res := before.run(t, offerID, villa)
		firstHours = res.priced.TotalHours

		require.NoError(t, h.store.CompleteProject(ctx, models.CompletedProject{
			ID:          fmt.Sprintf("project-%d", i),
			Name:        "Villa " + offerID,
			ActualHours: calculation.Round(res.priced.TotalHours * overrun),
			OfferID:     offerID,
		}))
	}
	require.Greater(t, firstHours, 0.0)

	collect := collectprojectfeedback.NewHandler(collectprojectfeedback.LoadConfig(), h.learner, h.log)
	collected, err := collect.Execute(ctx, &collectprojectfeedback.Input{RequestedBy: "e2e"})
	require.NoError(t, err)
	assert.Equal(t, 6, collected.Inserted)
	assert.Zero(t, collected.Failed)

	again, err := collect.Execute(ctx, &collectprojectfeedback.Input{})
	require.NoError(t, err)
	assert.Zero(t, again.Inserted)
	assert.Equal(t, 6, again.Existing)

	t.Log("📊 Proposing calibration...")
	calibrate := autocalibrateestimates.NewHandler(autocalibrateestimates.LoadConfig(), h.learner, nil, h.log)
	proposed, err := calibrate.Execute(ctx, &autocalibrateestimates.Input{RequestedBy: "e2e"})
	require.NoError(t, err)
	require.NotEmpty(t, proposed.Proposals)
	assert.Equal(t, len(proposed.Proposals), proposed.ProposalCount)
	assert.False(t, proposed.Published)
	assert.Equal(t, 6, proposed.LearningMetrics.SampleCount)

	record := recordcalibrationadjustment.NewHandler(recordcalibrationadjustment.LoadConfig(), h.learner, h.base, h.log)
	for _, p := range proposed.Proposals {
		assert.Equal(t, models.AdjustmentTime, p.Type)
		assert.InDelta(t, overrun, p.NewValue, 0.01, p.ComponentOrFactor)

		recorded, err := record.Execute(ctx, &recordcalibrationadjustment.Input{
			Adjustment: recordcalibrationadjustment.AdjustmentInput{
				Type:               p.Type,
				ComponentOrFactor:  p.ComponentOrFactor,
				NewValue:           p.NewValue,
				Reason:             p.Reason,
				Confidence:         p.Confidence,
				VariancePercentage: p.VariancePercentage,
			},
			AppliedBy: "e2e",
		})
		require.NoError(t, err)
		assert.Equal(t, 1.0, recorded.Adjustment.OldValue)
		assert.NotEmpty(t, recorded.AdjustmentID)
	}

	trail, err := h.store.ListAdjustments(ctx, 100, 0)
	require.NoError(t, err)
	assert.Len(t, trail, len(proposed.Proposals))

	t.Log("🔁 Re-estimating with calibrated coefficients...")
	calibrated, err := h.learner.CurrentCoefficients(ctx, h.base)
	require.NoError(t, err)
	for _, p := range proposed.Proposals {
		assert.Greater(t, calibrated.TimeFactor(p.ComponentOrFactor), 1.0)
	}

	after := h.estimation(t, calibrated).run(t, "offer-7", villa)
	assert.Greater(t, after.priced.TotalHours, firstHours)
	assert.InDelta(t, firstHours*overrun, after.priced.TotalHours, firstHours*0.02)
	assert.Equal(t, calculateofferprice.RiskBufferFromLearned, after.priced.RiskBufferSource)
	assert.Greater(t, after.priced.Calculation.Price.RiskBufferPct, 0.0)
	t.Logf("✅ %.2f hours before calibration, %.2f after", firstHours, after.priced.TotalHours)
}

// ==========================
// Live Broker
// ==========================

// TestLiveBroker deploys the processes and starts an estimation against a
// running Zeebe gateway. It runs only when E2E_ZEEBE_ADDRESS is set.
func TestLiveBroker(t *testing.T) {
	address := os.Getenv("E2E_ZEEBE_ADDRESS")
	if address == "" {
		t.Skip("E2E_ZEEBE_ADDRESS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
	})
	require.NoError(t, err, "❌ Failed to connect to Zeebe")
	defer client.Close()

	_, err = client.NewTopologyCommand().Send(ctx)
	require.NoError(t, err, "❌ Zeebe topology request failed")

	deployed := deployAllBPMN(t, ctx, client)
	require.Positive(t, deployed)

	cmd, err := client.NewCreateInstanceCommand().
		BPMNProcessId("offer-estimation").
		LatestVersion().
		VariablesFromMap(map[string]interface{}{
			"offerId":     "e2e-live",
			"description": villa,
		})
	require.NoError(t, err)
	instance, err := cmd.Send(ctx)
	require.NoError(t, err)
	assert.Positive(t, instance.GetProcessInstanceKey())
}

func deployAllBPMN(t *testing.T, ctx context.Context, client zbc.Client) int {
	t.Helper()
	var bpmnDir string
	for _, path := range []string{"bpmn", "../bpmn", "../../bpmn"} {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			bpmnDir = path
			break
		}
	}
	if bpmnDir == "" {
		t.Log("⚠️ BPMN directory not found")
		return 0
	}

	files, err := os.ReadDir(bpmnDir)
	require.NoError(t, err, "❌ Cannot read BPMN directory")

	count := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".bpmn") {
			continue
		}
		path := filepath.Join(bpmnDir, f.Name())
		if _, err := client.NewDeployResourceCommand().AddResourceFile(path).Send(ctx); err != nil {
			t.Logf("⚠️ Failed to deploy BPMN %s: %v", f.Name(), err)
			continue
		}
		t.Logf("✅ Deployed: %s", f.Name())
		count++
	}
	return count
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkHandler_InterpretDescription(b *testing.B) {
	interp, _ := interpreter.NewDefault()
	handler := interpretdescription.NewHandler(interpretdescription.LoadConfig(), interp, logger.NewNoOpLogger())
	input := &interpretdescription.Input{OfferID: "bench", Description: villa}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.Execute(context.Background(), input)
	}
}

func BenchmarkEstimationFlow(b *testing.B) {
	h := newHarness(b)
	h.log = logger.NewNoOpLogger()
	flow := h.estimation(b, h.base)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		flow.run(b, fmt.Sprintf("bench-%d", i), villa)
	}
}
