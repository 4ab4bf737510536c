// internal/estimation/learning/engine.go
package learning

import (
	"context"
	"fmt"
	"math"
	"time"

	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Config bounds reads and sets the statistical thresholds.
type Config struct {
	PageSize                   int     `mapstructure:"page_size"`
	MaxRows                    int     `mapstructure:"max_rows"`
	TrendWindow                int     `mapstructure:"trend_window"`
	MinComponentSamples        int     `mapstructure:"min_component_samples"`
	ComponentVarianceThreshold float64 `mapstructure:"component_variance_threshold"`
	MinRiskBufferSamples       int     `mapstructure:"min_risk_buffer_samples"`
	RiskBufferPercentile       float64 `mapstructure:"risk_buffer_percentile"`
	AutoCalibrateMinConfidence float64 `mapstructure:"auto_calibrate_min_confidence"`
	AutoCalibrateMinVariance   float64 `mapstructure:"auto_calibrate_min_variance"`
}

func DefaultConfig() Config {
	return Config{
		PageSize:                   200,
		MaxRows:                    5000,
		TrendWindow:                10,
		MinComponentSamples:        3,
		ComponentVarianceThreshold: 10,
		MinRiskBufferSamples:       5,
		RiskBufferPercentile:       80,
		AutoCalibrateMinConfidence: 0.8,
		AutoCalibrateMinVariance:   15,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxRows <= 0 {
		c.MaxRows = d.MaxRows
	}
	if c.PageSize > c.MaxRows {
		c.PageSize = c.MaxRows
	}
	if c.TrendWindow <= 0 {
		c.TrendWindow = d.TrendWindow
	}
	if c.MinComponentSamples <= 0 {
		c.MinComponentSamples = d.MinComponentSamples
	}
	if c.ComponentVarianceThreshold <= 0 {
		c.ComponentVarianceThreshold = d.ComponentVarianceThreshold
	}
	if c.MinRiskBufferSamples <= 0 {
		c.MinRiskBufferSamples = d.MinRiskBufferSamples
	}
	if c.RiskBufferPercentile <= 0 || c.RiskBufferPercentile > 100 {
		c.RiskBufferPercentile = d.RiskBufferPercentile
	}
	if c.AutoCalibrateMinConfidence <= 0 {
		c.AutoCalibrateMinConfidence = d.AutoCalibrateMinConfidence
	}
	if c.AutoCalibrateMinVariance <= 0 {
		c.AutoCalibrateMinVariance = d.AutoCalibrateMinVariance
	}
	return c
}

// Engine runs the calibration loop. It holds the base coefficients and
// folds the recorded trail over them on every analysis, so proposals always
// start from the live values. It never changes coefficients itself;
// adjustments only reach a calculation through RecordAdjustment and a later
// Coefficients.ApplyAll.
type Engine struct {
	store        Store
	coefficients calculation.Coefficients
	cfg          Config
	logger       logger.Logger
	now          func() time.Time
	newID        func() string
	inflight     singleflight.Group
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(store Store, coefficients calculation.Coefficients, cfg Config, log logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	e := &Engine{
		store:        store,
		coefficients: coefficients,
		cfg:          cfg.withDefaults(),
		logger:       log.WithFields(map[string]interface{}{"component": "learning"}),
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics summarizes estimate accuracy over feedback with actual hours.
type Metrics struct {
	SampleCount                int      `json:"sampleCount"`
	AverageHoursVariancePct    float64  `json:"averageHoursVariancePct"`
	AverageAbsHoursVariancePct float64  `json:"averageAbsHoursVariancePct"`
	AverageMaterialVariancePct *float64 `json:"averageMaterialVariancePct"`
	MaterialSampleCount        int      `json:"materialSampleCount"`
	AcceptanceRate             float64  `json:"acceptanceRate"`
	ProfitableRate             *float64 `json:"profitableRate"`
	AverageSatisfaction        *float64 `json:"averageSatisfaction"`
	RecentAbsVariancePct       float64  `json:"recentAbsVariancePct"`
	PreviousAbsVariancePct     *float64 `json:"previousAbsVariancePct"`
	Improving                  bool     `json:"improving"`
}

// AnalyzeLearningMetrics averages hour variance over all feedback with
// actuals. The trend compares the newest window of rows with the one before
// it; with fewer rows the windows are simply shorter or empty.
func (e *Engine) AnalyzeLearningMetrics(ctx context.Context) (Metrics, error) {
	rows, err := e.loadFeedback(ctx)
	if err != nil {
		return Metrics{}, err
	}

	var (
		m                               Metrics
		hoursVariances                  []float64
		materialSum                     float64
		accepted, profitable, profKnown int
		satisfactionSum, satisfactionN  int
	)
	for _, fb := range rows {
		if v, ok := hoursVariance(fb); ok {
			hoursVariances = append(hoursVariances, v)
		}
		if v, ok := materialVariance(fb); ok {
			materialSum += v
			m.MaterialSampleCount++
		}
		if fb.OfferAccepted {
			accepted++
		}
		if fb.ProjectProfitable != nil {
			profKnown++
			if *fb.ProjectProfitable {
				profitable++
			}
		}
		if fb.CustomerSatisfaction != nil {
			satisfactionSum += *fb.CustomerSatisfaction
			satisfactionN++
		}
	}

	m.SampleCount = len(hoursVariances)
	if m.SampleCount > 0 {
		m.AverageHoursVariancePct = calculation.Round(mean(hoursVariances))
		m.AverageAbsHoursVariancePct = calculation.Round(meanAbs(hoursVariances))
	}
	if m.MaterialSampleCount > 0 {
		v := calculation.Round(materialSum / float64(m.MaterialSampleCount))
		m.AverageMaterialVariancePct = &v
	}
	if len(rows) > 0 {
		m.AcceptanceRate = calculation.Round(float64(accepted) / float64(len(rows)))
	}
	if profKnown > 0 {
		v := calculation.Round(float64(profitable) / float64(profKnown))
		m.ProfitableRate = &v
	}
	if satisfactionN > 0 {
		v := calculation.Round(float64(satisfactionSum) / float64(satisfactionN))
		m.AverageSatisfaction = &v
	}

	window := e.cfg.TrendWindow
	recent := hoursVariances[:minInt(window, len(hoursVariances))]
	previous := hoursVariances[len(recent):minInt(2*window, len(hoursVariances))]
	if len(recent) > 0 {
		m.RecentAbsVariancePct = calculation.Round(meanAbs(recent))
	}
	if len(previous) > 0 {
		v := calculation.Round(meanAbs(previous))
		m.PreviousAbsVariancePct = &v
		m.Improving = meanAbs(recent) < meanAbs(previous)
	}

	e.logger.Info("learning metrics analyzed", map[string]interface{}{
		"samples":   m.SampleCount,
		"avgAbsVar": m.AverageAbsHoursVariancePct,
		"improving": m.Improving,
	})
	return m, nil
}

// loadFeedback pages through feedback with actuals up to MaxRows.
func (e *Engine) loadFeedback(ctx context.Context) ([]models.Feedback, error) {
	var out []models.Feedback
	for offset := 0; offset < e.cfg.MaxRows; offset += e.cfg.PageSize {
		limit := minInt(e.cfg.PageSize, e.cfg.MaxRows-offset)
		page, err := e.store.ListFeedbackWithActuals(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFeedbackQuery, err)
		}
		out = append(out, page...)
		if len(page) < limit {
			break
		}
	}
	return out, nil
}

// hoursVariance prefers the stored percentage and recomputes it otherwise.
func hoursVariance(fb models.Feedback) (float64, bool) {
	if fb.HoursVariancePercentage != nil && isFinite(*fb.HoursVariancePercentage) {
		return *fb.HoursVariancePercentage, true
	}
	if fb.ActualHours == nil {
		return 0, false
	}
	return calculation.VariancePercentage(fb.EstimatedHours, *fb.ActualHours)
}

func materialVariance(fb models.Feedback) (float64, bool) {
	if fb.MaterialVariancePercentage != nil && isFinite(*fb.MaterialVariancePercentage) {
		return *fb.MaterialVariancePercentage, true
	}
	if fb.ActualMaterialCost == nil {
		return 0, false
	}
	return calculation.VariancePercentage(fb.EstimatedMaterialCost, *fb.ActualMaterialCost)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanAbs(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v)
	}
	return sum / float64(len(values))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
