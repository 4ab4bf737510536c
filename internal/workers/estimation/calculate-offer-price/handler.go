// internal/workers/estimation/calculate-offer-price/handler.go
package calculateofferprice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"offer-estimation/internal/common/errors"
	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/common/metrics"
	"offer-estimation/internal/common/validation"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "calculate-offer-price"
)

// CalculationSaver persists a priced calculation.
type CalculationSaver interface {
	SaveCalculation(ctx context.Context, calc models.Calculation) error
}

// RiskBufferSuggester is satisfied by the learning engine.
type RiskBufferSuggester interface {
	GetSuggestedRiskBuffer(ctx context.Context, complexityScore int) (float64, error)
}

type Handler struct {
	config       *Config
	engine       *calculation.Engine
	saver        CalculationSaver
	suggester    RiskBufferSuggester
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
	newID        func() string
}

// NewHandler accepts a nil saver or suggester; the matching step is skipped.
func NewHandler(config *Config, engine *calculation.Engine, saver CalculationSaver, suggester RiskBufferSuggester, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       engine,
		saver:        saver,
		suggester:    suggester,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	result, err := validation.ValidateVariables(job.Variables, GetInputSchema())
	if err != nil {
		return nil, errors.NewInputValidationError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInputValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coefficients := h.engine.Coefficients()
	riskBuffer, source := h.riskBuffer(ctx, input)
	margin := coefficients.DefaultMarginPct
	if input.MarginPct != nil {
		margin = *input.MarginPct
	}

	calc, err := h.engine.Calculate(input.Components, input.Materials, riskBuffer, margin)
	if err != nil {
		return nil, err
	}
	calc.ID = h.newID()
	calc.OfferID = input.OfferID
	calc.ComplexityScore = input.ComplexityScore
	calc.CreatedAt = h.now()

	persisted := false
	if h.config.PersistCalculation && h.saver != nil {
		if err := h.saver.SaveCalculation(ctx, calc); err != nil {
			return nil, err
		}
		persisted = true
	}

	metrics.OfferTotalPrice.Observe(calc.Price.TotalPrice)
	h.logger.Info("offer priced", map[string]interface{}{
		"offerId":          input.OfferID,
		"calculationId":    calc.ID,
		"totalHours":       calc.Time.TotalHours,
		"totalPrice":       calc.Price.TotalPrice,
		"riskBufferPct":    riskBuffer,
		"riskBufferSource": source,
		"marginPct":        margin,
		"persisted":        persisted,
	})

	return &Output{
		CalculationID:    calc.ID,
		Calculation:      calc,
		TotalPrice:       calc.Price.TotalPrice,
		TotalHours:       calc.Time.TotalHours,
		RiskBufferSource: source,
		Persisted:        persisted,
	}, nil
}

// riskBuffer prefers the job's value, then the learned suggestion, then the
// coefficient table. A failing suggestion falls back to the table.
func (h *Handler) riskBuffer(ctx context.Context, input *Input) (float64, string) {
	if input.RiskBufferPct != nil {
		return *input.RiskBufferPct, RiskBufferFromInput
	}
	if h.config.UseLearnedRiskBuffer && h.suggester != nil {
		suggested, err := h.suggester.GetSuggestedRiskBuffer(ctx, input.ComplexityScore)
		if err == nil {
			return suggested, RiskBufferFromLearned
		}
		h.logger.Warn("learned risk buffer unavailable, using table", map[string]interface{}{
			"complexityScore": input.ComplexityScore,
			"error":           err,
		})
	}
	return h.engine.Coefficients().RiskBuffer(input.ComplexityScore), RiskBufferFromTable
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	decision := h.errorHandler.HandleJobError(context.Background(), client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(decision.Code)).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
