// internal/workers/estimation/analyze-offer-risks/handler.go
package analyzeofferrisks

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
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "analyze-offer-risks"
)

type Handler struct {
	config       *Config
	engine       *risk.Engine
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, engine *risk.Engine, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       engine,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
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

	analysis := h.engine.Analyze(risk.NewContext(input.Interpretation, input.Calculation))
	metrics.RiskScore.Observe(float64(input.Interpretation.RiskScore))

	requiresReview := analysis.OverallRiskLevel == models.RiskLevelHigh

	h.logger.Info("offer risks analyzed", map[string]interface{}{
		"offerId":              input.OfferID,
		"risks":                len(analysis.Risks),
		"customerVisible":      len(analysis.CustomerVisibleRisks),
		"overallRiskLevel":     analysis.OverallRiskLevel,
		"recommendedMarginPct": analysis.RecommendedMarginPct,
		"priced":               input.Calculation != nil,
		"requiresReview":       requiresReview,
	})

	return &Output{
		RiskAnalysis:         analysis,
		OverallRiskLevel:     analysis.OverallRiskLevel,
		RecommendedMarginPct: analysis.RecommendedMarginPct,
		RequiresReview:       requiresReview,
	}, nil
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
