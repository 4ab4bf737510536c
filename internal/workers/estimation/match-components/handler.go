// internal/workers/estimation/match-components/handler.go
package matchcomponents

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
	"offer-estimation/internal/estimation/matcher"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "match-components"
)

type Handler struct {
	config       *Config
	matcher      *matcher.Matcher
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, m *matcher.Matcher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		matcher:      m,
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
	result, matchErr := h.matcher.Match(ctx, input.Interpretation)
	for _, note := range result.Notes {
		kind := "miss"
		if strings.HasPrefix(note, "catalog lookup failed") {
			kind = "error"
		}
		metrics.CatalogMisses.WithLabelValues(kind).Inc()
	}

	if matchErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !h.config.AllowPartialMatch {
			return nil, matchErr
		}
		h.logger.Warn("catalog lookups failed, completing with partial match", map[string]interface{}{
			"offerId": input.OfferID,
			"error":   matchErr,
		})
	}

	notes := result.Notes
	if notes == nil {
		notes = []string{}
	}

	h.logger.Info("components matched", map[string]interface{}{
		"offerId":    input.OfferID,
		"components": len(result.Components),
		"materials":  len(result.Materials),
		"notes":      len(notes),
		"multiplier": result.ComplexityMultiplier,
	})

	return &Output{
		Components:           result.Components,
		Materials:            result.Materials,
		ComplexityMultiplier: result.ComplexityMultiplier,
		MatchNotes:           notes,
		PartialMatch:         matchErr != nil,
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
