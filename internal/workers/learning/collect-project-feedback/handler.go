// internal/workers/learning/collect-project-feedback/handler.go
package collectprojectfeedback

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
	"offer-estimation/internal/estimation/learning"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "collect-project-feedback"
)

type Handler struct {
	config       *Config
	engine       *learning.Engine
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, engine *learning.Engine, log logger.Logger) *Handler {
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
	if strings.TrimSpace(job.Variables) == "" {
		return &input, nil
	}
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.engine.CollectFeedbackFromProjects(ctx)

	metrics.FeedbackCollected.WithLabelValues("inserted").Add(float64(result.Inserted))
	metrics.FeedbackCollected.WithLabelValues("existing").Add(float64(result.Existing))
	metrics.FeedbackCollected.WithLabelValues("skipped").Add(float64(result.Skipped))
	metrics.FeedbackCollected.WithLabelValues("failed").Add(float64(result.Failed))

	// A zero failure count with an error means a page query failed and the
	// run stopped early.
	if err != nil && (result.Failed == 0 || !h.config.CompleteOnProjectFailure) {
		return nil, err
	}

	failures := []string{}
	if err != nil {
		failures = splitErrors(err)
		h.logger.Warn("feedback collection finished with project failures", map[string]interface{}{
			"requestedBy": input.RequestedBy,
			"failed":      result.Failed,
			"error":       err,
		})
	}

	h.logger.Info("project feedback collected", map[string]interface{}{
		"requestedBy": input.RequestedBy,
		"scanned":     result.Scanned,
		"inserted":    result.Inserted,
		"existing":    result.Existing,
		"skipped":     result.Skipped,
		"failed":      result.Failed,
	})

	return &Output{
		Scanned:        result.Scanned,
		Inserted:       result.Inserted,
		Existing:       result.Existing,
		Skipped:        result.Skipped,
		Failed:         result.Failed,
		FailureDetails: failures,
	}, nil
}

func splitErrors(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(joined.Unwrap()))
	for _, e := range joined.Unwrap() {
		out = append(out, e.Error())
	}
	return out
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
