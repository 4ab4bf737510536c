// internal/workers/learning/record-calibration-adjustment/handler.go
package recordcalibrationadjustment

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
	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "record-calibration-adjustment"
)

type Handler struct {
	config       *Config
	engine       *learning.Engine
	base         calculation.Coefficients
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler takes the configured coefficients the adjustment trail is
// folded over.
func NewHandler(config *Config, engine *learning.Engine, base calculation.Coefficients, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       engine,
		base:         base,
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
	in := input.Adjustment
	adj := models.Adjustment{
		ID:                 in.ID,
		Type:               in.Type,
		ComponentOrFactor:  in.ComponentOrFactor,
		NewValue:           in.NewValue,
		Reason:             in.Reason,
		Confidence:         in.Confidence,
		VariancePercentage: in.VariancePercentage,
		FeedbackID:         in.FeedbackID,
	}

	if in.OldValue != nil {
		adj.OldValue = *in.OldValue
	} else {
		current, err := h.engine.CurrentCoefficients(ctx, h.base)
		if err != nil {
			return nil, err
		}
		old, err := current.CurrentValue(adj.Type, adj.ComponentOrFactor)
		if err != nil {
			return nil, err
		}
		adj.OldValue = old
	}

	appliedBy := input.AppliedBy
	if appliedBy == "" {
		appliedBy = h.config.DefaultAppliedBy
	}

	recorded, err := h.engine.RecordAdjustment(ctx, adj, appliedBy)
	if err != nil {
		return nil, err
	}
	metrics.CalibrationAdjustments.WithLabelValues(string(recorded.Type), "recorded").Inc()

	h.logger.Info("calibration adjustment recorded", map[string]interface{}{
		"adjustmentId": recorded.ID,
		"type":         recorded.Type,
		"target":       recorded.ComponentOrFactor,
		"oldValue":     recorded.OldValue,
		"newValue":     recorded.NewValue,
		"appliedBy":    recorded.AppliedBy,
	})

	out := &Output{
		Adjustment:   recorded,
		AdjustmentID: recorded.ID,
	}
	if recorded.AppliedAt != nil {
		out.AppliedAt = *recorded.AppliedAt
	}
	return out, nil
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
