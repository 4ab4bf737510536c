// internal/workers/learning/auto-calibrate-estimates/handler.go
package autocalibrateestimates

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
	TaskType = "auto-calibrate-estimates"
)

// Publisher sends notification events. The SNS client satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, subject string, payload interface{}) (string, error)
}

type Handler struct {
	config       *Config
	engine       *learning.Engine
	publisher    Publisher
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler accepts a nil publisher; proposals are then only returned.
func NewHandler(config *Config, engine *learning.Engine, publisher Publisher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       engine,
		publisher:    publisher,
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
	proposals, err := h.engine.AutoCalibrate(ctx)
	if err != nil {
		return nil, err
	}
	learningMetrics, err := h.engine.AnalyzeLearningMetrics(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range proposals {
		metrics.CalibrationAdjustments.WithLabelValues(string(p.Type), "proposed").Inc()
	}

	output := &Output{
		Proposals:       proposals,
		ProposalCount:   len(proposals),
		LearningMetrics: learningMetrics,
	}

	if h.config.PublishProposals && h.publisher != nil && len(proposals) > 0 {
		messageID, err := h.publisher.PublishEvent(ctx, EventCalibrationProposed,
			fmt.Sprintf("%d calibration proposals", len(proposals)),
			ProposalEvent{Proposals: proposals, Metrics: learningMetrics, RequestedBy: input.RequestedBy})
		if err != nil {
			return nil, errors.NewNotificationPublishFailedError(EventCalibrationProposed, err)
		}
		output.Published = true
		output.MessageID = messageID
	}

	h.logger.Info("calibration proposals computed", map[string]interface{}{
		"requestedBy":  input.RequestedBy,
		"proposals":    len(proposals),
		"sampleCount":  learningMetrics.SampleCount,
		"avgAbsHours":  learningMetrics.AverageAbsHoursVariancePct,
		"improving":    learningMetrics.Improving,
		"published":    output.Published,
		"notification": output.MessageID,
	})
	return output, nil
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
