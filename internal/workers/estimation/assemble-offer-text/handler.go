// internal/workers/estimation/assemble-offer-text/handler.go
package assembleoffertext

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
	"offer-estimation/internal/estimation/offertext"
	"offer-estimation/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "assemble-offer-text"
)

// TemplateSource lists the active stored offer text templates.
type TemplateSource interface {
	ListActiveTemplates(ctx context.Context) ([]models.OfferTextTemplate, error)
}

type Handler struct {
	config       *Config
	engine       *offertext.Engine
	templates    TemplateSource
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler accepts a nil template source; only built-in templates are used.
func NewHandler(config *Config, engine *offertext.Engine, templates TemplateSource, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       engine,
		templates:    templates,
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

	var (
		stored       []models.OfferTextTemplate
		defaultsOnly bool
	)
	if h.templates != nil {
		var err error
		stored, err = h.templates.ListActiveTemplates(ctx)
		if err != nil {
			if !h.config.FallbackToDefaults || ctx.Err() != nil {
				return nil, err
			}
			h.logger.Warn("stored templates unavailable, using built-in templates", map[string]interface{}{
				"offerId": input.OfferID,
				"error":   err,
			})
			stored = nil
			defaultsOnly = true
		}
	}

	texts := h.engine.Assemble(stored, offertext.NewContext(input.Interpretation, input.Calculation, input.RiskAnalysis))

	h.logger.Info("offer text assembled", map[string]interface{}{
		"offerId":         input.OfferID,
		"storedTemplates": len(stored),
		"sections":        len(texts.Sections),
		"obsPoints":       texts.Has(offertext.ObsPointsKey),
		"defaultsOnly":    defaultsOnly,
	})

	return &Output{
		OfferTexts:       texts,
		OfferText:        texts.Render(),
		SectionCount:     len(texts.Sections),
		UsedDefaultsOnly: defaultsOnly,
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
