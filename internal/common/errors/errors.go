// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeCatalogLookupFailed     ErrorCode = "CATALOG_LOOKUP_FAILED"
	ErrCodeTemplateLoadFailed      ErrorCode = "TEMPLATE_LOAD_FAILED"
	ErrCodeTemplateQueryFailed     ErrorCode = "TEMPLATE_QUERY_FAILED"
	ErrCodeCalculationInputInvalid ErrorCode = "CALCULATION_INPUT_INVALID"
	ErrCodeCalculationSaveFailed   ErrorCode = "CALCULATION_SAVE_FAILED"
	ErrCodeCalculationNotFound     ErrorCode = "CALCULATION_NOT_FOUND"

	ErrCodeFeedbackQueryFailed    ErrorCode = "FEEDBACK_QUERY_FAILED"
	ErrCodeFeedbackInsertFailed   ErrorCode = "FEEDBACK_INSERT_FAILED"
	ErrCodeDuplicateFeedback      ErrorCode = "DUPLICATE_FEEDBACK"
	ErrCodeAdjustmentInvalid      ErrorCode = "ADJUSTMENT_INVALID"
	ErrCodeAdjustmentRecordFailed ErrorCode = "ADJUSTMENT_RECORD_FAILED"
	ErrCodeProjectSaveFailed      ErrorCode = "PROJECT_SAVE_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeInputValidationFailed     ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeNotificationPublishFailed ErrorCode = "NOTIFICATION_PUBLISH_FAILED"
	ErrCodeWorkflowEngineFailed      ErrorCode = "WORKFLOW_ENGINE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

var messages = map[ErrorCode]string{
	ErrCodeCatalogLookupFailed:       "Catalog lookup failed",
	ErrCodeTemplateLoadFailed:        "Offer text templates could not be loaded",
	ErrCodeTemplateQueryFailed:       "Offer text templates could not be queried",
	ErrCodeCalculationInputInvalid:   "Calculation input is invalid",
	ErrCodeCalculationSaveFailed:     "Calculation could not be saved",
	ErrCodeCalculationNotFound:       "Calculation not found",
	ErrCodeFeedbackQueryFailed:       "Feedback query failed",
	ErrCodeFeedbackInsertFailed:      "Feedback insert failed",
	ErrCodeDuplicateFeedback:         "Feedback already exists for calculation",
	ErrCodeAdjustmentInvalid:         "Calibration adjustment is invalid",
	ErrCodeAdjustmentRecordFailed:    "Calibration adjustment could not be recorded",
	ErrCodeProjectSaveFailed:         "Completed project could not be saved",
	ErrCodeDatabaseConnectionFailed:  "Database connection error",
	ErrCodeQueryTimeout:              "Database query timeout",
	ErrCodeInputValidationFailed:     "Job input validation failed",
	ErrCodeNotificationPublishFailed: "Notification publish failed",
	ErrCodeWorkflowEngineFailed:      "Workflow engine request failed",
	ErrCodeInternal:                  "Unexpected error",
}

// New creates a StandardError for a known code. Retryability follows the
// retry table.
func New(code ErrorCode, details string) *StandardError {
	msg, ok := messages[code]
	if !ok {
		msg = string(code)
	}
	return &StandardError{
		Code:      code,
		Message:   msg,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// NewInputValidationError creates a non-retryable input validation error.
func NewInputValidationError(details string) *StandardError {
	return New(ErrCodeInputValidationFailed, details)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return New(ErrCodeDatabaseConnectionFailed, err.Error())
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return New(ErrCodeQueryTimeout, fmt.Sprintf("operation: %s", operation))
}

// NewWorkflowEngineError creates a retryable Zeebe gateway error.
func NewWorkflowEngineError(operation string, err error) *StandardError {
	return New(ErrCodeWorkflowEngineFailed, fmt.Sprintf("operation: %s, error: %s", operation, err.Error()))
}

// NewNotificationPublishFailedError creates a retryable publish error.
func NewNotificationPublishFailedError(topic string, err error) *StandardError {
	return New(ErrCodeNotificationPublishFailed, fmt.Sprintf("topic: %s, error: %s", topic, err.Error()))
}

// FromError classifies any error. A StandardError in the chain is returned
// as is; otherwise the first wrapped error whose text is a known code
// decides the code, and the full error text becomes the details. Deadline
// errors count as query timeouts.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if code, ok := findCode(err); ok {
		return New(code, err.Error())
	}
	return New(ErrCodeInternal, err.Error())
}

func findCode(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	if _, ok := messages[ErrorCode(err.Error())]; ok {
		return ErrorCode(err.Error()), true
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrCodeQueryTimeout, true
	}
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if code, ok := findCode(inner); ok {
				return code, true
			}
		}
	case interface{ Unwrap() error }:
		return findCode(e.Unwrap())
	}
	return "", false
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogLookupFailed,
		ErrCodeTemplateQueryFailed,
		ErrCodeCalculationSaveFailed,
		ErrCodeFeedbackQueryFailed,
		ErrCodeFeedbackInsertFailed,
		ErrCodeAdjustmentRecordFailed,
		ErrCodeProjectSaveFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeNotificationPublishFailed,
		ErrCodeWorkflowEngineFailed:
		return 3

	case ErrCodeQueryTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN error codes are the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "FEEDBACK") || strings.Contains(codeStr, "ADJUSTMENT") || strings.Contains(codeStr, "PROJECT"):
		return "LEARNING"
	case strings.Contains(codeStr, "CALCULATION"):
		return "CALCULATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
