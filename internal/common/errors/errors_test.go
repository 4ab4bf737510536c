// internal/common/errors/errors_test.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errFeedbackQuery = stderrors.New("FEEDBACK_QUERY_FAILED")
	errAdjustment    = stderrors.New("ADJUSTMENT_INVALID")
)

// ==========================
// Classification Tests
// ==========================

func TestFromError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		retryable bool
	}{
		{"sentinel", errFeedbackQuery, ErrCodeFeedbackQueryFailed, true},
		{"wrapped sentinel", fmt.Errorf("%w: connection refused", errFeedbackQuery), ErrCodeFeedbackQueryFailed, true},
		{"double wrapped", fmt.Errorf("collect: %w", fmt.Errorf("%w: bad target", errAdjustment)), ErrCodeAdjustmentInvalid, false},
		{"joined", stderrors.Join(stderrors.New("other"), fmt.Errorf("%w: x", stderrors.New("CATALOG_LOOKUP_FAILED"))), ErrCodeCatalogLookupFailed, true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrCodeQueryTimeout, true},
		{"unknown", stderrors.New("something odd"), ErrCodeInternal, false},
		{"standard error", New(ErrCodeDuplicateFeedback, "calc-1"), ErrCodeDuplicateFeedback, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.retryable, got.Retryable)
		})
	}

	assert.Nil(t, FromError(nil))
}

func TestFromError_KeepsDetails(t *testing.T) {
	err := fmt.Errorf("%w: connection refused", errFeedbackQuery)
	got := FromError(err)
	assert.Equal(t, err.Error(), got.Details)
	assert.Equal(t, "Feedback query failed", got.Message)
}

// ==========================
// Retry Decision Tests
// ==========================

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		jobRetries int32
		retries    int32
		thrown     bool
	}{
		{"business error is thrown", errAdjustment, 3, 0, true},
		{"retryable with retries left", errFeedbackQuery, 3, 2, false},
		{"retryable capped by budget", errFeedbackQuery, 10, 3, false},
		{"last retry is thrown", errFeedbackQuery, 1, 0, true},
		{"no retries left", errFeedbackQuery, 0, 0, true},
		{"timeout budget", context.DeadlineExceeded, 5, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, d := Decide(tt.err, tt.jobRetries)
			assert.Equal(t, tt.retries, d.Retries)
			assert.Equal(t, tt.thrown, d.Thrown)
		})
	}
}

// ==========================
// BPMN Conversion Tests
// ==========================

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(New(ErrCodeCatalogLookupFailed, "point:outlet"))

	assert.Equal(t, "CATALOG_LOOKUP_FAILED", bpmn.Code)
	assert.True(t, bpmn.Retryable)
	assert.Equal(t, 3, bpmn.Retries)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "CATALOG_LOOKUP_FAILED", vars["errorCode"])
	assert.Equal(t, "point:outlet", vars["errorDetails"])
	assert.Equal(t, "CATALOG_LOOKUP_FAILED", vars["originalErrorCode"])
}

func TestConvertToBPMNError_NonRetryable(t *testing.T) {
	std := New(ErrCodeFeedbackInsertFailed, "x")
	std.Retryable = false

	assert.Equal(t, 0, ConvertToBPMNError(std).Retries)
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeCatalogLookupFailed:       "CATALOG",
		ErrCodeTemplateLoadFailed:        "TEMPLATE",
		ErrCodeDuplicateFeedback:         "LEARNING",
		ErrCodeAdjustmentInvalid:         "LEARNING",
		ErrCodeCalculationInputInvalid:   "CALCULATION",
		ErrCodeQueryTimeout:              "DATABASE",
		ErrCodeNotificationPublishFailed: "NOTIFICATION",
		ErrCodeInputValidationFailed:     "VALIDATION",
		ErrCodeInternal:                  "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), string(code))
	}
}
