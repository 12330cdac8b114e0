package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allCodes = []ErrorCode{
	ErrCodeInternal, ErrCodeBadRequest, ErrCodeNotFound, ErrCodeConflict,
	ErrCodeTooManyRequests, ErrCodeServiceUnavailable, ErrCodeTimeout,
	ErrCodeValidation, ErrCodeSerialization, ErrCodeDatabaseError,
	ErrCodeCacheError, ErrCodeExternalService, ErrCodeFeatureDisabled,
	ErrCodeInvalidParameter, ErrCodeEmptyDataset, ErrCodeCalculationCancelled,
	ErrCodeRunNotFound, ErrCodeFixtureModelNotFound, ErrCodeReportStorageFailed,
	ErrCodeMessagingFailed, ErrCodeProducerClosed,
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "COMMON_001", ErrCodeInternal.String())
}

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInternal, 500},
		{ErrCodeBadRequest, 400},
		{ErrCodeNotFound, 404},
		{ErrCodeValidation, 422},
		{ErrCodeInvalidParameter, 400},
		{ErrCodeEmptyDataset, 422},
		{ErrCodeCalculationCancelled, 408},
		{ErrCodeRunNotFound, 404},
		{ErrorCode("UNKNOWN"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusForCode(tt.code), tt.code)
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "internal server error", DefaultMessageForCode(ErrCodeInternal))
	assert.Equal(t, "no points to summarize", DefaultMessageForCode(ErrCodeEmptyDataset))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("UNKNOWN")))
}

func TestClientServerClassification(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeInvalidParameter))
	assert.False(t, IsClientError(ErrCodeInternal))
	assert.True(t, IsServerError(ErrCodeReportStorageFailed))
	assert.False(t, IsServerError(ErrCodeBadRequest))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "PHO", ModuleForCode(ErrCodeInvalidParameter))
	assert.Equal(t, "MSG", ModuleForCode(ErrCodeMessagingFailed))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("")))
	assert.Equal(t, "UNKNOWN", ModuleForCode(CodeUnknown))
}

func TestErrorCodeFormat_Convention(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for _, code := range allCodes {
		assert.Regexp(t, re, string(code))
	}
}

func TestErrorCodeMappings_Completeness(t *testing.T) {
	for _, code := range allCodes {
		_, hasStatus := ErrorCodeHTTPStatus[code]
		_, hasMessage := ErrorCodeMessage[code]
		assert.True(t, hasStatus, "missing HTTP status for %s", code)
		assert.True(t, hasMessage, "missing message for %s", code)
	}
}
