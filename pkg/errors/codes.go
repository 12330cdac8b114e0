package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are "<MODULE>_<NNN>"; the module prefix groups them for metrics.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes outside the module tables.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
)

// Photometry Module Error Codes
const (
	ErrCodeInvalidParameter     ErrorCode = "PHO_001"
	ErrCodeEmptyDataset         ErrorCode = "PHO_002"
	ErrCodeCalculationCancelled ErrorCode = "PHO_003"
	ErrCodeRunNotFound          ErrorCode = "PHO_004"
	ErrCodeFixtureModelNotFound ErrorCode = "PHO_005"
	ErrCodeReportStorageFailed  ErrorCode = "PHO_006"
)

// Messaging Error Codes
const (
	ErrCodeMessagingFailed ErrorCode = "MSG_001"
	ErrCodeProducerClosed  ErrorCode = "MSG_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusNotImplemented,

	ErrCodeInvalidParameter:     http.StatusBadRequest,
	ErrCodeEmptyDataset:         http.StatusUnprocessableEntity,
	ErrCodeCalculationCancelled: http.StatusRequestTimeout,
	ErrCodeRunNotFound:          http.StatusNotFound,
	ErrCodeFixtureModelNotFound: http.StatusNotFound,
	ErrCodeReportStorageFailed:  http.StatusInternalServerError,

	ErrCodeMessagingFailed: http.StatusServiceUnavailable,
	ErrCodeProducerClosed:  http.StatusServiceUnavailable,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",

	ErrCodeInvalidParameter:     "invalid calculation parameter",
	ErrCodeEmptyDataset:         "no points to summarize",
	ErrCodeCalculationCancelled: "calculation cancelled",
	ErrCodeRunNotFound:          "calculation run not found",
	ErrCodeFixtureModelNotFound: "fixture model not found",
	ErrCodeReportStorageFailed:  "failed to store calculation report",

	ErrCodeMessagingFailed: "message broker error",
	ErrCodeProducerClosed:  "producer closed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
