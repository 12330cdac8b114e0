// Package handlers implements the HTTP handlers of the LumiGrid API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

// maxRequestBody bounds decoded JSON bodies when the server sets no limit.
const maxRequestBody = 8 << 20

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// parsePagination reads limit and offset. Malformed values are ignored and
// range clamping is left to the service.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

// parseFloatParam returns nil when the parameter is absent.
func parseFloatParam(r *http.Request, name string) (*float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeBadRequest, "%s must be a number", name)
	}
	return &f, nil
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body").WithDetail(err.Error())
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError renders err as {code, message} with the status mapped from
// its code. Server-side failures are masked with the code's default message.
func writeAppError(w http.ResponseWriter, log logging.Logger, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: code.String()}
	var ae *errors.AppError
	if errors.IsClientError(code) && errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	} else {
		resp.Message = errors.DefaultMessageForCode(code)
	}

	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", logging.String("code", code.String()), logging.Err(err))
	}
	writeJSON(w, status, resp)
}
