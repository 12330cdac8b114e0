package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/domain/calculation"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

// CalculationHandler serves calculations and run history.
type CalculationHandler struct {
	svc    lighting.Service
	logger logging.Logger
}

func NewCalculationHandler(svc lighting.Service, logger logging.Logger) *CalculationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CalculationHandler{svc: svc, logger: logger.Named("calculations")}
}

// ReportLinkResponse carries a presigned report download URL.
type ReportLinkResponse struct {
	RunID string `json:"run_id"`
	URL   string `json:"url"`
}

// Calculate handles POST /api/v1/calculations.
func (h *CalculationHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req lighting.CalculationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	res, err := h.svc.Calculate(r.Context(), &req)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Submit handles POST /api/v1/calculations/jobs.
func (h *CalculationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req lighting.CalculationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	job, err := h.svc.Submit(r.Context(), &req)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/calculations/"+job.RunID)
	writeJSON(w, http.StatusAccepted, job)
}

// List handles GET /api/v1/calculations.
func (h *CalculationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	runs, err := h.svc.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// Search handles GET /api/v1/calculations/search.
func (h *CalculationHandler) Search(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	res, err := h.svc.SearchRuns(r.Context(), f)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Get handles GET /api/v1/calculations/{id}.
func (h *CalculationHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Report handles GET /api/v1/calculations/{id}/report. With ?redirect=true
// the client is sent straight to the presigned URL.
func (h *CalculationHandler) Report(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	url, err := h.svc.ReportURL(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, ReportLinkResponse{RunID: id, URL: url})
}

func parseFilter(r *http.Request) (calculation.Filter, error) {
	var f calculation.Filter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		f.Status = calculation.Status(s)
		switch f.Status {
		case calculation.StatusPending, calculation.StatusRunning, calculation.StatusCompleted, calculation.StatusFailed:
		default:
			return f, errors.Newf(errors.ErrCodeBadRequest, "unknown status %q", s)
		}
	}

	var err error
	bounds := []struct {
		name string
		dst  **float64
	}{
		{"min_uniformity", &f.MinUniformity},
		{"max_uniformity", &f.MaxUniformity},
		{"min_avg_ppfd", &f.MinAvgPPFD},
		{"max_avg_ppfd", &f.MaxAvgPPFD},
	}
	for _, b := range bounds {
		if *b.dst, err = parseFloatParam(r, b.name); err != nil {
			return f, err
		}
	}
	f.Limit, f.Offset = parsePagination(r)
	return f, nil
}
