package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
)

// FixtureHandler serves the fixture model catalog.
type FixtureHandler struct {
	svc    lighting.Service
	logger logging.Logger
}

func NewFixtureHandler(svc lighting.Service, logger logging.Logger) *FixtureHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FixtureHandler{svc: svc, logger: logger.Named("fixtures")}
}

// ImportRequest is the body of POST /api/v1/fixtures/import.
type ImportRequest struct {
	Models []lighting.FixtureModelInput `json:"models"`
}

// List handles GET /api/v1/fixtures.
func (h *FixtureHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	list, err := h.svc.ListFixtureModels(r.Context(), limit, offset)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/fixtures/{id}.
func (h *FixtureHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetFixtureModel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Import handles POST /api/v1/fixtures/import.
func (h *FixtureHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	res, err := h.svc.ImportFixtureModels(r.Context(), req.Models)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	h.logger.Info("catalog import", logging.Int64("rows", res.Imported))
	writeJSON(w, http.StatusOK, res)
}
