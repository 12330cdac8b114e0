package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/domain/catalog"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

func TestFixtureHandler_List(t *testing.T) {
	t.Parallel()

	svc := new(MockService)
	svc.On("ListFixtureModels", mock.Anything, 50, 0).Return(&lighting.FixtureModelList{
		Models: []*catalog.FixtureModel{{ID: "m1", Manufacturer: "Acme", Model: "Grow 600", PPF: 1600}},
		Total:  1,
		Limit:  50,
	}, nil)

	w := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/fixtures?limit=50", "")

	require.Equal(t, http.StatusOK, w.Code)
	var list lighting.FixtureModelList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Models, 1)
	assert.Equal(t, "Grow 600", list.Models[0].Model)
}

func TestFixtureHandler_Get(t *testing.T) {
	t.Parallel()

	svc := new(MockService)
	svc.On("GetFixtureModel", mock.Anything, "m1").Return(&catalog.FixtureModel{ID: "m1", PPF: 1600}, nil)
	svc.On("GetFixtureModel", mock.Anything, "nope").
		Return(nil, errors.New(errors.ErrCodeFixtureModelNotFound, "fixture model not found"))
	h := newTestRouter(svc)

	w := do(t, h, http.MethodGet, "/api/v1/fixtures/m1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/fixtures/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(errors.ErrCodeFixtureModelNotFound), decodeError(t, w).Code)
}

func TestFixtureHandler_Import(t *testing.T) {
	t.Parallel()

	svc := new(MockService)
	svc.On("ImportFixtureModels", mock.Anything, []lighting.FixtureModelInput{
		{Manufacturer: "Acme", Model: "Grow 600", PPF: 1600, BeamAngle: 120},
		{Manufacturer: "Acme", Model: "Bar 320", Wattage: 320, Efficacy: 2.8},
	}).Return(&lighting.ImportResult{Imported: 2}, nil)

	body := `{"models":[
		{"manufacturer":"Acme","model":"Grow 600","ppf":1600,"beamAngle":120},
		{"manufacturer":"Acme","model":"Bar 320","wattage":320,"efficacy":2.8}]}`
	w := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/fixtures/import", body)

	require.Equal(t, http.StatusOK, w.Code)
	var res lighting.ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.EqualValues(t, 2, res.Imported)
	svc.AssertExpectations(t)
}

func TestFixtureHandler_Import_ValidationDetail(t *testing.T) {
	t.Parallel()

	svc := new(MockService)
	svc.On("ImportFixtureModels", mock.Anything, mock.Anything).Return(nil,
		errors.New(errors.ErrCodeValidation, "invalid fixture model").WithDetail("entry 0 (Acme X)"))

	w := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/fixtures/import", `{"models":[{"manufacturer":"Acme","model":"X"}]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "invalid fixture model", resp.Message)
	assert.Equal(t, "entry 0 (Acme X)", resp.Detail)
}
