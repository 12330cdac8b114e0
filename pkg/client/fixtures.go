package client

import (
	"context"
	"net/url"

	"github.com/turtacn/LumiGrid/pkg/errors"
)

// FixturesClient covers the fixture model catalog.
type FixturesClient struct {
	client *Client
}

// List pages through the catalog.
func (fc *FixturesClient) List(ctx context.Context, limit, offset int) (*FixtureModelList, error) {
	var list FixtureModelList
	if err := fc.client.get(ctx, apiPrefix+"/fixtures"+pageQuery(url.Values{}, limit, offset), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Get fetches one model.
func (fc *FixturesClient) Get(ctx context.Context, id string) (*FixtureModel, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeValidation, "model id is required")
	}
	var m FixtureModel
	if err := fc.client.get(ctx, apiPrefix+"/fixtures/"+url.PathEscape(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Import bulk-loads models. A model matching an existing manufacturer and
// model name replaces it.
func (fc *FixturesClient) Import(ctx context.Context, models []FixtureModelInput) (*ImportResult, error) {
	if len(models) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "at least one model is required")
	}
	body := struct {
		Models []FixtureModelInput `json:"models"`
	}{models}
	var res ImportResult
	if err := fc.client.post(ctx, apiPrefix+"/fixtures/import", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
