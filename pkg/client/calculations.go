package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/LumiGrid/pkg/errors"
)

// CalculationsClient covers /api/v1/calculations.
type CalculationsClient struct {
	client *Client
}

// ReportLink carries a presigned report download URL.
type ReportLink struct {
	RunID string `json:"run_id"`
	URL   string `json:"url"`
}

func validateRequest(req *CalculationRequest) error {
	if req == nil {
		return errors.New(errors.ErrCodeValidation, "request is required")
	}
	if req.Room.Width <= 0 || req.Room.Length <= 0 || req.Room.Height <= 0 {
		return errors.New(errors.ErrCodeValidation, "room dimensions must be positive")
	}
	return nil
}

// Calculate computes a grid synchronously.
func (cc *CalculationsClient) Calculate(ctx context.Context, req *CalculationRequest) (*CalculationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var res CalculationResult
	if err := cc.client.post(ctx, apiPrefix+"/calculations", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Submit queues a calculation for the worker.
func (cc *CalculationsClient) Submit(ctx context.Context, req *CalculationRequest) (*Job, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var job Job
	if err := cc.client.post(ctx, apiPrefix+"/calculations/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Get fetches one run.
func (cc *CalculationsClient) Get(ctx context.Context, runID string) (*Run, error) {
	if runID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "run id is required")
	}
	var run Run
	if err := cc.client.get(ctx, apiPrefix+"/calculations/"+url.PathEscape(runID), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Wait polls runID until it completes or fails, or ctx ends.
func (cc *CalculationsClient) Wait(ctx context.Context, runID string) (*Run, error) {
	ticker := time.NewTicker(cc.client.pollInterval)
	defer ticker.Stop()
	for {
		run, err := cc.Get(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// List pages through run history, newest first.
func (cc *CalculationsClient) List(ctx context.Context, limit, offset int) (*RunList, error) {
	var list RunList
	if err := cc.client.get(ctx, apiPrefix+"/calculations"+pageQuery(url.Values{}, limit, offset), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Search finds runs by status and result ranges.
func (cc *CalculationsClient) Search(ctx context.Context, f SearchFilter) (*SearchResult, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	setFloat(q, "min_uniformity", f.MinUniformity)
	setFloat(q, "max_uniformity", f.MaxUniformity)
	setFloat(q, "min_avg_ppfd", f.MinAvgPPFD)
	setFloat(q, "max_avg_ppfd", f.MaxAvgPPFD)

	var res SearchResult
	if err := cc.client.get(ctx, apiPrefix+"/calculations/search"+pageQuery(q, f.Limit, f.Offset), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReportURL returns a presigned link to the stored report of runID.
func (cc *CalculationsClient) ReportURL(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		return "", errors.New(errors.ErrCodeValidation, "run id is required")
	}
	var link ReportLink
	if err := cc.client.get(ctx, apiPrefix+"/calculations/"+url.PathEscape(runID)+"/report", &link); err != nil {
		return "", err
	}
	return link.URL, nil
}

func setFloat(q url.Values, name string, v *float64) {
	if v != nil {
		q.Set(name, strconv.FormatFloat(*v, 'f', -1, 64))
	}
}

func pageQuery(q url.Values, limit, offset int) string {
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
