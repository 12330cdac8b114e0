package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/LumiGrid/internal/domain/calculation"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
	"github.com/turtacn/LumiGrid/pkg/types/common"
)

const runIndexSuffix = "-runs"

// runIndexMapping types every Summary field so range filters stay numeric.
var runIndexMapping = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"dynamic": "strict",
		"properties": map[string]interface{}{
			"run_id":          map[string]string{"type": "keyword"},
			"status":          map[string]string{"type": "keyword"},
			"fixture_count":   map[string]string{"type": "integer"},
			"room_area":       map[string]string{"type": "double"},
			"base_resolution": map[string]string{"type": "integer"},
			"point_count":     map[string]string{"type": "integer"},
			"min_ppfd":        map[string]string{"type": "double"},
			"max_ppfd":        map[string]string{"type": "double"},
			"average_ppfd":    map[string]string{"type": "double"},
			"uniformity":      map[string]string{"type": "double"},
			"coverage":        map[string]string{"type": "double"},
			"average_dli":     map[string]string{"type": "double"},
			"created_at":      map[string]string{"type": "date"},
		},
	},
}

// RunIndex implements calculation.Index on a single index named
// "<prefix>-runs".
type RunIndex struct {
	client  *Client
	index   string
	refresh string
	logger  logging.Logger
}

// NewRunIndex binds to "<prefix>-runs". refresh is passed to index requests
// ("", "true", "false" or "wait_for").
func NewRunIndex(client *Client, prefix, refresh string) *RunIndex {
	return &RunIndex{client: client, index: prefix + runIndexSuffix, refresh: refresh, logger: client.logger}
}

func (x *RunIndex) Name() string { return x.index }

// EnsureIndex creates the index with its mapping when missing.
func (x *RunIndex) EnsureIndex(ctx context.Context) error {
	resp, err := opensearchapi.IndicesExistsRequest{Index: []string{x.index}}.Do(ctx, x.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "index exists request failed")
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return errors.Newf(errors.ErrCodeExternalService, "index exists returned %d", resp.StatusCode)
	}

	body, _ := json.Marshal(runIndexMapping)
	resp, err = opensearchapi.IndicesCreateRequest{Index: x.index, Body: bytes.NewReader(body)}.Do(ctx, x.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "create index request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return responseError(resp, "create index "+x.index)
	}
	x.logger.Info("index created", logging.String("index", x.index))
	return nil
}

// IndexSummary upserts s under its run ID.
func (x *RunIndex) IndexSummary(ctx context.Context, s calculation.Summary) error {
	if s.RunID == "" {
		return errors.New(errors.ErrCodeValidation, "summary without run id")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode summary")
	}
	resp, err := opensearchapi.IndexRequest{
		Index:      x.index,
		DocumentID: s.RunID,
		Body:       bytes.NewReader(body),
		Refresh:    x.refresh,
	}.Do(ctx, x.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "index request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return responseError(resp, "index summary "+s.RunID)
	}
	return nil
}

// Search returns summaries matching f, newest first, and the total count.
func (x *RunIndex) Search(ctx context.Context, f calculation.Filter) ([]calculation.Summary, int64, error) {
	body, err := json.Marshal(buildRunQuery(f))
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode query")
	}
	resp, err := opensearchapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, x.client.Raw())
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeExternalService, "search request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, 0, responseError(resp, "search "+x.index)
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source calculation.Summary `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}
	out := make([]calculation.Summary, len(parsed.Hits.Hits))
	for i, h := range parsed.Hits.Hits {
		out[i] = h.Source
	}
	return out, parsed.Hits.Total.Value, nil
}

// buildRunQuery translates a Filter into query DSL. Nil bounds are omitted.
func buildRunQuery(f calculation.Filter) map[string]interface{} {
	page := common.NewPagination(f.Limit, f.Offset)

	var filters []interface{}
	if f.Status != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"status": string(f.Status)},
		})
	}
	if r := rangeClause(f.MinUniformity, f.MaxUniformity); r != nil {
		filters = append(filters, map[string]interface{}{"range": map[string]interface{}{"uniformity": r}})
	}
	if r := rangeClause(f.MinAvgPPFD, f.MaxAvgPPFD); r != nil {
		filters = append(filters, map[string]interface{}{"range": map[string]interface{}{"average_ppfd": r}})
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(filters) > 0 {
		query = map[string]interface{}{"bool": map[string]interface{}{"filter": filters}}
	}
	return map[string]interface{}{
		"query":            query,
		"from":             page.Offset,
		"size":             page.Limit,
		"track_total_hits": true,
		"sort": []interface{}{
			map[string]interface{}{"created_at": map[string]string{"order": "desc"}},
		},
	}
}

func rangeClause(lo, hi *float64) map[string]interface{} {
	if lo == nil && hi == nil {
		return nil
	}
	r := map[string]interface{}{}
	if lo != nil {
		r["gte"] = *lo
	}
	if hi != nil {
		r["lte"] = *hi
	}
	return r
}

var _ calculation.Index = (*RunIndex)(nil)
