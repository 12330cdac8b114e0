// Package opensearch indexes calculation run summaries for range search.
package opensearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

var ErrConnectionFailed = errors.New(errors.ErrCodeServiceUnavailable, "opensearch connection failed")

const (
	defaultMaxRetries = 3
	pingTimeout       = 5 * time.Second
)

// Client wraps the opensearch-go client with a health flag.
type Client struct {
	client  *opensearch.Client
	logger  logging.Logger
	healthy atomic.Bool
}

// NewClient connects to cfg.Addresses and verifies the cluster answers.
func NewClient(cfg config.OpenSearchConfig, log logging.Logger) (*Client, error) {
	c, err := newClient(cfg, log)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return nil, ErrConnectionFailed.WithCause(err)
	}
	c.logger.Info("opensearch connected", logging.Strings("addresses", cfg.Addresses))
	return c, nil
}

func newClient(cfg config.OpenSearchConfig, log logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "opensearch addresses required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	transport := &http.Transport{MaxIdleConnsPerHost: 10}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	osc, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		Transport:     transport,
		MaxRetries:    defaultMaxRetries,
		RetryOnStatus: []int{429, 502, 503, 504},
		RetryBackoff:  func(i int) time.Duration { return time.Duration(i) * 100 * time.Millisecond },
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to create opensearch client")
	}
	return &Client{client: osc, logger: log.Named("opensearch")}, nil
}

// Ping checks the cluster and updates the health flag.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		c.healthy.Store(false)
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "opensearch ping failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		c.healthy.Store(false)
		return errors.Newf(errors.ErrCodeServiceUnavailable, "opensearch ping returned %d", resp.StatusCode)
	}
	c.healthy.Store(true)
	return nil
}

func (c *Client) IsHealthy() bool { return c.healthy.Load() }

// Raw exposes the underlying client.
func (c *Client) Raw() *opensearch.Client { return c.client }

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// responseError converts a non-2xx response into an AppError.
func responseError(resp *opensearchapi.Response, msg string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	detail := string(raw)
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error.Reason != "" {
		detail = eb.Error.Type + ": " + eb.Error.Reason
	}
	code := errors.ErrCodeExternalService
	switch resp.StatusCode {
	case http.StatusNotFound:
		code = errors.ErrCodeNotFound
	case http.StatusBadRequest:
		code = errors.ErrCodeBadRequest
	case http.StatusTooManyRequests:
		code = errors.ErrCodeTooManyRequests
	}
	return errors.Newf(code, "%s: status %d", msg, resp.StatusCode).WithDetail(detail)
}
