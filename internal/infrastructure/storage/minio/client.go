// Package minio stores full calculation reports in an S3-compatible bucket
// and hands out presigned download links.
package minio

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

const connectTimeout = 10 * time.Second

// ObjectAPI is the subset of *minio.Client in use. GetObject returns a
// ReadCloser so tests need not build a *minio.Object.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error)
}

type sdkClient struct{ *minio.Client }

func (c sdkClient) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucket, key, opts)
}

// Client is bound to a single bucket.
type Client struct {
	api           ObjectAPI
	bucket        string
	region        string
	presignExpiry time.Duration
	logger        logging.Logger
}

// NewClient connects, creates the bucket if needed and installs the
// retention rule.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to create minio client")
	}
	c := NewClientWithAPI(sdkClient{mc}, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := c.EnsureBucket(ctx, cfg.RetentionDays); err != nil {
		return nil, err
	}
	c.logger.Info("minio connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI wraps an existing API without touching the network.
func NewClientWithAPI(api ObjectAPI, cfg config.MinIOConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return &Client{api: api, bucket: cfg.Bucket, region: region, presignExpiry: expiry, logger: log.Named("minio")}
}

func (c *Client) Bucket() string { return c.bucket }

// EnsureBucket creates the bucket when missing. retentionDays > 0 expires
// objects under the reports prefix; a rejected rule only logs a warning.
func (c *Client) EnsureBucket(ctx context.Context, retentionDays int) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to reach minio")
	}
	if !exists {
		if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create bucket").WithDetail(c.bucket)
		}
		c.logger.Info("bucket created", logging.String("bucket", c.bucket))
	}
	if retentionDays <= 0 {
		return nil
	}
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{{
		ID:         "report-retention",
		Status:     "Enabled",
		RuleFilter: lifecycle.Filter{Prefix: reportPrefix},
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(retentionDays)},
	}}
	if err := c.api.SetBucketLifecycle(ctx, c.bucket, lc); err != nil {
		c.logger.Warn("failed to set report retention", logging.Int("days", retentionDays), logging.Err(err))
	}
	return nil
}

// HealthCheck confirms the bucket is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio health check failed")
	}
	if !ok {
		return errors.Newf(errors.ErrCodeServiceUnavailable, "bucket %s missing", c.bucket)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
