package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

const (
	reportPrefix      = "reports/"
	reportContentType = "application/json"
	metaRunID         = "Run-Id"
)

// ReportRef locates a stored report.
type ReportRef struct {
	Key  string
	Size int64
	ETag string
}

// ReportStore keeps one JSON document per run under
// reports/YYYY/MM/DD/<run-id>.json.
type ReportStore struct {
	client *Client
	now    func() time.Time
}

func NewReportStore(client *Client) *ReportStore {
	return &ReportStore{client: client, now: time.Now}
}

// ReportKey derives the object key for a run created at t.
func ReportKey(runID string, t time.Time) string {
	return path.Join("reports", t.UTC().Format("2006/01/02"), runID+".json")
}

// Put encodes report and uploads it.
func (s *ReportStore) Put(ctx context.Context, runID string, report interface{}) (*ReportRef, error) {
	if runID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "run id required")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode report")
	}
	key := ReportKey(runID, s.now())
	info, err := s.client.api.PutObject(ctx, s.client.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  reportContentType,
		UserMetadata: map[string]string{metaRunID: runID},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportStorageFailed, "failed to upload report").WithDetail(key)
	}
	s.client.logger.Debug("report stored", logging.String("key", key), logging.Int("bytes", len(data)))
	return &ReportRef{Key: key, Size: int64(len(data)), ETag: info.ETag}, nil
}

// Get downloads the report at key into dest.
func (s *ReportStore) Get(ctx context.Context, key string, dest interface{}) error {
	obj, err := s.client.api.GetObject(ctx, s.client.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return s.readErr(err, key)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return s.readErr(err, key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "corrupt report").WithDetail(key)
	}
	return nil
}

func (s *ReportStore) readErr(err error, key string) error {
	if isNoSuchKey(err) {
		return errors.Wrap(err, errors.ErrCodeNotFound, "report not found").WithDetail(key)
	}
	return errors.Wrap(err, errors.ErrCodeReportStorageFailed, "failed to read report").WithDetail(key)
}

// Exists reports whether key is present.
func (s *ReportStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.api.StatObject(ctx, s.client.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeReportStorageFailed, "failed to stat report")
}

// PresignedURL returns a time-limited download link. expiry <= 0 uses the
// configured default.
func (s *ReportStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = s.client.presignExpiry
	}
	u, err := s.client.api.PresignedGetObject(ctx, s.client.bucket, key, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportStorageFailed, "failed to presign report").WithDetail(key)
	}
	return u.String(), nil
}

func (s *ReportStore) Delete(ctx context.Context, key string) error {
	if err := s.client.api.RemoveObject(ctx, s.client.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeReportStorageFailed, "failed to delete report").WithDetail(key)
	}
	return nil
}
