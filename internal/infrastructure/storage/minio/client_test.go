package minio

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/config"
	apperrors "github.com/turtacn/LumiGrid/pkg/errors"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectAPI) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucket, opts).Error(0)
}

func (m *MockObjectAPI) SetBucketLifecycle(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error {
	return m.Called(ctx, bucket, cfg).Error(0)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, bucket, key, string(body), size, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key, opts)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockObjectAPI) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucket, key, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockObjectAPI) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucket, key, opts).Error(0)
}

func (m *MockObjectAPI) PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucket, key, expiry, params)
	u, _ := args.Get(0).(*url.URL)
	return u, args.Error(1)
}

func testConfig() config.MinIOConfig {
	return config.MinIOConfig{Bucket: "lumigrid-reports", PresignExpiry: 10 * time.Minute}
}

func TestNewClientWithAPI_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClientWithAPI(&MockObjectAPI{}, config.MinIOConfig{Bucket: "b"}, nil)
	assert.Equal(t, "b", c.Bucket())
	assert.Equal(t, "us-east-1", c.region)
	assert.Equal(t, 15*time.Minute, c.presignExpiry)
}

func TestEnsureBucket_CreatesAndSetsRetention(t *testing.T) {
	t.Parallel()
	api := &MockObjectAPI{}
	ctx := context.Background()
	api.On("BucketExists", ctx, "lumigrid-reports").Return(false, nil)
	api.On("MakeBucket", ctx, "lumigrid-reports", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)
	api.On("SetBucketLifecycle", ctx, "lumigrid-reports", mock.MatchedBy(func(lc *lifecycle.Configuration) bool {
		return len(lc.Rules) == 1 && lc.Rules[0].RuleFilter.Prefix == "reports/" && lc.Rules[0].Expiration.Days == 30
	})).Return(errors.New("not implemented"))

	c := NewClientWithAPI(api, testConfig(), nil)
	require.NoError(t, c.EnsureBucket(ctx, 30))
	api.AssertExpectations(t)
}

func TestEnsureBucket_ExistingWithoutRetention(t *testing.T) {
	t.Parallel()
	api := &MockObjectAPI{}
	ctx := context.Background()
	api.On("BucketExists", ctx, "lumigrid-reports").Return(true, nil)

	c := NewClientWithAPI(api, testConfig(), nil)
	require.NoError(t, c.EnsureBucket(ctx, 0))
	api.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "SetBucketLifecycle", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureBucket_Unreachable(t *testing.T) {
	t.Parallel()
	api := &MockObjectAPI{}
	api.On("BucketExists", mock.Anything, "lumigrid-reports").Return(false, errors.New("dial tcp: refused"))

	c := NewClientWithAPI(api, testConfig(), nil)
	err := c.EnsureBucket(context.Background(), 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	ok := &MockObjectAPI{}
	ok.On("BucketExists", mock.Anything, "lumigrid-reports").Return(true, nil)
	assert.NoError(t, NewClientWithAPI(ok, testConfig(), nil).HealthCheck(context.Background()))

	missing := &MockObjectAPI{}
	missing.On("BucketExists", mock.Anything, "lumigrid-reports").Return(false, nil)
	assert.Error(t, NewClientWithAPI(missing, testConfig(), nil).HealthCheck(context.Background()))
}
