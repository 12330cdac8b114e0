package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/domain/calculation"
	"github.com/turtacn/LumiGrid/internal/domain/catalog"
	"github.com/turtacn/LumiGrid/internal/infrastructure/messaging/kafka"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Calculate(ctx context.Context, req *lighting.CalculationRequest) (*lighting.CalculationResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*lighting.CalculationResult)
	return res, args.Error(1)
}

func (m *MockService) Submit(ctx context.Context, req *lighting.CalculationRequest) (*lighting.Job, error) {
	args := m.Called(ctx, req)
	job, _ := args.Get(0).(*lighting.Job)
	return job, args.Error(1)
}

func (m *MockService) HandleJob(ctx context.Context, payload *kafka.CalculationRequestedPayload) error {
	return m.Called(ctx, payload).Error(0)
}

func (m *MockService) GetRun(ctx context.Context, id string) (*calculation.Run, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*calculation.Run)
	return run, args.Error(1)
}

func (m *MockService) ListRuns(ctx context.Context, limit, offset int) (*lighting.RunList, error) {
	args := m.Called(ctx, limit, offset)
	list, _ := args.Get(0).(*lighting.RunList)
	return list, args.Error(1)
}

func (m *MockService) SearchRuns(ctx context.Context, f calculation.Filter) (*lighting.SearchResult, error) {
	args := m.Called(ctx, f)
	res, _ := args.Get(0).(*lighting.SearchResult)
	return res, args.Error(1)
}

func (m *MockService) ReportURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockService) ListFixtureModels(ctx context.Context, limit, offset int) (*lighting.FixtureModelList, error) {
	args := m.Called(ctx, limit, offset)
	list, _ := args.Get(0).(*lighting.FixtureModelList)
	return list, args.Error(1)
}

func (m *MockService) GetFixtureModel(ctx context.Context, id string) (*catalog.FixtureModel, error) {
	args := m.Called(ctx, id)
	fm, _ := args.Get(0).(*catalog.FixtureModel)
	return fm, args.Error(1)
}

func (m *MockService) ImportFixtureModels(ctx context.Context, models []lighting.FixtureModelInput) (*lighting.ImportResult, error) {
	args := m.Called(ctx, models)
	res, _ := args.Get(0).(*lighting.ImportResult)
	return res, args.Error(1)
}

var _ lighting.Service = (*MockService)(nil)
