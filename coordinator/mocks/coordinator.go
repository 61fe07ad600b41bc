package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fedmesh/fedmesh/coordinator"
	"github.com/fedmesh/fedmesh/pkg/fl"
)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) StartRound(ctx context.Context, cfg coordinator.RoundConfig) (fl.Round, error) {
	args := m.Called(ctx, cfg)
	return args.Get(0).(fl.Round), args.Error(1)
}

func (m *MockService) SubmitGradient(ctx context.Context, update fl.GradientUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockService) SubmitGradientCBOR(ctx context.Context, data []byte) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *MockService) SubmitModel(ctx context.Context, update fl.ModelUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockService) SubmitModelCBOR(ctx context.Context, data []byte) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *MockService) RoundStatus(ctx context.Context, roundID string) (fl.Round, error) {
	args := m.Called(ctx, roundID)
	return args.Get(0).(fl.Round), args.Error(1)
}

func (m *MockService) ListRounds(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockService) GlobalModel(ctx context.Context, version uint64) (fl.Model, error) {
	args := m.Called(ctx, version)
	return args.Get(0).(fl.Model), args.Error(1)
}
