package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fedmesh/fedmesh/federation"
	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/message"
)

// MockService is a mock implementation of the federation.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) Stop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) ConnectNode(ctx context.Context, n node.Node) (node.Node, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(node.Node), args.Error(1)
}

func (m *MockService) DisconnectNode(ctx context.Context, nodeID string) error {
	args := m.Called(ctx, nodeID)
	return args.Error(0)
}

func (m *MockService) GetNode(ctx context.Context, nodeID string) (node.Node, error) {
	args := m.Called(ctx, nodeID)
	return args.Get(0).(node.Node), args.Error(1)
}

func (m *MockService) ListNodes(ctx context.Context, offset, limit uint64) (node.NodePage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(node.NodePage), args.Error(1)
}

func (m *MockService) SendMessage(ctx context.Context, msg message.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockService) BroadcastMessage(ctx context.Context, msg message.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockService) Metrics(ctx context.Context) (federation.Metrics, error) {
	args := m.Called(ctx)
	return args.Get(0).(federation.Metrics), args.Error(1)
}
