package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/fedmesh/fedmesh/pkg/sdk"
)

// SDK is a mock implementation of the sdk.SDK interface for testing.
type SDK struct {
	mock.Mock
}

func (m *SDK) SendMessage(msg message.Message) error {
	args := m.Called(msg)

	return args.Error(0)
}

func (m *SDK) DeliverMessage(msg message.Message) error {
	args := m.Called(msg)

	return args.Error(0)
}

func (m *SDK) GetNode(id string) (node.Node, error) {
	args := m.Called(id)

	return args.Get(0).(node.Node), args.Error(1)
}

func (m *SDK) ListNodes(offset, limit uint64) (node.NodePage, error) {
	args := m.Called(offset, limit)

	return args.Get(0).(node.NodePage), args.Error(1)
}

func (m *SDK) HealthCheck() error {
	args := m.Called()

	return args.Error(0)
}

func (m *SDK) StartRound(cfg sdk.RoundConfig) (sdk.RoundStatus, error) {
	args := m.Called(cfg)

	return args.Get(0).(sdk.RoundStatus), args.Error(1)
}

func (m *SDK) GetRound(roundID string) (sdk.RoundStatus, error) {
	args := m.Called(roundID)

	return args.Get(0).(sdk.RoundStatus), args.Error(1)
}

func (m *SDK) ListParticipants(offset, limit uint64) (sdk.ParticipantPage, error) {
	args := m.Called(offset, limit)

	return args.Get(0).(sdk.ParticipantPage), args.Error(1)
}
