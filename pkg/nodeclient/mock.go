package nodeclient

import (
	"context"

	"streamctl/pkg/models"

	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of the Client interface, shared by
// component tests across the control plane.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Ping(ctx context.Context, node models.Node) (*NodeState, error) {
	args := m.Called(ctx, node)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*NodeState), args.Error(1)
}

func (m *MockClient) GetPathState(ctx context.Context, node models.Node, path string) (*PathState, error) {
	args := m.Called(ctx, node, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PathState), args.Error(1)
}

func (m *MockClient) PushConfig(ctx context.Context, node models.Node, body string) error {
	args := m.Called(ctx, node, body)
	return args.Error(0)
}

func (m *MockClient) ListSessions(ctx context.Context, node models.Node) ([]models.ViewerSession, error) {
	args := m.Called(ctx, node)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ViewerSession), args.Error(1)
}

func (m *MockClient) KickSession(ctx context.Context, node models.Node, protocol models.Protocol, sessionID string) error {
	args := m.Called(ctx, node, protocol, sessionID)
	return args.Error(0)
}

func (m *MockClient) RunAction(ctx context.Context, node models.Node, action Action, path string) error {
	args := m.Called(ctx, node, action, path)
	return args.Error(0)
}
