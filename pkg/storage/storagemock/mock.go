package storagemock

import (
	"context"

	"github.com/raterudder/solaredge/pkg/storage"
	"github.com/raterudder/solaredge/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetState(ctx context.Context, id string) (types.State, error) {
	args := m.Called(ctx, id)
	if len(args) > 0 {
		return args.Get(0).(types.State), args.Error(1)
	}
	return types.State{}, nil
}

func (m *MockDatabase) DeclareState(ctx context.Context, id string, spec types.SlotSpec) error {
	args := m.Called(ctx, id, spec)
	return args.Error(0)
}

func (m *MockDatabase) SetStateChanged(ctx context.Context, id string, value types.Value, ack bool) (bool, error) {
	args := m.Called(ctx, id, value, ack)
	if len(args) > 0 {
		return args.Bool(0), args.Error(1)
	}
	return false, nil
}

func (m *MockDatabase) ListStates(ctx context.Context, prefix string) ([]types.State, error) {
	args := m.Called(ctx, prefix)
	if len(args) > 0 {
		return args.Get(0).([]types.State), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	return nil
}
