package runner

import (
	"context"

	"github.com/raterudder/solaredge/pkg/solaredge"
	"github.com/raterudder/solaredge/pkg/types"
	"github.com/stretchr/testify/mock"
)

type mockMonitor struct {
	mock.Mock
}

var _ solaredge.Monitor = (*mockMonitor)(nil)

func (m *mockMonitor) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockMonitor) LogConfig(ctx context.Context) {}

func (m *mockMonitor) SiteID() string {
	return "12345"
}

func (m *mockMonitor) CurrentPowerFlow(ctx context.Context) (types.Snapshot, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.Snapshot), args.Error(1)
	}
	return types.Snapshot{}, nil
}

func (m *mockMonitor) Overview(ctx context.Context) (types.Overview, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.Overview), args.Error(1)
	}
	return types.Overview{}, nil
}
