package solaredge

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raterudder/solaredge/pkg/log"
	"github.com/raterudder/solaredge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

const powerFlowWithStorage = `{
	"siteCurrentPowerFlow": {
		"updateRefreshRate": 3,
		"unit": "kW",
		"connections": [
			{"from": "PV", "to": "Load"},
			{"from": "PV", "to": "Storage"},
			{"from": "LOAD", "to": "Grid"}
		],
		"GRID": {"status": "Active", "currentPower": 0.4},
		"LOAD": {"status": "Active", "currentPower": 1.2},
		"PV": {"status": "Active", "currentPower": 3.1},
		"STORAGE": {"status": "Charging", "currentPower": 1.5, "chargeLevel": 62, "critical": false}
	}
}`

const overviewBody = `{
	"overview": {
		"lastUpdateTime": "2024-05-01 12:34:56",
		"lifeTimeData": {"energy": 761985.75, "revenue": 946.13},
		"lastYearData": {"energy": 761985.75},
		"lastMonthData": {"energy": 492736.72},
		"lastDayData": {"energy": 1327.35},
		"currentPower": {"power": 304.8},
		"measuredBy": "INVERTER"
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, "12345", "APIKEY0123456789", ts.Client())
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, NewClient("", "", "key", nil).Validate(), ErrConfigMissing)
	assert.ErrorIs(t, NewClient("", "123", "", nil).Validate(), ErrConfigMissing)
	assert.NoError(t, NewClient("", "123", "key", nil).Validate())
}

func TestCurrentPowerFlow(t *testing.T) {
	t.Run("With Storage", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "GET", r.Method)
			assert.Equal(t, "/site/12345/currentPowerFlow.json", r.URL.Path)
			assert.Equal(t, "APIKEY0123456789", r.URL.Query().Get("api_key"))
			w.Write([]byte(powerFlowWithStorage))
		})

		snap, err := c.CurrentPowerFlow(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "kW", snap.Unit)
		assert.Equal(t, 3, snap.UpdateRefreshRate)
		require.Len(t, snap.Nodes, 4)
		assert.Equal(t, 1.2, snap.Nodes[types.RoleLoad].CurrentPower)
		assert.Equal(t, 3.1, snap.Nodes[types.RolePV].CurrentPower)
		assert.Equal(t, 0.4, snap.Nodes[types.RoleGrid].CurrentPower)
		assert.True(t, snap.HasStorage())
		assert.Equal(t, 62.0, snap.Nodes[types.RoleStorage].ChargeLevel)
		assert.Equal(t, "Charging", snap.Nodes[types.RoleStorage].Status)

		require.Len(t, snap.Edges, 3)
		assert.Equal(t, types.Edge{From: types.RolePV, To: types.RoleLoad, RawFrom: "PV", RawTo: "Load"}, snap.Edges[0])
		assert.Equal(t, types.Edge{From: types.RolePV, To: types.RoleStorage, RawFrom: "PV", RawTo: "Storage"}, snap.Edges[1])
		assert.Equal(t, types.Edge{From: types.RoleLoad, To: types.RoleGrid, RawFrom: "LOAD", RawTo: "Grid"}, snap.Edges[2])
	})

	t.Run("Without Storage And No Connections", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"siteCurrentPowerFlow":{"unit":"kW","connections":[],"GRID":{"currentPower":0},"LOAD":{"currentPower":0.5},"PV":{"currentPower":0.5}}}`))
		})
		snap, err := c.CurrentPowerFlow(context.Background())
		require.NoError(t, err)
		assert.False(t, snap.HasStorage())
		assert.Empty(t, snap.Edges)
	})

	t.Run("Unknown Edge Endpoint Is Kept", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"siteCurrentPowerFlow":{"connections":[{"from":"PV","to":"EV"}],"GRID":{"currentPower":0},"LOAD":{"currentPower":0.5},"PV":{"currentPower":0.5}}}`))
		})
		snap, err := c.CurrentPowerFlow(context.Background())
		require.NoError(t, err)
		require.Len(t, snap.Edges, 1)
		assert.False(t, snap.Edges[0].Known())
		assert.Equal(t, "PV -> EV", snap.Edges[0].String())
	})

	t.Run("Transport Error Status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		})
		_, err := c.CurrentPowerFlow(context.Background())
		require.ErrorIs(t, err, ErrTransport)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("Transport Error Connection", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		c := NewClient(url, "12345", "SUPERSECRETKEY", nil)
		_, err := c.CurrentPowerFlow(context.Background())
		require.ErrorIs(t, err, ErrTransport)
		assert.NotContains(t, err.Error(), "SUPERSECRETKEY", "api key must not leak into errors")
	})

	t.Run("Empty Body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		_, err := c.CurrentPowerFlow(context.Background())
		require.ErrorIs(t, err, ErrEmptyContent)
		assert.Contains(t, err.Error(), "200")
	})

	t.Run("Missing Field", func(t *testing.T) {
		for _, body := range []string{`{}`, `{"siteCurrentPowerFlow":null}`, `{"siteCurrentPowerFlow":{}}`, `not json`} {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.CurrentPowerFlow(context.Background())
			assert.ErrorIs(t, err, ErrEmptyContent, body)
		}
	})

	t.Run("Missing Required Nodes", func(t *testing.T) {
		for _, body := range []string{
			`{"siteCurrentPowerFlow":{"GRID":{"currentPower":0},"PV":{"currentPower":0.5}}}`,
			`{"siteCurrentPowerFlow":{"GRID":{"currentPower":0},"LOAD":{"currentPower":0.5}}}`,
		} {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.CurrentPowerFlow(context.Background())
			assert.ErrorIs(t, err, ErrMalformedSnapshot, body)
		}
	})
}

func TestOverview(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/site/12345/overview.json", r.URL.Path)
			w.Write([]byte(overviewBody))
		})
		ov, err := c.Overview(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.Overview{
			LastUpdateTime:  "2024-05-01 12:34:56",
			CurrentPower:    304.8,
			LifeTimeEnergy:  761985.75,
			LastYearEnergy:  761985.75,
			LastMonthEnergy: 492736.72,
			LastDayEnergy:   1327.35,
			MeasuredBy:      "INVERTER",
		}, ov)
	})

	t.Run("Missing Field", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"details":{}}`))
		})
		_, err := c.Overview(context.Background())
		assert.ErrorIs(t, err, ErrEmptyContent)
	})
}
