package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/raterudder/solaredge/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := types.Number(-0.2)
	s := types.State{
		ID:         "solaredge.0.123.gridAbs",
		Spec:       types.SlotSpec{Name: "gridAbs", Type: types.SlotTypeNumber, Unit: "kW"},
		Value:      &v,
		Ack:        true,
		LastChange: now.Add(-2 * time.Minute),
	}
	assert.Equal(t, []string{"gridAbs", "number", "-0.2 kW", "yes", "2 minutes ago"}, row("solaredge.0.123.", s, now))

	empty := types.State{ID: "solaredge.0.123.pv", Spec: types.SlotSpec{Type: types.SlotTypeNumber}}
	assert.Equal(t, []string{"pv", "number", "-", "no", "never"}, row("solaredge.0.123.", empty, now))
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	v := types.Text("2024-05-01 12:00:00")
	render(&buf, "solaredge.0.123.", []types.State{{
		ID:    "solaredge.0.123.lastUpdateTime",
		Spec:  types.SlotSpec{Type: types.SlotTypeString},
		Value: &v,
	}})
	assert.Contains(t, buf.String(), "lastUpdateTime")
	assert.Contains(t, buf.String(), "2024-05-01 12:00:00")
	assert.Contains(t, buf.String(), "State")
}
