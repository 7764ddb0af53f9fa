package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Run("mixed casing", func(t *testing.T) {
		for in, want := range map[string]Role{
			"PV":      RolePV,
			"Load":    RoleLoad,
			"LOAD":    RoleLoad,
			"grid":    RoleGrid,
			"Storage": RoleStorage,
			"STORAGE": RoleStorage,
		} {
			got, ok := ParseRole(in)
			assert.True(t, ok, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := ParseRole("EV")
		assert.False(t, ok)
		_, ok = ParseRole("")
		assert.False(t, ok)
	})
}

func TestEdge(t *testing.T) {
	e := NewEdge("GRID", "Load")
	assert.True(t, e.Known())
	assert.Equal(t, RoleGrid, e.From)
	assert.Equal(t, RoleLoad, e.To)
	assert.Equal(t, "GRID -> LOAD", e.String())

	e = NewEdge("PV", "Heatpump")
	assert.False(t, e.Known())
	assert.Equal(t, "PV -> Heatpump", e.String())
}

func TestStateID(t *testing.T) {
	assert.Equal(t, "solaredge.0.12345.gridAbs", StateID("0", "12345", "gridAbs"))
}

func TestValue(t *testing.T) {
	t.Run("Equal", func(t *testing.T) {
		assert.True(t, Number(1.5).Equal(Number(1.5)))
		assert.False(t, Number(1.5).Equal(Number(1.6)))
		assert.True(t, Text("a").Equal(Text("a")))
		assert.False(t, Text("1").Equal(Number(1)))
		assert.True(t, Number(0).Equal(Value{}))
	})

	t.Run("JSON", func(t *testing.T) {
		b, err := json.Marshal(Metrics{"gridAbs": Number(-0.2), "lastUpdateTime": Text("2024-05-01 12:00:00")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"gridAbs":-0.2,"lastUpdateTime":"2024-05-01 12:00:00"}`, string(b))

		var v Value
		require.NoError(t, json.Unmarshal([]byte(`"idle"`), &v))
		assert.Equal(t, Text("idle"), v)
		require.NoError(t, json.Unmarshal([]byte(`80`), &v))
		assert.Equal(t, Number(80), v)
		assert.Error(t, json.Unmarshal([]byte(`true`), &v))
	})

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "0.25", Number(0.25).String())
		assert.Equal(t, "-200", Number(-200).String())
		assert.Equal(t, "x", Text("x").String())
	})
}
