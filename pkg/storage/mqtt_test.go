package storage

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/raterudder/solaredge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMQTTHelpers(t *testing.T) {
	m := NewMQTT("tcp://localhost:1883", "test")
	id := types.StateID("0", "12345", "gridAbs")

	assert.Equal(t, "solaredge_0_12345_gridAbs", uniqueID(id))
	assert.Equal(t, "homeassistant/sensor/solaredge_0_12345_gridAbs/config", m.configTopic(id))
	assert.Equal(t, "solaredge/0/12345/gridAbs", m.stateTopic(id))
	assert.Equal(t, "solaredge.0.12345", deviceName(id))

	assert.Equal(t, "power", deviceClass("kW"))
	assert.Equal(t, "energy", deviceClass("Wh"))
	assert.Equal(t, "battery", deviceClass("%"))
	assert.Equal(t, "", deviceClass(""))
}

func TestMQTTStatePayload(t *testing.T) {
	b, err := json.Marshal(mqttStatePayload{Val: types.Number(-0.2), Ack: true, TS: 1, LC: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"val":-0.2,"ack":true,"ts":1,"lc":1}`, string(b))
}

func TestMQTTValidate(t *testing.T) {
	assert.Error(t, NewMQTT("", "test").Validate())
	assert.NoError(t, NewMQTT("tcp://localhost:1883", "test").Validate())
}

func TestMQTTProvider(t *testing.T) {
	broker := os.Getenv("MQTT_TEST_BROKER")
	if broker == "" {
		t.Skip("MQTT_TEST_BROKER not set")
	}
	m := NewMQTT(broker, "solaredge-test")
	m.retainedWait = time.Second
	require.NoError(t, m.Init(context.Background()))
	defer m.Close()

	testDatabase(t, m)
}
