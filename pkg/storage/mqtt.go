package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solaredge/pkg/log"
	"github.com/raterudder/solaredge/pkg/types"
)

// MQTTProvider stores states on an MQTT broker using retained messages.
// Declaring a state publishes a Home Assistant discovery config and values are
// published as retained JSON on a per-state topic, so the broker itself holds
// the previous value used for change detection.
type MQTTProvider struct {
	client          mqtt.Client
	broker          string
	clientID        string
	username        string
	password        string
	discoveryPrefix string
	retainedWait    time.Duration
	timeout         time.Duration
	now             func() time.Time
}

// configuredMQTT sets up the MQTT provider. Credentials default to
// MQTT_USERNAME and MQTT_PASSWORD.
func configuredMQTT() *MQTTProvider {
	broker := lflag.String("mqtt-broker", "", "MQTT broker url (e.g. tcp://localhost:1883)")
	clientID := lflag.String("mqtt-client-id", "solaredge", "MQTT client id")
	username := lflag.String("mqtt-username", os.Getenv("MQTT_USERNAME"), "MQTT username")
	password := lflag.String("mqtt-password", os.Getenv("MQTT_PASSWORD"), "MQTT password")
	discoveryPrefix := lflag.String("mqtt-discovery-prefix", "homeassistant", "Home Assistant discovery prefix")
	retainedWait := lflag.Duration("mqtt-retained-wait", 500*time.Millisecond, "How long to wait for a retained message before treating it as missing")

	m := &MQTTProvider{
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	lflag.Do(func() {
		m.broker = *broker
		m.clientID = *clientID
		m.username = *username
		m.password = *password
		m.discoveryPrefix = *discoveryPrefix
		m.retainedWait = *retainedWait
	})
	return m
}

// NewMQTT returns a provider for the broker. Init must be called before use.
func NewMQTT(broker, clientID string) *MQTTProvider {
	return &MQTTProvider{
		broker:          broker,
		clientID:        clientID,
		discoveryPrefix: "homeassistant",
		retainedWait:    500 * time.Millisecond,
		timeout:         10 * time.Second,
		now:             time.Now,
	}
}

// Validate checks if the provider is properly configured.
func (m *MQTTProvider) Validate() error {
	if m.broker == "" {
		return fmt.Errorf("mqtt-broker is required")
	}
	if m.discoveryPrefix == "" {
		return fmt.Errorf("mqtt-discovery-prefix is required")
	}
	return nil
}

// Init connects to the broker.
func (m *MQTTProvider) Init(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.broker)
	opts.SetClientID(m.clientID)
	opts.SetUsername(m.username)
	opts.SetPassword(m.password)
	opts.SetConnectTimeout(m.timeout)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Ctx(ctx).WarnContext(ctx, "mqtt connection lost", slog.Any("error", err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("timed out connecting to mqtt broker %s", m.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker %s: %w", m.broker, err)
	}
	log.Ctx(ctx).DebugContext(ctx, "connected to mqtt broker", slog.String("broker", m.broker))
	m.client = client
	return nil
}

// Close disconnects from the broker.
func (m *MQTTProvider) Close() error {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}

// uniqueID turns "solaredge.0.123.gridIn" into "solaredge_0_123_gridIn".
func uniqueID(id string) string {
	return strings.ReplaceAll(id, ".", "_")
}

func (m *MQTTProvider) configTopic(id string) string {
	return m.discoveryPrefix + "/sensor/" + uniqueID(id) + "/config"
}

func (m *MQTTProvider) stateTopic(id string) string {
	return strings.ReplaceAll(id, ".", "/")
}

type haDeviceConfig struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
}

type haEntityConfig struct {
	Name          string         `json:"name"`
	StateTopic    string         `json:"state_topic"`
	UnitOfMeasure string         `json:"unit_of_measurement,omitempty"`
	DeviceClass   string         `json:"device_class,omitempty"`
	StateClass    string         `json:"state_class,omitempty"`
	ValueTemplate string         `json:"value_template"`
	UniqueID      string         `json:"unique_id"`
	ObjectID      string         `json:"object_id"`
	Device        haDeviceConfig `json:"device"`
	// Spec is ignored by Home Assistant and used to read the declaration back.
	Spec types.SlotSpec `json:"solaredge_spec"`
}

type mqttStatePayload struct {
	Val types.Value `json:"val"`
	Ack bool        `json:"ack"`
	TS  int64       `json:"ts"`
	LC  int64       `json:"lc"`
}

func deviceClass(unit string) string {
	switch unit {
	case "kW", "W":
		return "power"
	case "Wh", "kWh":
		return "energy"
	case "%":
		return "battery"
	default:
		return ""
	}
}

// deviceName returns the device a state belongs to, which is everything
// before the state name.
func deviceName(id string) string {
	if i := strings.LastIndex(id, "."); i > 0 {
		return id[:i]
	}
	return id
}

// retained subscribes to topic and returns the retained message if the broker
// delivers one within retainedWait. An empty retained payload means the topic
// was cleared.
func (m *MQTTProvider) retained(ctx context.Context, topic string) ([]byte, bool, error) {
	ch := make(chan []byte, 1)
	token := m.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case ch <- msg.Payload():
		default:
		}
	})
	if !token.WaitTimeout(m.timeout) {
		return nil, false, fmt.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return nil, false, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	defer func() {
		m.client.Unsubscribe(topic).WaitTimeout(m.timeout)
	}()

	timer := time.NewTimer(m.retainedWait)
	defer timer.Stop()
	select {
	case payload := <-ch:
		if len(payload) == 0 {
			return nil, false, nil
		}
		return payload, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (m *MQTTProvider) publish(topic string, payload []byte) error {
	token := m.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (m *MQTTProvider) readState(ctx context.Context, id string) (types.State, error) {
	payload, ok, err := m.retained(ctx, m.configTopic(id))
	if err != nil {
		return types.State{}, err
	}
	if !ok {
		return types.State{}, ErrStateNotFound
	}
	var cfg haEntityConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return types.State{}, fmt.Errorf("invalid discovery config for %s: %w", id, err)
	}
	s := types.State{ID: id, Spec: cfg.Spec}

	payload, ok, err = m.retained(ctx, m.stateTopic(id))
	if err != nil {
		return types.State{}, err
	}
	if ok {
		var sp mqttStatePayload
		if err := json.Unmarshal(payload, &sp); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "ignoring invalid retained state", slog.String("stateID", id), slog.Any("error", err))
			return s, nil
		}
		s.Value = &sp.Val
		s.Ack = sp.Ack
		s.Timestamp = time.UnixMilli(sp.TS)
		s.LastChange = time.UnixMilli(sp.LC)
	}
	return s, nil
}

// GetState reads the retained discovery config and state of id.
func (m *MQTTProvider) GetState(ctx context.Context, id string) (types.State, error) {
	return m.readState(ctx, id)
}

// DeclareState publishes the Home Assistant discovery config for id.
func (m *MQTTProvider) DeclareState(ctx context.Context, id string, spec types.SlotSpec) error {
	device := deviceName(id)
	cfg := haEntityConfig{
		Name:          spec.Name,
		StateTopic:    m.stateTopic(id),
		UnitOfMeasure: spec.Unit,
		ValueTemplate: "{{ value_json.val }}",
		UniqueID:      uniqueID(id),
		ObjectID:      uniqueID(id),
		Device: haDeviceConfig{
			Identifiers:  []string{uniqueID(device)},
			Name:         device,
			Manufacturer: "SolarEdge",
		},
		Spec: spec,
	}
	if spec.Type == types.SlotTypeNumber {
		cfg.DeviceClass = deviceClass(spec.Unit)
		cfg.StateClass = "measurement"
		if cfg.DeviceClass == "energy" {
			cfg.StateClass = "total_increasing"
		}
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery config: %w", err)
	}
	return m.publish(m.configTopic(id), payload)
}

// SetStateChanged publishes the value if it differs from the retained one.
func (m *MQTTProvider) SetStateChanged(ctx context.Context, id string, value types.Value, ack bool) (bool, error) {
	cur, err := m.readState(ctx, id)
	if err != nil {
		return false, err
	}
	next, changed := applyChange(cur, value, ack, m.now())
	if !changed {
		return false, nil
	}
	payload, err := json.Marshal(mqttStatePayload{
		Val: value,
		Ack: next.Ack,
		TS:  next.Timestamp.UnixMilli(),
		LC:  next.LastChange.UnixMilli(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := m.publish(m.stateTopic(id), payload); err != nil {
		return false, err
	}
	return true, nil
}

// ListStates collects every retained discovery config under the discovery
// prefix and keeps the ones whose id starts with prefix.
func (m *MQTTProvider) ListStates(ctx context.Context, prefix string) ([]types.State, error) {
	var (
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	topic := m.discoveryPrefix + "/sensor/+/config"
	token := m.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var cfg haEntityConfig
		if err := json.Unmarshal(msg.Payload(), &cfg); err != nil {
			return
		}
		// the state id is the state topic with dots
		id := strings.ReplaceAll(cfg.StateTopic, "/", ".")
		if !strings.HasPrefix(id, prefix) {
			return
		}
		mu.Lock()
		ids[id] = true
		mu.Unlock()
	})
	if !token.WaitTimeout(m.timeout) {
		return nil, fmt.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	select {
	case <-time.After(m.retainedWait):
	case <-ctx.Done():
		m.client.Unsubscribe(topic).WaitTimeout(m.timeout)
		return nil, ctx.Err()
	}
	m.client.Unsubscribe(topic).WaitTimeout(m.timeout)

	mu.Lock()
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	mu.Unlock()
	sort.Strings(sorted)

	states := make([]types.State, 0, len(sorted))
	for _, id := range sorted {
		s, err := m.readState(ctx, id)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to read state", slog.String("stateID", id), slog.Any("error", err))
			continue
		}
		states = append(states, s)
	}
	return states, nil
}
