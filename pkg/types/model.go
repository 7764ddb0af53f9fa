package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

const (
	// StatePrefix is the first component of every state ID.
	StatePrefix = "solaredge"

	ResourceOverview         = "overview"
	ResourceCurrentPowerFlow = "currentPowerFlow"
)

// StateID returns the path a slot is stored under.
func StateID(instance, siteID, name string) string {
	return StatePrefix + "." + instance + "." + siteID + "." + name
}

// SlotType is the declared type of a slot's value.
type SlotType string

const (
	SlotTypeNumber SlotType = "number"
	SlotTypeString SlotType = "string"
)

// SlotSpec describes a declared, typed state slot.
type SlotSpec struct {
	Name  string   `json:"name"`
	Type  SlotType `json:"type"`
	Read  bool     `json:"read"`
	Write bool     `json:"write"`
	Role  string   `json:"role"`
	Desc  string   `json:"desc"`
	Unit  string   `json:"unit,omitempty"`
}

// State is a slot together with its current value.
type State struct {
	ID         string    `json:"id"`
	Spec       SlotSpec  `json:"spec"`
	Value      *Value    `json:"value,omitempty"`
	Ack        bool      `json:"ack"`
	Timestamp  time.Time `json:"ts"`
	LastChange time.Time `json:"lc"`
}

// Value is a slot value which is either a number or a string.
type Value struct {
	Number float64
	Text   string
	IsText bool
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{Number: f}
}

// Text returns a string Value.
func Text(s string) Value {
	return Value{Text: s, IsText: true}
}

// Equal returns true if both values have the same type and content.
func (v Value) Equal(o Value) bool {
	if v.IsText != o.IsText {
		return false
	}
	if v.IsText {
		return v.Text == o.Text
	}
	return v.Number == o.Number
}

// Type returns the SlotType matching the value.
func (v Value) Type() SlotType {
	if v.IsText {
		return SlotTypeString
	}
	return SlotTypeNumber
}

// String formats the value for logs and MQTT payloads.
func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// MarshalJSON encodes the value as a bare JSON number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsText {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Number)
}

// UnmarshalJSON decodes a bare JSON number or string.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*v = Number(t)
	case string:
		*v = Text(t)
	default:
		return fmt.Errorf("unsupported value type %T", raw)
	}
	return nil
}

// Metrics maps a metric name to its current value.
type Metrics map[string]Value

// Names returns the metric names sorted.
func (m Metrics) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overview is the site energy summary reported by the overview resource.
type Overview struct {
	LastUpdateTime  string  `json:"lastUpdateTime"`
	CurrentPower    float64 `json:"currentPower"`
	LifeTimeEnergy  float64 `json:"lifeTimeEnergy"`
	LastYearEnergy  float64 `json:"lastYearEnergy"`
	LastMonthEnergy float64 `json:"lastMonthEnergy"`
	LastDayEnergy   float64 `json:"lastDayEnergy"`
	MeasuredBy      string  `json:"measuredBy,omitempty"`
}
