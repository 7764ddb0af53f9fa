package storage

import (
	"errors"
	"time"

	"github.com/raterudder/solaredge/pkg/types"
)

var (
	ErrStateNotFound = errors.New("state not found")
)

// applyChange returns the state after writing value and whether anything
// changed. The timestamp only moves when the state is mutated and the last
// change time only moves when the value itself differs.
func applyChange(cur types.State, value types.Value, ack bool, now time.Time) (types.State, bool) {
	valueChanged := cur.Value == nil || !cur.Value.Equal(value)
	if !valueChanged && cur.Ack == ack {
		return cur, false
	}
	v := value
	cur.Value = &v
	cur.Ack = ack
	cur.Timestamp = now
	if valueChanged {
		cur.LastChange = now
	}
	return cur, true
}
