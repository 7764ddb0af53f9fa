package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raterudder/solaredge/pkg/types"
)

// MemoryProvider keeps states in process memory. It is used for dry runs and
// tests, and counts every mutation so change detection can be observed.
type MemoryProvider struct {
	mu        sync.Mutex
	states    map[string]types.State
	mutations int
	now       func() time.Time
}

var _ Database = (*MemoryProvider)(nil)

// NewMemory returns an empty in-memory state store.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{
		states: make(map[string]types.State),
		now:    time.Now,
	}
}

// GetState returns the state stored under id.
func (m *MemoryProvider) GetState(ctx context.Context, id string) (types.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	if !ok {
		return types.State{}, ErrStateNotFound
	}
	return s, nil
}

// DeclareState creates or updates the declaration of a state.
func (m *MemoryProvider) DeclareState(ctx context.Context, id string, spec types.SlotSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.states[id]
	s.ID = id
	s.Spec = spec
	m.states[id] = s
	m.mutations++
	return nil
}

// SetStateChanged stores the value if it changed.
func (m *MemoryProvider) SetStateChanged(ctx context.Context, id string, value types.Value, ack bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.states[id]
	if !ok {
		return false, ErrStateNotFound
	}
	next, changed := applyChange(cur, value, ack, m.now())
	if !changed {
		return false, nil
	}
	m.states[id] = next
	m.mutations++
	return true, nil
}

// ListStates returns the states with the given id prefix.
func (m *MemoryProvider) ListStates(ctx context.Context, prefix string) ([]types.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.State
	for id, s := range m.states {
		if strings.HasPrefix(id, prefix) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Mutations returns how many times the store was written to.
func (m *MemoryProvider) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations
}

// Close is a no-op.
func (m *MemoryProvider) Close() error {
	return nil
}
