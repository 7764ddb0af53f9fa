package storage

import (
	"context"

	"github.com/raterudder/solaredge/pkg/types"
)

// Database defines the interface for the state store that declared slots and
// their values are persisted in.
type Database interface {
	// GetState returns the slot stored under id or ErrStateNotFound.
	GetState(ctx context.Context, id string) (types.State, error)

	// DeclareState creates the slot or updates its declaration. An existing
	// value is kept.
	DeclareState(ctx context.Context, id string, spec types.SlotSpec) error

	// SetStateChanged stores the value only if it differs from the stored
	// value (or the ack flag differs). It returns whether the store was
	// mutated. Writing an undeclared slot returns ErrStateNotFound.
	SetStateChanged(ctx context.Context, id string, value types.Value, ack bool) (bool, error)

	// ListStates returns all slots whose id starts with prefix, ordered by id.
	ListStates(ctx context.Context, prefix string) ([]types.State, error)

	// Lifecycle
	Close() error
}
