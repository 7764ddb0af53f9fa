package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solaredge/pkg/log"
	"github.com/raterudder/solaredge/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreStatesCollection = "states"

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Every state is one document in the "states" collection keyed by its id.
// The declaration and the value are stored as JSON strings for portability.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
	now       func() time.Time
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{now: time.Now}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID may be empty, it is detected from the environment.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	if f.now == nil {
		f.now = time.Now
	}
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) stateDoc(id string) (*firestore.DocumentRef, error) {
	if id == "" {
		return nil, fmt.Errorf("state id cannot be empty")
	}
	if strings.Contains(id, "/") {
		return nil, fmt.Errorf("state id cannot contain '/': %s", id)
	}
	return f.client.Collection(firestoreStatesCollection).Doc(id), nil
}

// stateFromDoc decodes a state document.
func stateFromDoc(doc *firestore.DocumentSnapshot) (types.State, error) {
	s := types.State{ID: doc.Ref.ID}

	val, err := doc.DataAt("json")
	if err != nil {
		return types.State{}, fmt.Errorf("state %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return types.State{}, fmt.Errorf("state %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), &s.Spec); err != nil {
		return types.State{}, fmt.Errorf("failed to unmarshal state spec (id=%s): %w", doc.Ref.ID, err)
	}

	// value, ack, ts and lc are missing until the first write
	if v, err := doc.DataAt("value"); err == nil {
		if vStr, ok := v.(string); ok && vStr != "" {
			var value types.Value
			if err := json.Unmarshal([]byte(vStr), &value); err != nil {
				return types.State{}, fmt.Errorf("failed to unmarshal state value (id=%s): %w", doc.Ref.ID, err)
			}
			s.Value = &value
		}
	}
	if v, err := doc.DataAt("ack"); err == nil {
		s.Ack, _ = v.(bool)
	}
	if v, err := doc.DataAt("ts"); err == nil {
		s.Timestamp, _ = v.(time.Time)
	}
	if v, err := doc.DataAt("lc"); err == nil {
		s.LastChange, _ = v.(time.Time)
	}
	return s, nil
}

// GetState retrieves a state document.
func (f *FirestoreProvider) GetState(ctx context.Context, id string) (types.State, error) {
	ref, err := f.stateDoc(id)
	if err != nil {
		return types.State{}, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.State{}, ErrStateNotFound
		}
		return types.State{}, fmt.Errorf("failed to get state %s: %w", id, err)
	}
	s, err := stateFromDoc(doc)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid state doc", slog.String("stateID", id), slog.Any("error", err))
		return types.State{}, err
	}
	return s, nil
}

// DeclareState writes the declaration of a state. The merge keeps any value
// that was already stored.
func (f *FirestoreProvider) DeclareState(ctx context.Context, id string, spec types.SlotSpec) error {
	jsonBytes, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal state spec: %w", err)
	}
	ref, err := f.stateDoc(id)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]interface{}{
		"json":     string(jsonBytes),
		"type":     string(spec.Type),
		"declared": f.now(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to declare state %s: %w", id, err)
	}
	return nil
}

// SetStateChanged compares and writes the value inside a transaction so
// concurrent writers cannot both observe the old value.
func (f *FirestoreProvider) SetStateChanged(ctx context.Context, id string, value types.Value, ack bool) (bool, error) {
	ref, err := f.stateDoc(id)
	if err != nil {
		return false, err
	}

	var changed bool
	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = false
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrStateNotFound
			}
			return err
		}
		cur, err := stateFromDoc(doc)
		if err != nil {
			return err
		}
		next, ok := applyChange(cur, value, ack, f.now())
		if !ok {
			return nil
		}
		valueJSON, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal state value: %w", err)
		}
		changed = true
		return tx.Update(ref, []firestore.Update{
			{Path: "value", Value: string(valueJSON)},
			{Path: "ack", Value: next.Ack},
			{Path: "ts", Value: next.Timestamp},
			{Path: "lc", Value: next.LastChange},
		})
	})
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return false, ErrStateNotFound
		}
		return false, fmt.Errorf("failed to set state %s: %w", id, err)
	}
	return changed, nil
}

// ListStates retrieves all states whose id starts with prefix.
// Uses document ID range queries so only matching documents are read.
func (f *FirestoreProvider) ListStates(ctx context.Context, prefix string) ([]types.State, error) {
	if prefix == "" {
		return nil, fmt.Errorf("prefix cannot be empty")
	}
	coll := f.client.Collection(firestoreStatesCollection)
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(prefix)).
		Where(firestore.DocumentID, "<", coll.Doc(prefix+"\uf8ff")).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var states []types.State
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating states: %w", err)
		}
		s, err := stateFromDoc(doc)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping invalid state doc", slog.String("stateID", doc.Ref.ID), slog.Any("error", err))
			continue
		}
		states = append(states, s)
	}
	return states, nil
}
