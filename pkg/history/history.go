// Package history persists validation and audit reports so drift can be
// tracked across runs. Two backends are provided: MemoryStore for tests
// and one-shot CLI usage, and MongoStore for deployments that keep a
// durable record.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Report kinds stored in history.
const (
	KindValidate = "validate"
	KindAudit    = "audit"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("entry not found")

// Entry is one stored report with its run metadata.
type Entry struct {
	ID        string          `json:"id" bson:"_id"`
	Kind      string          `json:"kind" bson:"kind"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	Exes      []string        `json:"exes" bson:"exes"`
	Failures  int             `json:"failures" bson:"failures"`
	Report    json.RawMessage `json:"report" bson:"report"`
}

// NewEntry creates an entry for a report, assigning a fresh ID.
// The report value is serialized to JSON for storage.
func NewEntry(kind string, exes []string, failures int, report any) (*Entry, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Exes:      exes,
		Failures:  failures,
		Report:    raw,
	}, nil
}

// Store is the interface for report history backends.
type Store interface {
	// Append stores a new entry.
	Append(ctx context.Context, entry *Entry) error

	// Get retrieves an entry by ID.
	// Returns ErrNotFound if no entry with that ID exists.
	Get(ctx context.Context, id string) (*Entry, error)

	// List returns the most recent entries, newest first, up to limit.
	// A limit of zero returns all entries.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
