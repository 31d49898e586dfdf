package progress

import "context"

// Repository defines the interface for progress record persistence.
// Implementations live in the infrastructure layer.
type Repository interface {
	// Upsert merges the change into the record at its key using Merge semantics
	// and returns the stored record. The write must be atomic per key.
	Upsert(ctx context.Context, change Change) (*Record, error)

	// Get returns the record at key or an ErrNotFound domain error.
	Get(ctx context.Context, key Key) (*Record, error)

	// List returns a learner's records ordered by (lesson_id, session_number).
	// A learner without records yields an empty slice.
	List(ctx context.Context, userID string, filter Filter) ([]Record, error)
}
