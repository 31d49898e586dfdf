// Package memory provides an in-process implementation of the progress
// repository. It backs tests and the `memory` storage driver.
package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
)

// ProgressRepository stores records in a map guarded by a mutex.
// Each Upsert holds the lock for the whole read-merge-write.
type ProgressRepository struct {
	mu      sync.RWMutex
	records map[progress.Key]progress.Record

	// failWith, when set, is returned from every call. Tests use it to
	// simulate an unavailable store.
	failWith error
}

// NewProgressRepository creates an empty in-memory repository.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{
		records: make(map[progress.Key]progress.Record),
	}
}

var _ progress.Repository = (*ProgressRepository)(nil)

// FailWith makes every subsequent call fail with a storage error wrapping err.
// Passing nil restores normal behaviour.
func (r *ProgressRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

// Upsert implements progress.Repository.
func (r *ProgressRepository) Upsert(ctx context.Context, change progress.Change) (*progress.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.StorageFailure("progress", "Upsert", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return nil, shared.StorageFailure("progress", "Upsert", r.failWith)
	}

	var existing *progress.Record
	if cur, ok := r.records[change.Key]; ok {
		existing = &cur
	}

	merged := progress.Merge(existing, change)
	r.records[change.Key] = merged

	out := merged.Clone()
	return &out, nil
}

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, key progress.Key) (*progress.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.StorageFailure("progress", "Get", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.failWith != nil {
		return nil, shared.StorageFailure("progress", "Get", r.failWith)
	}

	cur, ok := r.records[key]
	if !ok {
		return nil, shared.NewDomainError("progress", "Get", shared.ErrNotFound, "progress record not found")
	}
	out := cur.Clone()
	return &out, nil
}

// List implements progress.Repository.
func (r *ProgressRepository) List(ctx context.Context, userID string, filter progress.Filter) ([]progress.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.StorageFailure("progress", "List", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.failWith != nil {
		return nil, shared.StorageFailure("progress", "List", r.failWith)
	}

	out := make([]progress.Record, 0)
	for key, rec := range r.records {
		if key.UserID != userID || !filter.Matches(rec) {
			continue
		}
		out = append(out, rec.Clone())
	}
	progress.SortRecords(out)
	return out, nil
}

// Ping always succeeds. It lets the repository serve as a readiness check.
func (r *ProgressRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Count returns the number of stored records.
func (r *ProgressRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
