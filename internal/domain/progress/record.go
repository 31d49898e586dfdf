// Package progress contains the per-session progress record, the rule that
// merges a status change into it, and the pure stats and unlock derivations
// computed from a learner's records.
package progress

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alem-hub/curriculum-progress/internal/domain/curriculum"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the completion state of one session for one learner.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// AllStatuses lists every valid status in lifecycle order.
var AllStatuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.TrimSpace(raw))
	return s, s.IsValid()
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Key is the natural key of a progress record.
type Key struct {
	UserID        string
	LessonID      int
	SessionNumber int
}

// Record is the progress of one learner on one session slot.
// At most one Record exists per Key.
type Record struct {
	Key

	Status Status

	// StartedAt is set on the first transition to in_progress and never overwritten.
	StartedAt *time.Time

	// CompletedAt is set on every completed write and cleared when the status
	// moves away from completed.
	CompletedAt *time.Time

	TimeSpentSeconds int
	UpdatedAt        time.Time
}

// MaxTimeSpentSeconds is the largest time a session may report. The stored
// column is a 32-bit integer.
const MaxTimeSpentSeconds = math.MaxInt32

// Change is one requested status update for a session slot.
type Change struct {
	Key

	Status Status

	// TimeSpentSeconds replaces the stored value when set.
	TimeSpentSeconds *int

	// At is the wall-clock time of the write.
	At time.Time
}

// Validate checks the change against the catalog ranges. A failing change
// must never reach storage.
func (c Change) Validate() error {
	const op = "Upsert"
	if strings.TrimSpace(c.UserID) == "" {
		return shared.NewFieldError("progress", op, "user_id", shared.ErrEmptyValue, "user_id is required")
	}
	if !curriculum.ValidLessonID(c.LessonID) {
		return shared.NewFieldError("progress", op, "lesson_id", shared.ErrValueOutOfRange,
			"lesson_id must be between 1 and 10")
	}
	if !curriculum.ValidSessionNumber(c.SessionNumber) {
		return shared.NewFieldError("progress", op, "session_number", shared.ErrValueOutOfRange,
			"session_number must be between 1 and 5")
	}
	if !c.Status.IsValid() {
		return shared.NewFieldError("progress", op, "status", shared.ErrInvalidFormat,
			"status must be one of not_started, in_progress, completed")
	}
	if c.TimeSpentSeconds != nil && *c.TimeSpentSeconds < 0 {
		return shared.NewFieldError("progress", op, "time_spent_seconds", shared.ErrNegativeValue,
			"time_spent_seconds must not be negative")
	}
	if c.TimeSpentSeconds != nil && *c.TimeSpentSeconds > MaxTimeSpentSeconds {
		return shared.NewFieldError("progress", op, "time_spent_seconds", shared.ErrValueOutOfRange,
			"time_spent_seconds must not exceed 2147483647")
	}
	return nil
}

// Merge applies a change on top of the existing record (nil when absent) and
// returns the record to store. Stores must apply it atomically per key.
func Merge(existing *Record, c Change) Record {
	at := c.At.UTC()

	r := Record{Key: c.Key}
	if existing != nil {
		r = existing.Clone()
	}

	r.Status = c.Status
	r.UpdatedAt = at

	if c.Status == StatusInProgress && r.StartedAt == nil {
		r.StartedAt = &at
	}

	if c.Status == StatusCompleted {
		completed := at
		r.CompletedAt = &completed
	} else {
		r.CompletedAt = nil
	}

	if c.TimeSpentSeconds != nil {
		r.TimeSpentSeconds = *c.TimeSpentSeconds
	}

	return r
}

// Clone returns a deep copy so callers cannot alias stored timestamps.
func (r Record) Clone() Record {
	out := r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// SortRecords orders records by (lesson_id, session_number) ascending.
func SortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].LessonID != records[j].LessonID {
			return records[i].LessonID < records[j].LessonID
		}
		return records[i].SessionNumber < records[j].SessionNumber
	})
}

// Filter narrows a listing of a learner's records.
type Filter struct {
	// LessonID restricts the listing to one lesson when set.
	LessonID *int
}

// Matches reports whether a record passes the filter.
func (f Filter) Matches(r Record) bool {
	return f.LessonID == nil || r.LessonID == *f.LessonID
}
