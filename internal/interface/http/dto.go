package http

import (
	"time"

	"github.com/alem-hub/curriculum-progress/internal/application/query"
	"github.com/alem-hub/curriculum-progress/internal/domain/curriculum"
	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// UpsertProgressRequest is the body of POST /api/v1/progress. Pointer fields
// let validation tell a missing value from a zero one. Any user id in the
// body is ignored.
type UpsertProgressRequest struct {
	LessonID         *int    `json:"lesson_id" validate:"required,gte=1,lte=10"`
	SessionNumber    *int    `json:"session_number" validate:"required,gte=1,lte=5"`
	Status           *string `json:"status" validate:"required,oneof=not_started in_progress completed"`
	TimeSpentSeconds *int    `json:"time_spent_seconds,omitempty" validate:"omitempty,gte=0,lte=2147483647"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRecordDTO is the wire form of a progress record.
type ProgressRecordDTO struct {
	UserID           string     `json:"user_id"`
	LessonID         int        `json:"lesson_id"`
	SessionNumber    int        `json:"session_number"`
	Status           string     `json:"status"`
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ProgressListDTO wraps a record listing.
type ProgressListDTO struct {
	Records []ProgressRecordDTO `json:"records"`
}

// LessonStatsDTO is the wire form of per-lesson stats.
type LessonStatsDTO struct {
	LessonID              int `json:"lesson_id"`
	TotalSessions         int `json:"total_sessions"`
	CompletedSessions     int `json:"completed_sessions"`
	ProgressPercentage    int `json:"progress_percentage"`
	TotalTimeSpentSeconds int `json:"total_time_spent_seconds"`
}

// OverallStatsDTO is the wire form of overall stats.
type OverallStatsDTO struct {
	TotalLessons              int `json:"total_lessons"`
	CompletedLessons          int `json:"completed_lessons"`
	InProgressLessons         int `json:"in_progress_lessons"`
	TotalSessionsCompleted    int `json:"total_sessions_completed"`
	TotalTimeSpentSeconds     int `json:"total_time_spent_seconds"`
	OverallProgressPercentage int `json:"overall_progress_percentage"`
}

// UnlockStateDTO reports whether a lesson is locked.
type UnlockStateDTO struct {
	LessonID int  `json:"lesson_id"`
	Locked   bool `json:"locked"`
}

// StatsDTO is the body of GET /api/v1/progress/stats.
type StatsDTO struct {
	ByLesson []LessonStatsDTO `json:"by_lesson"`
	Overall  OverallStatsDTO  `json:"overall"`
	Unlock   []UnlockStateDTO `json:"unlock"`
}

// SessionSlotDTO describes one session of a lesson.
type SessionSlotDTO struct {
	SessionNumber int    `json:"session_number"`
	Type          string `json:"type"`
	DisplayName   string `json:"display_name"`
}

// LessonDTO is a catalog lesson with the caller's lock state and stats.
type LessonDTO struct {
	ID          int              `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Theme       string           `json:"theme"`
	Order       int              `json:"order"`
	Locked      bool             `json:"locked"`
	Sessions    []SessionSlotDTO `json:"sessions"`
	Progress    LessonStatsDTO   `json:"progress"`
}

// LessonListDTO wraps the catalog listing.
type LessonListDTO struct {
	Lessons []LessonDTO `json:"lessons"`
}

// LessonDetailDTO is one lesson with the caller's records for it.
type LessonDetailDTO struct {
	LessonDTO
	Records []ProgressRecordDTO `json:"records"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Mappers
// ─────────────────────────────────────────────────────────────────────────────

func toRecordDTO(r progress.Record) ProgressRecordDTO {
	return ProgressRecordDTO{
		UserID:           r.UserID,
		LessonID:         r.LessonID,
		SessionNumber:    r.SessionNumber,
		Status:           string(r.Status),
		StartedAt:        utcPtr(r.StartedAt),
		CompletedAt:      utcPtr(r.CompletedAt),
		TimeSpentSeconds: r.TimeSpentSeconds,
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func toRecordDTOs(records []progress.Record) []ProgressRecordDTO {
	out := make([]ProgressRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordDTO(r))
	}
	return out
}

func toLessonStatsDTO(s progress.LessonStats) LessonStatsDTO {
	return LessonStatsDTO{
		LessonID:              s.LessonID,
		TotalSessions:         s.TotalSessions,
		CompletedSessions:     s.CompletedSessions,
		ProgressPercentage:    s.ProgressPercentage,
		TotalTimeSpentSeconds: s.TotalTimeSpentSeconds,
	}
}

func toStatsDTO(res *query.GetStatsResult) StatsDTO {
	dto := StatsDTO{
		ByLesson: make([]LessonStatsDTO, 0, len(res.ByLesson)),
		Overall: OverallStatsDTO{
			TotalLessons:              res.Overall.TotalLessons,
			CompletedLessons:          res.Overall.CompletedLessons,
			InProgressLessons:         res.Overall.InProgressLessons,
			TotalSessionsCompleted:    res.Overall.TotalSessionsCompleted,
			TotalTimeSpentSeconds:     res.Overall.TotalTimeSpentSeconds,
			OverallProgressPercentage: res.Overall.OverallProgressPercentage,
		},
		Unlock: make([]UnlockStateDTO, 0, len(res.Unlock)),
	}
	for _, ls := range res.ByLesson {
		dto.ByLesson = append(dto.ByLesson, toLessonStatsDTO(ls))
	}
	for _, u := range res.Unlock {
		dto.Unlock = append(dto.Unlock, UnlockStateDTO{LessonID: u.LessonID, Locked: u.Locked})
	}
	return dto
}

func toLessonDTO(v query.LessonView) LessonDTO {
	dto := LessonDTO{
		ID:          v.Lesson.ID,
		Title:       v.Lesson.Title,
		Description: v.Lesson.Description,
		Theme:       v.Lesson.Theme,
		Order:       v.Lesson.Order,
		Locked:      v.Locked,
		Sessions:    make([]SessionSlotDTO, 0, len(v.Lesson.Sessions)),
		Progress:    toLessonStatsDTO(v.Stats),
	}
	for _, s := range v.Lesson.Sessions {
		dto.Sessions = append(dto.Sessions, toSessionDTO(s))
	}
	return dto
}

func toSessionDTO(s curriculum.SessionSlot) SessionSlotDTO {
	return SessionSlotDTO{
		SessionNumber: s.SessionNumber,
		Type:          string(s.Type),
		DisplayName:   s.DisplayName,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
