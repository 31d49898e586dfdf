package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/alem-hub/curriculum-progress/internal/application/command"
	"github.com/alem-hub/curriculum-progress/internal/application/query"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
)

// maxBodyBytes bounds request bodies; a progress update is a few dozen bytes.
const maxBodyBytes = 16 << 10

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth is the liveness probe. It never touches dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "alive",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady runs every registered dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleUpsertProgress handles POST /api/v1/progress.
func (s *Server) handleUpsertProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	var req UpsertProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := validateRequest("UpsertProgress", &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.UpsertProgress.Handle(r.Context(), command.UpsertProgressCommand{
		UserID:           userID,
		LessonID:         *req.LessonID,
		SessionNumber:    *req.SessionNumber,
		Status:           *req.Status,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toRecordDTO(result.Record))
}

// handleGetProgress handles GET /api/v1/progress.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	lessonID, err := optionalLessonID(r, "GetProgress")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	records, err := s.deps.GetProgress.Handle(r.Context(), query.GetProgressQuery{
		UserID:   userID,
		LessonID: lessonID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, ProgressListDTO{Records: toRecordDTOs(records)})
}

// handleGetStats handles GET /api/v1/progress/stats.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	lessonID, err := optionalLessonID(r, "GetStats")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.GetStats.Handle(r.Context(), query.GetStatsQuery{
		UserID:   userID,
		LessonID: lessonID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toStatsDTO(result))
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListLessons handles GET /api/v1/lessons.
func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	views, err := s.deps.Lessons.List(r.Context(), query.ListLessonsQuery{UserID: userID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := LessonListDTO{Lessons: make([]LessonDTO, 0, len(views))}
	for _, v := range views {
		out.Lessons = append(out.Lessons, toLessonDTO(v))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleGetLesson handles GET /api/v1/lessons/{lessonID}.
func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	lessonID, err := pathLessonID(r, "GetLesson")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	detail, err := s.deps.Lessons.Get(r.Context(), query.GetLessonQuery{UserID: userID, LessonID: lessonID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, LessonDetailDTO{
		LessonDTO: toLessonDTO(detail.LessonView),
		Records:   toRecordDTOs(detail.Records),
	})
}

// handleLessonAccess handles GET /api/v1/lessons/{lessonID}/access.
func (s *Server) handleLessonAccess(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	lessonID, err := pathLessonID(r, "LessonAccess")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	locked, err := s.deps.Lessons.IsLocked(r.Context(), query.GetLessonQuery{UserID: userID, LessonID: lessonID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, UnlockStateDTO{LessonID: lessonID, Locked: locked})
}

// handleGetSession handles GET /api/v1/lessons/{lessonID}/sessions/{sessionNumber}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	lessonID, err := pathLessonID(r, "GetSession")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	sessionNumber, err := strconv.Atoi(chi.URLParam(r, "sessionNumber"))
	if err != nil {
		writeDomainError(w, r, shared.NewFieldError("http", "GetSession", "session_number",
			shared.ErrInvalidFormat, "session_number must be an integer"))
		return
	}

	record, err := s.deps.Lessons.Session(r.Context(), query.GetSessionQuery{
		UserID:        userID,
		LessonID:      lessonID,
		SessionNumber: sessionNumber,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toRecordDTO(*record))
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return shared.NewFieldError("http", "Decode", "body", shared.ErrEmptyValue, "request body is required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.NewFieldError("http", "Decode", "body", shared.ErrEmptyValue, "request body is required")
		}
		return shared.NewFieldError("http", "Decode", "body", shared.ErrInvalidFormat, "request body is not valid JSON")
	}
	return nil
}

// optionalLessonID parses the lesson_id query parameter. Range checks happen
// in the query handlers.
func optionalLessonID(r *http.Request, op string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("lesson_id"))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, shared.NewFieldError("http", op, "lesson_id", shared.ErrInvalidFormat, "lesson_id must be an integer")
	}
	return &id, nil
}

func pathLessonID(r *http.Request, op string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "lessonID"))
	if err != nil {
		return 0, shared.NewFieldError("http", op, "lesson_id", shared.ErrInvalidFormat, "lesson_id must be an integer")
	}
	return id, nil
}
