package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/curriculum-progress/internal/application/command"
	"github.com/alem-hub/curriculum-progress/internal/application/query"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/auth"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/curriculum-progress/internal/interface/http/handlers"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

type stubLimiter struct {
	decision redis.Decision
	err      error
	calls    int
}

func (l *stubLimiter) Allow(context.Context, string) (redis.Decision, error) {
	l.calls++
	return l.decision, l.err
}

type testServer struct {
	t       *testing.T
	repo    *memory.ProgressRepository
	auth    *auth.JWTAuthenticator
	health  *handlers.CompositeHealthChecker
	limiter *stubLimiter
	handler http.Handler
}

func newTestServer(t *testing.T, withLimiter bool) *testServer {
	t.Helper()

	repo := memory.NewProgressRepository()
	authn, err := auth.NewJWTAuthenticator(auth.Config{Secret: testSecret})
	require.NoError(t, err)

	ts := &testServer{
		t:      t,
		repo:   repo,
		auth:   authn,
		health: handlers.NewCompositeHealthChecker("test"),
	}

	deps := Dependencies{
		UpsertProgress: command.NewUpsertProgressHandler(repo, shared.NoopPublisher{}, logger.Nop()),
		GetProgress:    query.NewGetProgressHandler(repo),
		GetStats:       query.NewGetStatsHandler(repo),
		Lessons:        query.NewLessonsHandler(repo),
		Authenticator:  authn,
		HealthChecker:  ts.health,
		Logger:         logger.Nop(),
	}
	if withLimiter {
		ts.limiter = &stubLimiter{decision: redis.Decision{Allowed: true, Limit: 10, Remaining: 9}}
		deps.WriteLimiter = ts.limiter
	}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	ts.handler = NewServer(cfg, deps).Handler()
	return ts
}

func (ts *testServer) token(userID string) string {
	tok, err := ts.auth.Issue(userID, time.Hour)
	require.NoError(ts.t, err)
	return tok
}

func (ts *testServer) do(method, path, userID, body string) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token(userID))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func upsertBody(lesson, session int, status string) string {
	b, _ := json.Marshal(map[string]any{
		"lesson_id":      lesson,
		"session_number": session,
		"status":         status,
	})
	return string(b)
}

// ──────────────────────────────────────────────────────────────────────────
// Authentication
// ──────────────────────────────────────────────────────────────────────────

func TestAPI_RequiresAuthentication(t *testing.T) {
	ts := newTestServer(t, false)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/progress", upsertBody(1, 1, "completed")},
		{http.MethodGet, "/api/v1/progress", ""},
		{http.MethodGet, "/api/v1/progress/stats", ""},
		{http.MethodGet, "/api/v1/lessons", ""},
		{http.MethodGet, "/api/v1/lessons/2/access", ""},
	} {
		rec, env := ts.do(tc.method, tc.path, "", tc.body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeUnauthorized, env.Error.Code)
		assert.False(t, env.Success)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, ts.repo.Count())
}

// ──────────────────────────────────────────────────────────────────────────
// Upsert
// ──────────────────────────────────────────────────────────────────────────

func TestAPI_UpsertValidation(t *testing.T) {
	ts := newTestServer(t, false)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"malformed", `{"lesson_id": 1,`, "body"},
		{"empty", ``, "body"},
		{"missing status", `{"lesson_id":1,"session_number":1}`, "status"},
		{"missing lesson", `{"session_number":1,"status":"completed"}`, "lesson_id"},
		{"lesson out of range", upsertBody(11, 1, "completed"), "lesson_id"},
		{"lesson zero", upsertBody(0, 1, "completed"), "lesson_id"},
		{"session out of range", upsertBody(1, 6, "completed"), "session_number"},
		{"bad status", upsertBody(1, 1, "done"), "status"},
		{"negative time", `{"lesson_id":1,"session_number":1,"status":"in_progress","time_spent_seconds":-1}`, "time_spent_seconds"},
		{"time above int32", `{"lesson_id":1,"session_number":1,"status":"in_progress","time_spent_seconds":2147483648}`, "time_spent_seconds"},
		{"wrong type", `{"lesson_id":"one","session_number":1,"status":"completed"}`, "body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/progress", bytes.NewBufferString(tc.body))
			req.Header.Set("Authorization", "Bearer "+ts.token("learner-1"))
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			require.NotNil(t, env.Error)
			assert.Equal(t, CodeValidation, env.Error.Code)
			assert.Equal(t, tc.field, env.Error.Details["field"])
		})
	}

	assert.Zero(t, ts.repo.Count())
}

func TestAPI_UpsertUsesAuthenticatedUser(t *testing.T) {
	ts := newTestServer(t, false)

	body := `{"user_id":"someone-else","lesson_id":1,"session_number":3,"status":"in_progress","time_spent_seconds":120}`
	rec, env := ts.do(http.MethodPost, "/api/v1/progress", "learner-1", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	record := decodeData[ProgressRecordDTO](t, env)
	assert.Equal(t, "learner-1", record.UserID)
	assert.Equal(t, 3, record.SessionNumber)
	assert.Equal(t, "in_progress", record.Status)
	assert.Equal(t, 120, record.TimeSpentSeconds)
	require.NotNil(t, record.StartedAt)
	assert.Nil(t, record.CompletedAt)
	assert.Equal(t, time.UTC, record.UpdatedAt.Location())

	_, env = ts.do(http.MethodGet, "/api/v1/progress", "someone-else", "")
	assert.Empty(t, decodeData[ProgressListDTO](t, env).Records)
}

func TestAPI_StorageFailure(t *testing.T) {
	ts := newTestServer(t, false)
	ts.repo.FailWith(errors.New("connection reset"))

	rec, env := ts.do(http.MethodPost, "/api/v1/progress", "learner-1", upsertBody(1, 1, "completed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeStorage, env.Error.Code)
	assert.Equal(t, "progress.Upsert", env.Error.Details["operation"])

	rec, env = ts.do(http.MethodGet, "/api/v1/progress/stats", "learner-1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeStorage, env.Error.Code)
}

// ──────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────

func TestAPI_GetProgressOrderingAndFilter(t *testing.T) {
	ts := newTestServer(t, false)
	for _, b := range []string{
		upsertBody(2, 2, "completed"),
		upsertBody(1, 4, "in_progress"),
		upsertBody(2, 1, "completed"),
	} {
		rec, _ := ts.do(http.MethodPost, "/api/v1/progress", "learner-1", b)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, env := ts.do(http.MethodGet, "/api/v1/progress", "learner-1", "")
	records := decodeData[ProgressListDTO](t, env).Records
	require.Len(t, records, 3)
	assert.Equal(t, []int{1, 2, 2}, []int{records[0].LessonID, records[1].LessonID, records[2].LessonID})
	assert.Equal(t, 1, records[1].SessionNumber)

	_, env = ts.do(http.MethodGet, "/api/v1/progress?lesson_id=2", "learner-1", "")
	assert.Len(t, decodeData[ProgressListDTO](t, env).Records, 2)

	for _, q := range []string{"abc", "0", "11"} {
		rec, env := ts.do(http.MethodGet, "/api/v1/progress?lesson_id="+q, "learner-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "lesson_id", env.Error.Details["field"])
	}
}

func TestAPI_NewLearner(t *testing.T) {
	ts := newTestServer(t, false)

	rec, env := ts.do(http.MethodGet, "/api/v1/progress", "fresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"records":[]}`, string(env.Data))

	_, env = ts.do(http.MethodGet, "/api/v1/progress/stats", "fresh", "")
	stats := decodeData[StatsDTO](t, env)
	assert.NotNil(t, stats.ByLesson)
	assert.Empty(t, stats.ByLesson)
	assert.Zero(t, stats.Overall.OverallProgressPercentage)
	assert.Equal(t, 10, stats.Overall.TotalLessons)
	require.Len(t, stats.Unlock, 10)
	assert.False(t, stats.Unlock[0].Locked)
	assert.True(t, stats.Unlock[1].Locked)
}

func TestAPI_CompleteFirstLessonUnlocksSecond(t *testing.T) {
	ts := newTestServer(t, false)

	for s := 1; s <= 5; s++ {
		_, env := ts.do(http.MethodGet, "/api/v1/lessons/2/access", "learner-1", "")
		assert.True(t, decodeData[UnlockStateDTO](t, env).Locked, "before session %d", s)

		rec, _ := ts.do(http.MethodPost, "/api/v1/progress", "learner-1", upsertBody(1, s, "completed"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, env := ts.do(http.MethodGet, "/api/v1/lessons/2/access", "learner-1", "")
	access := decodeData[UnlockStateDTO](t, env)
	assert.Equal(t, 2, access.LessonID)
	assert.False(t, access.Locked)

	_, env = ts.do(http.MethodGet, "/api/v1/progress/stats?lesson_id=1", "learner-1", "")
	stats := decodeData[StatsDTO](t, env)
	require.Len(t, stats.ByLesson, 1)
	assert.Equal(t, 100, stats.ByLesson[0].ProgressPercentage)
	assert.Equal(t, 10, stats.Overall.OverallProgressPercentage)
	assert.Equal(t, 1, stats.Overall.CompletedLessons)
	assert.False(t, stats.Unlock[1].Locked)
	assert.True(t, stats.Unlock[2].Locked)
}

func TestAPI_Lessons(t *testing.T) {
	ts := newTestServer(t, false)
	rec, _ := ts.do(http.MethodPost, "/api/v1/progress", "learner-1", upsertBody(1, 2, "completed"))
	require.Equal(t, http.StatusOK, rec.Code)

	_, env := ts.do(http.MethodGet, "/api/v1/lessons", "learner-1", "")
	list := decodeData[LessonListDTO](t, env).Lessons
	require.Len(t, list, 10)
	assert.False(t, list[0].Locked)
	assert.True(t, list[1].Locked)
	assert.Equal(t, 20, list[0].Progress.ProgressPercentage)
	require.Len(t, list[0].Sessions, 5)
	assert.Equal(t, "introduction", list[0].Sessions[0].Type)
	assert.Equal(t, "summary", list[0].Sessions[4].Type)

	rec, env = ts.do(http.MethodGet, "/api/v1/lessons/1", "learner-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeData[LessonDetailDTO](t, env)
	assert.Equal(t, 1, detail.ID)
	require.Len(t, detail.Records, 1)
	assert.Equal(t, 2, detail.Records[0].SessionNumber)

	rec, env = ts.do(http.MethodGet, "/api/v1/lessons/42", "learner-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, env.Error.Code)

	rec, _ = ts.do(http.MethodGet, "/api/v1/lessons/abc/access", "learner-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Session(t *testing.T) {
	ts := newTestServer(t, false)
	rec, _ := ts.do(http.MethodPost, "/api/v1/progress", "learner-1", upsertBody(1, 2, "completed"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := ts.do(http.MethodGet, "/api/v1/lessons/1/sessions/2", "learner-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	record := decodeData[ProgressRecordDTO](t, env)
	assert.Equal(t, "learner-1", record.UserID)
	assert.Equal(t, "completed", record.Status)
	assert.NotNil(t, record.CompletedAt)

	rec, env = ts.do(http.MethodGet, "/api/v1/lessons/1/sessions/3", "learner-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, env.Error.Code)

	rec, _ = ts.do(http.MethodGet, "/api/v1/lessons/1/sessions/2", "learner-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = ts.do(http.MethodGet, "/api/v1/lessons/1/sessions/9", "learner-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "session_number", env.Error.Details["field"])
}

// ──────────────────────────────────────────────────────────────────────────
// Write limits
// ──────────────────────────────────────────────────────────────────────────

func TestAPI_WriteLimiter(t *testing.T) {
	ts := newTestServer(t, true)

	ts.limiter.decision = redis.Decision{Allowed: false, Limit: 10, RetryAfter: 30 * time.Second}
	rec, env := ts.do(http.MethodPost, "/api/v1/progress", "learner-1", upsertBody(1, 1, "completed"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimited, env.Error.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Zero(t, ts.repo.Count())

	// Reads are never limited.
	rec, _ = ts.do(http.MethodGet, "/api/v1/progress", "learner-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.limiter.calls)

	ts.limiter.decision = redis.Decision{Allowed: true, Limit: 10, Remaining: 10}
	ts.limiter.err = errors.New("redis down")
	rec, _ = ts.do(http.MethodPost, "/api/v1/progress", "learner-1", upsertBody(1, 1, "completed"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.repo.Count())
}

// ──────────────────────────────────────────────────────────────────────────
// Operational endpoints
// ──────────────────────────────────────────────────────────────────────────

func TestAPI_HealthReadyMetrics(t *testing.T) {
	ts := newTestServer(t, false)

	rec, env := ts.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = ts.do(http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.health.AddCheck("database", func(context.Context) error { return errors.New("down") })
	rec, env = ts.do(http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	status := decodeData[handlers.HealthStatus](t, env)
	assert.False(t, status.Ready)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	ts.handler.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "api_requests_total")
}

func TestAPI_RequestIDAndNotFound(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "req-123", env.RequestID)
	require.NotNil(t, env.Meta)
	assert.Equal(t, APIVersion, env.Meta.Version)

	rec, env = ts.do(http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, CodeNotFound, env.Error.Code)
}
