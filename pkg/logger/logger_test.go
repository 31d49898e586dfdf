package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo})

	log.With(Component("progress")).Info("record upserted",
		UserID("u-1"),
		LessonID(3),
		Err(errors.New("boom")),
	)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "record upserted", entry["message"])
	assert.Equal(t, "progress", entry["component"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.EqualValues(t, 3, entry["lesson_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug}).WithRequestID("req-42")

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Debug("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-42", entry[RequestIDKey])
}
