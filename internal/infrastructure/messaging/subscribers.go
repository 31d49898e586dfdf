package messaging

import (
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/internal/metrics"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

// RegisterProgressSubscribers wires the metrics and audit-log handlers for
// progress events onto the bus.
func RegisterProgressSubscribers(bus shared.EventSubscriber, log *logger.Logger) error {
	audit := log.With(logger.Component("progress-audit"))

	if err := bus.Subscribe(shared.EventProgressRecorded, func(e shared.Event) error {
		ev, ok := e.(shared.ProgressRecordedEvent)
		if !ok {
			return nil
		}
		metrics.RecordProgressUpdate(ev.Status)
		audit.Debug("session progress recorded",
			logger.UserID(ev.UserID),
			logger.LessonID(ev.LessonID),
			logger.SessionNumber(ev.SessionNumber),
			logger.Status(ev.Status),
			logger.Int("time_spent_seconds", ev.TimeSpentSeconds),
		)
		return nil
	}); err != nil {
		return err
	}

	return bus.Subscribe(shared.EventLessonCompleted, func(e shared.Event) error {
		ev, ok := e.(shared.LessonCompletedEvent)
		if !ok {
			return nil
		}
		metrics.RecordLessonCompleted(ev.LessonID)
		audit.Info("lesson completed",
			logger.UserID(ev.UserID),
			logger.LessonID(ev.LessonID),
			logger.Int("unlocked_lesson_id", ev.UnlockedLessonID),
		)
		return nil
	})
}
