package attendance

import (
	"context"
	"log/slog"

	"workforce/internal/queue"
)

// RecordEvents appends every decodable message to the audit trail until msgs
// closes, and returns how many were stored.
func RecordEvents(ctx context.Context, repo *Repository, msgs <-chan queue.Message, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	stored := 0
	for msg := range msgs {
		evt, err := DecodeEvent(msg)
		if err != nil {
			logger.Warn("dropping malformed event", "type", msg.Type, "error", err)
			continue
		}
		if _, err := repo.InsertEvent(ctx, evt); err != nil {
			logger.Error("audit insert failed", "type", evt.Type, "user_id", evt.UserID, "error", err)
			continue
		}
		stored++
		if evt.Type == EventAnomaly {
			logger.Warn("attendance anomaly recorded",
				"user_id", evt.UserID, "attendance_id", evt.AttendanceID, "detail", evt.Detail)
		}
	}
	return stored
}
