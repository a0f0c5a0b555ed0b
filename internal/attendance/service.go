package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"workforce/internal/logging"
	"workforce/internal/queue"
)

// Publisher receives lifecycle events after they are committed.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service owns the daily session and break ledger bookkeeping.
type Service struct {
	repo      *Repository
	clock     WorkdayClock
	publisher Publisher
	metrics   *Metrics
	logger    *slog.Logger
}

// NewService creates a service backed by a repository. publisher, metrics and
// logger may be nil.
func NewService(repo *Repository, clock WorkdayClock, publisher Publisher, metrics *Metrics, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clock, publisher: publisher, metrics: metrics, logger: logger}
}

// OpenOrResumeSession marks today's record active, creating it on the first
// login of the day. loginTime keeps the first login.
func (s *Service) OpenOrResumeSession(ctx context.Context, userID string) (Record, error) {
	if userID == "" {
		return Record{}, ErrMissingUser
	}
	now := s.clock.Now()
	rec, err := s.repo.UpsertSession(ctx, userID, s.clock.WorkDate(now), now)
	if err != nil {
		s.metrics.failed("open_session", err)
		return Record{}, err
	}
	s.metrics.SessionsOpened.Inc()
	s.log(ctx, "open_session", userID).InfoContext(ctx, "attendance session active",
		"attendance_id", rec.ID, "login_time", rec.LoginTime)
	s.publish(ctx, Event{Type: EventSessionOpened, UserID: userID, AttendanceID: rec.ID, WorkDate: rec.WorkDate, When: now})
	return rec, nil
}

// CloseSession ends today's active session, force-closing an open break first.
// A missing or already closed record is reported through Closure.Closed, not an error.
func (s *Service) CloseSession(ctx context.Context, userID string) (Closure, error) {
	if userID == "" {
		return Closure{}, ErrMissingUser
	}
	now := s.clock.Now()
	day := s.clock.WorkDate(now)
	logger := s.log(ctx, "close_session", userID)

	var out Closure
	var pending []Event
	err := s.repo.WithTx(ctx, func(tx *Repository) error {
		rec, err := tx.LockDay(ctx, userID, day)
		if err != nil {
			return err
		}
		if !rec.IsActiveSession {
			return ErrSessionInactive
		}

		totalBreak := rec.TotalBreakMinutes
		open, err := tx.OpenBreaks(ctx, rec.ID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			latest := open[0]
			if len(open) > 1 {
				pending = append(pending, s.anomaly(ctx, logger, rec, len(open), now))
			}
			if err := tx.CloseBreak(ctx, latest.ID, now); err != nil {
				return err
			}
			out.ForcedBreakClosed = true
			out.ForcedBreakMinutes = breakMinutes(latest.BreakStart, now)
			totalBreak += out.ForcedBreakMinutes
		}

		worked := workedMinutes(rec.LoginTime, now, totalBreak)
		err = tx.UpdateRecord(ctx, rec.ID, map[string]any{
			"logout_time":           now,
			"total_break_minutes":   totalBreak,
			"total_working_minutes": worked,
			"is_active_session":     false,
			"break_start_time":      nil,
			"break_end_time":        nil,
		})
		if err != nil {
			return err
		}

		rec.LogoutTime = &now
		rec.TotalBreakMinutes = totalBreak
		rec.TotalWorkingMinutes = &worked
		rec.IsActiveSession = false
		rec.BreakStartTime = nil
		rec.BreakEndTime = nil
		out.Closed = true
		out.Record = rec
		out.TotalWorkingMinutes = worked
		return nil
	})
	if errors.Is(err, ErrAttendanceNotFound) || errors.Is(err, ErrSessionInactive) {
		logger.InfoContext(ctx, "no active attendance session to close", "work_date", day, "reason", ErrorKind(err))
		s.publishAll(ctx, pending)
		return Closure{}, nil
	}
	if err != nil {
		s.metrics.failed("close_session", err)
		s.publishAll(ctx, pending)
		return Closure{}, err
	}

	s.metrics.sessionClosed(out.ForcedBreakClosed)
	if out.ForcedBreakClosed {
		s.metrics.breakClosed(out.ForcedBreakMinutes)
	}
	logger.InfoContext(ctx, "attendance session closed",
		"attendance_id", out.Record.ID,
		"total_break_minutes", out.Record.TotalBreakMinutes,
		"total_working_minutes", out.TotalWorkingMinutes,
		"forced_break_close", out.ForcedBreakClosed)

	worked := out.TotalWorkingMinutes
	pending = append(pending, Event{
		Type: EventSessionClosed, UserID: userID, AttendanceID: out.Record.ID,
		WorkDate: day, When: now, Minutes: &worked,
	})
	s.publishAll(ctx, pending)
	return out, nil
}

// CurrentStatus reports whether the user is on break and when they logged in today.
func (s *Service) CurrentStatus(ctx context.Context, userID string) (Status, error) {
	if userID == "" {
		return Status{}, ErrMissingUser
	}
	rec, err := s.repo.FindDay(ctx, userID, s.clock.WorkDate(s.clock.Now()))
	if errors.Is(err, ErrAttendanceNotFound) {
		return Status{}, nil
	}
	if err != nil {
		s.metrics.failed("current_status", err)
		return Status{}, err
	}
	login := rec.LoginTime
	return Status{
		LoggedIn:       true,
		OnBreak:        rec.OnBreak(),
		LoginTime:      &login,
		BreakStartTime: rec.BreakStartTime,
	}, nil
}

// StartBreak opens a break in today's ledger and returns its start time.
func (s *Service) StartBreak(ctx context.Context, userID string) (time.Time, error) {
	if userID == "" {
		return time.Time{}, ErrMissingUser
	}
	now := s.clock.Now()
	day := s.clock.WorkDate(now)
	logger := s.log(ctx, "start_break", userID)

	var rec Record
	var pending []Event
	err := s.repo.WithTx(ctx, func(tx *Repository) error {
		var err error
		rec, err = tx.LockDay(ctx, userID, day)
		if err != nil {
			return err
		}
		if !rec.IsActiveSession {
			return ErrSessionInactive
		}
		if rec.OnBreak() {
			return ErrBreakAlreadyActive
		}
		open, err := tx.OpenBreaks(ctx, rec.ID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			// the record shows no break, so stray ledger entries are reported and left open
			pending = append(pending, s.anomaly(ctx, logger, rec, len(open), now))
		}

		entry := BreakEntry{AttendanceID: rec.ID, BreakStart: now, CreatedAt: now}
		if err := tx.CreateBreak(ctx, &entry); err != nil {
			return err
		}
		return tx.UpdateRecord(ctx, rec.ID, map[string]any{
			"break_start_time": now,
			"break_end_time":   nil,
		})
	})
	s.publishAll(ctx, pending)
	if err != nil {
		s.metrics.failed("start_break", err)
		logger.InfoContext(ctx, "break start rejected", "reason", ErrorKind(err), "error", err)
		return time.Time{}, err
	}

	s.metrics.BreaksStarted.Inc()
	logger.InfoContext(ctx, "break started", "attendance_id", rec.ID)
	s.publish(ctx, Event{Type: EventBreakStarted, UserID: userID, AttendanceID: rec.ID, WorkDate: day, When: now})
	return now, nil
}

// EndBreak closes the most recent open break and returns the minutes it accrued.
func (s *Service) EndBreak(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrMissingUser
	}
	now := s.clock.Now()
	day := s.clock.WorkDate(now)
	logger := s.log(ctx, "end_break", userID)

	var rec Record
	var minutes int
	var pending []Event
	err := s.repo.WithTx(ctx, func(tx *Repository) error {
		var err error
		rec, err = tx.LockDay(ctx, userID, day)
		if err != nil {
			return err
		}
		if rec.BreakStartTime == nil {
			return ErrNoActiveBreak
		}
		open, err := tx.OpenBreaks(ctx, rec.ID)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return ErrNoOpenBreak
		}
		if len(open) > 1 {
			pending = append(pending, s.anomaly(ctx, logger, rec, len(open), now))
		}

		latest := open[0]
		minutes = breakMinutes(latest.BreakStart, now)
		if err := tx.CloseBreak(ctx, latest.ID, now); err != nil {
			return err
		}
		return tx.UpdateRecord(ctx, rec.ID, map[string]any{
			"break_end_time":      now,
			"break_start_time":    nil,
			"total_break_minutes": rec.TotalBreakMinutes + minutes,
		})
	})
	s.publishAll(ctx, pending)
	if err != nil {
		s.metrics.failed("end_break", err)
		logger.InfoContext(ctx, "break end rejected", "reason", ErrorKind(err), "error", err)
		return 0, err
	}

	s.metrics.BreaksEnded.Inc()
	s.metrics.breakClosed(minutes)
	logger.InfoContext(ctx, "break ended", "attendance_id", rec.ID, "break_minutes", minutes)
	s.publish(ctx, Event{Type: EventBreakEnded, UserID: userID, AttendanceID: rec.ID, WorkDate: day, When: now, Minutes: &minutes})
	return minutes, nil
}

// Records lists the user's attendance history.
func (s *Service) Records(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.repo.ListRecords(ctx, userID, limit, offset)
}

// Events lists the user's audit trail.
func (s *Service) Events(ctx context.Context, userID string, limit, offset int) ([]Event, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.repo.ListEvents(ctx, userID, limit, offset)
}

// anomaly records a ledger with an unexpected number of open entries. The
// extra entries are left untouched for manual review.
func (s *Service) anomaly(ctx context.Context, logger *slog.Logger, rec Record, open int, now time.Time) Event {
	s.metrics.OpenBreakAnomalies.Inc()
	logger.WarnContext(ctx, "attendance ledger has unexpected open breaks",
		"attendance_id", rec.ID, "open_breaks", open, "break_mirror_open", rec.OnBreak())
	return Event{
		Type:         EventAnomaly,
		UserID:       rec.UserID,
		AttendanceID: rec.ID,
		WorkDate:     rec.WorkDate,
		When:         now,
		Detail:       fmt.Sprintf("open_breaks=%d break_mirror_open=%t", open, rec.OnBreak()),
	}
}

func (s *Service) publishAll(ctx context.Context, events []Event) {
	for _, evt := range events {
		s.publish(ctx, evt)
	}
}

func (s *Service) publish(ctx context.Context, evt Event) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode attendance event", "type", evt.Type, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, queue.Message{Type: evt.Type, Body: body}); err != nil {
		logging.Or(ctx, s.logger).WarnContext(ctx, "queue publish failed", "type", evt.Type, "error", err)
	}
}

func (s *Service) log(ctx context.Context, operation, userID string) *slog.Logger {
	return logging.Or(ctx, s.logger).With("service", "attendance", "operation", operation, "user_id", userID)
}

// DecodeEvent parses a queue message produced by the service.
func DecodeEvent(msg queue.Message) (Event, error) {
	var evt Event
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return Event{}, fmt.Errorf("decode %s event: %w", msg.Type, err)
	}
	if evt.Type == "" {
		evt.Type = msg.Type
	}
	return evt, nil
}
