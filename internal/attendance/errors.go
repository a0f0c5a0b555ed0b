package attendance

import "errors"

var (
	// ErrMissingUser is returned when no user id was resolved for the caller.
	ErrMissingUser = errors.New("attendance: user id required")
	// ErrAttendanceNotFound is returned when today's record does not exist.
	ErrAttendanceNotFound = errors.New("attendance: record not found")
	// ErrSessionInactive is returned when today's record exists but the user is logged out.
	ErrSessionInactive = errors.New("attendance: no active session")
	// ErrBreakAlreadyActive is returned by StartBreak while a break is open.
	ErrBreakAlreadyActive = errors.New("attendance: break already active")
	// ErrNoActiveBreak is returned by EndBreak when the record shows no break.
	ErrNoActiveBreak = errors.New("attendance: no active break")
	// ErrNoOpenBreak is returned when the record shows a break but the ledger has no open entry.
	ErrNoOpenBreak = errors.New("attendance: no open break entry")
)

// IsPrecondition reports whether err is a caller-facing precondition violation.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrAttendanceNotFound) ||
		errors.Is(err, ErrSessionInactive) ||
		errors.Is(err, ErrBreakAlreadyActive) ||
		errors.Is(err, ErrNoActiveBreak) ||
		errors.Is(err, ErrNoOpenBreak)
}

// ErrorKind maps sentinel errors to a stable label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingUser):
		return "missing_user"
	case errors.Is(err, ErrAttendanceNotFound):
		return "not_found"
	case errors.Is(err, ErrSessionInactive):
		return "session_inactive"
	case errors.Is(err, ErrBreakAlreadyActive):
		return "break_already_active"
	case errors.Is(err, ErrNoActiveBreak):
		return "no_active_break"
	case errors.Is(err, ErrNoOpenBreak):
		return "no_open_break"
	}
	return "unexpected"
}
