package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"workforce/internal/attendance"
	"workforce/internal/auth"
	"workforce/internal/logging"
)

// TokenConfig controls the app tokens issued at login.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler serves the auth and attendance endpoints.
type Handler struct {
	att    *attendance.Service
	tokens *auth.TokenStore
	cfg    TokenConfig
	logger *slog.Logger
}

// New creates a handler.
func New(att *attendance.Service, tokens *auth.TokenStore, cfg TokenConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{att: att, tokens: tokens, cfg: cfg, logger: logger}
}

// Register mounts the routes. identity verifies upstream identity tokens,
// app verifies tokens issued by Login, limit is applied after authentication.
func (h *Handler) Register(r gin.IRouter, identity, app, limit gin.HandlerFunc) {
	authGroup := r.Group("/auth")
	authGroup.POST("/login", identity, limit, h.Login)
	authGroup.POST("/refresh", limit, h.Refresh)
	authGroup.POST("/logout", app, limit, h.Logout)

	protected := r.Group("/", app, limit)
	protected.POST("/attendance/break/start", h.StartBreak)
	protected.POST("/attendance/break/end", h.EndBreak)
	protected.GET("/attendance/current", h.Current)
	protected.GET("/employees/attendance/current", h.Current)
	protected.GET("/attendance/today", h.Today)
	protected.GET("/attendance/records", h.Records)
	protected.GET("/attendance/events", h.Events)
}

// fail maps service errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	status, message := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, attendance.ErrMissingUser):
		status, message = http.StatusUnauthorized, "User not found"
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		status, message = http.StatusBadRequest, "Attendance not found"
	case errors.Is(err, attendance.ErrSessionInactive):
		status, message = http.StatusBadRequest, "No active session"
	case errors.Is(err, attendance.ErrBreakAlreadyActive):
		status, message = http.StatusBadRequest, "Break already active"
	case errors.Is(err, attendance.ErrNoActiveBreak):
		status, message = http.StatusBadRequest, "No active break"
	case errors.Is(err, attendance.ErrNoOpenBreak):
		status, message = http.StatusBadRequest, "No open break found"
	default:
		logging.Or(c.Request.Context(), h.logger).ErrorContext(c.Request.Context(), fallback, "error", err)
	}
	c.JSON(status, gin.H{"error": message})
}

func pageParams(c *gin.Context) (int, int) {
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	return limit, offset
}
